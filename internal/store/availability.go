package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
)

type AvailabilityRepository interface {
	Create(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error)
	Get(ctx context.Context, ruleID uuid.UUID) (domain.AvailabilityRule, error)
	Update(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error)
	Delete(ctx context.Context, ruleID uuid.UUID) error

	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)

	// ListActiveForDate returns rules that are available, match the weekday
	// and whose effective window (if any) contains the date.
	ListActiveForDate(ctx context.Context, providerID uuid.UUID, day domain.Weekday, date time.Time) ([]domain.AvailabilityRule, error)
}
