package availability

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/store"
)

var ErrForbidden = errors.New("forbidden")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service manages a provider's recurring availability rules. Only the owning
// provider or an administrator may mutate them; slot listings are public.
type Service struct {
	repo      store.AvailabilityRepository
	directory store.ProviderDirectory
}

func NewService(repo store.AvailabilityRepository, directory store.ProviderDirectory) *Service {
	return &Service{repo: repo, directory: directory}
}

type CreateInput struct {
	ActorID       uuid.UUID
	ProviderID    uuid.UUID
	DayOfWeek     domain.Weekday
	StartTime     domain.TimeOfDay
	EndTime       domain.TimeOfDay
	IsAvailable   bool
	BreakPeriods  []domain.BreakPeriod
	EffectiveFrom *string
	EffectiveTo   *string
	Notes         string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.AvailabilityRule, error) {
	if in.ProviderID == uuid.Nil {
		return domain.AvailabilityRule{}, validationError("provider_id is required")
	}
	if err := s.authorize(ctx, in.ActorID, in.ProviderID); err != nil {
		return domain.AvailabilityRule{}, err
	}

	rule := domain.AvailabilityRule{
		ProviderID:   in.ProviderID,
		DayOfWeek:    in.DayOfWeek,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		IsAvailable:  in.IsAvailable,
		BreakPeriods: in.BreakPeriods,
		Notes:        strings.TrimSpace(in.Notes),
	}
	if in.EffectiveFrom != nil {
		d, err := domain.ParseDate(*in.EffectiveFrom)
		if err != nil {
			return domain.AvailabilityRule{}, err
		}
		rule.EffectiveFrom = &d
	}
	if in.EffectiveTo != nil {
		d, err := domain.ParseDate(*in.EffectiveTo)
		if err != nil {
			return domain.AvailabilityRule{}, err
		}
		rule.EffectiveTo = &d
	}

	if err := rule.Validate(); err != nil {
		return domain.AvailabilityRule{}, err
	}
	return s.repo.Create(ctx, rule)
}

type UpdateInput struct {
	ActorID       uuid.UUID
	RuleID        uuid.UUID
	DayOfWeek     *domain.Weekday
	StartTime     *domain.TimeOfDay
	EndTime       *domain.TimeOfDay
	IsAvailable   *bool
	BreakPeriods  []domain.BreakPeriod
	EffectiveFrom *string
	EffectiveTo   *string
	Notes         *string
}

// Update patches the rule with the fields present in the input and
// revalidates the result. A set but empty effective date clears the boundary.
func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.AvailabilityRule, error) {
	if in.RuleID == uuid.Nil {
		return domain.AvailabilityRule{}, validationError("rule_id is required")
	}
	rule, err := s.repo.Get(ctx, in.RuleID)
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	if err := s.authorize(ctx, in.ActorID, rule.ProviderID); err != nil {
		return domain.AvailabilityRule{}, err
	}

	if in.DayOfWeek != nil {
		rule.DayOfWeek = *in.DayOfWeek
	}
	if in.StartTime != nil {
		rule.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		rule.EndTime = *in.EndTime
	}
	if in.IsAvailable != nil {
		rule.IsAvailable = *in.IsAvailable
	}
	if in.BreakPeriods != nil {
		rule.BreakPeriods = in.BreakPeriods
	}
	if in.Notes != nil {
		rule.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.EffectiveFrom != nil {
		if *in.EffectiveFrom == "" {
			rule.EffectiveFrom = nil
		} else {
			d, err := domain.ParseDate(*in.EffectiveFrom)
			if err != nil {
				return domain.AvailabilityRule{}, err
			}
			rule.EffectiveFrom = &d
		}
	}
	if in.EffectiveTo != nil {
		if *in.EffectiveTo == "" {
			rule.EffectiveTo = nil
		} else {
			d, err := domain.ParseDate(*in.EffectiveTo)
			if err != nil {
				return domain.AvailabilityRule{}, err
			}
			rule.EffectiveTo = &d
		}
	}

	if err := rule.Validate(); err != nil {
		return domain.AvailabilityRule{}, err
	}
	return s.repo.Update(ctx, rule)
}

func (s *Service) Delete(ctx context.Context, actorID, ruleID uuid.UUID) error {
	if ruleID == uuid.Nil {
		return validationError("rule_id is required")
	}
	rule, err := s.repo.Get(ctx, ruleID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actorID, rule.ProviderID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ruleID)
}

func (s *Service) List(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *Service) authorize(ctx context.Context, actorID, providerID uuid.UUID) error {
	if actorID == uuid.Nil {
		return validationError("actor_id is required")
	}
	if actorID == providerID {
		ok, err := s.directory.IsProvider(ctx, actorID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return ErrForbidden
	}
	admin, err := s.directory.IsAdministrator(ctx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}
