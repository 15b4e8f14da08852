package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) Create(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	_, err := r.db.NewInsert().Model(&rule).Exec(ctx)
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	return rule, nil
}

func (r *AvailabilityRepo) Get(ctx context.Context, ruleID uuid.UUID) (domain.AvailabilityRule, error) {
	var rule domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rule).
		Where("id = ?", ruleID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilityRule{}, store.ErrNotFound
		}
		return domain.AvailabilityRule{}, err
	}
	return rule, nil
}

func (r *AvailabilityRepo) Update(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	res, err := r.db.NewUpdate().
		Model(&rule).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	if affected == 0 {
		return domain.AvailabilityRule{}, store.ErrNotFound
	}
	return rule, nil
}

func (r *AvailabilityRepo) Delete(ctx context.Context, ruleID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.AvailabilityRule)(nil)).
		Where("id = ?", ruleID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AvailabilityRepo) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("day_of_week ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AvailabilityRepo) ListActiveForDate(ctx context.Context, providerID uuid.UUID, day domain.Weekday, date time.Time) ([]domain.AvailabilityRule, error) {
	midnight := domain.MidnightUTC(date)
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("day_of_week = ?", int16(day)).
		Where("is_available").
		Where("(effective_from IS NULL OR effective_from <= ?)", midnight).
		Where("(effective_to IS NULL OR effective_to >= ?)", midnight).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
