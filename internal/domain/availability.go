package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BreakPeriod is a pause inside an availability window during which no
// session may start or run.
type BreakPeriod struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// AvailabilityRule is a recurring weekly template describing when a provider
// is open for bookings, optionally bounded by an effective date window.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID            uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	ProviderID    uuid.UUID     `bun:"provider_id,notnull,type:uuid" json:"provider_id"`
	DayOfWeek     Weekday       `bun:"day_of_week,notnull" json:"day_of_week"`
	StartTime     TimeOfDay     `bun:"start_minute,notnull" json:"start_time"`
	EndTime       TimeOfDay     `bun:"end_minute,notnull" json:"end_time"`
	IsAvailable   bool          `bun:"is_available,notnull" json:"is_available"`
	BreakPeriods  []BreakPeriod `bun:"break_periods,type:jsonb" json:"break_periods,omitempty"`
	EffectiveFrom *time.Time    `bun:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo   *time.Time    `bun:"effective_to" json:"effective_to,omitempty"`
	Notes         string        `bun:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Validate checks the rule's internal consistency: the window must be
// non-empty, breaks must be ordered, mutually disjoint and contained in the
// window. Cross-rule overlap for the same provider/day is deliberately not
// checked here; the read paths tolerate it.
func (r *AvailabilityRule) Validate() error {
	if r.DayOfWeek < Monday || r.DayOfWeek > Sunday {
		return fmt.Errorf("%w: day of week out of range: %d", ErrInvalidInterval, int16(r.DayOfWeek))
	}
	if r.StartTime < 0 || r.EndTime > MinutesPerDay {
		return fmt.Errorf("%w: window outside the day", ErrInvalidInterval)
	}
	if r.EndTime <= r.StartTime {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInterval)
	}
	for i, b := range r.BreakPeriods {
		if b.End <= b.Start {
			return fmt.Errorf("%w: break end must be after break start", ErrInvalidInterval)
		}
		if b.Start < r.StartTime || b.End > r.EndTime {
			return fmt.Errorf("%w: break %s-%s outside window %s-%s", ErrInvalidInterval,
				b.Start, b.End, r.StartTime, r.EndTime)
		}
		if i > 0 && b.Start < r.BreakPeriods[i-1].End {
			return fmt.Errorf("%w: break periods must be ordered and non-overlapping", ErrInvalidInterval)
		}
	}
	if r.EffectiveFrom != nil && r.EffectiveTo != nil && r.EffectiveTo.Before(*r.EffectiveFrom) {
		return fmt.Errorf("%w: effective_to before effective_from", ErrInvalidInterval)
	}
	return nil
}

// AppliesOn reports whether the rule is active on the given calendar date.
// The date is compared at day precision; an unset boundary is unbounded.
func (r *AvailabilityRule) AppliesOn(date time.Time) bool {
	if !r.IsAvailable {
		return false
	}
	if WeekdayOf(date) != r.DayOfWeek {
		return false
	}
	day := MidnightUTC(date)
	if r.EffectiveFrom != nil && day.Before(MidnightUTC(*r.EffectiveFrom)) {
		return false
	}
	if r.EffectiveTo != nil && day.After(MidnightUTC(*r.EffectiveTo)) {
		return false
	}
	return true
}

// Slot is a bookable interval derived at query time. It is never persisted;
// absence from a slot listing is the negative signal.
type Slot struct {
	Start     TimeOfDay `json:"start_time"`
	End       TimeOfDay `json:"end_time"`
	Available bool      `json:"available"`
}
