package slots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/store"
)

const DefaultStep = 30 * time.Minute

// Resolver computes bookable slots for a provider and day. Slots are derived
// on every call from availability rules and current occupancy; nothing here
// writes state, so repeated calls with unchanged inputs return identical
// results.
type Resolver struct {
	rules store.AvailabilityRepository
	appts store.AppointmentRepository
	step  time.Duration
}

func NewResolver(rules store.AvailabilityRepository, appts store.AppointmentRepository, step time.Duration) *Resolver {
	if step <= 0 {
		step = DefaultStep
	}
	return &Resolver{rules: rules, appts: appts, step: step}
}

// GetAvailableSlots lists every open slot of the given duration on the
// provider's calendar for the given date, ordered by start time.
func (r *Resolver) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInterval)
	}
	day := domain.MidnightUTC(date)

	rules, occupying, err := r.calendarState(ctx, providerID, day)
	if err != nil {
		return nil, err
	}
	return AvailableSlots(rules, occupying, day, duration, r.step), nil
}

// CheckSlotAvailability reports whether the window [start, end) is bookable.
// It agrees with GetAvailableSlots: the window is bookable exactly when
// listing slots of the same duration would include it.
func (r *Resolver) CheckSlotAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error) {
	if end <= start {
		return false, fmt.Errorf("%w: end must be after start", domain.ErrInvalidInterval)
	}
	day := domain.MidnightUTC(date)

	rules, occupying, err := r.calendarState(ctx, providerID, day)
	if err != nil {
		return false, err
	}
	return WindowBookable(rules, occupying, day, start, end), nil
}

func (r *Resolver) calendarState(ctx context.Context, providerID uuid.UUID, day time.Time) ([]domain.AvailabilityRule, []domain.Appointment, error) {
	rules, err := r.rules.ListActiveForDate(ctx, providerID, domain.WeekdayOf(day), day)
	if err != nil {
		return nil, nil, err
	}
	occupying, err := r.appts.ListOccupyingOnDate(ctx, providerID, day)
	if err != nil {
		return nil, nil, err
	}
	return rules, occupying, nil
}

// AvailableSlots is the pure slot computation. Rules that do not apply on the
// day are skipped; overlapping rules contribute the union of their windows,
// with duplicate starts collapsed.
func AvailableSlots(rules []domain.AvailabilityRule, occupying []domain.Appointment, date time.Time, duration, step time.Duration) []domain.Slot {
	day := domain.MidnightUTC(date)
	busy := busySpans(occupying, day)
	durMin := domain.TimeOfDay(duration / time.Minute)
	stepMin := domain.TimeOfDay(step / time.Minute)

	seen := make(map[domain.TimeOfDay]bool)
	var out []domain.Slot
	for i := range rules {
		rule := &rules[i]
		if !rule.AppliesOn(day) {
			continue
		}
		for _, w := range domain.Slice(rule.StartTime, rule.EndTime, durMin, stepMin) {
			if seen[w.Start] {
				continue
			}
			if !windowFits(rule, busy, w.Start, w.End) {
				continue
			}
			seen[w.Start] = true
			out = append(out, domain.Slot{Start: w.Start, End: w.End, Available: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// WindowBookable reports whether [start, end) can host a booking on the given
// date: some applicable rule must contain the window, and the window must
// clear that rule's breaks and every occupying appointment. With overlapping
// rules any one containing rule suffices.
func WindowBookable(rules []domain.AvailabilityRule, occupying []domain.Appointment, date time.Time, start, end domain.TimeOfDay) bool {
	if end <= start {
		return false
	}
	day := domain.MidnightUTC(date)
	busy := busySpans(occupying, day)

	for i := range rules {
		rule := &rules[i]
		if !rule.AppliesOn(day) {
			continue
		}
		if start < rule.StartTime || end > rule.EndTime {
			continue
		}
		if windowFits(rule, busy, start, end) {
			return true
		}
	}
	return false
}

func windowFits(rule *domain.AvailabilityRule, busy []domain.MinuteWindow, start, end domain.TimeOfDay) bool {
	for _, b := range rule.BreakPeriods {
		if domain.Overlaps(start, end, b.Start, b.End) {
			return false
		}
	}
	for _, b := range busy {
		if domain.Overlaps(start, end, b.Start, b.End) {
			return false
		}
	}
	return true
}

// busySpans projects occupying appointments onto minutes relative to the
// day's UTC midnight. Appointments straddling midnight land partly outside
// [0, MinutesPerDay); the overlap math handles that without clipping.
func busySpans(occupying []domain.Appointment, day time.Time) []domain.MinuteWindow {
	spans := make([]domain.MinuteWindow, 0, len(occupying))
	for _, a := range occupying {
		if !a.Status.Occupies() {
			continue
		}
		spans = append(spans, domain.MinuteWindow{
			Start: domain.TimeOfDay(a.StartTime.UTC().Sub(day) / time.Minute),
			End:   domain.TimeOfDay(a.EndTime.UTC().Sub(day) / time.Minute),
		})
	}
	return spans
}
