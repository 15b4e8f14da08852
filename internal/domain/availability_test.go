package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validRule() AvailabilityRule {
	return AvailabilityRule{
		DayOfWeek:   Monday,
		StartTime:   9 * 60,
		EndTime:     17 * 60,
		IsAvailable: true,
	}
}

func TestAvailabilityRuleValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := validRule()
		r.BreakPeriods = []BreakPeriod{
			{Start: 12 * 60, End: 13 * 60},
			{Start: 15 * 60, End: 15*60 + 30},
		}
		if err := r.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("end not after start", func(t *testing.T) {
		r := validRule()
		r.EndTime = r.StartTime
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("day of week out of range", func(t *testing.T) {
		r := validRule()
		r.DayOfWeek = 8
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("break outside window", func(t *testing.T) {
		r := validRule()
		r.BreakPeriods = []BreakPeriod{{Start: 8 * 60, End: 10 * 60}}
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("break end not after start", func(t *testing.T) {
		r := validRule()
		r.BreakPeriods = []BreakPeriod{{Start: 12 * 60, End: 12 * 60}}
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("overlapping breaks", func(t *testing.T) {
		r := validRule()
		r.BreakPeriods = []BreakPeriod{
			{Start: 12 * 60, End: 13 * 60},
			{Start: 12*60 + 30, End: 14 * 60},
		}
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("effective window inverted", func(t *testing.T) {
		r := validRule()
		from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		r.EffectiveFrom = &from
		r.EffectiveTo = &to
		if err := r.Validate(); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Validate() = %v, want ErrInvalidInterval", err)
		}
	})
}

func TestAvailabilityRuleAppliesOn(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	t.Run("matching weekday", func(t *testing.T) {
		r := validRule()
		if !r.AppliesOn(monday) {
			t.Error("AppliesOn(monday) = false, want true")
		}
		if r.AppliesOn(tuesday) {
			t.Error("AppliesOn(tuesday) = true, want false")
		}
	})

	t.Run("unavailable rule never applies", func(t *testing.T) {
		r := validRule()
		r.IsAvailable = false
		if r.AppliesOn(monday) {
			t.Error("AppliesOn = true for unavailable rule")
		}
	})

	t.Run("effective window bounds inclusive", func(t *testing.T) {
		r := validRule()
		from := monday
		to := monday.AddDate(0, 0, 7)
		r.EffectiveFrom = &from
		r.EffectiveTo = &to
		if !r.AppliesOn(monday) {
			t.Error("AppliesOn(effective_from day) = false, want true")
		}
		if !r.AppliesOn(to) {
			t.Error("AppliesOn(effective_to day) = false, want true")
		}
		if r.AppliesOn(monday.AddDate(0, 0, -7)) {
			t.Error("AppliesOn before effective_from = true, want false")
		}
		if r.AppliesOn(to.AddDate(0, 0, 7)) {
			t.Error("AppliesOn after effective_to = true, want false")
		}
	})

	t.Run("day precision ignores clock time", func(t *testing.T) {
		r := validRule()
		to := monday
		r.EffectiveTo = &to
		lateMonday := monday.Add(23 * time.Hour)
		if !r.AppliesOn(lateMonday) {
			t.Error("AppliesOn(late on effective_to day) = false, want true")
		}
	})
}

func TestAvailabilityRuleJSON(t *testing.T) {
	r := validRule()
	r.BreakPeriods = []BreakPeriod{{Start: 12 * 60, End: 13 * 60}}
	raw, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded AvailabilityRule
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.DayOfWeek != Monday {
		t.Errorf("day_of_week = %v, want %v", decoded.DayOfWeek, Monday)
	}
	if decoded.StartTime != 9*60 || decoded.EndTime != 17*60 {
		t.Errorf("window = %s-%s, want 09:00-17:00", decoded.StartTime, decoded.EndTime)
	}
	if len(decoded.BreakPeriods) != 1 || decoded.BreakPeriods[0].Start != 12*60 {
		t.Errorf("break_periods = %+v", decoded.BreakPeriods)
	}
}

func TestAppointmentStatus(t *testing.T) {
	if !AppointmentStatusScheduled.Occupies() || !AppointmentStatusCompleted.Occupies() {
		t.Error("scheduled and completed should occupy")
	}
	if AppointmentStatusCanceled.Occupies() {
		t.Error("canceled should not occupy")
	}
	if AppointmentStatusScheduled.Terminal() {
		t.Error("scheduled should not be terminal")
	}
	if !AppointmentStatusCompleted.Terminal() || !AppointmentStatusCanceled.Terminal() {
		t.Error("completed and canceled should be terminal")
	}
}
