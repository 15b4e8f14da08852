package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInterval marks malformed interval input: end not after start,
// break periods outside their parent window, or unparseable day/time strings.
var ErrInvalidInterval = errors.New("invalid interval")

// TimeOfDay is a minute-precision clock time, counted from midnight.
type TimeOfDay int

const MinutesPerDay = 24 * 60

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed time of day %q", ErrInvalidInterval, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// At anchors the clock time to the given calendar date, in the date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).
		Add(time.Duration(t) * time.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Weekday numbers days Monday=1 through Sunday=7.
type Weekday int16

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if n == name {
			return Weekday(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: malformed day of week %q", ErrInvalidInterval, s)
}

func WeekdayOf(t time.Time) Weekday {
	if wd := t.Weekday(); wd != time.Sunday {
		return Weekday(wd)
	}
	return Sunday
}

func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return fmt.Sprintf("weekday(%d)", int16(w))
	}
	return weekdayNames[w-1]
}

func (w Weekday) MarshalJSON() ([]byte, error) {
	if w < Monday || w > Sunday {
		return nil, fmt.Errorf("%w: day of week out of range: %d", ErrInvalidInterval, int16(w))
	}
	return json.Marshal(w.String())
}

func (w *Weekday) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidInterval, s)
	}
	return d, nil
}

// MidnightUTC truncates an instant to the start of its UTC calendar day.
func MidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether the half-open minute intervals [aStart, aEnd)
// and [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// MinuteWindow is one candidate interval produced by Slice.
type MinuteWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Slice cuts [rangeStart, rangeEnd) into candidate windows of slotDuration
// minutes, advancing by step. A window whose end would pass rangeEnd is not
// produced.
func Slice(rangeStart, rangeEnd, slotDuration, step TimeOfDay) []MinuteWindow {
	if slotDuration <= 0 || step <= 0 {
		return nil
	}
	var out []MinuteWindow
	for s := rangeStart; s+slotDuration <= rangeEnd; s += step {
		out = append(out, MinuteWindow{Start: s, End: s + slotDuration})
	}
	return out
}
