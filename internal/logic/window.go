package logic

import (
	"fmt"
	"time"
)

// minSyncedYear is the earliest year accepted as a synchronized wall clock.
// A board without an RTC boots with a clock near the epoch (or the last
// fake-hwclock save) until NTP catches up.
const minSyncedYear = 2024

// ClockSynced reports whether t looks like a synchronized wall-clock time.
func ClockSynced(t time.Time) bool {
	return !t.IsZero() && t.Year() >= minSyncedYear
}

// OperatingWindow is the time-of-day interval during which the valve may
// be opened. Begin > End describes a window that wraps past midnight.
// Begin == End means the window covers the whole day.
type OperatingWindow struct {
	BeginHour   int
	BeginMinute int
	EndHour     int
	EndMinute   int
}

// AlwaysOpen is a window that allows operation at any time of day.
var AlwaysOpen = OperatingWindow{}

// ParseWindow parses begin and end times in "HH:MM" 24-hour form.
func ParseWindow(begin, end string) (OperatingWindow, error) {
	b, err := time.Parse("15:04", begin)
	if err != nil {
		return OperatingWindow{}, fmt.Errorf("parse window begin %q: %w", begin, err)
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return OperatingWindow{}, fmt.Errorf("parse window end %q: %w", end, err)
	}
	return OperatingWindow{
		BeginHour:   b.Hour(),
		BeginMinute: b.Minute(),
		EndHour:     e.Hour(),
		EndMinute:   e.Minute(),
	}, nil
}

// Validate checks that all fields are on a 24-hour clock.
func (w OperatingWindow) Validate() error {
	if w.BeginHour < 0 || w.BeginHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("window hours must be 0-23, got %d and %d", w.BeginHour, w.EndHour)
	}
	if w.BeginMinute < 0 || w.BeginMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return fmt.Errorf("window minutes must be 0-59, got %d and %d", w.BeginMinute, w.EndMinute)
	}
	return nil
}

func (w OperatingWindow) begin() int { return w.BeginHour*60 + w.BeginMinute }
func (w OperatingWindow) end() int   { return w.EndHour*60 + w.EndMinute }

// Wrapped reports whether the window spans midnight.
func (w OperatingWindow) Wrapped() bool {
	return w.begin() > w.end()
}

// Contains reports whether the wall-clock time of day of t lies inside the
// window: [begin, end) for a normal window, outside [end, begin) for a
// wrapped one. The time zone of t is used as-is.
func (w OperatingWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	b, e := w.begin(), w.end()
	switch {
	case b == e:
		return true
	case b < e:
		return m >= b && m < e
	default:
		return m >= b || m < e
	}
}

// Allowed is Contains with the fail-open rule: when the wall clock is not
// synchronized operation is always allowed.
func (w OperatingWindow) Allowed(t time.Time) bool {
	if !ClockSynced(t) {
		return true
	}
	return w.Contains(t)
}

func (w OperatingWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.BeginHour, w.BeginMinute, w.EndHour, w.EndMinute)
}
