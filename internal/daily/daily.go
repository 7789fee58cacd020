// Package daily computes when a once-a-day job fires next.
package daily

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Time is a wall-clock time of day.
type Time struct {
	Hour   int
	Minute int
}

// Parse reads "HH:MM" (24h).
func Parse(s string) (Time, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Time{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 || len(hh) > 2 {
		return Time{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return Time{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Time{Hour: h, Minute: m}, nil
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the occurrence of t on the calendar day of day, in day's location.
func (t Time) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// Next returns the first occurrence of t strictly after now. If now is at or
// past today's occurrence, tomorrow's is returned.
func (t Time) Next(now time.Time) time.Time {
	next := t.On(now)
	if !next.After(now) {
		next = t.On(now.AddDate(0, 0, 1))
	}
	return next
}
