// Package expiry classifies stored expiry strings into urgency tiers and
// groups an owner's items into the report shown by /list and the daily digest.
package expiry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WarningDays is how many days ahead of today an item still counts as
// "expiring soon". The window is inclusive on both ends.
const WarningDays = 3

// ErrUnparseable is returned by Parse when the raw value is not a valid day.month date.
var ErrUnparseable = errors.New("unparseable expiry date")

// Tier is the urgency bucket an item falls into on a given day.
type Tier int

const (
	Fresh Tier = iota
	Warning
	Expired
	Unparseable
)

func (t Tier) String() string {
	switch t {
	case Fresh:
		return "fresh"
	case Warning:
		return "warning"
	case Expired:
		return "expired"
	case Unparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// YearPolicy decides which year a day.month expiry belongs to.
// A zero FixedYear means "the year of today".
type YearPolicy struct {
	FixedYear int
}

// Year returns the year to combine with a day.month value read on today.
func (p YearPolicy) Year(today time.Time) int {
	if p.FixedYear != 0 {
		return p.FixedYear
	}
	return today.Year()
}

// Parse turns a "DD.MM" string into midnight of that day in loc.
// Single-digit day or month values are accepted; impossible dates such as
// 31.02 are rejected.
func Parse(raw string, year int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}

	day, err := parseComponent(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: bad day", ErrUnparseable, raw)
	}
	month, err := parseComponent(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: bad month", ErrUnparseable, raw)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if date.Day() != day || int(date.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %q: no such day", ErrUnparseable, raw)
	}
	return date, nil
}

func parseComponent(s string) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// Classify assigns raw to a tier relative to today. The returned date and
// ok flag are only meaningful when the value could be parsed.
func Classify(raw string, today time.Time, yearHint int) (Tier, time.Time, bool) {
	day := startOfDay(today)

	date, err := Parse(raw, yearHint, day.Location())
	if err != nil {
		return Unparseable, time.Time{}, false
	}

	limit := day.AddDate(0, 0, WarningDays)
	switch {
	case date.Before(day):
		return Expired, date, true
	case !date.After(limit):
		return Warning, date, true
	default:
		return Fresh, date, true
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
