package expiry

import (
	"sort"
	"strings"
	"time"
)

// Entry is the part of a stored item the classifier needs.
type Entry struct {
	ID   int64
	Name string
	Raw  string
}

// Classified is an Entry together with its tier and, if parsed, its date.
type Classified struct {
	Entry
	Tier   Tier
	Date   time.Time
	Parsed bool
}

// Buckets holds an owner's items grouped for display.
// Unparseable items are folded into Fresh.
type Buckets struct {
	Expired []Classified
	Warning []Classified
	Fresh   []Classified
}

// Empty reports whether no bucket holds anything.
func (b Buckets) Empty() bool {
	return len(b.Expired) == 0 && len(b.Warning) == 0 && len(b.Fresh) == 0
}

// Headers are the section titles used by Render.
type Headers struct {
	Expired string
	Warning string
	Fresh   string
}

// ClassifyAll classifies every entry against today.
func ClassifyAll(entries []Entry, today time.Time, yearHint int) []Classified {
	out := make([]Classified, 0, len(entries))
	for _, e := range entries {
		tier, date, ok := Classify(e.Raw, today, yearHint)
		out = append(out, Classified{Entry: e, Tier: tier, Date: date, Parsed: ok})
	}
	return out
}

// Bucket classifies entries and groups them into display buckets, each
// sorted by ascending date with unparseable entries last.
func Bucket(entries []Entry, today time.Time, yearHint int) Buckets {
	var b Buckets
	for _, c := range ClassifyAll(entries, today, yearHint) {
		switch c.Tier {
		case Expired:
			b.Expired = append(b.Expired, c)
		case Warning:
			b.Warning = append(b.Warning, c)
		default:
			b.Fresh = append(b.Fresh, c)
		}
	}

	SortByDate(b.Expired)
	SortByDate(b.Warning)
	SortByDate(b.Fresh)
	return b
}

// Warnings returns only the entries in the Warning tier, sorted by date.
func Warnings(entries []Entry, today time.Time, yearHint int) []Classified {
	var out []Classified
	for _, c := range ClassifyAll(entries, today, yearHint) {
		if c.Tier == Warning {
			out = append(out, c)
		}
	}
	SortByDate(out)
	return out
}

// SortByDate orders items by ascending date. Unparsed items go last and
// keep their relative order.
func SortByDate(items []Classified) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Parsed != b.Parsed {
			return a.Parsed
		}
		if !a.Parsed {
			return false
		}
		return a.Date.Before(b.Date)
	})
}

// Render writes the non-empty sections in the order Expired, Warning, Fresh,
// separated by a blank line.
func Render(b Buckets, h Headers) string {
	var sections []string
	if len(b.Expired) > 0 {
		sections = append(sections, h.Expired+"\n"+Lines(b.Expired))
	}
	if len(b.Warning) > 0 {
		sections = append(sections, h.Warning+"\n"+Lines(b.Warning))
	}
	if len(b.Fresh) > 0 {
		sections = append(sections, h.Fresh+"\n"+Lines(b.Fresh))
	}
	return strings.Join(sections, "\n\n")
}

// Lines renders one "name — raw" line per item.
func Lines(items []Classified) string {
	lines := make([]string, 0, len(items))
	for _, c := range items {
		lines = append(lines, c.Name+" — "+c.Raw)
	}
	return strings.Join(lines, "\n")
}
