package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date with no time-of-day and no zone
// =============================================================================

const dayLayout = "2006-01-02"

// Day is a calendar date. Internally it is midnight UTC of that date so that
// arithmetic never crosses a DST transition.
type Day struct {
	t time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of instant as observed in loc.
// A nil loc means UTC.
func DayOf(instant time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	local := instant.In(loc)
	return NewDay(local.Year(), local.Month(), local.Day())
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// Comparison
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool  { return d.t.Equal(other.t) }
func (d Day) IsZero() bool          { return d.t.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) Next() Day         { return d.AddDays(1) }

// Start returns the first instant of the day in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
}

func (d Day) String() string { return d.t.Format(dayLayout) }

// LoadLocation resolves an IANA zone name, falling back to fallback when the
// name is empty. Unknown names are an error.
func LoadLocation(name string, fallback *time.Location) (*time.Location, error) {
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown zone %q", name)}
	}
	return loc, nil
}
