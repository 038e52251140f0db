package clock

import (
	"fmt"
	"time"
)

// Clock returns the current instant. Components take a Clock instead of
// calling time.Now so tests can pin the time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock and reports it in Loc.
type System struct {
	Loc *time.Location
}

func (s System) Now() time.Time {
	if s.Loc == nil {
		return time.Now().UTC()
	}
	return time.Now().In(s.Loc)
}

// Fixed always returns T.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// DayBounds returns the half-open window [start, end) covering the calendar
// day of t in loc. Both bounds are returned in UTC.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// ParseDay accepts either a plain date (2006-01-02), interpreted in loc, or
// a full RFC3339 timestamp.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return t.In(loc), nil
}
