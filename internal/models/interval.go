package models

import (
	"fmt"
	"time"
)

// DateLayout is the canonical date format for the cache. Dates are calendar
// days with no time-of-day component, held as UTC midnights so that range
// comparisons use time.Time ordering rather than string ordering.
const DateLayout = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar day.
func Today() time.Time {
	return Day(time.Now())
}

// ParseDate parses a YYYY-MM-DD date string into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// InvalidRangeError reports a requested interval whose start date falls after
// its end date. It is raised locally, before any store or remote call.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

// Interval is a closed calendar-day range [Start, End] with Start <= End.
// It represents either a requested range or a missing-coverage gap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds a validated interval from two dates. Both endpoints are
// normalized to UTC midnights. A zero end date means "today".
func NewInterval(start, end time.Time) (Interval, error) {
	if end.IsZero() {
		end = Today()
	}
	iv := Interval{Start: Day(start), End: Day(end)}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate returns an InvalidRangeError when the interval is malformed.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return &InvalidRangeError{Start: iv.Start, End: iv.End}
	}
	if iv.Start.After(iv.End) {
		return &InvalidRangeError{Start: iv.Start, End: iv.End}
	}
	return nil
}

// Contains reports whether the day d falls inside the closed interval.
func (iv Interval) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(iv.Start) && !d.After(iv.End)
}

// Days returns the number of calendar days spanned, endpoints inclusive.
func (iv Interval) Days() int {
	return int(iv.End.Sub(iv.Start).Hours()/24) + 1
}

// String implements fmt.Stringer.
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", iv.Start.Format(DateLayout), iv.End.Format(DateLayout))
}

// Coverage describes the date bounds currently persisted for a ticker.
// It is always derived from the store, never cached separately.
type Coverage struct {
	Min time.Time
	Max time.Time
}

// Covers reports whether the interval falls entirely inside the coverage.
func (c Coverage) Covers(iv Interval) bool {
	return !iv.Start.Before(c.Min) && !iv.End.After(c.Max)
}

// String implements fmt.Stringer.
func (c Coverage) String() string {
	return fmt.Sprintf("[%s, %s]", c.Min.Format(DateLayout), c.Max.Format(DateLayout))
}
