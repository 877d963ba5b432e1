package models

import (
	"sort"
	"time"
)

// Series is an ordered sequence of bars for one ticker, sorted ascending by
// date with no duplicate dates. The sequence may be empty.
type Series []Bar

// Sort orders the series ascending by date in place.
func (s Series) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}

// IsSorted reports whether the series is strictly ascending by date, which
// also implies there are no duplicate dates.
func (s Series) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if !s[i-1].Date.Before(s[i].Date) {
			return false
		}
	}
	return true
}

// Span returns the interval covered by the series. ok is false when the
// series is empty. The series must already be sorted.
func (s Series) Span() (iv Interval, ok bool) {
	if len(s) == 0 {
		return Interval{}, false
	}
	return Interval{Start: s[0].Date, End: s[len(s)-1].Date}, true
}

// Clip returns the sub-series whose dates fall inside the closed interval.
// The series must already be sorted.
func (s Series) Clip(iv Interval) Series {
	lo := sort.Search(len(s), func(i int) bool {
		return !s[i].Date.Before(iv.Start)
	})
	hi := sort.Search(len(s), func(i int) bool {
		return s[i].Date.After(iv.End)
	})
	if lo >= hi {
		return Series{}
	}
	return s[lo:hi]
}

// At returns the bar for the given day, if present. The series must already
// be sorted.
func (s Series) At(d time.Time) (*Bar, bool) {
	d = Day(d)
	i := sort.Search(len(s), func(i int) bool {
		return !s[i].Date.Before(d)
	})
	if i < len(s) && s[i].Date.Equal(d) {
		return &s[i], true
	}
	return nil, false
}

// Last returns the most recent bar, or nil for an empty series.
func (s Series) Last() *Bar {
	if len(s) == 0 {
		return nil
	}
	return &s[len(s)-1]
}

// Dates returns the set of dates present in the series.
func (s Series) Dates() map[time.Time]struct{} {
	dates := make(map[time.Time]struct{}, len(s))
	for _, b := range s {
		dates[b.Date] = struct{}{}
	}
	return dates
}

// Validate checks every bar in the series and the ordering invariant.
func (s Series) Validate() error {
	for i := range s {
		if err := s[i].Validate(); err != nil {
			return err
		}
	}
	if !s.IsSorted() {
		return &ValidationError{Field: "series", Message: "series must be strictly ascending by date"}
	}
	return nil
}
