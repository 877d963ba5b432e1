package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 15, 17, 42, 9, 123, time.FixedZone("EST", -5*3600))
	got := Day(in)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 0, got.Hour())
	// 17:42 EST is 22:42 UTC, still March 15.
	assert.Equal(t, date("2024-03-15"), got)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("01/02/2024")
	assert.Error(t, err)

	_, err = ParseDate("2024-1-2")
	assert.Error(t, err, "dates must be zero padded")
}

func TestNewInterval(t *testing.T) {
	t.Run("valid range", func(t *testing.T) {
		iv, err := NewInterval(date("2024-01-01"), date("2024-01-31"))
		require.NoError(t, err)
		assert.Equal(t, date("2024-01-01"), iv.Start)
		assert.Equal(t, date("2024-01-31"), iv.End)
	})

	t.Run("single day", func(t *testing.T) {
		iv, err := NewInterval(date("2024-01-15"), date("2024-01-15"))
		require.NoError(t, err)
		assert.Equal(t, 1, iv.Days())
	})

	t.Run("zero end defaults to today", func(t *testing.T) {
		iv, err := NewInterval(date("2024-01-01"), time.Time{})
		require.NoError(t, err)
		assert.Equal(t, Today(), iv.End)
	})

	t.Run("start after end", func(t *testing.T) {
		_, err := NewInterval(date("2024-02-01"), date("2024-01-01"))
		require.Error(t, err)

		var rangeErr *InvalidRangeError
		require.True(t, errors.As(err, &rangeErr))
		assert.Equal(t, date("2024-02-01"), rangeErr.Start)
		assert.Equal(t, date("2024-01-01"), rangeErr.End)
		assert.Contains(t, rangeErr.Error(), "2024-02-01")
	})

	t.Run("endpoints normalized to midnight", func(t *testing.T) {
		noon := time.Date(2024, 1, 5, 12, 30, 0, 0, time.UTC)
		iv, err := NewInterval(noon, noon)
		require.NoError(t, err)
		assert.Equal(t, date("2024-01-05"), iv.Start)
		assert.Equal(t, date("2024-01-05"), iv.End)
	})
}

func TestIntervalContains(t *testing.T) {
	iv, err := NewInterval(date("2024-01-10"), date("2024-01-20"))
	require.NoError(t, err)

	assert.True(t, iv.Contains(date("2024-01-10")), "start is inclusive")
	assert.True(t, iv.Contains(date("2024-01-20")), "end is inclusive")
	assert.True(t, iv.Contains(date("2024-01-15")))
	assert.False(t, iv.Contains(date("2024-01-09")))
	assert.False(t, iv.Contains(date("2024-01-21")))
}

func TestIntervalDays(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-01-01", "2024-01-01", 1},
		{"2024-01-01", "2024-01-02", 2},
		{"2024-01-01", "2024-01-31", 31},
		{"2024-02-28", "2024-03-01", 3}, // leap year
	}
	for _, tt := range tests {
		iv := Interval{Start: date(tt.start), End: date(tt.end)}
		assert.Equal(t, tt.want, iv.Days(), "%s..%s", tt.start, tt.end)
	}
}

func TestIntervalString(t *testing.T) {
	iv := Interval{Start: date("2024-01-01"), End: date("2024-02-01")}
	assert.Equal(t, "[2024-01-01, 2024-02-01]", iv.String())
}

func TestCoverageCovers(t *testing.T) {
	cov := Coverage{Min: date("2024-01-10"), Max: date("2024-01-20")}

	inside := Interval{Start: date("2024-01-12"), End: date("2024-01-18")}
	exact := Interval{Start: date("2024-01-10"), End: date("2024-01-20")}
	before := Interval{Start: date("2024-01-05"), End: date("2024-01-15")}
	after := Interval{Start: date("2024-01-15"), End: date("2024-01-25")}

	assert.True(t, cov.Covers(inside))
	assert.True(t, cov.Covers(exact))
	assert.False(t, cov.Covers(before))
	assert.False(t, cov.Covers(after))
}
