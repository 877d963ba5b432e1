package models

import "fmt"

// Frequency is the sampling frequency of a fetched series.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates and normalizes a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	case "":
		return FrequencyDaily, nil
	default:
		return "", fmt.Errorf("invalid frequency %q (expected daily, weekly, or monthly)", s)
	}
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	return string(f)
}
