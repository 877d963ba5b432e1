// Package models provides the core data structures for cached market data:
// bars, series, date intervals, coverage metadata, and sampling frequencies.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one day of price and volume data for a ticker.
// Price and volume fields are decimal strings to avoid float drift; use the
// Get*Decimal accessors for arithmetic.
type Bar struct {
	Date     time.Time `json:"date" db:"date"`
	Open     string    `json:"open" db:"open"`
	High     string    `json:"high" db:"high"`
	Low      string    `json:"low" db:"low"`
	Close    string    `json:"close" db:"close"`
	AdjClose string    `json:"adjClose" db:"adj_close"`
	Volume   string    `json:"volume" db:"volume"`
	Ticker   string    `json:"ticker" db:"ticker"`
}

// ValidationError reports a bar field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the bar carries a date-only timestamp, parseable
// decimal fields, positive prices, non-negative volume, and a consistent
// high/low envelope.
func (b *Bar) Validate() error {
	if b.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date cannot be zero"}
	}
	if !b.Date.Equal(Day(b.Date)) {
		return &ValidationError{Field: "date", Message: "date must be a UTC midnight (no time-of-day component)"}
	}
	if b.Ticker == "" {
		return &ValidationError{Field: "ticker", Message: "ticker cannot be empty"}
	}

	open, err := decimal.NewFromString(b.Open)
	if err != nil {
		return &ValidationError{Field: "open", Message: fmt.Sprintf("invalid open price format: %v", err)}
	}
	high, err := decimal.NewFromString(b.High)
	if err != nil {
		return &ValidationError{Field: "high", Message: fmt.Sprintf("invalid high price format: %v", err)}
	}
	low, err := decimal.NewFromString(b.Low)
	if err != nil {
		return &ValidationError{Field: "low", Message: fmt.Sprintf("invalid low price format: %v", err)}
	}
	closePrice, err := decimal.NewFromString(b.Close)
	if err != nil {
		return &ValidationError{Field: "close", Message: fmt.Sprintf("invalid close price format: %v", err)}
	}
	adjClose, err := decimal.NewFromString(b.AdjClose)
	if err != nil {
		return &ValidationError{Field: "adjClose", Message: fmt.Sprintf("invalid adjusted close format: %v", err)}
	}
	volume, err := decimal.NewFromString(b.Volume)
	if err != nil {
		return &ValidationError{Field: "volume", Message: fmt.Sprintf("invalid volume format: %v", err)}
	}

	zero := decimal.Zero
	if open.LessThanOrEqual(zero) {
		return &ValidationError{Field: "open", Message: "open price must be greater than 0"}
	}
	if high.LessThanOrEqual(zero) {
		return &ValidationError{Field: "high", Message: "high price must be greater than 0"}
	}
	if low.LessThanOrEqual(zero) {
		return &ValidationError{Field: "low", Message: "low price must be greater than 0"}
	}
	if closePrice.LessThanOrEqual(zero) {
		return &ValidationError{Field: "close", Message: "close price must be greater than 0"}
	}
	if adjClose.LessThanOrEqual(zero) {
		return &ValidationError{Field: "adjClose", Message: "adjusted close must be greater than 0"}
	}
	if volume.LessThan(zero) {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	maxOpenClose := decimal.Max(open, closePrice)
	if high.LessThan(maxOpenClose) {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%s) must be greater than or equal to max(open, close) (%s)", high, maxOpenClose),
		}
	}
	minOpenClose := decimal.Min(open, closePrice)
	if low.GreaterThan(minOpenClose) {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%s) must be less than or equal to min(open, close) (%s)", low, minOpenClose),
		}
	}

	return nil
}

// GetOpenDecimal returns the open price as a decimal.Decimal.
func (b *Bar) GetOpenDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Open)
}

// GetHighDecimal returns the high price as a decimal.Decimal.
func (b *Bar) GetHighDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.High)
}

// GetLowDecimal returns the low price as a decimal.Decimal.
func (b *Bar) GetLowDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Low)
}

// GetCloseDecimal returns the close price as a decimal.Decimal.
func (b *Bar) GetCloseDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Close)
}

// GetAdjCloseDecimal returns the adjusted close price as a decimal.Decimal.
func (b *Bar) GetAdjCloseDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.AdjClose)
}

// GetVolumeDecimal returns the volume as a decimal.Decimal.
func (b *Bar) GetVolumeDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Volume)
}

// String implements fmt.Stringer.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{Ticker: %s, Date: %s, O: %s, H: %s, L: %s, C: %s, AC: %s, V: %s}",
		b.Ticker, b.Date.Format(DateLayout), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
}

// NewBar creates a validated Bar. The date is normalized to a UTC midnight.
// Price and volume values should be provided as decimal strings.
func NewBar(date time.Time, open, high, low, closePrice, adjClose, volume, ticker string) (*Bar, error) {
	bar := &Bar{
		Date:     Day(date),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		AdjClose: adjClose,
		Volume:   volume,
		Ticker:   ticker,
	}

	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create bar: %w", err)
	}

	return bar, nil
}
