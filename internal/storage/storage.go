// Package storage defines the persistence contract for cached bar series and
// provides SQLite and in-memory backends. The store owns persisted bars and
// enforces a unique (ticker, date) constraint; append-mode writes never
// rewrite rows that are already present.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tkarsten/tickersync/internal/models"
)

// WriteMode controls how Save treats rows already present for a ticker.
type WriteMode int

const (
	// Append inserts only bars whose dates are not yet persisted. Existing
	// rows are never rewritten.
	Append WriteMode = iota

	// Replace drops the ticker's existing rows before inserting.
	Replace
)

// String implements fmt.Stringer.
func (m WriteMode) String() string {
	switch m {
	case Append:
		return "append"
	case Replace:
		return "replace"
	default:
		return "unknown"
	}
}

// Store is the persistence contract the sync engine depends on.
type Store interface {
	// Initialize prepares the backend for operation (schema, indexes).
	// Idempotent and safe to call multiple times.
	Initialize(ctx context.Context) error

	// Exists reports whether any bars are persisted for the ticker.
	Exists(ctx context.Context, ticker string) (bool, error)

	// Coverage returns the minimal and maximal persisted date for the
	// ticker, or nil when the ticker has no local series at all.
	Coverage(ctx context.Context, ticker string) (*models.Coverage, error)

	// Load returns the ticker's bars inside the closed interval, sorted
	// ascending by date. An empty series is not an error.
	Load(ctx context.Context, ticker string, iv models.Interval) (models.Series, error)

	// Save persists the series for the ticker under the given write mode.
	Save(ctx context.Context, ticker string, s models.Series, mode WriteMode) error

	// DeleteBefore removes the ticker's bars older than the cutoff day and
	// returns the number of rows removed. Used for cache retention.
	DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error)

	// Stats returns operational statistics about the backend.
	Stats(ctx context.Context) (*Stats, error)

	// HealthCheck verifies the backend is operational with a lightweight probe.
	HealthCheck(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Stats provides operational metrics about a store backend.
type Stats struct {
	// TotalBars is the total number of bars persisted.
	TotalBars int64

	// TotalTickers is the number of distinct tickers with data.
	TotalTickers int

	// EarliestDate is the oldest persisted date across all tickers.
	EarliestDate time.Time

	// LatestDate is the newest persisted date across all tickers.
	LatestDate time.Time
}

// StoreError represents a failure of a store operation. Read failures abort a
// sync before any remote fetch; write failures occur after a successful fetch
// and must tell the caller that fetched data was not persisted.
type StoreError struct {
	// Op is the store operation that failed (e.g. "query", "insert").
	Op string

	// Ticker is the series the operation targeted, when applicable.
	Ticker string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("store %s for %s failed: %v", e.Op, e.Ticker, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewQueryError creates a StoreError for read operations.
func NewQueryError(ticker string, err error) *StoreError {
	return &StoreError{Op: "query", Ticker: ticker, Err: err}
}

// NewInsertError creates a StoreError for write operations.
func NewInsertError(ticker string, err error) *StoreError {
	return &StoreError{Op: "insert", Ticker: ticker, Err: err}
}

// NewDeleteError creates a StoreError for delete operations.
func NewDeleteError(ticker string, err error) *StoreError {
	return &StoreError{Op: "delete", Ticker: ticker, Err: err}
}
