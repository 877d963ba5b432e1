// Package remote defines the contract for fetching historical price data
// from an upstream source and provides the Tiingo client implementation.
//
// A fetch that finds no data for the requested range returns an empty series
// and a nil error; transport, auth, and server failures return a FetchError.
// The two must stay distinct: the sync engine records "no data" as a normal
// outcome and never retries it.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/tkarsten/tickersync/internal/models"
)

// Fetcher retrieves historical bars from a remote source.
type Fetcher interface {
	// Fetch returns bars for the ticker inside the closed interval at the
	// given sampling frequency, sorted ascending by date. An empty series
	// with a nil error means no data exists in the range (for example the
	// request predates the instrument's history).
	Fetch(ctx context.Context, ticker string, iv models.Interval, freq models.Frequency) (models.Series, error)

	// HealthCheck verifies the remote source is reachable with a
	// lightweight probe.
	HealthCheck(ctx context.Context) error
}

// FetchError reports a failed remote fetch. It carries the ticker and the
// attempted interval so the caller can retry exactly the failed sub-range.
type FetchError struct {
	Ticker   string
	Interval models.Interval
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("remote fetch for %s %s failed: %v", e.Ticker, e.Interval, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError reports a non-success HTTP response from the remote source.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("unexpected status %d", e.code)
}

// retryable reports whether the status is worth retrying: rate limiting and
// server-side failures are transient, client errors are not.
func (e *statusError) retryable() bool {
	return e.code == 429 || e.code >= 500
}

// Retry policy shared by remote clients.
const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
	maxRetries        = 3
)
