// Package sync orchestrates cache synchronization for one ticker at a time:
// resolve missing coverage against the local store, fetch each gap from the
// remote source, merge, persist, and return the unified series.
//
// The engine performs no retries of its own (retry policy lives in the
// remote client) and defines no internal parallelism; callers may run one
// Ensure per ticker concurrently, but must not issue concurrent Ensure calls
// for the same ticker against the same store.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tkarsten/tickersync/internal/coverage"
	"github.com/tkarsten/tickersync/internal/models"
	"github.com/tkarsten/tickersync/internal/remote"
	"github.com/tkarsten/tickersync/internal/series"
	"github.com/tkarsten/tickersync/internal/storage"
)

// Engine wires the coverage resolver, the remote source, and the store into
// the per-ticker synchronization routine.
type Engine struct {
	store  storage.Store
	remote remote.Fetcher
	logger *slog.Logger
}

// Result is the outcome of one Ensure invocation.
type Result struct {
	// Ticker is the series that was synchronized.
	Ticker string

	// Interval is the requested date range.
	Interval models.Interval

	// Series is the unified local series spanning the requested interval,
	// read fresh from the store after any writes.
	Series models.Series

	// NoData is true when no data exists for the request anywhere: the
	// store holds nothing in range and the remote returned nothing. It is
	// an explicit empty result, not a failure.
	NoData bool

	// GapsFetched is the number of missing sub-ranges fetched remotely.
	GapsFetched int

	// BarsFetched is the number of bars retrieved across all gap fetches.
	BarsFetched int

	// Elapsed is the wall-clock duration of the invocation.
	Elapsed time.Duration
}

// New creates a sync engine.
func New(store storage.Store, fetcher remote.Fetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, remote: fetcher, logger: logger}
}

// Ensure makes the local cache cover the requested interval for the ticker
// and returns the unified series.
//
// Each missing sub-range is fetched in chronological order and appended to
// the store as soon as its fetch succeeds, so partial progress survives a
// later gap's failure: a subsequent Ensure with the same arguments
// re-requests only the still-missing range. A fetch that returns no data is
// recorded as such and is not an error. The returned series is read back
// from the store after all writes, giving read-after-write consistency
// within the invocation.
func (e *Engine) Ensure(ctx context.Context, ticker string, iv models.Interval, freq models.Frequency) (*Result, error) {
	start := time.Now()

	if ticker == "" {
		return nil, fmt.Errorf("ticker cannot be empty")
	}
	if err := iv.Validate(); err != nil {
		return nil, err
	}

	log := e.logger.With(
		"run_id", uuid.NewString(),
		"ticker", ticker,
		"interval", iv.String(),
		"frequency", freq.String())

	cov, err := e.store.Coverage(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve local coverage: %w", err)
	}

	gaps, err := coverage.Resolve(iv, cov)
	if err != nil {
		return nil, err
	}

	if cov == nil {
		log.Info("cache cold, fetching full range")
	} else {
		log.Debug("resolved coverage", "local", cov.String(), "gaps", len(gaps))
	}

	result := &Result{Ticker: ticker, Interval: iv}

	for _, gap := range gaps {
		fetched, err := e.remote.Fetch(ctx, ticker, gap, freq)
		if err != nil {
			// Gaps already fetched are persisted; surface the failed
			// sub-interval so the caller can retry just that range.
			log.Error("gap fetch failed",
				"gap", gap.String(),
				"gaps_persisted", result.GapsFetched,
				"error", err)
			return nil, fmt.Errorf("sync %s: %w", ticker, err)
		}

		result.GapsFetched++
		if len(fetched) == 0 {
			log.Debug("no remote data for gap", "gap", gap.String())
			continue
		}

		result.BarsFetched += len(fetched)

		// The store deduplicates on (ticker, date) in append mode, so the
		// inclusive gap anchors are safe to write as-is.
		if err := e.persistGap(ctx, ticker, gap, fetched); err != nil {
			return nil, err
		}

		log.Debug("gap filled",
			"gap", gap.String(),
			"bars", len(fetched))
	}

	merged, err := e.store.Load(ctx, ticker, iv)
	if err != nil {
		return nil, fmt.Errorf("load merged series: %w", err)
	}

	result.Series = merged
	result.NoData = len(merged) == 0
	result.Elapsed = time.Since(start)

	if result.NoData {
		log.Info("no data available", "gaps_fetched", result.GapsFetched)
	} else {
		log.Info("sync complete",
			"bars", len(merged),
			"gaps_fetched", result.GapsFetched,
			"bars_fetched", result.BarsFetched,
			"elapsed", result.Elapsed)
	}

	return result, nil
}

// persistGap merges a fetched gap with whatever the store already holds for
// that sub-range and appends the combination. Freshly fetched bars win over
// stale local bars for the same date in the merged in-memory view; on disk
// the append mode leaves existing rows untouched, per the store contract.
func (e *Engine) persistGap(ctx context.Context, ticker string, gap models.Interval, fetched models.Series) error {
	local, err := e.store.Load(ctx, ticker, gap)
	if err != nil {
		return fmt.Errorf("load local overlap: %w", err)
	}

	merged := series.Merge(local, fetched)

	if err := e.store.Save(ctx, ticker, merged, storage.Append); err != nil {
		return fmt.Errorf("fetched %d bars for %s %s but failed to persist them: %w",
			len(fetched), ticker, gap, err)
	}
	return nil
}

// Retention removes cached bars older than retentionDays for the ticker.
// A non-positive retention disables cleanup.
func (e *Engine) Retention(ctx context.Context, ticker string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := models.Today().AddDate(0, 0, -retentionDays)
	return e.store.DeleteBefore(ctx, ticker, cutoff)
}
