package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tkarsten/tickersync/internal/models"
)

// MemoryStore is a thread-safe in-memory Store used in tests and for
// ephemeral runs where no cache file should be written.
type MemoryStore struct {
	mu sync.RWMutex

	// bars: map[ticker][date] -> Bar
	bars map[string]map[time.Time]models.Bar

	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars: make(map[string]map[time.Time]models.Bar),
	}
}

// Initialize implements Store. It is a no-op for the in-memory backend.
func (m *MemoryStore) Initialize(ctx context.Context) error {
	if ctx.Err() != nil {
		return &StoreError{Op: "initialize", Err: ctx.Err()}
	}
	return nil
}

// Exists reports whether any bars are held for the ticker.
func (m *MemoryStore) Exists(ctx context.Context, ticker string) (bool, error) {
	if ctx.Err() != nil {
		return false, NewQueryError(ticker, ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, NewQueryError(ticker, errors.New("store is closed"))
	}
	return len(m.bars[ticker]) > 0, nil
}

// Coverage returns the held date bounds for the ticker, or nil when absent.
func (m *MemoryStore) Coverage(ctx context.Context, ticker string) (*models.Coverage, error) {
	if ctx.Err() != nil {
		return nil, NewQueryError(ticker, ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewQueryError(ticker, errors.New("store is closed"))
	}

	dates := m.bars[ticker]
	if len(dates) == 0 {
		return nil, nil
	}

	var cov models.Coverage
	for d := range dates {
		if cov.Min.IsZero() || d.Before(cov.Min) {
			cov.Min = d
		}
		if cov.Max.IsZero() || d.After(cov.Max) {
			cov.Max = d
		}
	}
	return &cov, nil
}

// Load returns the ticker's bars inside the closed interval, ascending by date.
func (m *MemoryStore) Load(ctx context.Context, ticker string, iv models.Interval) (models.Series, error) {
	if ctx.Err() != nil {
		return nil, NewQueryError(ticker, ctx.Err())
	}
	if err := iv.Validate(); err != nil {
		return nil, NewQueryError(ticker, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewQueryError(ticker, errors.New("store is closed"))
	}

	var series models.Series
	for d, bar := range m.bars[ticker] {
		if iv.Contains(d) {
			series = append(series, bar)
		}
	}
	series.Sort()
	return series, nil
}

// Save persists the series. Append keeps existing bars for dates already
// present; Replace drops the ticker's bars first.
func (m *MemoryStore) Save(ctx context.Context, ticker string, series models.Series, mode WriteMode) error {
	if ctx.Err() != nil {
		return NewInsertError(ticker, ctx.Err())
	}

	for i := range series {
		if err := series[i].Validate(); err != nil {
			return NewInsertError(ticker, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewInsertError(ticker, errors.New("store is closed"))
	}

	if mode == Replace || m.bars[ticker] == nil {
		m.bars[ticker] = make(map[time.Time]models.Bar, len(series))
	}

	for _, bar := range series {
		if mode == Append {
			if _, exists := m.bars[ticker][bar.Date]; exists {
				continue
			}
		}
		m.bars[ticker][bar.Date] = bar
	}
	return nil
}

// DeleteBefore removes the ticker's bars older than the cutoff day.
func (m *MemoryStore) DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, NewDeleteError(ticker, ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, NewDeleteError(ticker, errors.New("store is closed"))
	}

	cut := models.Day(cutoff)
	var removed int64
	for d := range m.bars[ticker] {
		if d.Before(cut) {
			delete(m.bars[ticker], d)
			removed++
		}
	}
	return removed, nil
}

// Stats returns operational statistics about the store.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	if ctx.Err() != nil {
		return nil, &StoreError{Op: "stats", Err: ctx.Err()}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, &StoreError{Op: "stats", Err: errors.New("store is closed")}
	}

	stats := &Stats{}
	for _, dates := range m.bars {
		if len(dates) == 0 {
			continue
		}
		stats.TotalTickers++
		for d := range dates {
			stats.TotalBars++
			if stats.EarliestDate.IsZero() || d.Before(stats.EarliestDate) {
				stats.EarliestDate = d
			}
			if stats.LatestDate.IsZero() || d.After(stats.LatestDate) {
				stats.LatestDate = d
			}
		}
	}
	return stats, nil
}

// HealthCheck implements Store.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("store is closed")
	}
	return nil
}

// Close marks the store closed. Further operations fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
