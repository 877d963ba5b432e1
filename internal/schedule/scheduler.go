// Package schedule runs periodic re-syncs of a watched ticker set on a cron
// cadence, keeping each ticker's recent history current.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tkarsten/tickersync/internal/models"
	tsync "github.com/tkarsten/tickersync/internal/sync"
)

// Scheduler re-syncs a fixed set of tickers whenever its cron expression
// fires. A failing ticker is logged and skipped; it never blocks the rest
// of the set or subsequent runs.
type Scheduler struct {
	engine       *tsync.Engine
	cron         *cron.Cron
	tickers      []string
	freq         models.Frequency
	lookbackDays int
	logger       *slog.Logger
}

// New creates a scheduler. lookbackDays controls how far back each run
// requests data; values below 1 are clamped to 1.
func New(engine *tsync.Engine, tickers []string, freq models.Frequency, lookbackDays int, logger *slog.Logger) *Scheduler {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:       engine,
		cron:         cron.New(),
		tickers:      tickers,
		freq:         freq,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Run registers the cron entry and blocks until ctx is done. It returns an
// error immediately if the expression does not parse.
func (s *Scheduler) Run(ctx context.Context, spec string) error {
	if len(s.tickers) == 0 {
		return fmt.Errorf("no tickers to watch")
	}
	_, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.logger.Info("watch started",
		"cron", spec,
		"tickers", len(s.tickers),
		"lookback_days", s.lookbackDays)

	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("timed out waiting for running jobs to finish")
	}
	return ctx.Err()
}

// RunOnce syncs every watched ticker immediately, outside the cron cadence.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	end := models.Today()
	start := end.AddDate(0, 0, -(s.lookbackDays - 1))
	interval, err := models.NewInterval(start, end)
	if err != nil {
		s.logger.Error("watch interval invalid", "error", err)
		return
	}

	began := time.Now()
	var failed int
	for _, ticker := range s.tickers {
		if ctx.Err() != nil {
			return
		}
		res, err := s.engine.Ensure(ctx, ticker, interval, s.freq)
		if err != nil {
			failed++
			s.logger.Error("watch sync failed", "ticker", ticker, "error", err)
			continue
		}
		s.logger.Info("watch sync complete",
			"ticker", ticker,
			"gaps_fetched", res.GapsFetched,
			"bars_fetched", res.BarsFetched)
	}

	s.logger.Info("watch run finished",
		"tickers", len(s.tickers),
		"failed", failed,
		"elapsed", time.Since(began).Round(time.Millisecond).String())
}
