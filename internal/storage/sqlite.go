package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tkarsten/tickersync/internal/models"
)

// SQLiteStore persists bar series to a single SQLite file. It is the default
// backend: one file per cache, a unique (ticker, date) primary key, and WAL
// mode so external readers can query while a sync is writing.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
// Call Initialize before first use to apply the schema.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Err: fmt.Errorf("create data directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("open sqlite database: %w", err)}
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under the one-writer usage pattern.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Initialize applies the schema. Safe to call multiple times.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS bars (
			ticker     TEXT NOT NULL,
			date       TEXT NOT NULL,
			open       TEXT NOT NULL,
			high       TEXT NOT NULL,
			low        TEXT NOT NULL,
			close      TEXT NOT NULL,
			adj_close  TEXT NOT NULL,
			volume     TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (ticker, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_ticker_date ON bars (ticker, date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &StoreError{Op: "initialize", Err: err}
		}
	}

	s.logger.Info("sqlite store initialized", "path", s.path)
	return nil
}

// Exists reports whether any bars are persisted for the ticker.
func (s *SQLiteStore) Exists(ctx context.Context, ticker string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM bars WHERE ticker = ? LIMIT 1`, ticker).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, NewQueryError(ticker, err)
	}
	return true, nil
}

// Coverage returns the persisted date bounds for the ticker, or nil when the
// ticker is absent. Dates are stored as zero-padded ISO-8601 text, so SQL
// MIN/MAX ordering matches calendar ordering.
func (s *SQLiteStore) Coverage(ctx context.Context, ticker string) (*models.Coverage, error) {
	var minDate, maxDate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date), MAX(date) FROM bars WHERE ticker = ?`, ticker).Scan(&minDate, &maxDate)
	if err != nil {
		return nil, NewQueryError(ticker, err)
	}
	if !minDate.Valid || !maxDate.Valid {
		return nil, nil
	}

	minDay, err := models.ParseDate(minDate.String)
	if err != nil {
		return nil, NewQueryError(ticker, fmt.Errorf("corrupt min date: %w", err))
	}
	maxDay, err := models.ParseDate(maxDate.String)
	if err != nil {
		return nil, NewQueryError(ticker, fmt.Errorf("corrupt max date: %w", err))
	}
	return &models.Coverage{Min: minDay, Max: maxDay}, nil
}

// Load returns the ticker's bars inside the closed interval, ascending by date.
func (s *SQLiteStore) Load(ctx context.Context, ticker string, iv models.Interval) (models.Series, error) {
	if err := iv.Validate(); err != nil {
		return nil, NewQueryError(ticker, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, adj_close, volume
		 FROM bars
		 WHERE ticker = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		ticker, iv.Start.Format(models.DateLayout), iv.End.Format(models.DateLayout))
	if err != nil {
		return nil, NewQueryError(ticker, err)
	}
	defer rows.Close()

	var series models.Series
	for rows.Next() {
		var dateStr string
		bar := models.Bar{Ticker: ticker}
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume); err != nil {
			return nil, NewQueryError(ticker, err)
		}
		bar.Date, err = models.ParseDate(dateStr)
		if err != nil {
			return nil, NewQueryError(ticker, fmt.Errorf("corrupt date %q: %w", dateStr, err))
		}
		series = append(series, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError(ticker, err)
	}
	return series, nil
}

// Save persists the series for the ticker. Append mode inserts with
// ON CONFLICT DO NOTHING so rows already present are never rewritten; replace
// mode deletes the ticker's rows first. The whole write is one transaction.
func (s *SQLiteStore) Save(ctx context.Context, ticker string, series models.Series, mode WriteMode) error {
	if len(series) == 0 && mode == Append {
		return nil
	}

	for i := range series {
		if err := series[i].Validate(); err != nil {
			return NewInsertError(ticker, fmt.Errorf("bar at index %d: %w", i, err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewInsertError(ticker, err)
	}
	defer tx.Rollback()

	if mode == Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE ticker = ?`, ticker); err != nil {
			return NewInsertError(ticker, fmt.Errorf("clear existing rows: %w", err))
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bars (ticker, date, open, high, low, close, adj_close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ticker, date) DO NOTHING`)
	if err != nil {
		return NewInsertError(ticker, err)
	}
	defer stmt.Close()

	for _, bar := range series {
		if _, err := stmt.ExecContext(ctx,
			ticker, bar.Date.Format(models.DateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume); err != nil {
			return NewInsertError(ticker, fmt.Errorf("insert %s: %w", bar.Date.Format(models.DateLayout), err))
		}
	}

	if err := tx.Commit(); err != nil {
		return NewInsertError(ticker, err)
	}

	s.logger.Debug("saved series",
		"ticker", ticker,
		"bars", len(series),
		"mode", mode.String())
	return nil
}

// DeleteBefore removes the ticker's bars older than the cutoff day.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, ticker string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bars WHERE ticker = ? AND date < ?`,
		ticker, models.Day(cutoff).Format(models.DateLayout))
	if err != nil {
		return 0, NewDeleteError(ticker, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, NewDeleteError(ticker, err)
	}

	if removed > 0 {
		s.logger.Info("removed expired bars",
			"ticker", ticker,
			"cutoff", models.Day(cutoff).Format(models.DateLayout),
			"removed", removed)
	}
	return removed, nil
}

// Stats returns operational statistics about the store.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var minDate, maxDate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT ticker), MIN(date), MAX(date) FROM bars`).
		Scan(&stats.TotalBars, &stats.TotalTickers, &minDate, &maxDate)
	if err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}

	if minDate.Valid {
		if stats.EarliestDate, err = models.ParseDate(minDate.String); err != nil {
			return nil, &StoreError{Op: "stats", Err: err}
		}
	}
	if maxDate.Valid {
		if stats.LatestDate, err = models.ParseDate(maxDate.String); err != nil {
			return nil, &StoreError{Op: "stats", Err: err}
		}
	}
	return stats, nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
