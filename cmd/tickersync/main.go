// tickersync keeps a local cache of daily price history synchronized with
// the Tiingo API, fetching only the date ranges the cache does not already
// hold.
//
// Usage:
//
//	tickersync sync --ticker AAPL --start 2024-01-01 --end 2024-03-31
//	tickersync sync --ticker AAPL --days 90
//	tickersync query --ticker AAPL --start 2024-01-01 --end 2024-01-31
//	tickersync analyze --ticker AAPL --indicator rsi --window 14
//	tickersync watch
//	tickersync stats
//
// For detailed help on any command, use: tickersync <command> --help
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tkarsten/tickersync/internal/analysis"
	"github.com/tkarsten/tickersync/internal/config"
	"github.com/tkarsten/tickersync/internal/logger"
	"github.com/tkarsten/tickersync/internal/models"
	"github.com/tkarsten/tickersync/internal/remote"
	"github.com/tkarsten/tickersync/internal/schedule"
	"github.com/tkarsten/tickersync/internal/storage"
	tsync "github.com/tkarsten/tickersync/internal/sync"
)

const (
	Version = "1.0.0"
	AppName = "tickersync"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitDataError   = 4
	ExitInterrupt   = 130
)

// CLI holds the wired application components.
type CLI struct {
	config    *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	store     storage.Store
	fetcher   remote.Fetcher
	engine    *tsync.Engine
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "--version", "-v", "version":
		fmt.Printf("%s version %s\n", AppName, Version)
		return
	case "--help", "-h", "help":
		if len(args) > 0 {
			printCommandHelp(args[0])
		} else {
			printUsage()
		}
		return
	}

	cli := &CLI{}
	if err := cli.initialize(command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer cli.shutdown()

	var err error
	switch command {
	case "sync":
		err = cli.handleSync(ctx, args)
	case "query":
		err = cli.handleQuery(ctx, args)
	case "analyze":
		err = cli.handleAnalyze(ctx, args)
	case "watch":
		err = cli.handleWatch(ctx, args)
	case "stats":
		err = cli.handleStats(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(ExitInterrupt)
		}
		cli.logger.Error("Command failed", "command", command, "error", err)
		os.Exit(ExitDataError)
	}
}

// initialize loads configuration and wires storage, the remote client, and
// the sync engine. Commands that never reach the network (query, analyze,
// stats) skip the remote client so they work without an API key.
func (cli *CLI) initialize(command string) error {
	cfg, err := config.Load(os.Getenv("TICKERSYNC_CONFIG"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cli.config = cfg

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	cli.logger = log
	cli.logCloser = closer
	slog.SetDefault(log)

	store, err := createStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		store.Close()
		return fmt.Errorf("initialize store schema: %w", err)
	}
	cli.store = store

	needsRemote := command == "sync" || command == "watch"
	if needsRemote {
		if cfg.Remote.APIKey == "" {
			return fmt.Errorf("TIINGO_API_KEY is not set")
		}
		opts := []remote.TiingoOption{
			remote.WithLogger(log),
			remote.WithRateLimit(cfg.Remote.RateLimit),
		}
		if cfg.Remote.BaseURL != "" {
			opts = append(opts, remote.WithBaseURL(cfg.Remote.BaseURL))
		}
		fetcher, err := remote.NewTiingoClient(cfg.Remote.APIKey, opts...)
		if err != nil {
			return fmt.Errorf("create remote client: %w", err)
		}
		cli.fetcher = fetcher
	}

	cli.engine = tsync.New(cli.store, cli.fetcher, log)
	return nil
}

func (cli *CLI) shutdown() {
	if cli.store != nil {
		if err := cli.store.Close(); err != nil {
			cli.logger.Warn("Failed to close store", "error", err)
		}
	}
	if cli.logCloser != nil {
		cli.logCloser.Close()
	}
}

func createStore(cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.Storage.Path == ":memory:" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewSQLiteStore(cfg.Storage.Path, log)
}

// rangeFlags are the date-range flags shared by sync and query.
type rangeFlags struct {
	Ticker string
	Start  string
	End    string
	Days   int
	JSON   bool
}

func (f *rangeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.Ticker, "ticker", "", "ticker symbol, or a comma-separated list for sync (required)")
	fs.StringVar(&f.Start, "start", "", "start date, YYYY-MM-DD")
	fs.StringVar(&f.End, "end", "", "end date, YYYY-MM-DD (default today)")
	fs.IntVar(&f.Days, "days", 0, "sync the last N days instead of --start/--end")
	fs.BoolVar(&f.JSON, "json", false, "emit JSON instead of a table")
}

// interval resolves the flags into a validated request interval.
func (f *rangeFlags) interval() (models.Interval, error) {
	if f.Ticker == "" {
		return models.Interval{}, fmt.Errorf("--ticker is required")
	}

	if f.Days > 0 {
		end := models.Today()
		return models.NewInterval(end.AddDate(0, 0, -(f.Days-1)), end)
	}

	if f.Start == "" {
		return models.Interval{}, fmt.Errorf("specify either --days or --start")
	}
	start, err := models.ParseDate(f.Start)
	if err != nil {
		return models.Interval{}, fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
	}
	var end time.Time
	if f.End != "" {
		end, err = models.ParseDate(f.End)
		if err != nil {
			return models.Interval{}, fmt.Errorf("invalid end date, use YYYY-MM-DD: %w", err)
		}
	}
	return models.NewInterval(start, end)
}

func (cli *CLI) handleSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var flags rangeFlags
	flags.register(fs)
	if err := parseFlags(fs, "sync", args); err != nil {
		return err
	}

	iv, err := flags.interval()
	if err != nil {
		return err
	}
	freq, err := models.ParseFrequency(cli.config.Sync.Frequency)
	if err != nil {
		return err
	}

	// One failing ticker must not abort the rest of the list.
	var failed []string
	for _, ticker := range splitTickers(flags.Ticker) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := cli.engine.Ensure(ctx, ticker, iv, freq)
		if err != nil {
			failed = append(failed, ticker)
			cli.logger.Error("Sync failed", "ticker", ticker, "error", err)
			continue
		}

		if cli.config.Sync.RetentionDays > 0 {
			deleted, err := cli.engine.Retention(ctx, ticker, cli.config.Sync.RetentionDays)
			if err != nil {
				cli.logger.Warn("Retention cleanup failed", "ticker", ticker, "error", err)
			} else if deleted > 0 {
				cli.logger.Info("Retention cleanup", "ticker", ticker, "deleted", deleted)
			}
		}

		if res.NoData {
			fmt.Printf("No data exists for %s in %s\n", ticker, iv)
			continue
		}
		fmt.Printf("Synced %s %s: %d bars local (%d fetched across %d gaps) in %s\n",
			ticker, iv, len(res.Series), res.BarsFetched, res.GapsFetched,
			res.Elapsed.Round(time.Millisecond))
	}

	if len(failed) > 0 {
		return fmt.Errorf("sync failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// splitTickers parses a comma-separated ticker list, uppercased.
func splitTickers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func (cli *CLI) handleQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var flags rangeFlags
	flags.register(fs)
	if err := parseFlags(fs, "query", args); err != nil {
		return err
	}

	iv, err := flags.interval()
	if err != nil {
		return err
	}

	ticker := strings.ToUpper(flags.Ticker)
	s, err := cli.store.Load(ctx, ticker, iv)
	if err != nil {
		return err
	}
	if len(s) == 0 {
		fmt.Printf("No cached data for %s in %s\n", ticker, iv)
		return nil
	}

	if flags.JSON {
		return json.NewEncoder(os.Stdout).Encode(s)
	}

	fmt.Printf("%-12s %10s %10s %10s %10s %10s %12s\n",
		"Date", "Open", "High", "Low", "Close", "AdjClose", "Volume")
	for _, bar := range s {
		fmt.Printf("%-12s %10s %10s %10s %10s %10s %12s\n",
			bar.Date.Format(models.DateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume)
	}
	fmt.Printf("\n%d bars\n", len(s))
	return nil
}

func (cli *CLI) handleAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	var flags rangeFlags
	flags.register(fs)
	indicator := fs.String("indicator", "returns", "returns, sma, bollinger, rsi, macd, or atr")
	window := fs.Int("window", 20, "lookback window for sma, bollinger, rsi, and atr")
	if err := parseFlags(fs, "analyze", args); err != nil {
		return err
	}

	iv, err := flags.interval()
	if err != nil {
		return err
	}

	ticker := strings.ToUpper(flags.Ticker)
	s, err := cli.store.Load(ctx, ticker, iv)
	if err != nil {
		return err
	}
	if len(s) == 0 {
		fmt.Printf("No cached data for %s in %s; run 'tickersync sync' first\n", ticker, iv)
		return nil
	}

	a, err := analysis.NewAnalyzer(s)
	if err != nil {
		return err
	}

	switch *indicator {
	case "returns":
		daily, cumulative := a.Returns()
		fmt.Printf("%-12s %12s %12s\n", "Date", "Daily", "Cumulative")
		for i := range daily {
			fmt.Printf("%-12s %12s %12s\n",
				daily[i].Date.Format(models.DateLayout),
				daily[i].Value.StringFixed(6),
				cumulative[i].Value.StringFixed(6))
		}
	case "sma":
		printPoints("SMA", a.MovingAverage(*window))
	case "rsi":
		printPoints("RSI", a.RSI(*window))
	case "atr":
		printPoints("ATR", a.ATR(*window))
	case "bollinger":
		bands := a.BollingerBands(*window, 2)
		fmt.Printf("%-12s %12s %12s %12s\n", "Date", "Lower", "Middle", "Upper")
		for _, b := range bands {
			fmt.Printf("%-12s %12s %12s %12s\n",
				b.Date.Format(models.DateLayout),
				b.Lower.StringFixed(4), b.Middle.StringFixed(4), b.Upper.StringFixed(4))
		}
	case "macd":
		macd, signal := a.MACD(12, 26, 9)
		fmt.Printf("%-12s %12s %12s\n", "Date", "MACD", "Signal")
		for i := range macd {
			sig := ""
			if i < len(signal) {
				sig = signal[i].Value.StringFixed(4)
			}
			fmt.Printf("%-12s %12s %12s\n",
				macd[i].Date.Format(models.DateLayout),
				macd[i].Value.StringFixed(4), sig)
		}
	default:
		return fmt.Errorf("unknown indicator %q", *indicator)
	}
	return nil
}

func printPoints(name string, points []analysis.Point) {
	fmt.Printf("%-12s %12s\n", "Date", name)
	for _, p := range points {
		fmt.Printf("%-12s %12s\n", p.Date.Format(models.DateLayout), p.Value.StringFixed(4))
	}
}

func (cli *CLI) handleWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	now := fs.Bool("now", false, "run one sync pass immediately before scheduling")
	if err := parseFlags(fs, "watch", args); err != nil {
		return err
	}

	freq, err := models.ParseFrequency(cli.config.Sync.Frequency)
	if err != nil {
		return err
	}

	sched := schedule.New(cli.engine, cli.config.Watch.Tickers, freq,
		cli.config.Watch.LookbackDays, cli.logger)
	if *now {
		sched.RunOnce(ctx)
	}
	err = sched.Run(ctx, cli.config.Watch.Cron)
	if errors.Is(err, context.Canceled) {
		cli.logger.Info("Watch stopped")
		return nil
	}
	return err
}

func (cli *CLI) handleStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON instead of text")
	if err := parseFlags(fs, "stats", args); err != nil {
		return err
	}

	stats, err := cli.store.Stats(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}
	fmt.Printf("Tickers:  %d\n", stats.TotalTickers)
	fmt.Printf("Bars:     %d\n", stats.TotalBars)
	if !stats.EarliestDate.IsZero() {
		fmt.Printf("Earliest: %s\n", stats.EarliestDate.Format(models.DateLayout))
		fmt.Printf("Latest:   %s\n", stats.LatestDate.Format(models.DateLayout))
	}
	return nil
}

// parseFlags runs the flag set and maps -h to command help.
func parseFlags(fs *flag.FlagSet, command string, args []string) error {
	fs.Usage = func() { printCommandHelp(command) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(ExitSuccess)
		}
		return err
	}
	return nil
}

func printUsage() {
	fmt.Printf(`%s - local price history cache synced against Tiingo

Usage:
  %s <command> [options]

Commands:
  sync      Ensure the cache covers a date range, fetching what is missing
  query     Print cached bars for a date range
  analyze   Compute indicators over cached bars
  watch     Periodically re-sync configured tickers on a cron schedule
  stats     Show cache statistics
  version   Show version information
  help      Show this help or help for a command

Configuration is read from the file named by TICKERSYNC_CONFIG (YAML),
then overridden by environment variables. TIINGO_API_KEY is required for
commands that reach the network.

Use '%s help <command>' for command-specific options.
`, AppName, AppName, AppName)
}

func printCommandHelp(command string) {
	switch command {
	case "sync":
		fmt.Print(`Usage: tickersync sync --ticker SYMBOL (--days N | --start YYYY-MM-DD [--end YYYY-MM-DD])

Makes the local cache cover the requested range, fetching only the missing
sub-ranges from Tiingo. Already-cached dates are never re-fetched. A failing
ticker is reported and skipped; the rest of the list still syncs.

Options:
  --ticker   ticker symbol or comma-separated list (required)
  --start    start date
  --end      end date (default today)
  --days     sync the last N days
`)
	case "query":
		fmt.Print(`Usage: tickersync query --ticker SYMBOL --start YYYY-MM-DD [--end YYYY-MM-DD] [--json]

Prints cached bars without touching the network.

Options:
  --ticker   ticker symbol (required)
  --start    start date
  --end      end date (default today)
  --days     query the last N days
  --json     emit JSON
`)
	case "analyze":
		fmt.Print(`Usage: tickersync analyze --ticker SYMBOL --start YYYY-MM-DD [--end YYYY-MM-DD] [--indicator NAME] [--window N]

Computes an indicator over cached bars.

Options:
  --ticker     ticker symbol (required)
  --start      start date
  --end        end date (default today)
  --days       analyze the last N days
  --indicator  returns, sma, bollinger, rsi, macd, or atr (default returns)
  --window     lookback window (default 20)
`)
	case "watch":
		fmt.Print(`Usage: tickersync watch [--now]

Re-syncs the configured ticker list on the configured cron schedule until
interrupted. Each run requests the configured lookback window.

Options:
  --now    run one sync pass immediately before scheduling
`)
	case "stats":
		fmt.Print(`Usage: tickersync stats [--json]

Shows totals and the cached date range across all tickers.
`)
	default:
		printUsage()
	}
}
