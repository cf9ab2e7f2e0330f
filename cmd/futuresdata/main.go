// Binance USD-M Futures Data CLI
// This application fetches historical derivatives metrics (open interest,
// long/short ratios, basis, funding rate, OHLCV) for a perpetual contract,
// aligns them on a shared timestamp axis, exports the result as CSV, and
// plots each metric against the close price.
//
// Usage:
//
//	futuresdata fetch --symbol BTCUSDT --resolution 1h --days 7
//	futuresdata fetch --symbol ETHUSDT --metrics open_interest,funding_rate --days 14
//	futuresdata plot --input BTCUSDT_20260820T0000_20260827T0000_1h.csv --output-dir ./charts
//
// For detailed help on any command, use: futuresdata <command> --help
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/menglong24/Binance-Data-Analysis/internal/align"
	"github.com/menglong24/Binance-Data-Analysis/internal/binance"
	"github.com/menglong24/Binance-Data-Analysis/internal/chart"
	"github.com/menglong24/Binance-Data-Analysis/internal/config"
	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
	"github.com/menglong24/Binance-Data-Analysis/internal/logger"
	"github.com/menglong24/Binance-Data-Analysis/internal/models"
	"github.com/menglong24/Binance-Data-Analysis/internal/table"
)

// CLI version information
const (
	Version    = "1.0.0"
	AppName    = "futuresdata"
	ConfigFile = "futuresdata.json"
)

// Exit codes following standard conventions
const (
	ExitSuccess       = 0
	ExitUsageError    = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitDataError     = 4
	ExitInterrupt     = 130
)

// CLI represents the main CLI application
type CLI struct {
	config *config.AppConfig
	logMgr *logger.Manager
	logger *slog.Logger
}

// main is the entry point for the CLI application
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	// A .env file is optional; ignore a missing one.
	_ = godotenv.Load()

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "--version", "-v":
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
	if err := cli.initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize CLI: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer cli.logMgr.Close()

	// Tag every log line of this invocation with a run ID.
	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	cli.logger = cli.logger.With(slog.String("run_id", runID))

	var err error
	switch command {
	case "fetch":
		err = cli.handleFetch(ctx, args)
	case "plot":
		err = cli.handlePlot(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}

	if err != nil {
		cli.logger.Error("command failed", "command", command, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(ctx, err))
	}
}

// exitCode maps an error to the process exit code.
func exitCode(ctx context.Context, err error) int {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ExitInterrupt
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindUpstream:
		return ExitConnectionErr
	case apperrors.KindInvalidRange, apperrors.KindEmptyResult, apperrors.KindFormat:
		return ExitDataError
	default:
		return ExitDataError
	}
}

// initialize loads configuration and sets up logging
func (cli *CLI) initialize() error {
	configPath := os.Getenv("FUTURESDATA_CONFIG_PATH")
	if configPath == "" {
		configPath = ConfigFile
	}

	cfg, err := config.NewManager(configPath, nil).Load()
	if err != nil {
		return err
	}
	cli.config = cfg

	logMgr, err := logger.NewManager(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cli.logMgr = logMgr
	cli.logger = logMgr.ComponentLogger("cli")
	return nil
}

// handleFetch handles the 'fetch' command: retrieve every requested metric,
// align the series on a shared timestamp axis, and write the CSV artifact.
func (cli *CLI) handleFetch(ctx context.Context, args []string) error {
	flags, err := parseFetchFlags(args)
	if err != nil {
		return err
	}
	if flags.Help {
		printCommandHelp("fetch")
		return nil
	}

	// Flags override file and environment configuration.
	fetchCfg := cli.config.Fetch
	if flags.Symbol != "" {
		fetchCfg.Symbol = flags.Symbol
	}
	if flags.Resolution != "" {
		fetchCfg.Resolution = flags.Resolution
	}
	if len(flags.Metrics) > 0 {
		fetchCfg.Metrics = flags.Metrics
	}
	if flags.Days > 0 {
		fetchCfg.Days = flags.Days
		fetchCfg.Start, fetchCfg.End = "", ""
	}
	if flags.Start != "" {
		fetchCfg.Start = flags.Start
	}
	if flags.End != "" {
		fetchCfg.End = flags.End
	}
	if flags.Output != "" {
		fetchCfg.Output = flags.Output
	}

	// Re-check the range pairing: flag merging can produce a lone bound
	// that Range would otherwise silently ignore.
	if (fetchCfg.Start == "") != (fetchCfg.End == "") {
		return fmt.Errorf("--start and --end must be used together")
	}

	symbol := strings.ToUpper(fetchCfg.Symbol)
	resolution, err := models.ParseResolution(fetchCfg.Resolution)
	if err != nil {
		return err
	}
	kinds, err := fetchCfg.Kinds()
	if err != nil {
		return err
	}
	start, end, err := fetchCfg.Range(time.Now())
	if err != nil {
		return err
	}

	ctx = logger.WithOperation(ctx, "fetch")
	ctx = logger.WithSymbol(ctx, symbol)
	log := cli.logMgr.WithContext(ctx)

	log.Info("starting fetch",
		"resolution", resolution.String(),
		"metrics", len(kinds),
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339))

	timeout, initialDelay, maxDelay, maxElapsed := cli.config.Binance.ParseDurations()
	client := binance.NewClient(binance.Config{
		BaseURL:           cli.config.Binance.BaseURL,
		Timeout:           timeout,
		RequestsPerSecond: cli.config.Binance.RequestsPerSecond,
		InitialRetryDelay: initialDelay,
		MaxRetryDelay:     maxDelay,
		MaxRetryElapsed:   maxElapsed,
	}, cli.logMgr.Logger())

	if err := client.Ping(ctx); err != nil {
		return apperrors.Upstream("cli.fetch", err, "cannot reach %s", cli.config.Binance.BaseURL)
	}

	// Fetch sequentially; the client rate limiter spaces out the requests.
	series := make([]*models.MetricSeries, 0, len(kinds))
	err = logger.TimedOperation(log, "fetch_metrics", func() error {
		for _, kind := range kinds {
			kindCtx := logger.WithMetric(ctx, kind.String())
			cli.logMgr.WithContext(kindCtx).Debug("fetching metric")

			s, err := client.FetchMetric(kindCtx, binance.FetchRequest{
				Symbol:     symbol,
				Kind:       kind,
				Resolution: resolution,
				Start:      start,
				End:        end,
			})
			if err != nil {
				return fmt.Errorf("fetching %s: %w", kind, err)
			}
			series = append(series, s)
		}
		return nil
	})
	if err != nil {
		return err
	}

	aligned, err := align.Align(series)
	if err != nil {
		return err
	}

	output := fetchCfg.Output
	if output == "" {
		output = defaultOutputName(symbol, start, end, resolution)
	}
	if err := aligned.WriteCSV(output); err != nil {
		return err
	}

	log.Info("fetch completed",
		"output", output,
		"rows", len(aligned.Rows),
		"columns", len(aligned.Columns))

	fmt.Printf("Wrote %d rows x %d columns for %s %s to %s\n",
		len(aligned.Rows), len(aligned.Columns)+1, symbol, resolution, output)
	return nil
}

// handlePlot handles the 'plot' command: read a previously exported CSV and
// render one dual-axis chart per metric it contains.
func (cli *CLI) handlePlot(ctx context.Context, args []string) error {
	flags, err := parsePlotFlags(args)
	if err != nil {
		return err
	}
	if flags.Help {
		printCommandHelp("plot")
		return nil
	}
	if flags.Input == "" {
		return fmt.Errorf("--input is required")
	}

	outputDir := cli.config.Chart.OutputDir
	if flags.OutputDir != "" {
		outputDir = flags.OutputDir
	}
	title := flags.Title
	if title == "" {
		title = titleFromFilename(flags.Input)
	}

	t, err := table.ReadCSV(flags.Input)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = logger.WithOperation(ctx, "plot")
	cli.logMgr.WithContext(ctx).Info("rendering charts",
		"input", flags.Input,
		"rows", len(t.Rows))

	renderer := chart.NewRenderer(outputDir, cli.logMgr.Logger())
	written, err := renderer.Render(t, title, flags.Metrics)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d charts to %s:\n", len(written), outputDir)
	for _, path := range written {
		fmt.Printf("  %s\n", path)
	}
	return nil
}

// defaultOutputName derives the CSV filename from the fetch parameters.
func defaultOutputName(symbol string, start, end time.Time, resolution models.Resolution) string {
	const layout = "20060102T1504"
	return fmt.Sprintf("%s_%s_%s_%s.csv",
		symbol, start.UTC().Format(layout), end.UTC().Format(layout), resolution)
}

// titleFromFilename recovers a chart title from an exported CSV filename,
// falling back to the bare filename for paths that were renamed.
func titleFromFilename(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".csv")
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return base
}

// Flag structures for parsing command line arguments

// FetchFlags represents flags for the fetch command
type FetchFlags struct {
	Symbol     string
	Resolution string
	Metrics    []string
	Start      string
	End        string
	Days       int
	Output     string
	Help       bool
}

// PlotFlags represents flags for the plot command
type PlotFlags struct {
	Input     string
	OutputDir string
	Title     string
	Metrics   []string
	Help      bool
}

// parseFetchFlags parses command line arguments for the fetch command
func parseFetchFlags(args []string) (*FetchFlags, error) {
	flags := &FetchFlags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--symbol", "-s":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--symbol requires a value")
			}
			flags.Symbol = args[i+1]
			i++
		case "--resolution", "-r":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--resolution requires a value")
			}
			flags.Resolution = args[i+1]
			i++
		case "--metrics", "-m":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--metrics requires a value")
			}
			flags.Metrics = strings.Split(args[i+1], ",")
			i++
		case "--start":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--start requires a value")
			}
			flags.Start = args[i+1]
			i++
		case "--end":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--end requires a value")
			}
			flags.End = args[i+1]
			i++
		case "--days", "-d":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--days requires a value")
			}
			days, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid days value: %w", err)
			}
			flags.Days = days
			i++
		case "--output", "-o":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--output requires a value")
			}
			flags.Output = args[i+1]
			i++
		case "--help", "-h":
			flags.Help = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parsePlotFlags parses command line arguments for the plot command
func parsePlotFlags(args []string) (*PlotFlags, error) {
	flags := &PlotFlags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--input", "-i":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--input requires a value")
			}
			flags.Input = args[i+1]
			i++
		case "--output-dir", "-o":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--output-dir requires a value")
			}
			flags.OutputDir = args[i+1]
			i++
		case "--title", "-t":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--title requires a value")
			}
			flags.Title = args[i+1]
			i++
		case "--metrics", "-m":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--metrics requires a value")
			}
			flags.Metrics = strings.Split(args[i+1], ",")
			i++
		case "--help", "-h":
			flags.Help = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// Help and usage functions

// printUsage prints the main usage information
func printUsage() {
	fmt.Printf(`%s - Binance USD-M Futures Data CLI v%s

USAGE:
    %s <command> [options]

COMMANDS:
    fetch       Fetch metrics, align them, and export a CSV table
    plot        Render dual-axis price/metric charts from an exported CSV

GLOBAL OPTIONS:
    --help, -h     Show help information
    --version, -v  Show version information

EXAMPLES:
    # Fetch all metrics for BTCUSDT at 1h over the last 7 days
    %s fetch --symbol BTCUSDT --resolution 1h --days 7

    # Fetch selected metrics over an explicit range
    %s fetch --symbol ETHUSDT --metrics ohlcv,open_interest,funding_rate \
        --start 2026-08-20T00:00:00Z --end 2026-08-27T00:00:00Z

    # Plot every metric in an exported table against the close price
    %s plot --input BTCUSDT_20260820T0000_20260827T0000_1h.csv --output-dir ./charts

METRICS:
    ohlcv, open_interest, top_account_ratio, top_position_ratio,
    global_ratio, basis, funding_rate, or the shorthand "all"

CONFIGURATION:
    Configuration can be provided via:
    - Config file: %s (JSON format)
    - Environment variables: FUTURESDATA_* (e.g., FUTURESDATA_SYMBOL)
    - A .env file in the working directory

    Example config file:
    {
        "fetch": {"symbol": "BTCUSDT", "resolution": "1h", "days": 7},
        "logging": {"level": "info", "format": "json"}
    }

For detailed help on any command, use: %s <command> --help
`, AppName, Version, AppName, AppName, AppName, AppName, ConfigFile, AppName)
}

// printCommandHelp prints detailed help for a specific command
func printCommandHelp(command string) {
	switch command {
	case "fetch":
		fmt.Printf(`%s fetch - Fetch, align, and export futures metrics

USAGE:
    %s fetch [options]

OPTIONS:
    --symbol, -s <symbol>       Perpetual contract symbol (default: BTCUSDT)
                                Examples: BTCUSDT, ETHUSDT, SOLUSDT

    --resolution, -r <res>      Time bucket width (default: 1h)
                                Supported: 5m, 15m, 30m, 1h, 2h, 4h, 6h, 12h, 1d

    --metrics, -m <list>        Comma-separated metric kinds (default: all)

    --start <time>              Range start (RFC 3339, e.g. 2026-08-20T00:00:00Z)
    --end <time>                Range end (RFC 3339, exclusive)
    --days, -d <days>           Trailing window in days instead of --start/--end

    --output, -o <path>         CSV output path
                                (default: {SYMBOL}_{start}_{end}_{resolution}.csv)

    --help, -h                  Show this help message

EXAMPLES:
    # All metrics for BTCUSDT at 1h over the last 7 days
    %s fetch --symbol BTCUSDT --resolution 1h --days 7

    # Open interest and funding only, explicit range, custom output
    %s fetch --symbol ETHUSDT --metrics open_interest,funding_rate \
        --start 2026-08-20T00:00:00Z --end 2026-08-27T00:00:00Z --output eth.csv

NOTES:
    - The derivatives statistics endpoints retain roughly 30 days of
      history; ranges older than that are rejected before any request
    - Funding rate has a fixed ~8h cadence; its rows carry empty cells
      at timestamps where no funding event occurred
    - Timestamps in the CSV are epoch milliseconds, UTC
`, AppName, AppName, AppName, AppName)

	case "plot":
		fmt.Printf(`%s plot - Render price/metric charts from an exported CSV

USAGE:
    %s plot [options]

OPTIONS:
    --input, -i <path>        CSV file produced by '%s fetch' (required)
    --output-dir, -o <dir>    Directory for HTML chart files (default: ./charts)
    --title, -t <title>       Chart title (default: derived from the filename)
    --metrics, -m <list>      Comma-separated metrics to plot
                              (default: every metric in the table)
    --help, -h                Show this help message

EXAMPLES:
    # One HTML chart per metric in the table
    %s plot --input BTCUSDT_20260820T0000_20260827T0000_1h.csv

    # Only the open interest chart
    %s plot --input BTCUSDT_20260820T0000_20260827T0000_1h.csv --metrics open_interest

    # Custom output directory and title
    %s plot --input eth.csv --output-dir ./eth-charts --title ETHUSDT

NOTES:
    - Each chart overlays the close price (left axis) with one metric's
      columns (right axis) on the shared timestamp axis
    - Gaps in a metric are left as breaks, not connected across
    - The input table must contain the ohlcv close column
`, AppName, AppName, AppName, AppName, AppName, AppName)

	default:
		fmt.Fprintf(os.Stderr, "No help available for command: %s\n", command)
		printUsage()
	}
}
