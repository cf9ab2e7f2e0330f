// Package config provides centralized configuration management for the
// futures data tool. Configuration is loaded from a JSON file, overridden by
// FUTURESDATA_-prefixed environment variables, validated, and exposed as
// typed structures for the fetch, chart, and logging components.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/menglong24/Binance-Data-Analysis/internal/models"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Application metadata
	AppName    string `json:"app_name" env:"FUTURESDATA_APP_NAME"`
	Version    string `json:"version" env:"FUTURESDATA_VERSION"`
	ConfigPath string `json:"-" env:"FUTURESDATA_CONFIG_PATH"`

	// Fetch configuration
	Fetch FetchConfig `json:"fetch"`

	// Binance client configuration
	Binance BinanceConfig `json:"binance"`

	// Chart configuration
	Chart ChartConfig `json:"chart"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// FetchConfig configures what to fetch: the contract, the metrics, and the
// time range. The range is either an explicit [start, end) pair in RFC 3339
// or a trailing number of days ending now; Start/End win when both are set.
type FetchConfig struct {
	Symbol     string   `json:"symbol" env:"FUTURESDATA_SYMBOL"`         // Perpetual contract symbol, e.g. BTCUSDT
	Metrics    []string `json:"metrics" env:"FUTURESDATA_METRICS"`       // Metric kinds, or ["all"]
	Resolution string   `json:"resolution" env:"FUTURESDATA_RESOLUTION"` // Bucket width, e.g. 1h
	Days       int      `json:"days" env:"FUTURESDATA_DAYS"`             // Trailing window length in days
	Start      string   `json:"start" env:"FUTURESDATA_START"`           // RFC 3339 range start (optional)
	End        string   `json:"end" env:"FUTURESDATA_END"`               // RFC 3339 range end (optional)
	Output     string   `json:"output" env:"FUTURESDATA_OUTPUT"`         // CSV path; empty derives from symbol and range
}

// BinanceConfig configures the API client.
type BinanceConfig struct {
	BaseURL           string  `json:"base_url" env:"FUTURESDATA_BASE_URL"`                 // API base URL
	Timeout           string  `json:"timeout" env:"FUTURESDATA_HTTP_TIMEOUT"`              // HTTP request timeout
	RequestsPerSecond float64 `json:"requests_per_second" env:"FUTURESDATA_RATE_LIMIT"`    // Client-side rate limit
	InitialRetryDelay string  `json:"initial_retry_delay" env:"FUTURESDATA_RETRY_INITIAL"` // First retry delay
	MaxRetryDelay     string  `json:"max_retry_delay" env:"FUTURESDATA_RETRY_MAX"`         // Retry delay cap
	MaxRetryElapsed   string  `json:"max_retry_elapsed" env:"FUTURESDATA_RETRY_ELAPSED"`   // Total retry budget, "0" retries until cancelled
}

// ChartConfig configures the plot stage.
type ChartConfig struct {
	OutputDir string `json:"output_dir" env:"FUTURESDATA_CHART_DIR"` // Directory for HTML chart files
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string            `json:"level" env:"FUTURESDATA_LOG_LEVEL"`           // Log level: debug, info, warn, error
	Format        string            `json:"format" env:"FUTURESDATA_LOG_FORMAT"`         // Log format: json, text
	Output        string            `json:"output" env:"FUTURESDATA_LOG_OUTPUT"`         // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" env:"FUTURESDATA_LOG_FILE_PATH"`   // Log file path
	MaxSize       int               `json:"max_size" env:"FUTURESDATA_LOG_MAX_SIZE"`     // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" env:"FUTURESDATA_LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge        int               `json:"max_age" env:"FUTURESDATA_LOG_MAX_AGE"`       // Maximum log file age in days
	Compress      bool              `json:"compress" env:"FUTURESDATA_LOG_COMPRESS"`     // Compress old log files
	ContextFields map[string]string `json:"context_fields"`                              // Additional context fields
}

// Manager handles configuration loading and validation.
type Manager struct {
	config     *AppConfig
	configPath string
	logger     *slog.Logger
}

// NewManager creates a configuration manager. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewManager(configPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configPath: configPath,
		logger:     logger,
	}
}

// Load loads configuration with priority order:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (m *Manager) Load() (*AppConfig, error) {
	config := DefaultConfig()

	if m.configPath != "" {
		if err := m.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	m.loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	m.logger.Debug("configuration loaded",
		"config_path", m.configPath,
		"symbol", config.Fetch.Symbol,
		"resolution", config.Fetch.Resolution,
		"log_level", config.Logging.Level)

	return config, nil
}

// loadFromFile loads configuration from a JSON file. A missing file is not
// an error; defaults apply.
func (m *Manager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.logger.Debug("config file does not exist, using defaults", "path", m.configPath)
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", m.configPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", m.configPath, err)
	}

	return nil
}

// loadFromEnv applies FUTURESDATA_* environment variable overrides.
func (m *Manager) loadFromEnv(config *AppConfig) {
	if val := os.Getenv("FUTURESDATA_APP_NAME"); val != "" {
		config.AppName = val
	}

	// Fetch config
	if val := os.Getenv("FUTURESDATA_SYMBOL"); val != "" {
		config.Fetch.Symbol = val
	}
	if val := os.Getenv("FUTURESDATA_METRICS"); val != "" {
		config.Fetch.Metrics = strings.Split(val, ",")
	}
	if val := os.Getenv("FUTURESDATA_RESOLUTION"); val != "" {
		config.Fetch.Resolution = val
	}
	if val := os.Getenv("FUTURESDATA_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil {
			config.Fetch.Days = days
		}
	}
	if val := os.Getenv("FUTURESDATA_START"); val != "" {
		config.Fetch.Start = val
	}
	if val := os.Getenv("FUTURESDATA_END"); val != "" {
		config.Fetch.End = val
	}
	if val := os.Getenv("FUTURESDATA_OUTPUT"); val != "" {
		config.Fetch.Output = val
	}

	// Binance config
	if val := os.Getenv("FUTURESDATA_BASE_URL"); val != "" {
		config.Binance.BaseURL = val
	}
	if val := os.Getenv("FUTURESDATA_HTTP_TIMEOUT"); val != "" {
		config.Binance.Timeout = val
	}
	if val := os.Getenv("FUTURESDATA_RATE_LIMIT"); val != "" {
		if rps, err := strconv.ParseFloat(val, 64); err == nil {
			config.Binance.RequestsPerSecond = rps
		}
	}

	// Chart config
	if val := os.Getenv("FUTURESDATA_CHART_DIR"); val != "" {
		config.Chart.OutputDir = val
	}

	// Logging config
	if val := os.Getenv("FUTURESDATA_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("FUTURESDATA_LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("FUTURESDATA_LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
	if val := os.Getenv("FUTURESDATA_LOG_FILE_PATH"); val != "" {
		config.Logging.FilePath = val
	}
}

// Validate validates the configuration for consistency and required fields.
func (c *AppConfig) Validate() error {
	var errors []string

	// Fetch configuration
	if c.Fetch.Symbol == "" {
		errors = append(errors, "fetch.symbol is required")
	}
	if _, err := models.ParseResolution(c.Fetch.Resolution); err != nil {
		errors = append(errors, fmt.Sprintf("fetch.resolution: %v", err))
	}
	if _, err := c.Fetch.Kinds(); err != nil {
		errors = append(errors, fmt.Sprintf("fetch.metrics: %v", err))
	}
	if c.Fetch.Start == "" && c.Fetch.End == "" && c.Fetch.Days <= 0 {
		errors = append(errors, "fetch.days must be greater than 0 when no explicit range is set")
	}
	if c.Fetch.Start != "" {
		if _, err := time.Parse(time.RFC3339, c.Fetch.Start); err != nil {
			errors = append(errors, fmt.Sprintf("fetch.start is not RFC 3339: %v", err))
		}
	}
	if c.Fetch.End != "" {
		if _, err := time.Parse(time.RFC3339, c.Fetch.End); err != nil {
			errors = append(errors, fmt.Sprintf("fetch.end is not RFC 3339: %v", err))
		}
	}
	if (c.Fetch.Start == "") != (c.Fetch.End == "") {
		errors = append(errors, "fetch.start and fetch.end must be set together")
	}

	// Binance configuration
	if c.Binance.RequestsPerSecond <= 0 {
		errors = append(errors, "binance.requests_per_second must be greater than 0")
	}
	for name, val := range map[string]string{
		"binance.timeout":             c.Binance.Timeout,
		"binance.initial_retry_delay": c.Binance.InitialRetryDelay,
		"binance.max_retry_delay":     c.Binance.MaxRetryDelay,
		"binance.max_retry_elapsed":   c.Binance.MaxRetryElapsed,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid duration: %v", name, err))
		}
	}

	// Chart configuration
	if c.Chart.OutputDir == "" {
		errors = append(errors, "chart.output_dir is required")
	}

	// Logging configuration
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Kinds resolves the configured metric names to metric kinds. The single
// entry "all" selects every supported kind.
func (f *FetchConfig) Kinds() ([]models.MetricKind, error) {
	if len(f.Metrics) == 0 {
		return nil, fmt.Errorf("at least one metric is required")
	}
	if len(f.Metrics) == 1 && strings.EqualFold(strings.TrimSpace(f.Metrics[0]), "all") {
		return models.AllMetricKinds(), nil
	}

	kinds := make([]models.MetricKind, 0, len(f.Metrics))
	seen := make(map[models.MetricKind]struct{}, len(f.Metrics))
	for _, name := range f.Metrics {
		kind, err := models.ParseMetricKind(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[kind]; dup {
			return nil, fmt.Errorf("duplicate metric %q", kind)
		}
		seen[kind] = struct{}{}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Range resolves the configured time range against now. An explicit
// Start/End pair wins; otherwise the range is the trailing Days days ending
// at now, aligned down to the resolution bucket.
func (f *FetchConfig) Range(now time.Time) (start, end time.Time, err error) {
	if f.Start != "" && f.End != "" {
		start, err = time.Parse(time.RFC3339, f.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing start: %w", err)
		}
		end, err = time.Parse(time.RFC3339, f.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing end: %w", err)
		}
		return start.UTC(), end.UTC(), nil
	}

	res, err := models.ParseResolution(f.Resolution)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = now.UTC().Truncate(res.Duration())
	start = end.Add(-time.Duration(f.Days) * 24 * time.Hour)
	return start, end, nil
}

// ParseDurations returns the parsed duration fields. Fields that are empty
// or unset parse to zero, which the client maps to its defaults.
func (b *BinanceConfig) ParseDurations() (timeout, initial, max, elapsed time.Duration) {
	timeout, _ = time.ParseDuration(b.Timeout)
	initial, _ = time.ParseDuration(b.InitialRetryDelay)
	max, _ = time.ParseDuration(b.MaxRetryDelay)
	elapsed, _ = time.ParseDuration(b.MaxRetryElapsed)
	return timeout, initial, max, elapsed
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "futuresdata",
		Version: "1.0.0",
		Fetch: FetchConfig{
			Symbol:     "BTCUSDT",
			Metrics:    []string{"all"},
			Resolution: "1h",
			Days:       7,
		},
		Binance: BinanceConfig{
			BaseURL:           "https://fapi.binance.com",
			Timeout:           "30s",
			RequestsPerSecond: 4,
			InitialRetryDelay: "500ms",
			MaxRetryDelay:     "30s",
			MaxRetryElapsed:   "5m",
		},
		Chart: ChartConfig{
			OutputDir: "./charts",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "",
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "futuresdata",
			},
		},
	}
}
