// Package config provides configuration management for the pair selector.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/robfig/cron/v3"

	"github.com/robert-malhotra/ifg-pair-selector/internal/grouper"
)

// Catalog backends.
const (
	BackendASF     = "asf"
	BackendCMR     = "cmr"
	BackendRecords = "records"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Catalog  CatalogConfig  `envPrefix:"CATALOG_"`
	ASF      ASFConfig      `envPrefix:"ASF_"`
	CMR      CMRConfig      `envPrefix:"CMR_"`
	Selector SelectorConfig `envPrefix:"SELECTOR_"`
	Mask     MaskConfig     `envPrefix:"MASK_"`
	Report   ReportConfig   `envPrefix:"REPORT_"`
	AOI      AOIConfig      `envPrefix:"AOI_"`
	Submit   SubmitConfig   `envPrefix:"SUBMIT_"`
	Tracing  TracingConfig  `envPrefix:"TRACING_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	// BaseURL prefixes links in STAC responses; empty omits them.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

// CatalogConfig selects where acquisitions come from.
type CatalogConfig struct {
	// Backend is "asf", "cmr" or "records".
	Backend     string `env:"BACKEND" envDefault:"asf"`
	RecordsPath string `env:"RECORDS_PATH" envDefault:""`
	MaxResults  int    `env:"MAX_RESULTS" envDefault:"2000"`
	// ResolveVersions backfills missing processing versions from ASF.
	ResolveVersions bool `env:"RESOLVE_VERSIONS" envDefault:"true"`
}

// ASFConfig contains ASF API client configuration.
type ASFConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.daac.asf.alaska.edu"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Retries int           `env:"RETRIES" envDefault:"3"`
}

// CMRConfig contains CMR API client configuration.
type CMRConfig struct {
	BaseURL  string        `env:"BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/search"`
	Provider string        `env:"PROVIDER" envDefault:"ASF"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Retries  int           `env:"RETRIES" envDefault:"3"`
}

// SelectorConfig holds the pairing policy and scheduling.
type SelectorConfig struct {
	ThresholdPercent float64       `env:"THRESHOLD_PERCENT" envDefault:"98"`
	Grouping         string        `env:"GROUPING" envDefault:"date"`
	AllowedTracks    []int         `env:"ALLOWED_TRACKS" envDefault:"" envSeparator:","`
	RequireBaseline  bool          `env:"REQUIRE_BASELINE" envDefault:"false"`
	MinSeparation    time.Duration `env:"MIN_SEPARATION" envDefault:"0s"`
	MaxSeparation    time.Duration `env:"MAX_SEPARATION" envDefault:"0s"`
	Platform         string        `env:"PLATFORM" envDefault:""`
	AOITag           string        `env:"AOI_TAG" envDefault:""`
	// Schedule is a standard cron expression; empty disables scheduled runs.
	Schedule string        `env:"SCHEDULE" envDefault:""`
	Window   time.Duration `env:"WINDOW" envDefault:"24h"`
	RunTTL   time.Duration `env:"RUN_TTL" envDefault:"1h"`
}

// MaskConfig locates the land mask. An empty path treats everything as land.
type MaskConfig struct {
	Path string `env:"PATH" envDefault:""`
}

// ReportConfig locates the decision logs.
type ReportConfig struct {
	Dir string `env:"DIR" envDefault:"./reports"`
}

// AOIConfig locates the AOI catalog.
type AOIConfig struct {
	DBPath string `env:"DB_PATH" envDefault:"./aoi.db"`
}

// SubmitConfig configures job submission.
type SubmitConfig struct {
	Endpoint string        `env:"ENDPOINT" envDefault:""`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Retries  int           `env:"RETRIES" envDefault:"3"`
	// DryRun logs jobs instead of posting them.
	DryRun bool `env:"DRY_RUN" envDefault:"true"`

	Project            string `env:"PROJECT" envDefault:"grfn"`
	JobType            string `env:"JOB_TYPE" envDefault:"job-standard-product-ifg-cfg"`
	JobVersion         string `env:"JOB_VERSION" envDefault:"v2.0.0"`
	Priority           int    `env:"PRIORITY" envDefault:"0"`
	MinMatch           int    `env:"MIN_MATCH" envDefault:"2"`
	ThresholdPixel     int    `env:"THRESHOLD_PIXEL" envDefault:"5"`
	AcquisitionVersion string `env:"ACQUISITION_VERSION" envDefault:""`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"ifg-pair-selector"`
	Exporter    string  `env:"EXPORTER" envDefault:"stdout"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// LoadDotEnv loads variables from the given files, ".env" when none is
// named. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Catalog.RecordsPath, &c.Mask.Path, &c.Report.Dir, &c.AOI.DBPath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	switch c.Catalog.Backend {
	case BackendASF, BackendCMR:
	case BackendRecords:
		if c.Catalog.RecordsPath == "" {
			return fmt.Errorf("catalog records path is required for the records backend")
		}
	default:
		return fmt.Errorf("catalog backend must be 'asf', 'cmr' or 'records', got %q", c.Catalog.Backend)
	}

	if c.Catalog.MaxResults < 1 {
		return fmt.Errorf("catalog max results must be at least 1, got %d", c.Catalog.MaxResults)
	}

	if c.ASF.BaseURL == "" {
		return fmt.Errorf("ASF base URL is required")
	}

	if c.ASF.Timeout <= 0 {
		return fmt.Errorf("ASF timeout must be positive, got %s", c.ASF.Timeout)
	}

	if c.CMR.BaseURL == "" {
		return fmt.Errorf("CMR base URL is required")
	}

	if c.CMR.Timeout <= 0 {
		return fmt.Errorf("CMR timeout must be positive, got %s", c.CMR.Timeout)
	}

	if c.ASF.Retries < 0 || c.CMR.Retries < 0 || c.Submit.Retries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}

	if c.Selector.ThresholdPercent <= 0 || c.Selector.ThresholdPercent > 100 {
		return fmt.Errorf("selector threshold must be in (0, 100], got %g", c.Selector.ThresholdPercent)
	}

	if _, err := grouper.ParseMode(c.Selector.Grouping); err != nil {
		return fmt.Errorf("selector grouping: %w", err)
	}

	if c.Selector.MinSeparation < 0 || c.Selector.MaxSeparation < 0 {
		return fmt.Errorf("selector separations must not be negative")
	}

	if c.Selector.MaxSeparation > 0 && c.Selector.MaxSeparation < c.Selector.MinSeparation {
		return fmt.Errorf("selector max separation (%s) must be >= min separation (%s)", c.Selector.MaxSeparation, c.Selector.MinSeparation)
	}

	if c.Selector.Schedule != "" {
		if _, err := cron.ParseStandard(c.Selector.Schedule); err != nil {
			return fmt.Errorf("invalid selector schedule %q: %w", c.Selector.Schedule, err)
		}
	}

	if c.Selector.Window <= 0 {
		return fmt.Errorf("selector window must be positive, got %s", c.Selector.Window)
	}

	if c.Selector.RunTTL <= 0 {
		return fmt.Errorf("selector run TTL must be positive, got %s", c.Selector.RunTTL)
	}

	if c.Report.Dir == "" {
		return fmt.Errorf("report directory is required")
	}

	if c.AOI.DBPath == "" {
		return fmt.Errorf("AOI database path is required")
	}

	if !c.Submit.DryRun && c.Submit.Endpoint == "" {
		return fmt.Errorf("submit endpoint is required unless dry run is enabled")
	}

	if c.Tracing.Enabled && c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "none" {
		return fmt.Errorf("tracing exporter must be 'stdout' or 'none', got %q", c.Tracing.Exporter)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be in [0, 1], got %g", c.Tracing.SampleRatio)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NewLogger builds a slog logger writing to w at the configured level and
// format. Unknown levels fall back to info.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
