package main

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "SQLITEML"

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// Config validation errors
var (
	ErrInvalidDSN       = errors.New("dsn cannot be empty")
	ErrInvalidDriver    = errors.New("driver must be 'sqlite' or 'duckdb'")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// Config holds process-wide settings; command flags override the per-run
// defaults.
type Config struct {
	DSN       string `envconfig:"DSN" default:"sqlite-ml.db"`
	Driver    string `envconfig:"DRIVER" default:"sqlite"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	// StateTable stores k-means iteration states (sqlite only).
	StateTable string `envconfig:"STATE_TABLE" default:"ml_kmeans_state"`
	// DumpMetrics logs collected metrics when a command finishes.
	DumpMetrics bool `envconfig:"DUMP_METRICS" default:"false"`
}

// LoadConfig reads an optional .env file (envFile, or ".env" when empty)
// and then the SQLITEML_* environment.
func LoadConfig(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	cfg.Driver = strings.ToLower(cfg.Driver)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.DSN == "" {
		return ErrInvalidDSN
	}
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverDuckDB {
		return ErrInvalidDriver
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func NewLogger(cfg *Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("driver", cfg.Driver).Logger()
}
