package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{DSN: "x.db", Driver: DriverSQLite, LogFormat: "json", LogLevel: "info"}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
		expect      error
	}{
		{description: "valid", mutate: func(c *Config) {}},
		{description: "duckdb", mutate: func(c *Config) { c.Driver = DriverDuckDB }},
		{description: "empty dsn", mutate: func(c *Config) { c.DSN = "" }, expect: ErrInvalidDSN},
		{description: "bad driver", mutate: func(c *Config) { c.Driver = "postgres" }, expect: ErrInvalidDriver},
		{description: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, expect: ErrInvalidLogFormat},
		{description: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, expect: ErrInvalidLogLevel},
	}
	for _, testCase := range testCases {
		cfg := validConfig()
		testCase.mutate(cfg)
		assert.Equal(t, testCase.expect, ValidateConfig(cfg), testCase.description)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, "sqlite-ml.db", cfg.DSN)
		assert.Equal(t, DriverSQLite, cfg.Driver)
		assert.Equal(t, "console", cfg.LogFormat)
		assert.Equal(t, "ml_kmeans_state", cfg.StateTable)
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv("SQLITEML_DRIVER", "DuckDB")
		t.Setenv("SQLITEML_LOG_LEVEL", "debug")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, DriverDuckDB, cfg.Driver)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
	t.Run("env file", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(envFile, []byte("SQLITEML_DSN=from-file.db\nSQLITEML_STATE_TABLE=runs\n"), 0o644))
		for _, key := range []string{"SQLITEML_DSN", "SQLITEML_STATE_TABLE"} {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
		cfg, err := LoadConfig(envFile)
		require.NoError(t, err)
		assert.Equal(t, "from-file.db", cfg.DSN)
		assert.Equal(t, "runs", cfg.StateTable)
	})
	t.Run("invalid", func(t *testing.T) {
		t.Setenv("SQLITEML_LOG_FORMAT", "xml")
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		assert.Equal(t, ErrInvalidLogFormat, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := validConfig()
	cfg.LogLevel = "warn"
	logger := NewLogger(cfg, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, `"message":"shown"`))
	assert.True(t, strings.Contains(out, `"driver":"sqlite"`))
}
