package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds every spriteforge setting.
type Config struct {
	History HistoryConfig `toml:"history" yaml:"history"`
	Import  ImportConfig  `toml:"import" yaml:"import"`
	Watch   WatchConfig   `toml:"watch" yaml:"watch"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// HistoryConfig configures the undo history.
type HistoryConfig struct {
	MaxEntries     int      `toml:"max_entries" yaml:"max_entries"`
	CoalesceWindow Duration `toml:"coalesce_window" yaml:"coalesce_window"`
	CoalesceMaxOps int      `toml:"coalesce_max_ops" yaml:"coalesce_max_ops"`
}

// ImportConfig configures Aseprite decoding.
type ImportConfig struct {
	// CacheSize is the number of decoded files kept; 0 disables the cache.
	CacheSize   int      `toml:"cache_size" yaml:"cache_size"`
	Concurrency int      `toml:"concurrency" yaml:"concurrency"`
	Timeout     Duration `toml:"timeout" yaml:"timeout"`
}

// WatchConfig configures source file watching.
type WatchConfig struct {
	Debounce Duration `toml:"debounce" yaml:"debounce"`
	Ignore   []string `toml:"ignore" yaml:"ignore"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	// File enables a rotating log file next to stderr output.
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		History: HistoryConfig{
			MaxEntries:     1000,
			CoalesceWindow: Duration{500 * time.Millisecond},
			CoalesceMaxOps: 50,
		},
		Import: ImportConfig{
			CacheSize:   32,
			Concurrency: 4,
			Timeout:     Duration{30 * time.Second},
		},
		Watch: WatchConfig{
			Debounce: Duration{150 * time.Millisecond},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks every setting and returns all failures joined.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, path string, value any, msg string) {
		if !ok {
			errs = append(errs, &ValidationError{Path: path, Value: value, Message: msg})
		}
	}

	check(c.History.MaxEntries > 0, "history.max_entries", c.History.MaxEntries, "must be positive")
	check(c.History.CoalesceWindow.Duration >= 0, "history.coalesce_window", c.History.CoalesceWindow, "must not be negative")
	check(c.History.CoalesceMaxOps >= 0, "history.coalesce_max_ops", c.History.CoalesceMaxOps, "must not be negative")
	check(c.Import.CacheSize >= 0, "import.cache_size", c.Import.CacheSize, "must not be negative")
	check(c.Import.Concurrency > 0, "import.concurrency", c.Import.Concurrency, "must be positive")
	check(c.Import.Timeout.Duration >= 0, "import.timeout", c.Import.Timeout, "must not be negative")
	check(c.Watch.Debounce.Duration > 0, "watch.debounce", c.Watch.Debounce, "must be positive")

	_, err := ParseLevel(c.Logging.Level)
	check(err == nil, "logging.level", c.Logging.Level, "must be debug, info, warn or error")
	format := strings.ToLower(c.Logging.Format)
	check(format == "text" || format == "json", "logging.format", c.Logging.Format, "must be text or json")
	if c.Logging.File != "" {
		check(c.Logging.MaxSizeMB > 0, "logging.max_size_mb", c.Logging.MaxSizeMB, "must be positive")
		check(c.Logging.MaxBackups >= 0, "logging.max_backups", c.Logging.MaxBackups, "must not be negative")
		check(c.Logging.MaxAgeDays >= 0, "logging.max_age_days", c.Logging.MaxAgeDays, "must not be negative")
	}
	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration with time.Duration.String.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
