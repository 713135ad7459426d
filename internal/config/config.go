// Package config loads mmdb settings from a YAML file, environment
// variables and defaults, in that order of priority: env > file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/mmdb/core/seq"
	"github.com/FocuswithJustin/mmdb/internal/logging"
)

// Proof handling modes for LoadConfig.Proofs.
const (
	ProofsValidate = "validate"
	ProofsSkip     = "skip"
)

// Config is the full mmdb configuration.
type Config struct {
	Seq  SeqConfig  `yaml:"seq"`
	Load LoadConfig `yaml:"load"`
	Log  LogConfig  `yaml:"log"`
}

// SeqConfig configures sequence number assignment.
type SeqConfig struct {
	IntervalSize int `yaml:"interval_size"`
}

// LoadConfig configures database loading.
type LoadConfig struct {
	// MaxErrors stops a load after this many errors. Negative means no limit.
	MaxErrors int `yaml:"max_errors"`
	// PrematureEOFLabel stops the load right after the statement with this
	// label, closing any open scopes.
	PrematureEOFLabel string `yaml:"premature_eof_label"`
	// Proofs is "validate" or "skip".
	Proofs string `yaml:"proofs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Seq:  SeqConfig{IntervalSize: seq.DefaultIntervalSize},
		Load: LoadConfig{MaxErrors: logging.DefaultMaxErrors, Proofs: ProofsValidate},
		Log:  LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file; a missing file is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MMDB_INTERVAL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Seq.IntervalSize = i
		}
	}
	if v := os.Getenv("MMDB_MAX_ERRORS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Load.MaxErrors = i
		}
	}
	if v := os.Getenv("MMDB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MMDB_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Seq.IntervalSize < 1 || int64(c.Seq.IntervalSize) > seq.MaxSeq/2 {
		return fmt.Errorf("seq.interval_size must be between 1 and %d", seq.MaxSeq/2)
	}
	if c.Load.MaxErrors == 0 {
		return fmt.Errorf("load.max_errors must be non-zero (negative for no limit)")
	}
	switch c.Load.Proofs {
	case ProofsValidate, ProofsSkip:
	default:
		return fmt.Errorf("load.proofs must be %q or %q, got %q", ProofsValidate, ProofsSkip, c.Load.Proofs)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

// InitLogging configures the global logger from the log section.
func (c Config) InitLogging() {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	logging.InitLogger(level, format)
}
