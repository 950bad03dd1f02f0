// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and ALLOT_ environment variables over them.
// - Errors wrap this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/allot/internal/domain/matching"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the record store: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file used when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// SeedFile is an optional YAML fixture imported at start-up.
	SeedFile string `koanf:"seed_file"`

	// RandomSeed makes allocation runs reproducible; 0 seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// CompetencyRule combines per-skill competency checks: all or last.
	CompetencyRule string `koanf:"competency_rule"`

	// ExpirySchedule is the cron spec of the phase expiry job; empty disables it.
	ExpirySchedule string `koanf:"expiry_schedule"`

	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBuckets overrides the latency histogram buckets, in milliseconds.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant key=value labels added to every metric.
	MetricsLabels []string `koanf:"metrics_labels"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Store:            StoreMemory,
		SQLitePath:       "data/allot.db",
		CompetencyRule:   "all",
		ExpirySchedule:   "@every 1h",
		RequestTimeout:   60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		MetricsNamespace: "allot",
		MetricsSubsystem: "allocation",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreSQLite:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Rule(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ExpirySchedule != "" {
		if _, err := cron.ParseStandard(c.ExpirySchedule); err != nil {
			return fmt.Errorf("%w: expiry_schedule: %w", ErrInvalidConfig, err)
		}
	}
	return c.validateMetrics()
}

func (c *Config) validateMetrics() error {
	for key, name := range map[string]string{
		"metrics_namespace": c.MetricsNamespace,
		"metrics_subsystem": c.MetricsSubsystem,
	} {
		if name != "" && !metricName.MatchString(name) {
			return fmt.Errorf("%w: %s %q is not a valid metric name", ErrInvalidConfig, key, name)
		}
	}
	for i := 1; i < len(c.MetricsBuckets); i++ {
		if c.MetricsBuckets[i] <= c.MetricsBuckets[i-1] {
			return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	if _, err := c.Labels(); err != nil {
		return err
	}
	return nil
}

// Labels parses MetricsLabels into a label set.
func (c *Config) Labels() (map[string]string, error) {
	labels := make(map[string]string, len(c.MetricsLabels))
	for _, pair := range c.MetricsLabels {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		switch {
		case !ok || value == "":
			return nil, fmt.Errorf("%w: metrics label %q is not key=value", ErrInvalidConfig, pair)
		case !metricName.MatchString(name) || strings.HasPrefix(name, "__"):
			return nil, fmt.Errorf("%w: metrics label name %q is invalid", ErrInvalidConfig, name)
		}
		if _, dup := labels[name]; dup {
			return nil, fmt.Errorf("%w: metrics label %q is repeated", ErrInvalidConfig, name)
		}
		labels[name] = strings.TrimSpace(value)
	}
	return labels, nil
}

// Rule parses CompetencyRule.
func (c *Config) Rule() (matching.CompetencyRule, error) {
	return matching.ParseRule(c.CompetencyRule)
}
