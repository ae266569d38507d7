package executor

import (
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/spawn/metrics"
)

// config holds Loop and Strand configuration.
type config struct {
	// Name identifies the executor in logs.
	// Default: "loop" for a Loop, "strand" for a Strand.
	Name string

	// Logger receives handler panics and shutdown diagnostics.
	// Default: logrus.StandardLogger().
	Logger logrus.FieldLogger

	// Metrics records posted/executed/panicked/abandoned handlers.
	// Default: metrics.NoopProvider.
	Metrics metrics.Provider

	// StrandBatch bounds how many handlers a Strand runs before giving the
	// underlying worker back to other handlers.
	// Default: 64.
	StrandBatch int
}

func defaultConfig() config {
	return config{
		Logger:      logrus.StandardLogger(),
		Metrics:     metrics.NewNoopProvider(),
		StrandBatch: 64,
	}
}

func validateConfig(cfg *config) error {
	if cfg.StrandBatch <= 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("StrandBatch", strconv.Itoa(cfg.StrandBatch)))
	}
	return nil
}

func buildConfig(name string, opts []Option) (*config, error) {
	cfg := defaultConfig()
	cfg.Name = name
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Option configures a Loop or a Strand.
type Option func(*config) error

// WithName sets the name used in log fields.
func WithName(name string) Option {
	return func(cfg *config) error { cfg.Name = name; return nil }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithStrandBatch sets how many handlers a Strand runs per turn (must be > 0).
func WithStrandBatch(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithStrandBatch requires n > 0"))
		}
		cfg.StrandBatch = n
		return nil
	}
}
