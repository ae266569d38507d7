package threads

import (
	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/spawn/metrics"
)

// config holds Group configuration.
type config struct {
	// Name identifies the group in logs.
	// Default: "threads".
	Name string

	// NamePrefix is used to generate member names: "<prefix>-<n>".
	// Default: "worker".
	NamePrefix string

	// MaxThreads caps the number of members. Zero means unlimited.
	// Default: 0.
	MaxThreads uint

	// Logger receives lifecycle events and entry panics.
	// Default: logrus.StandardLogger().
	Logger logrus.FieldLogger

	// Metrics records started/joined/detached/failed threads.
	// Default: metrics.NoopProvider.
	Metrics metrics.Provider
}

func defaultConfig() config {
	return config{
		Name:       "threads",
		NamePrefix: "worker",
		MaxThreads: 0,
		Logger:     logrus.StandardLogger(),
		Metrics:    metrics.NewNoopProvider(),
	}
}

func validateConfig(cfg *config) error {
	if cfg.NamePrefix == "" {
		return errorc.With(ErrInvalidConfig, errorc.String("NamePrefix", "must not be empty"))
	}
	return nil
}

// Option configures a Group.
type Option func(*config) error

// WithName sets the group name used in logs.
func WithName(name string) Option {
	return func(cfg *config) error { cfg.Name = name; return nil }
}

// WithNamePrefix sets the prefix of generated thread names.
func WithNamePrefix(prefix string) Option {
	return func(cfg *config) error {
		if prefix == "" {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithNamePrefix requires a non-empty prefix"))
		}
		cfg.NamePrefix = prefix
		return nil
	}
}

// WithMaxThreads caps the number of members (must be > 0).
func WithMaxThreads(n uint) Option {
	return func(cfg *config) error {
		if n == 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMaxThreads requires n > 0"))
		}
		cfg.MaxThreads = n
		return nil
	}
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
