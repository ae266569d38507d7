package spawn

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/spawn/metrics"
)

// UnhandledFunc receives the failure of a detached coroutine.
type UnhandledFunc func(id uuid.UUID, name string, err error)

// config holds per-coroutine configuration.
type config struct {
	// Name is a human-readable coroutine name used in logs and tagged errors.
	// Default: "" (unnamed).
	Name string

	// Logger receives lifecycle events.
	// Default: logrus.StandardLogger().
	Logger logrus.FieldLogger

	// Metrics records spawn/completion/suspension activity.
	// Default: metrics.NoopProvider.
	Metrics metrics.Provider

	// Unhandled receives failures of detached coroutines. When nil, such a
	// failure is logged at Fatal level, which terminates the process.
	// Default: nil.
	Unhandled UnhandledFunc

	// ErrorTagging wraps completion errors with the coroutine ID and name.
	// Default: false (disabled).
	ErrorTagging bool
}

func defaultConfig() config {
	return config{
		Name:         "",
		Logger:       logrus.StandardLogger(),
		Metrics:      metrics.NewNoopProvider(),
		Unhandled:    nil,
		ErrorTagging: false,
	}
}

// validateConfig performs lightweight invariant checks.
func validateConfig(cfg *config) error {
	if cfg.Logger == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("Logger", "must not be nil"))
	}
	if cfg.Metrics == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("Metrics", "must not be nil"))
	}
	return nil
}

func applyOptions(cfg config, opts []Option) (config, error) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// Option configures a spawned coroutine.
type Option func(*config) error

// WithName names the coroutine.
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

// WithUnhandledHandler routes failures of detached coroutines to fn instead
// of terminating the process.
func WithUnhandledHandler(fn UnhandledFunc) Option {
	return func(cfg *config) error {
		if fn == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithUnhandledHandler requires a non-nil handler"))
		}
		cfg.Unhandled = fn
		return nil
	}
}

// WithErrorTagging wraps completion errors with the coroutine ID and name.
// Use ExtractCoroutineID / ExtractCoroutineName to read them back.
func WithErrorTagging() Option {
	return func(cfg *config) error { cfg.ErrorTagging = true; return nil }
}
