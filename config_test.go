package spawn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/spawn/metrics"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()
	assert.Empty(t, cfg.Name)
	assert.Same(t, logrus.StandardLogger(), cfg.Logger)
	assert.IsType(t, metrics.NoopProvider{}, cfg.Metrics)
	assert.Nil(t, cfg.Unhandled)
	assert.False(t, cfg.ErrorTagging)
	require.NoError(t, validateConfig(&cfg))
}

func TestOptions_Apply(t *testing.T) {
	p := metrics.NewBasicProvider()
	cfg, err := applyOptions(defaultConfig(), []Option{
		nil,
		WithName("n"),
		WithMetrics(p),
		WithErrorTagging(),
		WithUnhandledHandler(func(uuid.UUID, string, error) {}),
	})
	require.NoError(t, err)
	assert.Equal(t, "n", cfg.Name)
	assert.Same(t, p, cfg.Metrics)
	assert.True(t, cfg.ErrorTagging)
	assert.NotNil(t, cfg.Unhandled)
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "nil logger", opt: WithLogger(nil)},
		{name: "nil metrics", opt: WithMetrics(nil)},
		{name: "nil unhandled handler", opt: WithUnhandledHandler(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applyOptions(defaultConfig(), []Option{tt.opt})
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
