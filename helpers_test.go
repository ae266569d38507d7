package spawn

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/spawn/executor"
)

func newTestLoop(t *testing.T, opts ...executor.Option) *executor.Loop {
	t.Helper()
	logger, _ := test.NewNullLogger()
	l, err := executor.New(append([]executor.Option{executor.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return l
}

func nullLogger() (*logrus.Logger, *test.Hook) { return test.NewNullLogger() }

// quiet returns options that silence coroutine logging.
func quiet() Option {
	logger, _ := test.NewNullLogger()
	return WithLogger(logger)
}

// async returns an initiate function completing with (v, err) on another
// goroutine.
func async[T any](v T, err error) func(func(T, error)) {
	return func(complete func(T, error)) { go complete(v, err) }
}

// asyncErr returns an initiate function for Wait completing with err on
// another goroutine.
func asyncErr(err error) func(func(error)) {
	return func(complete func(error)) { go complete(err) }
}

// runAndCheck runs l until it is out of work and asserts that every
// coroutine released its registry slot.
func runAndCheck(t *testing.T, l *executor.Loop) {
	t.Helper()
	l.Run()
	require.Zero(t, units.live(), "registry must be empty once the loop is out of work")
	require.Zero(t, l.Outstanding())
}
