package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingCoordinator(steps *[]string, mu *sync.Mutex, runnersErr, workErr error) *shutdownCoordinator {
	rec := func(s string) {
		mu.Lock()
		*steps = append(*steps, s)
		mu.Unlock()
	}
	return &shutdownCoordinator{
		stop:         func() { rec("stop") },
		waitRunners:  func(context.Context) error { rec("waitRunners"); return runnersErr },
		closeDone:    func() { rec("closeDone") },
		dropQueued:   func() { rec("dropQueued") },
		waitWork:     func(context.Context) error { rec("waitWork"); return workErr },
		afterFailure: func(error) { rec("afterFailure") },
	}
}

func TestShutdownCoordinator_Order(t *testing.T) {
	var (
		mu    sync.Mutex
		steps []string
	)
	sc := recordingCoordinator(&steps, &mu, nil, nil)

	require.NoError(t, sc.Run(context.Background()))
	assert.Equal(t, []string{"stop", "waitRunners", "closeDone", "dropQueued", "waitWork"}, steps)
}

func TestShutdownCoordinator_RunnersTimeoutSkipsOnlyWorkWait(t *testing.T) {
	var (
		mu    sync.Mutex
		steps []string
	)
	sc := recordingCoordinator(&steps, &mu, context.DeadlineExceeded, nil)

	err := sc.Run(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"stop", "waitRunners", "closeDone", "dropQueued", "afterFailure"}, steps)
}

func TestShutdownCoordinator_Idempotent_Concurrent(t *testing.T) {
	var (
		mu    sync.Mutex
		steps []string
	)
	wantErr := errors.New("work still held")
	sc := recordingCoordinator(&steps, &mu, nil, wantErr)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.ErrorIs(t, sc.Run(context.Background()), wantErr)
		}()
	}
	wg.Wait()

	counts := map[string]int{}
	for _, s := range steps {
		counts[s]++
	}
	for _, s := range []string{"stop", "waitRunners", "closeDone", "dropQueued", "waitWork", "afterFailure"} {
		assert.Equalf(t, 1, counts[s], "step %q", s)
	}
}
