package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/spawn/metrics"
)

type brokenInvariant struct{ msg string }

func (b *brokenInvariant) Error() string { return b.msg }
func (*brokenInvariant) Unrecoverable() {}

func TestLoop_UnrecoverablePanicPropagates(t *testing.T) {
	p := metrics.NewBasicProvider()
	l := newTestLoop(t, WithMetrics(p))
	fatal := &brokenInvariant{msg: "invariant broken"}

	var after bool
	require.NoError(t, l.Post(func() { panic(fatal) }))
	require.NoError(t, l.Post(func() { after = true }))

	assert.PanicsWithValue(t, fatal, func() { l.Run() })
	assert.False(t, after, "the loop must not keep running handlers past the panic")
	assert.EqualValues(t, 1, p.CounterValue(metrics.HandlersPanicked))

	// Bookkeeping is consistent: the loop can be run again.
	assert.Equal(t, 1, l.Pending())
	assert.Equal(t, 1, l.Run())
	assert.True(t, after)
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestStrand_UnrecoverablePanicPropagates(t *testing.T) {
	l := newTestLoop(t)
	s := newTestStrand(t, l)
	fatal := &brokenInvariant{msg: "invariant broken"}

	var order []int
	require.NoError(t, s.Post(func() { order = append(order, 1) }))
	require.NoError(t, s.Post(func() { panic(fatal) }))
	require.NoError(t, s.Post(func() { order = append(order, 3) }))

	assert.PanicsWithValue(t, fatal, func() { l.Run() })
	assert.Equal(t, []int{1}, order)

	// The remaining handlers were handed to a new drain.
	l.Run()
	assert.Equal(t, []int{1, 3}, order)
	assert.Zero(t, s.Pending())
}

func TestLoop_WaitForReleasesWaiterOnExpiry(t *testing.T) {
	l := newTestLoop(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	returned := make(chan error, 1)
	// waitFor returns only after its waiter goroutine has left cond.Wait.
	go func() { returned <- l.waitFor(ctx, func() bool { return false }) }()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not released when ctx expired")
	}
}
