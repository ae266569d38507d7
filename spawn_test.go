package spawn

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/spawn/executor"
	"github.com/ygrebnov/spawn/metrics"
	"github.com/ygrebnov/spawn/threads"
)

func TestSpawn_ResumesWithOperationResult(t *testing.T) {
	l := newTestLoop(t)
	f := NewFuture[int]()

	id, err := Spawn(l, BodyValue(func(y Yield) int {
		return Call(y, async(20, nil)) + Call(y, async(22, nil))
	}), f, quiet())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	runAndCheck(t, l)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSpawn_SynchronousCompletion(t *testing.T) {
	l := newTestLoop(t)
	f := NewFuture[string]()

	_, err := Spawn(l, BodyValue(func(y Yield) string {
		return Call(y, func(complete func(string, error)) { complete("now", nil) })
	}), f, quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now", v)
}

func TestSpawn_SuspensionsMatchResumptions(t *testing.T) {
	l := newTestLoop(t)
	p := metrics.NewBasicProvider()

	for i := 0; i < 5; i++ {
		_, err := Spawn(l, BodyVoid(func(y Yield) {
			for j := 0; j < 3; j++ {
				Wait(y, asyncErr(nil))
			}
		}), Detached[Void](), quiet(), WithMetrics(p))
		require.NoError(t, err)
	}

	runAndCheck(t, l)
	assert.EqualValues(t, 15, p.CounterValue(metrics.CoroutineSuspensions))
	assert.EqualValues(t, 15, p.CounterValue(metrics.CoroutineResumptions))
	assert.EqualValues(t, 5, p.CounterValue(metrics.CoroutinesSpawned))
	assert.EqualValues(t, 5, p.CounterValue(metrics.CoroutinesCompleted))
	assert.EqualValues(t, 0, p.UpDownValue(metrics.CoroutinesLive))
	snap, ok := p.HistogramSnapshot(metrics.CoroutineLifetimeSecs)
	require.True(t, ok)
	assert.EqualValues(t, 5, snap.Count)
}

func TestSpawn_OperationsCompleteInOrder(t *testing.T) {
	l := newTestLoop(t)
	var order []string

	_, err := Spawn(l, BodyVoid(func(y Yield) {
		Wait(y, func(complete func(error)) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				order = append(order, "op1")
				complete(nil)
			}()
		})
		Wait(y, func(complete func(error)) {
			go func() {
				order = append(order, "op2")
				complete(nil)
			}()
		})
	}), Detached[Void](), quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.Equal(t, []string{"op1", "op2"}, order)
}

func TestSpawn_FailureAfterSuspendReachesHandlerOnce(t *testing.T) {
	l := newTestLoop(t)
	boom := errors.New("boom")
	var calls atomic.Int32
	var got error

	_, err := Spawn(l, BodyError[int](func(y Yield) error {
		Wait(y, asyncErr(nil))
		return boom
	}), Callback(func(err error, _ int) {
		calls.Add(1)
		got = err
	}), quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.EqualValues(t, 1, calls.Load())
	assert.ErrorIs(t, got, boom)
}

func TestSpawn_PanicBecomesPanicError(t *testing.T) {
	l := newTestLoop(t)
	f := NewFuture[Void]()

	id, err := Spawn(l, BodyVoid(func(y Yield) {
		Reschedule(y)
		panic("kaput")
	}), f, quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	_, err = f.Wait(context.Background())
	require.ErrorIs(t, err, ErrCoroutinePanicked)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaput", pe.Value)
	assert.Equal(t, id, pe.Coroutine)
	assert.NotEmpty(t, pe.Stack)
}

func TestSpawn_StrandExcludesConcurrentCoroutines(t *testing.T) {
	const (
		coroutines = 8
		steps      = 25
	)
	l := newTestLoop(t)
	s, err := executor.NewStrand(l)
	require.NoError(t, err)

	var inside, overlaps, done atomic.Int32
	enter := func() {
		if inside.Add(1) > 1 {
			overlaps.Add(1)
		}
		runtime.Gosched()
		inside.Add(-1)
	}

	for i := 0; i < coroutines; i++ {
		_, err := Spawn(s, BodyVoid(func(y Yield) {
			for j := 0; j < steps; j++ {
				enter()
				if j%2 == 0 {
					Reschedule(y)
				} else {
					Wait(y, asyncErr(nil))
				}
			}
		}), Callback(func(err error, _ Void) {
			if err == nil {
				done.Add(1)
			}
		}), quiet())
		require.NoError(t, err)
	}

	logger, _ := nullLogger()
	g, err := threads.NewGroup(threads.WithLogger(logger))
	require.NoError(t, err)
	_, err = g.CreateThreads(func() { l.Run() }, 4)
	require.NoError(t, err)
	require.NoError(t, g.Join())

	assert.Zero(t, overlaps.Load(), "strand-bound coroutines overlapped")
	assert.EqualValues(t, coroutines, done.Load())
	assert.Zero(t, units.live())
}

func TestSpawn_RescheduleRunsQueuedHandlersFirst(t *testing.T) {
	l := newTestLoop(t)
	var ranBefore atomic.Bool

	_, err := Spawn(l, BodyVoid(func(y Yield) {
		var ran atomic.Bool
		assert.NoError(t, l.Post(func() { ran.Store(true) }))
		Reschedule(y)
		ranBefore.Store(ran.Load())
	}), Detached[Void](), quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.True(t, ranBefore.Load())
}

func TestSpawnChild_InheritsExecutorAndConfig(t *testing.T) {
	l := newTestLoop(t)
	p := metrics.NewBasicProvider()
	var order []string
	var parentID, childExec uuid.UUID

	_, err := Spawn(l, BodyVoid(func(y Yield) {
		parentID = y.ID()
		_, err := SpawnChild(y, BodyVoid(func(c Yield) {
			order = append(order, "child")
			if c.Executor() == y.Executor() {
				childExec = c.ID()
			}
		}), Detached[Void]())
		assert.NoError(t, err)
		order = append(order, "parent")
		Reschedule(y)
		order = append(order, "parent-resumed")
	}), Detached[Void](), quiet(), WithMetrics(p), WithName("parent"))
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.Equal(t, []string{"parent", "child", "parent-resumed"}, order)
	assert.NotEqual(t, uuid.Nil, parentID)
	assert.NotEqual(t, uuid.Nil, childExec)
	assert.EqualValues(t, 2, p.CounterValue(metrics.CoroutinesSpawned), "child must inherit the metrics provider")
}

func TestSpawnIn_UsesContextExecutor(t *testing.T) {
	l := newTestLoop(t)
	f := NewFuture[int]()
	_, err := SpawnIn(l, BodyValue(func(y Yield) int {
		assert.Same(t, l, y.Executor())
		return 7
	}), f, quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSpawn_InvalidArguments(t *testing.T) {
	l := newTestLoop(t)
	body := BodyValue(func(Yield) int { return 1 })

	_, err := Spawn[int](nil, body, Detached[int]())
	assert.ErrorIs(t, err, ErrNilExecutor)
	_, err = Spawn(l, nil, Detached[int]())
	assert.ErrorIs(t, err, ErrNilBody)
	_, err = Spawn(l, body, nil)
	assert.ErrorIs(t, err, ErrNilToken)
	_, err = Spawn(l, body, Callback[int](nil))
	assert.ErrorIs(t, err, ErrNilToken)
	_, err = Spawn(l, body, Detached[int](), WithLogger(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = SpawnIn[int](nil, body, Detached[int]())
	assert.ErrorIs(t, err, ErrNilExecutor)

	assert.Zero(t, l.Outstanding())
	assert.Zero(t, units.live())
}

type rejectingExecutor struct {
	done    chan struct{}
	started atomic.Int32
	ended   atomic.Int32
}

func (e *rejectingExecutor) Post(func()) error      { return errors.New("queue full") }
func (e *rejectingExecutor) OnWorkStarted()         { e.started.Add(1) }
func (e *rejectingExecutor) OnWorkFinished()        { e.ended.Add(1) }
func (e *rejectingExecutor) Done() <-chan struct{} { return e.done }

func TestSpawn_PostFailureReleasesUnit(t *testing.T) {
	ex := &rejectingExecutor{done: make(chan struct{})}
	var ran atomic.Bool

	_, err := Spawn(ex, BodyVoid(func(Yield) { ran.Store(true) }), Detached[Void](), quiet())
	require.EqualError(t, err, "queue full")
	assert.False(t, ran.Load())
	assert.Equal(t, ex.started.Load(), ex.ended.Load())
	assert.Zero(t, units.live())
}

func TestSpawn_AfterShutdown(t *testing.T) {
	l := newTestLoop(t)
	require.NoError(t, l.Shutdown(context.Background()))

	_, err := Spawn(l, BodyVoid(func(Yield) {}), Detached[Void](), quiet())
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestSpawn_AbandonedWhileSuspended(t *testing.T) {
	l := newTestLoop(t)
	p := metrics.NewBasicProvider()
	logger, _ := nullLogger()
	f := NewFuture[int]()

	suspended := make(chan struct{})
	var late func(int, error)
	var deferred atomic.Bool

	_, err := Spawn(l, BodyValue(func(y Yield) int {
		defer deferred.Store(true)
		return Call(y, func(complete func(int, error)) {
			late = complete
			close(suspended)
		})
	}), f, WithLogger(logger), WithMetrics(p))
	require.NoError(t, err)

	ran := make(chan int, 1)
	go func() { ran <- l.Run() }()
	<-suspended

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	<-ran

	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.True(t, deferred.Load(), "deferred calls of an abandoned body must run")
	assert.Zero(t, units.live())
	assert.Zero(t, l.Outstanding())
	assert.EqualValues(t, 1, p.CounterValue(metrics.CoroutinesAbandoned))

	assert.NotPanics(t, func() { late(1, nil) }, "late completion of an abandoned operation is dropped")
}

func TestSpawn_AbandonedBeforeStart(t *testing.T) {
	l := newTestLoop(t)
	logger, hook := nullLogger()
	var ran atomic.Bool

	_, err := Spawn(l, BodyVoid(func(Yield) { ran.Store(true) }), Detached[Void](), WithLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))

	assert.False(t, ran.Load())
	assert.Zero(t, units.live())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSpawn_DetachedFailureGoesToUnhandledHandler(t *testing.T) {
	l := newTestLoop(t)
	boom := errors.New("boom")
	var (
		gotID   uuid.UUID
		gotName string
		gotErr  error
	)

	id, err := Spawn(l, BodyError[Void](func(y Yield) error {
		Reschedule(y)
		return boom
	}), Detached[Void](), quiet(), WithName("worker"), WithUnhandledHandler(func(id uuid.UUID, name string, err error) {
		gotID, gotName, gotErr = id, name, err
	}))
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "worker", gotName)
	assert.ErrorIs(t, gotErr, boom)
}

func TestSpawn_TokenPanicSurfacesOnExecutor(t *testing.T) {
	p := metrics.NewBasicProvider()
	l := newTestLoop(t, executor.WithMetrics(p))

	_, err := Spawn(l, BodyValue(func(Yield) int { return 1 }), Callback(func(error, int) {
		panic("handler failed")
	}), quiet())
	require.NoError(t, err)

	runAndCheck(t, l)
	assert.EqualValues(t, 1, p.CounterValue(metrics.HandlersPanicked))
}

func TestSpawn_ErrorTagging(t *testing.T) {
	l := newTestLoop(t)
	f := NewFuture[Void]()

	id, err := Spawn(l, BodyError[Void](func(y Yield) error {
		Wait(y, asyncErr(errors.New("io failure")))
		return nil
	}), f, quiet(), WithErrorTagging(), WithName("reader"))
	require.NoError(t, err)

	runAndCheck(t, l)
	_, err = f.Wait(context.Background())
	require.ErrorIs(t, err, ErrOperationFailed)

	gotID, ok := ExtractCoroutineID(err)
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	name, ok := ExtractCoroutineName(err)
	require.True(t, ok)
	assert.Equal(t, "reader", name)
}
