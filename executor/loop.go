package executor

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/spawn/metrics"
)

// Loop is a run-until-idle executor. Handlers posted with Post are executed by
// the goroutines calling Run, RunOne or Poll. Loop also implements Context.
type Loop struct {
	cfg *config
	log logrus.FieldLogger

	mu        sync.Mutex
	cond      *sync.Cond
	handlers  *queue.Queue
	work      int64 // registered via OnWorkStarted
	executing int   // handlers currently running
	runners   int   // goroutines inside Run, RunOne or Poll
	stopped   bool
	closed    bool
	done      chan struct{}

	shutdown shutdownCoordinator

	posted    metrics.Counter
	executed  metrics.Counter
	panicked  metrics.Counter
	abandoned metrics.Counter
}

// New creates a Loop.
func New(opts ...Option) (*Loop, error) {
	cfg, err := buildConfig("loop", opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:       cfg,
		log:       cfg.Logger.WithField("executor", cfg.Name),
		handlers:  queue.New(),
		done:      make(chan struct{}),
		posted:    cfg.Metrics.Counter(metrics.HandlersPosted, metrics.WithDescription("handlers posted to a loop")),
		executed:  cfg.Metrics.Counter(metrics.HandlersExecuted, metrics.WithDescription("handlers executed by a loop")),
		panicked:  cfg.Metrics.Counter(metrics.HandlersPanicked, metrics.WithDescription("handlers that panicked")),
		abandoned: cfg.Metrics.Counter(metrics.HandlersAbandoned, metrics.WithDescription("handlers dropped at shutdown")),
	}
	l.cond = sync.NewCond(&l.mu)
	l.shutdown = shutdownCoordinator{
		stop:        l.closeAndStop,
		waitRunners: func(ctx context.Context) error { return l.waitFor(ctx, func() bool { return l.runners == 0 }) },
		closeDone:   func() { close(l.done) },
		dropQueued:  l.dropQueued,
		waitWork:    func(ctx context.Context) error { return l.waitFor(ctx, func() bool { return l.work == 0 }) },
		afterFailure: func(err error) {
			l.log.WithError(err).Warn("shutdown finished before all work was released")
		},
	}
	return l, nil
}

// Executor returns l.
func (l *Loop) Executor() Executor { return l }

// Post queues fn. It returns ErrClosed after Shutdown.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return ErrNilHandler
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.handlers.Add(fn)
	// Broadcast: shutdown waiters share the condition with runners.
	l.cond.Broadcast()
	l.mu.Unlock()
	l.posted.Add(1)
	return nil
}

// OnWorkStarted registers outstanding work.
func (l *Loop) OnWorkStarted() {
	l.mu.Lock()
	l.work++
	l.mu.Unlock()
}

// OnWorkFinished releases outstanding work.
func (l *Loop) OnWorkFinished() {
	l.mu.Lock()
	l.work--
	if l.work < 0 {
		l.mu.Unlock()
		panic(Namespace + ": OnWorkFinished without matching OnWorkStarted")
	}
	if l.work == 0 {
		l.cond.Broadcast()
	}
	l.mu.Unlock()
}

// Done is closed by Shutdown.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes handlers until the Loop is stopped or runs out of work.
// It returns the number of handlers executed. Run may be called from any
// number of goroutines at once.
func (l *Loop) Run() int { return l.run(0, true) }

// RunOne executes at most one handler, blocking until one is available or the
// Loop is stopped or runs out of work.
func (l *Loop) RunOne() int { return l.run(1, true) }

// Poll executes ready handlers without blocking.
func (l *Loop) Poll() int { return l.run(0, false) }

// Stop makes Run callers return as soon as their current handler finishes.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Stopped reports whether the Loop is stopped, either explicitly or because it
// ran out of work.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Restart clears the stopped state so Run can be called again.
// It has no effect after Shutdown.
func (l *Loop) Restart() {
	l.mu.Lock()
	if !l.closed {
		l.stopped = false
	}
	l.mu.Unlock()
}

// Pending returns the number of queued handlers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handlers.Length()
}

// Outstanding returns the amount of work registered with OnWorkStarted and
// not yet released.
func (l *Loop) Outstanding() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.work
}

// Shutdown stops the Loop for good. See the package documentation for the
// sequence. It must not be called from a handler running on l.
func (l *Loop) Shutdown(ctx context.Context) error {
	return l.shutdown.Run(ctx)
}

func (l *Loop) run(limit int, block bool) int {
	n := 0

	l.mu.Lock()
	l.runners++
	for limit <= 0 || n < limit {
		if l.stopped {
			break
		}
		if l.handlers.Length() > 0 {
			fn := l.handlers.Remove().(func())
			l.executing++
			l.mu.Unlock()

			fatal := l.execute(fn)

			l.mu.Lock()
			l.executing--
			n++
			if fatal != nil {
				l.leave()
				l.mu.Unlock()
				panic(fatal)
			}
			continue
		}
		if l.work == 0 && l.executing == 0 {
			// Out of work: every runner leaves until Restart.
			l.stopped = true
			l.cond.Broadcast()
			break
		}
		if !block {
			break
		}
		l.cond.Wait()
	}
	l.leave()
	l.mu.Unlock()

	return n
}

// leave deregisters a runner. l.mu must be held.
func (l *Loop) leave() {
	l.runners--
	if l.runners == 0 {
		l.cond.Broadcast()
	}
}

// execute runs fn, containing its panics. An Unrecoverable panic value is
// returned for the caller to re-raise once the loop state is consistent.
func (l *Loop) execute(fn func()) (fatal any) {
	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			if isUnrecoverable(r) {
				l.log.WithField("panic", r).Error("unrecoverable handler panic")
				fatal = r
			} else {
				l.log.WithField("panic", r).Error("handler panicked")
			}
		}
		l.executed.Add(1)
	}()
	fn()
	return nil
}

func (l *Loop) closeAndStop() {
	l.mu.Lock()
	l.closed = true
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *Loop) dropQueued() {
	l.mu.Lock()
	n := l.handlers.Length()
	for l.handlers.Length() > 0 {
		l.handlers.Remove()
	}
	l.mu.Unlock()

	if n > 0 {
		l.abandoned.Add(int64(n))
		l.log.WithField("handlers", n).Debug("dropped queued handlers at shutdown")
	}
}

// waitFor blocks until cond holds (evaluated under l.mu) or ctx is done.
func (l *Loop) waitFor(ctx context.Context, cond func() bool) error {
	ready := make(chan struct{})
	cancelled := false // guarded by l.mu
	go func() {
		l.mu.Lock()
		for !cond() && !cancelled {
			l.cond.Wait()
		}
		l.mu.Unlock()
		close(ready)
	}()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		cancelled = true
		l.cond.Broadcast()
		l.mu.Unlock()
		<-ready
		return ctx.Err()
	}
}
