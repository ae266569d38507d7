package executor

import (
	"context"
	"sync"
)

// shutdownCoordinator encapsulates the shutdown sequence of a Loop.
// It is a wiring helper: it doesn't own the queue or the done channel; it
// orchestrates stopping, waiting, closing and dropping in a deterministic order.
//
// Run is safe for concurrent calls; the sequence executes exactly once and
// every caller observes the same result.
type shutdownCoordinator struct {
	stop         func()
	waitRunners  func(ctx context.Context) error
	closeDone    func()
	dropQueued   func()
	waitWork     func(ctx context.Context) error
	afterFailure func(err error)

	once sync.Once
	err  error
}

// Run executes the shutdown sequence exactly once:
// 1) reject new handlers and stop Run callers
// 2) wait for Run callers to leave
// 3) close the done channel so owners of outstanding work can give it up
// 4) drop handlers still queued
// 5) wait for outstanding work to be released
//
// A ctx expiring in step 2 or 5 aborts the remaining waits but never skips
// steps 3 and 4.
func (sc *shutdownCoordinator) Run(ctx context.Context) error {
	sc.once.Do(func() {
		if sc.stop != nil {
			sc.stop()
		}
		var err error
		if sc.waitRunners != nil {
			err = sc.waitRunners(ctx)
		}
		if sc.closeDone != nil {
			sc.closeDone()
		}
		if sc.dropQueued != nil {
			sc.dropQueued()
		}
		if err == nil && sc.waitWork != nil {
			err = sc.waitWork(ctx)
		}
		if err != nil && sc.afterFailure != nil {
			sc.afterFailure(err)
		}
		sc.err = err
	})
	return sc.err
}
