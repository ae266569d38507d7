package spawn

import (
	"context"
	"sync"
)

// Token receives a coroutine's completion: the error it failed with (nil on
// success) and its result. Complete is called exactly once.
type Token[R any] interface {
	Complete(err error, result R)
}

type detached[R any] struct{}

func (detached[R]) Complete(error, R) {}

func (detached[R]) isDetached() {}

// Detached returns a token that discards the result. A failure of a detached
// coroutine is reported to the WithUnhandledHandler handler, or logged at
// Fatal level when none is set.
func Detached[R any]() Token[R] { return detached[R]{} }

type callback[R any] func(error, R)

func (c callback[R]) Complete(err error, r R) { c(err, r) }

// Callback returns a token invoking fn on completion. fn runs on the
// coroutine's goroutine while its executor still attributes execution to it.
func Callback[R any](fn func(err error, result R)) Token[R] { return callback[R](fn) }

// Future is a token whose outcome can be awaited from any goroutine.
type Future[R any] struct {
	once sync.Once
	done chan struct{}
	val  R
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture[R any]() *Future[R] { return &Future[R]{done: make(chan struct{})} }

// Complete resolves the future. Calls after the first are ignored.
func (f *Future[R]) Complete(err error, r R) {
	f.once.Do(func() {
		f.val, f.err = r, err
		close(f.done)
	})
}

// Done is closed once the future is resolved.
func (f *Future[R]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future is resolved or ctx is done.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func isDetached(t any) bool {
	_, ok := t.(interface{ isDetached() })
	return ok
}
