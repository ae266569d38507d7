package spawn

import (
	"github.com/google/uuid"

	"github.com/ygrebnov/spawn/executor"
)

// ErrorPolicy decides how a failed operation is delivered at the suspension
// point.
type ErrorPolicy int

const (
	// PolicyRaise panics with *OperationError at the suspension point.
	PolicyRaise ErrorPolicy = iota
	// PolicyReport stores the error in the handle's slot and returns normally.
	PolicyReport
)

func (p ErrorPolicy) String() string {
	if p == PolicyReport {
		return "report"
	}
	return "raise"
}

// Yield is the handle a coroutine body uses to suspend on asynchronous
// operations. It is a small value; copies refer to the same coroutine.
// A handle must only be used from its own coroutine's body, and becomes
// invalid once the coroutine completes.
type Yield struct {
	ref    ref
	id     uuid.UUID
	ex     executor.Executor
	policy ErrorPolicy
	slot   *error
}

// Executor returns the executor the coroutine resumes on.
func (y Yield) Executor() executor.Executor { return y.ex }

// ID returns the coroutine identity.
func (y Yield) ID() uuid.UUID { return y.id }

// Policy returns the handle's error policy.
func (y Yield) Policy() ErrorPolicy { return y.policy }

// Valid reports whether the coroutine has not completed yet.
func (y Yield) Valid() bool { return y.ref.reg != nil && y.ref.reg.lookup(y.ref) != nil }

// WithErrorSlot derives a handle that reports operation failures into *slot
// instead of panicking. A nil slot yields a raising handle.
func (y Yield) WithErrorSlot(slot *error) Yield {
	if slot == nil {
		return y.Raising()
	}
	y.policy, y.slot = PolicyReport, slot
	return y
}

// Raising derives a handle with PolicyRaise.
func (y Yield) Raising() Yield {
	y.policy, y.slot = PolicyRaise, nil
	return y
}

// unit resolves the handle, panicking if the coroutine has completed.
func (y Yield) unit() *unit {
	if y.ref.reg == nil {
		panic(violation(y.id, ErrHandleExpired))
	}
	u := y.ref.reg.lookup(y.ref)
	if u == nil {
		panic(violation(y.id, ErrHandleExpired))
	}
	return u
}

// Call suspends the coroutine on an asynchronous operation. initiate starts
// the operation and must arrange for complete to be called exactly once,
// from any goroutine, possibly before initiate returns. The coroutine resumes
// on its executor with the outcome:
//   - on success the value is returned and a bound error slot is cleared;
//   - on failure with PolicyReport the error is stored in the slot and the
//     operation's value is returned;
//   - on failure with PolicyRaise Call panics with *OperationError.
func Call[T any](y Yield, initiate func(complete func(T, error))) T {
	u := y.unit()
	if u.abandoned.Load() {
		// No executor thread waits for this coroutine any more.
		panic(abandonSignal{})
	}
	if s := u.getState(); s != stateRunning {
		panic(violation(y.id, ErrNotRunning))
	}
	l := u.lane

	op := u.arm()
	u.setState(stateSuspended)
	u.initiate(func() {
		initiate(func(v T, err error) { op.complete(outcome{value: v, err: err}) })
	})
	u.suspend()

	o := <-l.mailbox
	v, _ := o.value.(T)
	if o.err == nil {
		if y.slot != nil {
			*y.slot = nil
		}
		return v
	}
	if y.policy == PolicyReport {
		*y.slot = o.err
		return v
	}
	panic(&OperationError{Coroutine: y.id, Err: o.err})
}

// Wait suspends the coroutine on an operation that produces only an error.
func Wait(y Yield, initiate func(complete func(error))) {
	Call(y, func(complete func(Void, error)) {
		initiate(func(err error) { complete(Void{}, err) })
	})
}

// Reschedule suspends the coroutine and immediately queues its resumption,
// letting handlers queued before it on the executor run first.
func Reschedule(y Yield) {
	Wait(y, func(complete func(error)) { complete(nil) })
}
