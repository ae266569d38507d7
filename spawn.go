package spawn

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/spawn/executor"
)

// Spawn launches body as a coroutine bound to ex and returns its identity
// without waiting for it to start. The coroutine counts as outstanding work
// on ex until it completes, at which point token receives its outcome.
//
// Bind the coroutine to an *executor.Strand to serialize it with other
// coroutines and handlers of the same strand.
func Spawn[R any](ex executor.Executor, body Body[R], token Token[R], opts ...Option) (uuid.UUID, error) {
	cfg, err := applyOptions(defaultConfig(), opts)
	if err != nil {
		return uuid.Nil, err
	}
	return spawn(ex, uuid.Nil, body, token, cfg)
}

// SpawnIn launches body on the executor of ctx.
func SpawnIn[R any](ctx executor.Context, body Body[R], token Token[R], opts ...Option) (uuid.UUID, error) {
	if ctx == nil {
		return uuid.Nil, ErrNilExecutor
	}
	return Spawn(ctx.Executor(), body, token, opts...)
}

// SpawnChild launches body on the parent's executor (and strand) with the
// parent's configuration, overridden by opts. The child's name is not
// inherited.
func SpawnChild[R any](parent Yield, body Body[R], token Token[R], opts ...Option) (uuid.UUID, error) {
	if parent.ref.reg == nil {
		return uuid.Nil, violation(parent.id, ErrHandleExpired)
	}
	p := parent.ref.reg.lookup(parent.ref)
	if p == nil {
		return uuid.Nil, violation(parent.id, ErrHandleExpired)
	}
	base := p.cfg
	base.Name = ""
	cfg, err := applyOptions(base, opts)
	if err != nil {
		return uuid.Nil, err
	}
	return spawn(parent.ex, parent.id, body, token, cfg)
}

func spawn[R any](ex executor.Executor, parent uuid.UUID, body Body[R], token Token[R], cfg config) (uuid.UUID, error) {
	switch {
	case ex == nil:
		return uuid.Nil, ErrNilExecutor
	case body == nil:
		return uuid.Nil, ErrNilBody
	case token == nil:
		return uuid.Nil, ErrNilToken
	}
	if cb, ok := token.(callback[R]); ok && cb == nil {
		return uuid.Nil, ErrNilToken
	}
	select {
	case <-ex.Done():
		return uuid.Nil, ErrExecutorClosed
	default:
	}

	u := unitPool.Get()
	u.reset(ex, cfg, parent)
	u.ref = units.acquire(u)
	y := Yield{ref: u.ref, id: u.id, ex: ex, policy: PolicyRaise}

	ex.OnWorkStarted()
	if err := ex.Post(u.lane.dispatch); err != nil {
		units.release(u.ref)
		ex.OnWorkFinished()
		u.clear()
		unitPool.Put(u)
		if errors.Is(err, executor.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrExecutorClosed, err)
		}
		return uuid.Nil, err
	}

	id := u.id
	u.inst.spawned.Add(1)
	u.inst.live.Add(1)
	u.log.Debug("coroutine spawned")

	go run(u, y, body, token)
	return id, nil
}

// run is the coroutine goroutine.
func run[R any](u *unit, y Yield, body Body[R], token Token[R]) {
	l := u.lane

	select {
	case <-l.resume:
	case <-u.ex.Done():
		var zero R
		u.abandoned.Store(true)
		finish(u, token, zero, ErrAbandoned)
		return
	}

	u.setState(stateRunning)

	var (
		r        R
		err      error
		returned bool
		violated bool
	)
	defer func() {
		if violated {
			// Let the violation take the process down.
			return
		}
		if !returned {
			// runtime.Goexit in the body.
			err = ErrCoroutineExited
		}
		if u.abandoned.Load() {
			err = ErrAbandoned
		}
		finish(u, token, r, err)
	}()

	r, err = invoke(u, y, body, &violated)
	returned = true
}

// invoke runs body, converting escaping panics into errors. Protocol
// violations are re-raised.
func invoke[R any](u *unit, y Yield, body Body[R], violated *bool) (r R, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		switch v := p.(type) {
		case abandonSignal:
			err = ErrAbandoned
		case *ProtocolViolationError:
			*violated = true
			u.log.WithError(v).Error("suspension protocol violated")
			panic(v)
		case *OperationError:
			err = v
		default:
			err = &PanicError{Coroutine: u.id, Value: p, Stack: debug.Stack()}
		}
	}()
	return body(y)
}

// finish delivers the outcome to token and releases the unit. A dispatch
// handler is parked on the lane unless the coroutine was abandoned.
func finish[R any](u *unit, token Token[R], r R, err error) {
	l := u.lane
	u.disarm()
	u.setState(stateCompleted)

	abandoned := u.abandoned.Load()
	log := u.log.WithFields(logrus.Fields{
		"suspensions": u.suspensions.Load(),
		"resumptions": u.resumptions.Load(),
	})
	u.inst.lifetime.Record(time.Since(u.start).Seconds())
	switch {
	case abandoned:
		u.inst.abandoned.Add(1)
	case err != nil:
		u.inst.failed.Add(1)
	default:
		u.inst.completed.Add(1)
	}

	if err != nil && u.cfg.ErrorTagging {
		err = newCoroutineTaggedError(err, u.id, u.cfg.Name)
	}

	fault := deliver(u, log, token, r, err, abandoned)
	if fault != nil {
		if abandoned {
			log.WithField("panic", fault).Error("completion token panicked")
		} else {
			l.fault = fault
		}
	}

	units.release(u.ref)
	u.inst.live.Add(-1)
	log.Debug("coroutine completed")
	ex := u.ex
	u.clear()
	unitPool.Put(u)
	ex.OnWorkFinished()
	close(l.exited)

	if _, ok := fault.(*ProtocolViolationError); ok && abandoned {
		// No executor thread to raise it on.
		panic(fault)
	}
}

// deliver completes token and returns whatever it panicked with.
func deliver[R any](u *unit, log logrus.FieldLogger, token Token[R], r R, err error, abandoned bool) (fault any) {
	defer func() { fault = recover() }()

	if !isDetached(token) {
		token.Complete(err, r)
		return nil
	}
	switch {
	case err == nil:
	case abandoned:
		log.WithError(err).Warn("detached coroutine abandoned")
	case u.cfg.Unhandled != nil:
		u.cfg.Unhandled(u.id, u.cfg.Name, err)
	default:
		log.WithError(err).Fatal("detached coroutine failed")
	}
	return nil
}
