package spawn

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/spawn/executor"
	"github.com/ygrebnov/spawn/metrics"
	"github.com/ygrebnov/spawn/pool"
)

type state int32

const (
	stateCreated state = iota
	stateRunning
	stateSuspended
	stateCompleted
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateRunning:
		return "running"
	case stateSuspended:
		return "suspended"
	case stateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	units    = newRegistry()
	unitPool = pool.NewDynamic(func() *unit { return &unit{} })
)

// unit is a coroutine execution unit. Its body runs on a dedicated
// goroutine, but only while a dispatch handler of its executor is parked on
// the lane waiting for it to suspend or exit.
type unit struct {
	id     uuid.UUID
	parent uuid.UUID
	ex     executor.Executor
	cfg    config
	log    logrus.FieldLogger
	inst   instruments
	ref    ref
	lane   *lane
	start  time.Time

	state     atomic.Int32
	pending   atomic.Pointer[operation]
	abandoned atomic.Bool

	suspensions atomic.Int64
	resumptions atomic.Int64
}

// lane is the handoff between executor handlers and the unit goroutine. A
// new lane is created per spawn so that a late dispatch or completion never
// reaches a recycled unit.
type lane struct {
	resume  chan struct{}
	yield   chan struct{}
	exited  chan struct{}
	mailbox chan outcome

	// fault is a token panic re-raised on the dispatching executor thread.
	fault any
}

type outcome struct {
	value any
	err   error
}

func newLane() *lane {
	return &lane{
		resume:  make(chan struct{}),
		yield:   make(chan struct{}),
		exited:  make(chan struct{}),
		mailbox: make(chan outcome, 1),
	}
}

// dispatch is the executor handler that starts or resumes the unit. It
// blocks the calling executor thread until the unit suspends or exits.
func (l *lane) dispatch() {
	select {
	case l.resume <- struct{}{}:
	case <-l.exited:
		return
	}
	select {
	case <-l.yield:
	case <-l.exited:
		if l.fault != nil {
			panic(l.fault)
		}
	}
}

type instruments struct {
	spawned     metrics.Counter
	completed   metrics.Counter
	failed      metrics.Counter
	abandoned   metrics.Counter
	live        metrics.UpDownCounter
	suspensions metrics.Counter
	resumptions metrics.Counter
	lifetime    metrics.Histogram
}

func newInstruments(p metrics.Provider) instruments {
	return instruments{
		spawned:     p.Counter(metrics.CoroutinesSpawned, metrics.WithDescription("coroutines spawned")),
		completed:   p.Counter(metrics.CoroutinesCompleted, metrics.WithDescription("coroutines completed successfully")),
		failed:      p.Counter(metrics.CoroutinesFailed, metrics.WithDescription("coroutines completed with an error")),
		abandoned:   p.Counter(metrics.CoroutinesAbandoned, metrics.WithDescription("coroutines abandoned at executor shutdown")),
		live:        p.UpDownCounter(metrics.CoroutinesLive, metrics.WithDescription("coroutines not yet completed")),
		suspensions: p.Counter(metrics.CoroutineSuspensions, metrics.WithDescription("coroutine suspensions")),
		resumptions: p.Counter(metrics.CoroutineResumptions, metrics.WithDescription("coroutine resumptions")),
		lifetime: p.Histogram(metrics.CoroutineLifetimeSecs,
			metrics.WithDescription("coroutine lifetime"), metrics.WithUnit("s")),
	}
}

func (u *unit) reset(ex executor.Executor, cfg config, parent uuid.UUID) {
	u.id = uuid.New()
	u.parent = parent
	u.ex = ex
	u.cfg = cfg
	u.inst = newInstruments(cfg.Metrics)
	u.lane = newLane()
	u.start = time.Now()
	u.state.Store(int32(stateCreated))
	u.pending.Store(nil)
	u.abandoned.Store(false)
	u.suspensions.Store(0)
	u.resumptions.Store(0)

	fields := logrus.Fields{"coroutine": u.id}
	if cfg.Name != "" {
		fields["name"] = cfg.Name
	}
	if parent != uuid.Nil {
		fields["parent"] = parent
	}
	u.log = cfg.Logger.WithFields(fields)
}

// clear drops references held by a unit returned to the pool.
func (u *unit) clear() {
	u.ex = nil
	u.cfg = config{}
	u.log = nil
	u.inst = instruments{}
	u.lane = nil
	u.ref = ref{}
}

func (u *unit) getState() state { return state(u.state.Load()) }

func (u *unit) setState(s state) { u.state.Store(int32(s)) }

// operation is one armed suspension. Its completion callback may be invoked
// from any goroutine.
type operation struct {
	id    uuid.UUID
	ex    executor.Executor
	lane  *lane
	log   logrus.FieldLogger
	state atomic.Int32
}

const (
	opArmed int32 = iota
	opCompleted
	opDisarmed
)

func (u *unit) arm() *operation {
	op := &operation{id: u.id, ex: u.ex, lane: u.lane, log: u.log}
	u.pending.Store(op)
	return op
}

// complete deposits the outcome and posts the resumption. Completing twice
// panics with a ProtocolViolationError; completing an operation whose
// coroutine was abandoned or has already exited is a no-op.
func (op *operation) complete(o outcome) {
	if !op.state.CompareAndSwap(opArmed, opCompleted) {
		if op.state.Load() == opCompleted {
			panic(violation(op.id, ErrDoubleCompletion))
		}
		op.log.Debug("late completion dropped: coroutine no longer waits for it")
		return
	}
	op.lane.mailbox <- o
	if err := op.ex.Post(op.lane.dispatch); err != nil {
		// The unit observes Done and unwinds on its own.
		op.log.WithError(err).Debug("resumption not posted")
	}
}

// disarm detaches the pending operation, if any, so a later completion is
// dropped. It reports whether the operation was still armed.
func (u *unit) disarm() bool {
	op := u.pending.Swap(nil)
	if op == nil {
		return false
	}
	return op.state.CompareAndSwap(opArmed, opDisarmed)
}

// initiate runs fn, which starts the armed operation. If fn panics or exits,
// the coroutine is put back in the running state before the panic goes on: a
// still-armed operation is disarmed, and one that already completed is
// resumed and its outcome discarded, so no resumption stays queued.
func (u *unit) initiate(fn func()) {
	returned := false
	defer func() {
		if returned {
			return
		}
		if u.disarm() {
			u.setState(stateRunning)
			return
		}
		u.suspend()
		<-u.lane.mailbox
	}()
	fn()
	returned = true
}

// suspend hands the executor thread back and blocks until the unit's
// resumption is dispatched. If the executor shuts down first, the body is
// unwound with abandonSignal.
func (u *unit) suspend() {
	l := u.lane
	u.suspensions.Add(1)
	u.inst.suspensions.Add(1)

	l.yield <- struct{}{}
	select {
	case <-l.resume:
	case <-u.ex.Done():
		u.disarm()
		u.abandoned.Store(true)
		panic(abandonSignal{})
	}

	u.pending.Store(nil)
	u.setState(stateRunning)
	u.resumptions.Add(1)
	u.inst.resumptions.Add(1)
}

// abandonSignal unwinds a coroutine body whose executor shut down.
type abandonSignal struct{}
