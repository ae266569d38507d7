package threads

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Thread is a member of a Group: a goroutine locked to its own OS thread.
type Thread struct {
	name string
	tid  int
	done chan struct{}
	log  logrus.FieldLogger

	mu       sync.Mutex
	priority Priority
	native   int
	affinity CPUSet
	dtor     DtorAction
	err      error
}

// startThread launches entry on a new locked OS thread after applying attrs
// there. It returns once the thread either runs entry or failed to set up.
func startThread(name string, entry func(), attrs Attributes, log logrus.FieldLogger) (*Thread, error) {
	t := &Thread{
		name:     name,
		done:     make(chan struct{}),
		priority: priorityOf(attrs.native()),
		native:   attrs.native(),
		affinity: attrs.Affinity.Normalize(),
		dtor:     attrs.DtorAction,
	}
	if attrs.NativePriority == nil {
		t.priority = attrs.Priority
	}

	ready := make(chan error, 1)
	go t.main(entry, attrs, ready, log)

	if err := <-ready; err != nil {
		<-t.done
		return nil, newThreadCreationError(name, err)
	}
	return t, nil
}

func (t *Thread) main(entry func(), attrs Attributes, ready chan<- error, log logrus.FieldLogger) {
	// Never unlocked: the runtime terminates the OS thread when this goroutine
	// returns, so no attribute leaks into the scheduler's thread pool.
	runtime.LockOSThread()
	defer close(t.done)

	t.tid = currentThreadID()
	t.log = log.WithFields(logrus.Fields{"thread": t.name, "tid": t.tid})

	if err := t.applyInitial(attrs); err != nil {
		ready <- err
		return
	}
	ready <- nil

	t.invoke(entry)
}

// applyInitial touches the OS only for attributes that differ from what a new
// thread already has.
func (t *Thread) applyInitial(attrs Attributes) error {
	if n := attrs.native(); n != 0 {
		if err := setNice(t.tid, n); err != nil {
			return fmt.Errorf("%w: priority %d: %w", ErrSetAttribute, n, err)
		}
	}
	if len(attrs.Affinity) > 0 {
		if err := setAffinity(t.tid, t.affinity); err != nil {
			return fmt.Errorf("%w: affinity %s: %w", ErrSetAttribute, t.affinity, err)
		}
	}
	return nil
}

func (t *Thread) invoke(entry func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrThreadPanicked, r)
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			t.log.WithError(err).WithField("stack", string(debug.Stack())).Error("thread entry panicked")
		}
	}()
	entry()
}

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

// ThreadID returns the OS thread id (0 where ids are not tracked).
func (t *Thread) ThreadID() int { return t.tid }

// Done is closed when the thread has finished.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Wait blocks until the thread has finished.
func (t *Thread) Wait() { <-t.done }

func (t *Thread) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the entry panic, if any, once the thread has finished.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Priority returns the current priority level.
func (t *Thread) Priority() Priority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// NativePriority returns the current nice value.
func (t *Thread) NativePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.native
}

// Affinity returns the CPUs the thread is restricted to.
func (t *Thread) Affinity() CPUSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.affinity
}

// DtorAction returns the destruction action.
func (t *Thread) DtorAction() DtorAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dtor
}

// SetPriority applies a priority level.
func (t *Thread) SetPriority(p Priority) error {
	if !p.valid() {
		return ErrInvalidAttribute
	}
	return t.setNative(p.Native(), p)
}

// SetNativePriority applies a raw nice value.
func (t *Thread) SetNativePriority(n int) error {
	if !validNative(n) {
		return ErrInvalidAttribute
	}
	return t.setNative(n, priorityOf(n))
}

func (t *Thread) setNative(n int, p Priority) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A finished thread's id may be reused by another thread: record only.
	if !t.finished() {
		if err := setNice(t.tid, n); err != nil {
			return attributeError(t, "priority", err)
		}
	}
	t.native, t.priority = n, p
	return nil
}

// SetAffinity restricts the thread to cpus; an empty set lifts the restriction.
func (t *Thread) SetAffinity(cpus CPUSet) error {
	if !cpus.valid() {
		return ErrInvalidAttribute
	}
	cpus = cpus.Normalize()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finished() {
		if err := setAffinity(t.tid, cpus); err != nil {
			return attributeError(t, "affinity", err)
		}
	}
	t.affinity = cpus
	return nil
}

// SetDtorAction sets the destruction action.
func (t *Thread) SetDtorAction(a DtorAction) error {
	if !a.valid() {
		return ErrInvalidAttribute
	}
	t.mu.Lock()
	t.dtor = a
	t.mu.Unlock()
	return nil
}
