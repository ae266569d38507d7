package executor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

// Strand serializes handlers over an underlying Executor: handlers posted
// through the same Strand never run concurrently and run in posting order.
type Strand struct {
	inner Executor
	batch int
	log   logrus.FieldLogger

	mu       sync.Mutex
	handlers *queue.Queue
	active   bool // a drain is queued on, or running in, inner
}

// NewStrand creates a Strand over inner.
func NewStrand(inner Executor, opts ...Option) (*Strand, error) {
	if inner == nil {
		return nil, ErrNilExecutor
	}
	cfg, err := buildConfig("strand", opts)
	if err != nil {
		return nil, err
	}
	return &Strand{
		inner:    inner,
		batch:    cfg.StrandBatch,
		log:      cfg.Logger.WithField("executor", cfg.Name),
		handlers: queue.New(),
	}, nil
}

// Inner returns the underlying Executor.
func (s *Strand) Inner() Executor { return s.inner }

// Post queues fn on the strand.
func (s *Strand) Post(fn func()) error {
	if fn == nil {
		return ErrNilHandler
	}

	s.mu.Lock()
	s.handlers.Add(fn)
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = true
	s.mu.Unlock()

	if err := s.inner.Post(s.drain); err != nil {
		// Nothing will drain the queue any more.
		s.abandon()
		return err
	}
	return nil
}

// OnWorkStarted forwards to the underlying Executor.
func (s *Strand) OnWorkStarted() { s.inner.OnWorkStarted() }

// OnWorkFinished forwards to the underlying Executor.
func (s *Strand) OnWorkFinished() { s.inner.OnWorkFinished() }

// Done forwards to the underlying Executor.
func (s *Strand) Done() <-chan struct{} { return s.inner.Done() }

// Pending returns the number of handlers waiting on the strand.
func (s *Strand) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers.Length()
}

// drain runs up to batch handlers, then reposts itself so that a busy strand
// does not monopolize a worker.
func (s *Strand) drain() {
	for i := 0; i < s.batch; i++ {
		s.mu.Lock()
		if s.handlers.Length() == 0 {
			s.active = false
			s.mu.Unlock()
			return
		}
		fn := s.handlers.Remove().(func())
		s.mu.Unlock()

		if fatal := s.invoke(fn); fatal != nil {
			s.reschedule()
			panic(fatal)
		}
	}

	if err := s.inner.Post(s.drain); err != nil {
		s.abandon()
	}
}

// reschedule hands the remaining handlers to a new drain, or marks the strand
// idle when there are none.
func (s *Strand) reschedule() {
	s.mu.Lock()
	if s.handlers.Length() == 0 {
		s.active = false
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.inner.Post(s.drain); err != nil {
		s.abandon()
	}
}

// invoke runs fn, containing its panics. An Unrecoverable panic value is
// returned for the caller to re-raise.
func (s *Strand) invoke(fn func()) (fatal any) {
	defer func() {
		if r := recover(); r != nil {
			if isUnrecoverable(r) {
				s.log.WithField("panic", r).Error("unrecoverable strand handler panic")
				fatal = r
				return
			}
			s.log.WithField("panic", r).Error("strand handler panicked")
		}
	}()
	fn()
	return nil
}

func (s *Strand) abandon() {
	s.mu.Lock()
	n := s.handlers.Length()
	for s.handlers.Length() > 0 {
		s.handlers.Remove()
	}
	s.active = false
	s.mu.Unlock()

	if n > 0 {
		s.log.WithField("handlers", n).Debug("strand dropped handlers: underlying executor closed")
	}
}
