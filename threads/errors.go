package threads

import (
	"errors"
	"fmt"
)

const Namespace = "threads"

var (
	ErrThreadCreation    = errors.New(Namespace + ": thread creation failed")
	ErrEmptyGroup        = errors.New(Namespace + ": attribute queried on an empty group")
	ErrAttributeMismatch = errors.New(Namespace + ": group members have different attribute values")
	ErrInvalidAttribute  = errors.New(Namespace + ": invalid thread attribute")
	ErrSetAttribute      = errors.New(Namespace + ": cannot apply thread attribute")
	ErrSelfJoin          = errors.New(Namespace + ": a group member cannot join its own group")
	ErrGroupClosed       = errors.New(Namespace + ": group is closed")
	ErrNilEntry          = errors.New(Namespace + ": nil thread entry function")
	ErrTooManyThreads    = errors.New(Namespace + ": thread limit reached")
	ErrThreadPanicked    = errors.New(Namespace + ": thread entry panicked")
	ErrInvalidConfig     = errors.New(Namespace + ": invalid configuration")
)

// ThreadCreationError reports a thread that could not be started.
// It matches both ErrThreadCreation and the underlying cause with errors.Is.
type ThreadCreationError struct {
	Name string
	Err  error
}

func newThreadCreationError(name string, err error) error {
	return &ThreadCreationError{Name: name, Err: err}
}

func (e *ThreadCreationError) Error() string {
	return fmt.Sprintf("%s: cannot create thread %q: %v", Namespace, e.Name, e.Err)
}

func (e *ThreadCreationError) Unwrap() []error { return []error{ErrThreadCreation, e.Err} }

func attributeError(t *Thread, attr string, err error) error {
	return fmt.Errorf("%w: %s on thread %q: %w", ErrSetAttribute, attr, t.name, err)
}
