package spawn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const Namespace = "spawn"

var (
	ErrNilExecutor       = errors.New(Namespace + ": nil executor")
	ErrNilBody           = errors.New(Namespace + ": nil coroutine body")
	ErrNilToken          = errors.New(Namespace + ": nil completion token")
	ErrExecutorClosed    = errors.New(Namespace + ": executor is shut down")
	ErrInvalidConfig     = errors.New(Namespace + ": invalid configuration")
	ErrOperationFailed   = errors.New(Namespace + ": asynchronous operation failed")
	ErrCoroutinePanicked = errors.New(Namespace + ": coroutine panicked")
	ErrAbandoned         = errors.New(Namespace + ": coroutine abandoned: executor shut down before it could resume")
	ErrCoroutineExited   = errors.New(Namespace + ": coroutine body exited without returning")

	ErrProtocolViolation = errors.New(Namespace + ": suspension protocol violated")
	ErrHandleExpired     = errors.New(Namespace + ": yield handle used after its coroutine completed")
	ErrDoubleCompletion  = errors.New(Namespace + ": operation completed more than once")
	ErrNotRunning        = errors.New(Namespace + ": yield handle used while its coroutine is not running")
)

// OperationError is raised at the suspension point when an operation fails
// and the handle uses PolicyRaise. If the body does not recover it, it
// becomes the coroutine's completion error.
type OperationError struct {
	Coroutine uuid.UUID
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: coroutine %s: %v", Namespace, e.Coroutine, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrOperationFailed }

// PanicError carries a panic raised by a coroutine body.
type PanicError struct {
	Coroutine uuid.UUID
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: coroutine %s: %v", ErrCoroutinePanicked, e.Coroutine, e.Value)
}

func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrCoroutinePanicked, err}
	}
	return []error{ErrCoroutinePanicked}
}

// ProtocolViolationError is panicked when a handle or completion callback is
// misused: completing an operation twice, or using a handle whose coroutine
// has completed or is not running. It is fatal: neither the coroutine
// boundary nor executor.Loop / executor.Strand handler boundaries contain it.
type ProtocolViolationError struct {
	Coroutine uuid.UUID
	Err       error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("%v (coroutine %s)", e.Err, e.Coroutine)
}

func (e *ProtocolViolationError) Unwrap() []error { return []error{ErrProtocolViolation, e.Err} }

// Unrecoverable implements executor.Unrecoverable.
func (e *ProtocolViolationError) Unrecoverable() {}

func violation(id uuid.UUID, err error) *ProtocolViolationError {
	return &ProtocolViolationError{Coroutine: id, Err: err}
}
