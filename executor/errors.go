package executor

import "errors"

const Namespace = "executor"

var (
	ErrClosed        = errors.New(Namespace + ": executor is shut down")
	ErrNilHandler    = errors.New(Namespace + ": nil handler")
	ErrNilExecutor   = errors.New(Namespace + ": nil underlying executor")
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
)

// Unrecoverable is implemented by panic values that handler boundaries must
// not contain. Loop and Strand restore their own state and re-raise them on
// the goroutine running the handler.
type Unrecoverable interface {
	Unrecoverable()
}

func isUnrecoverable(v any) bool {
	_, ok := v.(Unrecoverable)
	return ok
}
