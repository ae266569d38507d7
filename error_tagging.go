package spawn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CoroutineMetaError exposes correlation metadata for a coroutine failure.
type CoroutineMetaError interface {
	error
	Unwrap() error
	CoroutineID() (uuid.UUID, bool)
	CoroutineName() (string, bool)
}

type coroutineTaggedError struct {
	err  error
	id   uuid.UUID
	name string
}

func newCoroutineTaggedError(err error, id uuid.UUID, name string) error {
	if err == nil {
		return nil
	}
	return &coroutineTaggedError{err: err, id: id, name: name}
}

func (e *coroutineTaggedError) Error() string { return e.err.Error() }
func (e *coroutineTaggedError) Unwrap() error { return e.err }

func (e *coroutineTaggedError) CoroutineID() (uuid.UUID, bool) { return e.id, e.id != uuid.Nil }

func (e *coroutineTaggedError) CoroutineName() (string, bool) {
	if e.name == "" {
		return "", false
	}
	return e.name, true
}

func (e *coroutineTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "coroutine(id=%s,name=%q): %+v", e.id, e.name, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractCoroutineID returns the coroutine ID from err if present.
func ExtractCoroutineID(err error) (uuid.UUID, bool) {
	var cme CoroutineMetaError
	if errors.As(err, &cme) {
		return cme.CoroutineID()
	}
	return uuid.Nil, false
}

// ExtractCoroutineName returns the coroutine name from err if present.
func ExtractCoroutineName(err error) (string, bool) {
	var cme CoroutineMetaError
	if errors.As(err, &cme) {
		return cme.CoroutineName()
	}
	return "", false
}
