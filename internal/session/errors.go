package session

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-visible category of a registry error.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindDuplicate  Kind = "duplicate_session"
	KindCapacity   Kind = "capacity_exceeded"
	KindNotFound   Kind = "not_found"
	KindAdapter    Kind = "adapter_error"
)

// Error is returned by every Registry operation that fails. Low-level
// multiplexer failures are translated into KindAdapter here and nowhere else.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrDuplicate  = &Error{Kind: KindDuplicate}
	ErrCapacity   = &Error{Kind: KindCapacity}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrAdapter    = &Error{Kind: KindAdapter}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind-only sentinels above.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of a registry error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
