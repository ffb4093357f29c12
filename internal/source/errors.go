package source

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the source stage can report
type Kind string

const (
	NotFound          Kind = "not_found"
	InvalidFormat     Kind = "invalid_format"
	SchemaError       Kind = "schema_error"
	ConnectionFailure Kind = "connection_failure"
	IOFailure         Kind = "io_failure"
)

// Error is a classified source-stage failure. Path holds the file or URL involved.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Err     error
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrNotFound      = &Error{Kind: NotFound}
	ErrInvalidFormat = &Error{Kind: InvalidFormat}
	ErrSchema        = &Error{Kind: SchemaError}
	ErrConnection    = &Error{Kind: ConnectionFailure}
	ErrIO            = &Error{Kind: IOFailure}
)

func newError(kind Kind, op, path, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsRetryable reports whether a later attempt could succeed. The pipeline never
// retries on its own; schedulers use this to decide on a rerun.
func (e *Error) IsRetryable() bool {
	return e.Kind == ConnectionFailure
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Wrap classifies err for callers outside this package that report through
// the same taxonomy.
func Wrap(kind Kind, op, path string, err error) *Error {
	return newError(kind, op, path, "", err)
}
