// Package errs defines the error-kind taxonomy shared across the storage,
// codec, indexing, and search layers.
package errs

import "fmt"

// Kind classifies an Error so callers can branch on failure category
// without string matching.
type Kind int

const (
	// Unknown is the zero value; it should never be returned deliberately.
	Unknown Kind = iota
	FileNotFound
	EOF
	IO
	CorruptIndex
	LockObtainFailed
	AlreadyClosed
	InvalidArgument
	IllegalState
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "file not found"
	case EOF:
		return "eof"
	case IO:
		return "io"
	case CorruptIndex:
		return "corrupt index"
	case LockObtainFailed:
		return "lock obtain failed"
	case AlreadyClosed:
		return "already closed"
	case InvalidArgument:
		return "invalid argument"
	case IllegalState:
		return "illegal state"
	default:
		return "unknown"
	}
}

// Error is the error type returned across package boundaries. It carries a
// Kind so callers can use errors.As to recover it, plus an optional wrapped
// cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
