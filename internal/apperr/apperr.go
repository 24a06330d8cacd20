// Package apperr defines the error taxonomy shared by the devlaunch CLI,
// HTTP server and library packages.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind.
// Callers branch on the kind with errors.Is against the kind sentinels:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
//
// The CLI maps kinds to exit codes (ExitCode) and the server maps them to
// HTTP status codes (HTTPStatus).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	// KindInternal is an unexpected failure (bug, I/O error without a better class).
	KindInternal Kind = iota
	// KindInput is invalid or missing user input.
	KindInput
	// KindNotFound is a missing catalog entry, remote object or local directory.
	KindNotFound
	// KindFormat is malformed data: bad YAML, a key outside its prefix, a missing field.
	KindFormat
	// KindBackend is a misconfigured or unreachable generation backend.
	KindBackend
	// KindIngestion is a failure of the LLM ingestion pipeline.
	KindIngestion
)

// String returns the kind name used in logs and JSON error bodies.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindFormat:
		return "format"
	case KindBackend:
		return "backend"
	case KindIngestion:
		return "ingestion"
	default:
		return "internal"
	}
}

// Kind sentinels for errors.Is.
var (
	ErrInput     = &Error{Kind: KindInput}
	ErrNotFound  = &Error{Kind: KindNotFound}
	ErrFormat    = &Error{Kind: KindFormat}
	ErrBackend   = &Error{Kind: KindBackend}
	ErrIngestion = &Error{Kind: KindIngestion}
	ErrInternal  = &Error{Kind: KindInternal}
)

// Error is a classified error.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op names the operation that failed, e.g. "fetch" or "index.build".
	Op string
	// Message is the user-facing description.
	Message string
	// Fix is an optional actionable suggestion.
	Fix string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg != "" && e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case msg == "":
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// Only bare sentinels match by kind.
	if t.Op != "" || t.Message != "" || t.Err != nil {
		return e == t
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an error of the given kind wrapping err.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// WithFix returns e with a suggested fix attached.
func (e *Error) WithFix(fix string) *Error {
	e.Fix = fix
	return e
}

// Input creates an input error.
func Input(op, format string, args ...any) *Error {
	return New(KindInput, op, fmt.Sprintf(format, args...))
}

// NotFound creates a not-found error.
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, fmt.Sprintf(format, args...))
}

// Format creates a format error.
func Format(op, format string, args ...any) *Error {
	return New(KindFormat, op, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FixOf returns the first non-empty Fix in err's chain.
func FixOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Fix != "" {
			return e.Fix
		}
		err = e.Err
	}
	return ""
}

// Exit codes, following the semantic layout used by the CLI.
const (
	ExitSuccess   = 0
	ExitInternal  = 1
	ExitInput     = 2
	ExitNotFound  = 3
	ExitFormat    = 4
	ExitBackend   = 5
	ExitIngestion = 6
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case KindInput:
		return ExitInput
	case KindNotFound:
		return ExitNotFound
	case KindFormat:
		return ExitFormat
	case KindBackend:
		return ExitBackend
	case KindIngestion:
		return ExitIngestion
	default:
		return ExitInternal
	}
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindFormat, KindIngestion:
		return http.StatusUnprocessableEntity
	case KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
