// Package errors defines typed errors with coarse categories for tool
// responses. Every failure surfaced to a caller carries one of four kinds so
// clients can distinguish connection problems from bad input without parsing
// engine messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Connection indicates the database cannot be reached or authenticated to.
	Connection Kind = "connection"
	// Validation indicates caller-supplied input violates a tool contract.
	Validation Kind = "validation"
	// Statement indicates the database rejected the SQL.
	Statement Kind = "statement"
	// Serialization indicates a result value cannot be represented in the
	// response format.
	Serialization Kind = "serialization"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, walking the wrap chain. Errors with
// no kind default to Statement, the common case for raw database failures.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Statement
}

// Message returns the human-facing message for err without the kind prefix
// that E.Error adds.
func Message(err error) string {
	var e *E
	if stderrors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return err.Error()
}
