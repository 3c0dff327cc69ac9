// Package apperr defines the error taxonomy shared by the domain packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so collaborators can translate it without
// matching on messages.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Conflict
	InvalidArgument
)

func (k Kind) String() string {
	return [...]string{"unknown", "not_found", "conflict", "invalid_argument"}[k]
}

// Error is a domain failure carrying a machine-checkable kind and code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New declares a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same code, so a sentinel matches the
// detailed copies produced by Withf.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of the sentinel with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// CodeOf reports the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
