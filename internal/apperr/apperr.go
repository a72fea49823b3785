// Package apperr defines the error kinds returned by the hostel lifecycle
// operations. Callers branch on Kind (or on a stable Code) instead of
// parsing messages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + ": " + f.Message
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by code, so a sentinel with a fresh message
// still compares equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind && t.Message == e.Message
}

// Sentinels for cases callers branch on.
var (
	ErrAlreadyUpvoted     = &Error{Kind: KindConflict, Code: "already_upvoted", Message: "complaint already upvoted"}
	ErrNotUpvoted         = &Error{Kind: KindConflict, Code: "not_upvoted", Message: "complaint not upvoted"}
	ErrDuplicateComplaint = &Error{Kind: KindConflict, Code: "duplicate_complaint", Message: "an identical complaint was filed recently"}
	ErrDuplicateRequest   = &Error{Kind: KindConflict, Code: "duplicate_request", Message: "a borrow request is already pending"}
	ErrDuplicateName      = &Error{Kind: KindConflict, Code: "duplicate_name", Message: "you already have a resource with this name"}
	ErrOwnResource        = &Error{Kind: KindForbidden, Code: "own_resource", Message: "cannot borrow your own resource"}
	ErrConcurrentUpdate   = &Error{Kind: KindInvalidState, Code: "concurrent_update", Message: "resource changed concurrently"}
	ErrRateLimited        = &Error{Kind: KindUnavailable, Code: "rate_limited", Message: "rate limit exceeded"}
)

// NotFound reports a missing entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: entity + " not found"}
}

// Forbidden reports a missing ownership or role.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation that is illegal in the current state.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Code: "invalid_state", Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input with per-field details.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Code: "validation", Message: "invalid input", Fields: fields}
}

// Invalid is a shorthand for a single-field validation error.
func Invalid(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

// Unavailable wraps a transient failure of a store or collaborator.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: "service unavailable", Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
