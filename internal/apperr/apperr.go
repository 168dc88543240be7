// Package apperr defines the error kinds shared by every component. Kinds
// are mapped to transport status codes only at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnavailable
)

var kindCodes = map[Kind]string{
	KindInternal:     "internal_error",
	KindValidation:   "invalid_input",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindConflict:     "conflict",
	KindRateLimited:  "rate_limit_exceeded",
	KindUnavailable:  "service_unavailable",
}

// Code returns the stable machine-readable name of the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// Error is the typed error threaded through stores, services and handlers.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field validation detail.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func RateLimited(msg string) *Error  { return New(KindRateLimited, msg) }

func Unavailable(msg string, err error) *Error { return Wrap(KindUnavailable, msg, err) }
func Internal(msg string, err error) *Error    { return Wrap(KindInternal, msg, err) }

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err. Untyped errors are Internal.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindRateLimited:
		return true
	}
	return false
}
