package services

import (
	"errors"
	"fmt"
)

// Error kinds. Controllers map them onto HTTP statuses.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrRule         = errors.New("rule violated")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBusy         = errors.New("resource busy")
	ErrUpstream     = errors.New("upstream failure")
)

// Error is a domain error whose message is safe to show to the client.
type Error struct {
	kind error
	msg  string
	err  error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

func (e *Error) Message() string { return e.msg }

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, msg string) error {
	return &Error{kind: kind, msg: msg, err: cause}
}
