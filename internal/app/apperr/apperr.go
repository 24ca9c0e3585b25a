// Package apperr defines the error kinds the outlook store reports.
//
// Every error returned by the store is an *Error carrying one Kind. Callers
// match on kinds with errors.Is against the sentinels below. Only Transient
// errors are safe to retry without changing the request.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation Kind = "validation"
	Reference  Kind = "reference"
	Conflict   Kind = "conflict"
	NotFound   Kind = "not_found"
	Transient  Kind = "transient"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrReference  = errors.New("referenced record does not exist")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("transient storage failure")
)

var sentinels = map[Kind]error{
	Validation: ErrValidation,
	Reference:  ErrReference,
	Conflict:   ErrConflict,
	NotFound:   ErrNotFound,
	Transient:  ErrTransient,
}

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return sentinels[e.Kind] == target
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable is true only for transient failures.
func IsRetryable(err error) bool {
	return KindOf(err) == Transient
}
