package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorKind string

const (
	ErrConnect     ErrorKind = "connect"
	ErrCompile     ErrorKind = "compile"
	ErrInvalidJSON ErrorKind = "invalid_json"
	ErrNotFound    ErrorKind = "not_found"
	ErrUnsupported ErrorKind = "unsupported"
	ErrAction      ErrorKind = "action"
	ErrConfig      ErrorKind = "config"
	ErrAuth        ErrorKind = "auth"
	ErrValidation  ErrorKind = "validation"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	// Connect errors carry the driver message already.
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Connect wraps a driver failure. The driver message becomes the error message
// so front-ends can show it as is.
func Connect(cause error) *Error {
	if cause == nil {
		return nil
	}
	var e *Error
	if stderrors.As(cause, &e) {
		return e
	}
	return &Error{Kind: ErrConnect, Message: cause.Error(), Cause: cause}
}

func ConnectError(msg string) *Error {
	return &Error{Kind: ErrConnect, Message: msg}
}

func CompileError(field, msg string) *Error {
	return &Error{Kind: ErrCompile, Field: field, Message: msg}
}

func InvalidJSON(cause error) *Error {
	return &Error{Kind: ErrInvalidJSON, Message: "invalid JSON format", Cause: cause}
}

func NotFoundError(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Unsupported(msg string) *Error {
	return &Error{Kind: ErrUnsupported, Message: msg}
}

func ActionError(msg string) *Error {
	return &Error{Kind: ErrAction, Message: msg}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
