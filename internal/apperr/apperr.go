// Package apperr carries the typed error taxonomy shared by the label
// workflow and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeBadRequest           Code = "BAD_REQUEST"
	CodeInvalidAddress       Code = "INVALID_ADDRESS"
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeInternalServerError  Code = "INTERNAL_SERVER_ERROR"
	CodeForbidden            Code = "FORBIDDEN"
	CodeConflict             Code = "CONFLICT"
)

// Error is a coded error. Sentinels (empty Message) match any Error with the
// same Code through errors.Is.
type Error struct {
	Code    Code
	Message string
	Err     error
}

var (
	ErrNotFound             = &Error{Code: CodeNotFound}
	ErrBadRequest           = &Error{Code: CodeBadRequest}
	ErrInvalidAddress       = &Error{Code: CodeInvalidAddress}
	ErrExternalServiceError = &Error{Code: CodeExternalServiceError}
	ErrInternalServerError  = &Error{Code: CodeInternalServerError}
	ErrForbidden            = &Error{Code: CodeForbidden}
	ErrConflict             = &Error{Code: CodeConflict}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Code == t.Code
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternalServerError when there is none.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalServerError
}
