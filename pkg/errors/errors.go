package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = NewError("VALIDATION_ERROR", "validation failed")
	ErrDuplicate  = NewError("DUPLICATE", "duplicate record detected")
	ErrSystem     = NewError("SYSTEM_ERROR", "internal engine fault")
	ErrNetwork    = NewError("NETWORK_ERROR", "collaborator transport failure")
	ErrConflict   = NewError("CONFLICT", "operation already in progress")
	ErrCancelled  = NewError("CANCELLED", "operation cancelled")
	ErrNotFound   = NewError("NOT_FOUND", "resource not found")
)

// Error is a coded engine error carrying structured details and an optional
// cause for unwrapping.
type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so wrapped copies still satisfy errors.Is
// against the package sentinels.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsDuplicate(err error) bool {
	return hasCode(err, ErrDuplicate.Code)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrConflict.Code)
}

func IsCancelled(err error) bool {
	return hasCode(err, ErrCancelled.Code)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
