/*
Package errs provides custom error types and application-level error code constants.

This file defines the ChatError struct, which implements the standard Go error
interface and carries a business code, a human-readable message, the upstream
HTTP status (when one exists), and an optional wrapped cause. The three error
kinds of the session core (transport failure, rejected operation, exhausted
throttle budget) are all expressed as ChatError codes.
*/
package errs

import (
	"errors"
	"fmt"
	"strings"

	"sechat/internal/pkg/logx"
)

// ChatError is the custom error structure used throughout the session core.
type ChatError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the human-readable error description. For operation errors
	// it embeds the server's literal response body as diagnostic payload.
	Message string

	// Status is the upstream HTTP status code associated with this error,
	// or 0 when the failure happened below the HTTP layer.
	Status int

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the standard Go error interface.
func (e ChatError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("Error Code %d: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As chains.
func (e ChatError) Unwrap() error {
	return e.Cause
}

// NewError constructs a new *ChatError from a predefined error code.
// The optional details are printf-style arguments for the message template of
// that code. An unknown code degrades to ErrUnknown rather than panicking.
func NewError(code int, details ...any) *ChatError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &ChatError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
		}
	}

	chatErr := templateErr

	if len(details) > 0 {
		if strings.Contains(chatErr.Message, "%") {
			chatErr.Message = fmt.Sprintf(chatErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			)
		}
	}

	return &chatErr
}

// Wrap constructs a *ChatError like NewError and records cause as the
// underlying error, so callers can inspect it with errors.As.
func Wrap(code int, cause error, details ...any) *ChatError {
	chatErr := NewError(code, details...)
	chatErr.Cause = cause
	return chatErr
}

// WithStatus returns a copy of the error annotated with the upstream HTTP status.
func (e *ChatError) WithStatus(status int) *ChatError {
	annotated := *e
	annotated.Status = status
	return &annotated
}

// IsCode reports whether err is a ChatError carrying the given code.
func IsCode(err error, code int) bool {
	var chatErr *ChatError
	return errors.As(err, &chatErr) && chatErr.Code == code
}
