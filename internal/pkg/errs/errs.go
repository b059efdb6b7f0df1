/*
Package errs provides custom error types and application-level error code constants.

This file defines CustomError, which carries a business code, a user-facing message and
an HTTP status, plus helpers to recover a CustomError from a wrapped error chain.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rtchat/internal/pkg/logx"
)

// CustomError is the error type surfaced to clients over HTTP and WebSocket.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing error description.
	Message string

	// Status is the HTTP status code used when the error ends an HTTP request.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target is a CustomError with the same code, so callers can
// write errors.Is(err, errs.NewError(errs.ErrNotGroupMember)).
func (e CustomError) Is(target error) bool {
	var other *CustomError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError builds a CustomError from a predefined code. details are printf arguments for
// message templates containing verbs; for ErrUnknown the first detail may be the
// underlying error, which is logged and not exposed. Unknown codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("error code %d is not registered", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case code == ErrUnknown && len(details) > 0:
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	case len(details) > 0 && strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	case len(details) > 0:
		logx.Warn("Details provided for error without formatting placeholders; ignored.", "code", code)
	}

	return &customErr
}

// From extracts the CustomError from err's chain. Errors that carry no CustomError are
// reported as ErrUnknown, with the original error logged.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}

	return NewError(ErrUnknown, err)
}
