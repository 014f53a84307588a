/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a client-facing message, and an HTTP status code.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"signalhub/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code used when the error is written to an HTTP response.
	Status int
}

// Error implements the standard Go error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target is a CustomError with the same code, so callers can
// write errors.Is(err, errs.NewError(errs.ErrNameInUse)).
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Kind returns the error's category.
func (e *CustomError) Kind() Kind {
	return KindOf(e.Code)
}

// NewError constructs a *CustomError from a predefined error code.
// details are printf-style arguments applied when the message template contains a verb.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.")
		}
	}

	return &customErr
}

// CodeOf extracts the business code from err, or ErrUnknown for foreign errors.
// A nil error yields 0.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}

	return ErrUnknown
}
