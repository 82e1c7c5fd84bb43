package selection

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes declaration errors.
type ErrorCode string

const (
	// ErrCodeInvalidName indicates an empty or malformed name.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"

	// ErrCodeInvalidCut indicates a cut that is nil or not boolean.
	ErrCodeInvalidCut ErrorCode = "INVALID_CUT"

	// ErrCodeInvalidWeight indicates a weight that is nil or not numeric.
	ErrCodeInvalidWeight ErrorCode = "INVALID_WEIGHT"

	// ErrCodeInvalidBinning indicates a malformed binning or a mismatch
	// between variables and binnings.
	ErrCodeInvalidBinning ErrorCode = "INVALID_BINNING"

	// ErrCodeInvalidOutput indicates a malformed plot, skim or report.
	ErrCodeInvalidOutput ErrorCode = "INVALID_OUTPUT"

	// ErrCodeUnknownColumn indicates a skim requesting an input column
	// that does not exist.
	ErrCodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"
)

// Sentinels for errors.Is.
var (
	ErrInvalidName    = &Error{Code: ErrCodeInvalidName}
	ErrInvalidCut     = &Error{Code: ErrCodeInvalidCut}
	ErrInvalidWeight  = &Error{Code: ErrCodeInvalidWeight}
	ErrInvalidBinning = &Error{Code: ErrCodeInvalidBinning}
	ErrInvalidOutput  = &Error{Code: ErrCodeInvalidOutput}
	ErrUnknownColumn  = &Error{Code: ErrCodeUnknownColumn}
)

// Error is returned by the constructors in this package.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the selection or output being declared.
	Name string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (name=%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}
