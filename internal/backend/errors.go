package backend

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes backend errors.
type ErrorCode string

const (
	// ErrCodeNameCollision indicates a second output under the same name.
	ErrCodeNameCollision ErrorCode = "NAME_COLLISION"

	// ErrCodeDuplicateSelection indicates a second selection with the
	// same name.
	ErrCodeDuplicateSelection ErrorCode = "DUPLICATE_SELECTION"

	// ErrCodeUnknownSelection indicates an output on a selection that was
	// never added.
	ErrCodeUnknownSelection ErrorCode = "UNKNOWN_SELECTION"

	// ErrCodeUnknownOutput indicates BuildGraph was asked for an output
	// that was never added.
	ErrCodeUnknownOutput ErrorCode = "UNKNOWN_OUTPUT"

	// ErrCodeGraphBuilt indicates BuildGraph was called twice.
	ErrCodeGraphBuilt ErrorCode = "GRAPH_BUILT"

	// ErrCodeGraphNotBuilt indicates RunGraph before BuildGraph.
	ErrCodeGraphNotBuilt ErrorCode = "GRAPH_NOT_BUILT"

	// ErrCodeGraphRun indicates RunGraph was called twice.
	ErrCodeGraphRun ErrorCode = "GRAPH_RUN"

	// ErrCodeDefinedColumn indicates a skim requesting a defined column
	// as an input column.
	ErrCodeDefinedColumn ErrorCode = "DEFINED_COLUMN"
)

// Sentinels for errors.Is.
var (
	ErrNameCollision      = &Error{Code: ErrCodeNameCollision}
	ErrDuplicateSelection = &Error{Code: ErrCodeDuplicateSelection}
	ErrUnknownSelection   = &Error{Code: ErrCodeUnknownSelection}
	ErrUnknownOutput      = &Error{Code: ErrCodeUnknownOutput}
	ErrGraphBuilt         = &Error{Code: ErrCodeGraphBuilt}
	ErrGraphNotBuilt      = &Error{Code: ErrCodeGraphNotBuilt}
	ErrGraphRun           = &Error{Code: ErrCodeGraphRun}
	ErrDefinedColumn      = &Error{Code: ErrCodeDefinedColumn}
)

// Error represents an error detected while registering outputs or
// building the graph.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the selection, output or column involved.
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

// IsNameCollision returns true if err reports a duplicate output or
// selection name.
// Uses errors.As to handle wrapped errors.
func IsNameCollision(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNameCollision || e.Code == ErrCodeDuplicateSelection
	}
	return false
}
