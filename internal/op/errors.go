package op

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors raised while building or rendering
// expressions.
type ErrorCode string

const (
	// ErrCodeInvalidVariation indicates a variation name that the wrapper
	// does not declare.
	ErrCodeInvalidVariation ErrorCode = "INVALID_VARIATION"

	// ErrCodeFrozenNode indicates an attempt to rebind a wrapper that
	// already presents a fixed variation.
	ErrCodeFrozenNode ErrorCode = "FROZEN_NODE"

	// ErrCodeTypeInference indicates that a result type could not be
	// deduced and none was supplied.
	ErrCodeTypeInference ErrorCode = "TYPE_INFERENCE"

	// ErrCodeTypeMismatch indicates incompatible operand types.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnresolvedDependency indicates a range operation captures a
	// dependency that is neither a column nor a defined column.
	ErrCodeUnresolvedDependency ErrorCode = "UNRESOLVED_DEPENDENCY"

	// ErrCodeInvalidArgument indicates malformed constructor input.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. An *Error matches a sentinel when the codes
// are equal.
var (
	ErrInvalidVariation     = &Error{Code: ErrCodeInvalidVariation}
	ErrFrozenNode           = &Error{Code: ErrCodeFrozenNode}
	ErrTypeInference        = &Error{Code: ErrCodeTypeInference}
	ErrTypeMismatch         = &Error{Code: ErrCodeTypeMismatch}
	ErrUnresolvedDependency = &Error{Code: ErrCodeUnresolvedDependency}
	ErrInvalidArgument      = &Error{Code: ErrCodeInvalidArgument}
)

// Error is the error type returned by constructors and code rendering.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the printable signature of the offending node, if any.
	Node string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
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

func newError(code ErrorCode, n Node, format string, args ...any) *Error {
	e := &Error{Code: code, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Node = n.String()
	}
	return e
}

// IsInvalidVariation returns true if err is an invalid variation error.
// Uses errors.As to handle wrapped errors.
func IsInvalidVariation(err error) bool {
	return hasCode(err, ErrCodeInvalidVariation)
}

// IsFrozenNode returns true if err reports a rebind of a bound wrapper.
func IsFrozenNode(err error) bool {
	return hasCode(err, ErrCodeFrozenNode)
}

// IsTypeError returns true for both type inference and type mismatch
// errors.
func IsTypeError(err error) bool {
	return hasCode(err, ErrCodeTypeInference) || hasCode(err, ErrCodeTypeMismatch)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
