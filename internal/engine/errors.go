package engine

import (
	"errors"
	"fmt"
)

// Error represents an error raised by an engine implementation.
//
// Engine errors include:
//   - Unknown node: a handle that was not created by this engine
//   - No executor: Script.Run without a command to run the program
//   - Already run: a second event loop was requested
//   - Execution: the executor failed
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the engine node involved, if any.
	Node string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnknownNode indicates a node or result from another engine.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeNoExecutor indicates Script.Run without an executor command.
	ErrCodeNoExecutor ErrorCode = "NO_EXECUTOR"

	// ErrCodeAlreadyRun indicates Run was called a second time.
	ErrCodeAlreadyRun ErrorCode = "ALREADY_RUN"

	// ErrCodeExecution indicates the event loop itself failed.
	ErrCodeExecution ErrorCode = "EXECUTION"
)

// Sentinels for errors.Is.
var (
	ErrUnknownNode = &Error{Code: ErrCodeUnknownNode}
	ErrNoExecutor  = &Error{Code: ErrCodeNoExecutor}
	ErrAlreadyRun  = &Error{Code: ErrCodeAlreadyRun}
	ErrExecution   = &Error{Code: ErrCodeExecution}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Node != "" {
		msg = fmt.Sprintf("%s (node=%s)", msg, e.Node)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsNoExecutor returns true if err reports a missing executor.
// Uses errors.As to handle wrapped errors.
func IsNoExecutor(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNoExecutor
	}
	return false
}

// IsExecutionError returns true if the event loop failed.
func IsExecutionError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeExecution
	}
	return false
}
