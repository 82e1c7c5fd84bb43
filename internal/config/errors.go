package config

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error code constants, shared with the CLI's output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Analysis errors
	ErrCodeInvalidExpr      = "E201" // Malformed expression
	ErrCodeUnknownRef       = "E202" // Unknown column, define, collection or local
	ErrCodeInvalidSelection = "E203" // Bad selection entry
	ErrCodeInvalidPlot      = "E204" // Bad plot entry
	ErrCodeInvalidSkim      = "E205" // Bad skim entry
	ErrCodeInvalidCutFlow   = "E206" // Bad cut-flow entry
	ErrCodeDuplicateName    = "E207" // Name used twice
	ErrCodeInvalidColumn    = "E208" // Bad column or collection declaration

	// Run configuration errors
	ErrCodeInvalidRunConfig = "E301"
)

// LoadError is an error found while loading an analysis or run
// configuration.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *LoadError with the same code, so callers can write
// errors.Is(err, &LoadError{Code: ErrCodeUnknownRef}).
func (e *LoadError) Is(target error) bool {
	t, ok := target.(*LoadError)
	return ok && t.Code == e.Code
}

func errorf(code string, pos token.Pos, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// ErrorCode returns the code of a *LoadError in err's chain, or
// ErrCodeGeneric.
func ErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(code string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	e := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
