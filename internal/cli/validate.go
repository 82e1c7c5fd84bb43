package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/onepass/internal/config"
)

// ValidationError is one problem found in an analysis.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Analysis   string            `json:"analysis,omitempty"`
	Hash       string            `json:"hash,omitempty"`
	Selections int               `json:"selections"`
	Plots      int               `json:"plots"`
	Skims      int               `json:"skims"`
	CutFlows   int               `json:"cutflows"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <analysis-dir>",
		Short: "Check an analysis description without building a graph",
		Long: `Load the CUE analysis in a directory and compile every column,
define, selection and output, reporting all errors with their positions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	a, errs := config.Load(dir, config.LoadModeCollectAll)
	if a == nil {
		// Directory, file or CUE build problems
		return formatter.fail(ExitCommandError, config.ErrCodeGeneric, errs[0])
	}
	if len(errs) > 0 {
		return outputValidationErrors(formatter, toValidationErrors(errs))
	}

	result := ValidationResult{
		Valid:      true,
		Analysis:   a.Name,
		Hash:       a.Hash,
		Selections: len(a.Selections),
		Plots:      len(a.Plots),
		Skims:      len(a.Skims),
		CutFlows:   len(a.CutFlows),
	}
	if formatter.json() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Analysis %s valid: %d selection(s), %d plot(s), %d skim(s), %d cut-flow report(s)\n",
		result.Analysis, result.Selections, result.Plots, result.Skims, result.CutFlows)
	return nil
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		ve := ValidationError{Code: config.ErrCodeGeneric, Message: err.Error()}
		var le *config.LoadError
		if errors.As(err, &le) {
			ve.Code = le.Code
			ve.Message = le.Message
			if le.Pos.IsValid() {
				ve.File = le.Pos.Filename()
				ve.Line = le.Pos.Line()
			}
		}
		out = append(out, ve)
	}
	return out
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.json() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}
		if err := encodeJSON(formatter.Writer, response); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
