package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/onepass/internal/backend"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	RunConfig string
	Output    string
}

// PlanResult is the JSON payload of plan.
type PlanResult struct {
	Analysis string          `json:"analysis"`
	Hash     string          `json:"hash"`
	Summary  backend.Summary `json:"summary"`
	Program  string          `json:"program,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <analysis-dir>",
		Short: "Build the graph and print the generated program",
		Long: `Build the dataframe graph of an analysis without running it.

Text output is the generated C++ program; JSON output describes the filter
nodes, their defined columns and every booked product with its digest.

Example:
  onepass plan ./zpeak
  onepass plan ./zpeak -o zpeak.cc
  onepass plan ./zpeak --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RunConfig, "config", "c", "", "run configuration (default: <analysis-dir>/onepass.yaml if present)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program to this file")

	return cmd
}

func runPlan(opts *PlanOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	p, err := buildPipeline(dir, opts.RunConfig)
	if err != nil {
		return failStage(formatter, err)
	}
	program := p.script.Program()

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(program), 0o644); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWrite, fmt.Errorf("write program: %w", err))
		}
	}

	if formatter.json() {
		result := PlanResult{Analysis: p.analysis.Name, Hash: p.analysis.Hash, Summary: p.backend.Summary()}
		if opts.Output == "" {
			result.Program = program
		}
		return formatter.Success(result)
	}
	if opts.Output != "" {
		s := p.backend.Summary()
		fmt.Fprintf(formatter.Writer, "Wrote %s: %d node(s), %d product(s)\n", opts.Output, len(s.Nodes), len(s.Products))
		return nil
	}
	_, err = fmt.Fprint(formatter.Writer, program)
	return err
}
