package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/onepass/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RunConfig string
	Ledger    string

	// IDs allows overriding the run ID generator (for testing).
	// If nil, the ledger uses UUIDv7Generator.
	IDs store.IDGenerator
}

// RunResult is the payload of a successful run.
type RunResult struct {
	RunID    string         `json:"run_id"`
	Seq      int64          `json:"seq"`
	Analysis string         `json:"analysis"`
	Status   string         `json:"status"`
	Products []string       `json:"products"`
	Stats    map[string]int `json:"stats"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <analysis-dir>",
		Short: "Build the graph, execute it once and record the run",
		Long: `Build the dataframe graph of an analysis and hand the generated program
to the executor configured in the run configuration. The built graph and
the outcome are recorded in the SQLite ledger.

Example:
  onepass run ./zpeak
  onepass run ./zpeak --config prod.yaml --ledger /data/onepass.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RunConfig, "config", "c", "", "run configuration (default: <analysis-dir>/onepass.yaml if present)")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "path to the SQLite ledger (overrides the run configuration)")

	return cmd
}

func runAnalysis(opts *RunOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	p, err := buildPipeline(dir, opts.RunConfig)
	if err != nil {
		return failStage(formatter, err)
	}

	ledger := opts.Ledger
	if ledger == "" {
		ledger = p.cfg.Ledger
	}
	st, err := openLedger(ledger, opts.IDs)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := p.backend.Summary()
	run, err := st.RecordBuild(ctx, store.Build{
		Analysis:     p.analysis.Name,
		AnalysisHash: p.analysis.Hash,
		Summary:      summary,
	})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}
	slog.Info("run recorded", "run", run.ID, "seq", run.Seq, "products", len(summary.Products))

	runErr := p.backend.RunGraph(ctx)
	if err := st.FinishRun(ctx, run.ID, runErr); err != nil {
		slog.Error("error recording run outcome", "run", run.ID, "error", err)
	}
	if runErr != nil {
		return formatter.fail(ExitFailure, ErrCodeRunFailed, fmt.Errorf("run %s: %w", run.ID, runErr))
	}

	result := RunResult{
		RunID:    run.ID,
		Seq:      run.Seq,
		Analysis: run.Analysis,
		Status:   store.StatusDone,
		Stats:    summary.Stats,
	}
	for _, prod := range summary.Products {
		result.Products = append(result.Products, prod.Name)
	}
	if formatter.json() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Run %s (#%d) of %s done: %d product(s)\n", result.RunID, result.Seq, result.Analysis, len(result.Products))
	return nil
}

// openLedger opens the ledger at path, creating its directory.
func openLedger(path string, ids store.IDGenerator) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	var opts []store.Option
	if ids != nil {
		opts = append(opts, store.WithIDs(ids))
	}
	return store.Open(path, opts...)
}
