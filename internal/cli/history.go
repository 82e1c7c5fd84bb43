package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/onepass/internal/config"
	"github.com/roach88/onepass/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Ledger   string
	Analysis string
	Limit    int
	Products bool
}

// HistoryEntry is one run in the history output.
type HistoryEntry struct {
	store.Run
	Products []store.Product `json:"products,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the runs recorded in the ledger",
		Long: `List recorded runs, newest first.

Example:
  onepass history
  onepass history --analysis zpeak --limit 5 --products`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", config.DefaultRunConfig().Ledger, "path to the SQLite ledger")
	cmd.Flags().StringVar(&opts.Analysis, "analysis", "", "only list runs of this analysis")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	cmd.Flags().BoolVar(&opts.Products, "products", false, "include the products of each run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if _, err := os.Stat(opts.Ledger); err != nil {
		return formatter.fail(ExitCommandError, config.ErrCodeNotFound, fmt.Errorf("ledger not found: %s", opts.Ledger))
	}
	st, err := store.Open(opts.Ledger)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx, opts.Analysis, opts.Limit)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, err)
	}
	entries := make([]HistoryEntry, len(runs))
	for i, r := range runs {
		entries[i].Run = r
		if opts.Products {
			if entries[i].Products, err = st.ReadProducts(ctx, r.ID); err != nil {
				return formatter.fail(ExitCommandError, ErrCodeLedger, err)
			}
		}
	}

	if formatter.json() {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("#%-4d %s  %-12s %-6s %s", e.Seq, e.ID, e.Analysis, e.Status, e.BuiltAt.Format("2006-01-02 15:04:05"))
		if e.Error != "" {
			line += "  " + firstLine(e.Error)
		}
		fmt.Fprintln(formatter.Writer, line)
		for _, p := range e.Products {
			fmt.Fprintf(formatter.Writer, "      %-32s %-8s %s\n", p.Name, p.Kind, shortDigest(p.Digest))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
