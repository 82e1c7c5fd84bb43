package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/onepass/internal/backend"
)

// Run statuses.
const (
	StatusBuilt  = "built"
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Build is what RecordBuild stores for one BuildGraph.
type Build struct {
	// Analysis names the analysis, usually its directory.
	Analysis string

	// AnalysisHash identifies the analysis content.
	AnalysisHash string

	// Summary is the backend's view of the built graph.
	Summary backend.Summary
}

// RecordBuild stores a built graph as a new run with status "built" and
// returns it. The run, its nodes and its products are written in one
// transaction.
func (s *Store) RecordBuild(ctx context.Context, b Build) (Run, error) {
	stats, err := marshalStats(b.Summary.Stats)
	if err != nil {
		return Run{}, fmt.Errorf("record build: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record build: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// The logical clock is the next free seq
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("record build: next seq: %w", err)
	}

	run := Run{
		ID:           s.ids.NewID(),
		Seq:          seq,
		Analysis:     b.Analysis,
		AnalysisHash: b.AnalysisHash,
		Status:       StatusBuilt,
		Stats:        b.Summary.Stats,
		BuiltAt:      s.clock.Now().UTC(),
	}
	if run.Stats == nil {
		run.Stats = map[string]int{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, analysis, analysis_hash, status, stats, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Analysis,
		run.AnalysisHash,
		run.Status,
		stats,
		run.BuiltAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("record build: insert run: %w", err)
	}

	for i, n := range b.Summary.Nodes {
		cols, err := marshalColumns(n.Columns)
		if err != nil {
			return Run{}, fmt.Errorf("record build: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (run_id, pos, digest, parent, cut, columns)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, n.Digest, n.Parent, n.Cut, cols)
		if err != nil {
			return Run{}, fmt.Errorf("record build: insert node %s: %w", n.Digest, err)
		}
	}

	for i, p := range b.Summary.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (run_id, pos, name, output, kind, node, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, p.Name, p.Output, p.Kind, p.Node, p.Digest)
		if err != nil {
			return Run{}, fmt.Errorf("record build: insert product %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record build: commit: %w", err)
	}
	return run, nil
}

// FinishRun records the outcome of RunGraph for run id: "done" when
// runErr is nil, "failed" with its message otherwise. A run can be
// finished once.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, msg := StatusDone, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ? AND status = ?
	`, status, msg, s.clock.Now().UTC().Format(time.RFC3339Nano), id, StatusBuilt)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.ReadRun(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("finish run %s: %w", id, err)
		}
		return fmt.Errorf("finish run %s: %w", id, ErrRunFinished)
	}
	return nil
}

// ErrRunFinished is returned by FinishRun for a run that already has an
// outcome.
var ErrRunFinished = errors.New("run already finished")
