package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one ledger entry.
type Run struct {
	ID           string         `json:"id"`
	Seq          int64          `json:"seq"`
	Analysis     string         `json:"analysis"`
	AnalysisHash string         `json:"analysis_hash"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Stats        map[string]int `json:"stats"`
	BuiltAt      time.Time      `json:"built_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// Node is a recorded filter node.
type Node struct {
	Digest  string   `json:"digest"`
	Parent  string   `json:"parent,omitempty"`
	Cut     string   `json:"cut,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// Product is a recorded product.
type Product struct {
	Name   string `json:"name"`
	Output string `json:"output"`
	Kind   string `json:"kind"`
	Node   string `json:"node"`
	Digest string `json:"digest"`
}

const runColumns = `id, seq, analysis, analysis_hash, status, error, stats, built_at, finished_at`

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run. When analysis is not empty only its runs are
// listed.
//
// Returns an empty slice (not nil) if the ledger is empty.
func (s *Store) ListRuns(ctx context.Context, analysis string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if analysis != "" {
		query += ` WHERE analysis = ?`
		args = append(args, analysis)
	}
	// Deterministic ordering
	query += ` ORDER BY seq DESC, id COLLATE BINARY ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ReadNodes returns the nodes of a run in build order.
func (s *Store) ReadNodes(ctx context.Context, runID string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT digest, parent, cut, columns
		FROM nodes
		WHERE run_id = ?
		ORDER BY pos ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		var n Node
		var cols string
		if err := rows.Scan(&n.Digest, &n.Parent, &n.Cut, &cols); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if n.Columns, err = unmarshalColumns(cols); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// ReadProducts returns the products of a run in booking order.
func (s *Store) ReadProducts(ctx context.Context, runID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, output, kind, node, digest
		FROM products
		WHERE run_id = ?
		ORDER BY pos ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Name, &p.Output, &p.Kind, &p.Node, &p.Digest); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// FindProduct returns the runs that booked a product with the given
// digest, oldest first.
func (s *Store) FindProduct(ctx context.Context, digest string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.run_id
		FROM products p
		JOIN runs r ON p.run_id = r.id
		WHERE p.digest = ?
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product runs: %w", err)
	}
	return ids, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var stats, builtAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.Seq, &r.Analysis, &r.AnalysisHash, &r.Status, &r.Error, &stats, &builtAt, &finishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if r.Stats, err = unmarshalStats(stats); err != nil {
		return Run{}, err
	}
	if r.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return Run{}, fmt.Errorf("parse built_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		r.FinishedAt = &t
	}
	return r, nil
}
