// Package store provides the SQLite-backed run ledger.
//
// The ledger is append-only and records, per run:
//   - Runs: one row per BuildGraph, with its outcome once RunGraph returns
//   - Nodes: the realised filter nodes (digest, parent, cut, columns)
//   - Products: the booked results (name, output, kind, node, digest)
//
// # Critical Patterns
//
// CP-1: Logical Ordering
//   - Runs are ordered by seq INTEGER (a logical clock), never by timestamps
//   - Timestamps are informational and come from an injectable Clock
//
// CP-2: Deterministic Query Results
//   - All list queries include ORDER BY seq, id COLLATE BINARY
//   - Child rows are ordered by their position in the build
//
// CP-3: Content-Addressed Graph Records
//   - Node and product rows carry the backend digests, so two runs of the
//     same analysis can be compared row by row
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
