package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/onepass/internal/backend"
	"github.com/roach88/onepass/internal/testutil"
)

// createTestStore creates a new ledger in a temporary directory, with a
// deterministic clock and run IDs.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path,
		WithClock(testutil.NewDeterministicClock()),
		WithIDs(testutil.NewFixedIDs(ids...)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testSummary is the summary of a two-node graph with one histogram.
func testSummary() backend.Summary {
	return backend.Summary{
		Nodes: []backend.NodeSummary{
			{Digest: "root-digest", State: "built"},
			{Digest: "child-digest", Parent: "root-digest", Cut: "( pt >  10.0 )", State: "built", Columns: []string{"w_sel"}},
		},
		Products: []backend.ProductSummary{
			{Name: "h", Output: "h", Kind: backend.KindHisto, Node: "child-digest", Digest: "h-digest"},
			{Name: "h__jesup", Output: "h", Kind: backend.KindHisto, Node: "child-digest", Digest: "h-up-digest"},
		},
		Stats: map[string]int{"Filter": 1, "Define": 1, "Histo1D": 2},
	}
}
