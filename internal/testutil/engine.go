package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/onepass/internal/engine"
)

// Call records one call made to a FakeEngine.
type Call struct {
	// Op is "Filter", "Define", "Declare", "Histogram" or "Snapshot".
	Op string

	// Node is the node the call was made on; Out the node or result it
	// returned.
	Node string
	Out  string

	// Name is the defined column, histogram or skim name.
	Name string

	// Fn is the code passed to Filter and Define.
	Fn engine.Function

	// Columns are the histogram columns or the snapshot columns.
	Columns []string

	// Code is the declaration passed to Declare.
	Code string
}

// FakeResult is a result booked on a FakeEngine.
type FakeResult struct {
	name  string
	done  bool
	Node  string
	Model engine.HistoModel
	Spec  engine.SnapshotSpec
}

func (r *FakeResult) Name() string { return r.name }
func (r *FakeResult) Done() bool   { return r.done }

type fakeNode string

func (n fakeNode) Name() string { return string(n) }

// FakeEngine is an engine.Engine that records every call and counts event
// loops instead of running anything.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeEngine struct {
	mu      sync.Mutex
	columns []string
	calls   []Call
	nNodes  int
	runs    int
	runErr  error
	results []*FakeResult
}

var _ engine.Engine = (*FakeEngine)(nil)

// NewFakeEngine creates a fake engine over the given input columns.
func NewFakeEngine(columns ...string) *FakeEngine {
	return &FakeEngine{columns: columns}
}

// FailRun makes every later Run return err.
func (e *FakeEngine) FailRun(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runErr = err
}

func (e *FakeEngine) Root() engine.Node { return fakeNode("root") }

func (e *FakeEngine) Columns() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.columns...)
}

func (e *FakeEngine) newNode() fakeNode {
	e.nNodes++
	return fakeNode(fmt.Sprintf("n%d", e.nNodes))
}

func (e *FakeEngine) Filter(n engine.Node, fn engine.Function) (engine.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.newNode()
	e.calls = append(e.calls, Call{Op: "Filter", Node: n.Name(), Out: out.Name(), Fn: fn})
	return out, nil
}

func (e *FakeEngine) Define(n engine.Node, name string, fn engine.Function) (engine.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.newNode()
	e.calls = append(e.calls, Call{Op: "Define", Node: n.Name(), Out: out.Name(), Name: name, Fn: fn})
	return out, nil
}

func (e *FakeEngine) Declare(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: "Declare", Code: code})
	return nil
}

func (e *FakeEngine) Histogram(n engine.Node, model engine.HistoModel, columns []engine.Column) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	r := &FakeResult{name: model.Name, Node: n.Name(), Model: model}
	e.results = append(e.results, r)
	e.calls = append(e.calls, Call{Op: "Histogram", Node: n.Name(), Out: model.Name, Name: model.Name, Columns: names})
	return r, nil
}

func (e *FakeEngine) Snapshot(n engine.Node, spec engine.SnapshotSpec) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &FakeResult{name: spec.Name, Node: n.Name(), Spec: spec}
	e.results = append(e.results, r)
	e.calls = append(e.calls, Call{Op: "Snapshot", Node: n.Name(), Out: spec.Name, Name: spec.Name, Columns: spec.Columns})
	return r, nil
}

// Run counts the event loop and marks results done.
func (e *FakeEngine) Run(_ context.Context, results []engine.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs++
	if e.runErr != nil {
		return e.runErr
	}
	for _, r := range results {
		if fr, ok := r.(*FakeResult); ok {
			fr.done = true
		}
	}
	return nil
}

// Calls returns the recorded calls, all of them when op is empty.
func (e *FakeEngine) Calls(op string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Call
	for _, c := range e.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of calls of op.
func (e *FakeEngine) Count(op string) int { return len(e.Calls(op)) }

// Runs returns how many times Run was called.
func (e *FakeEngine) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

// Result returns the booked result with the given name.
func (e *FakeEngine) Result(name string) (*FakeResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.results {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// Defined returns the names of all defined columns, in order.
func (e *FakeEngine) Defined() []string {
	var out []string
	for _, c := range e.Calls("Define") {
		out = append(out, c.Name)
	}
	return out
}
