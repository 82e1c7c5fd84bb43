package backend

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/onepass/internal/engine"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
)

// Product kinds.
const (
	KindHisto    = "histo"
	KindSnapshot = "snapshot"
	KindCounter  = "counter"
)

// Product is one result booked for an output: a histogram, a cut-flow
// counter or a skim. It is created unbooked; BuildGraph books it.
type Product interface {
	// Name is the result name, "<output>" or "<output>__<variation>".
	Name() string

	// Kind is KindHisto, KindCounter or KindSnapshot.
	Kind() string

	// Node is the filter node the product is booked on.
	Node() *FilterNode

	// Digest identifies the product by its name and node.
	Digest() op.Digest

	// Result is the engine result, nil before the product is booked.
	Result() engine.Result

	make() error
}

// HistoHandle is a histogram of some expressions at one node.
type HistoHandle struct {
	backend *Backend
	node    *FilterNode
	name    string
	kind    string
	vars    []op.Node
	weight  op.Node
	model   engine.HistoModel
	result  engine.Result
}

func newHisto(b *Backend, node *FilterNode, name string, vars []op.Node, weight op.Node, title string, binnings []selection.Binning) *HistoHandle {
	axes := make([]engine.Axis, len(binnings))
	for i, bn := range binnings {
		axes[i] = engine.Axis{N: bn.Bins(), Min: bn.Minimum(), Max: bn.Maximum()}
		if v, ok := bn.(selection.Variable); ok {
			axes[i].Edges = append([]float64(nil), v.Edges...)
		}
	}
	return &HistoHandle{
		backend: b,
		node:    node,
		name:    name,
		kind:    KindHisto,
		vars:    vars,
		weight:  weight,
		model:   engine.HistoModel{Name: name, Title: title, Axes: axes},
	}
}

func newCounter(b *Backend, node *FilterNode, name, title string, zero, weight op.Node) *HistoHandle {
	h := newHisto(b, node, name, []op.Node{zero}, weight, title,
		[]selection.Binning{selection.Equidistant{N: 1, Min: 0, Max: 1}})
	h.kind = KindCounter
	return h
}

func (h *HistoHandle) Name() string          { return h.name }
func (h *HistoHandle) Kind() string          { return h.kind }
func (h *HistoHandle) Node() *FilterNode     { return h.node }
func (h *HistoHandle) Result() engine.Result { return h.result }

// Model returns the histogram model passed to the engine.
func (h *HistoHandle) Model() engine.HistoModel { return h.model }

// Weight returns the weight expression, nil for an unweighted histogram.
func (h *HistoHandle) Weight() op.Node { return h.weight }

// Digest identifies the histogram by its name and node.
func (h *HistoHandle) Digest() op.Digest {
	return digestOf(domainProduct, h.kind, h.name, h.node.digest.String())
}

func (h *HistoHandle) make() error {
	if h.result != nil {
		return nil
	}
	node := h.node
	if err := node.realise(); err != nil {
		return err
	}
	exprs := h.vars
	if h.weight != nil {
		exprs = append(append([]op.Node(nil), h.vars...), h.weight)
	}
	cols := make([]engine.Column, len(exprs))
	for i, x := range exprs {
		name, err := node.columnFor(x, fmt.Sprintf("v%d_%s", i, h.name))
		if err != nil {
			return fmt.Errorf("histogram %s: %w", h.name, err)
		}
		cols[i] = engine.Column{Name: name, Type: x.Type()}
	}
	res, err := h.backend.eng.Histogram(node.df, h.model, cols)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", h.name, err)
	}
	h.result = res
	h.backend.stats["Histo"+strconv.Itoa(len(h.vars))+"D"]++
	return nil
}

// columnFor returns a column holding x at f: the column read directly,
// an existing definition, or a new one named name.
func (f *FilterNode) columnFor(x op.Node, name string) (string, error) {
	if c, ok := op.Unwrap(x).(*op.ColumnRef); ok {
		return c.Name(), nil
	}
	if nm := f.ColumnName(x); nm != "" {
		return nm, nil
	}
	return f.define(x, name)
}

// SkimHandle is a skim of the rows passing a selection.
type SkimHandle struct {
	backend   *Backend
	node      *FilterNode
	skim      *selection.Skim
	inputCols []string
	inputs    map[string]bool
	columns   []string
	result    engine.Result
}

func (s *SkimHandle) Name() string          { return s.skim.Name() }
func (s *SkimHandle) Kind() string          { return KindSnapshot }
func (s *SkimHandle) Node() *FilterNode     { return s.node }
func (s *SkimHandle) Result() engine.Result { return s.result }

// Columns returns the columns written, available once the skim is
// booked.
func (s *SkimHandle) Columns() []string { return append([]string(nil), s.columns...) }

// Digest identifies the skim by its name and node.
func (s *SkimHandle) Digest() op.Digest {
	return digestOf(domainProduct, KindSnapshot, s.skim.Name(), s.node.digest.String())
}

func (s *SkimHandle) make() error {
	if s.result != nil {
		return nil
	}
	node := s.node
	if err := node.realise(); err != nil {
		return err
	}
	defined := node.definedNames()
	for _, c := range s.inputCols {
		if defined[c] {
			return newError(ErrCodeDefinedColumn, c, "skim %s copies a column that is defined in the graph, add it as a defined branch instead", s.skim.Name())
		}
	}
	cols := append([]string(nil), s.inputCols...)
	for _, br := range s.skim.DefinedBranches() {
		switch {
		case s.inputs[br.Name]:
			continue
		case defined[br.Name]:
			cols = append(cols, br.Name)
		default:
			if _, err := node.define(br.Expr, br.Name); err != nil {
				return fmt.Errorf("skim %s: %w", s.skim.Name(), err)
			}
			defined[br.Name] = true
			cols = append(cols, br.Name)
		}
	}
	res, err := s.backend.eng.Snapshot(node.df, engine.SnapshotSpec{
		Name:     s.skim.Name(),
		TreeName: s.skim.TreeName(),
		File:     "skim_" + s.skim.Name() + ".root",
		Columns:  cols,
		MaxRows:  s.skim.MaxSelected(),
	})
	if err != nil {
		return fmt.Errorf("skim %s: %w", s.skim.Name(), err)
	}
	s.columns = cols
	s.result = res
	s.backend.stats["Snapshot"]++
	return nil
}

func unionSorted(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, s := range l {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
