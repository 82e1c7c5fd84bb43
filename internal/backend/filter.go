package backend

import (
	"fmt"
	"sort"

	"github.com/roach88/onepass/internal/engine"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
)

// State is the lifecycle stage of a FilterNode.
type State int

const (
	// StateUnrealised: no engine node exists yet.
	StateUnrealised State = iota
	// StateBuilt: the engine node exists, results may be booked on it.
	StateBuilt
	// StateDone: the event loop has run.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUnrealised:
		return "unrealised"
	case StateBuilt:
		return "built"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type explicitDefine struct {
	expr op.Node
	name string
}

// FilterNode is one engine filter with the columns defined on it. It is
// the op.CodeContext expressions at this point of the network render in.
type FilterNode struct {
	backend *Backend
	parent  *FilterNode
	cut     op.Node
	digest  op.Digest

	children   map[op.Digest]*FilterNode
	childOrder []*FilterNode
	vars       map[string]*FilterNode

	explicit []explicitDefine
	defined  map[op.Digest]string
	colOrder []string

	df    engine.Node
	state State
}

var _ op.CodeContext = (*FilterNode)(nil)

func newRootNode(b *Backend) *FilterNode {
	return &FilterNode{
		backend:  b,
		digest:   digestOf(domainFilter, "root"),
		children: make(map[op.Digest]*FilterNode),
		vars:     make(map[string]*FilterNode),
		defined:  make(map[op.Digest]string),
	}
}

// Parent returns the parent node, nil for the root.
func (f *FilterNode) Parent() *FilterNode { return f.parent }

// Cut returns the cut applied on top of the parent, nil for the root.
func (f *FilterNode) Cut() op.Node { return f.cut }

// Digest identifies the node by its chain of cuts.
func (f *FilterNode) Digest() op.Digest { return f.digest }

// State returns the lifecycle stage.
func (f *FilterNode) State() State { return f.state }

// Children returns the child nodes in creation order.
func (f *FilterNode) Children() []*FilterNode { return append([]*FilterNode(nil), f.childOrder...) }

// Variation returns the node that replaces f for variation v, if the
// variation changes a cut at or above f.
func (f *FilterNode) Variation(v string) (*FilterNode, bool) {
	n, ok := f.vars[v]
	return n, ok
}

// Columns returns the names of the columns defined on this node, in
// definition order. Columns inherited from ancestors are not included.
func (f *FilterNode) Columns() []string { return append([]string(nil), f.colOrder...) }

// ChildWithCuts returns the child of f that applies the conjunction of
// cuts, creating it on first request.
func (f *FilterNode) ChildWithCuts(cuts []op.Node) *FilterNode {
	cut := selection.AllOf(cuts)
	d := cut.Digest()
	if c, ok := f.children[d]; ok {
		f.backend.logger.Debug("reusing child filter node", "digest", c.digest.Short())
		return c
	}
	c := &FilterNode{
		backend:  f.backend,
		parent:   f,
		cut:      cut,
		digest:   digestOf(domainFilter, f.digest.String(), d.String()),
		children: make(map[op.Digest]*FilterNode),
		vars:     make(map[string]*FilterNode),
		defined:  make(map[op.Digest]string),
	}
	f.children[d] = c
	f.childOrder = append(f.childOrder, c)
	f.backend.logger.Debug("created child filter node", "digest", c.digest.Short(), "parent", f.digest.Short())
	return c
}

// realise creates the engine node: the parent first, then the filter,
// then the explicit defines.
func (f *FilterNode) realise() error {
	if f.df != nil {
		return nil
	}
	b := f.backend
	if f.parent == nil {
		f.df = b.eng.Root()
	} else {
		if err := f.parent.realise(); err != nil {
			return err
		}
		code, err := f.parent.Render(f.cut)
		if err != nil {
			return fmt.Errorf("render cut: %w", err)
		}
		fn, err := b.function(f.parent, code, f.cut)
		if err != nil {
			return err
		}
		df, err := b.eng.Filter(f.parent.df, fn)
		if err != nil {
			return fmt.Errorf("filter %s: %w", f.digest.Short(), err)
		}
		b.stats["Filter"]++
		f.df = df
		for d, nm := range f.parent.defined {
			f.defined[d] = nm
		}
	}
	f.state = StateBuilt
	for _, ed := range f.explicit {
		if _, err := f.define(ed.expr, ed.name); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the code for n at this node: the name of the column
// holding it, a freshly defined column, or inline code.
func (f *FilterNode) Render(n op.Node) (string, error) {
	if err := f.realise(); err != nil {
		return "", err
	}
	if nm := f.ColumnName(n); nm != "" {
		return nm, nil
	}
	if f.ShouldDefine(n) {
		return f.define(n, "")
	}
	return n.Code(f)
}

// ColumnName returns the column holding n at this node, "" if none.
func (f *FilterNode) ColumnName(n op.Node) string { return f.defined[n.Digest()] }

// ShouldDefine reports whether n is promoted to a column when first used.
func (f *FilterNode) ShouldDefine(n op.Node) bool { return f.backend.ShouldDefine(n) }

// Symbol declares a global symbol through the backend.
func (f *FilterNode) Symbol(definition, nameHint string) (string, error) {
	return f.backend.symbol(definition, nameHint)
}

// define adds a column computing expr, named name or a generated name.
func (f *FilterNode) define(expr op.Node, name string) (string, error) {
	if err := f.realise(); err != nil {
		return "", err
	}
	b := f.backend
	if name == "" {
		name = b.newColumnName()
	}
	var code string
	var err error
	if nm := f.ColumnName(expr); nm != "" {
		code = nm
	} else if code, err = expr.Code(f); err != nil {
		return "", fmt.Errorf("define %s: %w", name, err)
	}
	fn, err := b.function(f, code, expr)
	if err != nil {
		return "", err
	}
	df, err := b.eng.Define(f.df, name, fn)
	if err != nil {
		return "", fmt.Errorf("define %s: %w", name, err)
	}
	b.stats["Define"]++
	b.logger.Debug("defined column", "name", name, "node", f.digest.Short())
	f.df = df
	f.defined[expr.Digest()] = name
	f.colOrder = append(f.colOrder, name)
	return name, nil
}

// explDefine requests a column for expr, now if the node is realised and
// at realisation otherwise.
func (f *FilterNode) explDefine(expr op.Node, name string) error {
	if f.df != nil {
		if f.ColumnName(expr) == "" {
			_, err := f.define(expr, name)
			return err
		}
		return nil
	}
	for _, ed := range f.explicit {
		if op.Equal(ed.expr, expr) {
			return nil
		}
	}
	f.explicit = append(f.explicit, explicitDefine{expr: expr, name: name})
	return nil
}

// makeWeight returns the product of parentWeight and weights. Unless the
// product is a plain column read, it is defined as the column name.
func (f *FilterNode) makeWeight(weights []op.Node, name string, parentWeight op.Node) (op.Node, error) {
	if parentWeight != nil {
		weights = append([]op.Node{parentWeight}, weights...)
	}
	w := selection.ProductOf(weights)
	if op.Unwrap(w).Kind() != op.KindColumn {
		if err := f.explDefine(w, name); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// definedNames returns every column visible at this node.
func (f *FilterNode) definedNames() map[string]bool {
	out := make(map[string]bool, len(f.defined))
	for _, nm := range f.defined {
		out[nm] = true
	}
	return out
}

// walk visits f and every node below it, children in creation order.
// Variation branches are children of some node, so they are visited too.
func (f *FilterNode) walk(visit func(*FilterNode)) {
	visit(f)
	for _, c := range f.childOrder {
		c.walk(visit)
	}
}

// variationNames returns the variations f branches for, sorted.
func (f *FilterNode) variationNames() []string {
	out := make([]string, 0, len(f.vars))
	for v := range f.vars {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
