package selection

import (
	"sort"

	"github.com/roach88/onepass/internal/op"
)

// Selection is one stage of the selection tree: the cuts and weights of
// its parent plus its own.
type Selection struct {
	name     string
	parent   *Selection
	cuts     []op.Node
	weights  []op.Node
	autoSyst bool

	cutSysts    op.Variations
	weightSysts op.Variations
}

// Option configures a selection.
type Option func(*options)

type options struct {
	cuts     []op.Node
	weights  []op.Node
	autoSyst bool
}

// WithCuts adds boolean cut expressions.
func WithCuts(cuts ...op.Node) Option {
	return func(o *options) { o.cuts = append(o.cuts, cuts...) }
}

// WithWeights adds numeric weight factors.
func WithWeights(weights ...op.Node) Option {
	return func(o *options) { o.weights = append(o.weights, weights...) }
}

// WithAutoSyst turns automatic systematic variations on or off (default
// on). It cannot turn them back on below a parent that has them off.
func WithAutoSyst(on bool) Option {
	return func(o *options) { o.autoSyst = on }
}

// NewRoot creates a selection without parent.
func NewRoot(name string, opts ...Option) (*Selection, error) {
	return newSelection(nil, name, opts)
}

// Refine creates a child selection adding cuts and weights to s.
func (s *Selection) Refine(name string, opts ...Option) (*Selection, error) {
	return newSelection(s, name, opts)
}

func newSelection(parent *Selection, name string, opts []Option) (*Selection, error) {
	if name == "" {
		return nil, newError(ErrCodeInvalidName, name, "selection name is empty")
	}
	o := options{autoSyst: true}
	for _, opt := range opts {
		opt(&o)
	}
	for i, c := range o.cuts {
		if c == nil {
			return nil, newError(ErrCodeInvalidCut, name, "cut %d is nil", i)
		}
		if !op.IsBoolType(c.Type()) {
			return nil, newError(ErrCodeInvalidCut, name, "cut %d has type %s, want bool", i, c.Type())
		}
	}
	for i, w := range o.weights {
		if w == nil {
			return nil, newError(ErrCodeInvalidWeight, name, "weight %d is nil", i)
		}
		if !op.IsNumberType(w.Type()) {
			return nil, newError(ErrCodeInvalidWeight, name, "weight %d has type %s, want a number", i, w.Type())
		}
	}
	s := &Selection{
		name:     name,
		parent:   parent,
		cuts:     o.cuts,
		weights:  o.weights,
		autoSyst: o.autoSyst && (parent == nil || parent.autoSyst),
	}
	if s.autoSyst {
		s.cutSysts = op.CollectVariations(s.cuts...)
		s.weightSysts = op.CollectVariations(s.weights...)
	} else {
		s.cutSysts = op.Variations{}
		s.weightSysts = op.Variations{}
	}
	return s, nil
}

// Name returns the selection name.
func (s *Selection) Name() string { return s.name }

// Parent returns the parent selection, or nil for a root.
func (s *Selection) Parent() *Selection { return s.parent }

// AutoSyst reports whether variations are propagated automatically.
func (s *Selection) AutoSyst() bool { return s.autoSyst }

// OwnCuts returns the cuts added by this selection.
func (s *Selection) OwnCuts() []op.Node { return append([]op.Node(nil), s.cuts...) }

// OwnWeights returns the weights added by this selection.
func (s *Selection) OwnWeights() []op.Node { return append([]op.Node(nil), s.weights...) }

// Cuts returns all cuts, the root's first.
func (s *Selection) Cuts() []op.Node {
	if s.parent == nil {
		return s.OwnCuts()
	}
	return append(s.parent.Cuts(), s.cuts...)
}

// Weights returns all weight factors, the root's first.
func (s *Selection) Weights() []op.Node {
	if s.parent == nil {
		return s.OwnWeights()
	}
	return append(s.parent.Weights(), s.weights...)
}

// Cut returns the conjunction of all cuts.
func (s *Selection) Cut() op.Node { return AllOf(s.Cuts()) }

// Weight returns the product of all weights.
func (s *Selection) Weight() op.Node { return ProductOf(s.Weights()) }

// CutVariations returns the variations of this selection's own cuts.
func (s *Selection) CutVariations() op.Variations { return s.cutSysts }

// WeightVariations returns the variations of this selection's own
// weights.
func (s *Selection) WeightVariations() op.Variations { return s.weightSysts }

// CutSystematics returns the names of the variations that change a cut of
// this selection or an ancestor, sorted.
func (s *Selection) CutSystematics() []string {
	return s.collect(func(x *Selection) op.Variations { return x.cutSysts })
}

// WeightSystematics returns the names of the variations that change a
// weight of this selection or an ancestor, sorted.
func (s *Selection) WeightSystematics() []string {
	return s.collect(func(x *Selection) op.Variations { return x.weightSysts })
}

// Systematics returns the union of CutSystematics and WeightSystematics.
func (s *Selection) Systematics() []string {
	return s.collect(func(x *Selection) op.Variations { return x.cutSysts.Merge(x.weightSysts) })
}

// HasSystematic reports whether variation v is in Systematics.
func (s *Selection) HasSystematic(v string) bool {
	for x := s; x != nil; x = x.parent {
		if x.cutSysts.Has(v) || x.weightSysts.Has(v) {
			return true
		}
	}
	return false
}

func (s *Selection) collect(f func(*Selection) op.Variations) []string {
	set := make(map[string]struct{})
	for x := s; x != nil; x = x.parent {
		for v := range f(x) {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Path returns the selections from the root down to s.
func (s *Selection) Path() []*Selection {
	var out []*Selection
	for x := s; x != nil; x = x.parent {
		out = append(out, x)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Selection) String() string { return "Selection(" + s.name + ")" }

// AllOf returns the conjunction of cuts: the single cut itself, or
// true when there are none.
func AllOf(cuts []op.Node) op.Node {
	switch len(cuts) {
	case 0:
		return op.Bool(true)
	case 1:
		return cuts[0]
	}
	return op.And(cuts...)
}

// ProductOf returns the product of weights: the single weight itself,
// or 1 when there are none.
func ProductOf(weights []op.Node) op.Node {
	switch len(weights) {
	case 0:
		return op.Float(1)
	case 1:
		return weights[0]
	}
	return op.Multiply(weights...)
}
