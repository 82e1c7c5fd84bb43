package op

import (
	"fmt"
	"strings"
)

// RangeOp is a derivation over a list of container indices: Select,
// Sort, Map, Find, Reduce and Combine. It binds one or more locals that
// only appear inside its body.
type RangeOp struct {
	base
	nRanges  int
	hasStart bool
	mapped   string
	locals   []*Local
}

// Body is the user callback that builds the per-element expression from
// the bound locals.
type Body func(locals ...Node) (Node, error)

// IndexRange returns the list of all indices of a container with size
// elements.
func IndexRange(size Node) *ConstructOp {
	return Construct("rdfhelpers::IndexRange<"+TypeSize+">", size)
}

func newRange(kind Kind, typeName string, ranges []Node, start, body Node, locals []*Local, mapped string) *RangeOp {
	ch := make([]Node, 0, len(ranges)+2)
	ch = append(ch, ranges...)
	if start != nil {
		ch = append(ch, start)
	}
	ch = append(ch, body)
	can := allCanDefine(ranges) && (start == nil || start.CanDefine()) && !hasFreeLocals(body, locals)
	n := &RangeOp{
		base:     newBase(kind, typeName, ch, can),
		nRanges:  len(ranges),
		hasStart: start != nil,
		mapped:   mapped,
		locals:   locals,
	}
	d := newDigester(kind, typeName).str(mapped).num(int64(len(ranges))).flag(start != nil).nodes(ch)
	ls := make([]Node, len(locals))
	for i, l := range locals {
		ls[i] = l
	}
	n.digest = d.nodes(ls).sum()
	return n
}

// hasFreeLocals reports whether body uses a local that is not in own,
// i.e. one bound by an enclosing range operation.
func hasFreeLocals(body Node, own []*Local) bool {
	free := Collect(body, DepsOptions{
		Stop: func(n Node) bool { return n.CanDefine() || n.Kind() == KindDefineOnFirstUse },
		Select: func(n Node) bool {
			if n.Kind() != KindLocal {
				return false
			}
			for _, l := range own {
				if Equal(n, l) {
					return false
				}
			}
			return true
		},
	})
	return len(free) > 0
}

// maxLocalIndex returns the highest local index bound by a range operation
// inside expr, or -1.
func maxLocalIndex(expr Node) int {
	isRange := func(n Node) bool { return n.Kind().IsRange() }
	mx := -1
	for _, n := range Collect(expr, DepsOptions{Stop: isRange, Select: isRange, VisitOnce: true}) {
		if m := n.(*RangeOp).MaxLocal(); m > mx {
			mx = m
		}
	}
	return mx
}

// bind calls body with provisional placeholders of the given types, then
// substitutes final placeholders numbered above every local bound inside
// the resulting expression.
func bind(types []string, extra func(args []Node, body Node) (Node, error), body Body) (Node, []*Local, error) {
	prov := make([]Node, len(types))
	for i, t := range types {
		prov[i] = newProvisional(t)
	}
	expr, err := body(prov...)
	if err != nil {
		return nil, nil, err
	}
	if expr == nil {
		return nil, nil, &Error{Code: ErrCodeInvalidArgument, Message: "range body returned no expression"}
	}
	if extra != nil {
		if expr, err = extra(prov, expr); err != nil {
			return nil, nil, err
		}
	}
	mx := maxLocalIndex(expr)
	locals := make([]*Local, len(types))
	final := make([]Node, len(types))
	for i, t := range types {
		locals[i] = newLocal(t, mx+1+i)
		final[i] = locals[i]
	}
	expr, err = Substitute(expr, prov, final)
	if err != nil {
		return nil, nil, err
	}
	return expr, locals, nil
}

func checkIndices(name string, rng Node) error {
	if rng == nil {
		return &Error{Code: ErrCodeInvalidArgument, Message: name + ": nil index range"}
	}
	return nil
}

// Select keeps the indices of rng for which pred is true.
func Select(rng Node, pred Body) (*RangeOp, error) {
	if err := checkIndices("select", rng); err != nil {
		return nil, err
	}
	expr, locals, err := bind([]string{TypeSize}, nil, pred)
	if err != nil {
		return nil, err
	}
	return newRange(KindSelect, VecType(TypeSize), []Node{rng}, nil, expr, locals, ""), nil
}

// Sort orders the indices of rng by ascending value of key.
func Sort(rng Node, key Body) (*RangeOp, error) {
	if err := checkIndices("sort", rng); err != nil {
		return nil, err
	}
	expr, locals, err := bind([]string{TypeSize}, nil, key)
	if err != nil {
		return nil, err
	}
	return newRange(KindSort, VecType(TypeSize), []Node{rng}, nil, expr, locals, ""), nil
}

// Map evaluates fun for each index of rng. An empty valueType takes the
// type of the body expression.
func Map(rng Node, valueType string, fun Body) (*RangeOp, error) {
	if err := checkIndices("map", rng); err != nil {
		return nil, err
	}
	expr, locals, err := bind([]string{TypeSize}, nil, fun)
	if err != nil {
		return nil, err
	}
	if valueType == "" {
		valueType = expr.Type()
	}
	return newRange(KindMap, VecType(valueType), []Node{rng}, nil, expr, locals, valueType), nil
}

// Find returns the first index of rng for which pred is true, or -1.
func Find(rng Node, pred Body) (*RangeOp, error) {
	if err := checkIndices("find", rng); err != nil {
		return nil, err
	}
	expr, locals, err := bind([]string{TypeSize}, nil, pred)
	if err != nil {
		return nil, err
	}
	return newRange(KindFind, TypeSize, []Node{rng}, nil, expr, locals, ""), nil
}

// Reduce folds the indices of rng into a value of start's type. accu is
// called with the previous result and the current index.
func Reduce(rng, start Node, accu func(prev, i Node) (Node, error)) (*RangeOp, error) {
	if err := checkIndices("reduce", rng); err != nil {
		return nil, err
	}
	if start == nil {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "reduce: nil start value"}
	}
	// index first, previous result second: i = max+1, prev = max+2
	expr, locals, err := bind([]string{TypeSize, start.Type()}, nil, func(l ...Node) (Node, error) {
		return accu(l[1], l[0])
	})
	if err != nil {
		return nil, err
	}
	return newRange(KindReduce, start.Type(), []Node{rng}, start, expr, locals, ""), nil
}

// Sum adds the values of fun over rng, starting from a zero of the given
// type.
func Sum(rng Node, zero Node, fun Body) (*RangeOp, error) {
	return Reduce(rng, zero, func(prev, i Node) (Node, error) {
		v, err := fun(i)
		if err != nil {
			return nil, err
		}
		return Add(prev, v), nil
	})
}

// Count returns the number of indices of rng for which pred is true.
func Count(rng Node, pred Body) (*RangeOp, error) {
	return Reduce(rng, Const(TypeSize, "0"), func(prev, i Node) (Node, error) {
		p, err := pred(i)
		if err != nil {
			return nil, err
		}
		one, err := Switch(p, Const(TypeSize, "1"), Const(TypeSize, "0"))
		if err != nil {
			return nil, err
		}
		return newMath("add", TypeSize, []Node{prev, one}), nil
	})
}

// Range is one input of Combine: a list of indices into the container
// identified by Base.
type Range struct {
	Indices Node
	Base    string
}

// SamePredicate decides whether two indices drawn from the same container
// may appear together in a combination.
type SamePredicate func(a, b Node) (Node, error)

// IndexOrdered keeps only combinations whose indices into one container
// are strictly increasing, so every unordered set appears once.
func IndexOrdered(a, b Node) (Node, error) { return Lt(a, b), nil }

// CombineOption configures Combine.
type CombineOption func(*combineConfig)

type combineConfig struct {
	same SamePredicate
}

// WithSamePredicate replaces IndexOrdered. A nil predicate disables the
// same-container check.
func WithSamePredicate(p SamePredicate) CombineOption {
	return func(c *combineConfig) { c.same = p }
}

// Combine builds the n-element combinations of ranges that satisfy pred.
// A single range is combined with itself n times. The same-container
// predicate is applied to every pair of positions whose ranges share a
// Base; pairs from different containers are never compared.
func Combine(n int, ranges []Range, pred Body, opts ...CombineOption) (*RangeOp, error) {
	cfg := combineConfig{same: IndexOrdered}
	for _, o := range opts {
		o(&cfg)
	}
	if n < 1 || len(ranges) == 0 {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("combine: need at least one range and n >= 1, got %d ranges and n=%d", len(ranges), n)}
	}
	if len(ranges) == 1 {
		r := ranges[0]
		ranges = make([]Range, n)
		for i := range ranges {
			ranges[i] = r
		}
	}
	if len(ranges) != n {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("combine: %d ranges for %d-element combinations", len(ranges), n)}
	}
	idxs := make([]Node, n)
	types := make([]string, n)
	for i, r := range ranges {
		if err := checkIndices("combine", r.Indices); err != nil {
			return nil, err
		}
		idxs[i] = r.Indices
		types[i] = TypeSize
	}
	same := func(args []Node, body Node) (Node, error) {
		if cfg.same == nil {
			return body, nil
		}
		var conds []Node
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if ranges[i].Base != ranges[j].Base {
					continue
				}
				c, err := cfg.same(args[i], args[j])
				if err != nil {
					return nil, err
				}
				conds = append(conds, c)
			}
		}
		if len(conds) == 0 {
			return body, nil
		}
		if len(conds) == 1 {
			return And(conds[0], body), nil
		}
		return And(And(conds...), body), nil
	}
	expr, locals, err := bind(types, same, pred)
	if err != nil {
		return nil, err
	}
	typeName := fmt.Sprintf("ROOT::VecOps::RVec<rdfhelpers::Combination<%d>>", n)
	return newRange(KindCombine, typeName, idxs, nil, expr, locals, ""), nil
}

// Ranges returns the index lists the operation iterates over.
func (n *RangeOp) Ranges() []Node { return n.children[:n.nRanges] }

// Start returns the initial value of a Reduce, or nil.
func (n *RangeOp) Start() Node {
	if !n.hasStart {
		return nil
	}
	return n.children[n.nRanges]
}

// Body returns the per-element expression.
func (n *RangeOp) Body() Node { return n.children[len(n.children)-1] }

// Locals returns the bound placeholders.
func (n *RangeOp) Locals() []*Local { return n.locals }

// MaxLocal returns the highest bound local index.
func (n *RangeOp) MaxLocal() int { return n.locals[len(n.locals)-1].index }

func (n *RangeOp) String() string {
	return n.signature(func() string {
		ls := make([]string, len(n.locals))
		for i, l := range n.locals {
			ls[i] = l.String()
		}
		start := ""
		if n.hasStart {
			start = n.Start().String() + ", "
		}
		return fmt.Sprintf("%s(%s, %s%s, [%s], %s)", n.kind, joinSigs(n.Ranges()), start, n.Body(), strings.Join(ls, ", "), n.typeName)
	})
}

func (n *RangeOp) rebuild(ch []Node) Node {
	var start Node
	if n.hasStart {
		start = ch[n.nRanges]
	}
	return newRange(n.kind, n.typeName, ch[:n.nRanges], start, ch[len(ch)-1], n.locals, n.mapped)
}

func localDecl(l *Local) string { return l.typeName + " " + l.Name() }

func (n *RangeOp) Code(ctx CodeContext) (string, error) {
	caps, err := Captures(n, ctx)
	if err != nil {
		return "", err
	}
	tokens := make([]string, len(caps))
	for i, c := range caps {
		tokens[i] = c.Token
	}
	capture := strings.Join(tokens, ",")
	rngs, err := renderAll(ctx, n.Ranges())
	if err != nil {
		return "", err
	}
	body, err := ctx.Render(n.Body())
	if err != nil {
		return "", err
	}
	switch n.kind {
	case KindSelect:
		return fmt.Sprintf("rdfhelpers::select(%s,\n    [%s] ( %s ) { return %s; })", rngs[0], capture, localDecl(n.locals[0]), body), nil
	case KindSort:
		return fmt.Sprintf("rdfhelpers::sort(%s,\n    [%s] ( %s ) { return %s; })", rngs[0], capture, localDecl(n.locals[0]), body), nil
	case KindMap:
		return fmt.Sprintf("rdfhelpers::map<%s>(%s,\n    [%s] ( %s ) { return %s; })", n.mapped, rngs[0], capture, localDecl(n.locals[0]), body), nil
	case KindFind:
		return fmt.Sprintf("rdfhelpers::next(%s,\n     [%s] ( %s ) { return %s; }, -1)", rngs[0], capture, localDecl(n.locals[0]), body), nil
	case KindReduce:
		start, err := ctx.Render(n.Start())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("rdfhelpers::reduce(%s, %s,\n     [%s] ( %s, %s ) { return %s; })",
			rngs[0], start, capture, localDecl(n.locals[1]), localDecl(n.locals[0]), body), nil
	case KindCombine:
		args := make([]string, len(n.locals))
		for i, l := range n.locals {
			args[i] = localDecl(l)
		}
		return fmt.Sprintf("rdfhelpers::combine(\n     [%s] ( %s ) { return %s; },\n     %s)",
			capture, strings.Join(args, ", "), body, strings.Join(rngs, ", ")), nil
	}
	return "", newError(ErrCodeInvalidArgument, n, "not a range operation")
}
