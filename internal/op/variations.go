package op

import (
	"sort"
)

// VariedExpr lists the wrappers inside Expr that change for a variation.
type VariedExpr struct {
	Expr  Node
	Nodes []*SystAlt
}

// Variations maps a variation name to the expressions it affects, keyed
// by expression digest.
type Variations map[string]map[Digest]VariedExpr

// CollectVariations discovers the open SystAlt wrappers reachable from
// exprs. Each expression is walked once; alternatives that are not
// presented are not searched.
func CollectVariations(exprs ...Node) Variations {
	out := make(Variations)
	isOpen := func(n Node) bool {
		s, ok := n.(*SystAlt)
		return ok && len(s.Variations()) > 0
	}
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		seen := make(map[*SystAlt]bool)
		for _, n := range Collect(expr, DepsOptions{Select: isOpen, VisitOnce: true}) {
			s := n.(*SystAlt)
			if seen[s] {
				continue
			}
			seen[s] = true
			for _, v := range s.Variations() {
				m, ok := out[v]
				if !ok {
					m = make(map[Digest]VariedExpr)
					out[v] = m
				}
				ve := m[expr.Digest()]
				ve.Expr = expr
				ve.Nodes = append(ve.Nodes, s)
				m[expr.Digest()] = ve
			}
		}
	}
	return out
}

// Names returns the variation names, sorted.
func (v Variations) Names() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether variation affects anything.
func (v Variations) Has(variation string) bool {
	_, ok := v[variation]
	return ok
}

// Nodes returns the wrappers to rebind in expr for variation, or nil if
// expr is not affected.
func (v Variations) Nodes(variation string, expr Node) []*SystAlt {
	m, ok := v[variation]
	if !ok || expr == nil {
		return nil
	}
	return m[expr.Digest()].Nodes
}

// Merge returns the union of v and other. Neither input is modified.
func (v Variations) Merge(other Variations) Variations {
	out := make(Variations, len(v)+len(other))
	for _, src := range []Variations{v, other} {
		for name, exprs := range src {
			m, ok := out[name]
			if !ok {
				m = make(map[Digest]VariedExpr)
				out[name] = m
			}
			for d, ve := range exprs {
				if _, dup := m[d]; !dup {
					m[d] = ve
				}
			}
		}
	}
	return out
}

// Vary returns expr with nodes rebound to variation. Wrappers that only
// declare variation, without an alternative for it, are left as they are.
// When no wrapper changes expr itself is returned, so unaffected
// expressions stay shared with the nominal graph.
func Vary(expr Node, nodes []*SystAlt, variation string) (Node, error) {
	sel := make(map[Digest]bool, len(nodes))
	for _, s := range nodes {
		if _, ok := s.Alternative(variation); ok {
			sel[s.Digest()] = true
		}
	}
	if len(sel) == 0 {
		return expr, nil
	}
	return Clone(expr,
		func(n Node) bool { return n.Kind() == KindSystAlt && sel[n.Digest()] },
		func(n Node) (Node, error) { return n.(*SystAlt).Rebind(variation) },
	)
}

// ForVariation returns expr as seen for one variation: wrappers that know
// the variation present it, all other open wrappers are pinned to their
// nominal expression. The result has no open wrappers left.
func ForVariation(expr Node, variation string) (Node, error) {
	vars := CollectVariations(expr)
	change := make(map[Digest]bool)
	for _, s := range vars.Nodes(variation, expr) {
		change[s.Digest()] = true
	}
	rebind := false
	return Clone(expr,
		func(n Node) bool {
			s, ok := n.(*SystAlt)
			rebind = ok && change[s.Digest()]
			return ok && len(s.Variations()) > 0
		},
		func(n Node) (Node, error) {
			s := n.(*SystAlt)
			if rebind {
				return s.Rebind(variation)
			}
			return s.Freeze(), nil
		},
	)
}
