package op

// DepsOptions controls a dependency traversal.
type DepsOptions struct {
	// Stop, if set, prevents descending into a node. The node itself may
	// still be yielded by its parent.
	Stop func(Node) bool

	// Select, if set, filters the yielded nodes. Nil selects everything.
	Select func(Node) bool

	// IncludeLocal also yields the locals bound by range operations that
	// are traversed. By default they are hidden below their binder.
	IncludeLocal bool

	// VisitOnce descends into every node at most once, which keeps
	// traversals of heavily shared DAGs linear.
	VisitOnce bool
}

type walker struct {
	opts DepsOptions
	seen map[Node]struct{}
	out  []Node
}

// Deps returns the transitive dependencies of root, in depth-first order.
// Without VisitOnce a node reachable along several paths is yielded once
// per path.
func Deps(root Node, opts DepsOptions) []Node {
	w := &walker{opts: opts}
	if opts.VisitOnce {
		w.seen = make(map[Node]struct{})
	}
	w.walk(root, nil)
	return w.out
}

// Collect is Deps that also considers root itself.
func Collect(root Node, opts DepsOptions) []Node {
	var out []Node
	if opts.Select == nil || opts.Select(root) {
		out = append(out, root)
	}
	return append(out, Deps(root, opts)...)
}

func (w *walker) stop(n Node) bool {
	if w.seen != nil {
		if _, ok := w.seen[n]; ok {
			return true
		}
		w.seen[n] = struct{}{}
	}
	return w.opts.Stop != nil && w.opts.Stop(n)
}

func (w *walker) walk(n Node, hidden []*Local) {
	if w.stop(n) {
		return
	}
	if r, ok := n.(*RangeOp); ok && !w.opts.IncludeLocal {
		hidden = append(hidden[:len(hidden):len(hidden)], r.locals...)
	}
	for _, c := range n.operands() {
		if (w.opts.Select == nil || w.opts.Select(c)) && !isHidden(c, hidden) {
			w.out = append(w.out, c)
		}
		w.walk(c, hidden)
	}
}

func isHidden(n Node, hidden []*Local) bool {
	if n.Kind() != KindLocal {
		return false
	}
	for _, l := range hidden {
		if Equal(n, l) {
			return true
		}
	}
	return false
}

// Clone returns a copy of root where every node for which sel returns
// true is replaced by rewrite applied to its (cloned) self. Only the
// ancestors of replaced nodes are rebuilt; everything else is shared with
// root. If nothing is selected, root itself is returned.
//
// sel is evaluated on the original nodes, so it can match by identity or
// digest of the input DAG. A node shared by several parents is visited
// once.
func Clone(root Node, sel func(Node) bool, rewrite func(Node) (Node, error)) (Node, error) {
	c := &cloner{memo: make(map[Node]Node), sel: sel, rewrite: rewrite}
	return c.clone(root)
}

type cloner struct {
	memo    map[Node]Node
	sel     func(Node) bool
	rewrite func(Node) (Node, error)
}

func (c *cloner) clone(n Node) (Node, error) {
	if r, ok := c.memo[n]; ok {
		return r, nil
	}
	kids := n.childNodes()
	var fresh []Node
	for i, k := range kids {
		ck, err := c.clone(k)
		if err != nil {
			return nil, err
		}
		if ck != k {
			if fresh == nil {
				fresh = make([]Node, len(kids))
				copy(fresh, kids)
			}
			fresh[i] = ck
		}
	}
	out := n
	if fresh != nil {
		out = n.rebuild(fresh)
	}
	if c.sel != nil && c.sel(n) {
		r, err := c.rewrite(out)
		if err != nil {
			return nil, err
		}
		out = r
	}
	c.memo[n] = out
	return out, nil
}

// Substitute replaces every node equal to one of from by the node at the
// same position in to.
func Substitute(root Node, from, to []Node) (Node, error) {
	if len(from) != len(to) {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "substitute: mismatched lengths"}
	}
	idx := make(map[Digest]int, len(from))
	for i, f := range from {
		idx[f.Digest()] = i
	}
	var hit int
	return Clone(root,
		func(n Node) bool {
			i, ok := idx[n.Digest()]
			hit = i
			return ok
		},
		func(Node) (Node, error) { return to[hit], nil },
	)
}
