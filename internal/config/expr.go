package config

import (
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/onepass/internal/op"
)

// exprKeys are the keys that select an expression form. A struct
// expression has exactly one of them.
var exprKeys = []string{
	"column", "const", "fn", "call", "syst", "ref", "item", "size", "deferred",
	"select", "sort", "map", "sum", "count", "find", "combine",
}

// collection is a group of array columns <name>_<field> sharing a size
// column.
type collection struct {
	name   string
	size   op.Node
	fields map[string]string
}

func (c *collection) field(name string) (op.Node, string, bool) {
	typ, ok := c.fields[name]
	if !ok {
		return nil, "", false
	}
	return op.ArrayColumn(typ, c.name+"_"+name, c.size), typ, true
}

// local is an index bound by a range expression.
type local struct {
	index op.Node
	coll  *collection
}

// scope resolves the names an expression may use.
type scope struct {
	columns     map[string]op.Node
	collections map[string]*collection
	defines     map[string]op.Node
	locals      map[string]local
}

func newScope() *scope {
	return &scope{
		columns:     map[string]op.Node{},
		collections: map[string]*collection{},
		defines:     map[string]op.Node{},
		locals:      map[string]local{},
	}
}

func (s *scope) withLocal(name string, l local) *scope {
	child := *s
	child.locals = make(map[string]local, len(s.locals)+1)
	for k, v := range s.locals {
		child.locals[k] = v
	}
	child.locals[name] = l
	return &child
}

// lookup resolves a bare name: locals shadow defines, defines shadow
// columns.
func (s *scope) lookup(name string, pos token.Pos) (op.Node, error) {
	if l, ok := s.locals[name]; ok {
		return l.index, nil
	}
	if n, ok := s.defines[name]; ok {
		return n, nil
	}
	if n, ok := s.columns[name]; ok {
		return n, nil
	}
	return nil, errorf(ErrCodeUnknownRef, pos, "unknown name %q", name)
}

// compile turns a CUE expression value into an op tree. Bare numbers and
// booleans are literals, a bare string is a reference.
func (s *scope) compile(v cue.Value) (op.Node, error) {
	if !v.Exists() {
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "missing expression")
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(ErrCodeInvalidExpr, err)
	}
	switch v.IncompleteKind() {
	case cue.BoolKind, cue.IntKind, cue.FloatKind:
		return literal(v, "")
	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		return s.lookup(name, v.Pos())
	case cue.StructKind:
	default:
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "expression must be a struct, a literal or a name")
	}

	form := ""
	for _, k := range exprKeys {
		if v.LookupPath(cue.ParsePath(k)).Exists() {
			if form != "" {
				return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "expression has both %q and %q", form, k)
			}
			form = k
		}
	}
	if form == "" {
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "unrecognised expression, want one of %v", exprKeys)
	}
	body := v.LookupPath(cue.ParsePath(form))
	switch form {
	case "column":
		name, err := stringField(v, "column")
		if err != nil {
			return nil, err
		}
		n, ok := s.columns[name]
		if !ok {
			return nil, errorf(ErrCodeUnknownRef, body.Pos(), "unknown column %q", name)
		}
		return n, nil
	case "ref":
		name, err := stringField(v, "ref")
		if err != nil {
			return nil, err
		}
		return s.lookup(name, body.Pos())
	case "const":
		typ, _, err := optString(v, "type")
		if err != nil {
			return nil, err
		}
		return literal(body, typ)
	case "fn":
		return s.compileMath(v)
	case "call":
		return s.compileCall(v)
	case "syst":
		return s.compileSyst(body)
	case "item":
		return s.compileItem(body)
	case "size":
		name, err := stringField(v, "size")
		if err != nil {
			return nil, err
		}
		c, ok := s.collections[name]
		if !ok {
			return nil, errorf(ErrCodeUnknownRef, body.Pos(), "unknown collection %q", name)
		}
		return c.size, nil
	case "deferred":
		n, err := s.compile(body)
		if err != nil {
			return nil, err
		}
		return op.DefineOnFirstUse(n), nil
	case "select", "sort", "map", "sum", "count", "find":
		return s.compileRange(form, body)
	case "combine":
		return s.compileCombine(body)
	}
	return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "unsupported expression %q", form)
}

func (s *scope) compileList(v cue.Value, key string) ([]op.Node, error) {
	vals, err := listField(v, key)
	if err != nil {
		return nil, err
	}
	out := make([]op.Node, 0, len(vals))
	for _, a := range vals {
		n, err := s.compile(a)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *scope) compileMath(v cue.Value) (op.Node, error) {
	fn, err := stringField(v, "fn")
	if err != nil {
		return nil, err
	}
	args, err := s.compileList(v, "args")
	if err != nil {
		return nil, err
	}
	typ, hasType, err := optString(v, "type")
	if err != nil {
		return nil, err
	}
	var n op.Node
	if hasType {
		n, err = op.MathWithType(fn, typ, args...)
	} else {
		n, err = op.Math(fn, args...)
	}
	if err != nil {
		return nil, opError(err, v.Pos())
	}
	return n, nil
}

func (s *scope) compileCall(v cue.Value) (op.Node, error) {
	name, err := stringField(v, "call")
	if err != nil {
		return nil, err
	}
	args, err := s.compileList(v, "args")
	if err != nil {
		return nil, err
	}
	var opts []op.CallOption
	typ, hasType, err := optString(v, "type")
	if err != nil {
		return nil, err
	}
	if hasType {
		opts = append(opts, op.WithReturnType(typ))
	}
	n, err := op.Call(name, args, opts...)
	if err != nil {
		return nil, opError(err, v.Pos())
	}
	return n, nil
}

func (s *scope) compileSyst(v cue.Value) (op.Node, error) {
	nominal, err := s.compile(v.LookupPath(cue.ParsePath("nominal")))
	if err != nil {
		return nil, err
	}
	alts := map[string]op.Node{}
	vars := v.LookupPath(cue.ParsePath("variations"))
	if vars.Exists() {
		iter, err := vars.Fields()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		for iter.Next() {
			alt, err := s.compile(iter.Value())
			if err != nil {
				return nil, err
			}
			alts[iter.Selector().Unquoted()] = alt
		}
	}
	if len(alts) == 0 {
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "systematic without variations")
	}
	n, err := op.Systematic(nominal, alts)
	if err != nil {
		return nil, opError(err, v.Pos())
	}
	return n, nil
}

func (s *scope) compileItem(v cue.Value) (op.Node, error) {
	of, err := stringField(v, "of")
	if err != nil {
		return nil, err
	}
	field, err := stringField(v, "field")
	if err != nil {
		return nil, err
	}
	l, ok := s.locals[of]
	if !ok {
		return nil, errorf(ErrCodeUnknownRef, v.Pos(), "unknown range variable %q", of)
	}
	col, typ, ok := l.coll.field(field)
	if !ok {
		return nil, errorf(ErrCodeUnknownRef, v.Pos(), "collection %q has no field %q", l.coll.name, field)
	}
	return op.GetItemOf(col, typ, l.index), nil
}

// compileRange builds select, sort, map, sum, count and find over the
// indices of a collection. "in" replaces the full index range, e.g. with
// the result of an earlier select.
func (s *scope) compileRange(form string, v cue.Value) (op.Node, error) {
	over, err := stringField(v, "over")
	if err != nil {
		return nil, err
	}
	as, err := stringField(v, "as")
	if err != nil {
		return nil, err
	}
	coll, ok := s.collections[over]
	if !ok {
		return nil, errorf(ErrCodeUnknownRef, v.Pos(), "unknown collection %q", over)
	}
	var rng op.Node = op.IndexRange(coll.size)
	if in := v.LookupPath(inPath); in.Exists() {
		if rng, err = s.compile(in); err != nil {
			return nil, err
		}
	}
	body := func(key string) op.Body {
		return func(l ...op.Node) (op.Node, error) {
			return s.withLocal(as, local{index: l[0], coll: coll}).compile(v.LookupPath(cue.ParsePath(key)))
		}
	}

	var n op.Node
	switch form {
	case "select":
		n, err = op.Select(rng, body("where"))
	case "sort":
		n, err = op.Sort(rng, body("by"))
	case "find":
		n, err = op.Find(rng, body("where"))
	case "count":
		n, err = op.Count(rng, body("where"))
	case "map":
		var typ string
		if typ, _, err = optString(v, "type"); err != nil {
			return nil, err
		}
		n, err = op.Map(rng, typ, body("value"))
	case "sum":
		var zero op.Node = op.Float(0)
		if z := v.LookupPath(cue.ParsePath("zero")); z.Exists() {
			if zero, err = s.compile(z); err != nil {
				return nil, err
			}
		}
		n, err = op.Sum(rng, zero, body("value"))
	}
	if err != nil {
		return nil, opError(err, v.Pos())
	}
	return n, nil
}

// inPath selects the "in" field. in is a CUE keyword, so ParsePath
// rejects it as a path.
var inPath = cue.MakePath(cue.Str("in"))

// compileCombine builds the n-element combinations of one or more
// collections. "over" has one collection, combined with itself, or one
// per name in "as". "in" replaces the index ranges, with one entry per
// collection or, over a single collection, one per name. Indices into the
// same collection are kept strictly increasing unless "ordered" is false.
func (s *scope) compileCombine(v cue.Value) (op.Node, error) {
	over, err := stringList(v, "over")
	if err != nil {
		return nil, err
	}
	as, err := stringList(v, "as")
	if err != nil {
		return nil, err
	}
	n, err := optInt(v, "n")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		n = len(as)
	}
	switch {
	case len(as) == 0:
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "combine needs at least one name in as")
	case n != len(as):
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "combine of %d elements binds %d names", n, len(as))
	case len(over) != 1 && len(over) != n:
		return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "combine over %d collections, want 1 or %d", len(over), n)
	}
	seen := make(map[string]bool, len(as))
	for _, name := range as {
		if seen[name] {
			return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "combine binds %q twice", name)
		}
		seen[name] = true
	}

	colls := make([]*collection, len(over))
	ranges := make([]op.Range, len(over))
	for i, name := range over {
		c, ok := s.collections[name]
		if !ok {
			return nil, errorf(ErrCodeUnknownRef, v.Pos(), "unknown collection %q", name)
		}
		colls[i] = c
		ranges[i] = op.Range{Indices: op.IndexRange(c.size), Base: name}
	}
	if in := v.LookupPath(inPath); in.Exists() {
		iter, err := in.List()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		var vals []cue.Value
		for iter.Next() {
			vals = append(vals, iter.Value())
		}
		if len(ranges) == 1 && len(vals) == n {
			for len(ranges) < n {
				ranges = append(ranges, ranges[0])
				colls = append(colls, colls[0])
			}
		}
		if len(vals) != len(ranges) {
			return nil, errorf(ErrCodeInvalidExpr, in.Pos(), "combine in has %d entries, want %d", len(vals), len(ranges))
		}
		for i, e := range vals {
			if ranges[i].Indices, err = s.compile(e); err != nil {
				return nil, err
			}
		}
	}

	var opts []op.CombineOption
	ordered, err := optBool(v, "ordered", true)
	if err != nil {
		return nil, err
	}
	if !ordered {
		opts = append(opts, op.WithSamePredicate(nil))
	}
	pred := func(l ...op.Node) (op.Node, error) {
		inner := s
		for i, name := range as {
			inner = inner.withLocal(name, local{index: l[i], coll: colls[i%len(colls)]})
		}
		return inner.compile(v.LookupPath(cue.ParsePath("where")))
	}
	c, err := op.Combine(n, ranges, pred, opts...)
	if err != nil {
		return nil, opError(err, v.Pos())
	}
	return c, nil
}

// literal turns a CUE number, boolean or string into a constant. With an
// explicit type a string is taken as code, e.g. {const: "M_PI", type: "double"}.
func literal(v cue.Value, typ string) (op.Node, error) {
	switch v.IncompleteKind() {
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		if typ == "" {
			return op.Bool(b), nil
		}
		return op.Const(typ, strconv.FormatBool(b)), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		if typ == "" {
			return op.Int(i), nil
		}
		return op.Const(typ, strconv.FormatInt(i, 10)), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		if typ == "" {
			return op.Float(f), nil
		}
		return op.Const(typ, strconv.FormatFloat(f, 'g', -1, 64)), nil
	case cue.StringKind:
		str, err := v.String()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		if typ == "" {
			return op.Str(str), nil
		}
		return op.Const(typ, str), nil
	}
	return nil, errorf(ErrCodeInvalidExpr, v.Pos(), "constant must be a number, a boolean or a string")
}

func opError(err error, pos token.Pos) error { return withCode(ErrCodeInvalidExpr, pos, err) }
