package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"

	"github.com/roach88/onepass/internal/backend"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
)

// DefaultRoot is the name of the root selection when the analysis does
// not set one.
const DefaultRoot = "all"

// Define is a named expression. When At is set it is also defined as a
// column on that selection's node.
type Define struct {
	Name string
	Expr op.Node
	At   *selection.Selection

	at  string
	pos token.Pos
}

// Analysis is a compiled analysis description: selections and the outputs
// booked on them.
type Analysis struct {
	Name string
	Hash string

	Root       *selection.Selection
	Selections []*selection.Selection // definition order, root first
	Defines    []Define
	Plots      []*selection.Plot
	Skims      []*selection.Skim
	CutFlows   []*selection.CutFlowReport

	columns []string
}

// InputColumns returns the columns the analysis reads, scalar columns
// first and then the array columns of each collection.
func (a *Analysis) InputColumns() []string { return append([]string(nil), a.columns...) }

// Selection returns the selection with the given name.
func (a *Analysis) Selection(name string) (*selection.Selection, bool) {
	for _, s := range a.Selections {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Outputs returns plots, skims and cut-flow reports in that order.
func (a *Analysis) Outputs() []selection.Output {
	out := make([]selection.Output, 0, len(a.Plots)+len(a.Skims)+len(a.CutFlows))
	for _, p := range a.Plots {
		out = append(out, p)
	}
	for _, s := range a.Skims {
		out = append(out, s)
	}
	for _, r := range a.CutFlows {
		out = append(out, r)
	}
	return out
}

// Register adds the selections, explicit defines and outputs to b.
func (a *Analysis) Register(b *backend.Backend) error {
	for _, s := range a.Selections {
		if err := b.AddSelection(s); err != nil {
			return err
		}
	}
	for _, d := range a.Defines {
		if d.At == nil {
			continue
		}
		if err := b.Define(d.Expr, d.At); err != nil {
			return fmt.Errorf("define %s: %w", d.Name, err)
		}
	}
	for _, p := range a.Plots {
		if err := b.AddPlot(p); err != nil {
			return err
		}
	}
	for _, s := range a.Skims {
		if err := b.AddSkim(s); err != nil {
			return err
		}
	}
	for _, r := range a.CutFlows {
		if err := b.AddCutFlowReport(r); err != nil {
			return err
		}
	}
	return nil
}

// Option configures Compile and Load.
type Option func(*options)

type options struct {
	name     string
	autoSyst bool
}

// WithName names the analysis when it has no name field.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithAutoSyst switches automatic systematic variations on the root
// selection, and with it the whole analysis.
func WithAutoSyst(on bool) Option {
	return func(o *options) { o.autoSyst = on }
}

type compiler struct {
	mode    LoadMode
	errs    []error
	sc      *scope
	a       *Analysis
	sels    map[string]*selection.Selection
	outputs map[string]bool
}

func (c *compiler) report(err error) { c.errs = append(c.errs, err) }

func (c *compiler) stopped() bool { return c.mode == LoadModeFailFast && len(c.errs) > 0 }

// each calls fn for every field of the struct at path, in declaration
// order.
func (c *compiler) each(v cue.Value, path string, fn func(name string, v cue.Value) error) {
	sec := v.LookupPath(cue.ParsePath(path))
	if !sec.Exists() || c.stopped() {
		return
	}
	iter, err := sec.Fields()
	if err != nil {
		c.report(formatCUEError(ErrCodeGeneric, fmt.Errorf("iterating %s: %w", path, err)))
		return
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			c.report(err)
			if c.stopped() {
				return
			}
		}
	}
}

// Compile builds an analysis from a CUE value. With LoadModeCollectAll
// every entry is compiled and all errors are returned; entries depending
// on a broken one then report unknown references.
//
//	v := cuecontext.New().CompileString(src)
//	a, errs := config.Compile(v, config.LoadModeFailFast)
func Compile(v cue.Value, mode LoadMode, opts ...Option) (*Analysis, []error) {
	o := options{autoSyst: true}
	for _, opt := range opts {
		opt(&o)
	}
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(ErrCodeBuildFailed, err)}
	}

	c := &compiler{
		mode:    mode,
		sc:      newScope(),
		a:       &Analysis{Name: o.name},
		sels:    map[string]*selection.Selection{},
		outputs: map[string]bool{},
	}
	if name, ok, err := optString(v, "name"); err != nil {
		return nil, []error{err}
	} else if ok {
		c.a.Name = name
	}
	hash, err := analysisHash(v)
	if err != nil {
		return nil, []error{err}
	}
	c.a.Hash = hash

	c.each(v, "columns", c.column)
	c.each(v, "collections", c.collection)
	c.each(v, "define", c.define)
	c.root(v, o.autoSyst)
	c.each(v, "selections", c.selection)
	c.resolveDefines()
	c.each(v, "plots", c.plot)
	c.each(v, "skims", c.skim)
	c.each(v, "cutflows", c.cutFlow)

	return c.a, c.errs
}

// analysisHash is the SHA-256 of the canonical CUE rendering of v, so
// that formatting and file layout do not change it.
func analysisHash(v cue.Value) (string, error) {
	src, err := format.Node(v.Syntax(cue.Final()))
	if err != nil {
		return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("formatting analysis: %v", err)}
	}
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:]), nil
}

func (c *compiler) checkName(kind, name string, pos token.Pos) error {
	if _, ok := c.sc.columns[name]; ok {
		return errorf(ErrCodeDuplicateName, pos, "%s %q shadows an input column", kind, name)
	}
	if _, ok := c.sc.defines[name]; ok {
		return errorf(ErrCodeDuplicateName, pos, "%s %q is already defined", kind, name)
	}
	return nil
}

func (c *compiler) column(name string, v cue.Value) error {
	typ, err := v.String()
	if err != nil {
		return formatCUEError(ErrCodeInvalidColumn, err)
	}
	if typ == "" {
		return errorf(ErrCodeInvalidColumn, v.Pos(), "column %q has an empty type", name)
	}
	c.sc.columns[name] = op.Column(typ, name)
	c.a.columns = append(c.a.columns, name)
	return nil
}

func (c *compiler) collection(name string, v cue.Value) error {
	sizeName, err := stringField(v, "size")
	if err != nil {
		return err
	}
	size, ok := c.sc.columns[sizeName]
	if !ok {
		return errorf(ErrCodeInvalidColumn, v.Pos(), "collection %q: size column %q is not declared", name, sizeName)
	}
	coll := &collection{name: name, size: size, fields: map[string]string{}}
	fields := v.LookupPath(cue.ParsePath("fields"))
	iter, err := fields.Fields()
	if err != nil {
		return errorf(ErrCodeInvalidColumn, v.Pos(), "collection %q: fields must be a struct of types", name)
	}
	for iter.Next() {
		typ, err := iter.Value().String()
		if err != nil {
			return formatCUEError(ErrCodeInvalidColumn, err)
		}
		field := iter.Selector().Unquoted()
		coll.fields[field] = typ
		c.a.columns = append(c.a.columns, name+"_"+field)
	}
	if len(coll.fields) == 0 {
		return errorf(ErrCodeInvalidColumn, v.Pos(), "collection %q has no fields", name)
	}
	c.sc.collections[name] = coll
	return nil
}

// define compiles a named expression. The long form {expr, at} also
// defines it as a column on selection at.
func (c *compiler) define(name string, v cue.Value) error {
	if err := c.checkName("define", name, v.Pos()); err != nil {
		return err
	}
	d := Define{Name: name, pos: v.Pos()}
	exprVal := v
	if e := v.LookupPath(cue.ParsePath("expr")); e.Exists() {
		exprVal = e
		at, _, err := optString(v, "at")
		if err != nil {
			return err
		}
		d.at = at
	}
	n, err := c.sc.compile(exprVal)
	if err != nil {
		return err
	}
	d.Expr = n
	c.sc.defines[name] = n
	c.a.Defines = append(c.a.Defines, d)
	return nil
}

func (c *compiler) root(v cue.Value, autoSyst bool) {
	if c.stopped() {
		return
	}
	name, ok, err := optString(v, "root")
	if err != nil {
		c.report(err)
		return
	}
	if !ok {
		name = DefaultRoot
	}
	root, err := selection.NewRoot(name, selection.WithAutoSyst(autoSyst))
	if err != nil {
		c.report(withCode(ErrCodeInvalidSelection, v.Pos(), err))
		return
	}
	c.a.Root = root
	c.a.Selections = append(c.a.Selections, root)
	c.sels[name] = root
}

func (c *compiler) selection(name string, v cue.Value) error {
	if c.a.Root == nil {
		return errorf(ErrCodeInvalidSelection, v.Pos(), "selection %q: no root selection", name)
	}
	if _, dup := c.sels[name]; dup {
		return errorf(ErrCodeDuplicateName, v.Pos(), "selection %q is already defined", name)
	}
	parent := c.a.Root
	if pname, ok, err := optString(v, "parent"); err != nil {
		return err
	} else if ok {
		if parent, ok = c.sels[pname]; !ok {
			return errorf(ErrCodeUnknownRef, v.Pos(), "selection %q: parent %q is not defined before it", name, pname)
		}
	}
	cuts, err := c.sc.compileList(v, "cuts")
	if err != nil {
		return err
	}
	weights, err := c.sc.compileList(v, "weights")
	if err != nil {
		return err
	}
	autoSyst, err := optBool(v, "autoSyst", true)
	if err != nil {
		return err
	}
	sel, err := parent.Refine(name,
		selection.WithCuts(cuts...),
		selection.WithWeights(weights...),
		selection.WithAutoSyst(autoSyst))
	if err != nil {
		return withCode(ErrCodeInvalidSelection, v.Pos(), err)
	}
	c.sels[name] = sel
	c.a.Selections = append(c.a.Selections, sel)
	return nil
}

func (c *compiler) resolveDefines() {
	for i := range c.a.Defines {
		d := &c.a.Defines[i]
		if d.at == "" {
			continue
		}
		sel, ok := c.sels[d.at]
		if !ok {
			c.report(errorf(ErrCodeUnknownRef, d.pos, "define %q: unknown selection %q", d.Name, d.at))
			if c.stopped() {
				return
			}
			continue
		}
		d.At = sel
	}
}

func (c *compiler) outputSelection(kind, name string, v cue.Value) (*selection.Selection, error) {
	if c.outputs[name] {
		return nil, errorf(ErrCodeDuplicateName, v.Pos(), "output %q is already defined", name)
	}
	sname, err := stringField(v, "selection")
	if err != nil {
		return nil, err
	}
	sel, ok := c.sels[sname]
	if !ok {
		return nil, errorf(ErrCodeUnknownRef, v.Pos(), "%s %q: unknown selection %q", kind, name, sname)
	}
	return sel, nil
}

func (c *compiler) plot(name string, v cue.Value) error {
	sel, err := c.outputSelection("plot", name, v)
	if err != nil {
		return err
	}
	vars, err := c.sc.compileList(v, "vars")
	if err != nil {
		return err
	}
	binVals, err := listField(v, "binning")
	if err != nil {
		return err
	}
	binnings := make([]selection.Binning, 0, len(binVals))
	for _, bv := range binVals {
		b, err := binning(bv)
		if err != nil {
			return err
		}
		binnings = append(binnings, b)
	}

	var opts []selection.PlotOption
	weights, err := c.sc.compileList(v, "weights")
	if err != nil {
		return err
	}
	if len(weights) > 0 {
		opts = append(opts, selection.WithPlotWeights(weights...))
	}
	if title, ok, err := optString(v, "title"); err != nil {
		return err
	} else if ok {
		opts = append(opts, selection.WithTitle(title))
	}
	axisTitles, err := stringList(v, "axisTitles")
	if err != nil {
		return err
	}
	if len(axisTitles) > 0 {
		opts = append(opts, selection.WithAxisTitles(axisTitles...))
	}
	autoSyst, err := optBool(v, "autoSyst", true)
	if err != nil {
		return err
	}
	opts = append(opts, selection.WithPlotAutoSyst(autoSyst))

	p, err := selection.NewPlot(name, vars, sel, binnings, opts...)
	if err != nil {
		return withCode(ErrCodeInvalidPlot, v.Pos(), err)
	}
	c.outputs[name] = true
	c.a.Plots = append(c.a.Plots, p)
	return nil
}

// binning reads {n, min, max} or {edges: [...]}.
func binning(v cue.Value) (selection.Binning, error) {
	if v.LookupPath(cue.ParsePath("edges")).Exists() {
		edges, err := floatList(v, "edges")
		if err != nil {
			return nil, err
		}
		return selection.Variable{Edges: edges}, nil
	}
	n, err := optInt(v, "n")
	if err != nil {
		return nil, err
	}
	lo, err := v.LookupPath(cue.ParsePath("min")).Float64()
	if err != nil {
		return nil, errorf(ErrCodeInvalidPlot, v.Pos(), "binning needs n, min and max, or edges")
	}
	hi, err := v.LookupPath(cue.ParsePath("max")).Float64()
	if err != nil {
		return nil, errorf(ErrCodeInvalidPlot, v.Pos(), "binning needs n, min and max, or edges")
	}
	return selection.Equidistant{N: n, Min: lo, Max: hi}, nil
}

// skim reads branches as a list of {name} (copy an input column) or
// {name, expr} (a new column), and keep as {all, patterns, columns}.
func (c *compiler) skim(name string, v cue.Value) error {
	sel, err := c.outputSelection("skim", name, v)
	if err != nil {
		return err
	}
	branchVals, err := listField(v, "branches")
	if err != nil {
		return err
	}
	branches := make([]selection.Branch, 0, len(branchVals))
	for _, bv := range branchVals {
		bname, err := stringField(bv, "name")
		if err != nil {
			return err
		}
		br := selection.Branch{Name: bname}
		if e := bv.LookupPath(cue.ParsePath("expr")); e.Exists() {
			if br.Expr, err = c.sc.compile(e); err != nil {
				return err
			}
		}
		branches = append(branches, br)
	}

	var opts []selection.SkimOption
	keep := v.LookupPath(cue.ParsePath("keep"))
	if keep.Exists() {
		var ks []selection.Keep
		all, err := optBool(keep, "all", false)
		if err != nil {
			return err
		}
		if all {
			ks = append(ks, selection.KeepAll)
		}
		patterns, err := stringList(keep, "patterns")
		if err != nil {
			return err
		}
		for _, p := range patterns {
			k, err := selection.KeepMatching(p)
			if err != nil {
				return withCode(ErrCodeInvalidSkim, keep.Pos(), err)
			}
			ks = append(ks, k)
		}
		cols, err := stringList(keep, "columns")
		if err != nil {
			return err
		}
		if len(cols) > 0 {
			ks = append(ks, selection.KeepColumns(cols...))
		}
		opts = append(opts, selection.WithKeep(ks...))
	}
	maxSelected, err := optInt(v, "maxSelected")
	if err != nil {
		return err
	}
	if maxSelected > 0 {
		opts = append(opts, selection.WithMaxSelected(maxSelected))
	}
	if tree, ok, err := optString(v, "tree"); err != nil {
		return err
	} else if ok {
		opts = append(opts, selection.WithTreeName(tree))
	}

	s, err := selection.NewSkim(name, branches, sel, opts...)
	if err != nil {
		return withCode(ErrCodeInvalidSkim, v.Pos(), err)
	}
	c.outputs[name] = true
	c.a.Skims = append(c.a.Skims, s)
	return nil
}

func (c *compiler) cutFlow(name string, v cue.Value) error {
	if c.outputs[name] {
		return errorf(ErrCodeDuplicateName, v.Pos(), "output %q is already defined", name)
	}
	names, err := stringList(v, "selections")
	if err != nil {
		return err
	}
	sels := make([]*selection.Selection, 0, len(names))
	for _, sn := range names {
		sel, ok := c.sels[sn]
		if !ok {
			return errorf(ErrCodeUnknownRef, v.Pos(), "cutflow %q: unknown selection %q", name, sn)
		}
		sels = append(sels, sel)
	}
	var opts []selection.CutFlowOption
	recursive, err := optBool(v, "recursive", false)
	if err != nil {
		return err
	}
	if recursive {
		opts = append(opts, selection.Recursive())
	}
	autoSyst, err := optBool(v, "autoSyst", false)
	if err != nil {
		return err
	}
	opts = append(opts, selection.WithCutFlowAutoSyst(autoSyst))

	r, err := selection.NewCutFlowReport(name, sels, opts...)
	if err != nil {
		return withCode(ErrCodeInvalidCutFlow, v.Pos(), err)
	}
	c.outputs[name] = true
	c.a.CutFlows = append(c.a.CutFlows, r)
	return nil
}
