package selection

import (
	"fmt"
	"regexp"

	"github.com/roach88/onepass/internal/op"
)

// Output is anything a backend can produce: a plot, a skim or a cut-flow
// report. Names are unique per backend.
type Output interface {
	Name() string
}

// Binning is the binning of one histogram axis: Equidistant or Variable.
type Binning interface {
	// Bins returns the number of bins.
	Bins() int
	// Minimum returns the lower edge of the first bin.
	Minimum() float64
	// Maximum returns the upper edge of the last bin.
	Maximum() float64

	validate() error
}

// Equidistant is N bins of equal width between Min and Max.
type Equidistant struct {
	N   int
	Min float64
	Max float64
}

func (b Equidistant) Bins() int        { return b.N }
func (b Equidistant) Minimum() float64 { return b.Min }
func (b Equidistant) Maximum() float64 { return b.Max }

func (b Equidistant) validate() error {
	if b.N <= 0 {
		return fmt.Errorf("equidistant binning needs at least one bin, got %d", b.N)
	}
	if !(b.Max > b.Min) {
		return fmt.Errorf("equidistant binning range [%g, %g] is empty", b.Min, b.Max)
	}
	return nil
}

// Variable is bins with explicit, strictly increasing edges.
type Variable struct {
	Edges []float64
}

func (b Variable) Bins() int        { return len(b.Edges) - 1 }
func (b Variable) Minimum() float64 { return b.Edges[0] }
func (b Variable) Maximum() float64 { return b.Edges[len(b.Edges)-1] }

func (b Variable) validate() error {
	if len(b.Edges) < 2 {
		return fmt.Errorf("variable binning needs at least two edges, got %d", len(b.Edges))
	}
	for i := 1; i < len(b.Edges); i++ {
		if !(b.Edges[i] > b.Edges[i-1]) {
			return fmt.Errorf("variable bin edges must be strictly increasing: %v", b.Edges)
		}
	}
	return nil
}

// Plot is a histogram of one to three variables at a selection.
type Plot struct {
	name       string
	vars       []op.Node
	sel        *Selection
	binnings   []Binning
	weights    []op.Node
	title      string
	axisTitles []string
	autoSyst   bool
}

// PlotOption configures a plot.
type PlotOption func(*Plot)

// WithPlotWeights adds weight factors applied on top of the selection
// weight.
func WithPlotWeights(weights ...op.Node) PlotOption {
	return func(p *Plot) { p.weights = append(p.weights, weights...) }
}

// WithTitle sets the histogram title.
func WithTitle(title string) PlotOption {
	return func(p *Plot) { p.title = title }
}

// WithAxisTitles sets the axis titles, one per variable.
func WithAxisTitles(titles ...string) PlotOption {
	return func(p *Plot) { p.axisTitles = titles }
}

// WithPlotAutoSyst turns automatic systematic variations of the plot on
// or off (default on).
func WithPlotAutoSyst(on bool) PlotOption {
	return func(p *Plot) { p.autoSyst = on }
}

// NewPlot declares a histogram of vars at sel.
func NewPlot(name string, vars []op.Node, sel *Selection, binnings []Binning, opts ...PlotOption) (*Plot, error) {
	if name == "" {
		return nil, newError(ErrCodeInvalidName, name, "plot name is empty")
	}
	if sel == nil {
		return nil, newError(ErrCodeInvalidOutput, name, "plot has no selection")
	}
	if len(vars) == 0 {
		return nil, newError(ErrCodeInvalidOutput, name, "plot has no variables")
	}
	if len(vars) != len(binnings) {
		return nil, newError(ErrCodeInvalidBinning, name, "%d variables but %d binnings", len(vars), len(binnings))
	}
	for i, v := range vars {
		if v == nil {
			return nil, newError(ErrCodeInvalidOutput, name, "variable %d is nil", i)
		}
	}
	for i, b := range binnings {
		if b == nil {
			return nil, newError(ErrCodeInvalidBinning, name, "binning %d is nil", i)
		}
		if err := b.validate(); err != nil {
			return nil, newError(ErrCodeInvalidBinning, name, "axis %d: %v", i, err)
		}
	}
	p := &Plot{
		name:     name,
		vars:     append([]op.Node(nil), vars...),
		sel:      sel,
		binnings: append([]Binning(nil), binnings...),
		autoSyst: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	for i, w := range p.weights {
		if w == nil || !op.IsNumberType(w.Type()) {
			return nil, newError(ErrCodeInvalidWeight, name, "plot weight %d is not a number", i)
		}
	}
	if len(p.axisTitles) > len(vars) {
		return nil, newError(ErrCodeInvalidOutput, name, "%d axis titles for %d variables", len(p.axisTitles), len(vars))
	}
	return p, nil
}

func (p *Plot) Name() string          { return p.name }
func (p *Plot) Selection() *Selection { return p.sel }
func (p *Plot) Variables() []op.Node  { return append([]op.Node(nil), p.vars...) }
func (p *Plot) Binnings() []Binning   { return append([]Binning(nil), p.binnings...) }
func (p *Plot) Weights() []op.Node    { return append([]op.Node(nil), p.weights...) }
func (p *Plot) Title() string         { return p.title }
func (p *Plot) AutoSyst() bool        { return p.autoSyst }
func (p *Plot) AxisTitles() []string  { return append([]string(nil), p.axisTitles...) }

// FullTitle returns the title and axis titles joined by ';'.
func (p *Plot) FullTitle() string {
	t := p.title
	for _, a := range p.axisTitles {
		t += ";" + a
	}
	return t
}

// Branch is one column of a skim: a new column computed from Expr, or a
// column copied from the input when Expr is nil.
type Branch struct {
	Name string
	Expr op.Node
}

// Keep selects input columns to copy to a skim.
type Keep interface {
	keep(available []string, seen map[string]bool) ([]string, error)
}

type keepAll struct{}

// KeepAll copies every input column.
var KeepAll Keep = keepAll{}

func (keepAll) keep(available []string, seen map[string]bool) ([]string, error) {
	var out []string
	for _, c := range available {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

type keepPattern struct{ re *regexp.Regexp }

// KeepMatching copies the input columns whose name matches pattern at
// its start.
func KeepMatching(pattern string) (Keep, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, newError(ErrCodeInvalidOutput, "", "bad column pattern %q: %v", pattern, err)
	}
	return keepPattern{re: re}, nil
}

func (k keepPattern) keep(available []string, seen map[string]bool) ([]string, error) {
	var out []string
	for _, c := range available {
		if k.re.MatchString(c) && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

type keepNames []string

// KeepColumns copies the named input columns, which must exist.
func KeepColumns(names ...string) Keep { return keepNames(names) }

func (k keepNames) keep(available []string, seen map[string]bool) ([]string, error) {
	have := make(map[string]bool, len(available))
	for _, c := range available {
		have[c] = true
	}
	var out []string
	for _, c := range k {
		if !have[c] {
			return nil, newError(ErrCodeUnknownColumn, c, "requested column not found in input")
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Skim is a table of selected rows with a chosen set of columns.
type Skim struct {
	name        string
	sel         *Selection
	branches    []Branch
	keep        []Keep
	maxSelected int
	treeName    string
}

// SkimOption configures a skim.
type SkimOption func(*Skim)

// WithKeep adds input columns to copy.
func WithKeep(k ...Keep) SkimOption {
	return func(s *Skim) { s.keep = append(s.keep, k...) }
}

// WithMaxSelected caps the number of rows written; zero or less means no
// limit.
func WithMaxSelected(n int) SkimOption {
	return func(s *Skim) { s.maxSelected = n }
}

// WithTreeName sets the output table name (default: the skim name).
func WithTreeName(name string) SkimOption {
	return func(s *Skim) { s.treeName = name }
}

// NewSkim declares a skim of sel.
func NewSkim(name string, branches []Branch, sel *Selection, opts ...SkimOption) (*Skim, error) {
	if name == "" {
		return nil, newError(ErrCodeInvalidName, name, "skim name is empty")
	}
	if sel == nil {
		return nil, newError(ErrCodeInvalidOutput, name, "skim has no selection")
	}
	seen := make(map[string]bool)
	for _, b := range branches {
		if b.Name == "" {
			return nil, newError(ErrCodeInvalidOutput, name, "branch without name")
		}
		if seen[b.Name] {
			return nil, newError(ErrCodeInvalidOutput, name, "branch %q listed twice", b.Name)
		}
		seen[b.Name] = true
	}
	s := &Skim{name: name, sel: sel, branches: append([]Branch(nil), branches...), treeName: name}
	for _, opt := range opts {
		opt(s)
	}
	for _, k := range s.keep {
		if k == nil {
			return nil, newError(ErrCodeInvalidOutput, name, "nil column selector")
		}
	}
	return s, nil
}

func (s *Skim) Name() string          { return s.name }
func (s *Skim) Selection() *Selection { return s.sel }
func (s *Skim) TreeName() string      { return s.treeName }
func (s *Skim) MaxSelected() int      { return s.maxSelected }

// DefinedBranches returns the branches computed from an expression.
func (s *Skim) DefinedBranches() []Branch {
	var out []Branch
	for _, b := range s.branches {
		if b.Expr != nil {
			out = append(out, b)
		}
	}
	return out
}

// InputColumns resolves the input columns to copy, in order: the
// branches without expression, then the Keep selectors. Each column is
// listed once.
func (s *Skim) InputColumns(available []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	var names []string
	for _, b := range s.branches {
		if b.Expr == nil {
			names = append(names, b.Name)
		}
	}
	for _, k := range append([]Keep{keepNames(names)}, s.keep...) {
		cols, err := k.keep(available, seen)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.Name = s.name + "/" + e.Name
			}
			return nil, err
		}
		out = append(out, cols...)
	}
	return out, nil
}

// CutFlowReport counts the (weighted) rows passing each of a list of
// selections.
type CutFlowReport struct {
	name       string
	selections []*Selection
	recursive  bool
	autoSyst   bool
}

// CutFlowOption configures a cut-flow report.
type CutFlowOption func(*CutFlowReport)

// Recursive also counts every ancestor of the listed selections.
func Recursive() CutFlowOption {
	return func(r *CutFlowReport) { r.recursive = true }
}

// WithCutFlowAutoSyst also counts the rows for each variation (default
// off).
func WithCutFlowAutoSyst(on bool) CutFlowOption {
	return func(r *CutFlowReport) { r.autoSyst = on }
}

// NewCutFlowReport declares a cut-flow report over sels.
func NewCutFlowReport(name string, sels []*Selection, opts ...CutFlowOption) (*CutFlowReport, error) {
	if name == "" {
		return nil, newError(ErrCodeInvalidName, name, "report name is empty")
	}
	if len(sels) == 0 {
		return nil, newError(ErrCodeInvalidOutput, name, "report has no selections")
	}
	for i, s := range sels {
		if s == nil {
			return nil, newError(ErrCodeInvalidOutput, name, "selection %d is nil", i)
		}
	}
	r := &CutFlowReport{name: name, selections: append([]*Selection(nil), sels...)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *CutFlowReport) Name() string    { return r.name }
func (r *CutFlowReport) AutoSyst() bool  { return r.autoSyst }
func (r *CutFlowReport) Recursive() bool { return r.recursive }

// Selections returns the counted selections: the listed ones, then for a
// recursive report the ancestors not listed yet, each once.
func (r *CutFlowReport) Selections() []*Selection {
	seen := make(map[string]bool)
	var out []*Selection
	for _, s := range r.selections {
		if !seen[s.name] {
			seen[s.name] = true
			out = append(out, s)
		}
	}
	if r.recursive {
		for _, s := range r.selections {
			for p := s.parent; p != nil && !seen[p.name]; p = p.parent {
				seen[p.name] = true
				out = append(out, p)
			}
		}
	}
	return out
}
