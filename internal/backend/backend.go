package backend

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/onepass/internal/engine"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
)

// nominal is the key of the nominal entry in per-variation maps.
const nominal = "nominal"

// Backend builds the FilterNode network for one engine.
//
// Thread-safety: a Backend must be driven from a single goroutine.
type Backend struct {
	eng      engine.Engine
	logger   *slog.Logger
	symbols  *SymbolTable
	declared map[string]bool
	eager    bool

	root     *FilterNode
	sels     map[string]*selHelper
	products map[string][]Product
	order    []string
	cutFlows map[string][]*CutFlowEntry
	nCol     int
	stats    map[string]int

	built bool
	ran   bool
}

// selHelper holds what a registered selection maps to: its node and its
// weight per variation. A nil weight means the selection is unweighted.
type selHelper struct {
	sel    *selection.Selection
	node   *FilterNode
	weight map[string]op.Node
}

// weightFor returns the weight for variation v, the nominal one if v
// does not change it.
func (h *selHelper) weightFor(v string) op.Node {
	if w, ok := h.weight[v]; ok {
		return w
	}
	return h.weight[nominal]
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithSymbolTable shares a symbol table between backends. Default: a
// table private to the backend.
func WithSymbolTable(t *SymbolTable) Option {
	return func(b *Backend) { b.symbols = t }
}

// WithEagerBuild creates engine nodes and results as soon as selections
// and outputs are added, instead of in BuildGraph.
func WithEagerBuild() Option {
	return func(b *Backend) { b.eager = true }
}

// New creates a backend driving eng.
func New(eng engine.Engine, opts ...Option) *Backend {
	b := &Backend{
		eng:      eng,
		logger:   slog.Default(),
		declared: make(map[string]bool),
		sels:     make(map[string]*selHelper),
		products: make(map[string][]Product),
		cutFlows: make(map[string][]*CutFlowEntry),
		stats:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.symbols == nil {
		b.symbols = NewSymbolTable()
	}
	b.root = newRootNode(b)
	return b
}

// Root returns the node over the full input.
func (b *Backend) Root() *FilterNode { return b.root }

// ShouldDefine reports whether n is promoted to a column when first
// used: range operations and expressions marked DefineOnFirstUse, if
// they have no free locals.
func (b *Backend) ShouldDefine(n op.Node) bool {
	return n.CanDefine() && (n.Kind().IsRange() || n.Kind() == op.KindDefineOnFirstUse)
}

func (b *Backend) newColumnName() string {
	name := fmt.Sprintf("myCol%06d", b.nCol)
	b.nCol++
	return name
}

// symbol declares decl to the engine once and returns its name.
func (b *Backend) symbol(decl, nameHint string) (string, error) {
	name := b.symbols.Name(decl, nameHint)
	if !b.declared[name] {
		if err := b.eng.Declare(strings.ReplaceAll(decl, NamePlaceholder, name)); err != nil {
			return "", fmt.Errorf("declare %s: %w", name, err)
		}
		b.declared[name] = true
		b.stats["Declare"]++
		b.logger.Debug("declared symbol", "name", name)
	}
	return name, nil
}

// function packages code rendered at ctx for the engine. Range
// operations become a declared helper function; everything else a
// lambda over the captured columns.
func (b *Backend) function(ctx *FilterNode, code string, expr op.Node) (engine.Function, error) {
	fn := engine.Function{Code: code, Type: expr.Type()}
	var caps []op.Capture
	if c, ok := op.CaptureOf(expr, ctx); ok {
		caps = []op.Capture{c}
	} else {
		var err error
		if caps, err = op.Captures(expr, ctx); err != nil {
			return fn, err
		}
	}
	body, params := normaliseArgs(code, caps)
	fn.Columns = make([]string, len(caps))
	for i, c := range caps {
		fn.Columns[i] = c.Name
	}
	if expr.Kind().IsRange() && ctx.ColumnName(expr) == "" {
		name, err := b.symbol(functionDecl(expr.Type(), params, body), "")
		if err != nil {
			return fn, err
		}
		fn.Callable = name
		fn.Code = name + "(" + strings.Join(fn.Columns, ", ") + ")"
		return fn, nil
	}
	fn.Callable = engine.Lambda(params, body)
	return fn, nil
}

// Node returns the node a registered selection maps to.
func (b *Backend) Node(sel *selection.Selection) (*FilterNode, bool) {
	h, ok := b.sels[sel.Name()]
	if !ok {
		return nil, false
	}
	return h.node, true
}

// Weight returns the weight of a registered selection for variation v
// ("nominal" or "" for the nominal weight); nil if it is unweighted.
func (b *Backend) Weight(sel *selection.Selection, v string) (op.Node, bool) {
	h, ok := b.sels[sel.Name()]
	if !ok {
		return nil, false
	}
	if v == "" {
		v = nominal
	}
	return h.weightFor(v), true
}

func (b *Backend) helper(sel *selection.Selection) (*selHelper, error) {
	if sel == nil {
		return nil, newError(ErrCodeUnknownSelection, "", "no selection")
	}
	h, ok := b.sels[sel.Name()]
	if !ok || h.sel != sel {
		return nil, newError(ErrCodeUnknownSelection, sel.Name(), "selection was not added to this backend")
	}
	return h, nil
}

// AddSelection registers sel, which must have been created by
// selection.NewRoot or whose parent was added before.
func (b *Backend) AddSelection(sel *selection.Selection) error {
	if sel == nil {
		return newError(ErrCodeUnknownSelection, "", "no selection")
	}
	name := sel.Name()
	if _, dup := b.sels[name]; dup {
		return newError(ErrCodeDuplicateSelection, name, "a selection with this name was already added")
	}
	var parent *selHelper
	parentNode := b.root
	if p := sel.Parent(); p != nil {
		var err error
		if parent, err = b.helper(p); err != nil {
			return err
		}
		parentNode = parent.node
	}
	cuts := sel.OwnCuts()
	weights := sel.OwnWeights()

	node := parentNode
	if len(cuts) > 0 {
		node = parentNode.ChildWithCuts(cuts)
	}
	h := &selHelper{sel: sel, node: node, weight: make(map[string]op.Node)}
	var parentWeight op.Node
	if parent != nil {
		parentWeight = parent.weight[nominal]
	}
	if len(weights) > 0 {
		w, err := node.makeWeight(weights, "w_"+name, parentWeight)
		if err != nil {
			return err
		}
		h.weight[nominal] = w
	} else {
		h.weight[nominal] = parentWeight
	}

	if sel.AutoSyst() {
		for _, v := range sel.Systematics() {
			if err := b.addVariation(sel, h, parent, parentNode, v); err != nil {
				return err
			}
		}
	}

	b.sels[name] = h
	b.logger.Debug("added selection", "selection", name, "node", node.digest.Short(), "variations", len(node.vars))
	if b.eager {
		if err := node.realise(); err != nil {
			return err
		}
		for _, v := range node.variationNames() {
			if err := node.vars[v].realise(); err != nil {
				return err
			}
		}
	}
	return nil
}

// addVariation sets up the node and weight of selection sel for
// variation v. The node branches off when v changes a cut here or above.
func (b *Backend) addVariation(sel *selection.Selection, h, parent *selHelper, parentNode *FilterNode, v string) error {
	cuts := sel.OwnCuts()
	weights := sel.OwnWeights()
	node := h.node

	var branchParent *FilterNode
	if vn, ok := parentNode.vars[v]; ok {
		branchParent = vn
	} else if sel.CutVariations().Has(v) {
		branchParent = parentNode
	}
	varNode := node
	if branchParent != nil {
		if len(cuts) == 0 {
			varNode = branchParent
		} else {
			varied := make([]op.Node, len(cuts))
			for i, c := range cuts {
				vc, err := op.Vary(c, sel.CutVariations().Nodes(v, c), v)
				if err != nil {
					return err
				}
				varied[i] = vc
			}
			varNode = branchParent.ChildWithCuts(varied)
		}
		if varNode != node {
			node.vars[v] = varNode
		}
	}

	var parentWeight op.Node
	parentHas := false
	if parent != nil {
		parentWeight = parent.weightFor(v)
		_, parentHas = parent.weight[v]
	}
	switch {
	case len(weights) == 0:
		h.weight[v] = parentWeight
	case sel.WeightVariations().Has(v) || varNode != node || parentHas:
		varied := make([]op.Node, len(weights))
		for i, w := range weights {
			vw, err := op.Vary(w, sel.WeightVariations().Nodes(v, w), v)
			if err != nil {
				return err
			}
			varied[i] = vw
		}
		w, err := varNode.makeWeight(varied, fmt.Sprintf("w_%s__%s", sel.Name(), v), parentWeight)
		if err != nil {
			return err
		}
		h.weight[v] = w
	default:
		h.weight[v] = h.weight[nominal]
	}
	return nil
}

// Define requests a column for expr at the node of sel, whether or not
// an output uses it.
func (b *Backend) Define(expr op.Node, sel *selection.Selection) error {
	h, err := b.helper(sel)
	if err != nil {
		return err
	}
	if expr == nil {
		return &op.Error{Code: op.ErrCodeInvalidArgument, Message: "define: nil expression"}
	}
	return h.node.explDefine(expr, "")
}

func (b *Backend) register(name string, prods []Product) error {
	if _, dup := b.products[name]; dup {
		return newError(ErrCodeNameCollision, name, "an output with this name was already added")
	}
	b.products[name] = prods
	b.order = append(b.order, name)
	if b.eager {
		for _, p := range prods {
			if err := p.make(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddPlot registers a histogram, plus one per variation of its selection
// and its own expressions when automatic systematics are on for both.
func (b *Backend) AddPlot(p *selection.Plot) error {
	h, err := b.helper(p.Selection())
	if err != nil {
		return err
	}
	if _, dup := b.products[p.Name()]; dup {
		return newError(ErrCodeNameCollision, p.Name(), "an output with this name was already added")
	}
	sel := p.Selection()
	node := h.node
	vars := p.Variables()
	plotWeights := p.Weights()
	selName := sel.Name()

	nomWeight := h.weight[nominal]
	if len(plotWeights) > 0 {
		if nomWeight, err = node.makeWeight(plotWeights, fmt.Sprintf("w_%s_%s", selName, p.Name()), nomWeight); err != nil {
			return err
		}
	}
	prods := []Product{newHisto(b, node, p.Name(), vars, nomWeight, p.FullTitle(), p.Binnings())}

	if p.AutoSyst() && sel.AutoSyst() {
		varSysts := op.CollectVariations(vars...)
		weightSysts := op.CollectVariations(plotWeights...)
		for _, v := range unionSorted(sel.Systematics(), varSysts.Names(), weightSysts.Names()) {
			varNode, branched := node.vars[v]
			if !branched {
				varNode = node
			}
			varVars := vars
			if varSysts.Has(v) || branched {
				varVars = make([]op.Node, len(vars))
				for i, x := range vars {
					if varVars[i], err = op.Vary(x, varSysts.Nodes(v, x), v); err != nil {
						return err
					}
				}
			}
			weight, selHas := h.weight[v]
			if !selHas {
				weight = h.weight[nominal]
			}
			if len(plotWeights) > 0 {
				var wfMod []op.Node
				if weightSysts.Has(v) {
					wfMod = make([]op.Node, len(plotWeights))
					for i, w := range plotWeights {
						if wfMod[i], err = op.Vary(w, weightSysts.Nodes(v, w), v); err != nil {
							return err
						}
					}
				} else if selHas {
					wfMod = plotWeights
				}
				if wfMod != nil {
					if weight, err = varNode.makeWeight(wfMod, fmt.Sprintf("w_%s_%s__%s", selName, p.Name(), v), weight); err != nil {
						return err
					}
				} else {
					weight = nomWeight
				}
			}
			prods = append(prods, newHisto(b, varNode, variationName(p.Name(), v), varVars, weight, p.FullTitle(), p.Binnings()))
		}
	}
	return b.register(p.Name(), prods)
}

// AddSkim registers a skim of the rows passing its selection.
func (b *Backend) AddSkim(s *selection.Skim) error {
	h, err := b.helper(s.Selection())
	if err != nil {
		return err
	}
	if _, dup := b.products[s.Name()]; dup {
		return newError(ErrCodeNameCollision, s.Name(), "an output with this name was already added")
	}
	available := b.eng.Columns()
	cols, err := s.InputColumns(available)
	if err != nil {
		return err
	}
	inputs := make(map[string]bool, len(available))
	for _, c := range available {
		inputs[c] = true
	}
	for _, br := range s.DefinedBranches() {
		if inputs[br.Name] {
			b.logger.Warn("skim branch shadows an input column, the input column is copied",
				"skim", s.Name(), "column", br.Name)
		}
	}
	return b.register(s.Name(), []Product{&SkimHandle{
		backend:   b,
		node:      h.node,
		skim:      s,
		inputCols: cols,
		inputs:    inputs,
	}})
}

// CutFlowEntry holds the counters of one selection in a cut-flow report.
type CutFlowEntry struct {
	Selection  string
	Nominal    *HistoHandle
	Variations map[string]*HistoHandle
}

// AddCutFlowReport registers one counter per selection of r (and per
// variation when the report has automatic systematics). Nothing is
// registered when one of the selections was not added.
func (b *Backend) AddCutFlowReport(r *selection.CutFlowReport) error {
	if _, dup := b.products[r.Name()]; dup {
		return newError(ErrCodeNameCollision, r.Name(), "an output with this name was already added")
	}
	sels := r.Selections()
	helpers := make([]*selHelper, len(sels))
	for i, sel := range sels {
		h, err := b.helper(sel)
		if err != nil {
			return err
		}
		helpers[i] = h
	}
	entries := make([]*CutFlowEntry, 0, len(sels))
	var prods []Product
	for i, sel := range sels {
		entry := b.cutFlowEntry(sel, helpers[i], r.Name(), r.AutoSyst())
		entries = append(entries, entry)
		prods = append(prods, entry.Nominal)
		for _, v := range sortedKeys(entry.Variations) {
			prods = append(prods, entry.Variations[v])
		}
	}
	err := b.register(r.Name(), prods)
	b.cutFlows[r.Name()] = entries
	return err
}

// CutFlowEntries returns the entries of a registered report, in the
// order of its selections.
func (b *Backend) CutFlowEntries(r *selection.CutFlowReport) []*CutFlowEntry {
	return append([]*CutFlowEntry(nil), b.cutFlows[r.Name()]...)
}

func (b *Backend) cutFlowEntry(sel *selection.Selection, h *selHelper, prefix string, autoSyst bool) *CutFlowEntry {
	zero := op.Column("int", engine.ZeroColumn)
	nomName := prefix + "_" + sel.Name()
	nomWeight := h.weight[nominal]
	title := fmt.Sprintf("CutFlowReport %s nominal counter for %s", prefix, sel.Name())
	entry := &CutFlowEntry{
		Selection:  sel.Name(),
		Nominal:    newCounter(b, h.node, nomName, title, zero, nomWeight),
		Variations: make(map[string]*HistoHandle),
	}
	if !autoSyst {
		return entry
	}
	for _, v := range sel.Systematics() {
		varNode, branched := h.node.vars[v]
		w := h.weightFor(v)
		if !branched && sameExpr(w, nomWeight) {
			continue
		}
		if !branched {
			varNode = h.node
		}
		title := fmt.Sprintf("CutFlowReport %s %s counter for %s", prefix, v, sel.Name())
		entry.Variations[v] = newCounter(b, varNode, variationName(nomName, v), title, zero, w)
	}
	return entry
}

// Products returns the handles registered under name.
func (b *Backend) Products(name string) []Product {
	return append([]Product(nil), b.products[name]...)
}

// Outputs returns the registered output names, in registration order.
func (b *Backend) Outputs() []string { return append([]string(nil), b.order...) }

// Results returns the engine results of the output name. They are nil
// before BuildGraph.
func (b *Backend) Results(name string) []engine.Result {
	var out []engine.Result
	for _, p := range b.products[name] {
		out = append(out, p.Result())
	}
	return out
}

func variationName(name, v string) string { return name + "__" + v }

func sameExpr(a, b op.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return op.Equal(a, b)
}
