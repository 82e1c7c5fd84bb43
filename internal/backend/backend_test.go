package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onepass/internal/engine"
	"github.com/roach88/onepass/internal/op"
	"github.com/roach88/onepass/internal/selection"
	"github.com/roach88/onepass/internal/testutil"
)

var (
	pt  = op.Column("float", "pt")
	eta = op.Column("float", "eta")
	sf  = op.Column("float", "sf")

	nJet  = op.Column("UInt_t", "nJet")
	jetPt = op.ArrayColumn("Float_t", "Jet_pt", nJet)
)

var inputColumns = []string{"run", "event", "pt", "eta", "sf", "sf_up", "sf_down", "nJet", "Jet_pt"}

func newTestBackend(t *testing.T, opts ...Option) (*Backend, *testutil.FakeEngine) {
	t.Helper()
	eng := testutil.NewFakeEngine(inputColumns...)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(eng, opts...), eng
}

func mustRoot(t *testing.T, b *Backend) *selection.Selection {
	t.Helper()
	root, err := selection.NewRoot("all")
	require.NoError(t, err)
	require.NoError(t, b.AddSelection(root))
	return root
}

func mustRefine(t *testing.T, b *Backend, parent *selection.Selection, name string, opts ...selection.Option) *selection.Selection {
	t.Helper()
	sel, err := parent.Refine(name, opts...)
	require.NoError(t, err)
	require.NoError(t, b.AddSelection(sel))
	return sel
}

func mustPlot(t *testing.T, b *Backend, name string, x op.Node, sel *selection.Selection, opts ...selection.PlotOption) *selection.Plot {
	t.Helper()
	p, err := selection.NewPlot(name, []op.Node{x}, sel,
		[]selection.Binning{selection.Equidistant{N: 10, Min: 0, Max: 100}}, opts...)
	require.NoError(t, err)
	require.NoError(t, b.AddPlot(p))
	return p
}

func jesPt(t *testing.T) op.Node {
	t.Helper()
	n, err := op.SystematicUpDown("jes", pt, op.Multiply(pt, op.Float(1.02)), op.Multiply(pt, op.Float(0.98)))
	require.NoError(t, err)
	return n
}

func sfSyst(t *testing.T) op.Node {
	t.Helper()
	n, err := op.SystematicUpDown("sf", sf, op.Column("float", "sf_up"), op.Column("float", "sf_down"))
	require.NoError(t, err)
	return n
}

func hardJets(t *testing.T) op.Node {
	t.Helper()
	n, err := op.Count(op.IndexRange(nJet), func(l ...op.Node) (op.Node, error) {
		return op.Gt(op.GetItemOf(jetPt, jetPt.ElemType(), l[0]), op.Float(30)), nil
	})
	require.NoError(t, err)
	return n
}

func TestTwoFilterChainRunsOnce(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	ptSel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(pt, op.Float(10))))
	etaSel := mustRefine(t, b, ptSel, "eta", selection.WithCuts(op.Lt(op.Abs(eta), op.Float(2))))

	mustPlot(t, b, "pt_pt", pt, ptSel)
	mustPlot(t, b, "pt_eta", eta, ptSel)
	mustPlot(t, b, "eta_pt", pt, etaSel)
	mustPlot(t, b, "eta_eta", eta, etaSel)

	assert.Zero(t, eng.Count("Filter"), "nothing is booked before BuildGraph")
	require.NoError(t, b.BuildGraph())
	require.NoError(t, b.RunGraph(context.Background()))

	filters := eng.Calls("Filter")
	require.Len(t, filters, 2)
	assert.Equal(t, "root", filters[0].Node)
	assert.Equal(t, "( pt >  10.0 )", filters[0].Fn.Code)
	assert.Equal(t, []string{"pt"}, filters[0].Fn.Columns)
	assert.Equal(t, "[] ( float myArg0 ) { return ( myArg0 >  10.0 ); }", filters[0].Fn.Callable)
	assert.Equal(t, filters[0].Out, filters[1].Node, "the second cut filters the first node")

	assert.Equal(t, 4, eng.Count("Histogram"))
	assert.Zero(t, eng.Count("Define"))
	assert.Equal(t, 1, eng.Runs())
	for _, name := range []string{"pt_pt", "pt_eta", "eta_pt", "eta_eta"} {
		res := b.Results(name)
		require.Len(t, res, 1, name)
		assert.True(t, res[0].Done(), name)
	}

	etaNode, ok := b.Node(etaSel)
	require.True(t, ok)
	assert.Equal(t, StateDone, etaNode.State())
	assert.Equal(t, map[string]int{"Filter": 2, "Histo1D": 4}, b.Stats())
}

func TestIdenticalCutsShareNode(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	a := mustRefine(t, b, root, "a", selection.WithCuts(op.Gt(pt, op.Float(10))))
	c := mustRefine(t, b, root, "c", selection.WithCuts(op.Gt(pt, op.Float(10))))
	mustPlot(t, b, "ha", pt, a)
	mustPlot(t, b, "hc", eta, c)

	na, _ := b.Node(a)
	nc, _ := b.Node(c)
	assert.Same(t, na, nc)

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 1, eng.Count("Filter"))
	assert.Len(t, b.Root().Children(), 1)
}

func TestCutVariationBranches(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	jes := jesPt(t)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(jes, op.Float(10))))
	mustPlot(t, b, "h", jes, sel)

	nom, _ := b.Node(sel)
	up, ok := nom.Variation("jesup")
	require.True(t, ok)
	assert.NotSame(t, nom, up)
	assert.Same(t, b.Root(), up.Parent())

	var names []string
	for _, p := range b.Products("h") {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"h", "h__jesdown", "h__jesup"}, names)

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 3, eng.Count("Filter"))

	nominal, ok := eng.Result("h")
	require.True(t, ok)
	assert.Equal(t, []string{"pt"}, histColumns(t, eng, "h"), "the nominal value of a column wrapper is read directly")
	assert.NotEqual(t, "root", nominal.Node)
	assert.Equal(t, []string{"v0_h__jesup"}, histColumns(t, eng, "h__jesup"))

	up2, _ := eng.Result("h__jesup")
	down, _ := eng.Result("h__jesdown")
	assert.NotEqual(t, nominal.Node, up2.Node)
	assert.NotEqual(t, up2.Node, down.Node)
}

func TestDeclaredVariationWithoutAlternativeReusesNominalNode(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	jes, err := op.Systematic(pt, map[string]op.Node{"jesup": op.Multiply(pt, op.Float(1.02))},
		op.WithVariations("jesup", "jesdown"))
	require.NoError(t, err)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(jes, op.Float(10))))
	mustPlot(t, b, "h", eta, sel)

	nom, _ := b.Node(sel)
	_, branched := nom.Variation("jesdown")
	assert.False(t, branched, "an unchanged cut keeps the nominal node")
	up, ok := nom.Variation("jesup")
	require.True(t, ok)
	assert.NotSame(t, nom, up)
	assert.Len(t, b.Root().Children(), 2)

	require.NoError(t, b.BuildGraph())
	filters := eng.Calls("Filter")
	require.Len(t, filters, 2)
	assert.Equal(t, "( pt >  10.0 )", filters[0].Fn.Code)
	assert.Equal(t, "( ( pt * 1.02 ) >  10.0 )", filters[1].Fn.Code)
}

func TestWeightVariationReusesNominalNode(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "central",
		selection.WithCuts(op.Lt(eta, op.Float(2))),
		selection.WithWeights(sfSyst(t)))
	mustPlot(t, b, "h", eta, sel)

	node, _ := b.Node(sel)
	_, branched := node.Variation("sfup")
	assert.False(t, branched, "weight variations do not change the filter")
	for _, p := range b.Products("h") {
		assert.Same(t, node, p.Node(), p.Name())
	}

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 1, eng.Count("Filter"))
	assert.Zero(t, eng.Count("Define"), "plain column weights are not defined")
	assert.Equal(t, []string{"eta", "sf"}, histColumns(t, eng, "h"))
	assert.Equal(t, []string{"eta", "sf_up"}, histColumns(t, eng, "h__sfup"))
	assert.Equal(t, []string{"eta", "sf_down"}, histColumns(t, eng, "h__sfdown"))
}

func TestUnaffectedSelectionHasNoVariations(t *testing.T) {
	b, _ := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "central", selection.WithCuts(op.Lt(eta, op.Float(2))))
	mustPlot(t, b, "h", eta, sel)

	assert.Len(t, b.Products("h"), 1)
}

func TestWeightsAreDefined(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "w",
		selection.WithCuts(op.Gt(pt, op.Float(10))),
		selection.WithWeights(sf, op.Float(2)))
	sub := mustRefine(t, b, sel, "sub", selection.WithCuts(op.Lt(eta, op.Float(2))))
	mustPlot(t, b, "h", pt, sel)
	mustPlot(t, b, "hsub", pt, sub)
	mustPlot(t, b, "hpw", pt, sel, selection.WithPlotWeights(op.Multiply(eta, eta)))

	w, ok := b.Weight(sub, "")
	require.True(t, ok)
	assert.True(t, op.Equal(op.Multiply(sf, op.Float(2)), w), "children inherit the weight")

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, []string{"w_w", "w_w_hpw"}, eng.Defined())
	assert.Equal(t, []string{"pt", "w_w"}, histColumns(t, eng, "h"))
	assert.Equal(t, []string{"pt", "w_w"}, histColumns(t, eng, "hsub"), "defined on the parent, visible below")
	assert.Equal(t, []string{"pt", "w_w_hpw"}, histColumns(t, eng, "hpw"))
}

func TestRangeHelperDeclaredOnce(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	a := mustRefine(t, b, root, "a", selection.WithCuts(op.Gt(pt, op.Float(10))))
	c := mustRefine(t, b, root, "c", selection.WithCuts(op.Lt(eta, op.Float(2))))
	nHard := hardJets(t)
	mustPlot(t, b, "na", nHard, a)
	mustPlot(t, b, "nc", nHard, c)

	require.NoError(t, b.BuildGraph())

	decls := eng.Calls("Declare")
	require.Len(t, decls, 1)
	assert.Contains(t, decls[0].Code, " myFun0(UInt_t myArg0, const ROOT::VecOps::RVec<Float_t>& myArg1)")
	assert.NotContains(t, decls[0].Code, NamePlaceholder)

	defines := eng.Calls("Define")
	require.Len(t, defines, 2, "one column per sibling node")
	for _, d := range defines {
		assert.Equal(t, "myFun0", d.Fn.Callable)
		assert.Equal(t, "myFun0(nJet, Jet_pt)", d.Fn.Code)
		assert.Equal(t, []string{"nJet", "Jet_pt"}, d.Fn.Columns)
	}
	assert.Equal(t, 1, b.Stats()["Declare"])
}

func TestSharedSymbolTable(t *testing.T) {
	table := NewSymbolTable()
	for i := 0; i < 2; i++ {
		b, eng := newTestBackend(t, WithSymbolTable(table))
		root := mustRoot(t, b)
		mustPlot(t, b, "n", hardJets(t), root)
		require.NoError(t, b.BuildGraph())
		assert.Equal(t, 1, eng.Count("Declare"), "every engine gets its own declaration")
		assert.Equal(t, "myFun0", eng.Calls("Define")[0].Fn.Callable)
	}
	assert.Equal(t, 1, table.Len())
}

func TestRenderIsIdempotent(t *testing.T) {
	b, eng := newTestBackend(t)
	sum := op.DefineOnFirstUse(op.Add(pt, eta))

	first, err := b.Root().Render(sum)
	require.NoError(t, err)
	second, err := b.Root().Render(sum)
	require.NoError(t, err)

	assert.Equal(t, "myCol000000", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, eng.Count("Define"))
	assert.Equal(t, []string{"myCol000000"}, b.Root().Columns())

	inline, err := b.Root().Render(op.Add(pt, pt))
	require.NoError(t, err)
	assert.Equal(t, "( pt + pt )", inline)
	assert.Equal(t, 1, eng.Count("Define"))
}

func TestExplicitDefine(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(pt, op.Float(10))))
	sum := op.Add(pt, eta)
	require.NoError(t, b.Define(sum, sel))
	require.NoError(t, b.Define(sum, sel))
	mustPlot(t, b, "h", sum, sel)

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, []string{"myCol000000"}, eng.Defined())
	assert.Equal(t, []string{"myCol000000"}, histColumns(t, eng, "h"))

	other, err := selection.NewRoot("other")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Define(sum, other), ErrUnknownSelection)
}

func TestRegistrationErrors(t *testing.T) {
	b, _ := newTestBackend(t)
	root := mustRoot(t, b)
	assert.ErrorIs(t, b.AddSelection(root), ErrDuplicateSelection)

	sameName, err := selection.NewRoot("all")
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddSelection(sameName), ErrDuplicateSelection)

	orphanParent, err := selection.NewRoot("orphan")
	require.NoError(t, err)
	orphan, err := orphanParent.Refine("child")
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddSelection(orphan), ErrUnknownSelection)

	p, err := selection.NewPlot("h", []op.Node{pt}, orphanParent, []selection.Binning{selection.Equidistant{N: 1, Min: 0, Max: 1}})
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddPlot(p), ErrUnknownSelection)

	mustPlot(t, b, "h", pt, root)
	dup, err := selection.NewPlot("h", []op.Node{eta}, root, []selection.Binning{selection.Equidistant{N: 1, Min: 0, Max: 1}})
	require.NoError(t, err)
	err = b.AddPlot(dup)
	assert.ErrorIs(t, err, ErrNameCollision)
	assert.True(t, IsNameCollision(err))

	sk, err := selection.NewSkim("h", []selection.Branch{{Name: "pt"}}, root)
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddSkim(sk), ErrNameCollision)
}

func TestGraphLifecycle(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	mustPlot(t, b, "h", pt, root)

	assert.ErrorIs(t, b.RunGraph(context.Background()), ErrGraphNotBuilt)

	unknown, err := selection.NewPlot("nope", []op.Node{pt}, root, []selection.Binning{selection.Equidistant{N: 1, Min: 0, Max: 1}})
	require.NoError(t, err)
	assert.ErrorIs(t, b.BuildGraph(unknown), ErrUnknownOutput)

	require.NoError(t, b.BuildGraph())
	assert.True(t, b.Built())
	assert.ErrorIs(t, b.BuildGraph(), ErrGraphBuilt)

	require.NoError(t, b.RunGraph(context.Background()))
	assert.ErrorIs(t, b.RunGraph(context.Background()), ErrGraphRun)
	assert.Equal(t, 1, eng.Runs())
}

func TestBuildSelectedOutputs(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	a := mustRefine(t, b, root, "a", selection.WithCuts(op.Gt(pt, op.Float(10))))
	c := mustRefine(t, b, root, "c", selection.WithCuts(op.Lt(eta, op.Float(2))))
	pa := mustPlot(t, b, "ha", pt, a)
	mustPlot(t, b, "hc", pt, c)

	require.NoError(t, b.BuildGraph(pa))
	assert.Equal(t, 1, eng.Count("Filter"))
	assert.Equal(t, 1, eng.Count("Histogram"))
	assert.Nil(t, b.Results("hc")[0])

	require.NoError(t, b.RunGraph(context.Background()))
	assert.True(t, b.Results("ha")[0].Done())
}

func TestRunGraphError(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	mustPlot(t, b, "h", pt, root)
	eng.FailRun(&engine.Error{Code: engine.ErrCodeExecution, Message: "segfault"})

	require.NoError(t, b.BuildGraph())
	err := b.RunGraph(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrExecution)
	assert.True(t, engine.IsExecutionError(err))
	assert.False(t, b.Results("h")[0].Done())
	assert.ErrorIs(t, b.RunGraph(context.Background()), ErrGraphRun)
}

func TestEagerBuild(t *testing.T) {
	b, eng := newTestBackend(t, WithEagerBuild())
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(jesPt(t), op.Float(10))))
	assert.Equal(t, 3, eng.Count("Filter"), "nominal and variation nodes are created with the selection")

	mustPlot(t, b, "h", pt, sel, selection.WithPlotAutoSyst(false))
	assert.Equal(t, 1, eng.Count("Histogram"))
	require.NotNil(t, b.Results("h")[0])

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 3, eng.Count("Filter"))
	assert.Equal(t, 1, eng.Count("Histogram"))
	require.NoError(t, b.RunGraph(context.Background()))
}

func TestSkim(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(pt, op.Float(10))))
	sk, err := selection.NewSkim("events", []selection.Branch{
		{Name: "event"},
		{Name: "ht", Expr: op.Add(pt, eta)},
	}, sel, selection.WithKeep(selection.KeepColumns("run")), selection.WithMaxSelected(50))
	require.NoError(t, err)
	require.NoError(t, b.AddSkim(sk))

	require.NoError(t, b.BuildGraph())
	snaps := eng.Calls("Snapshot")
	require.Len(t, snaps, 1)
	assert.Equal(t, []string{"event", "run", "ht"}, snaps[0].Columns)
	assert.Equal(t, []string{"ht"}, eng.Defined())

	res, ok := eng.Result("events")
	require.True(t, ok)
	assert.Equal(t, "skim_events.root", res.Spec.File)
	assert.Equal(t, "events", res.Spec.TreeName)
	assert.Equal(t, 50, res.Spec.MaxRows)

	handle := b.Products("events")[0].(*SkimHandle)
	assert.Equal(t, KindSnapshot, handle.Kind())
	assert.Equal(t, []string{"event", "run", "ht"}, handle.Columns())
}

func TestSkimOfDefinedColumn(t *testing.T) {
	eng := testutil.NewFakeEngine(append([]string{"w_pt"}, inputColumns...)...)
	b := New(eng, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "pt",
		selection.WithCuts(op.Gt(pt, op.Float(10))),
		selection.WithWeights(op.Multiply(sf, sf)))
	sk, err := selection.NewSkim("events", []selection.Branch{{Name: "w_pt"}}, sel)
	require.NoError(t, err)
	require.NoError(t, b.AddSkim(sk))

	assert.ErrorIs(t, b.BuildGraph(), ErrDefinedColumn)
}

func TestCutFlowReport(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	ptSel := mustRefine(t, b, root, "pt",
		selection.WithCuts(op.Gt(jesPt(t), op.Float(10))),
		selection.WithWeights(sf))
	etaSel := mustRefine(t, b, ptSel, "eta", selection.WithCuts(op.Lt(eta, op.Float(2))))

	r, err := selection.NewCutFlowReport("yields", []*selection.Selection{etaSel}, selection.Recursive())
	require.NoError(t, err)
	require.NoError(t, b.AddCutFlowReport(r))
	assert.ErrorIs(t, b.AddCutFlowReport(r), ErrNameCollision)

	entries := b.CutFlowEntries(r)
	require.Len(t, entries, 3)
	assert.Equal(t, "eta", entries[0].Selection)
	assert.Equal(t, "yields_eta", entries[0].Nominal.Name())
	assert.Empty(t, entries[0].Variations, "variations are off by default")

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 3, eng.Count("Histogram"))
	assert.Equal(t, []string{engine.ZeroColumn}, histColumns(t, eng, "yields_all"))
	assert.Equal(t, []string{engine.ZeroColumn, "sf"}, histColumns(t, eng, "yields_pt"))

	res, _ := eng.Result("yields_eta")
	assert.Equal(t, engine.HistoModel{
		Name:  "yields_eta",
		Title: "CutFlowReport yields nominal counter for eta",
		Axes:  []engine.Axis{{N: 1, Min: 0, Max: 1}},
	}, res.Model)
}

func TestCutFlowReportVariations(t *testing.T) {
	b, _ := newTestBackend(t)
	root := mustRoot(t, b)
	ptSel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(jesPt(t), op.Float(10))))

	r, err := selection.NewCutFlowReport("yields", []*selection.Selection{ptSel, root}, selection.WithCutFlowAutoSyst(true))
	require.NoError(t, err)
	require.NoError(t, b.AddCutFlowReport(r))

	var names []string
	for _, p := range b.Products("yields") {
		names = append(names, p.Name())
		assert.Equal(t, KindCounter, p.Kind())
	}
	assert.Equal(t, []string{"yields_pt", "yields_pt__jesdown", "yields_pt__jesup", "yields_all"}, names)

	entry := b.CutFlowEntries(r)[0]
	up, _ := b.Root().Children()[0].Variation("jesup")
	assert.Same(t, up, entry.Variations["jesup"].Node())
}

func TestCutFlowReportUnknownSelectionRegistersNothing(t *testing.T) {
	b, eng := newTestBackend(t)
	root := mustRoot(t, b)
	ptSel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(pt, op.Float(10))))
	stray, err := ptSel.Refine("eta", selection.WithCuts(op.Lt(eta, op.Float(2))))
	require.NoError(t, err)

	bad, err := selection.NewCutFlowReport("yields", []*selection.Selection{stray}, selection.Recursive())
	require.NoError(t, err)
	assert.ErrorIs(t, b.AddCutFlowReport(bad), ErrUnknownSelection)
	assert.Empty(t, b.Products("yields"))
	assert.Empty(t, b.CutFlowEntries(bad))

	good, err := selection.NewCutFlowReport("yields", []*selection.Selection{ptSel}, selection.Recursive())
	require.NoError(t, err)
	require.NoError(t, b.AddCutFlowReport(good))
	entries := b.CutFlowEntries(good)
	require.Len(t, entries, 2)
	assert.Equal(t, "pt", entries[0].Selection)
	assert.Equal(t, "all", entries[1].Selection)

	require.NoError(t, b.BuildGraph())
	assert.Equal(t, 2, eng.Count("Histogram"))
}

func TestSummary(t *testing.T) {
	b, _ := newTestBackend(t)
	root := mustRoot(t, b)
	sel := mustRefine(t, b, root, "pt", selection.WithCuts(op.Gt(pt, op.Float(10))))
	mustPlot(t, b, "h", op.Add(pt, eta), sel)
	require.NoError(t, b.BuildGraph())
	require.NoError(t, b.RunGraph(context.Background()))

	s := b.Summary()
	require.Len(t, s.Nodes, 2)
	assert.Empty(t, s.Nodes[0].Parent)
	assert.Equal(t, s.Nodes[0].Digest, s.Nodes[1].Parent)
	assert.Equal(t, "( pt >  10.0 )", s.Nodes[1].Cut)
	assert.Equal(t, "done", s.Nodes[1].State)
	assert.Equal(t, []string{"v0_h"}, s.Nodes[1].Columns)

	require.Len(t, s.Products, 1)
	assert.Equal(t, ProductSummary{
		Name:   "h",
		Output: "h",
		Kind:   KindHisto,
		Node:   s.Nodes[1].Digest,
		Digest: b.Products("h")[0].Digest().String(),
	}, s.Products[0])
	assert.Equal(t, map[string]int{"Filter": 1, "Define": 1, "Histo1D": 1}, s.Stats)
}

func TestNodeDigestsFollowCutChain(t *testing.T) {
	b1, _ := newTestBackend(t)
	b2, _ := newTestBackend(t)
	cut := op.Gt(pt, op.Float(10))
	n1 := b1.Root().ChildWithCuts([]op.Node{cut})
	n2 := b2.Root().ChildWithCuts([]op.Node{op.Gt(pt, op.Float(10))})
	assert.Equal(t, n1.Digest(), n2.Digest())

	n3 := n1.ChildWithCuts([]op.Node{cut})
	assert.NotEqual(t, n1.Digest(), n3.Digest())
	assert.Equal(t, "unrealised", n3.State().String())
}

func histColumns(t *testing.T, eng *testutil.FakeEngine, name string) []string {
	t.Helper()
	for _, c := range eng.Calls("Histogram") {
		if c.Name == name {
			return c.Columns
		}
	}
	t.Fatalf("no histogram %q", name)
	return nil
}
