package op

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(col *ArrayColumnRef, i Node) Node { return GetItemOf(col, col.ElemType(), i) }

func selectHardJets(t *testing.T) *RangeOp {
	t.Helper()
	n, pt, _ := jets()
	sel, err := Select(IndexRange(n), func(l ...Node) (Node, error) {
		return Gt(item(pt, l[0]), Float(30)), nil
	})
	require.NoError(t, err)
	return sel
}

func TestSelectCode(t *testing.T) {
	sel := selectHardJets(t)

	code, err := sel.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "rdfhelpers::select(rdfhelpers::IndexRange<std::size_t>{nJet},\n"+
		"    [nJet,&Jet_pt] ( std::size_t i0 ) { return ( Jet_pt[i0] >  30.0 ); })", code)
	assert.Equal(t, VecType(TypeSize), sel.Type())
	assert.True(t, sel.CanDefine())
}

func TestSelectIsHashConsed(t *testing.T) {
	a := selectHardJets(t)
	b := selectHardJets(t)
	assert.True(t, Equal(a, b), "placeholders get the same final index, so equal bodies give equal digests")
}

func TestCaptures(t *testing.T) {
	n, pt, eta := jets()
	p4 := Column("TLorentzVector", "p4")
	sel, err := Select(IndexRange(n), func(l ...Node) (Node, error) {
		m, err := CallMember(p4, "Pt", nil, WithReturnType("double"))
		if err != nil {
			return nil, err
		}
		return And(Gt(item(pt, l[0]), m), Lt(Abs(item(eta, l[0])), Float(2.4))), nil
	})
	require.NoError(t, err)

	caps, err := Captures(sel, NoRedir)
	require.NoError(t, err)
	want := []Capture{
		{Token: "nJet", Decl: "UInt_t nJet", Name: "nJet"},
		{Token: "&Jet_eta", Decl: "const ROOT::VecOps::RVec<Float_t>& Jet_eta", Name: "Jet_eta"},
		{Token: "&Jet_pt", Decl: "const ROOT::VecOps::RVec<Float_t>& Jet_pt", Name: "Jet_pt"},
		{Token: "&p4", Decl: "const TLorentzVector& p4", Name: "p4"},
	}
	if diff := cmp.Diff(want, caps); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedRangeLocalIndices(t *testing.T) {
	nJet, jetPt, _ := jets()
	nMu := Column("UInt_t", "nMuon")
	muPt := ArrayColumn("Float_t", "Muon_pt", nMu)

	var inner *RangeOp
	outer, err := Select(IndexRange(nJet), func(l ...Node) (Node, error) {
		c, err := Count(IndexRange(nMu), func(m ...Node) (Node, error) {
			return Lt(item(muPt, m[0]), item(jetPt, l[0])), nil
		})
		if err != nil {
			return nil, err
		}
		return Eq(c, Const(TypeSize, "0")), nil
	})
	require.NoError(t, err)

	require.Len(t, outer.Locals(), 1)
	assert.Equal(t, 2, outer.Locals()[0].Index(), "count binds i0 and i1, the outer select takes the next index")

	for _, n := range Collect(outer.Body(), DepsOptions{Select: func(n Node) bool { return n.Kind() == KindReduce }}) {
		inner = n.(*RangeOp)
	}
	require.NotNil(t, inner)
	assert.Equal(t, []int{0, 1}, []int{inner.Locals()[0].Index(), inner.Locals()[1].Index()})
	assert.False(t, inner.CanDefine(), "the inner count depends on the outer loop variable")
	assert.True(t, outer.CanDefine())

	code, err := outer.Code(NoRedir)
	require.NoError(t, err)
	assert.Contains(t, code, "[nJet,nMuon,&Jet_pt,&Muon_pt] ( std::size_t i2 )")
	assert.Contains(t, code, "[nJet,nMuon,&Jet_pt,&Muon_pt,i2] ( std::size_t i1, std::size_t i0 )",
		"the inner lambda captures the outer index by value")
}

func TestReduceCode(t *testing.T) {
	n, pt, _ := jets()
	sum, err := Sum(IndexRange(n), Float(0), func(l ...Node) (Node, error) {
		return item(pt, l[0]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, sum.Type())
	require.Len(t, sum.Locals(), 2)
	assert.Equal(t, 0, sum.Locals()[0].Index())
	assert.Equal(t, 1, sum.Locals()[1].Index())
	assert.Equal(t, 1, sum.MaxLocal())

	code, err := sum.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "rdfhelpers::reduce(rdfhelpers::IndexRange<std::size_t>{nJet}, 0.0,\n"+
		"     [nJet,&Jet_pt] ( double i1, std::size_t i0 ) { return ( i1 + Jet_pt[i0] ); })", code)
}

func TestMapAndFind(t *testing.T) {
	n, pt, eta := jets()
	m, err := Map(IndexRange(n), "", func(l ...Node) (Node, error) {
		return Multiply(item(pt, l[0]), item(eta, l[0])), nil
	})
	require.NoError(t, err)
	assert.Equal(t, VecType("float"), m.Type())
	code, err := m.Code(NoRedir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "rdfhelpers::map<float>("))

	f, err := Find(IndexRange(n), func(l ...Node) (Node, error) {
		return Gt(item(pt, l[0]), Float(50)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, TypeSize, f.Type())
	code, err = f.Code(NoRedir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(code, "}, -1)"))
}

func TestSortCode(t *testing.T) {
	n, pt, _ := jets()
	s, err := Sort(IndexRange(n), func(l ...Node) (Node, error) {
		return Neg(item(pt, l[0])), nil
	})
	require.NoError(t, err)
	code, err := s.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "rdfhelpers::sort(rdfhelpers::IndexRange<std::size_t>{nJet},\n"+
		"    [nJet,&Jet_pt] ( std::size_t i0 ) { return ( -Jet_pt[i0] ); })", code)
}

func TestCombineSameContainerPredicate(t *testing.T) {
	nJet, jetPt, _ := jets()
	nMu := Column("UInt_t", "nMuon")
	muPt := ArrayColumn("Float_t", "Muon_pt", nMu)
	jetRange := Range{Indices: IndexRange(nJet), Base: "Jet"}
	muRange := Range{Indices: IndexRange(nMu), Base: "Muon"}

	ptSum := func(a, b *ArrayColumnRef) Body {
		return func(l ...Node) (Node, error) {
			return Gt(Add(item(a, l[0]), item(b, l[1])), Float(50)), nil
		}
	}

	t.Run("default predicate orders indices of one container", func(t *testing.T) {
		c, err := Combine(2, []Range{jetRange}, ptSum(jetPt, jetPt))
		require.NoError(t, err)
		code, err := c.Code(NoRedir)
		require.NoError(t, err)
		assert.Contains(t, code, "( i0 <  i1 )")
		assert.Contains(t, code, "( std::size_t i0, std::size_t i1 )")
		assert.Equal(t, "ROOT::VecOps::RVec<rdfhelpers::Combination<2>>", c.Type())
		assert.Len(t, c.Ranges(), 2)
	})

	t.Run("different containers are never compared", func(t *testing.T) {
		c, err := Combine(2, []Range{jetRange, muRange}, ptSum(jetPt, muPt))
		require.NoError(t, err)
		code, err := c.Code(NoRedir)
		require.NoError(t, err)
		assert.NotContains(t, code, "i0 <  i1")
	})

	t.Run("predicate can be disabled", func(t *testing.T) {
		c, err := Combine(2, []Range{jetRange}, ptSum(jetPt, jetPt), WithSamePredicate(nil))
		require.NoError(t, err)
		code, err := c.Code(NoRedir)
		require.NoError(t, err)
		assert.NotContains(t, code, "i0 <  i1")
	})

	t.Run("mismatched range count", func(t *testing.T) {
		_, err := Combine(3, []Range{jetRange, muRange}, ptSum(jetPt, muPt))
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestRangeBodyErrorPropagates(t *testing.T) {
	n, _, _ := jets()
	boom := errors.New("boom")
	_, err := Select(IndexRange(n), func(...Node) (Node, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
