package op

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scaleFactor(t *testing.T) *SystAlt {
	t.Helper()
	sf, err := SystematicUpDown("sf", Column("float", "sf"), Column("float", "sf_up"), Column("float", "sf_down"))
	require.NoError(t, err)
	return sf
}

func TestSystematicConstruction(t *testing.T) {
	sf := scaleFactor(t)
	assert.Equal(t, []string{"sfdown", "sfup"}, sf.Variations())
	assert.Equal(t, "", sf.Active())
	code, err := sf.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "sf", code)

	_, err = Systematic(Column("float", "sf"), map[string]Node{"other": Column("float", "x")}, WithVariations("sfup"))
	require.Error(t, err)
	assert.True(t, IsInvalidVariation(err))

	_, err = Systematic(Column("float", "sf"), map[string]Node{"up": Column("TLorentzVector", "p4")})
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestRebind(t *testing.T) {
	sf := scaleFactor(t)

	up, err := sf.Rebind("sfup")
	require.NoError(t, err)
	assert.NotSame(t, sf, up)
	assert.Equal(t, "sfup", up.Active())
	assert.Empty(t, up.Variations(), "a bound wrapper offers no further variations")
	code, err := up.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "sf_up", code)

	assert.Equal(t, "", sf.Active(), "rebinding never changes the original")

	again, err := sf.Rebind("sfup")
	require.NoError(t, err)
	assert.True(t, Equal(up, again), "rebinding is deterministic")

	_, err = up.Rebind("sfdown")
	require.Error(t, err)
	assert.True(t, IsFrozenNode(err))

	_, err = sf.Rebind("jesup")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidVariation))
}

func TestRebindDeclaredWithoutAlternative(t *testing.T) {
	s, err := Systematic(Column("float", "w"), map[string]Node{"puup": Column("float", "w_up")}, WithVariations("puup", "pudown"))
	require.NoError(t, err)
	down, err := s.Rebind("pudown")
	require.NoError(t, err)
	code, err := down.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "w", code)
}

func TestVaryDeclaredWithoutAlternative(t *testing.T) {
	s, err := Systematic(Column("float", "w"), map[string]Node{"puup": Column("float", "w_up")}, WithVariations("puup", "pudown"))
	require.NoError(t, err)
	cut := Gt(s, Float(1))
	vars := CollectVariations(cut)

	down, err := Vary(cut, vars.Nodes("pudown", cut), "pudown")
	require.NoError(t, err)
	assert.Same(t, Node(cut), down, "a variation without an alternative leaves the expression shared")

	up, err := Vary(cut, vars.Nodes("puup", cut), "puup")
	require.NoError(t, err)
	assert.NotEqual(t, cut.Digest(), up.Digest())
}

func TestCollectVariations(t *testing.T) {
	pt := Column("float", "pt")
	sf := scaleFactor(t)
	w := Multiply(pt, sf)
	other := Gt(pt, Float(10))

	vars := CollectVariations(w, other)
	assert.Equal(t, []string{"sfdown", "sfup"}, vars.Names())

	nodes := vars.Nodes("sfup", w)
	require.Len(t, nodes, 1)
	assert.Same(t, sf, nodes[0])
	assert.Nil(t, vars.Nodes("sfup", other), "expressions without the wrapper are not affected")

	varied, err := Vary(w, nodes, "sfup")
	require.NoError(t, err)
	code, err := varied.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "( pt * sf_up )", code)
	assert.NotEqual(t, w.Digest(), varied.Digest())

	same, err := Vary(other, vars.Nodes("sfup", other), "sfup")
	require.NoError(t, err)
	assert.Same(t, Node(other), same, "unaffected expressions are reused by reference")
}

func TestCollectVariationsSharedWrapper(t *testing.T) {
	sf := scaleFactor(t)
	e := Add(Multiply(sf, Float(2)), Multiply(sf, Float(3)))

	vars := CollectVariations(e)
	assert.Len(t, vars.Nodes("sfup", e), 1, "a wrapper reachable twice is listed once")
}

func TestVariationsMerge(t *testing.T) {
	sf := scaleFactor(t)
	jes, err := SystematicUpDown("jes", Column("float", "pt"), Column("float", "pt_up"), Column("float", "pt_down"))
	require.NoError(t, err)

	a := CollectVariations(sf)
	b := CollectVariations(jes)
	m := a.Merge(b)

	if diff := cmp.Diff([]string{"jesdown", "jesup", "sfdown", "sfup"}, m.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, a, 2, "merge does not modify its inputs")
}

func TestForVariation(t *testing.T) {
	sf := scaleFactor(t)
	jes, err := SystematicUpDown("jes", Column("float", "pt"), Column("float", "pt_up"), Column("float", "pt_down"))
	require.NoError(t, err)
	e := Multiply(jes, sf)

	frozen, err := ForVariation(e, "jesup")
	require.NoError(t, err)
	code, err := frozen.Code(NoRedir)
	require.NoError(t, err)
	assert.Equal(t, "( pt_up * sf )", code)
	assert.Empty(t, CollectVariations(frozen), "nothing is left to vary")
}
