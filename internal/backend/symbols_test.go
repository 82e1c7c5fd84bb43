package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/onepass/internal/op"
)

func TestSymbolTableNames(t *testing.T) {
	table := NewSymbolTable()
	declA := "int " + NamePlaceholder + "() { return 1; }"
	declB := "int " + NamePlaceholder + "() { return 2; }"
	declC := "int " + NamePlaceholder + "() { return 3; }"

	assert.Equal(t, "myFun0", table.Name(declA, ""))
	assert.Equal(t, "myFun0", table.Name(declA, "ignored"), "a known declaration keeps its name")
	assert.Equal(t, "two", table.Name(declB, "two"))
	assert.Equal(t, "myFun1", table.Name(declC, "two"), "a taken hint falls back to a generated name")
	assert.Equal(t, 3, table.Len())
}

func TestNormaliseArgs(t *testing.T) {
	nCap := op.Capture{Token: "n", Decl: "UInt_t n", Name: "n"}
	jetPtCap := op.Capture{Token: "&Jet_pt", Decl: "const ROOT::VecOps::RVec<Float_t>& Jet_pt", Name: "Jet_pt"}
	tests := []struct {
		name       string
		code       string
		caps       []op.Capture
		wantBody   string
		wantParams []string
	}{
		{
			name:       "plain",
			code:       "( pt >  10.0 )",
			caps:       []op.Capture{{Token: "pt", Decl: "float pt", Name: "pt"}},
			wantBody:   "( myArg0 >  10.0 )",
			wantParams: []string{"float myArg0"},
		},
		{
			name:       "members and prefixes are kept",
			code:       "( pt + p4.pt + p->pt + ns::pt + ptx + x_pt )",
			caps:       []op.Capture{{Token: "pt", Decl: "float pt", Name: "pt"}},
			wantBody:   "( myArg0 + p4.pt + p->pt + ns::pt + ptx + x_pt )",
			wantParams: []string{"float myArg0"},
		},
		{
			name:       "by reference",
			code:       "Jet_pt[0] * n",
			caps:       []op.Capture{nCap, jetPtCap},
			wantBody:   "myArg1[0] * myArg0",
			wantParams: []string{"UInt_t myArg0", "const ROOT::VecOps::RVec<Float_t>& myArg1"},
		},
		{
			name:       "literal suffixes are not identifiers",
			code:       "f * 2.0f",
			caps:       []op.Capture{{Token: "f", Decl: "float f", Name: "f"}},
			wantBody:   "myArg0 * 2.0f",
			wantParams: []string{"float myArg0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, params := normaliseArgs(tt.code, tt.caps)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestFunctionDecl(t *testing.T) {
	got := functionDecl("double", []string{"float myArg0"}, "myArg0 * 2")
	assert.Equal(t, "double <<name>>(float myArg0)\n{\n  return myArg0 * 2;\n};\n", got)
}
