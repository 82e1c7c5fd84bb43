package op

import (
	"fmt"
	"sync"
)

// Kind enumerates the node types. The set is closed: code that switches
// over kinds handles every one of them.
type Kind uint8

const (
	KindConst Kind = iota + 1
	KindColumn
	KindArrayColumn
	KindExtVar
	KindSymbol
	KindLocal
	KindMath
	KindGetItem
	KindConstruct
	KindInitList
	KindCall
	KindCallMember
	KindDataMember
	KindSelect
	KindSort
	KindMap
	KindFind
	KindReduce
	KindCombine
	KindSystAlt
	KindDefineOnFirstUse
)

var kindNames = map[Kind]string{
	KindConst:            "Const",
	KindColumn:           "Column",
	KindArrayColumn:      "ArrayColumn",
	KindExtVar:           "ExtVar",
	KindSymbol:           "Symbol",
	KindLocal:            "Local",
	KindMath:             "Math",
	KindGetItem:          "GetItem",
	KindConstruct:        "Construct",
	KindInitList:         "InitList",
	KindCall:             "Call",
	KindCallMember:       "CallMember",
	KindDataMember:       "DataMember",
	KindSelect:           "Select",
	KindSort:             "Sort",
	KindMap:              "Map",
	KindFind:             "Find",
	KindReduce:           "Reduce",
	KindCombine:          "Combine",
	KindSystAlt:          "SystAlt",
	KindDefineOnFirstUse: "DefineOnFirstUse",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsRange reports whether nodes of kind k bind locals.
func (k Kind) IsRange() bool {
	switch k {
	case KindSelect, KindSort, KindMap, KindFind, KindReduce, KindCombine:
		return true
	}
	return false
}

// Node is an immutable expression node.
//
// Implementations live in this package only; the unexported methods keep
// the set of kinds closed.
type Node interface {
	// Kind returns the node kind.
	Kind() Kind

	// Type returns the C++ type name of the value the node evaluates to.
	Type() string

	// Children returns the direct children in a fixed order.
	Children() []Node

	// CanDefine reports whether the node can be promoted to a column,
	// i.e. it does not depend on a loop variable bound outside of it.
	CanDefine() bool

	// Digest returns the structural identity.
	Digest() Digest

	// String returns a printable signature, stable for equal nodes.
	String() string

	// Code renders the node to C++ expression code.
	Code(ctx CodeContext) (string, error)

	// childNodes returns the children without copying.
	childNodes() []Node

	// operands returns the nodes that dependency traversals descend
	// into. For most kinds these are the children.
	operands() []Node

	// rebuild returns a node of the same kind and literal parameters over
	// new children.
	rebuild(children []Node) Node
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	return a.Digest() == b.Digest()
}

// base carries the fields shared by every node kind.
type base struct {
	kind      Kind
	typeName  string
	children  []Node
	canDefine bool
	digest    Digest

	sigOnce sync.Once
	sig     string
}

func newBase(kind Kind, typeName string, children []Node, canDefine bool) base {
	return base{kind: kind, typeName: typeName, children: children, canDefine: canDefine}
}

func (b *base) Kind() Kind         { return b.kind }
func (b *base) Type() string       { return b.typeName }
func (b *base) CanDefine() bool    { return b.canDefine }
func (b *base) Digest() Digest     { return b.digest }
func (b *base) operands() []Node   { return b.children }
func (b *base) childNodes() []Node { return b.children }
func (b *base) Children() []Node {
	out := make([]Node, len(b.children))
	copy(out, b.children)
	return out
}

// signature caches the printable form computed by f.
func (b *base) signature(f func() string) string {
	b.sigOnce.Do(func() { b.sig = f() })
	return b.sig
}

// allCanDefine reports whether every node in ns can be defined.
func allCanDefine(ns []Node) bool {
	for _, n := range ns {
		if !n.CanDefine() {
			return false
		}
	}
	return true
}

// CodeContext supplies the environment nodes render in.
type CodeContext interface {
	// Render returns the code to use for n at a use site: the name of
	// an existing column, a freshly defined column, or inline code.
	Render(n Node) (string, error)

	// ColumnName returns the column holding n, or "" when n has not been
	// defined.
	ColumnName(n Node) string

	// ShouldDefine reports whether n is promoted to a column the first
	// time it is rendered.
	ShouldDefine(n Node) bool

	// Symbol declares a global symbol from its definition and returns
	// the name to refer to it by.
	Symbol(definition, nameHint string) (string, error)
}

type noRedir struct{}

// NoRedir renders every node inline and never defines columns.
var NoRedir CodeContext = noRedir{}

func (noRedir) Render(n Node) (string, error) { return n.Code(NoRedir) }
func (noRedir) ColumnName(Node) string        { return "" }
func (noRedir) ShouldDefine(Node) bool        { return false }
func (noRedir) Symbol(_, nameHint string) (string, error) {
	return "", &Error{Code: ErrCodeUnresolvedDependency, Message: fmt.Sprintf("symbol %q needs a backend symbol table", nameHint)}
}

// Render is a convenience for n.Code(ctx) through ctx.Render.
func Render(ctx CodeContext, n Node) (string, error) {
	if ctx == nil {
		ctx = NoRedir
	}
	return ctx.Render(n)
}

func renderAll(ctx CodeContext, ns []Node) ([]string, error) {
	out := make([]string, len(ns))
	for i, n := range ns {
		s, err := ctx.Render(n)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
