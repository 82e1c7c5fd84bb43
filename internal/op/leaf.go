package op

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// Literal is a constant value, stored as C++ code.
type Literal struct {
	base
	value string
}

// Const returns a literal of the given type. value is inserted verbatim.
func Const(typeName, value string) *Literal {
	n := &Literal{base: newBase(KindConst, typeName, nil, true), value: value}
	n.digest = newDigester(KindConst, typeName).str(value).sum()
	return n
}

// Bool returns a boolean literal.
func Bool(v bool) *Literal {
	return Const(TypeBool, strconv.FormatBool(v))
}

// Int returns an int literal.
func Int(v int64) *Literal {
	return Const(TypeInt, strconv.FormatInt(v, 10))
}

// Float returns a double literal. Infinities render as the extreme finite
// values of the type.
func Float(v float64) *Literal {
	return Const(TypeDouble, formatFloat(TypeDouble, v))
}

// Str returns a string literal.
func Str(s string) *Literal {
	return Const(TypeString, strconv.Quote(s))
}

func formatFloat(typeName string, v float64) string {
	switch {
	case math.IsInf(v, 1):
		return fmt.Sprintf("std::numeric_limits<%s>::max()", typeName)
	case math.IsInf(v, -1):
		return fmt.Sprintf("std::numeric_limits<%s>::lowest()", typeName)
	case math.IsNaN(v):
		return fmt.Sprintf("std::numeric_limits<%s>::quiet_NaN()", typeName)
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Value returns the literal code.
func (n *Literal) Value() string { return n.value }

func (n *Literal) String() string {
	return n.signature(func() string { return fmt.Sprintf("Const(%s, %s)", n.typeName, n.value) })
}

func (n *Literal) Code(CodeContext) (string, error) { return n.value, nil }

func (n *Literal) rebuild([]Node) Node { return n }

// ColumnRef reads a scalar input column.
type ColumnRef struct {
	base
	name string
}

// Column returns a read of the input column name.
func Column(typeName, name string) *ColumnRef {
	n := &ColumnRef{base: newBase(KindColumn, typeName, nil, true), name: name}
	n.digest = newDigester(KindColumn, typeName).str(name).sum()
	return n
}

// Name returns the column name.
func (n *ColumnRef) Name() string { return n.name }

func (n *ColumnRef) String() string {
	return n.signature(func() string { return fmt.Sprintf("Column(%s, %s)", n.typeName, n.name) })
}

func (n *ColumnRef) Code(CodeContext) (string, error) { return n.name, nil }

func (n *ColumnRef) rebuild([]Node) Node { return n }

// ArrayColumnRef reads a vector input column whose length is stored in
// another column.
type ArrayColumnRef struct {
	base
	name string
	elem string
}

// ArrayColumn returns a read of the vector column name. size evaluates to
// the number of elements.
func ArrayColumn(elemType, name string, size Node) *ArrayColumnRef {
	n := &ArrayColumnRef{
		base: newBase(KindArrayColumn, VecType(elemType), []Node{size}, size.CanDefine()),
		name: name,
		elem: elemType,
	}
	n.digest = newDigester(KindArrayColumn, n.typeName).str(name).nodes(n.children).sum()
	return n
}

// Name returns the column name.
func (n *ArrayColumnRef) Name() string { return n.name }

// ElemType returns the element type.
func (n *ArrayColumnRef) ElemType() string { return n.elem }

// Size returns the length expression.
func (n *ArrayColumnRef) Size() Node { return n.children[0] }

func (n *ArrayColumnRef) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("ArrayColumn(%s, %s, %s)", n.elem, n.name, n.children[0])
	})
}

func (n *ArrayColumnRef) Code(CodeContext) (string, error) { return n.name, nil }

func (n *ArrayColumnRef) rebuild(ch []Node) Node { return ArrayColumn(n.elem, n.name, ch[0]) }

// ExtVarRef refers to a variable declared outside of the dataset, for
// example by an included header.
type ExtVarRef struct {
	base
	name string
}

// ExtVar returns a reference to the external variable name.
func ExtVar(typeName, name string) *ExtVarRef {
	n := &ExtVarRef{base: newBase(KindExtVar, typeName, nil, true), name: name}
	n.digest = newDigester(KindExtVar, typeName).str(name).sum()
	return n
}

func (n *ExtVarRef) String() string {
	return n.signature(func() string { return fmt.Sprintf("ExtVar(%s, %s)", n.typeName, n.name) })
}

func (n *ExtVarRef) Code(CodeContext) (string, error) { return n.name, nil }

func (n *ExtVarRef) rebuild([]Node) Node { return n }

// SymbolRef is a global symbol declared on first use, e.g. a lookup table
// or a helper object. Equal definitions share one declaration.
type SymbolRef struct {
	base
	definition string
	nameHint   string
}

// Symbol returns a reference to a symbol declared by definition. The
// definition must contain the placeholder <<name>> where the symbol name
// goes.
func Symbol(typeName, definition, nameHint string) *SymbolRef {
	n := &SymbolRef{base: newBase(KindSymbol, typeName, nil, true), definition: definition, nameHint: nameHint}
	n.digest = newDigester(KindSymbol, typeName).str(definition).str(nameHint).sum()
	return n
}

// Definition returns the declaration template.
func (n *SymbolRef) Definition() string { return n.definition }

func (n *SymbolRef) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("Symbol(%s, %q, %s)", n.typeName, n.definition, n.nameHint)
	})
}

func (n *SymbolRef) Code(ctx CodeContext) (string, error) {
	return ctx.Symbol(n.definition, n.nameHint)
}

func (n *SymbolRef) rebuild([]Node) Node { return n }

// Local is a loop variable bound by a range operation.
type Local struct {
	base
	index       int
	provisional uint64
}

var provisionalSeq atomic.Uint64

// newLocal returns the final placeholder with the given index.
func newLocal(typeName string, index int) *Local {
	n := &Local{base: newBase(KindLocal, typeName, nil, false), index: index}
	n.digest = newDigester(KindLocal, typeName).num(int64(index)).sum()
	return n
}

// newProvisional returns a placeholder that is unique until substituted.
func newProvisional(typeName string) *Local {
	id := provisionalSeq.Add(1)
	n := &Local{base: newBase(KindLocal, typeName, nil, false), index: -1, provisional: id}
	n.digest = newDigester(KindLocal, typeName).num(-1).num(int64(id)).sum()
	return n
}

// Index returns the placeholder index, or -1 while provisional.
func (n *Local) Index() int { return n.index }

// Name returns the lambda parameter name.
func (n *Local) Name() string { return fmt.Sprintf("i%d", n.index) }

func (n *Local) String() string {
	return n.signature(func() string {
		if n.index < 0 {
			return fmt.Sprintf("Local(%s, ?%d)", n.typeName, n.provisional)
		}
		return fmt.Sprintf("Local(%s, %d)", n.typeName, n.index)
	})
}

func (n *Local) Code(CodeContext) (string, error) {
	if n.index < 0 {
		return "", newError(ErrCodeUnresolvedDependency, n, "placeholder rendered before its range operation was built")
	}
	return n.Name(), nil
}

func (n *Local) rebuild([]Node) Node { return n }
