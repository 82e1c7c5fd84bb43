package op

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// MathOp applies an arithmetic, comparison, logical or std math function.
type MathOp struct {
	base
	fn string
}

type mathDef struct {
	minArgs int
	maxArgs int // -1 for variadic
	// result computes the result type; nil keeps the type of the first
	// operand.
	result func(types []string) string
	format func(args []string) string
}

func fixedType(t string) func([]string) string {
	return func([]string) string { return t }
}

func ensureFloat(types []string) string {
	if IsFloatType(types[0]) {
		return types[0]
	}
	if !IsIntType(types[0]) && !IsBoolType(types[0]) {
		slog.Warn("unknown numeric type, promoting to double", "type", types[0])
	}
	return TypeDouble
}

func minmaxType(types []string) string {
	a, b := types[0], types[1]
	switch {
	case a == b:
		return a
	case IsFloatType(a) || IsFloatType(b):
		return promote(a, b)
	case IsIntType(a) && IsIntType(b):
		return promote(a, b)
	}
	return a
}

func joined(sep string) func([]string) string {
	return func(args []string) string { return "( " + strings.Join(args, sep) + " )" }
}

func pattern(f string) func([]string) string {
	return func(args []string) string {
		vals := make([]any, len(args))
		for i, a := range args {
			vals[i] = a
		}
		return fmt.Sprintf(f, vals...)
	}
}

var mathDefs = map[string]mathDef{
	"add":      {2, -1, promote2, joined(" + ")},
	"multiply": {2, -1, promote2, joined(" * ")},
	"subtract": {2, 2, promote2, pattern("( %s - %s )")},
	"divide":   {2, 2, nil, pattern("( %s / %s )")},
	"floatdiv": {2, 2, fixedType(TypeDouble), pattern("( 1.*%s / %s )")},
	"mod":      {2, 2, nil, pattern("( %s %% %s )")},
	"neg":      {1, 1, nil, pattern("( -%s )")},

	"lt":  {2, 2, fixedType(TypeBool), pattern("( %s <  %s )")},
	"le":  {2, 2, fixedType(TypeBool), pattern("( %s <= %s )")},
	"eq":  {2, 2, fixedType(TypeBool), pattern("( %s == %s )")},
	"ne":  {2, 2, fixedType(TypeBool), pattern("( %s != %s )")},
	"gt":  {2, 2, fixedType(TypeBool), pattern("( %s >  %s )")},
	"ge":  {2, 2, fixedType(TypeBool), pattern("( %s >= %s )")},
	"and": {2, -1, fixedType(TypeBool), joined(" && ")},
	"or":  {2, -1, fixedType(TypeBool), joined(" || ")},
	"not": {1, 1, fixedType(TypeBool), pattern("( ! %s )")},

	"band":   {2, -1, promote2, joined(" & ")},
	"bor":    {2, -1, promote2, joined(" | ")},
	"bxor":   {2, -1, promote2, joined(" ^ ")},
	"bnot":   {1, 1, nil, pattern("( ~ %s )")},
	"lshift": {2, 2, nil, pattern("( %s<<%s )")},
	"rshift": {2, 2, nil, pattern("( %s>>%s )")},

	"abs":   {1, 1, nil, pattern("std::abs( %s )")},
	"sqrt":  {1, 1, ensureFloat, pattern("std::sqrt( %s )")},
	"pow":   {2, 2, ensureFloat, pattern("std::pow( %s, %s )")},
	"exp":   {1, 1, ensureFloat, pattern("std::exp( %s )")},
	"log":   {1, 1, ensureFloat, pattern("std::log( %s )")},
	"log10": {1, 1, ensureFloat, pattern("std::log10( %s )")},
	"sin":   {1, 1, ensureFloat, pattern("std::sin( %s )")},
	"cos":   {1, 1, ensureFloat, pattern("std::cos( %s )")},
	"tan":   {1, 1, ensureFloat, pattern("std::tan( %s )")},
	"asin":  {1, 1, ensureFloat, pattern("std::asin( %s )")},
	"acos":  {1, 1, ensureFloat, pattern("std::acos( %s )")},
	"atan":  {1, 1, ensureFloat, pattern("std::atan( %s )")},
	"max":   {2, 2, minmaxType, pattern("std::max( %s, %s )")},
	"min":   {2, 2, minmaxType, pattern("std::min( %s, %s )")},

	// typed by Switch
	"switch": {3, 3, nil, pattern("( ( %s ) ? ( %s ) : ( %s ) )")},
}

func promote2(types []string) string { return promote(types...) }

// MathFunctions returns the supported function names, sorted.
func MathFunctions() []string {
	out := make([]string, 0, len(mathDefs))
	for k := range mathDefs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Math applies fn to args, inferring the result type.
func Math(fn string, args ...Node) (*MathOp, error) {
	return MathWithType(fn, "", args...)
}

// MathWithType applies fn to args with an explicit result type. An empty
// outType infers it.
func MathWithType(fn, outType string, args ...Node) (*MathOp, error) {
	def, ok := mathDefs[fn]
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown math function %q", fn)}
	}
	if len(args) < def.minArgs || (def.maxArgs >= 0 && len(args) > def.maxArgs) {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s: got %d operands", fn, len(args))}
	}
	for i, a := range args {
		if a == nil {
			return nil, &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s: operand %d is nil", fn, i)}
		}
	}
	if fn == "switch" {
		n, err := Switch(args[0], args[1], args[2])
		if err != nil || outType == "" || outType == n.Type() {
			return n, err
		}
		return newMath(fn, outType, n.children), nil
	}
	if outType == "" {
		types := make([]string, len(args))
		for i, a := range args {
			types[i] = a.Type()
		}
		if def.result != nil {
			outType = def.result(types)
		} else {
			outType = types[0]
		}
	}
	if outType == "" {
		return nil, &Error{Code: ErrCodeTypeInference, Message: fmt.Sprintf("no type could be inferred for %s", fn)}
	}
	return newMath(fn, outType, args), nil
}

func newMath(fn, outType string, args []Node) *MathOp {
	n := &MathOp{base: newBase(KindMath, outType, args, allCanDefine(args)), fn: fn}
	n.digest = newDigester(KindMath, outType).str(fn).nodes(args).sum()
	return n
}

// mustMath is for the fixed-arity helpers below, whose function names and
// operand counts are known to be valid.
func mustMath(fn string, args ...Node) *MathOp {
	n, err := Math(fn, args...)
	if err != nil {
		panic(err)
	}
	return n
}

// Fn returns the function name.
func (n *MathOp) Fn() string { return n.fn }

func (n *MathOp) String() string {
	return n.signature(func() string {
		args := make([]string, len(n.children))
		for i, c := range n.children {
			args[i] = c.String()
		}
		return fmt.Sprintf("Math(%s, %s, outType=%s)", n.fn, strings.Join(args, ", "), n.typeName)
	})
}

func (n *MathOp) Code(ctx CodeContext) (string, error) {
	args, err := renderAll(ctx, n.children)
	if err != nil {
		return "", err
	}
	return mathDefs[n.fn].format(args), nil
}

func (n *MathOp) rebuild(ch []Node) Node { return newMath(n.fn, n.typeName, ch) }

func Add(args ...Node) *MathOp      { return mustMath("add", args...) }
func Multiply(args ...Node) *MathOp { return mustMath("multiply", args...) }
func Subtract(a, b Node) *MathOp    { return mustMath("subtract", a, b) }
func Divide(a, b Node) *MathOp      { return mustMath("divide", a, b) }
func Neg(a Node) *MathOp            { return mustMath("neg", a) }
func Lt(a, b Node) *MathOp          { return mustMath("lt", a, b) }
func Le(a, b Node) *MathOp          { return mustMath("le", a, b) }
func Eq(a, b Node) *MathOp          { return mustMath("eq", a, b) }
func Ne(a, b Node) *MathOp          { return mustMath("ne", a, b) }
func Gt(a, b Node) *MathOp          { return mustMath("gt", a, b) }
func Ge(a, b Node) *MathOp          { return mustMath("ge", a, b) }
func And(args ...Node) *MathOp      { return mustMath("and", args...) }
func Or(args ...Node) *MathOp       { return mustMath("or", args...) }
func Not(a Node) *MathOp            { return mustMath("not", a) }
func Abs(a Node) *MathOp            { return mustMath("abs", a) }
func Sqrt(a Node) *MathOp           { return mustMath("sqrt", a) }
func Pow(a, b Node) *MathOp         { return mustMath("pow", a, b) }
func Max(a, b Node) *MathOp         { return mustMath("max", a, b) }
func Min(a, b Node) *MathOp         { return mustMath("min", a, b) }

// Switch returns test ? a : b. Numeric branches of different types are
// cast to the wider type. A boolean and a numeric branch are accepted
// with a warning; other differing types are a mismatch.
func Switch(test, a, b Node) (*MathOp, error) {
	ta, tb := a.Type(), b.Type()
	if ta == tb {
		return newMath("switch", ta, []Node{test, a, b}), nil
	}
	switch {
	case IsNumberType(ta) && IsNumberType(tb):
		wide := promote(ta, tb)
		if ta != wide {
			a = StaticCast(wide, a)
		}
		if tb != wide {
			b = StaticCast(wide, b)
		}
		return newMath("switch", wide, []Node{test, a, b}), nil
	case IsBasicType(ta) && IsBasicType(tb):
		slog.Warn("switch between boolean and numeric branches", "true_type", ta, "false_type", tb)
		out := ta
		if IsBoolType(ta) {
			out = tb
		}
		return newMath("switch", out, []Node{test, a, b}), nil
	}
	return nil, newError(ErrCodeTypeMismatch, nil, "switch branches have unrelated types %s and %s", ta, tb)
}
