package op

import (
	"fmt"
	"strings"
)

// Item indexes a container.
type Item struct {
	base
}

// GetItem returns container[index]. The element type is taken from the
// container's vector type.
func GetItem(container, index Node) (*Item, error) {
	elem := ElementType(container.Type())
	if elem == "" {
		return nil, newError(ErrCodeTypeInference, container, "cannot index a value of type %s", container.Type())
	}
	return GetItemOf(container, elem, index), nil
}

// GetItemOf returns container[index] with an explicit element type.
func GetItemOf(container Node, valueType string, index Node) *Item {
	ch := []Node{container, index}
	n := &Item{base: newBase(KindGetItem, valueType, ch, allCanDefine(ch))}
	n.digest = newDigester(KindGetItem, valueType).nodes(ch).sum()
	return n
}

// Container returns the indexed expression.
func (n *Item) Container() Node { return n.children[0] }

// Index returns the index expression.
func (n *Item) Index() Node { return n.children[1] }

func (n *Item) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("GetItem(%s, %s, %s)", n.children[0], n.typeName, n.children[1])
	})
}

func (n *Item) Code(ctx CodeContext) (string, error) {
	c, err := ctx.Render(n.children[0])
	if err != nil {
		return "", err
	}
	i, err := ctx.Render(n.children[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%s]", c, i), nil
}

func (n *Item) rebuild(ch []Node) Node { return GetItemOf(ch[0], n.typeName, ch[1]) }

// ConstructOp builds a value with brace initialisation, T{args...}.
type ConstructOp struct {
	base
}

// Construct returns typeName{args...}.
func Construct(typeName string, args ...Node) *ConstructOp {
	n := &ConstructOp{base: newBase(KindConstruct, typeName, args, allCanDefine(args))}
	n.digest = newDigester(KindConstruct, typeName).nodes(args).sum()
	return n
}

func (n *ConstructOp) String() string {
	return n.signature(func() string { return fmt.Sprintf("Construct(%s, %s)", n.typeName, joinSigs(n.children)) })
}

func (n *ConstructOp) Code(ctx CodeContext) (string, error) {
	args, err := renderAll(ctx, n.children)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s{%s}", n.typeName, strings.Join(args, ", ")), nil
}

func (n *ConstructOp) rebuild(ch []Node) Node { return Construct(n.typeName, ch...) }

// InitListOp is a braced initializer list, {a, b, ...}.
type InitListOp struct {
	base
}

// InitList returns an initializer list whose value is used as typeName.
func InitList(typeName string, elems ...Node) *InitListOp {
	n := &InitListOp{base: newBase(KindInitList, typeName, elems, allCanDefine(elems))}
	n.digest = newDigester(KindInitList, typeName).nodes(elems).sum()
	return n
}

func (n *InitListOp) String() string {
	return n.signature(func() string { return fmt.Sprintf("InitList(%s, %s)", n.typeName, joinSigs(n.children)) })
}

func (n *InitListOp) Code(ctx CodeContext) (string, error) {
	args, err := renderAll(ctx, n.children)
	if err != nil {
		return "", err
	}
	return "{" + strings.Join(args, ", ") + "}", nil
}

func (n *InitListOp) rebuild(ch []Node) Node { return InitList(n.typeName, ch...) }

// CallOption configures Call, CallMember and DataMember.
type CallOption func(*callConfig)

type callConfig struct {
	returnType string
	byPointer  bool
}

// WithReturnType sets the result type of a call that is not in the
// builtin table.
func WithReturnType(t string) CallOption {
	return func(c *callConfig) { c.returnType = t }
}

// ByPointer makes member access use -> instead of '.'.
func ByPointer() CallOption {
	return func(c *callConfig) { c.byPointer = true }
}

// builtinReturn maps well known free functions to their result type.
var builtinReturn = map[string]func(args []Node) string{
	"std::abs":                       func(a []Node) string { return a[0].Type() },
	"std::sqrt":                      floatOf,
	"std::exp":                       floatOf,
	"std::log":                       floatOf,
	"std::pow":                       floatOf,
	"std::hypot":                     floatOf,
	"std::atan2":                     floatOf,
	"std::sin":                       floatOf,
	"std::cos":                       floatOf,
	"std::tanh":                      floatOf,
	"std::size":                      fixedOf(TypeSize),
	"ROOT::VecOps::DeltaPhi":         fixedOf(TypeDouble),
	"ROOT::VecOps::DeltaR":           fixedOf(TypeDouble),
	"ROOT::VecOps::InvariantMass":    fixedOf(TypeDouble),
	"rdfhelpers::deltaR":             fixedOf(TypeDouble),
	"rdfhelpers::deltaPhi":           fixedOf(TypeDouble),
	"ROOT::Math::VectorUtil::DeltaR": fixedOf(TypeDouble),
}

func floatOf(args []Node) string {
	if len(args) == 0 {
		return TypeDouble
	}
	return ensureFloat([]string{args[0].Type()})
}

func fixedOf(t string) func([]Node) string {
	return func([]Node) string { return t }
}

// CallOp calls a free function.
type CallOp struct {
	base
	name string
}

// Call returns name(args...). The result type comes from the builtin
// table, from static_cast<T>, or from WithReturnType.
func Call(name string, args []Node, opts ...CallOption) (*CallOp, error) {
	cfg := callConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	rt := cfg.returnType
	if rt == "" {
		if f, ok := builtinReturn[name]; ok && len(args) > 0 {
			rt = f(args)
		} else if strings.HasPrefix(name, "static_cast<") && strings.HasSuffix(name, ">") {
			rt = strings.TrimSpace(name[len("static_cast<") : len(name)-1])
		}
	}
	if rt == "" {
		return nil, &Error{Code: ErrCodeTypeInference, Message: fmt.Sprintf("unknown return type of %s, use WithReturnType", name)}
	}
	return newCall(name, rt, args), nil
}

func newCall(name, rt string, args []Node) *CallOp {
	n := &CallOp{base: newBase(KindCall, rt, args, allCanDefine(args)), name: name}
	n.digest = newDigester(KindCall, rt).str(name).nodes(args).sum()
	return n
}

// StaticCast converts v to typeName.
func StaticCast(typeName string, v Node) *CallOp {
	return newCall(fmt.Sprintf("static_cast<%s>", typeName), typeName, []Node{v})
}

// Name returns the function name.
func (n *CallOp) Name() string { return n.name }

func (n *CallOp) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("Call(%s, %s, %s)", n.name, joinSigs(n.children), n.typeName)
	})
}

func (n *CallOp) Code(ctx CodeContext) (string, error) {
	args, err := renderAll(ctx, n.children)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", n.name, strings.Join(args, ", ")), nil
}

func (n *CallOp) rebuild(ch []Node) Node { return newCall(n.name, n.typeName, ch) }

// MemberCall calls a method on a value.
type MemberCall struct {
	base
	name      string
	byPointer bool
}

// CallMember returns this.name(args...). The return type must be given
// with WithReturnType.
func CallMember(this Node, name string, args []Node, opts ...CallOption) (*MemberCall, error) {
	cfg := callConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.returnType == "" {
		return nil, newError(ErrCodeTypeInference, this, "unknown return type of member %s, use WithReturnType", name)
	}
	return newMemberCall(this, name, cfg.returnType, cfg.byPointer, args), nil
}

func newMemberCall(this Node, name, rt string, byPointer bool, args []Node) *MemberCall {
	ch := append([]Node{this}, args...)
	n := &MemberCall{base: newBase(KindCallMember, rt, ch, allCanDefine(ch)), name: name, byPointer: byPointer}
	n.digest = newDigester(KindCallMember, rt).str(name).flag(byPointer).nodes(ch).sum()
	return n
}

func (n *MemberCall) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("CallMember(%s, %s, %s, %s)", n.children[0], n.name, joinSigs(n.children[1:]), n.typeName)
	})
}

func (n *MemberCall) Code(ctx CodeContext) (string, error) {
	parts, err := renderAll(ctx, n.children)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%s(%s)", parts[0], accessor(n.byPointer), n.name, strings.Join(parts[1:], ", ")), nil
}

func (n *MemberCall) rebuild(ch []Node) Node {
	return newMemberCall(ch[0], n.name, n.typeName, n.byPointer, ch[1:])
}

// MemberData reads a data member.
type MemberData struct {
	base
	name      string
	byPointer bool
}

// DataMember returns this.name as a value of type typeName.
func DataMember(this Node, name, typeName string, opts ...CallOption) *MemberData {
	cfg := callConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	n := &MemberData{base: newBase(KindDataMember, typeName, []Node{this}, this.CanDefine()), name: name, byPointer: cfg.byPointer}
	n.digest = newDigester(KindDataMember, typeName).str(name).flag(cfg.byPointer).nodes(n.children).sum()
	return n
}

func (n *MemberData) String() string {
	return n.signature(func() string {
		return fmt.Sprintf("DataMember(%s, %s, %s)", n.children[0], n.name, n.typeName)
	})
}

func (n *MemberData) Code(ctx CodeContext) (string, error) {
	this, err := ctx.Render(n.children[0])
	if err != nil {
		return "", err
	}
	return this + accessor(n.byPointer) + n.name, nil
}

func (n *MemberData) rebuild(ch []Node) Node {
	if n.byPointer {
		return DataMember(ch[0], n.name, n.typeName, ByPointer())
	}
	return DataMember(ch[0], n.name, n.typeName)
}

func accessor(byPointer bool) string {
	if byPointer {
		return "->"
	}
	return "."
}

func joinSigs(ns []Node) string {
	s := make([]string, len(ns))
	for i, n := range ns {
		s[i] = n.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}
