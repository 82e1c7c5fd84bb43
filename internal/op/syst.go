package op

import (
	"fmt"
	"sort"
	"strings"
)

// SystAlt forwards to a nominal expression or, once rebound, to one of
// its named alternatives.
type SystAlt struct {
	base
	names   []string // alternative names, parallel to children[1:]
	allowed []string
	active  string
	frozen  bool
}

// SystOption configures Systematic.
type SystOption func(*systConfig)

type systConfig struct {
	allowed []string
}

// WithVariations declares the variation names the wrapper answers to. By
// default these are the names of the alternatives. A declared name without
// an alternative rebinds to the nominal expression.
func WithVariations(names ...string) SystOption {
	return func(c *systConfig) { c.allowed = names }
}

// Systematic wraps nominal with named alternatives.
func Systematic(nominal Node, alts map[string]Node, opts ...SystOption) (*SystAlt, error) {
	if nominal == nil {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "systematic: nil nominal expression"}
	}
	cfg := systConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	names := make([]string, 0, len(alts))
	for nm := range alts {
		names = append(names, nm)
	}
	sort.Strings(names)
	allowed := cfg.allowed
	if allowed == nil {
		allowed = names
	}
	allowed = sortedUnique(allowed)
	ok := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		if v == "" || v == "nominal" {
			return nil, newError(ErrCodeInvalidVariation, nominal, "variation name %q is reserved", v)
		}
		ok[v] = true
	}
	ch := make([]Node, 0, len(names)+1)
	ch = append(ch, nominal)
	for _, nm := range names {
		if !ok[nm] {
			return nil, newError(ErrCodeInvalidVariation, nominal, "alternative %q is not a declared variation", nm)
		}
		alt := alts[nm]
		if alt == nil {
			return nil, newError(ErrCodeInvalidArgument, nominal, "alternative %q is nil", nm)
		}
		if alt.Type() != nominal.Type() && !(IsNumberType(alt.Type()) && IsNumberType(nominal.Type())) {
			return nil, newError(ErrCodeTypeMismatch, nominal, "alternative %q has type %s, nominal has %s", nm, alt.Type(), nominal.Type())
		}
		ch = append(ch, alt)
	}
	return newSystAlt(ch, names, allowed, "", false), nil
}

// SystematicUpDown wraps nominal with the variations <name>up and
// <name>down.
func SystematicUpDown(name string, nominal, up, down Node) (*SystAlt, error) {
	return Systematic(nominal, map[string]Node{name + "up": up, name + "down": down})
}

func sortedUnique(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	j := 0
	for i, s := range out {
		if i == 0 || s != out[j-1] {
			out[j] = s
			j++
		}
	}
	return out[:j]
}

func newSystAlt(ch []Node, names, allowed []string, active string, frozen bool) *SystAlt {
	cur := ch[0]
	for i, nm := range names {
		if nm == active {
			cur = ch[i+1]
		}
	}
	n := &SystAlt{
		base:    newBase(KindSystAlt, cur.Type(), ch, cur.CanDefine()),
		names:   names,
		allowed: allowed,
		active:  active,
		frozen:  frozen,
	}
	d := newDigester(KindSystAlt, n.typeName).str(active).flag(frozen).num(int64(len(allowed)))
	for _, v := range allowed {
		d.str(v)
	}
	d.num(int64(len(names)))
	for _, nm := range names {
		d.str(nm)
	}
	n.digest = d.nodes(ch).sum()
	return n
}

// Nominal returns the nominal expression.
func (n *SystAlt) Nominal() Node { return n.children[0] }

// Current returns the expression the wrapper presents.
func (n *SystAlt) Current() Node {
	for i, nm := range n.names {
		if nm == n.active {
			return n.children[i+1]
		}
	}
	return n.children[0]
}

// Alternative returns the expression for variation v, if there is one.
func (n *SystAlt) Alternative(v string) (Node, bool) {
	for i, nm := range n.names {
		if nm == v {
			return n.children[i+1], true
		}
	}
	return nil, false
}

// Active returns the presented variation, "" for nominal.
func (n *SystAlt) Active() string { return n.active }

// Variations returns the variation names the wrapper can still be
// rebound to. A bound wrapper has none.
func (n *SystAlt) Variations() []string {
	if n.frozen {
		return nil
	}
	return n.allowed
}

// Rebind returns a new wrapper presenting variation v. The result is
// bound: it can not be rebound again.
func (n *SystAlt) Rebind(v string) (*SystAlt, error) {
	if n.frozen {
		return nil, newError(ErrCodeFrozenNode, n, "cannot rebind to %q", v)
	}
	found := false
	for _, a := range n.allowed {
		if a == v {
			found = true
			break
		}
	}
	if !found {
		return nil, newError(ErrCodeInvalidVariation, n, "invalid variation %q, allowed: %s", v, strings.Join(n.allowed, ", "))
	}
	active := v
	if _, ok := n.Alternative(v); !ok {
		active = ""
	}
	return newSystAlt(n.children, n.names, n.allowed, active, true), nil
}

// Freeze returns a bound wrapper presenting the nominal expression.
func (n *SystAlt) Freeze() *SystAlt {
	if n.frozen {
		return n
	}
	return newSystAlt(n.children, n.names, n.allowed, "", true)
}

func (n *SystAlt) operands() []Node { return []Node{n.Current()} }

func (n *SystAlt) String() string {
	return n.signature(func() string {
		alts := make([]string, len(n.names))
		for i, nm := range n.names {
			alts[i] = fmt.Sprintf("%s: %s", nm, n.children[i+1])
		}
		state := "open"
		if n.frozen {
			state = "bound"
		}
		return fmt.Sprintf("SystAlt(%s, {%s}, [%s], active=%q, %s)", n.children[0], strings.Join(alts, ", "), strings.Join(n.allowed, ", "), n.active, state)
	})
}

func (n *SystAlt) Code(ctx CodeContext) (string, error) { return ctx.Render(n.Current()) }

func (n *SystAlt) rebuild(ch []Node) Node {
	return newSystAlt(ch, n.names, n.allowed, n.active, n.frozen)
}

// Deferred marks an expression for definition as a column the first time
// it is used, even when it is cheap.
type Deferred struct {
	base
}

// DefineOnFirstUse wraps expr so that backends define it as a column.
func DefineOnFirstUse(expr Node) *Deferred {
	n := &Deferred{base: newBase(KindDefineOnFirstUse, expr.Type(), []Node{expr}, expr.CanDefine())}
	n.digest = newDigester(KindDefineOnFirstUse, n.typeName).nodes(n.children).sum()
	return n
}

// Wrapped returns the wrapped expression.
func (n *Deferred) Wrapped() Node { return n.children[0] }

func (n *Deferred) String() string {
	return n.signature(func() string { return fmt.Sprintf("DefineOnFirstUse(%s)", n.children[0]) })
}

func (n *Deferred) Code(ctx CodeContext) (string, error) { return ctx.Render(n.children[0]) }

func (n *Deferred) rebuild(ch []Node) Node { return DefineOnFirstUse(ch[0]) }

// Unwrap strips forwarding wrappers and returns the expression that is
// actually evaluated.
func Unwrap(n Node) Node {
	for {
		switch x := n.(type) {
		case *SystAlt:
			n = x.Current()
		case *Deferred:
			n = x.children[0]
		default:
			return n
		}
	}
}
