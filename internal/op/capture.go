package op

import (
	"sort"
)

// Capture is one entry of a range lambda's capture list.
type Capture struct {
	// Token is the capture list entry, e.g. "pt" or "&Jet_pt".
	Token string

	// Decl declares the same value as a function parameter, e.g.
	// "const ROOT::VecOps::RVec<float>& Jet_pt".
	Decl string

	// Name is the identifier the body refers to.
	Name string
}

// Captures returns the values a lambda rendering n has to capture: the
// input columns, defined columns and enclosing locals n depends on (for a
// range operation, those of its range, start value and body). Dependencies
// that ctx wants defined are defined first. The result is sorted by
// declaration and contains each name once.
func Captures(n Node, ctx CodeContext) ([]Capture, error) {
	defined := func(x Node) bool { return ctx.ColumnName(x) != "" }
	for _, dep := range Deps(n, DepsOptions{Stop: defined, Select: ctx.ShouldDefine}) {
		if _, err := ctx.Render(dep); err != nil {
			return nil, err
		}
	}
	deps := Deps(n, DepsOptions{
		Stop: defined,
		Select: func(x Node) bool {
			switch x.Kind() {
			case KindColumn, KindArrayColumn, KindLocal:
				return true
			}
			return ctx.ShouldDefine(x) || defined(x)
		},
	})
	seen := make(map[string]bool)
	var caps []Capture
	add := func(c Capture) {
		if !seen[c.Token] {
			seen[c.Token] = true
			caps = append(caps, c)
		}
	}
	for _, d := range deps {
		c, ok := captureOf(d, ctx)
		if !ok {
			if l, isLocal := d.(*Local); isLocal && l.index < 0 {
				return nil, newError(ErrCodeUnresolvedDependency, l, "unbound placeholder")
			}
			return nil, newError(ErrCodeUnresolvedDependency, d, "dependency of %s was not defined", n.Kind())
		}
		add(c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].Decl < caps[j].Decl })
	return caps, nil
}

// CaptureOf returns the capture for n itself when n can be passed to a
// lambda directly: an input column, an array column or a defined column.
func CaptureOf(n Node, ctx CodeContext) (Capture, bool) {
	if _, isLocal := n.(*Local); isLocal {
		return Capture{}, false
	}
	return captureOf(n, ctx)
}

func captureOf(d Node, ctx CodeContext) (Capture, bool) {
	if nm := ctx.ColumnName(d); nm != "" {
		return Capture{Token: "&" + nm, Decl: "const " + d.Type() + "& " + nm, Name: nm}, true
	}
	switch x := d.(type) {
	case *ArrayColumnRef:
		return Capture{Token: "&" + x.name, Decl: "const " + x.typeName + "& " + x.name, Name: x.name}, true
	case *ColumnRef:
		if IsBasicType(x.typeName) {
			return Capture{Token: x.name, Decl: x.typeName + " " + x.name, Name: x.name}, true
		}
		return Capture{Token: "&" + x.name, Decl: "const " + x.typeName + "& " + x.name, Name: x.name}, true
	case *Local:
		if x.index < 0 {
			return Capture{}, false
		}
		return Capture{Token: x.Name(), Decl: localDecl(x), Name: x.Name()}, true
	}
	return Capture{}, false
}
