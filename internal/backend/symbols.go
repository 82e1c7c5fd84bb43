package backend

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/onepass/internal/op"
)

// NamePlaceholder marks where the symbol name goes in a declaration.
const NamePlaceholder = "<<name>>"

// SymbolTable assigns names to global declarations. Equal declaration
// text always gets the same name, so a table can be shared by backends
// (and engines) that should reuse each other's helpers.
//
// Thread-safety: SymbolTable is append-only and safe for concurrent use
// via internal mutex.
type SymbolTable struct {
	mu     sync.Mutex
	byDecl map[string]string
	used   map[string]bool
	nFun   int
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byDecl: make(map[string]string), used: make(map[string]bool)}
}

// Name returns the name for decl, a declaration containing
// NamePlaceholder. A new declaration is named nameHint when that is
// still free, and myFun<N> otherwise.
func (t *SymbolTable) Name(decl, nameHint string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if name, ok := t.byDecl[decl]; ok {
		return name
	}
	name := nameHint
	if name == "" || t.used[name] {
		for {
			name = fmt.Sprintf("myFun%d", t.nFun)
			t.nFun++
			if !t.used[name] {
				break
			}
		}
	}
	t.byDecl[decl] = name
	t.used[name] = true
	return name
}

// Len returns the number of declarations.
func (t *SymbolTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byDecl)
}

// functionDecl wraps an expression in a named function declaration.
func functionDecl(resultType string, params []string, body string) string {
	return fmt.Sprintf("%s %s(%s)\n{\n  return %s;\n};\n", resultType, NamePlaceholder, strings.Join(params, ", "), body)
}

var identRe = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*`)

// normaliseArgs renames the captured names in code to myArg0, myArg1, ...
// in capture order, and returns the matching parameter declarations.
// Only whole identifiers are renamed, never members (a.pt, a->pt) or
// qualified names (ns::pt).
func normaliseArgs(code string, caps []op.Capture) (string, []string) {
	rename := make(map[string]string, len(caps))
	params := make([]string, len(caps))
	for i, c := range caps {
		arg := fmt.Sprintf("myArg%d", i)
		rename[c.Name] = arg
		params[i] = strings.TrimSuffix(c.Decl, c.Name) + arg
	}
	var b strings.Builder
	last := 0
	for _, loc := range identRe.FindAllStringIndex(code, -1) {
		arg, ok := rename[code[loc[0]:loc[1]]]
		if !ok || qualified(code[:loc[0]]) {
			continue
		}
		b.WriteString(code[last:loc[0]])
		b.WriteString(arg)
		last = loc[1]
	}
	b.WriteString(code[last:])
	return b.String(), params
}

func qualified(before string) bool {
	return strings.HasSuffix(before, ".") || strings.HasSuffix(before, "->") || strings.HasSuffix(before, "::")
}
