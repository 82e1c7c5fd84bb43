package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

//go:embed skeleton.cc.tmpl
var skeleton string

const insertMarker = "// ONEPASS_INSERT"

// ProgramFile is the file name Script.Run writes the program to.
const ProgramFile = "onepass_main.cc"

// Script is an Engine that emits a standalone C++ program instead of
// running anything while the graph is built. Run writes the program and
// hands it to an external executor command that compiles and runs it.
//
// Thread-safety: Script is not safe for concurrent use.
type Script struct {
	columns  []string
	helpers  []string
	lines    []string
	nDF      int
	results  []*scriptResult
	executor []string
	workDir  string
	tree     string
	inputs   []string
	threads  int
	output   string
	ran      bool
}

type scriptNode string

func (n scriptNode) Name() string { return string(n) }

type scriptResult struct {
	name string
	done bool
}

func (r *scriptResult) Name() string { return r.name }
func (r *scriptResult) Done() bool   { return r.done }

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithExecutor sets the command Run invokes. The program path and the run
// arguments are appended to it.
func WithExecutor(cmd ...string) ScriptOption {
	return func(s *Script) { s.executor = cmd }
}

// WithWorkDir sets the directory the program is written to. Default: a
// fresh temporary directory per Run.
func WithWorkDir(dir string) ScriptOption {
	return func(s *Script) { s.workDir = dir }
}

// WithInputs sets the tree name and the input files passed to the program.
func WithInputs(tree string, files ...string) ScriptOption {
	return func(s *Script) {
		s.tree = tree
		s.inputs = files
	}
}

// WithThreads sets the number of threads the program runs with.
func WithThreads(n int) ScriptOption {
	return func(s *Script) { s.threads = n }
}

// WithOutput sets the results file passed to the program.
func WithOutput(path string) ScriptOption {
	return func(s *Script) { s.output = path }
}

// NewScript creates a Script over input columns.
func NewScript(columns []string, opts ...ScriptOption) *Script {
	s := &Script{
		columns: append([]string(nil), columns...),
		lines:   []string{fmt.Sprintf("auto df0 = df.Define(%q, []() { return 0; }, {});", ZeroColumn)},
		tree:    "Events",
		threads: 1,
		output:  "results.root",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Script) Root() Node { return scriptNode("df0") }

func (s *Script) Columns() []string { return append([]string(nil), s.columns...) }

func (s *Script) next() scriptNode {
	s.nDF++
	return scriptNode(fmt.Sprintf("df%d", s.nDF))
}

func (s *Script) Filter(n Node, fn Function) (Node, error) {
	if _, ok := n.(scriptNode); !ok {
		return nil, &Error{Code: ErrCodeUnknownNode, Message: "filter on foreign node", Node: n.Name()}
	}
	out := s.next()
	s.lines = append(s.lines, fmt.Sprintf("auto %s = %s.Filter(%s, %s);", out, n.Name(), fn.Callable, quotedList(fn.Columns)))
	return out, nil
}

func (s *Script) Define(n Node, name string, fn Function) (Node, error) {
	if _, ok := n.(scriptNode); !ok {
		return nil, &Error{Code: ErrCodeUnknownNode, Message: "define on foreign node", Node: n.Name()}
	}
	out := s.next()
	s.lines = append(s.lines, fmt.Sprintf("auto %s = %s.Define(%q, %s, %s);", out, n.Name(), name, fn.Callable, quotedList(fn.Columns)))
	return out, nil
}

func (s *Script) Declare(code string) error {
	s.helpers = append(s.helpers, strings.Split(strings.TrimRight(code, "\n"), "\n")...)
	return nil
}

func (s *Script) Histogram(n Node, model HistoModel, columns []Column) (Result, error) {
	if _, ok := n.(scriptNode); !ok {
		return nil, &Error{Code: ErrCodeUnknownNode, Message: "histogram on foreign node", Node: n.Name()}
	}
	types := make([]string, len(columns))
	names := make([]string, len(columns))
	for i, c := range columns {
		types[i] = c.Type
		names[i] = strconv.Quote(c.Name)
	}
	s.lines = append(s.lines, fmt.Sprintf("results.add(%s.Histo%dD<%s>(%s, %s));",
		n.Name(), model.Dim(), strings.Join(types, ", "), modelCode(model), strings.Join(names, ", ")))
	r := &scriptResult{name: model.Name}
	s.results = append(s.results, r)
	return r, nil
}

func (s *Script) Snapshot(n Node, spec SnapshotSpec) (Result, error) {
	if _, ok := n.(scriptNode); !ok {
		return nil, &Error{Code: ErrCodeUnknownNode, Message: "snapshot on foreign node", Node: n.Name()}
	}
	df := n.Name()
	if spec.MaxRows > 0 {
		df = fmt.Sprintf("%s.Range(%d)", df, spec.MaxRows)
	}
	file := spec.File
	if file == "" {
		file = spec.Name + ".root"
	}
	s.lines = append(s.lines, fmt.Sprintf("results.add(%s.Snapshot(%q, %q, %s, snapshotOptions));",
		df, spec.TreeName, file, quotedList(spec.Columns)))
	r := &scriptResult{name: spec.Name}
	s.results = append(s.results, r)
	return r, nil
}

// Program returns the C++ source for everything booked so far.
func (s *Script) Program() string {
	var b strings.Builder
	for _, ln := range strings.Split(skeleton, "\n") {
		trimmed := strings.TrimSpace(ln)
		if !strings.HasPrefix(trimmed, insertMarker) {
			b.WriteString(ln)
			b.WriteByte('\n')
			continue
		}
		indent := ln[:len(ln)-len(strings.TrimLeft(ln, " "))]
		var insert []string
		switch strings.TrimSpace(strings.TrimPrefix(trimmed, insertMarker)) {
		case "helpers":
			insert = s.helpers
		case "results":
			insert = s.lines
		}
		for _, il := range insert {
			if il == "" {
				b.WriteByte('\n')
				continue
			}
			b.WriteString(indent)
			b.WriteString(il)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Args returns the arguments the program is run with.
func (s *Script) Args() []string {
	args := []string{
		"--tree=" + s.tree,
		"--threads=" + strconv.Itoa(s.threads),
		"--output=" + s.output,
	}
	return append(args, s.inputs...)
}

// Run writes the program and invokes the executor once.
func (s *Script) Run(ctx context.Context, results []Result) error {
	if s.ran {
		return &Error{Code: ErrCodeAlreadyRun, Message: "the program was already run"}
	}
	if len(s.executor) == 0 {
		return &Error{Code: ErrCodeNoExecutor, Message: "no executor configured"}
	}
	s.ran = true

	dir := s.workDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "onepass-")
		if err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		dir = tmp
	}
	prog := filepath.Join(dir, ProgramFile)
	if err := os.WriteFile(prog, []byte(s.Program()), 0o644); err != nil {
		return fmt.Errorf("write program: %w", err)
	}

	args := append(append([]string(nil), s.executor[1:]...), prog)
	args = append(args, s.Args()...)
	cmd := exec.CommandContext(ctx, s.executor[0], args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Info("running program", "executor", s.executor[0], "program", prog, "results", len(results))
	if err := cmd.Run(); err != nil {
		return &Error{Code: ErrCodeExecution, Message: strings.TrimSpace(lastLines(stderr.String(), 20)), Err: err}
	}
	for _, r := range results {
		if sr, ok := r.(*scriptResult); ok {
			sr.done = true
		}
	}
	return nil
}

func modelCode(m HistoModel) string {
	axes := m.Axes
	if m.Variable() {
		axes = make([]Axis, len(m.Axes))
		for i, a := range m.Axes {
			axes[i] = a.withEdges()
		}
	}
	args := make([]string, len(axes))
	for i, a := range axes {
		if len(a.Edges) > 0 {
			edges := make([]string, len(a.Edges))
			for j, e := range a.Edges {
				edges[j] = strconv.FormatFloat(e, 'g', -1, 64)
			}
			args[i] = fmt.Sprintf("%d, { %s }", len(a.Edges)-1, strings.Join(edges, ", "))
		} else {
			args[i] = fmt.Sprintf("%d, %s, %s", a.N, strconv.FormatFloat(a.Min, 'g', -1, 64), strconv.FormatFloat(a.Max, 'g', -1, 64))
		}
	}
	return fmt.Sprintf("ROOT::RDF::TH%dDModel(%q, %q, %s)", m.Dim(), m.Name, m.Title, strings.Join(args, ", "))
}

// withEdges converts an equidistant axis to explicit edges; the N-D
// models only accept one kind of axis.
func (a Axis) withEdges() Axis {
	if len(a.Edges) > 0 || a.N <= 0 {
		return a
	}
	edges := make([]float64, a.N+1)
	w := (a.Max - a.Min) / float64(a.N)
	for i := range edges {
		edges[i] = a.Min + float64(i)*w
	}
	edges[a.N] = a.Max
	return Axis{N: a.N, Min: a.Min, Max: a.Max, Edges: edges}
}

func quotedList(cols []string) string {
	if len(cols) == 0 {
		return "{}"
	}
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = strconv.Quote(c)
	}
	return "{ " + strings.Join(q, ", ") + " }"
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
