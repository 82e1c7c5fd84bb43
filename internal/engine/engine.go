package engine

import (
	"context"
	"fmt"
	"strings"
)

// ZeroColumn is an int column that is always 0. Every engine defines it on
// the root node; cut-flow counters fill it.
const ZeroColumn = "_zero_for_stats"

// Node is a handle to a dataframe node.
type Node interface {
	// Name identifies the node within its engine, e.g. "df3".
	Name() string
}

// Result is a handle to a booked result (histogram or snapshot).
type Result interface {
	// Name is the output name the result was booked under.
	Name() string

	// Done reports whether the event loop has filled the result.
	Done() bool
}

// Function is code for Filter and Define.
type Function struct {
	// Code is the expression in terms of column names, for JIT engines.
	Code string

	// Callable is a lambda or the name of a declared helper function
	// that takes the Columns as arguments, in order.
	Callable string

	// Columns are the columns bound to the callable's parameters.
	Columns []string

	// Type is the C++ result type.
	Type string
}

// Column is a column passed to a histogram, with its C++ type.
type Column struct {
	Name string
	Type string
}

// Axis is one histogram axis. Edges, when set, take precedence over the
// equidistant N, Min and Max.
type Axis struct {
	N     int
	Min   float64
	Max   float64
	Edges []float64
}

// HistoModel describes a booked histogram.
type HistoModel struct {
	Name  string
	Title string
	Axes  []Axis
}

// Dim returns the number of axes.
func (m HistoModel) Dim() int { return len(m.Axes) }

// Variable reports whether any axis uses explicit edges.
func (m HistoModel) Variable() bool {
	for _, a := range m.Axes {
		if len(a.Edges) > 0 {
			return true
		}
	}
	return false
}

// SnapshotSpec describes a booked skim.
type SnapshotSpec struct {
	// Name is the output name.
	Name string

	// TreeName is the name of the output table.
	TreeName string

	// File is the output file; engines may default it from Name.
	File string

	// Columns are written in order.
	Columns []string

	// MaxRows caps the number of rows written when positive.
	MaxRows int
}

// Engine is a lazy columnar dataframe.
//
// Implementations are not required to be safe for concurrent use; the
// backend drives one engine from a single goroutine.
type Engine interface {
	// Root returns the node over the full input, with ZeroColumn defined.
	Root() Node

	// Filter returns a node keeping the rows of n where fn is true.
	Filter(n Node, fn Function) (Node, error)

	// Define returns a node adding the column name computed by fn.
	Define(n Node, name string, fn Function) (Node, error)

	// Declare makes a global C++ declaration available to later code.
	Declare(code string) error

	// Histogram books a histogram of columns at n. The last column is
	// the weight when len(columns) exceeds the model dimension.
	Histogram(n Node, model HistoModel, columns []Column) (Result, error)

	// Snapshot books a skim of n.
	Snapshot(n Node, spec SnapshotSpec) (Result, error)

	// Run executes the single event loop filling results.
	Run(ctx context.Context, results []Result) error

	// Columns returns the input column names.
	Columns() []string
}

// Lambda formats a C++ lambda with an empty capture list.
func Lambda(params []string, body string) string {
	return fmt.Sprintf("[] ( %s ) { return %s; }", strings.Join(params, ", "), body)
}
