// Package op provides the immutable expression DAG that analysis
// descriptions are written in.
//
// Every node is built once and never mutated afterwards. Its digest is
// computed at construction from the node kind, its result type, literal
// parameters and the digests of its children, so two nodes built from the
// same ingredients compare equal (Equal) and can be shared freely between
// expressions, selections and backends.
//
// Nodes render themselves to C++ expression code through a CodeContext.
// The context decides which sub-expressions already exist as named columns
// and which ones should be promoted to new columns; NoRedir renders
// everything inline.
//
// Range operations (Select, Sort, Map, Find, Reduce, Combine) bind Local
// placeholders. A local's index is strictly greater than the index of any
// local bound by a range operation nested in the body, so nested lambdas
// never shadow each other.
//
// Variation forking:
//
// SystAlt wraps a nominal expression together with named alternatives.
// CollectVariations discovers the wrappers reachable from a set of
// expressions and Vary rebuilds an expression with the affected wrappers
// rebound to one variation. Rebinding never changes an existing node; it
// returns a new one, and untouched subtrees are shared by reference.
package op
