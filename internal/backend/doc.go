// Package backend turns registered selections and outputs into a network
// of engine filter and define nodes, and drives the single event loop
// that fills every output.
//
// ARCHITECTURE:
//
// FilterNode network:
// Every FilterNode is one engine Filter below its parent, plus the columns
// defined on it. A parent has at most one child per distinct cut digest,
// so selections with equal cuts share engine nodes. Each FilterNode
// remembers the columns defined on it (and, once realised, on its
// ancestors) by expression digest, which makes every expression be
// computed once per branch of the network.
//
// Variations:
// A selection whose cuts change under a variation gets a separate branch
// of FilterNodes for that variation (FilterNode.Variation). Outputs book
// one result per live variation, named <name>__<variation>, reusing the
// nominal node and columns wherever the variation does not reach.
//
// Two phases:
// Add* only records what to produce. BuildGraph creates the engine nodes
// and books the results, parents first; RunGraph triggers the event loop
// exactly once. WithEagerBuild creates everything at registration
// instead, which surfaces code generation errors where they originate.
//
// CRITICAL PATTERNS:
//
// Single-writer: a Backend is driven from one goroutine. The only state
// shared between backends is the SymbolTable, which has its own lock.
//
// Deterministic naming: generated columns are myCol%06d and helper
// functions myFun%d, numbered in creation order.
package backend
