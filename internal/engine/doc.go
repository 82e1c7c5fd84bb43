// Package engine defines the columnar execution engine that onepass drives
// and provides Script, an engine that writes the whole analysis out as a
// standalone C++ RDataFrame program.
//
// The engine is a lazy dataframe: Filter and Define return new nodes
// without touching data, Histogram and Snapshot book results, and Run
// performs the single event loop that fills every booked result.
//
// ARCHITECTURE:
//
// Nodes and results are opaque handles. The backend never inspects them; it
// only threads them back into later calls, so an implementation is free to
// wrap a real dataframe, record calls (testutil.FakeEngine) or emit source
// lines (Script).
//
// Code passed to Filter and Define comes as a Function: the expression in
// terms of column names (for JIT engines) and the same expression as a
// callable with normalised parameters plus the columns to bind them to (for
// compiled engines).
//
// CRITICAL PATTERNS:
//
// Single pass: Run is called at most once per engine, with every result
// booked so far. A second call fails with ErrCodeAlreadyRun.
package engine
