// Package selection describes what an analysis produces: a tree of
// selections, each adding cuts and weights relative to its parent, and
// the outputs booked on them (plots, skims and cut-flow reports).
//
// Everything here is immutable once constructed. Registering a selection
// or an output with a backend is what turns it into engine nodes; this
// package only validates the declarations and discovers which systematic
// variations each selection carries.
//
// Variation discovery runs at construction. A selection with automatic
// systematics enabled records, for every variation its own cuts and
// weights depend on, the wrappers to rebind (op.CollectVariations). A
// selection only has automatic systematics if its parent does.
package selection
