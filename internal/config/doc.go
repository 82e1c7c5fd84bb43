// Package config loads analysis descriptions and run configurations.
//
// An analysis is a CUE package. Its top-level fields are:
//
//	name:        optional, defaults to the directory name
//	root:        name of the root selection, "all" by default
//	columns:     input columns and their C++ types, {pt: "float"}
//	collections: array columns sharing a size column,
//	             {Jet: {size: "nJet", fields: {pt: "Float_t"}}} reads Jet_pt
//	define:      named expressions, {expr, at} also defines a column
//	selections:  {parent, cuts: [...], weights: [...], autoSyst}
//	plots:       {selection, vars, binning, weights, title, axisTitles, autoSyst}
//	skims:       {selection, branches: [{name, expr}], keep, maxSelected, tree}
//	cutflows:    {selections: [...], recursive, autoSyst}
//
// Expressions are structured values: {column}, {const, type}, {fn, args},
// {call, args, type}, {syst: {nominal, variations}}, {ref}, {deferred},
// {size: collection}, {item: {of, field}} and the range forms
// {select|sort|map|sum|count|find: {over, as, in, where|by|value}}, and
// {combine: {over: [...], n, as: [...], in: [...], where, ordered}} for
// the n-element combinations of one or more collections.
// A bare string is a reference and a bare number or boolean a constant.
//
// A run configuration is a YAML file, onepass.yaml by default, with the
// fields of RunConfig.
package config
