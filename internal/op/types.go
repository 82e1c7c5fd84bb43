package op

import (
	"strings"
)

// Commonly used C++ type names.
const (
	TypeBool   = "bool"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeDouble = "double"
	TypeSize   = "std::size_t"
	TypeString = "std::string"
)

const vecPrefix = "ROOT::VecOps::RVec<"

var boolTypes = map[string]bool{
	"bool":   true,
	"Bool_t": true,
}

// Integer types ordered by promotion rank.
var intRank = map[string]int{
	"char":               1,
	"signed char":        1,
	"Char_t":             1,
	"unsigned char":      2,
	"UChar_t":            2,
	"Short_t":            3,
	"unsigned short":     4,
	"int":                5,
	"Int_t":              5,
	"unsigned":           6,
	"UInt_t":             6,
	"long":               7,
	"unsigned long":      8,
	"size_t":             8,
	"std::size_t":        8,
	"ULong64_t":          9,
	"long long":          9,
	"unsigned long long": 9,
}

var floatRank = map[string]int{
	"float":    1,
	"Float_t":  1,
	"double":   2,
	"Double_t": 2,
}

// IsBoolType reports whether t is a boolean type name.
func IsBoolType(t string) bool { return boolTypes[t] }

// IsIntType reports whether t is an integer type name.
func IsIntType(t string) bool {
	_, ok := intRank[t]
	return ok
}

// IsFloatType reports whether t is a floating point type name.
func IsFloatType(t string) bool {
	_, ok := floatRank[t]
	return ok
}

// IsNumberType reports whether t is an integer or floating point type.
func IsNumberType(t string) bool { return IsIntType(t) || IsFloatType(t) }

// IsBasicType reports whether values of type t are captured by value in
// range lambdas.
func IsBasicType(t string) bool { return IsBoolType(t) || IsNumberType(t) }

// VecType returns the vector type holding elements of type elem.
func VecType(elem string) string {
	return vecPrefix + elem + ">"
}

// ElementType returns the element type of a vector type name, or "" if t
// is not a vector type.
func ElementType(t string) string {
	if strings.HasPrefix(t, vecPrefix) && strings.HasSuffix(t, ">") {
		return strings.TrimSpace(t[len(vecPrefix) : len(t)-1])
	}
	return ""
}

// promote returns the wider of the operand types. Floating point wins over
// integer, double over float; integers promote by rank. Non-numeric
// operands leave the first type in place.
func promote(types ...string) string {
	if len(types) == 0 {
		return ""
	}
	bestF := 0
	for _, t := range types {
		if r, ok := floatRank[t]; ok && r > bestF {
			bestF = r
		}
	}
	if bestF > 0 {
		if bestF == 2 {
			return TypeDouble
		}
		return TypeFloat
	}
	best, bestI := "", 0
	for _, t := range types {
		if r, ok := intRank[t]; ok && r > bestI {
			best, bestI = t, r
		}
	}
	if bestI > 0 {
		return best
	}
	return types[0]
}
