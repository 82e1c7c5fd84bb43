package config

import (
	"errors"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
)

func stringField(v cue.Value, key string) (string, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return "", errorf(ErrCodeInvalidExpr, v.Pos(), "%s is required", key)
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(ErrCodeInvalidExpr, err)
	}
	return s, nil
}

func optString(v cue.Value, key string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(ErrCodeInvalidExpr, err)
	}
	return s, true, nil
}

func optBool(v cue.Value, key string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return def, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(ErrCodeInvalidExpr, err)
	}
	return b, nil
}

func optInt(v cue.Value, key string) (int, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return 0, nil
	}
	i, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(ErrCodeInvalidExpr, err)
	}
	return int(i), nil
}

// listField returns the elements of the list at key; a missing key is an
// empty list.
func listField(v cue.Value, key string) ([]cue.Value, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(ErrCodeInvalidExpr, err)
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}

func stringList(v cue.Value, key string) ([]string, error) {
	vals, err := listField(v, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, e := range vals {
		s, err := e.String()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func floatList(v cue.Value, key string) ([]float64, error) {
	vals, err := listField(v, key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, e := range vals {
		f, err := e.Float64()
		if err != nil {
			return nil, formatCUEError(ErrCodeInvalidExpr, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// withCode wraps an error from the selection package in a *LoadError
// with the given code and position. Load errors pass through.
func withCode(code string, pos token.Pos, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return &LoadError{Code: code, Message: err.Error(), Pos: pos}
}
