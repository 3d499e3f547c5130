package value

import (
	"reflect"
	"slices"
)

// Describe returns a short human-readable description of v's structure, such
// as "scalar", "array[2 3]" or "opaque TwoPoint".
func Describe(v Value) string { return describe(v) }

// Equal reports whether a and b have the same structure and the same numbers.
// Opaque values are compared with reflect.DeepEqual.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		return ok && slices.Equal(x.Shape, y.Shape) && slices.Equal(x.Data, y.Data)
	case Sequence:
		y, ok := b.(Sequence)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Mapping:
		y, ok := b.(Mapping)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case Opaque:
		y, ok := b.(Opaque)
		return ok && reflect.DeepEqual(x.M, y.M)
	}
	return a == nil && b == nil
}
