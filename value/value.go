// Package value defines the measurement values stored in an ensemble archive
// and the element-wise algebra the resampling code runs on them.
//
// A Value is one of five variants:
//
//	Scalar   – a float64
//	Array    – a fixed-shape, row-major float64 array
//	Sequence – an ordered list of values
//	Mapping  – a string-keyed map of values (key order irrelevant)
//	Opaque   – a collaborator type implementing Measurement
//
// Binary operations (Add, Sub, Mul) and the scalar operations (Div, DivScalar,
// Sqrt) dispatch on the variant pair and return a *MismatchError when the pair
// cannot be combined.
package value

import (
	"fmt"
	"sort"
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindArray
	KindSequence
	KindMapping
	KindOpaque
)

var kindNames = map[Kind]string{
	KindScalar:   "scalar",
	KindArray:    "array",
	KindSequence: "sequence",
	KindMapping:  "mapping",
	KindOpaque:   "opaque",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("value: unknown kind %q", s)
}

// Value is a measurement value.
type Value interface {
	Kind() Kind
	// TypeName names the element type the value belongs to. Archives use it
	// as the entry name prefix.
	TypeName() string
}

// Measurement is the capability contract for collaborator types produced by
// the simulation layer (propagators, correlators, configurations, ...).
//
// Implementations may additionally satisfy Rooter, encoding.BinaryMarshaler /
// encoding.BinaryUnmarshaler and encoding.TextMarshaler /
// encoding.TextUnmarshaler.
type Measurement interface {
	TypeName() string
	Add(Measurement) (Measurement, error)
	Sub(Measurement) (Measurement, error)
	Mul(Measurement) (Measurement, error)
	DivScalar(float64) (Measurement, error)
}

// Rooter is implemented by measurements that support an element-wise square
// root. Std and JackknifeStd need it.
type Rooter interface {
	Sqrt() (Measurement, error)
}

// Sizer reports an approximate in-memory footprint in bytes.
type Sizer interface {
	Size() int64
}

// Scalar is a plain number.
type Scalar float64

func (Scalar) Kind() Kind         { return KindScalar }
func (Scalar) TypeName() string   { return "float" }
func (s Scalar) Float64() float64 { return float64(s) }

// Array is a dense float64 array stored in row-major order.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray validates that data has exactly prod(shape) elements.
func NewArray(shape []int, data []float64) (Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Array{}, fmt.Errorf("value: negative dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("value: shape %v wants %d elements, got %d", shape, n, len(data))
	}
	return Array{Shape: append([]int(nil), shape...), Data: append([]float64(nil), data...)}, nil
}

// Vector is shorthand for a one dimensional Array.
func Vector(data ...float64) Array {
	return Array{Shape: []int{len(data)}, Data: append([]float64(nil), data...)}
}

func (Array) Kind() Kind       { return KindArray }
func (Array) TypeName() string { return "ndarray" }

func (a Array) sameShape(b Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

func (a Array) mapData(f func(float64) float64) Array {
	out := Array{Shape: append([]int(nil), a.Shape...), Data: make([]float64, len(a.Data))}
	for i, x := range a.Data {
		out.Data[i] = f(x)
	}
	return out
}

// Sequence is an ordered list of values.
type Sequence []Value

func (Sequence) Kind() Kind       { return KindSequence }
func (Sequence) TypeName() string { return "list" }

// Mapping is a key to value mapping. Operations visit keys in sorted order.
type Mapping map[string]Value

func (Mapping) Kind() Kind       { return KindMapping }
func (Mapping) TypeName() string { return "dict" }

// Keys returns the keys in sorted order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Mapping) values(keys []string) Sequence {
	out := make(Sequence, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func zipMapping(keys []string, vals Sequence) Mapping {
	out := make(Mapping, len(keys))
	for i, k := range keys {
		out[k] = vals[i]
	}
	return out
}

// Opaque wraps a collaborator Measurement.
type Opaque struct {
	M Measurement
}

func (Opaque) Kind() Kind { return KindOpaque }

func (o Opaque) TypeName() string {
	if o.M == nil {
		return "<nil>"
	}
	return o.M.TypeName()
}

// Shape returns the array shape of v, or nil for non-array values.
func Shape(v Value) []int {
	if a, ok := v.(Array); ok {
		return append([]int(nil), a.Shape...)
	}
	return nil
}

// Footprint estimates the memory held by v in bytes.
func Footprint(v Value) int64 {
	switch x := v.(type) {
	case Scalar:
		return 8
	case Array:
		return int64(8*len(x.Data) + 8*len(x.Shape))
	case Sequence:
		var n int64
		for _, e := range x {
			n += Footprint(e)
		}
		return n + int64(16*len(x))
	case Mapping:
		var n int64
		for k, e := range x {
			n += int64(len(k)) + Footprint(e)
		}
		return n + int64(32*len(x))
	case Opaque:
		if s, ok := x.M.(Sizer); ok {
			return s.Size()
		}
		return 64
	}
	return 0
}
