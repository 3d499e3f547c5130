package value

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTypeMismatch is wrapped by every *MismatchError.
	ErrTypeMismatch = errors.New("value: type mismatch")
	// ErrEmpty is returned by the reducers for an empty input.
	ErrEmpty = errors.New("value: empty input")
	// ErrTooFew is returned by JackknifeStd for fewer than two values.
	ErrTooFew = errors.New("value: jackknife error needs at least two values")
)

// MismatchError reports operands that cannot be combined.
type MismatchError struct {
	Op          string
	Left, Right string
	Reason      string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("value: cannot %s %s and %s", e.Op, e.Left, e.Right)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MismatchError) Unwrap() error { return ErrTypeMismatch }

type op uint8

const (
	opAdd op = iota
	opSub
	opMul
)

func (o op) String() string {
	switch o {
	case opAdd:
		return "add"
	case opSub:
		return "subtract"
	default:
		return "multiply"
	}
}

func (o op) float(a, b float64) float64 {
	switch o {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	default:
		return a * b
	}
}

func describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if a, ok := v.(Array); ok {
		return fmt.Sprintf("array%v", a.Shape)
	}
	if v.Kind() == KindOpaque {
		return "opaque " + v.TypeName()
	}
	return v.Kind().String()
}

func mismatch(o string, a, b Value, reason string) error {
	return &MismatchError{Op: o, Left: describe(a), Right: describe(b), Reason: reason}
}

// Add returns a + b element-wise.
func Add(a, b Value) (Value, error) { return apply(opAdd, a, b) }

// Sub returns a - b element-wise.
func Sub(a, b Value) (Value, error) { return apply(opSub, a, b) }

// Mul returns a * b element-wise.
func Mul(a, b Value) (Value, error) { return apply(opMul, a, b) }

func apply(o op, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Opaque:
		y, ok := b.(Opaque)
		if !ok {
			return nil, mismatch(o.String(), a, b, "")
		}
		return applyOpaque(o, x, y)
	case Sequence:
		switch y := b.(type) {
		case Sequence:
			return zipSequence(o, x, y)
		case Mapping:
			keys := y.Keys()
			vals, err := zipSequence(o, x, y.values(keys))
			if err != nil {
				return nil, err
			}
			return zipMapping(keys, vals), nil
		}
	case Mapping:
		keys := x.Keys()
		var other Sequence
		switch y := b.(type) {
		case Mapping:
			other = y.values(y.Keys())
		case Sequence:
			other = y
		default:
			return nil, mismatch(o.String(), a, b, "")
		}
		vals, err := zipSequence(o, x.values(keys), other)
		if err != nil {
			return nil, err
		}
		return zipMapping(keys, vals), nil
	case Scalar, Array:
		return applyNumeric(o, a, b)
	}
	return nil, mismatch(o.String(), a, b, "")
}

func zipSequence(o op, a, b Sequence) (Sequence, error) {
	if len(a) != len(b) {
		return nil, mismatch(o.String(), a, b, fmt.Sprintf("length %d != %d", len(a), len(b)))
	}
	out := make(Sequence, len(a))
	for i := range a {
		v, err := apply(o, a[i], b[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func applyNumeric(o op, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Scalar:
		switch y := b.(type) {
		case Scalar:
			return Scalar(o.float(float64(x), float64(y))), nil
		case Array:
			return y.mapData(func(e float64) float64 { return o.float(float64(x), e) }), nil
		}
	case Array:
		switch y := b.(type) {
		case Scalar:
			return x.mapData(func(e float64) float64 { return o.float(e, float64(y)) }), nil
		case Array:
			if !x.sameShape(y) {
				return nil, mismatch(o.String(), a, b, "shape differs")
			}
			out := Array{Shape: append([]int(nil), x.Shape...), Data: make([]float64, len(x.Data))}
			for i := range x.Data {
				out.Data[i] = o.float(x.Data[i], y.Data[i])
			}
			return out, nil
		}
	}
	return nil, mismatch(o.String(), a, b, "")
}

func applyOpaque(o op, a, b Opaque) (Value, error) {
	if a.M == nil || b.M == nil || a.M.TypeName() != b.M.TypeName() {
		return nil, mismatch(o.String(), a, b, "")
	}
	var (
		m   Measurement
		err error
	)
	switch o {
	case opAdd:
		m, err = a.M.Add(b.M)
	case opSub:
		m, err = a.M.Sub(b.M)
	default:
		m, err = a.M.Mul(b.M)
	}
	if err != nil {
		return nil, fmt.Errorf("value: %s %s: %w", o, a.M.TypeName(), err)
	}
	return Opaque{M: m}, nil
}

// Div divides a by d, which must be a Scalar.
func Div(a, d Value) (Value, error) {
	s, ok := d.(Scalar)
	if !ok {
		return nil, mismatch("divide", a, d, "divisor must be a scalar")
	}
	return DivScalar(a, float64(s))
}

// DivScalar divides every numeric leaf of a by d.
func DivScalar(a Value, d float64) (Value, error) {
	switch x := a.(type) {
	case Scalar:
		return Scalar(float64(x) / d), nil
	case Array:
		return x.mapData(func(e float64) float64 { return e / d }), nil
	case Sequence:
		out := make(Sequence, len(x))
		for i, e := range x {
			v, err := DivScalar(e, d)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case Mapping:
		keys := x.Keys()
		vals, err := DivScalar(x.values(keys), d)
		if err != nil {
			return nil, err
		}
		return zipMapping(keys, vals.(Sequence)), nil
	case Opaque:
		if x.M == nil {
			break
		}
		m, err := x.M.DivScalar(d)
		if err != nil {
			return nil, fmt.Errorf("value: divide %s: %w", x.M.TypeName(), err)
		}
		return Opaque{M: m}, nil
	}
	return nil, mismatch("divide", a, Scalar(d), "")
}

// Sqrt takes the square root of every numeric leaf of a.
func Sqrt(a Value) (Value, error) {
	switch x := a.(type) {
	case Scalar:
		return Scalar(math.Sqrt(float64(x))), nil
	case Array:
		return x.mapData(math.Sqrt), nil
	case Sequence:
		out := make(Sequence, len(x))
		for i, e := range x {
			v, err := Sqrt(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case Mapping:
		keys := x.Keys()
		vals, err := Sqrt(x.values(keys))
		if err != nil {
			return nil, err
		}
		return zipMapping(keys, vals.(Sequence)), nil
	case Opaque:
		r, ok := x.M.(Rooter)
		if !ok {
			return nil, &MismatchError{Op: "sqrt", Left: describe(a), Right: "-", Reason: "no square root capability"}
		}
		m, err := r.Sqrt()
		if err != nil {
			return nil, fmt.Errorf("value: sqrt %s: %w", x.M.TypeName(), err)
		}
		return Opaque{M: m}, nil
	}
	return nil, &MismatchError{Op: "sqrt", Left: describe(a), Right: "-"}
}

// Zero returns the additive identity with the shape of v.
func Zero(v Value) (Value, error) {
	return Sub(v, v)
}
