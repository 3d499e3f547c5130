package dataset

import (
	"fmt"
	"slices"
	"sync"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// ElementType describes the values held by a DataSet. It is stored in the
// archive's "type" entry and checked on every Add.
type ElementType struct {
	Name  string
	Kind  value.Kind
	Shape []int // arrays only
}

// Built-in element types.
var (
	Float = ElementType{Name: "float", Kind: value.KindScalar}
	List  = ElementType{Name: "list", Kind: value.KindSequence}
	Dict  = ElementType{Name: "dict", Kind: value.KindMapping}
)

// ArrayOf is the element type of arrays with the given shape.
func ArrayOf(shape ...int) ElementType {
	return ElementType{Name: "ndarray", Kind: value.KindArray, Shape: shape}
}

// MeasurementType is the element type of a registered opaque measurement.
func MeasurementType(name string) ElementType {
	return ElementType{Name: name, Kind: value.KindOpaque}
}

// ElementTypeOf derives the element type of v.
func ElementTypeOf(v value.Value) ElementType {
	if v == nil {
		return ElementType{}
	}
	return ElementType{Name: v.TypeName(), Kind: v.Kind(), Shape: value.Shape(v)}
}

// Equal reports whether both descriptors name the same type and shape.
func (t ElementType) Equal(o ElementType) bool {
	return t.Name == o.Name && t.Kind == o.Kind && slices.Equal(t.Shape, o.Shape)
}

func (t ElementType) String() string {
	if t.Kind == value.KindArray {
		return fmt.Sprintf("%s%v", t.Name, t.Shape)
	}
	return t.Name
}

func (t ElementType) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: element type has no name", ErrInvalidParam)
	}
	if t.Kind < value.KindScalar || t.Kind > value.KindOpaque {
		return fmt.Errorf("%w: element type %s has kind %s", ErrInvalidParam, t.Name, t.Kind)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() value.Measurement{}
)

// RegisterMeasurement makes an opaque measurement type loadable. factory must
// return a fresh, empty measurement to decode into.
func RegisterMeasurement(name string, factory func() value.Measurement) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func lookupMeasurement(name string) (value.Measurement, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return factory(), nil
}
