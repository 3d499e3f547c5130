package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by Set and Apply: zip entries cannot be
	// overwritten in place.
	ErrUnsupported = errors.New("dataset: operation not supported")
	// ErrInvalidParam reports a bad bin size, index or resample count.
	ErrInvalidParam = errors.New("dataset: invalid parameter")
	// ErrCapacity is returned when an archive without zip64 support would grow
	// past 2 GiB.
	ErrCapacity = errors.New("dataset: archive exceeds small-file capacity")
	// ErrResampleMissing means a resample was still absent after its batch was
	// regenerated.
	ErrResampleMissing = errors.New("dataset: resample missing after regeneration")
	// ErrUnknownType is returned when an opaque element type was never
	// registered with RegisterMeasurement.
	ErrUnknownType = errors.New("dataset: unknown element type")
)

// TypeError reports a datum whose element type differs from the archive's.
type TypeError struct {
	Want, Got ElementType
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("dataset: supplied data type %s does not match the required data type %s", e.Got, e.Want)
}
