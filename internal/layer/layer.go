// Package layer defines the lifecycle contract a host training framework
// drives its layers through, and the factory table used to build them.
package layer

import (
	"github.com/born-ml/bootloss/internal/tensor"
)

// Layer is the host-facing lifecycle contract.
//
// The host calls SetUp once with the bottom (input) shapes, Reshape whenever
// input shapes change, then any number of Forward/Backward pairs. Forward
// must precede Backward for the same inputs.
type Layer[T tensor.Float] interface {
	// Type returns the registry name of the layer.
	Type() string

	// SetUp validates configuration and builds internal sub-computations.
	SetUp(bottom []tensor.Shape) error

	// Reshape binds input shapes and returns the output (top) shapes.
	Reshape(bottom []tensor.Shape) ([]tensor.Shape, error)

	// Forward computes the outputs.
	Forward(bottom []*tensor.Dense[T]) ([]*tensor.Dense[T], error)

	// Backward returns the gradient with respect to each bottom for which
	// propagateDown is set, and nil for the others.
	Backward(top []*tensor.Dense[T], propagateDown []bool, bottom []*tensor.Dense[T]) ([]*tensor.Dense[T], error)
}
