// Package ops implements the axis-wise sub-computations a loss layer delegates
// to: a softmax normalizer and an arg-max reducer.
//
// Both follow the same two-step protocol. Configure binds a shape and an
// axis; Compute then accepts only tensors of that shape. The shape is split
// into outer (dimensions before the axis), classes (the axis itself) and
// inner (dimensions after it), so element (i, k, j) lives at
// i*classes*inner + k*inner + j.
package ops

import (
	"errors"
	"fmt"

	"github.com/born-ml/bootloss/internal/tensor"
)

var (
	// ErrShape is returned when Compute receives a tensor whose shape differs
	// from the configured one.
	ErrShape = errors.New("ops: shape mismatch")

	// ErrNotConfigured is returned when Compute is called before Configure.
	ErrNotConfigured = errors.New("ops: not configured")
)

// Normalizer maps a tensor to a same-shaped tensor normalized along an axis.
type Normalizer[T tensor.Float] interface {
	Configure(shape tensor.Shape, axis int) error
	Compute(x *tensor.Dense[T]) (*tensor.Dense[T], error)
}

// Reducer maps a tensor to one index per position remaining after the axis
// is removed.
type Reducer[T tensor.Float] interface {
	Configure(shape tensor.Shape, axis int) error
	Compute(x *tensor.Dense[T]) (*tensor.Dense[int32], error)
}

// extents is the outer/classes/inner decomposition of a shape around an axis.
type extents struct {
	shape   tensor.Shape
	axis    int
	outer   int
	classes int
	inner   int
}

func newExtents(shape tensor.Shape, axis int) (extents, error) {
	if len(shape) == 0 {
		return extents{}, fmt.Errorf("%w: scalar has no axis", tensor.ErrInvalidShape)
	}
	if err := shape.Validate(); err != nil {
		return extents{}, err
	}
	ax, err := shape.CanonicalAxis(axis)
	if err != nil {
		return extents{}, err
	}
	return extents{
		shape:   shape.Clone(),
		axis:    ax,
		outer:   shape.Count(0, ax),
		classes: shape[ax],
		inner:   shape.Count(ax+1, len(shape)),
	}, nil
}

func (e extents) check(op string, got tensor.Shape) error {
	if e.shape == nil {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	if !e.shape.Equal(got) {
		return fmt.Errorf("%s: %w: configured for %v, got %v", op, ErrShape, e.shape, got)
	}
	return nil
}
