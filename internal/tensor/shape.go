package tensor

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is returned when a shape or axis cannot describe a tensor.
var ErrInvalidShape = errors.New("invalid shape")

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("%w: dimension %d is %d (must be > 0)", ErrInvalidShape, i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// CanonicalAxis maps axis into [0, rank). Negative values count from the end,
// so -1 is the last dimension.
func (s Shape) CanonicalAxis(axis int) (int, error) {
	rank := len(s)
	if axis < -rank || axis >= rank {
		return 0, fmt.Errorf("%w: axis %d out of range for %dD shape %v", ErrInvalidShape, axis, rank, s)
	}
	if axis < 0 {
		return axis + rank, nil
	}
	return axis, nil
}

// Count returns the product of the dimensions in [start, end).
// An empty range counts as 1.
func (s Shape) Count(start, end int) int {
	n := 1
	for i := start; i < end; i++ {
		n *= s[i]
	}
	return n
}

// Remove returns a copy of the shape with the given axis dropped.
// Removing the only axis of a 1D shape yields {1}.
func (s Shape) Remove(axis int) Shape {
	out := make(Shape, 0, len(s))
	for i, dim := range s {
		if i != axis {
			out = append(out, dim)
		}
	}
	if len(out) == 0 {
		out = append(out, 1)
	}
	return out
}

// String formats the shape as "(d0, d1, ...)".
func (s Shape) String() string {
	out := "("
	for i, dim := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(dim)
	}
	return out + ")"
}
