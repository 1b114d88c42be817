// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/bootloss/internal/tensor"
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Float is the set of element types loss layers are instantiated with.
type Float = tensor.Float

// Number is the set of element types a Dense tensor can hold.
type Number = tensor.Number

// Dense is a contiguous row-major tensor.
type Dense[T Number] = tensor.Dense[T]

// ErrInvalidShape is returned when a shape or axis cannot describe a tensor.
var ErrInvalidShape = tensor.ErrInvalidShape

// New wraps data in a tensor of the given shape. It panics if the element
// count does not match.
func New[T Number](shape Shape, data []T) *Dense[T] {
	return tensor.New(shape, data)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T Number](shape Shape, data []T) (*Dense[T], error) {
	return tensor.FromSlice(shape, data)
}

// Zeros allocates a zero-filled tensor.
func Zeros[T Number](shape Shape) *Dense[T] {
	return tensor.Zeros[T](shape)
}
