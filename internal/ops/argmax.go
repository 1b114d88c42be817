package ops

import (
	"github.com/born-ml/bootloss/internal/parallel"
	"github.com/born-ml/bootloss/internal/tensor"
)

// ArgMax returns the index of the largest value along an axis.
// Ties resolve to the lowest index.
type ArgMax[T tensor.Float] struct {
	ext extents
	par parallel.Config
}

// NewArgMax creates an unconfigured arg-max reducer.
func NewArgMax[T tensor.Float](par parallel.Config) *ArgMax[T] {
	return &ArgMax[T]{par: par}
}

// Configure binds the input shape and the reduction axis.
func (a *ArgMax[T]) Configure(shape tensor.Shape, axis int) error {
	ext, err := newExtents(shape, axis)
	if err != nil {
		return err
	}
	a.ext = ext
	return nil
}

// OutputShape is the configured shape with the axis removed.
func (a *ArgMax[T]) OutputShape() tensor.Shape {
	return a.ext.shape.Remove(a.ext.axis)
}

// Compute returns the arg-max indices as an int32 tensor of OutputShape.
func (a *ArgMax[T]) Compute(x *tensor.Dense[T]) (*tensor.Dense[int32], error) {
	if err := a.ext.check("argmax", x.Shape()); err != nil {
		return nil, err
	}

	out := tensor.Zeros[int32](a.OutputShape())
	src, dst := x.Data(), out.Data()
	classes, inner := a.ext.classes, a.ext.inner
	dim := classes * inner

	parallel.For(a.ext.outer, a.par, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			for j := 0; j < inner; j++ {
				base := i*dim + j
				best := 0
				bestVal := src[base]
				for k := 1; k < classes; k++ {
					if v := src[base+k*inner]; v > bestVal {
						best, bestVal = k, v
					}
				}
				dst[i*inner+j] = int32(best)
			}
		}
	})

	return out, nil
}
