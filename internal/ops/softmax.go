package ops

import (
	"github.com/born-ml/bootloss/internal/mathx"
	"github.com/born-ml/bootloss/internal/parallel"
	"github.com/born-ml/bootloss/internal/tensor"
)

// Softmax normalizes exp(x) along an axis.
// Softmax(x_i) = exp(x_i - max) / sum(exp(x_j - max)) for all j in the axis.
type Softmax[T tensor.Float] struct {
	ext extents
	par parallel.Config
}

// NewSoftmax creates an unconfigured softmax normalizer.
func NewSoftmax[T tensor.Float](par parallel.Config) *Softmax[T] {
	return &Softmax[T]{par: par}
}

// Configure binds the input shape and the normalization axis.
func (s *Softmax[T]) Configure(shape tensor.Shape, axis int) error {
	ext, err := newExtents(shape, axis)
	if err != nil {
		return err
	}
	s.ext = ext
	return nil
}

// Compute returns softmax(x) as a new tensor.
func (s *Softmax[T]) Compute(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if err := s.ext.check("softmax", x.Shape()); err != nil {
		return nil, err
	}

	out := tensor.Zeros[T](s.ext.shape)
	src, dst := x.Data(), out.Data()
	classes, inner := s.ext.classes, s.ext.inner
	dim := classes * inner

	parallel.For(s.ext.outer, s.par, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			for j := 0; j < inner; j++ {
				base := i*dim + j

				// Find max for numerical stability
				maxVal := mathx.Inf[T](-1)
				for k := 0; k < classes; k++ {
					maxVal = mathx.Max(maxVal, src[base+k*inner])
				}

				var sum T
				for k := 0; k < classes; k++ {
					idx := base + k*inner
					e := mathx.Exp(src[idx] - maxVal)
					dst[idx] = e
					sum += e
				}

				for k := 0; k < classes; k++ {
					dst[base+k*inner] /= sum
				}
			}
		}
	})

	return out, nil
}
