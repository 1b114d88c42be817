// Package blas adapts gonum's level-1 BLAS routines to generic float slices.
package blas

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/bootloss/internal/tensor"
)

// Copy copies src into dst. Both slices must have the same length.
func Copy[T tensor.Float](src, dst []T) {
	if len(src) != len(dst) {
		panic("blas.Copy: length mismatch")
	}
	if len(src) == 0 {
		return
	}
	switch s := any(src).(type) {
	case []float32:
		d := any(dst).([]float32)
		blas32.Copy(vec32(s), vec32(d))
	case []float64:
		d := any(dst).([]float64)
		blas64.Copy(vec64(s), vec64(d))
	}
}

// Scal computes x = alpha * x in place.
func Scal[T tensor.Float](alpha T, x []T) {
	if len(x) == 0 {
		return
	}
	switch v := any(x).(type) {
	case []float32:
		blas32.Scal(float32(alpha), vec32(v))
	case []float64:
		blas64.Scal(float64(alpha), vec64(v))
	}
}

// Zero sets every element of x to zero.
func Zero[T tensor.Float](x []T) {
	clear(x)
}

func vec32(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

func vec64(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Inc: 1, Data: data}
}
