// Package mathx provides elementary functions over tensor element types.
package mathx

import (
	"math"

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"

	"github.com/born-ml/bootloss/internal/tensor"
)

// MinProb is the floor applied to probabilities before taking their log.
// It is the smallest normal float32 (C's FLT_MIN) and is used for both
// float32 and float64 kernels so the two produce the same clamped loss.
const MinProb = 0x1p-126

// Log returns the natural logarithm of x.
func Log[T tensor.Float](x T) T {
	switch v := any(x).(type) {
	case float32:
		return T(math32.Log(v))
	default:
		return T(math.Log(float64(x)))
	}
}

// Exp returns e**x.
func Exp[T tensor.Float](x T) T {
	switch v := any(x).(type) {
	case float32:
		return T(math32.Exp(v))
	default:
		return T(math.Exp(float64(x)))
	}
}

// Inf returns positive infinity if sign >= 0, negative infinity otherwise.
func Inf[T tensor.Float](sign int) T {
	return T(math.Inf(sign))
}

// IsNaN reports whether x is not-a-number.
func IsNaN[T tensor.Float](x T) bool {
	switch v := any(x).(type) {
	case float32:
		return math32.IsNaN(v)
	default:
		return math.IsNaN(float64(x))
	}
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// SafeLog returns log(max(x, MinProb)).
func SafeLog[T tensor.Float](x T) T {
	return Log(Max(x, T(MinProb)))
}
