// Package tensor provides the dense tensor and shape types used by the loss kernel.
package tensor

// Float is the set of element types a loss kernel can be instantiated with.
type Float interface {
	float32 | float64
}

// Number is the set of element types a Dense tensor can hold.
// Labels predicted by arg-max reductions are stored as int32.
type Number interface {
	Float | int32
}

// DTypeName returns a human-readable name for the element type T.
func DTypeName[T Number]() string {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return "float32"
	case float64:
		return "float64"
	case int32:
		return "int32"
	default:
		return "unknown"
	}
}
