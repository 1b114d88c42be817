package tensor

import "fmt"

// Dense is a contiguous row-major tensor.
//
// Dense values own their backing slice. Data exposes it for in-place
// kernels; callers that hand a Dense to another component and keep writing
// to it must Clone first.
type Dense[T Number] struct {
	shape Shape
	data  []T
}

// New wraps data in a tensor of the given shape.
// It panics if len(data) does not match the shape.
func New[T Number](shape Shape, data []T) *Dense[T] {
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor.New: shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data)))
	}
	return &Dense[T]{shape: shape.Clone(), data: data}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T Number](shape Shape, data []T) (*Dense[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, but got %d",
			ErrInvalidShape, shape, shape.NumElements(), len(data))
	}
	buf := make([]T, len(data))
	copy(buf, data)
	return &Dense[T]{shape: shape.Clone(), data: buf}, nil
}

// Zeros allocates a zero-filled tensor.
func Zeros[T Number](shape Shape) *Dense[T] {
	return &Dense[T]{shape: shape.Clone(), data: make([]T, shape.NumElements())}
}

// ZerosLike allocates a zero-filled tensor with the shape of t.
func ZerosLike[T, U Number](t *Dense[U]) *Dense[T] {
	return Zeros[T](t.shape)
}

// Shape returns a copy of the tensor's shape.
func (t *Dense[T]) Shape() Shape {
	return t.shape.Clone()
}

// Data returns the backing slice.
func (t *Dense[T]) Data() []T {
	return t.data
}

// Len returns the number of elements.
func (t *Dense[T]) Len() int {
	return len(t.data)
}

// At returns the element at the given coordinates.
func (t *Dense[T]) At(coords ...int) T {
	if len(coords) != len(t.shape) {
		panic(fmt.Sprintf("tensor.At: got %d coordinates for %dD tensor", len(coords), len(t.shape)))
	}
	strides := t.shape.ComputeStrides()
	idx := 0
	for i, c := range coords {
		if c < 0 || c >= t.shape[i] {
			panic(fmt.Sprintf("tensor.At: coordinate %d out of range for dimension %d of size %d", c, i, t.shape[i]))
		}
		idx += c * strides[i]
	}
	return t.data[idx]
}

// Clone returns a deep copy.
func (t *Dense[T]) Clone() *Dense[T] {
	buf := make([]T, len(t.data))
	copy(buf, t.data)
	return &Dense[T]{shape: t.shape.Clone(), data: buf}
}

// CopyFrom overwrites t with the contents of src. Shapes must match.
func (t *Dense[T]) CopyFrom(src *Dense[T]) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("%w: cannot copy %v into %v", ErrInvalidShape, src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Reshape changes the shape in place, reallocating only when the element
// count grows. Existing contents are unspecified afterwards.
func (t *Dense[T]) Reshape(shape Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	n := shape.NumElements()
	if cap(t.data) < n {
		t.data = make([]T, n)
	} else {
		t.data = t.data[:n]
	}
	t.shape = shape.Clone()
	return nil
}

// ReshapeLike reshapes t to the shape of other.
func (t *Dense[T]) ReshapeLike(other *Dense[T]) error {
	return t.Reshape(other.shape)
}

// String returns a short description such as "Dense[float32](2, 3)".
func (t *Dense[T]) String() string {
	return fmt.Sprintf("Dense[%s]%v", DTypeName[T](), t.shape)
}
