// Package tensor implements dense float32 tensors for graph parameters.
//
// The package provides the storage layer the pruning and surgery passes
// operate on: shapes with row-major strides, deep-copy semantics, and
// index selection along an arbitrary axis. Computation over tensors lives
// with the callers (graph execution, mask scoring); this package only owns
// layout and element access.
package tensor

import "fmt"

// Tensor is a dense row-major float32 tensor.
//
// Tensors own their storage. Clone always deep-copies: surgery must never
// alias the original graph's buffers, so there is no copy-on-write here.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{8, 4, 1, 1})
//	t.Set(1.5, 3, 0, 0, 0)
//	v := t.At(3, 0, 0, 0) // 1.5
type Tensor struct {
	shape  Shape
	stride []int
	data   []float32
}

// New creates a zero-filled tensor with the given shape.
// Returns an error if the shape has non-positive dimensions.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		data:   make([]float32, shape.NumElements()),
	}, nil
}

// Zeros creates a zero-filled tensor with the given shape.
// Panics on an invalid shape; use New when the shape is untrusted.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's memory strides.
func (t *Tensor) Strides() []int {
	return t.stride
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Dim returns the size of the given axis. Negative axes index from the end.
// Panics if the axis is out of range.
func (t *Tensor) Dim(axis int) int {
	return t.shape[t.resolveAxis(axis)]
}

// Data returns the flat data slice.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.offset(indices)] = value
}

// Fill sets every element to the given value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		data:   make([]float32, len(t.data)),
	}
	copy(c.data, t.data)
	return c
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[float32]%v", t.shape)
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * t.stride[i]
	}
	return offset
}

func (t *Tensor) resolveAxis(axis int) int {
	if axis < 0 {
		axis += len(t.shape)
	}
	if axis < 0 || axis >= len(t.shape) {
		panic(fmt.Sprintf("axis %d out of range for %d-D tensor", axis, len(t.shape)))
	}
	return axis
}
