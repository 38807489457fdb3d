// Copyright 2026 Scalpel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float32 tensors that
// graph parameters are stored in.
//
// Example:
//
//	w, err := tensor.FromSlice(data, tensor.Shape{8, 4, 1, 1})
//	kept := w.Take(0, []int{1, 3, 4, 6}) // Shape: [4, 4, 1, 1]
package tensor

import (
	"github.com/born-ml/scalpel/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a dense row-major float32 tensor with deep-copy semantics.
type Tensor = tensor.Tensor

// Creation functions

// New creates a zero-filled tensor, validating the shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// Zeros creates a zero-filled tensor. Panics on an invalid shape.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Rand creates a tensor with seeded uniform random values in [-1, 1).
func Rand(shape Shape, seed int64) *Tensor {
	return tensor.Rand(shape, seed)
}
