// Copyright 2026 Scalpel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for the layer-graph representation
// that pruning and surgery operate on.
//
// Example:
//
//	g := graph.New()
//	g.MustAdd(graph.NewConv2D("pw", "", weight, bias, 1, 0))
//	g.MustAdd(graph.NewBatchNorm("bn", "pw", scale, shift, mean, variance, 1e-5))
//	out, err := g.Forward(input)
package graph

import (
	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/tensor"
)

// Graph is an ordered computation graph over layers.
type Graph = graph.Graph

// Layer is one node of the computation graph.
type Layer = graph.Layer

// LayerKind identifies the operation a layer performs.
type LayerKind = graph.LayerKind

// Supported layer kinds.
const (
	Conv2D          LayerKind = graph.Conv2D
	DepthwiseConv2D LayerKind = graph.DepthwiseConv2D
	BatchNorm       LayerKind = graph.BatchNorm
	Dense           LayerKind = graph.Dense
	ReLU            LayerKind = graph.ReLU
	MaxPool2D       LayerKind = graph.MaxPool2D
)

// New creates an empty graph.
func New() *Graph {
	return graph.New()
}

// NewConv2D creates a convolution layer from an existing weight tensor
// [out_channels, in_channels, kernel_h, kernel_w]. Bias may be nil.
func NewConv2D(name, input string, weight, bias *tensor.Tensor, stride, padding int) *Layer {
	return graph.NewConv2D(name, input, weight, bias, stride, padding)
}

// NewDepthwiseConv2D creates a depthwise convolution layer from a weight
// tensor [channels, 1, kernel_h, kernel_w]. Bias may be nil.
func NewDepthwiseConv2D(name, input string, weight, bias *tensor.Tensor, stride, padding int) *Layer {
	return graph.NewDepthwiseConv2D(name, input, weight, bias, stride, padding)
}

// NewBatchNorm creates an inference-form batch normalization layer.
func NewBatchNorm(name, input string, scale, shift, mean, variance *tensor.Tensor, epsilon float32) *Layer {
	return graph.NewBatchNorm(name, input, scale, shift, mean, variance, epsilon)
}

// NewDense creates a fully connected layer from a weight tensor
// [out_features, in_features]. Bias may be nil.
func NewDense(name, input string, weight, bias *tensor.Tensor) *Layer {
	return graph.NewDense(name, input, weight, bias)
}

// NewReLU creates a ReLU activation layer.
func NewReLU(name, input string) *Layer {
	return graph.NewReLU(name, input)
}

// NewMaxPool2D creates a non-overlapping max pooling layer.
func NewMaxPool2D(name, input string, poolSize int) *Layer {
	return graph.NewMaxPool2D(name, input, poolSize)
}
