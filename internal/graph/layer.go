// Package graph implements the layer-graph representation that pruning and
// surgery operate on.
//
// A Graph is an ordered list of layers connected by name, executed in
// topological order (the layer list itself must be topologically sorted).
// Layers carry their parameter tensors directly; the graph is the sole owner
// of layer lifetime and tensor storage. Layer kinds are a tagged variant so
// structural predicates (is this a pointwise convolution?) never depend on
// layer naming.
package graph

import (
	"fmt"

	"github.com/born-ml/scalpel/internal/tensor"
)

// LayerKind identifies the operation a layer performs.
type LayerKind int

// Supported layer kinds.
const (
	Conv2D LayerKind = iota
	DepthwiseConv2D
	BatchNorm
	Dense
	ReLU
	MaxPool2D
)

// String returns a human-readable kind name.
func (k LayerKind) String() string {
	switch k {
	case Conv2D:
		return "Conv2D"
	case DepthwiseConv2D:
		return "DepthwiseConv2D"
	case BatchNorm:
		return "BatchNorm"
	case Dense:
		return "Dense"
	case ReLU:
		return "ReLU"
	case MaxPool2D:
		return "MaxPool2D"
	default:
		return "Unknown"
	}
}

// Layer is one node of the computation graph.
//
// Which tensor fields are set depends on Kind:
//
//	Conv2D:          Weight [out, in, kh, kw], Bias [out] (optional)
//	DepthwiseConv2D: Weight [ch, 1, kh, kw],   Bias [ch] (optional)
//	BatchNorm:       Scale, Shift, Mean, Variance [ch], Epsilon
//	Dense:           Weight [out, in],         Bias [out] (optional)
//	ReLU, MaxPool2D: no parameters
//
// Input names the producing layer; the empty string means the graph input.
type Layer struct {
	Name  string
	Kind  LayerKind
	Input string

	Weight *tensor.Tensor
	Bias   *tensor.Tensor

	Scale    *tensor.Tensor
	Shift    *tensor.Tensor
	Mean     *tensor.Tensor
	Variance *tensor.Tensor
	Epsilon  float32

	Stride   int
	Padding  int
	PoolSize int
}

// NewConv2D creates a convolution layer from an existing weight tensor
// [out_channels, in_channels, kernel_h, kernel_w]. Bias may be nil.
func NewConv2D(name, input string, weight, bias *tensor.Tensor, stride, padding int) *Layer {
	if len(weight.Shape()) != 4 {
		panic(fmt.Sprintf("conv2d %q: weight must be 4D [out,in,kh,kw], got %v", name, weight.Shape()))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d %q: invalid stride %d", name, stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d %q: invalid padding %d", name, padding))
	}
	return &Layer{
		Name: name, Kind: Conv2D, Input: input,
		Weight: weight, Bias: bias,
		Stride: stride, Padding: padding,
	}
}

// NewDepthwiseConv2D creates a depthwise convolution layer from a weight
// tensor [channels, 1, kernel_h, kernel_w]. Bias may be nil.
func NewDepthwiseConv2D(name, input string, weight, bias *tensor.Tensor, stride, padding int) *Layer {
	if len(weight.Shape()) != 4 || weight.Shape()[1] != 1 {
		panic(fmt.Sprintf("depthwise %q: weight must be [ch,1,kh,kw], got %v", name, weight.Shape()))
	}
	return &Layer{
		Name: name, Kind: DepthwiseConv2D, Input: input,
		Weight: weight, Bias: bias,
		Stride: stride, Padding: padding,
	}
}

// NewBatchNorm creates an inference-form batch normalization layer.
// All four parameter tensors must be 1-D with equal length.
func NewBatchNorm(name, input string, scale, shift, mean, variance *tensor.Tensor, epsilon float32) *Layer {
	return &Layer{
		Name: name, Kind: BatchNorm, Input: input,
		Scale: scale, Shift: shift, Mean: mean, Variance: variance,
		Epsilon: epsilon,
	}
}

// NewDense creates a fully connected layer from a weight tensor
// [out_features, in_features]. Bias may be nil.
func NewDense(name, input string, weight, bias *tensor.Tensor) *Layer {
	if len(weight.Shape()) != 2 {
		panic(fmt.Sprintf("dense %q: weight must be 2D [out,in], got %v", name, weight.Shape()))
	}
	return &Layer{Name: name, Kind: Dense, Input: input, Weight: weight, Bias: bias}
}

// NewReLU creates a ReLU activation layer.
func NewReLU(name, input string) *Layer {
	return &Layer{Name: name, Kind: ReLU, Input: input}
}

// NewMaxPool2D creates a non-overlapping max pooling layer.
func NewMaxPool2D(name, input string, poolSize int) *Layer {
	if poolSize <= 0 {
		panic(fmt.Sprintf("maxpool %q: invalid pool size %d", name, poolSize))
	}
	return &Layer{Name: name, Kind: MaxPool2D, Input: input, PoolSize: poolSize}
}

// IsPointwiseConv reports whether the layer is a pointwise convolution:
// a Conv2D whose spatial kernel extent is 1x1. This is the structural
// predicate used to select pruning targets; names play no part.
func (l *Layer) IsPointwiseConv() bool {
	if l.Kind != Conv2D {
		return false
	}
	shape := l.Weight.Shape()
	return shape[2] == 1 && shape[3] == 1
}

// OutChannels returns the layer's declared output-channel count, or -1 for
// layers whose output channel count is defined by their input (ReLU, pool).
func (l *Layer) OutChannels() int {
	switch l.Kind {
	case Conv2D, DepthwiseConv2D:
		return l.Weight.Shape()[0]
	case BatchNorm:
		return l.Scale.Shape()[0]
	case Dense:
		return l.Weight.Shape()[0]
	default:
		return -1
	}
}

// InChannels returns the layer's declared input-channel (or input-feature)
// count, or -1 for layers without a declared input width.
func (l *Layer) InChannels() int {
	switch l.Kind {
	case Conv2D:
		return l.Weight.Shape()[1]
	case DepthwiseConv2D:
		return l.Weight.Shape()[0] // one filter per input channel
	case BatchNorm:
		return l.Scale.Shape()[0]
	case Dense:
		return l.Weight.Shape()[1]
	default:
		return -1
	}
}

// PreservesChannels reports whether the layer maps input channel i to output
// channel i. Convolutions and dense layers remap channel identity; norms,
// activations, pooling and depthwise convolutions do not.
func (l *Layer) PreservesChannels() bool {
	switch l.Kind {
	case BatchNorm, ReLU, MaxPool2D, DepthwiseConv2D:
		return true
	default:
		return false
	}
}

// validate checks the layer's internal shape contract: parameter tensors
// whose lengths are coupled to the channel count must agree with it.
func (l *Layer) validate() error {
	switch l.Kind {
	case Conv2D, DepthwiseConv2D:
		if l.Weight == nil {
			return fmt.Errorf("layer %q: missing weight", l.Name)
		}
		if l.Bias != nil {
			if len(l.Bias.Shape()) != 1 || l.Bias.Shape()[0] != l.OutChannels() {
				return fmt.Errorf("layer %q: bias shape %v does not match %d output channels",
					l.Name, l.Bias.Shape(), l.OutChannels())
			}
		}
	case BatchNorm:
		n := -1
		for _, p := range []struct {
			name string
			t    *tensor.Tensor
		}{
			{"scale", l.Scale}, {"shift", l.Shift}, {"mean", l.Mean}, {"variance", l.Variance},
		} {
			if p.t == nil {
				return fmt.Errorf("layer %q: missing %s", l.Name, p.name)
			}
			if len(p.t.Shape()) != 1 {
				return fmt.Errorf("layer %q: %s must be 1D, got %v", l.Name, p.name, p.t.Shape())
			}
			if n == -1 {
				n = p.t.Shape()[0]
			} else if p.t.Shape()[0] != n {
				return fmt.Errorf("layer %q: %s length %d does not match channel count %d",
					l.Name, p.name, p.t.Shape()[0], n)
			}
		}
	case Dense:
		if l.Weight == nil {
			return fmt.Errorf("layer %q: missing weight", l.Name)
		}
		if l.Bias != nil {
			if len(l.Bias.Shape()) != 1 || l.Bias.Shape()[0] != l.OutChannels() {
				return fmt.Errorf("layer %q: bias shape %v does not match %d output features",
					l.Name, l.Bias.Shape(), l.OutChannels())
			}
		}
	}
	return nil
}

// clone deep-copies the layer and all its tensors.
func (l *Layer) clone() *Layer {
	c := *l
	copyT := func(t *tensor.Tensor) *tensor.Tensor {
		if t == nil {
			return nil
		}
		return t.Clone()
	}
	c.Weight = copyT(l.Weight)
	c.Bias = copyT(l.Bias)
	c.Scale = copyT(l.Scale)
	c.Shift = copyT(l.Shift)
	c.Mean = copyT(l.Mean)
	c.Variance = copyT(l.Variance)
	return &c
}

// String returns a compact description of the layer.
func (l *Layer) String() string {
	switch l.Kind {
	case Conv2D, DepthwiseConv2D:
		return fmt.Sprintf("%s(%q, weight=%v, stride=%d, padding=%d)",
			l.Kind, l.Name, l.Weight.Shape(), l.Stride, l.Padding)
	case BatchNorm:
		return fmt.Sprintf("BatchNorm(%q, channels=%d)", l.Name, l.Scale.Shape()[0])
	case Dense:
		return fmt.Sprintf("Dense(%q, weight=%v)", l.Name, l.Weight.Shape())
	default:
		return fmt.Sprintf("%s(%q)", l.Kind, l.Name)
	}
}
