package graph

import (
	"math"
	"testing"

	"github.com/born-ml/scalpel/internal/tensor"
)

// TestForward_Conv2DValues tests convolution against a manual computation.
func TestForward_Conv2DValues(t *testing.T) {
	// 1 -> 1 channel, 2x2 kernel, no bias.
	weight, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	g := New()
	g.MustAdd(NewConv2D("conv", "", weight, nil, 1, 0))

	// Input 3x3 with values 1..9.
	input, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3})

	out, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// [0,0]: 1*1 + 2*2 + 3*4 + 4*5 = 37
	// [0,1]: 1*2 + 2*3 + 3*5 + 4*6 = 47
	// [1,0]: 1*4 + 2*5 + 3*7 + 4*8 = 67
	// [1,1]: 1*5 + 2*6 + 3*8 + 4*9 = 77
	expected := []float32{37, 47, 67, 77}
	for i, exp := range expected {
		if out.Data()[i] != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, out.Data()[i])
		}
	}
}

// TestForward_PointwiseConvWithBias tests 1x1 convolution channel mixing.
func TestForward_PointwiseConvWithBias(t *testing.T) {
	// 2 -> 2 channels, 1x1 kernel.
	// out0 = 1*c0 + 2*c1 + 10, out1 = 3*c0 + 4*c1 + 20
	weight, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2, 1, 1})
	bias, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{2})
	g := New()
	g.MustAdd(NewConv2D("pw", "", weight, bias, 1, 0))

	input, _ := tensor.FromSlice([]float32{5, 7}, tensor.Shape{1, 2, 1, 1})
	out, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if out.At(0, 0, 0, 0) != 5+14+10 {
		t.Errorf("out0: expected 29, got %v", out.At(0, 0, 0, 0))
	}
	if out.At(0, 1, 0, 0) != 15+28+20 {
		t.Errorf("out1: expected 63, got %v", out.At(0, 1, 0, 0))
	}
}

// TestForward_DepthwiseValues tests per-channel convolution.
func TestForward_DepthwiseValues(t *testing.T) {
	// 2 channels, 1x1 depthwise: channel 0 scaled by 2, channel 1 by 3.
	weight, _ := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2, 1, 1, 1})
	g := New()
	g.MustAdd(NewDepthwiseConv2D("dw", "", weight, nil, 1, 0))

	input, _ := tensor.FromSlice([]float32{5, 7}, tensor.Shape{1, 2, 1, 1})
	out, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if out.At(0, 0, 0, 0) != 10 || out.At(0, 1, 0, 0) != 21 {
		t.Errorf("Expected [10, 21], got [%v, %v]", out.At(0, 0, 0, 0), out.At(0, 1, 0, 0))
	}
}

// TestForward_BatchNormValues tests inference-form normalization.
func TestForward_BatchNormValues(t *testing.T) {
	scale, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1})
	shift, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1})
	mean, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1})
	variance, _ := tensor.FromSlice([]float32{4}, tensor.Shape{1})

	g := New()
	g.MustAdd(NewConv2D("id", "", tensor.Full(tensor.Shape{1, 1, 1, 1}, 1), nil, 1, 0))
	g.MustAdd(NewBatchNorm("bn", "id", scale, shift, mean, variance, 0))

	input, _ := tensor.FromSlice([]float32{7}, tensor.Shape{1, 1, 1, 1})
	out, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// y = 2*(7-3)/sqrt(4) + 1 = 5
	got := float64(out.At(0, 0, 0, 0))
	if math.Abs(got-5) > 1e-6 {
		t.Errorf("BatchNorm: expected 5, got %v", got)
	}
}

// TestForward_DenseAndPool tests the tail of a typical CNN head.
func TestForward_DenseAndPool(t *testing.T) {
	g := New()
	g.MustAdd(NewMaxPool2D("pool", "", 2))
	weight, _ := tensor.FromSlice([]float32{1, 1, 1, 1}, tensor.Shape{1, 4})
	g.MustAdd(NewDense("fc", "pool", weight, nil))

	// 1 channel 4x4 input; 2x2 maxpool picks the max of each quadrant.
	input := tensor.Zeros(tensor.Shape{1, 1, 4, 4})
	input.Set(5, 0, 0, 0, 0)
	input.Set(6, 0, 0, 0, 3)
	input.Set(7, 0, 0, 3, 0)
	input.Set(8, 0, 0, 3, 3)

	out, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.At(0, 0) != 26 {
		t.Errorf("Dense sum: expected 26, got %v", out.At(0, 0))
	}
}

// TestForwardMasked_DropsChannel tests that a masked channel contributes zero
// downstream even when bias and normalization would re-introduce a constant.
func TestForwardMasked_DropsChannel(t *testing.T) {
	g := New()
	// 1 -> 2 channels, both filters weight 1, bias {10, 20}.
	w1, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2, 1, 1, 1})
	b1, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{2})
	g.MustAdd(NewConv2D("a", "", w1, b1, 1, 0))

	// Normalization with non-zero shift: bn(0) != 0 unless the channel is masked.
	scale, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2})
	shift, _ := tensor.FromSlice([]float32{5, 5}, tensor.Shape{2})
	mean := tensor.Zeros(tensor.Shape{2})
	variance, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2})
	g.MustAdd(NewBatchNorm("bn", "a", scale, shift, mean, variance, 0))

	// 2 -> 1 channel mixer.
	w2, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2, 1, 1})
	g.MustAdd(NewConv2D("b", "bn", w2, nil, 1, 0))

	input, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1, 1, 1, 1})

	// Unmasked: channel outputs 13 and 23, bn adds 5: 18 + 28 = 46.
	full, err := g.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if full.At(0, 0, 0, 0) != 46 {
		t.Fatalf("Unmasked: expected 46, got %v", full.At(0, 0, 0, 0))
	}

	// Drop channel 1 of "a": only channel 0 survives: 13 + 5 = 18.
	masked, err := g.ForwardMasked(input, map[string][]bool{"a": {true, false}})
	if err != nil {
		t.Fatalf("ForwardMasked failed: %v", err)
	}
	if masked.At(0, 0, 0, 0) != 18 {
		t.Errorf("Masked: expected 18, got %v", masked.At(0, 0, 0, 0))
	}

	// Stored weights unchanged.
	if g.Layer("a").Weight.At(1, 0, 0, 0) != 1 {
		t.Error("ForwardMasked mutated stored weights")
	}
}
