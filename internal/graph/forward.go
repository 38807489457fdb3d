package graph

import (
	"fmt"
	"math"

	"github.com/born-ml/scalpel/internal/tensor"
)

// Forward executes the graph on a [batch, channels, height, width] input and
// returns the output of the graph's single output layer.
//
// Execution is a straight pass over the topologically ordered layer list,
// holding intermediate activations in a name-keyed map.
func (g *Graph) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return g.forward(input, nil)
}

// ForwardMasked executes the graph with channel masks in effect.
//
// masks maps layer names to keep flags over that layer's output channels.
// For a masked convolution the mask is applied multiplicatively to the weight
// tensor along the output-channel axis before use, and the dropped channels'
// activations are held at zero through every channel-preserving layer
// downstream (normalization would otherwise re-introduce a constant via its
// shift term). Stored weights are never mutated.
func (g *Graph) ForwardMasked(input *tensor.Tensor, masks map[string][]bool) (*tensor.Tensor, error) {
	return g.forward(input, masks)
}

func (g *Graph) forward(input *tensor.Tensor, masks map[string][]bool) (*tensor.Tensor, error) {
	outputs := g.Outputs()
	if len(outputs) != 1 {
		return nil, fmt.Errorf("graph has %d outputs, expected exactly 1", len(outputs))
	}

	activations := map[string]*tensor.Tensor{"": input}
	// Keep flags in effect on each layer's output activation.
	effMasks := map[string][]float32{}

	for _, l := range g.layers {
		in, ok := activations[l.Input]
		if !ok {
			return nil, fmt.Errorf("layer %q: missing input activation %q", l.Name, l.Input)
		}

		out, err := l.apply(in, masks)
		if err != nil {
			return nil, err
		}

		if factors := effectiveMask(l, masks, effMasks); factors != nil {
			effMasks[l.Name] = factors
			if len(out.Shape()) == 4 {
				out = out.ScaleAxis(1, factors)
			}
		}
		activations[l.Name] = out
	}

	return activations[outputs[0].Name], nil
}

// effectiveMask resolves the keep factors governing a layer's output:
// a masked layer's own mask, or the factors inherited from its producer for
// channel-preserving layers. Returns nil when no mask is in effect.
func effectiveMask(l *Layer, masks map[string][]bool, effMasks map[string][]float32) []float32 {
	if masks != nil {
		if m, ok := masks[l.Name]; ok {
			factors := make([]float32, len(m))
			for i, keep := range m {
				if keep {
					factors[i] = 1
				}
			}
			return factors
		}
	}
	if l.PreservesChannels() {
		return effMasks[l.Input]
	}
	return nil
}

// apply executes a single layer. For a masked convolution the weight (and
// bias) are masked along the output-channel axis first.
func (l *Layer) apply(in *tensor.Tensor, masks map[string][]bool) (*tensor.Tensor, error) {
	weight, bias := l.Weight, l.Bias
	if masks != nil {
		if m, ok := masks[l.Name]; ok && weight != nil {
			if len(m) != weight.Shape()[0] {
				return nil, fmt.Errorf("layer %q: mask length %d does not match %d output channels",
					l.Name, len(m), weight.Shape()[0])
			}
			factors := make([]float32, len(m))
			for i, keep := range m {
				if keep {
					factors[i] = 1
				}
			}
			weight = weight.ScaleAxis(0, factors)
			if bias != nil {
				bias = bias.ScaleAxis(0, factors)
			}
		}
	}

	switch l.Kind {
	case Conv2D:
		return conv2d(in, weight, bias, l.Stride, l.Padding, l.Name)
	case DepthwiseConv2D:
		return depthwiseConv2d(in, weight, bias, l.Stride, l.Padding, l.Name)
	case BatchNorm:
		return batchNorm(in, l)
	case Dense:
		return dense(in, weight, bias, l.Name)
	case ReLU:
		return relu(in), nil
	case MaxPool2D:
		return maxPool2d(in, l.PoolSize, l.Name)
	default:
		return nil, fmt.Errorf("layer %q: unsupported kind %s", l.Name, l.Kind)
	}
}

// conv2d performs direct 2D convolution.
//
// Input [N, C_in, H, W], weight [C_out, C_in, KH, KW], output
// [N, C_out, H_out, W_out] with H_out = (H + 2*padding - KH)/stride + 1.
func conv2d(in, weight, bias *tensor.Tensor, stride, padding int, name string) (*tensor.Tensor, error) {
	inShape := in.Shape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("layer %q: expected 4D input [N,C,H,W], got %v", name, inShape)
	}
	wShape := weight.Shape()
	n, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, kh, kw := wShape[0], wShape[2], wShape[3]
	if cIn != wShape[1] {
		return nil, fmt.Errorf("layer %q: input channels %d != weight input channels %d", name, cIn, wShape[1])
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		return nil, fmt.Errorf("layer %q: invalid output size %dx%d", name, hOut, wOut)
	}

	out := tensor.Zeros(tensor.Shape{n, cOut, hOut, wOut})
	inData, wData, outData := in.Data(), weight.Data(), out.Data()

	for b := 0; b < n; b++ {
		for oc := 0; oc < cOut; oc++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					var sum float32
					for ic := 0; ic < cIn; ic++ {
						for y := 0; y < kh; y++ {
							iy := oh*stride - padding + y
							if iy < 0 || iy >= h {
								continue
							}
							for x := 0; x < kw; x++ {
								ix := ow*stride - padding + x
								if ix < 0 || ix >= w {
									continue
								}
								sum += inData[((b*cIn+ic)*h+iy)*w+ix] * wData[((oc*cIn+ic)*kh+y)*kw+x]
							}
						}
					}
					if bias != nil {
						sum += bias.Data()[oc]
					}
					outData[((b*cOut+oc)*hOut+oh)*wOut+ow] = sum
				}
			}
		}
	}
	return out, nil
}

// depthwiseConv2d convolves each channel with its own single filter.
// Weight shape [C, 1, KH, KW]; channel identity is preserved.
func depthwiseConv2d(in, weight, bias *tensor.Tensor, stride, padding int, name string) (*tensor.Tensor, error) {
	inShape := in.Shape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("layer %q: expected 4D input [N,C,H,W], got %v", name, inShape)
	}
	wShape := weight.Shape()
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	kh, kw := wShape[2], wShape[3]
	if c != wShape[0] {
		return nil, fmt.Errorf("layer %q: input channels %d != filter count %d", name, c, wShape[0])
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		return nil, fmt.Errorf("layer %q: invalid output size %dx%d", name, hOut, wOut)
	}

	out := tensor.Zeros(tensor.Shape{n, c, hOut, wOut})
	inData, wData, outData := in.Data(), weight.Data(), out.Data()

	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					var sum float32
					for y := 0; y < kh; y++ {
						iy := oh*stride - padding + y
						if iy < 0 || iy >= h {
							continue
						}
						for x := 0; x < kw; x++ {
							ix := ow*stride - padding + x
							if ix < 0 || ix >= w {
								continue
							}
							sum += inData[((b*c+ch)*h+iy)*w+ix] * wData[(ch*kh+y)*kw+x]
						}
					}
					if bias != nil {
						sum += bias.Data()[ch]
					}
					outData[((b*c+ch)*hOut+oh)*wOut+ow] = sum
				}
			}
		}
	}
	return out, nil
}

// batchNorm applies inference-form normalization per channel:
// y = scale * (x - mean) / sqrt(variance + epsilon) + shift.
func batchNorm(in *tensor.Tensor, l *Layer) (*tensor.Tensor, error) {
	inShape := in.Shape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("layer %q: expected 4D input [N,C,H,W], got %v", l.Name, inShape)
	}
	c := inShape[1]
	if l.Scale.Shape()[0] != c {
		return nil, fmt.Errorf("layer %q: %d channels but %d normalization entries", l.Name, c, l.Scale.Shape()[0])
	}

	n, h, w := inShape[0], inShape[2], inShape[3]
	out := in.Clone()
	data := out.Data()
	scale, shift := l.Scale.Data(), l.Shift.Data()
	mean, variance := l.Mean.Data(), l.Variance.Data()

	for ch := 0; ch < c; ch++ {
		inv := scale[ch] / float32(math.Sqrt(float64(variance[ch])+float64(l.Epsilon)))
		for b := 0; b < n; b++ {
			base := (b*c + ch) * h * w
			for i := base; i < base+h*w; i++ {
				data[i] = (data[i]-mean[ch])*inv + shift[ch]
			}
		}
	}
	return out, nil
}

// dense flattens the input to [N, features] and applies y = x * W^T + b.
func dense(in, weight, bias *tensor.Tensor, name string) (*tensor.Tensor, error) {
	inShape := in.Shape()
	batch := inShape[0]
	features := in.NumElements() / batch
	outF, inF := weight.Shape()[0], weight.Shape()[1]
	if features != inF {
		return nil, fmt.Errorf("layer %q: input features %d != weight input features %d", name, features, inF)
	}

	out := tensor.Zeros(tensor.Shape{batch, outF})
	inData, wData, outData := in.Data(), weight.Data(), out.Data()
	for b := 0; b < batch; b++ {
		for o := 0; o < outF; o++ {
			var sum float32
			for i := 0; i < inF; i++ {
				sum += inData[b*features+i] * wData[o*inF+i]
			}
			if bias != nil {
				sum += bias.Data()[o]
			}
			outData[b*outF+o] = sum
		}
	}
	return out, nil
}

// relu applies max(0, x) element-wise.
func relu(in *tensor.Tensor) *tensor.Tensor {
	out := in.Clone()
	data := out.Data()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return out
}

// maxPool2d applies non-overlapping max pooling with the given window size.
func maxPool2d(in *tensor.Tensor, size int, name string) (*tensor.Tensor, error) {
	inShape := in.Shape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("layer %q: expected 4D input [N,C,H,W], got %v", name, inShape)
	}
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	if h%size != 0 || w%size != 0 {
		return nil, fmt.Errorf("layer %q: input %dx%d not divisible by pool size %d", name, h, w, size)
	}

	hOut, wOut := h/size, w/size
	out := tensor.Zeros(tensor.Shape{n, c, hOut, wOut})
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					best := float32(math.Inf(-1))
					for y := 0; y < size; y++ {
						for x := 0; x < size; x++ {
							v := in.At(b, ch, oh*size+y, ow*size+x)
							if v > best {
								best = v
							}
						}
					}
					out.Set(best, b, ch, oh, ow)
				}
			}
		}
	}
	return out, nil
}
