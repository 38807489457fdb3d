// Package validate checks that a surgically reduced graph behaves exactly
// like the masked graph it was derived from.
package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/prune"
	"github.com/born-ml/scalpel/internal/tensor"
)

// ErrValidationMismatch marks divergence between the masked original and the
// reduced graph. It always signals a surgery bug; the reduced graph must not
// be trusted or exported.
var ErrValidationMismatch = errors.New("post-surgery output mismatch")

// DefaultTolerance allows for float32 rounding differences between masked
// multiply-accumulate and the sliced computation. Masking and slicing are
// mathematically exact removals, so anything beyond rounding noise is a bug.
const DefaultTolerance = 1e-5

// Equivalence runs the same input through the masked original graph and the
// reduced graph and compares outputs element-wise.
//
// tolerance <= 0 selects DefaultTolerance. Returns nil when the outputs
// agree; otherwise an error wrapping ErrValidationMismatch identifying the
// first diverging element.
func Equivalence(original, reduced *graph.Graph, masks map[string]prune.ChannelMask, input *tensor.Tensor, tolerance float64) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	boolMasks := make(map[string][]bool, len(masks))
	for name, m := range masks {
		boolMasks[name] = m
	}

	want, err := original.ForwardMasked(input, boolMasks)
	if err != nil {
		return fmt.Errorf("masked forward: %w", err)
	}
	got, err := reduced.Forward(input)
	if err != nil {
		return fmt.Errorf("reduced forward: %w", err)
	}

	if !want.Shape().Equal(got.Shape()) {
		return fmt.Errorf("%w: output shapes differ: %v vs %v",
			ErrValidationMismatch, want.Shape(), got.Shape())
	}

	wantData, gotData := want.Data(), got.Data()
	for i := range wantData {
		if diff := math.Abs(float64(wantData[i] - gotData[i])); diff > tolerance {
			return fmt.Errorf("%w: element %d: masked %v vs reduced %v (|diff| %v > %v)",
				ErrValidationMismatch, i, wantData[i], gotData[i], diff, tolerance)
		}
	}
	return nil
}
