package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/prune"
	"github.com/born-ml/scalpel/internal/surgery"
	"github.com/born-ml/scalpel/internal/tensor"
)

// convNet builds a small CNN with two pointwise convolutions, random
// parameters, and non-trivial normalization statistics.
func convNet(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.MustAdd(graph.NewConv2D("stem", "", tensor.Rand(tensor.Shape{4, 1, 3, 3}, 10), tensor.Rand(tensor.Shape{4}, 11), 1, 1))
	g.MustAdd(graph.NewReLU("stem.act", "stem"))
	g.MustAdd(graph.NewConv2D("pw1", "stem.act", tensor.Rand(tensor.Shape{8, 4, 1, 1}, 12), tensor.Rand(tensor.Shape{8}, 13), 1, 0))
	g.MustAdd(graph.NewBatchNorm("pw1.bn", "pw1",
		tensor.Rand(tensor.Shape{8}, 14), tensor.Rand(tensor.Shape{8}, 15),
		tensor.Rand(tensor.Shape{8}, 16), tensor.Full(tensor.Shape{8}, 2), 1e-5))
	g.MustAdd(graph.NewReLU("pw1.act", "pw1.bn"))
	g.MustAdd(graph.NewDepthwiseConv2D("dw", "pw1.act", tensor.Rand(tensor.Shape{8, 1, 3, 3}, 17), tensor.Rand(tensor.Shape{8}, 18), 1, 1))
	g.MustAdd(graph.NewConv2D("pw2", "dw", tensor.Rand(tensor.Shape{6, 8, 1, 1}, 19), nil, 1, 0))
	g.MustAdd(graph.NewMaxPool2D("pool", "pw2", 4))
	g.MustAdd(graph.NewDense("fc", "pool", tensor.Rand(tensor.Shape{3, 6}, 20), tensor.Rand(tensor.Shape{3}, 21)))
	require.NoError(t, g.Validate())
	return g
}

func TestEquivalence_AfterSurgery(t *testing.T) {
	g := convNet(t)

	// Final masks as the controller would produce them at 50% sparsity.
	masks := map[string]prune.ChannelMask{
		"pw1": prune.ComputeMask(g.Layer("pw1").Weight, 0, 0.5, prune.MetricL1),
		"pw2": prune.ComputeMask(g.Layer("pw2").Weight, 0, 0.5, prune.MetricL1),
	}
	require.Equal(t, 4, masks["pw1"].DropCount())
	require.Equal(t, 3, masks["pw2"].DropCount())

	reduced, _, err := surgery.Apply(g, masks)
	require.NoError(t, err)

	input := tensor.Rand(tensor.Shape{2, 1, 4, 4}, 99)
	assert.NoError(t, Equivalence(g, reduced, masks, input, 0))
}

func TestEquivalence_DetectsCorruption(t *testing.T) {
	g := convNet(t)
	masks := map[string]prune.ChannelMask{
		"pw1": prune.ComputeMask(g.Layer("pw1").Weight, 0, 0.5, prune.MetricL1),
	}

	reduced, _, err := surgery.Apply(g, masks)
	require.NoError(t, err)

	// Corrupt one surviving weight: validation must hard-fail.
	w := reduced.Layer("pw1").Weight
	w.Set(w.At(0, 0, 0, 0)+1, 0, 0, 0, 0)

	input := tensor.Rand(tensor.Shape{1, 1, 4, 4}, 7)
	err = Equivalence(g, reduced, masks, input, 0)
	assert.ErrorIs(t, err, ErrValidationMismatch)
}

func TestEquivalence_ShapeDivergence(t *testing.T) {
	g := convNet(t)
	masks := map[string]prune.ChannelMask{
		"pw1": prune.ComputeMask(g.Layer("pw1").Weight, 0, 0.5, prune.MetricL1),
	}
	reduced, _, err := surgery.Apply(g, masks)
	require.NoError(t, err)

	// Swap in a head with a different output width.
	reduced.Layer("fc").Weight = tensor.Rand(tensor.Shape{5, 6}, 30)
	reduced.Layer("fc").Bias = tensor.Rand(tensor.Shape{5}, 31)

	input := tensor.Rand(tensor.Shape{1, 1, 4, 4}, 7)
	err = Equivalence(g, reduced, masks, input, 0)
	assert.ErrorIs(t, err, ErrValidationMismatch)
}
