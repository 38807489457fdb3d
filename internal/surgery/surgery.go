package surgery

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/prune"
	"github.com/born-ml/scalpel/internal/tensor"
)

// LayerReduction summarizes one layer's channel reduction.
type LayerReduction struct {
	Layer  string
	Before int
	After  int
}

// Plan is the per-layer summary of a surgery run.
type Plan []LayerReduction

// Apply removes the dropped channels of every masked layer, and every
// shape-coupled dependent parameter, from a deep copy of the graph.
//
// masks holds the final frozen ChannelMask per pruned pointwise convolution.
// Kept channels preserve their relative order (ascending index), so channel
// identity downstream is stable. The original graph is never modified or
// aliased; on any error the returned graph is nil and no partial result
// escapes.
//
// Dependency extraction runs one walk per pruned layer, in parallel — the
// walks only read the graph. Slicing is a single sequential pass, so two
// pruned layers sharing a downstream consumer can never race on the same
// tensor. Before returning, the reduced graph's producer/consumer channel
// contract is re-verified end to end; a violation aborts the run with
// ErrShapeMismatch.
func Apply(g *graph.Graph, masks map[string]prune.ChannelMask) (*graph.Graph, Plan, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "surgery"})

	if err := g.Validate(); err != nil {
		return nil, nil, fmt.Errorf("input graph invalid: %w", err)
	}

	names := make([]string, 0, len(masks))
	for name := range masks {
		names = append(names, name)
	}
	sort.Strings(names)

	// Pre-checks: every mask must match its layer's current channel count
	// and keep at least one channel.
	for _, name := range names {
		layer := g.Layer(name)
		if layer == nil {
			return nil, nil, fmt.Errorf("mask for unknown layer %q", name)
		}
		if n := layer.OutChannels(); n != len(masks[name]) {
			return nil, nil, &ShapeMismatchError{
				Producer: name, Consumer: name, Param: "mask",
				Expected: n, Actual: len(masks[name]),
			}
		}
		if len(masks[name].KeptIndices()) == 0 {
			return nil, nil, fmt.Errorf("mask for layer %q keeps no channels", name)
		}
	}

	// Independent walks, parallel per pruned root.
	edgesByLayer := make(map[string][]Edge, len(names))
	var mu sync.Mutex
	var eg errgroup.Group
	for _, name := range names {
		name := name
		eg.Go(func() error {
			edges, err := ExtractDependencies(g, name)
			if err != nil {
				return err
			}
			mu.Lock()
			edgesByLayer[name] = edges
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logger.Error("dependency extraction failed", "err", err)
		return nil, nil, err
	}

	reduced := g.Clone()
	plan := make(Plan, 0, len(names))

	for _, name := range names {
		mask := masks[name]
		keep := mask.KeptIndices()
		plan = append(plan, LayerReduction{Layer: name, Before: len(mask), After: len(keep)})

		if mask.DropCount() == 0 {
			continue // nothing to remove, layer copied unchanged by Clone
		}

		layer := reduced.Layer(name)
		layer.Weight = layer.Weight.Take(0, keep)
		if layer.Bias != nil {
			layer.Bias = layer.Bias.Take(0, keep)
		}

		for _, edge := range edgesByLayer[name] {
			if err := sliceConsumer(reduced.Layer(edge.Consumer), edge, len(mask), keep); err != nil {
				logger.Error("surgery aborted", "layer", name, "err", err)
				return nil, nil, err
			}
		}

		logger.Info("layer reduced", "layer", name, "before", len(mask), "after", len(keep))
	}

	// The correctness property: every adjacent producer/consumer pair must
	// agree on channel counts before the graph is released.
	if err := reduced.Validate(); err != nil {
		logger.Error("reduced graph failed invariant check", "err", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return reduced, plan, nil
}

// sliceConsumer applies one dependency edge: the consumer parameter's axis
// is reduced to the kept indices. The consumer's pre-surgery axis size must
// equal the producer's pre-surgery channel count.
func sliceConsumer(consumer *graph.Layer, edge Edge, channels int, keep []int) error {
	target := func(t *tensor.Tensor) (*tensor.Tensor, error) {
		if t == nil {
			return nil, fmt.Errorf("%w: %q has no %s parameter", ErrShapeMismatch, edge.Consumer, edge.Param)
		}
		if got := t.Dim(edge.Axis); got != channels {
			return nil, &ShapeMismatchError{
				Producer: edge.Producer, Consumer: edge.Consumer,
				Param: edge.Param.String(), Expected: channels, Actual: got,
			}
		}
		return t.Take(edge.Axis, keep), nil
	}

	var err error
	switch edge.Param {
	case ParamConvInput, ParamDenseInput, ParamDepthwiseChannels:
		consumer.Weight, err = target(consumer.Weight)
	case ParamBias:
		consumer.Bias, err = target(consumer.Bias)
	case ParamNormScale:
		consumer.Scale, err = target(consumer.Scale)
	case ParamNormShift:
		consumer.Shift, err = target(consumer.Shift)
	case ParamNormMean:
		consumer.Mean, err = target(consumer.Mean)
	case ParamNormVariance:
		consumer.Variance, err = target(consumer.Variance)
	default:
		err = fmt.Errorf("unsupported parameter slot %v", edge.Param)
	}
	return err
}
