// Package surgery implements post-training network surgery: given a trained
// graph and the final channel masks, it removes the dropped channels and
// every shape-coupled dependent parameter, emitting a new, strictly smaller
// graph that computes the same function.
package surgery

import (
	"fmt"

	"github.com/born-ml/scalpel/internal/graph"
)

// Param identifies the consumer parameter slot an Edge couples to.
type Param int

// Coupled parameter slots.
const (
	ParamConvInput         Param = iota // conv weight, input-channel axis
	ParamDenseInput                     // dense weight, input-feature axis
	ParamDepthwiseChannels              // depthwise weight, channel axis
	ParamBias                           // bias vector
	ParamNormScale                      // normalization scale
	ParamNormShift                      // normalization shift
	ParamNormMean                       // normalization running mean
	ParamNormVariance                   // normalization running variance
)

// String returns the parameter slot name.
func (p Param) String() string {
	switch p {
	case ParamConvInput:
		return "conv input channels"
	case ParamDenseInput:
		return "dense input features"
	case ParamDepthwiseChannels:
		return "depthwise channels"
	case ParamBias:
		return "bias"
	case ParamNormScale:
		return "norm scale"
	case ParamNormShift:
		return "norm shift"
	case ParamNormMean:
		return "norm mean"
	case ParamNormVariance:
		return "norm variance"
	default:
		return "unknown"
	}
}

// Edge records that the producer's output channels index the consumer's
// parameter along the given axis. Edges are built fresh per surgery run and
// not persisted.
type Edge struct {
	Producer string
	Consumer string
	Param    Param
	Axis     int
}

// ExtractDependencies walks the graph forward from a pruned pointwise
// convolution and returns every parameter slot whose indexing is coupled to
// the layer's output channels.
//
// The walk follows channel-identity-preserving layers (normalization,
// activations, pooling, depthwise convolutions — a depthwise maps channel i
// to channel i, so its per-channel parameters are recorded and the walk
// continues behind it) and terminates at layers that remap channel identity
// (convolutions and dense layers, whose input axis is recorded as the final
// coupled slot), at already-visited layers, and nowhere else: a path that
// reaches a graph output without a remapping consumer means the pruned
// channels are externally observable, which is reported as
// ErrDependencyUnresolved.
func ExtractDependencies(g *graph.Graph, layerName string) ([]Edge, error) {
	root := g.Layer(layerName)
	if root == nil {
		return nil, fmt.Errorf("no layer named %q", layerName)
	}
	if !root.IsPointwiseConv() {
		return nil, fmt.Errorf("layer %q is not a pointwise convolution (kind %s, kernel %v)",
			layerName, root.Kind, root.Weight.Shape()[2:])
	}

	var edges []Edge
	visited := map[string]bool{root.Name: true}
	frontier := []string{root.Name}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		consumers := g.Consumers(current)
		if len(consumers) == 0 {
			return nil, fmt.Errorf("%w: channels of %q reach the graph output through %q",
				ErrDependencyUnresolved, layerName, current)
		}

		for _, c := range consumers {
			if visited[c.Name] {
				continue // cycle guard
			}
			visited[c.Name] = true

			switch c.Kind {
			case graph.BatchNorm:
				edges = append(edges,
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamNormScale, Axis: 0},
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamNormShift, Axis: 0},
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamNormMean, Axis: 0},
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamNormVariance, Axis: 0},
				)
				frontier = append(frontier, c.Name)
			case graph.DepthwiseConv2D:
				edges = append(edges,
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamDepthwiseChannels, Axis: 0})
				if c.Bias != nil {
					edges = append(edges,
						Edge{Producer: layerName, Consumer: c.Name, Param: ParamBias, Axis: 0})
				}
				frontier = append(frontier, c.Name)
			case graph.ReLU, graph.MaxPool2D:
				frontier = append(frontier, c.Name)
			case graph.Conv2D:
				edges = append(edges,
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamConvInput, Axis: 1})
			case graph.Dense:
				edges = append(edges,
					Edge{Producer: layerName, Consumer: c.Name, Param: ParamDenseInput, Axis: 1})
			default:
				return nil, fmt.Errorf("%w: layer %q consumes %q with unsupported kind %s",
					ErrDependencyUnresolved, c.Name, layerName, c.Kind)
			}
		}
	}
	return edges, nil
}
