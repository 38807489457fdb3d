package prune

import (
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/scalpel/internal/tensor"
)

// Metric selects how per-channel importance is scored.
type Metric int

// Importance metrics.
//
// MetricSum is the raw signed sum of the channel's weights; it is kept for
// compatibility with the reference description but can score a channel with
// large offsetting weights as unimportant. MetricL1 (the default) and
// MetricL2 score by magnitude.
const (
	MetricL1 Metric = iota
	MetricL2
	MetricSum
)

// String returns the metric's config-file name.
func (m Metric) String() string {
	switch m {
	case MetricL1:
		return "l1"
	case MetricL2:
		return "l2"
	case MetricSum:
		return "sum"
	default:
		return "unknown"
	}
}

// ParseMetric parses a config-file metric name.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "l1", "":
		return MetricL1, nil
	case "l2":
		return MetricL2, nil
	case "sum":
		return MetricSum, nil
	default:
		return 0, fmt.Errorf("unknown importance metric %q (want sum, l1 or l2)", s)
	}
}

// ChannelMask records, per output channel, whether the channel is kept.
// The mask length equals the layer's output-channel count at the time the
// mask was produced.
type ChannelMask []bool

// KeptIndices returns the kept channel indices in ascending order.
func (m ChannelMask) KeptIndices() []int {
	var out []int
	for i, keep := range m {
		if keep {
			out = append(out, i)
		}
	}
	return out
}

// DropCount returns the number of dropped channels.
func (m ChannelMask) DropCount() int {
	n := 0
	for _, keep := range m {
		if !keep {
			n++
		}
	}
	return n
}

// Clone returns a copy of the mask.
func (m ChannelMask) Clone() ChannelMask {
	c := make(ChannelMask, len(m))
	copy(c, m)
	return c
}

// ComputeMask scores each output channel of the weight tensor and drops the
// K lowest-importance channels, where K = round(target * channels), clamped
// so at least one channel is always kept.
//
// The channel axis is the weight's output axis (axis 0 for conv and dense
// weights). Ties at the threshold break deterministically by channel index:
// the lower index is dropped first, so identical inputs always produce
// identical masks. target <= 0 yields an all-keep mask. This is a pure
// computation over a snapshot of the weights; nothing is mutated.
func ComputeMask(weights *tensor.Tensor, channelAxis int, target float64, metric Metric) ChannelMask {
	scores := channelScores(weights, channelAxis, metric)
	n := len(scores)

	mask := make(ChannelMask, n)
	for i := range mask {
		mask[i] = true
	}
	if target <= 0 || n == 0 {
		return mask
	}

	k := int(math.Round(target * float64(n)))
	if k > n-1 {
		k = n - 1 // never produce an empty layer
	}
	if k <= 0 {
		return mask
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps equal scores in index order, so the lower index
	// lands earlier in the drop list.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	for _, idx := range order[:k] {
		mask[idx] = false
	}
	return mask
}

// channelScores computes one importance score per slice along the channel
// axis.
func channelScores(weights *tensor.Tensor, channelAxis int, metric Metric) []float64 {
	n := weights.Dim(channelAxis)
	scores := make([]float64, n)

	shape := weights.Shape()
	if channelAxis < 0 {
		channelAxis += len(shape)
	}
	outer := 1
	for i := 0; i < channelAxis; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := channelAxis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	data := weights.Data()
	for o := 0; o < outer; o++ {
		for c := 0; c < n; c++ {
			base := (o*n + c) * inner
			for i := base; i < base+inner; i++ {
				v := float64(data[i])
				switch metric {
				case MetricSum:
					scores[c] += v
				case MetricL1:
					scores[c] += math.Abs(v)
				case MetricL2:
					scores[c] += v * v
				}
			}
		}
	}
	if metric == MetricL2 {
		for c := range scores {
			scores[c] = math.Sqrt(scores[c])
		}
	}
	return scores
}
