package prune

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/tensor"
)

// Phase describes where a training step falls on the sparsity ramp.
type Phase int

// Controller phases.
const (
	PhaseWarmup  Phase = iota // before the ramp: sparsity 0, no channels dropped
	PhaseRamping              // on the ramp: masks recomputed periodically at rising sparsity
	PhaseStable               // past the ramp: sparsity pinned at the maximum, masks still tracking importance
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseRamping:
		return "ramping"
	case PhaseStable:
		return "stable"
	default:
		return "unknown"
	}
}

// ErrFrozen is returned by Step after FinalMasks has frozen the controller.
var ErrFrozen = errors.New("controller is frozen: final masks already taken")

// Controller integrates the mask engine into a training loop.
//
// The controller owns one ChannelMask per pointwise convolution in the
// graph. At every step whose index is a multiple of the recompute interval,
// masks are recomputed from the current weights at the schedule's target
// sparsity for that step; between recomputation points the stored masks are
// reused unchanged. MaskedForward applies the stored masks to the forward
// computation without mutating stored weights, so the optimizer keeps
// updating the values underneath dropped channels while their contribution
// stays zero.
//
// Recomputation takes the controller's mutex, which is the synchronization
// point against concurrent optimizer writes: callers that update weights
// from other goroutines must do so via WithWeightLock. Recomputation reads
// the weights before the step's gradient update (call Step at the top of the
// training step).
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	graph  *graph.Graph
	sched  Schedule
	metric Metric

	targets []string
	masks   map[string]ChannelMask
	started bool
	frozen  bool

	lastPhase Phase
	logger    *log.Logger
}

// NewController creates a controller over every pointwise convolution in the
// graph (structural predicate; layer names play no part in selection).
// Returns an error for invalid configuration or a graph with no pointwise
// convolutions.
func NewController(g *graph.Graph, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metric, err := ParseMetric(cfg.ImportanceMetric)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, l := range g.Layers() {
		if l.IsPointwiseConv() {
			targets = append(targets, l.Name)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("graph has no pointwise convolution layers to prune")
	}

	c := &Controller{
		cfg:       cfg,
		graph:     g,
		sched:     cfg.Schedule(),
		metric:    metric,
		targets:   targets,
		masks:     make(map[string]ChannelMask, len(targets)),
		lastPhase: PhaseWarmup,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "prune",
		}),
	}

	// All-keep masks until the first recomputation.
	for _, name := range targets {
		n := g.Layer(name).OutChannels()
		mask := make(ChannelMask, n)
		for i := range mask {
			mask[i] = true
		}
		c.masks[name] = mask
	}
	return c, nil
}

// Targets returns the names of the layers under pruning control.
func (c *Controller) Targets() []string {
	return append([]string(nil), c.targets...)
}

// Phase reports the schedule phase for a step.
func (c *Controller) Phase(step int) Phase {
	switch {
	case step < c.sched.StartStep:
		return PhaseWarmup
	case step <= c.sched.EndStep:
		return PhaseRamping
	default:
		return PhaseStable
	}
}

// Step advances the controller to the given training step, recomputing
// masks when the step index is a multiple of the recompute interval (and
// unconditionally on the first call). Call it at the top of each training
// step, before the optimizer update, so recomputation sees a consistent
// pre-update weight snapshot.
func (c *Controller) Step(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	if step < 0 {
		return fmt.Errorf("negative step %d", step)
	}

	if phase := c.Phase(step); phase != c.lastPhase {
		c.logger.Info("phase transition", "step", step, "phase", phase.String())
		c.lastPhase = phase
	}

	if c.started && step%c.cfg.RecomputeInterval != 0 {
		return nil // reuse stored masks unchanged
	}
	c.started = true

	target := c.sched.TargetSparsity(step)
	for _, name := range c.targets {
		layer := c.graph.Layer(name)
		mask := ComputeMask(layer.Weight, 0, target, c.metric)
		c.masks[name] = mask
		c.logger.Debug("mask recomputed",
			"step", step, "layer", name,
			"sparsity", target, "dropped", mask.DropCount(), "channels", len(mask))
	}
	return nil
}

// Masks returns a deep copy of the current per-layer masks.
func (c *Controller) Masks() map[string]ChannelMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyMasks()
}

// FinalMasks freezes the controller and returns the final per-layer masks.
// After this call Step returns ErrFrozen; the returned masks are the
// read-only input to surgery.
func (c *Controller) FinalMasks() map[string]ChannelMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
	return c.copyMasks()
}

// MaskedForward runs the graph with the stored masks applied.
func (c *Controller) MaskedForward(input *tensor.Tensor) (*tensor.Tensor, error) {
	c.mu.Lock()
	masks := boolMasks(c.masks)
	c.mu.Unlock()
	return c.graph.ForwardMasked(input, masks)
}

// WithWeightLock runs fn while holding the controller's mutex. Optimizer
// weight updates racing a mask recomputation must go through this, so the
// recomputation never reads a half-written tensor.
func (c *Controller) WithWeightLock(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Controller) copyMasks() map[string]ChannelMask {
	out := make(map[string]ChannelMask, len(c.masks))
	for name, m := range c.masks {
		out[name] = m.Clone()
	}
	return out
}

// boolMasks converts ChannelMasks to the plain bool slices graph execution
// consumes.
func boolMasks(masks map[string]ChannelMask) map[string][]bool {
	out := make(map[string][]bool, len(masks))
	for name, m := range masks {
		out[name] = m
	}
	return out
}
