// Copyright 2026 Scalpel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package prune provides the public API for scheduled channel
// sparsification: the sparsity schedule, the mask engine, and the
// training-loop controller.
//
// Example:
//
//	cfg, err := prune.LoadConfig("prune.yaml")
//	ctrl, err := prune.NewController(g, cfg)
//
//	for step := 0; step < steps; step++ {
//	    ctrl.Step(step)               // recomputes masks on interval steps
//	    out, _ := ctrl.MaskedForward(batch)
//	    // ... loss, gradients, optimizer update via ctrl.WithWeightLock
//	}
//	masks := ctrl.FinalMasks()        // frozen input for surgery
package prune

import (
	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/prune"
	"github.com/born-ml/scalpel/internal/tensor"
)

// Schedule maps a training step to a target sparsity fraction.
type Schedule = prune.Schedule

// Config is the pruning configuration, loadable from a yaml file.
type Config = prune.Config

// ChannelMask records, per output channel, whether the channel is kept.
type ChannelMask = prune.ChannelMask

// Metric selects how per-channel importance is scored.
type Metric = prune.Metric

// Importance metrics.
const (
	MetricL1  Metric = prune.MetricL1
	MetricL2  Metric = prune.MetricL2
	MetricSum Metric = prune.MetricSum
)

// Controller integrates the mask engine into a training loop.
type Controller = prune.Controller

// Phase describes where a training step falls on the sparsity ramp.
type Phase = prune.Phase

// Controller phases.
const (
	PhaseWarmup  Phase = prune.PhaseWarmup
	PhaseRamping Phase = prune.PhaseRamping
	PhaseStable  Phase = prune.PhaseStable
)

// Sentinel errors.
var (
	ErrScheduleConfig = prune.ErrScheduleConfig
	ErrFrozen         = prune.ErrFrozen
)

// DefaultConfig returns a config with conventional defaults.
func DefaultConfig() Config {
	return prune.DefaultConfig()
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (Config, error) {
	return prune.LoadConfig(path)
}

// NewController creates a controller over every pointwise convolution in
// the graph.
func NewController(g *graph.Graph, cfg Config) (*Controller, error) {
	return prune.NewController(g, cfg)
}

// ComputeMask scores each output channel of the weight tensor and drops the
// lowest-importance channels at the target sparsity, always keeping at
// least one channel.
func ComputeMask(weights *tensor.Tensor, channelAxis int, target float64, metric Metric) ChannelMask {
	return prune.ComputeMask(weights, channelAxis, target, metric)
}

// ParseMetric parses a config-file metric name (sum, l1 or l2).
func ParseMetric(s string) (Metric, error) {
	return prune.ParseMetric(s)
}
