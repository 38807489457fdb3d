// Copyright 2026 Scalpel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package surgery provides the public API for post-training network
// surgery: removing masked channels and every shape-coupled dependent
// parameter from a trained graph, and verifying the result.
//
// Example:
//
//	masks := ctrl.FinalMasks()
//	reduced, plan, err := surgery.Apply(g, masks)
//	if err := surgery.Verify(g, reduced, masks, sample, 0); err != nil {
//	    // the reduced graph must not be trusted or exported
//	}
package surgery

import (
	"github.com/born-ml/scalpel/internal/graph"
	"github.com/born-ml/scalpel/internal/prune"
	"github.com/born-ml/scalpel/internal/surgery"
	"github.com/born-ml/scalpel/internal/tensor"
	"github.com/born-ml/scalpel/internal/validate"
)

// Edge records that a producer's output channels index a consumer's
// parameter along a given axis.
type Edge = surgery.Edge

// Param identifies the consumer parameter slot an Edge couples to.
type Param = surgery.Param

// Plan is the per-layer summary of a surgery run.
type Plan = surgery.Plan

// LayerReduction summarizes one layer's channel reduction.
type LayerReduction = surgery.LayerReduction

// ShapeMismatchError identifies an inconsistent layer pair.
type ShapeMismatchError = surgery.ShapeMismatchError

// Sentinel errors.
var (
	ErrDependencyUnresolved = surgery.ErrDependencyUnresolved
	ErrShapeMismatch        = surgery.ErrShapeMismatch
	ErrValidationMismatch   = validate.ErrValidationMismatch
)

// DefaultTolerance is the element-wise tolerance Verify uses when the
// caller passes a non-positive tolerance.
const DefaultTolerance = validate.DefaultTolerance

// ExtractDependencies walks the graph forward from a pruned pointwise
// convolution and returns every parameter slot coupled to its output
// channels.
func ExtractDependencies(g *graph.Graph, layerName string) ([]Edge, error) {
	return surgery.ExtractDependencies(g, layerName)
}

// Apply removes the dropped channels of every masked layer from a deep copy
// of the graph. On any error no partial graph is returned.
func Apply(g *graph.Graph, masks map[string]prune.ChannelMask) (*graph.Graph, Plan, error) {
	return surgery.Apply(g, masks)
}

// Verify runs the same input through the masked original and the reduced
// graph and fails hard on any divergence beyond floating-point rounding.
func Verify(original, reduced *graph.Graph, masks map[string]prune.ChannelMask, input *tensor.Tensor, tolerance float64) error {
	return validate.Equivalence(original, reduced, masks, input, tolerance)
}
