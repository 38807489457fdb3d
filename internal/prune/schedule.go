// Package prune implements scheduled channel sparsification for pointwise
// convolutions: a sparsity schedule, a per-channel mask engine, and a
// training-loop controller that decides when masks are recomputed and how
// they are applied.
package prune

import (
	"errors"
	"fmt"
	"math"
)

// ErrScheduleConfig marks invalid schedule configuration.
// Use errors.Is to test for it.
var ErrScheduleConfig = errors.New("invalid sparsity schedule")

// Schedule maps a training step to a target sparsity fraction.
//
// The ramp is zero before StartStep, MaxSparsity after EndStep, and in
// between follows
//
//	MaxSparsity * (1 - (1 - progress)^Power)
//
// where progress runs linearly from 0 to 1 over [StartStep, EndStep].
// Power 1 is a linear ramp; Power 3 is the conventional cubic ramp that
// prunes aggressively early and settles gently. TargetSparsity is a pure
// function of the step, so retried or replayed recomputations always see
// the same target.
type Schedule struct {
	StartStep   int
	EndStep     int
	MaxSparsity float64
	Power       float64
}

// Validate checks the schedule parameters.
// All returned errors wrap ErrScheduleConfig.
func (s Schedule) Validate() error {
	if s.StartStep < 0 {
		return fmt.Errorf("%w: start_step %d is negative", ErrScheduleConfig, s.StartStep)
	}
	if s.EndStep < s.StartStep {
		return fmt.Errorf("%w: end_step %d before start_step %d", ErrScheduleConfig, s.EndStep, s.StartStep)
	}
	if s.MaxSparsity < 0 || s.MaxSparsity > 1 {
		return fmt.Errorf("%w: max_sparsity %v outside [0, 1]", ErrScheduleConfig, s.MaxSparsity)
	}
	if s.Power <= 0 {
		return fmt.Errorf("%w: power %v must be positive", ErrScheduleConfig, s.Power)
	}
	return nil
}

// TargetSparsity returns the sparsity fraction for the given step,
// clamped to [0, MaxSparsity].
func (s Schedule) TargetSparsity(step int) float64 {
	switch {
	case step < s.StartStep:
		return 0
	case step >= s.EndStep:
		return s.MaxSparsity
	}
	// StartStep == EndStep is handled above: the ramp is a step function.
	progress := float64(step-s.StartStep) / float64(s.EndStep-s.StartStep)
	return s.MaxSparsity * (1 - math.Pow(1-progress, s.Power))
}
