package prune

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Validate(t *testing.T) {
	good := Schedule{StartStep: 10, EndStep: 100, MaxSparsity: 0.5, Power: 3}
	require.NoError(t, good.Validate())

	cases := []struct {
		name string
		s    Schedule
	}{
		{"negative start", Schedule{StartStep: -1, EndStep: 10, MaxSparsity: 0.5, Power: 1}},
		{"end before start", Schedule{StartStep: 10, EndStep: 5, MaxSparsity: 0.5, Power: 1}},
		{"sparsity above 1", Schedule{StartStep: 0, EndStep: 10, MaxSparsity: 1.5, Power: 1}},
		{"negative sparsity", Schedule{StartStep: 0, EndStep: 10, MaxSparsity: -0.1, Power: 1}},
		{"zero power", Schedule{StartStep: 0, EndStep: 10, MaxSparsity: 0.5, Power: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrScheduleConfig))
		})
	}
}

func TestSchedule_Monotonic(t *testing.T) {
	for _, power := range []float64{1, 2, 3} {
		s := Schedule{StartStep: 100, EndStep: 1000, MaxSparsity: 0.8, Power: power}
		prev := -1.0
		for step := 0; step <= 1200; step += 7 {
			got := s.TargetSparsity(step)
			assert.GreaterOrEqual(t, got, prev, "power %v step %d", power, step)
			assert.LessOrEqual(t, got, s.MaxSparsity, "never exceeds configured maximum")
			prev = got
		}
	}
}

func TestSchedule_Endpoints(t *testing.T) {
	s := Schedule{StartStep: 100, EndStep: 1000, MaxSparsity: 0.8, Power: 3}

	assert.Equal(t, 0.0, s.TargetSparsity(0))
	assert.Equal(t, 0.0, s.TargetSparsity(99))
	assert.Equal(t, 0.0, s.TargetSparsity(100), "ramp starts at zero")
	assert.Equal(t, 0.8, s.TargetSparsity(1000))
	assert.Equal(t, 0.8, s.TargetSparsity(1_000_000), "clamped after end")
}

func TestSchedule_LinearRampMidpoint(t *testing.T) {
	s := Schedule{StartStep: 0, EndStep: 100, MaxSparsity: 0.6, Power: 1}
	assert.InDelta(t, 0.3, s.TargetSparsity(50), 1e-12)
}

func TestSchedule_PureFunction(t *testing.T) {
	s := Schedule{StartStep: 10, EndStep: 500, MaxSparsity: 0.9, Power: 3}
	// Identical step yields identical sparsity independent of call order.
	a := s.TargetSparsity(250)
	_ = s.TargetSparsity(499)
	_ = s.TargetSparsity(11)
	b := s.TargetSparsity(250)
	assert.Equal(t, a, b)
}

func TestSchedule_StepFunction(t *testing.T) {
	// StartStep == EndStep degenerates to a step function.
	s := Schedule{StartStep: 50, EndStep: 50, MaxSparsity: 0.4, Power: 1}
	assert.Equal(t, 0.0, s.TargetSparsity(49))
	assert.Equal(t, 0.4, s.TargetSparsity(50))
}
