package prune

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
start_step: 1000
end_step: 5000
max_sparsity: 0.75
recompute_interval: 100
importance_metric: l2
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.StartStep)
	assert.Equal(t, 5000, cfg.EndStep)
	assert.Equal(t, 0.75, cfg.MaxSparsity)
	assert.Equal(t, 100, cfg.RecomputeInterval)
	assert.Equal(t, "l2", cfg.ImportanceMetric)
	assert.Equal(t, 3.0, cfg.Power, "unset power defaults to cubic")
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
start_step: 100
end_step: 10
max_sparsity: 0.5
recompute_interval: 100
`), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScheduleConfig))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecomputeInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrScheduleConfig)

	cfg = DefaultConfig()
	cfg.ImportanceMetric = "max"
	assert.Error(t, cfg.Validate())
}
