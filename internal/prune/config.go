package prune

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the pruning configuration, loadable from a yaml file.
//
// Recognized fields:
//
//	start_step: 1000         # ramp begins (sparsity 0 before this)
//	end_step: 5000           # ramp ends (sparsity pinned at max_sparsity after)
//	max_sparsity: 0.5        # fraction of channels to drop, in [0, 1]
//	recompute_interval: 100  # recompute masks every i-th step
//	importance_metric: l1    # sum, l1 or l2 (default l1)
//	power: 3                 # ramp curve exponent (1 = linear)
type Config struct {
	StartStep         int     `yaml:"start_step"`
	EndStep           int     `yaml:"end_step"`
	MaxSparsity       float64 `yaml:"max_sparsity"`
	RecomputeInterval int     `yaml:"recompute_interval"`
	ImportanceMetric  string  `yaml:"importance_metric"`
	Power             float64 `yaml:"power"`
}

// DefaultConfig returns a config with conventional defaults: a cubic ramp to
// 50% sparsity over steps 0..1000, recomputed every 100 steps.
func DefaultConfig() Config {
	return Config{
		StartStep:         0,
		EndStep:           1000,
		MaxSparsity:       0.5,
		RecomputeInterval: 100,
		ImportanceMetric:  "l1",
		Power:             3,
	}
}

// LoadConfig reads and validates a yaml config file.
// Unset power defaults to 3; unset importance_metric defaults to l1.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Power == 0 {
		cfg.Power = 3
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
// Schedule violations wrap ErrScheduleConfig.
func (c Config) Validate() error {
	if err := c.Schedule().Validate(); err != nil {
		return err
	}
	if c.RecomputeInterval <= 0 {
		return fmt.Errorf("%w: recompute_interval %d must be positive", ErrScheduleConfig, c.RecomputeInterval)
	}
	if _, err := ParseMetric(c.ImportanceMetric); err != nil {
		return err
	}
	return nil
}

// Schedule returns the sparsity schedule this config describes.
func (c Config) Schedule() Schedule {
	return Schedule{
		StartStep:   c.StartStep,
		EndStep:     c.EndStep,
		MaxSparsity: c.MaxSparsity,
		Power:       c.Power,
	}
}
