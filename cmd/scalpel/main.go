// Package main provides the Scalpel CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/born-ml/scalpel/internal/prune"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Scalpel %s\n", version)
			return
		case "schedule":
			runSchedule(os.Args[2:])
			return
		}
	}

	fmt.Println("Scalpel - Channel Pruning and Network Surgery for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version     Show version")
	fmt.Println("  schedule    Validate a pruning config and print the sparsity ramp")
}

// runSchedule loads a pruning config, validates it, and prints the target
// sparsity at every mask recompute step of the ramp.
func runSchedule(args []string) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "scalpel"})

	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a pruning config YAML file")
	if err := fs.Parse(args); err != nil {
		logger.Fatal("parse flags", "err", err)
	}

	var (
		cfg prune.Config
		err error
	)
	if *configPath == "" {
		cfg = prune.DefaultConfig()
		logger.Info("no config given, using defaults")
	} else {
		cfg, err = prune.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("load config", "path", *configPath, "err", err)
		}
	}

	sched := cfg.Schedule()
	logger.Info("schedule resolved",
		"start", cfg.StartStep, "end", cfg.EndStep,
		"max_sparsity", cfg.MaxSparsity, "power", cfg.Power,
		"recompute_interval", cfg.RecomputeInterval,
		"metric", cfg.ImportanceMetric)

	fmt.Printf("%-10s %s\n", "step", "target sparsity")
	for step := cfg.StartStep; step <= cfg.EndStep; step += cfg.RecomputeInterval {
		fmt.Printf("%-10d %.4f\n", step, sched.TargetSparsity(step))
	}
	if last := cfg.EndStep; (last-cfg.StartStep)%cfg.RecomputeInterval != 0 {
		fmt.Printf("%-10d %.4f\n", last, sched.TargetSparsity(last))
	}
}
