// Package main provides the quadrant CLI.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/quadrant-sim/quadrant/backend/cpu"
	"github.com/quadrant-sim/quadrant/pi"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("quadrant %s\n", version)
		return
	}

	cfg := pi.DefaultConfig()
	backend := cpu.New()

	est, err := pi.New(cfg, backend)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := est.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = est.Release() }()

	value, err := est.Estimate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("backend:  %s\n", backend.Name())
	fmt.Printf("samples:  %d\n", cfg.TotalSamples())
	fmt.Printf("estimate: %.8f\n", value)
	fmt.Printf("error:    %.8f\n", math.Abs(value-math.Pi))
}
