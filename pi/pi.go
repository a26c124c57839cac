// Copyright 2025 The Quadrant Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pi provides the public API for Monte Carlo π estimation on a
// data-parallel compute backend.
//
// An Estimator drives a four-stage device pipeline: per-worker generator
// state allocation, seeding, sample-and-reduce, and the final collapse of
// per-block partial sums. The host reads back one scalar and scales it by
// 4/totalSamples.
//
// Example:
//
//	backend := cpu.New()
//	est, err := pi.New(pi.DefaultConfig(), backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := est.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer est.Release()
//
//	value, err := est.Estimate()
package pi

import (
	"github.com/quadrant-sim/quadrant/internal/pi"
)

// Config holds the execution-grid constants: workers per block, the 2-D
// block grid shape, and the per-batch sample quota of each worker.
type Config = pi.Config

// Backend is the contract a compute device must satisfy to run the
// estimation pipeline.
type Backend = pi.Backend

// Estimator runs estimation cycles against one backend. Create with New,
// reserve device resources with Initialize, and free them with Release.
type Estimator = pi.Estimator

// AllocationError reports a failed device memory reservation.
type AllocationError = pi.AllocationError

// Lifecycle errors.
var (
	ErrNotInitialized     = pi.ErrNotInitialized
	ErrAlreadyInitialized = pi.ErrAlreadyInitialized
	ErrReleased           = pi.ErrReleased
)

// New creates an estimator for the given configuration and backend.
func New(cfg Config, backend Backend) (*Estimator, error) {
	return pi.New(cfg, backend)
}

// DefaultConfig returns the production-scale grid: 256 workers per block,
// a 10x10 block grid, and 600 samples per worker per batch.
func DefaultConfig() Config {
	return pi.DefaultConfig()
}
