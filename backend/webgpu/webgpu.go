//go:build windows

// Copyright 2025 The Quadrant Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated estimation.
//
// The pipeline stages run as WGSL compute shaders: per-worker xorshift128
// state seeded from (seed, sequence), workgroup shared-memory reduction, and
// a single-invocation final collapse.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	est, _ := pi.New(pi.DefaultConfig(), gpu)
package webgpu

import (
	internalwebgpu "github.com/quadrant-sim/quadrant/internal/backend/webgpu"
	"github.com/quadrant-sim/quadrant/internal/pi"
)

// Backend runs the estimation pipeline on a WebGPU device.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements pi.Backend.
var _ pi.Backend = (*Backend)(nil)

// New creates a WebGPU backend. Returns an error if no compatible device is
// available. Call Release (directly or via the estimator) to free GPU
// resources.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system, for
// graceful fallback to the CPU backend:
//
//	var backend pi.Backend
//	if webgpu.IsAvailable() {
//	    backend, _ = webgpu.New()
//	} else {
//	    backend = cpu.New()
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
