// Copyright 2025 The Quadrant Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/quadrant-sim/quadrant/internal/backend/cpu"
	"github.com/quadrant-sim/quadrant/internal/pi"
)

// Backend runs the estimation pipeline on a simulated data-parallel device:
// every worker is a goroutine, blocks synchronize through real barriers, and
// the narrow-group exchange uses an internally ordered lane shuffle.
type Backend = internalcpu.Backend

// Compile-time check that Backend implements pi.Backend.
var _ pi.Backend = (*Backend)(nil)

// New creates a CPU backend with the default device memory limit.
//
// Example:
//
//	import (
//	    "github.com/quadrant-sim/quadrant/backend/cpu"
//	    "github.com/quadrant-sim/quadrant/pi"
//	)
//
//	func main() {
//	    est, _ := pi.New(pi.DefaultConfig(), cpu.New())
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithMemoryLimit creates a CPU backend whose simulated device holds at
// most limit bytes. Useful for exercising allocation-failure paths.
func NewWithMemoryLimit(limit int64) *Backend {
	return internalcpu.NewWithMemoryLimit(limit)
}
