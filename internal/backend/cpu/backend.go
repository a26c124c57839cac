// Package cpu implements the sampling pipeline on a simulated data-parallel
// device: goroutine blocks with real barriers and lane exchange, so the
// reduction runs with the same synchronization structure an accelerator
// would enforce.
package cpu

import (
	"errors"
	"fmt"

	"github.com/quadrant-sim/quadrant/internal/device"
	"github.com/quadrant-sim/quadrant/internal/pi"
	"github.com/quadrant-sim/quadrant/internal/rng"
)

const (
	// stateSlotBytes is the footprint of one generator-state slot.
	stateSlotBytes = 16
	// partialSlotBytes is the footprint of one partial-sum slot.
	partialSlotBytes = 8

	// defaultMemoryLimit bounds the simulated device's resident memory.
	defaultMemoryLimit = 4 << 30
)

var (
	errOutOfMemory  = errors.New("device memory exhausted")
	errNotAllocated = errors.New("cpu: backend not allocated")
	errReleased     = errors.New("cpu: backend released")
)

// Backend runs the pipeline stages on the simulated device. It owns the
// generator state table and the partial-sum vector between Allocate and
// Release.
type Backend struct {
	engine      *device.Engine
	memoryLimit int64

	cfg       pi.Config
	allocated bool
	released  bool

	states   []rng.PCG
	partials []float64
	seed     uint64
}

// New creates a backend with the default device memory limit.
func New() *Backend {
	return NewWithMemoryLimit(defaultMemoryLimit)
}

// NewWithMemoryLimit creates a backend whose simulated device holds at most
// limit bytes of resident state. Allocations beyond the limit fail with
// *pi.AllocationError, which lets tests exercise the failure path cheaply.
func NewWithMemoryLimit(limit int64) *Backend {
	return &Backend{
		engine:      device.New(),
		memoryLimit: limit,
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Allocate reserves the generator state table and the partial-sum vector.
func (b *Backend) Allocate(cfg pi.Config) error {
	if b.released {
		return errReleased
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stateBytes := int64(cfg.Workers()) * stateSlotBytes
	partialBytes := int64(cfg.Blocks()) * partialSlotBytes
	if stateBytes > b.memoryLimit {
		return &pi.AllocationError{Resource: "generator state table", Bytes: stateBytes, Err: errOutOfMemory}
	}
	if stateBytes+partialBytes > b.memoryLimit {
		return &pi.AllocationError{Resource: "partial-sum vector", Bytes: partialBytes, Err: errOutOfMemory}
	}

	b.cfg = cfg
	b.states = make([]rng.PCG, cfg.Workers())
	b.partials = make([]float64, cfg.Blocks())
	b.allocated = true
	return nil
}

// SeedAll initializes every worker's generator state from (seed, sequence).
// The launch is synchronous, so all writes are visible on return.
func (b *Backend) SeedAll(seed uint64) error {
	if err := b.usable(); err != nil {
		return err
	}
	b.seed = seed
	if err := b.engine.Launch(b.grid(), b.block(), 0, b.seedKernel); err != nil {
		return fmt.Errorf("cpu: seed launch: %w", err)
	}
	return nil
}

// SampleReduce runs the sampler kernel: two batches per worker, then the
// tree and exchange reduction down to one partial sum per block.
func (b *Backend) SampleReduce() error {
	if err := b.usable(); err != nil {
		return err
	}
	// The block reduction buffer holds 2*WorkersPerBlock logical entries:
	// one per worker per batch.
	sharedLen := 2 * b.cfg.WorkersPerBlock
	if err := b.engine.Launch(b.grid(), b.block(), sharedLen, b.sampleKernel); err != nil {
		return fmt.Errorf("cpu: sample launch: %w", err)
	}
	return nil
}

// Collapse accumulates the partial-sum vector into slot 0 with a single
// designated worker. All other slots are stale afterwards.
func (b *Backend) Collapse() error {
	if err := b.usable(); err != nil {
		return err
	}
	one := device.Dim3{X: 1, Y: 1, Z: 1}
	if err := b.engine.Launch(one, one, 0, b.collapseKernel); err != nil {
		return fmt.Errorf("cpu: collapse launch: %w", err)
	}
	return nil
}

// ReadTotal returns slot 0 of the partial-sum vector.
func (b *Backend) ReadTotal() (float64, error) {
	if err := b.usable(); err != nil {
		return 0, err
	}
	return b.partials[0], nil
}

// Release frees the device-resident allocations.
func (b *Backend) Release() error {
	if b.released {
		return errReleased
	}
	b.released = true
	b.allocated = false
	b.states = nil
	b.partials = nil
	return nil
}

func (b *Backend) usable() error {
	if b.released {
		return errReleased
	}
	if !b.allocated {
		return errNotAllocated
	}
	return nil
}

func (b *Backend) grid() device.Dim3 {
	return device.Dim3{X: b.cfg.BlocksX, Y: b.cfg.BlocksY, Z: 1}
}

func (b *Backend) block() device.Dim3 {
	return device.Dim3{X: b.cfg.WorkersPerBlock, Y: 1, Z: 1}
}
