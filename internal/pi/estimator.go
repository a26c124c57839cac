package pi

import (
	"fmt"
	"sync"
	"time"
)

// Estimator orchestrates the host side of the pipeline. It owns exactly one
// backend and drives its stages in order: seed, sample-reduce, collapse,
// read-back. Every device resource lives between Initialize and Release.
type Estimator struct {
	cfg     Config
	backend Backend

	mu          sync.Mutex
	initialized bool
	released    bool
}

// New creates an estimator for the given configuration and backend. No
// device resources are reserved until Initialize.
func New(cfg Config, backend Backend) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, fmt.Errorf("pi: nil backend")
	}
	return &Estimator{
		cfg:     cfg,
		backend: backend,
	}, nil
}

// Config returns the estimator's grid configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Initialize reserves the device-side generator state table and partial-sum
// vector. It must be called exactly once before Estimate; a second call
// fails with ErrAlreadyInitialized. On allocation failure the estimator
// stays uninitialized.
func (e *Estimator) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return ErrReleased
	}
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if err := e.backend.Allocate(e.cfg); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// Estimate runs one full sampling cycle and returns the π estimate. The run
// seed is time-derived, so repeated calls converge statistically but are not
// bit-reproducible across invocations.
func (e *Estimator) Estimate() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return 0, ErrReleased
	}
	if !e.initialized {
		return 0, ErrNotInitialized
	}

	seed := uint64(time.Now().UnixNano())
	return e.estimateLocked(seed)
}

// EstimateSeeded runs one cycle with an explicit run seed. Streams are
// deterministic per (seed, sequence); the estimate itself still depends on
// the configured grid.
func (e *Estimator) EstimateSeeded(seed uint64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return 0, ErrReleased
	}
	if !e.initialized {
		return 0, ErrNotInitialized
	}
	return e.estimateLocked(seed)
}

func (e *Estimator) estimateLocked(seed uint64) (float64, error) {
	if err := e.backend.SeedAll(seed); err != nil {
		return 0, fmt.Errorf("pi: seeding generator states: %w", err)
	}
	if err := e.backend.SampleReduce(); err != nil {
		return 0, fmt.Errorf("pi: sampling: %w", err)
	}
	if err := e.backend.Collapse(); err != nil {
		return 0, fmt.Errorf("pi: collapsing partial sums: %w", err)
	}
	inside, err := e.backend.ReadTotal()
	if err != nil {
		return 0, fmt.Errorf("pi: reading result: %w", err)
	}
	return 4.0 * inside / float64(e.cfg.TotalSamples()), nil
}

// Release frees all device resources. No further Estimate calls are valid;
// a second Release fails with ErrReleased.
func (e *Estimator) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return ErrReleased
	}
	e.released = true
	e.initialized = false
	if err := e.backend.Release(); err != nil {
		return fmt.Errorf("pi: releasing backend: %w", err)
	}
	return nil
}
