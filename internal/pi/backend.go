package pi

// Backend runs the four device-side pipeline stages for one estimator.
// Implementations own the generator state table and the partial-sum vector;
// the host never touches either except through ReadTotal.
//
// Implementations:
//   - cpu: simulated data-parallel device (goroutine blocks with barriers)
//   - webgpu: WGSL compute shaders via go-webgpu
type Backend interface {
	// Allocate reserves the generator state table (one slot per worker) and
	// the partial-sum vector (one slot per block). It fails with
	// *AllocationError when the device cannot satisfy a reservation.
	Allocate(cfg Config) error

	// SeedAll initializes every worker's generator from (seed, sequence),
	// where sequence is the worker's position in the grid. Re-seeding fully
	// overwrites all slots. All writes are visible once SeedAll returns.
	SeedAll(seed uint64) error

	// SampleReduce draws both sample batches on every worker and reduces
	// each block's counts to one slot of the partial-sum vector.
	SampleReduce() error

	// Collapse accumulates the whole partial-sum vector into slot 0. The
	// remaining slots are undefined afterwards.
	Collapse() error

	// ReadTotal reads slot 0 of the partial-sum vector back to the host.
	ReadTotal() (float64, error)

	// Release frees all device resources. The backend is unusable after.
	Release() error

	// Name identifies the backend for diagnostics.
	Name() string
}
