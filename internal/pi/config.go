// Package pi implements Monte Carlo estimation of π on a data-parallel
// compute backend.
//
// The pipeline has four device-side stages: allocate per-worker generator
// state and the per-block partial-sum vector, seed every worker's stream,
// sample and reduce one partial sum per block, and collapse the partials
// into a single grand total that the host scales by 4/totalSamples.
package pi

import "fmt"

// Config holds the execution-grid constants for one estimator. All fields
// must be positive; WorkersPerBlock must additionally be a power of two so
// the block reduction can halve its window cleanly.
type Config struct {
	// WorkersPerBlock is the number of workers in one execution block.
	WorkersPerBlock int
	// BlocksX and BlocksY give the 2-D shape of the block grid.
	BlocksX, BlocksY int
	// SamplesPerWorker is the quota of (x, y) pairs each worker draws per
	// batch; every worker draws two batches per estimation cycle.
	SamplesPerWorker int
}

// DefaultConfig returns the production-scale configuration:
// 256 workers across a 10x10 grid, 600 samples per worker per batch,
// 30,720,000 samples per estimate.
func DefaultConfig() Config {
	return Config{
		WorkersPerBlock:  256,
		BlocksX:          10,
		BlocksY:          10,
		SamplesPerWorker: 600,
	}
}

// Validate checks the grid invariants.
func (c Config) Validate() error {
	if c.WorkersPerBlock <= 0 || c.WorkersPerBlock&(c.WorkersPerBlock-1) != 0 {
		return fmt.Errorf("pi: workersPerBlock must be a positive power of two, got %d", c.WorkersPerBlock)
	}
	if c.BlocksX <= 0 || c.BlocksY <= 0 {
		return fmt.Errorf("pi: block grid must be positive, got %dx%d", c.BlocksX, c.BlocksY)
	}
	if c.SamplesPerWorker <= 0 {
		return fmt.Errorf("pi: samplesPerWorker must be positive, got %d", c.SamplesPerWorker)
	}
	return nil
}

// Blocks returns the total number of execution blocks.
func (c Config) Blocks() int {
	return c.BlocksX * c.BlocksY
}

// Workers returns the total number of workers in the grid.
func (c Config) Workers() int {
	return c.Blocks() * c.WorkersPerBlock
}

// TotalSamples returns the number of points classified per estimation cycle.
// Each worker draws two batches of SamplesPerWorker pairs.
func (c Config) TotalSamples() int64 {
	return int64(c.Workers()) * int64(c.SamplesPerWorker) * 2
}
