// Package device simulates a data-parallel accelerator on the host.
//
// Kernels are launched over a 2-D grid of execution blocks; every thread of a
// block runs as its own goroutine so block-wide barriers and lane exchange
// have real synchronization semantics. Blocks are independent: they never
// share mutable state, and the engine schedules them across a bounded set of
// runners.
package device

import (
	"fmt"
	"runtime"
	"sync"
)

// Dim3 represents 3-D dimensions for grid and block shapes.
type Dim3 struct {
	X, Y, Z int
}

// Count returns the total number of elements.
func (d Dim3) Count() int {
	return d.X * d.Y * d.Z
}

func (d Dim3) valid() bool {
	return d.X > 0 && d.Y > 0 && d.Z > 0
}

// Kernel is the function executed once per thread of a launch.
type Kernel func(t *Thread)

// Thread identifies one execution lane within a launch and carries the
// block-local synchronization primitives.
type Thread struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3

	block *blockState
}

// Rank returns the thread's linear index within its block.
func (t *Thread) Rank() int {
	return (t.ThreadIdx.Z*t.BlockDim.Y+t.ThreadIdx.Y)*t.BlockDim.X + t.ThreadIdx.X
}

// BlockRank returns the block's linear index within the grid.
func (t *Thread) BlockRank() int {
	return (t.BlockIdx.Z*t.GridDim.Y+t.BlockIdx.Y)*t.GridDim.X + t.BlockIdx.X
}

// GlobalRank returns the thread's linear index within the whole launch.
// It is a bijection from (block, lane) to [0, gridSize*blockSize), used as
// the sequence index keying each worker's random stream.
func (t *Thread) GlobalRank() int {
	return t.BlockRank()*t.BlockDim.Count() + t.Rank()
}

// Sync is a full block-wide barrier. Every thread of the block must reach it
// before any thread proceeds.
func (t *Thread) Sync() {
	t.block.barrier.Wait()
}

// Shared returns the block's shared scratch buffer. All threads of a block
// observe the same slice; writes are ordered by Sync.
func (t *Thread) Shared() []float64 {
	return t.block.shared
}

// ShuffleDown exchanges register values among the leading width lanes of the
// block: it returns the value passed by the lane delta positions ahead, or v
// unchanged when that lane is outside the group. Every lane with Rank() <
// width must call it; lanes outside the group must not. The exchange is
// internally ordered, so no block barrier is needed around it.
func (t *Thread) ShuffleDown(width int, v float64, delta int) float64 {
	b := t.block
	lane := t.Rank()
	bar := b.group(width)

	b.exchange[lane] = v
	bar.Wait()
	out := v
	if lane+delta < width {
		out = b.exchange[lane+delta]
	}
	bar.Wait()
	return out
}

// blockState holds the per-block resources shared by its threads.
type blockState struct {
	barrier  *Barrier
	shared   []float64
	exchange []float64
	groups   map[int]*Barrier
}

func newBlockState(threads, sharedLen int) *blockState {
	bs := &blockState{
		barrier:  NewBarrier(threads),
		shared:   make([]float64, sharedLen),
		exchange: make([]float64, threads),
		groups:   make(map[int]*Barrier),
	}
	// Sub-barriers for every power-of-two group width, so narrow-group
	// exchange never allocates mid-kernel.
	for w := 1; w <= threads; w <<= 1 {
		bs.groups[w] = NewBarrier(w)
	}
	return bs
}

func (bs *blockState) group(width int) *Barrier {
	bar, ok := bs.groups[width]
	if !ok {
		panic(fmt.Sprintf("device: no exchange group of width %d", width))
	}
	return bar
}

// Engine executes kernel launches. The zero value is not usable; use New.
type Engine struct {
	runners int
}

// New creates an engine that schedules up to runtime.NumCPU() blocks
// concurrently.
func New() *Engine {
	return NewEngine(runtime.NumCPU())
}

// NewEngine creates an engine with an explicit block-level parallelism bound.
func NewEngine(runners int) *Engine {
	if runners <= 0 {
		runners = 1
	}
	return &Engine{runners: runners}
}

// Launch runs kernel over the given grid and block shapes and returns once
// every thread has completed. Each block receives a fresh shared buffer of
// sharedLen float64 slots. The return is the launch-completion barrier: all
// device-side writes are visible to the caller afterwards.
func (e *Engine) Launch(grid, block Dim3, sharedLen int, kernel Kernel) error {
	if !grid.valid() || !block.valid() {
		return fmt.Errorf("device: invalid launch shape grid=%v block=%v", grid, block)
	}
	if sharedLen < 0 {
		return fmt.Errorf("device: negative shared buffer length %d", sharedLen)
	}

	gridSize := grid.Count()
	runners := e.runners
	if gridSize < runners {
		runners = gridSize
	}
	blocksPerRunner := (gridSize + runners - 1) / runners

	var wg sync.WaitGroup
	wg.Add(runners)
	for r := 0; r < runners; r++ {
		start := r * blocksPerRunner
		end := min(start+blocksPerRunner, gridSize)
		go func(start, end int) {
			defer wg.Done()
			for blockID := start; blockID < end; blockID++ {
				runBlock(linearTo3D(blockID, grid), grid, block, sharedLen, kernel)
			}
		}(start, end)
	}
	wg.Wait()
	return nil
}

// runBlock executes all threads of one block as goroutines and waits for
// them. Threads within a block synchronize through the block barrier only.
func runBlock(blockIdx, grid, block Dim3, sharedLen int, kernel Kernel) {
	blockSize := block.Count()
	bs := newBlockState(blockSize, sharedLen)

	var wg sync.WaitGroup
	wg.Add(blockSize)
	for threadID := 0; threadID < blockSize; threadID++ {
		t := &Thread{
			BlockIdx:  blockIdx,
			ThreadIdx: linearTo3D(threadID, block),
			BlockDim:  block,
			GridDim:   grid,
			block:     bs,
		}
		go func() {
			defer wg.Done()
			kernel(t)
		}()
	}
	wg.Wait()
}

// linearTo3D converts a linear index to 3-D coordinates.
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
