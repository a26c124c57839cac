package cpu

import (
	"github.com/quadrant-sim/quadrant/internal/device"
	"github.com/quadrant-sim/quadrant/internal/reduce"
	"github.com/quadrant-sim/quadrant/internal/rng"
)

// exchangeWidth is the hand-off threshold between the barrier tree phase and
// the narrow-group exchange phase of the block reduction.
const exchangeWidth = 32

// insideOpen reports whether (x, y) falls strictly inside the unit
// quarter-circle. Used by the first sample batch.
func insideOpen(x, y float64) bool {
	return x*x+y*y < 1
}

// insideClosed includes the boundary. The second batch counts boundary hits;
// under continuous sampling the asymmetry with the first batch has
// probability zero, and it is preserved as documented behavior.
func insideClosed(x, y float64) bool {
	return x*x+y*y <= 1
}

// seedKernel initializes one worker's generator slot. The worker's global
// rank is its sequence index, a bijection over the whole grid, so every
// worker receives an independent stream.
func (b *Backend) seedKernel(t *device.Thread) {
	seq := t.GlobalRank()
	b.states[seq] = rng.New(b.seed, uint64(seq))
}

// sampleKernel is the core worker: two sampling batches into the block
// reduction buffer, then the two-phase reduction, then the block leader's
// single write into the partial-sum vector.
func (b *Backend) sampleKernel(t *device.Thread) {
	buf := t.Shared()
	lane := t.Rank()
	workers := t.BlockDim.Count()
	gen := &b.states[t.GlobalRank()]
	quota := b.cfg.SamplesPerWorker

	// Batch 1: strict classification into the worker's own slot.
	var inside float64
	for i := 0; i < quota; i++ {
		x := gen.Float64()
		y := gen.Float64()
		if insideOpen(x, y) {
			inside++
		}
	}
	buf[lane] = inside

	// Batch 2: same advanced state, inclusive classification, offset slot.
	inside = 0
	for i := 0; i < quota; i++ {
		x := gen.Float64()
		y := gen.Float64()
		if insideClosed(x, y) {
			inside++
		}
	}
	buf[lane+workers] = inside
	t.Sync()

	// Phase 1: barrier tree over the 2*workers entries down to the hand-off
	// window. Phase 2: narrow-group exchange to one converged sum.
	window := reduce.Tree(buf, lane, 2*workers, exchangeWidth, t.Sync)
	sum, leader := reduce.Narrow(buf, lane, window, func(v float64, delta int) float64 {
		return t.ShuffleDown(window/2, v, delta)
	})
	if leader {
		b.partials[t.BlockRank()] = sum
	}
}

// collapseKernel sequentially accumulates every block's partial sum into
// slot 0. Runs as a single-worker launch; the summation order is fixed, so
// the total is deterministic for a given partial vector.
func (b *Backend) collapseKernel(_ *device.Thread) {
	var sum float64
	for _, p := range b.partials {
		sum += p
	}
	b.partials[0] = sum
}
