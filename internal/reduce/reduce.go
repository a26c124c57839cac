// Package reduce provides the block-level parallel reduction building blocks
// used by the sampling pipeline: a barrier-synchronized tree reduction over a
// shared buffer, and a narrow-group exchange reduction for the final lanes.
//
// Both functions are pure over their buffer and synchronization primitives,
// so they can be exercised under a simulated scheduler without any device.
package reduce

// Tree collapses buf pairwise by repeatedly halving the active window: on
// each step every rank below the window width adds the entry one window
// width ahead into its own slot, then all ranks synchronize. Halving stops
// once the window is at most 2*handoff wide, leaving the remainder for the
// exchange phase. It returns the final window width.
//
// width and handoff must be powers of two. sync must be a barrier reached by
// every rank of the block; entries written by one rank are read by another
// on the following step, so a full barrier between steps is required.
func Tree(buf []float64, rank, width, handoff int, sync func()) int {
	for width > 2*handoff {
		width >>= 1
		if rank < width {
			buf[rank] += buf[rank+width]
		}
		sync()
	}
	return width
}

// Narrow collapses the leading window of buf into a single value. The first
// window/2 ranks participate: each sums its own entry with the entry one
// group width ahead, then performs log2(group) shuffle-and-add exchange
// steps. No barrier is needed; shuffle itself must order the exchange within
// the group.
//
// The converged sum and true are returned on rank 0. Ranks outside the group
// return immediately with false; participating ranks other than 0 return
// their partial value with false.
func Narrow(buf []float64, rank, window int, shuffle func(v float64, delta int) float64) (float64, bool) {
	if window == 1 {
		return buf[0], rank == 0
	}
	group := window / 2
	if rank >= group {
		return 0, false
	}
	v := buf[rank] + buf[rank+group]
	for delta := group / 2; delta > 0; delta >>= 1 {
		v += shuffle(v, delta)
	}
	return v, rank == 0
}
