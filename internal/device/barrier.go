package device

import "sync"

// Barrier is a reusable synchronization point for a fixed party count.
// Wait blocks until all parties have arrived, then releases every waiter and
// resets for the next phase.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	phase   uint64
}

// NewBarrier creates a barrier for n parties. n must be positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic("device: barrier party count must be positive")
	}
	b := &Barrier{parties: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties of the current phase have called Wait.
func (b *Barrier) Wait() {
	b.mu.Lock()
	phase := b.phase
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.phase++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for phase == b.phase {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
