// Package rng implements the per-worker pseudo-random generator used by the
// sampling pipeline.
//
// Each worker owns one PCG-32 generator keyed by a run-wide seed and the
// worker's sequence index. Distinct sequence indices select distinct LCG
// increments, so two workers seeded from the same run seed never share a
// sub-sequence.
package rng

import "math/bits"

// mul is the PCG-32 LCG multiplier.
const mul = 6364136223846793005

// PCG is a PCG-XSH-RR generator. The zero value is invalid; use New.
type PCG struct {
	state uint64
	inc   uint64
}

// New constructs a generator for the given run seed and stream sequence
// index. The increment is derived from the sequence so that every sequence
// yields a statistically independent stream.
func New(seed, sequence uint64) PCG {
	inc := sequence<<1 | 1
	return PCG{
		state: (inc+seed)*mul + inc,
		inc:   inc,
	}
}

// Uint32 returns the next random uint32.
func (p *PCG) Uint32() uint32 {
	oldstate := p.state
	p.state = oldstate*mul + p.inc

	xorshift := uint32(((oldstate >> 18) ^ oldstate) >> 27)
	return bits.RotateLeft32(xorshift, -int(oldstate>>59))
}

// Float64 returns a float uniformly in [0, 1) with 53 bits of precision.
func (p *PCG) Float64() float64 {
	hi := uint64(p.Uint32())
	lo := uint64(p.Uint32())
	u53 := hi<<21 | lo>>11
	return float64(u53) / (1 << 53)
}
