package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadrant-sim/quadrant/internal/pi"
	"github.com/quadrant-sim/quadrant/internal/rng"
)

func testConfig() pi.Config {
	return pi.Config{
		WorkersPerBlock:  8,
		BlocksX:          3,
		BlocksY:          2,
		SamplesPerWorker: 50,
	}
}

// referenceCounts replays every worker's two batches sequentially and
// returns the exact per-block inside counts the reduction must produce.
func referenceCounts(cfg pi.Config, seed uint64) []float64 {
	blocks := make([]float64, cfg.Blocks())
	for blockRank := 0; blockRank < cfg.Blocks(); blockRank++ {
		for lane := 0; lane < cfg.WorkersPerBlock; lane++ {
			seq := blockRank*cfg.WorkersPerBlock + lane
			gen := rng.New(seed, uint64(seq))
			for i := 0; i < cfg.SamplesPerWorker; i++ {
				x, y := gen.Float64(), gen.Float64()
				if insideOpen(x, y) {
					blocks[blockRank]++
				}
			}
			for i := 0; i < cfg.SamplesPerWorker; i++ {
				x, y := gen.Float64(), gen.Float64()
				if insideClosed(x, y) {
					blocks[blockRank]++
				}
			}
		}
	}
	return blocks
}

func TestAllocateWithinLimit(t *testing.T) {
	b := New()
	require.NoError(t, b.Allocate(testConfig()))
	assert.Len(t, b.states, testConfig().Workers())
	assert.Len(t, b.partials, testConfig().Blocks())
}

func TestAllocateRejectsOversizedRequest(t *testing.T) {
	b := NewWithMemoryLimit(64)
	err := b.Allocate(testConfig())
	require.Error(t, err)

	var allocErr *pi.AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "generator state table", allocErr.Resource)
	assert.ErrorIs(t, err, errOutOfMemory)
}

func TestAllocateRejectsInvalidConfig(t *testing.T) {
	b := New()
	cfg := testConfig()
	cfg.WorkersPerBlock = 7 // not a power of two
	assert.Error(t, b.Allocate(cfg))

	cfg = testConfig()
	cfg.SamplesPerWorker = 0
	assert.Error(t, b.Allocate(cfg))
}

func TestSeedAllIndependentStreams(t *testing.T) {
	b := New()
	require.NoError(t, b.Allocate(testConfig()))
	require.NoError(t, b.SeedAll(42))

	// Two workers with different sequence indices must not share a stream.
	a, c := b.states[0], b.states[1]
	identical := true
	for i := 0; i < 64; i++ {
		if a.Uint32() != c.Uint32() {
			identical = false
			break
		}
	}
	assert.False(t, identical, "workers 0 and 1 produced identical streams")
}

func TestSeedAllOverwritesOnReseed(t *testing.T) {
	b := New()
	require.NoError(t, b.Allocate(testConfig()))

	require.NoError(t, b.SeedAll(1))
	first := b.states[5]
	old := make([]uint32, 32)
	for i := range old {
		old[i] = first.Uint32()
	}

	require.NoError(t, b.SeedAll(2))
	second := b.states[5]
	identical := true
	for i := range old {
		if second.Uint32() != old[i] {
			identical = false
			break
		}
	}
	assert.False(t, identical, "re-seeding leaked the first seed's stream")
}

func TestBoundaryClassificationAsymmetry(t *testing.T) {
	// Points exactly on the unit circle: excluded by the first-batch
	// classifier, included by the second-batch classifier.
	for _, p := range [][2]float64{{1, 0}, {0, 1}} {
		assert.False(t, insideOpen(p[0], p[1]), "insideOpen(%v, %v)", p[0], p[1])
		assert.True(t, insideClosed(p[0], p[1]), "insideClosed(%v, %v)", p[0], p[1])
	}
	assert.True(t, insideOpen(0.5, 0.5))
	assert.False(t, insideClosed(1, 1))
}

// TestSampleReducePartialSums checks each block's reduced count against a
// sequential replay of the same streams: the tree + exchange reduction must
// be exact, not approximate.
func TestSampleReducePartialSums(t *testing.T) {
	const seed = 7
	cfg := testConfig()

	b := New()
	require.NoError(t, b.Allocate(cfg))
	require.NoError(t, b.SeedAll(seed))
	require.NoError(t, b.SampleReduce())

	want := referenceCounts(cfg, seed)
	for i, w := range want {
		assert.Equal(t, w, b.partials[i], "block %d", i)
	}
}

// TestSampleReduceWideBlock runs the production block width so the tree
// phase and the 32-lane exchange phase are both exercised.
func TestSampleReduceWideBlock(t *testing.T) {
	const seed = 11
	cfg := pi.Config{WorkersPerBlock: 256, BlocksX: 2, BlocksY: 1, SamplesPerWorker: 20}

	b := New()
	require.NoError(t, b.Allocate(cfg))
	require.NoError(t, b.SeedAll(seed))
	require.NoError(t, b.SampleReduce())

	want := referenceCounts(cfg, seed)
	for i, w := range want {
		assert.Equal(t, w, b.partials[i], "block %d", i)
	}
}

func TestCollapseAccumulatesIntoSlotZero(t *testing.T) {
	b := New()
	require.NoError(t, b.Allocate(testConfig()))

	var want float64
	for i := range b.partials {
		b.partials[i] = float64(i + 1)
		want += float64(i + 1)
	}
	require.NoError(t, b.Collapse())

	got, err := b.ReadTotal()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStagesRequireAllocation(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.SeedAll(1), errNotAllocated)
	assert.ErrorIs(t, b.SampleReduce(), errNotAllocated)
	assert.ErrorIs(t, b.Collapse(), errNotAllocated)
	_, err := b.ReadTotal()
	assert.ErrorIs(t, err, errNotAllocated)
}

func TestReleaseInvalidatesBackend(t *testing.T) {
	b := New()
	require.NoError(t, b.Allocate(testConfig()))
	require.NoError(t, b.Release())

	assert.ErrorIs(t, b.SeedAll(1), errReleased)
	assert.True(t, errors.Is(b.Release(), errReleased))
}
