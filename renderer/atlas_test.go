package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtlasInsertAndLookup(t *testing.T) {
	ac := newAtlasCache(256, 256)
	ac.maintain()

	key := atlasKey{Content: 1, Radius: 2}
	_, ok := ac.lookup(key)
	assert.False(t, ok)

	region, err := ac.insert(key, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), region.Width)
	assert.Equal(t, uint32(10), region.Height)

	got, ok := ac.lookup(key)
	require.True(t, ok)
	assert.Equal(t, region, got)

	// The same content at a different radius is a different entry.
	_, ok = ac.lookup(atlasKey{Content: 1, Radius: 3})
	assert.False(t, ok)
}

func TestAtlasRegionsDisjoint(t *testing.T) {
	ac := newAtlasCache(256, 256)
	ac.maintain()

	a, err := ac.insert(atlasKey{Content: 1}, 30, 10)
	require.NoError(t, err)
	b, err := ac.insert(atlasKey{Content: 2}, 30, 10)
	require.NoError(t, err)
	c, err := ac.insert(atlasKey{Content: 3}, 30, 30)
	require.NoError(t, err)

	// Same quantized shelf, advancing pen.
	assert.Equal(t, a.Y, b.Y)
	assert.Equal(t, a.X+a.Width, b.X)
	// A taller request opens a new shelf.
	assert.NotEqual(t, a.Y, c.Y)
}

func TestAtlasOversizedRequest(t *testing.T) {
	ac := newAtlasCache(64, 64)
	ac.maintain()
	_, err := ac.insert(atlasKey{Content: 1}, 65, 8)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	_, err = ac.insert(atlasKey{Content: 2}, 8, 65)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestAtlasEvictionDelay(t *testing.T) {
	// One 64x8 shelf: the first entry fills the atlas completely.
	ac := newAtlasCache(64, 8)
	ac.maintain()

	first, err := ac.insert(atlasKey{Content: 1}, 64, 8)
	require.NoError(t, err)

	// Referenced this epoch and possibly still sampled by the frame in
	// flight; a competing insert must fail rather than reuse the slot.
	_, err = ac.insert(atlasKey{Content: 2}, 64, 8)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	ac.maintain()
	ac.maintain()
	_, err = ac.insert(atlasKey{Content: 3}, 64, 8)
	assert.ErrorIs(t, err, ErrResourceExhausted, "entries stay pinned for two epochs")

	// Three epochs after its last reference the entry is reclaimable, and
	// the new entry takes its slot in place.
	ac.maintain()
	second, err := ac.insert(atlasKey{Content: 4}, 64, 8)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, ok := ac.lookup(atlasKey{Content: 1})
	assert.False(t, ok, "the evicted entry must be forgotten")
}

func TestAtlasLookupPinsEntry(t *testing.T) {
	ac := newAtlasCache(64, 8)
	ac.maintain()

	key := atlasKey{Content: 1}
	_, err := ac.insert(key, 64, 8)
	require.NoError(t, err)

	// Touch the entry every epoch; it must never be evicted.
	for range 5 {
		ac.maintain()
		_, ok := ac.lookup(key)
		require.True(t, ok)
	}
	_, err = ac.insert(atlasKey{Content: 2}, 64, 8)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestAtlasFreedSpanReuse(t *testing.T) {
	ac := newAtlasCache(64, 8)
	ac.maintain()

	_, err := ac.insert(atlasKey{Content: 1}, 40, 8)
	require.NoError(t, err)
	keep, err := ac.insert(atlasKey{Content: 2}, 24, 8)
	require.NoError(t, err)

	for range 3 {
		ac.maintain()
		// Keep only the second entry alive.
		_, ok := ac.lookup(atlasKey{Content: 2})
		require.True(t, ok)
	}

	// A smaller region fits into the freed span without touching the
	// surviving entry.
	small, err := ac.insert(atlasKey{Content: 3}, 16, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), small.X)
	got, ok := ac.lookup(atlasKey{Content: 2})
	require.True(t, ok)
	assert.Equal(t, keep, got)
}

func TestHashGeometry(t *testing.T) {
	a := []Segment{{0, 0, 4, 0}, {4, 0, 4, 4}}
	b := []Segment{{0, 0, 4, 0}, {4, 0, 4, 4}}
	c := []Segment{{0, 0, 4, 0}, {4, 0, 4, 5}}
	assert.Equal(t, hashGeometry(a), hashGeometry(b))
	assert.NotEqual(t, hashGeometry(a), hashGeometry(c))
	assert.NotEqual(t, hashGeometry(a), hashGeometry(a[:1]))
}

func TestFeatherKernelNormalized(t *testing.T) {
	for _, radius := range []float32{0.5, 1, 2.5, 8} {
		kernel := featherKernel(radius)
		assert.Equal(t, 1, len(kernel)%2, "odd tap count")
		var sum float32
		for _, w := range kernel {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "radius %v", radius)
		// Symmetric and peaked at the center.
		half := len(kernel) / 2
		for i := 0; i < half; i++ {
			assert.InDelta(t, kernel[i], kernel[len(kernel)-1-i], 1e-6)
			assert.LessOrEqual(t, kernel[i], kernel[half])
		}
	}
}

func TestFeatherCoveragePreservesInterior(t *testing.T) {
	const w, h = 16, 16
	mask := make([]uint8, w*h)
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			mask[y*w+x] = 1
		}
	}
	out := FeatherCoverage(mask, w, h, 2)

	// Deep inside the shape the blur sees only ones.
	assert.InDelta(t, 1.0, out[8*w+8], 1e-4)
	// Far outside it sees only zeros.
	assert.InDelta(t, 0.0, out[0], 1e-4)
	// The edge is a soft ramp, roughly half covered on the boundary.
	edge := out[8*w+4]
	assert.Greater(t, edge, float32(0.2))
	assert.Less(t, edge, float32(0.8))
	// Coverage falls off monotonically across the edge.
	assert.Greater(t, out[8*w+5], out[8*w+4])
	assert.Greater(t, out[8*w+4], out[8*w+3])
}
