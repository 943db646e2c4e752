package renderer

import (
	"hash/fnv"

	"github.com/chewxy/math32"
	"github.com/quillgfx/quill/qmath"
	"honnef.co/go/safeish"
)

// The atlas amortizes many small intermediate renders, feathered coverage
// mostly, into one shared texture. Regions are keyed by the content that
// produced them; a hit skips the render entirely.

// AtlasRegion is a rectangular sub-allocation of the atlas texture.
type AtlasRegion struct {
	X, Y          uint32
	Width, Height uint32
}

type atlasKey struct {
	Content uint64
	Radius  float32
}

type atlasEntry struct {
	region AtlasRegion
	epoch  uint64
}

type atlasSpan struct {
	x, w uint32
}

// Shelf allocation: rows of quantized heights, each filled left to right,
// with freed slots reused in place. Slots never move, so an in-flight frame
// keeps sampling the texels its draws were recorded against.
type atlasShelf struct {
	y, h uint32
	penX uint32
	free []atlasSpan
}

type atlasCache struct {
	epoch         uint64
	width, height uint32
	nextY         uint32
	shelves       []atlasShelf
	mapping       map[atlasKey]*atlasEntry
}

func newAtlasCache(width, height uint32) atlasCache {
	return atlasCache{
		width:   width,
		height:  height,
		mapping: make(map[atlasKey]*atlasEntry),
	}
}

func (ac *atlasCache) maintain() {
	ac.epoch++
}

// lookup returns the cached region for key and marks it referenced in this
// epoch, pinning it against eviction while the frame is in flight.
func (ac *atlasCache) lookup(key atlasKey) (AtlasRegion, bool) {
	entry, ok := ac.mapping[key]
	if !ok {
		return AtlasRegion{}, false
	}
	entry.epoch = ac.epoch
	return entry.region, true
}

// insert allocates a region for key, evicting stale entries if needed.
// Entries referenced in the current or previous epoch are never evicted.
func (ac *atlasCache) insert(key atlasKey, w, h uint32) (AtlasRegion, error) {
	if w > ac.width || h > ac.height {
		return AtlasRegion{}, ErrResourceExhausted
	}
	region, ok := ac.alloc(w, h)
	if !ok {
		ac.evict()
		region, ok = ac.alloc(w, h)
		if !ok {
			return AtlasRegion{}, ErrResourceExhausted
		}
	}
	ac.mapping[key] = &atlasEntry{region: region, epoch: ac.epoch}
	return region, nil
}

func (ac *atlasCache) alloc(w, h uint32) (AtlasRegion, bool) {
	shelfH := qmath.AlignUp(h, 8)
	for i := range ac.shelves {
		s := &ac.shelves[i]
		if s.h != shelfH {
			continue
		}
		for j, span := range s.free {
			if span.w >= w {
				s.free[j] = atlasSpan{span.x + w, span.w - w}
				if s.free[j].w == 0 {
					s.free = append(s.free[:j], s.free[j+1:]...)
				}
				return AtlasRegion{X: span.x, Y: s.y, Width: w, Height: h}, true
			}
		}
		if s.penX+w <= ac.width {
			x := s.penX
			s.penX += w
			return AtlasRegion{X: x, Y: s.y, Width: w, Height: h}, true
		}
	}
	if ac.nextY+shelfH <= ac.height {
		ac.shelves = append(ac.shelves, atlasShelf{y: ac.nextY, h: shelfH, penX: w})
		ac.nextY += shelfH
		return AtlasRegion{X: 0, Y: ac.shelves[len(ac.shelves)-1].y, Width: w, Height: h}, true
	}
	return AtlasRegion{}, false
}

// evict returns the slots of entries no in-flight frame can reference to
// their shelves' free lists.
func (ac *atlasCache) evict() {
	for key, entry := range ac.mapping {
		if entry.epoch+2 >= ac.epoch {
			continue
		}
		delete(ac.mapping, key)
		shelfH := qmath.AlignUp(entry.region.Height, 8)
		for i := range ac.shelves {
			s := &ac.shelves[i]
			if s.y == entry.region.Y && s.h == shelfH {
				s.free = append(s.free, atlasSpan{entry.region.X, entry.region.Width})
				break
			}
		}
	}
}

// hashGeometry fingerprints a path's flattened segments; together with the
// feather radius it keys the atlas so unchanged inputs reuse their region.
func hashGeometry(segs []Segment) uint64 {
	h := fnv.New64a()
	h.Write(safeish.SliceCast[[]byte](segs))
	return h.Sum64()
}

// FeatherCoverage is the CPU reference for the AtlasDraw feather: a
// separable Gaussian over a binary coverage mask, radius in pixels.
func FeatherCoverage(mask []uint8, width, height int, radius float32) []float32 {
	if radius < 0.5 {
		radius = 0.5
	}
	kernel := featherKernel(radius)
	half := len(kernel) / 2

	tmp := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float32
			for k, w := range kernel {
				sx := x + k - half
				if sx < 0 || sx >= width {
					continue
				}
				sum += float32(mask[y*width+sx]) * w
			}
			tmp[y*width+x] = sum
		}
	}
	out := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float32
			for k, w := range kernel {
				sy := y + k - half
				if sy < 0 || sy >= height {
					continue
				}
				sum += tmp[sy*width+x] * w
			}
			out[y*width+x] = sum
		}
	}
	return out
}

func featherKernel(radius float32) []float32 {
	half := int(math32.Ceil(radius))
	sigma := radius * 0.5
	kernel := make([]float32, 2*half+1)
	var total float32
	for i := range kernel {
		o := float32(i - half)
		kernel[i] = math32.Exp(-o * o / (2 * sigma * sigma))
		total += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= total
	}
	return kernel
}
