package renderer

import "github.com/quillgfx/quill/gfx"

// CPU winding resolution. This is both the reference the tests check the
// stencil pipeline against and the software fallback for engines without a
// stencil unit. The GPU path records a StencilDraw accumulation followed by
// a CompositeDraw cover; this computes the same two steps directly.

// CoverageBuffer holds the accumulated signed winding of every contour of a
// path, fully summed before any fill-rule decision is made.
type CoverageBuffer struct {
	Width   int
	Height  int
	Winding []int32
}

// AccumulateWinding sums the winding contribution of all segments at every
// pixel center. All contours of the path must be present in segs: coverage
// is only meaningful once every contribution has been accumulated,
// otherwise self-intersecting paths would show transient partial coverage.
func AccumulateWinding(segs []Segment, width, height int) *CoverageBuffer {
	cov := &CoverageBuffer{
		Width:   width,
		Height:  height,
		Winding: make([]int32, width*height),
	}
	for y := 0; y < height; y++ {
		py := float32(y) + 0.5
		row := cov.Winding[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			row[x] = WindingAt(segs, float32(x)+0.5, py)
		}
	}
	return cov
}

// WindingAt computes the signed winding number at a point by counting
// directed crossings of the ray towards -x. Segments span the half-open
// interval [min y, max y) and crossings at the query x count, so a point
// exactly on a left or top edge is inside while right and bottom edges
// belong to the neighbor. That is the hardware top-left fill convention,
// and it covers an edge shared by two abutting shapes exactly once.
func WindingAt(segs []Segment, x, y float32) int32 {
	var winding int32
	for _, s := range segs {
		y0, y1 := s.Y0, s.Y1
		if y0 == y1 {
			continue
		}
		dir := int32(1)
		if y0 > y1 {
			y0, y1 = y1, y0
			dir = -1
		}
		if y < y0 || y >= y1 {
			continue
		}
		xint := s.X0 + (y-s.Y0)/(s.Y1-s.Y0)*(s.X1-s.X0)
		if x >= xint {
			winding -= dir
		}
	}
	return winding
}

// Resolve applies the fill rule to the accumulated winding, producing the
// final binary coverage mask.
func (cov *CoverageBuffer) Resolve(rule gfx.Fill) []uint8 {
	mask := make([]uint8, len(cov.Winding))
	for i, w := range cov.Winding {
		if Covered(w, rule) {
			mask[i] = 1
		}
	}
	return mask
}

// Covered reports whether an accumulated winding value is inside under the
// fill rule.
func Covered(winding int32, rule gfx.Fill) bool {
	switch rule {
	case gfx.NonZero:
		return winding != 0
	case gfx.EvenOdd:
		return winding&1 != 0
	default:
		return false
	}
}

// ResolveCoverage is the two steps in one call: accumulate every contour,
// then resolve the fill rule.
func ResolveCoverage(segs []Segment, width, height int, rule gfx.Fill) []uint8 {
	return AccumulateWinding(segs, width, height).Resolve(rule)
}
