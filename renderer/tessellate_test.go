package renderer

import (
	"iter"
	"testing"

	"github.com/quillgfx/quill/qmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/curve"
)

func elements(els ...curve.PathElement) iter.Seq[curve.PathElement] {
	return func(yield func(curve.PathElement) bool) {
		for _, el := range els {
			if !yield(el) {
				return
			}
		}
	}
}

func moveTo(x, y float64) curve.PathElement {
	return curve.PathElement{Kind: curve.MoveToKind, P0: curve.Point{X: x, Y: y}}
}

func lineTo(x, y float64) curve.PathElement {
	return curve.PathElement{Kind: curve.LineToKind, P0: curve.Point{X: x, Y: y}}
}

func quadTo(cx, cy, x, y float64) curve.PathElement {
	return curve.PathElement{
		Kind: curve.QuadToKind,
		P0:   curve.Point{X: cx, Y: cy},
		P1:   curve.Point{X: x, Y: y},
	}
}

func cubicTo(c0x, c0y, c1x, c1y, x, y float64) curve.PathElement {
	return curve.PathElement{
		Kind: curve.CubicToKind,
		P0:   curve.Point{X: c0x, Y: c0y},
		P1:   curve.Point{X: c1x, Y: c1y},
		P2:   curve.Point{X: x, Y: y},
	}
}

func closePath() curve.PathElement {
	return curve.PathElement{Kind: curve.ClosePathKind}
}

// rectElements is a clockwise rectangle in a y-down coordinate system.
func rectElements(x0, y0, x1, y1 float64) iter.Seq[curve.PathElement] {
	return elements(
		moveTo(x0, y0),
		lineTo(x1, y0),
		lineTo(x1, y1),
		lineTo(x0, y1),
		closePath(),
	)
}

func TestTessellateDegenerate(t *testing.T) {
	var buf PathContourBuffer
	cases := []struct {
		name string
		path iter.Seq[curve.PathElement]
	}{
		{"empty", elements()},
		{"lone move", elements(moveTo(1, 1))},
		{"move and close", elements(moveTo(1, 1), closePath())},
		{"zero length line", elements(moveTo(1, 1), lineTo(1, 1))},
		{"single line", elements(moveTo(0, 0), lineTo(4, 0))},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf.Reset()
			geom := buf.Tessellate(c.path, qmath.Identity, 0.25)
			if c.name == "single line" {
				// An open single line closes onto itself: one segment out, one
				// back, zero area.
				assert.False(t, geom.Empty())
				return
			}
			assert.True(t, geom.Empty())
			assert.Equal(t, [4]float32{}, geom.Bounds)
		})
	}
}

func TestTessellateRect(t *testing.T) {
	var buf PathContourBuffer
	geom := buf.Tessellate(rectElements(1, 2, 5, 8), qmath.Identity, 0.25)

	require.False(t, geom.Empty())
	assert.Equal(t, 4, geom.SegmentCount)
	// Three fan vertices per segment.
	assert.Equal(t, 12, geom.VertexCount)
	assert.Equal(t, [4]float32{1, 2, 5, 8}, geom.Bounds)

	// The closing segment returns to the contour start.
	segs := buf.Segments(geom)
	last := segs[len(segs)-1]
	assert.Equal(t, Segment{1, 8, 1, 2}, last)

	// Every fan triangle is anchored at the contour start.
	verts := buf.Vertices(geom)
	for i := 0; i < len(verts); i += 3 {
		assert.Equal(t, StencilVertex{1, 2}, verts[i])
	}
}

func TestTessellateImplicitClose(t *testing.T) {
	var buf PathContourBuffer
	geom := buf.Tessellate(elements(
		moveTo(0, 0),
		lineTo(4, 0),
		lineTo(4, 4),
	), qmath.Identity, 0.25)
	// The unclosed triangle gains a closing segment back to the start.
	assert.Equal(t, 3, geom.SegmentCount)
	segs := buf.Segments(geom)
	assert.Equal(t, Segment{4, 4, 0, 0}, segs[len(segs)-1])
}

func TestTessellateMultipleContours(t *testing.T) {
	var buf PathContourBuffer
	geom := buf.Tessellate(elements(
		moveTo(0, 0),
		lineTo(4, 0),
		lineTo(4, 4),
		lineTo(0, 4),
		closePath(),
		moveTo(10, 0),
		lineTo(14, 0),
		lineTo(14, 4),
		lineTo(10, 4),
		closePath(),
	), qmath.Identity, 0.25)
	assert.Equal(t, 8, geom.SegmentCount)
	assert.Equal(t, [4]float32{0, 0, 14, 4}, geom.Bounds)

	// Fan anchors switch with the contour.
	verts := buf.Vertices(geom)
	assert.Equal(t, StencilVertex{0, 0}, verts[0])
	assert.Equal(t, StencilVertex{10, 0}, verts[len(verts)-3])
}

func TestTessellateAppendsToBuffer(t *testing.T) {
	var buf PathContourBuffer
	g1 := buf.Tessellate(rectElements(0, 0, 4, 4), qmath.Identity, 0.25)
	g2 := buf.Tessellate(rectElements(8, 8, 12, 12), qmath.Identity, 0.25)

	assert.Equal(t, g1.VertexStart+g1.VertexCount, g2.VertexStart)
	assert.Equal(t, g1.SegmentStart+g1.SegmentCount, g2.SegmentStart)
	// Slices address disjoint geometry.
	assert.NotEqual(t, buf.Segments(g1)[0], buf.Segments(g2)[0])

	buf.Reset()
	g3 := buf.Tessellate(rectElements(0, 0, 4, 4), qmath.Identity, 0.25)
	assert.Zero(t, g3.VertexStart)
	assert.Zero(t, g3.SegmentStart)
}

func TestTessellateTransform(t *testing.T) {
	var buf PathContourBuffer
	transform := qmath.Transform{
		Matrix:      [4]float32{2, 0, 0, 2},
		Translation: [2]float32{10, 20},
	}
	geom := buf.Tessellate(rectElements(0, 0, 4, 4), transform, 0.25)
	assert.Equal(t, [4]float32{10, 20, 18, 28}, geom.Bounds)
}

func TestTessellateQuadSubdivision(t *testing.T) {
	var buf PathContourBuffer
	// A strongly curved quadratic must flatten into more than one segment,
	// and more tightly under a finer tolerance.
	path := func() iter.Seq[curve.PathElement] {
		return elements(moveTo(0, 0), quadTo(50, 100, 100, 0), closePath())
	}
	coarse := buf.Tessellate(path(), qmath.Identity, 1.0)
	fine := buf.Tessellate(path(), qmath.Identity, 0.05)

	assert.Greater(t, coarse.SegmentCount, 2)
	assert.Greater(t, fine.SegmentCount, coarse.SegmentCount)

	// The polyline stays on the curve: every interior vertex satisfies the
	// curve's y(x) relation within a few pixels at the coarse tolerance.
	for _, s := range buf.Segments(coarse) {
		if s.Y1 == 0 {
			continue // closing segment
		}
		u := s.X1 / 100
		wantY := 2 * (1 - u) * u * 100
		assert.InDelta(t, wantY, s.Y1, 3.0)
	}
}

func TestTessellateCubicSubdivision(t *testing.T) {
	var buf PathContourBuffer
	geom := buf.Tessellate(elements(
		moveTo(0, 0),
		cubicTo(0, 100, 100, 100, 100, 0),
		closePath(),
	), qmath.Identity, 0.25)
	assert.Greater(t, geom.SegmentCount, 4)
	// The curve's extremum is at y = 75; flattening must get close to it.
	assert.InDelta(t, 75, geom.Bounds[3], 1.0)
	assert.Equal(t, float32(0), geom.Bounds[1])
}

func TestTessellateCoverageRoundTrip(t *testing.T) {
	var buf PathContourBuffer
	geom := buf.Tessellate(rectElements(2, 2, 6, 6), qmath.Identity, 0.25)
	cov := AccumulateWinding(buf.Segments(geom), 8, 8)

	// Clockwise in device space accumulates +1 inside.
	assert.Equal(t, int32(1), cov.Winding[4*8+4])
	assert.Equal(t, int32(0), cov.Winding[0])
	assert.Equal(t, int32(0), cov.Winding[4*8+7])
}
