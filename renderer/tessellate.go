// Copyright 2022 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"iter"
	"math"

	"github.com/chewxy/math32"
	"github.com/quillgfx/quill/qmath"
	"honnef.co/go/curve"
)

type StencilVertex struct {
	X, Y float32
}

// Segment is one flattened contour edge in device space, directed.
type Segment struct {
	X0, Y0, X1, Y1 float32
}

// StencilGeometry is one path's slice of the frame's contour buffer:
// triangle-list fan geometry for the stencil pass plus the flattened
// segments the CPU resolve consumes.
type StencilGeometry struct {
	VertexStart  int
	VertexCount  int
	SegmentStart int
	SegmentCount int
	// Bounds is min x, min y, max x, max y of the flattened path.
	Bounds [4]float32
}

func (g StencilGeometry) Empty() bool {
	return g.VertexCount == 0
}

// PathContourBuffer accumulates the tessellated contours of every path
// drawn in a frame. It is owned by the frame and reset at frame start; the
// backing arrays are reused across frames once the engine has retired the
// recordings that reference them.
type PathContourBuffer struct {
	vertices []StencilVertex
	segments []Segment
}

func (b *PathContourBuffer) Reset() {
	b.vertices = b.vertices[:0]
	b.segments = b.segments[:0]
}

func (b *PathContourBuffer) Vertices(g StencilGeometry) []StencilVertex {
	return b.vertices[g.VertexStart : g.VertexStart+g.VertexCount]
}

func (b *PathContourBuffer) Segments(g StencilGeometry) []Segment {
	return b.segments[g.SegmentStart : g.SegmentStart+g.SegmentCount]
}

// Tessellate flattens a path into contour segments and stencil fan
// triangles. Curves are subdivided by Wang's formula for the given
// tolerance. Degenerate contours, with fewer than two distinct points,
// contribute no geometry and no error.
func (b *PathContourBuffer) Tessellate(path iter.Seq[curve.PathElement], t qmath.Transform, tolerance float64) StencilGeometry {
	tess := tessellator{
		buf: b,
		tol: float32(tolerance),
		geom: StencilGeometry{
			VertexStart:  len(b.vertices),
			SegmentStart: len(b.segments),
			Bounds:       [4]float32{math32.Inf(1), math32.Inf(1), math32.Inf(-1), math32.Inf(-1)},
		},
	}

	pt := func(p curve.Point) StencilVertex {
		x, y := t.Apply(float32(p.X), float32(p.Y))
		return StencilVertex{x, y}
	}

	for el := range path {
		switch el.Kind {
		case curve.MoveToKind:
			tess.closeContour()
			tess.moveTo(pt(el.P0))
		case curve.LineToKind:
			tess.lineTo(pt(el.P0))
		case curve.QuadToKind:
			tess.quadTo(pt(el.P0), pt(el.P1))
		case curve.CubicToKind:
			tess.cubicTo(pt(el.P0), pt(el.P1), pt(el.P2))
		case curve.ClosePathKind:
			tess.closeContour()
		}
	}
	tess.closeContour()

	tess.geom.VertexCount = len(b.vertices) - tess.geom.VertexStart
	tess.geom.SegmentCount = len(b.segments) - tess.geom.SegmentStart
	if tess.geom.VertexCount == 0 {
		tess.geom.Bounds = [4]float32{}
	}
	return tess.geom
}

type tessellator struct {
	buf  *PathContourBuffer
	tol  float32
	geom StencilGeometry

	start   StencilVertex
	cur     StencilVertex
	open    bool
	started bool
}

func (t *tessellator) moveTo(p StencilVertex) {
	t.start = p
	t.cur = p
	t.started = true
	t.open = false
}

func (t *tessellator) lineTo(p StencilVertex) {
	if !t.started {
		t.moveTo(p)
		return
	}
	if p == t.cur {
		return
	}
	t.emit(t.cur, p)
	t.cur = p
	t.open = true
}

func (t *tessellator) quadTo(c, p StencilVertex) {
	if !t.started {
		t.moveTo(p)
		return
	}
	p0 := t.cur
	n := wangQuadratic(p0, c, p, t.tol)
	for i := uint32(1); i <= n; i++ {
		u := float32(i) / float32(n)
		t.lineTo(evalQuad(p0, c, p, u))
	}
}

func (t *tessellator) cubicTo(c0, c1, p StencilVertex) {
	if !t.started {
		t.moveTo(p)
		return
	}
	p0 := t.cur
	n := wangCubic(p0, c0, c1, p, t.tol)
	for i := uint32(1); i <= n; i++ {
		u := float32(i) / float32(n)
		t.lineTo(evalCubic(p0, c0, c1, p, u))
	}
}

// closeContour seals the running contour with a segment back to its start.
// Fills treat every contour as closed.
func (t *tessellator) closeContour() {
	if t.open && t.cur != t.start {
		t.emit(t.cur, t.start)
	}
	t.cur = t.start
	t.open = false
}

// emit appends one contour segment and its stencil fan triangle anchored at
// the contour start. Triangles incident to the anchor have zero area and
// accumulate nothing.
func (t *tessellator) emit(a, b StencilVertex) {
	t.buf.segments = append(t.buf.segments, Segment{a.X, a.Y, b.X, b.Y})
	t.buf.vertices = append(t.buf.vertices, t.start, a, b)
	t.grow(a)
	t.grow(b)
	t.grow(t.start)
}

func (t *tessellator) grow(p StencilVertex) {
	t.geom.Bounds[0] = min(t.geom.Bounds[0], p.X)
	t.geom.Bounds[1] = min(t.geom.Bounds[1], p.Y)
	t.geom.Bounds[2] = max(t.geom.Bounds[2], p.X)
	t.geom.Bounds[3] = max(t.geom.Bounds[3], p.Y)
}

func evalQuad(p0, c, p1 StencilVertex, u float32) StencilVertex {
	mt := 1 - u
	return StencilVertex{
		X: mt*mt*p0.X + 2*mt*u*c.X + u*u*p1.X,
		Y: mt*mt*p0.Y + 2*mt*u*c.Y + u*u*p1.Y,
	}
}

func evalCubic(p0, c0, c1, p1 StencilVertex, u float32) StencilVertex {
	mt := 1 - u
	return StencilVertex{
		X: mt*mt*mt*p0.X + 3*mt*mt*u*c0.X + 3*mt*u*u*c1.X + u*u*u*p1.X,
		Y: mt*mt*mt*p0.Y + 3*mt*mt*u*c0.Y + 3*mt*u*u*c1.Y + u*u*u*p1.Y,
	}
}

// Wang's formula bounds the number of subdivisions needed to keep the
// flattened polyline within tolerance of the curve.
func wangQuadratic(p0, c, p1 StencilVertex, tol float32) uint32 {
	dx := p0.X - 2*c.X + p1.X
	dy := p0.Y - 2*c.Y + p1.Y
	m := math32.Hypot(dx, dy)
	n := math32.Ceil(math32.Sqrt(m / (4 * tol)))
	return clampSubdiv(n)
}

func wangCubic(p0, c0, c1, p1 StencilVertex, tol float32) uint32 {
	d0x := p0.X - 2*c0.X + c1.X
	d0y := p0.Y - 2*c0.Y + c1.Y
	d1x := c0.X - 2*c1.X + p1.X
	d1y := c0.Y - 2*c1.Y + p1.Y
	m := max(math32.Hypot(d0x, d0y), math32.Hypot(d1x, d1y))
	n := math32.Ceil(math32.Sqrt(3 * m / (4 * tol)))
	return clampSubdiv(n)
}

func clampSubdiv(n float32) uint32 {
	if math.IsNaN(float64(n)) || n < 1 {
		return 1
	}
	if n > 1024 {
		return 1024
	}
	return uint32(n)
}
