package renderer

import (
	"github.com/quillgfx/quill/gfx"
)

// MeshVertex is one image-mesh vertex: a device-space position and
// normalized texture coordinates.
type MeshVertex struct {
	X, Y float32
	U, V float32
}

// SubmitImageMesh draws a textured triangle mesh composited over everything
// submitted before it. Triangles must be wound clockwise in device space;
// the mesh pipeline culls back faces, so counter-clockwise geometry draws
// nothing rather than erroring. Opacity scales the premultiplied samples.
func (f *Frame) SubmitImageMesh(vertices []MeshVertex, indices []uint32, img gfx.Image, winding gfx.Winding, opacity float32) {
	if len(vertices) == 0 || len(indices) == 0 {
		return
	}
	m := meshDraw{
		vertexBase: uint32(len(f.meshVerts)),
		firstIndex: uint32(len(f.meshIdx)),
		indexCount: uint32(len(indices)),
		image:      img,
		winding:    winding,
		opacity:    opacity,
	}
	f.meshVerts = append(f.meshVerts, vertices...)
	f.meshIdx = append(f.meshIdx, indices...)
	f.meshes = append(f.meshes, m)
	f.items = append(f.items, frameItem{kind: itemMesh, index: len(f.meshes) - 1})
}

// Blit copies a texture into the frame target with its top-left corner at
// (dstX, dstY). Engines with a native copy path use it; others replay the
// copy as a full draw. Either way the destination receives a bit-identical
// copy of the source.
func (f *Frame) Blit(src ImageProxy, dstX, dstY uint32) {
	f.blits = append(f.blits, blitDraw{src: src, dstX: dstX, dstY: dstY})
	f.items = append(f.items, frameItem{kind: itemBlit, index: len(f.blits) - 1})
}

type meshDraw struct {
	vertexBase uint32
	firstIndex uint32
	indexCount uint32
	image      gfx.Image
	winding    gfx.Winding
	opacity    float32
}

type blitDraw struct {
	src        ImageProxy
	dstX, dstY uint32
}

// appendQuad appends the six vertices of a clockwise-wound textured quad and
// returns the index of its first vertex.
func appendQuad(verts []MeshVertex, x0, y0, x1, y1, u0, v0, u1, v1 float32) ([]MeshVertex, uint32) {
	first := uint32(len(verts))
	verts = append(verts,
		MeshVertex{x0, y0, u0, v0},
		MeshVertex{x1, y0, u1, v0},
		MeshVertex{x1, y1, u1, v1},
		MeshVertex{x0, y0, u0, v0},
		MeshVertex{x1, y1, u1, v1},
		MeshVertex{x0, y1, u0, v1},
	)
	return verts, first
}
