// Copyright 2022 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"image"
	"iter"

	"github.com/chewxy/math32"
	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/qmath"
	"github.com/quillgfx/quill/shaders"
	"golang.org/x/image/draw"
	"honnef.co/go/color"
	"honnef.co/go/curve"
	"honnef.co/go/safeish"
)

// Capabilities describes what the backing engine can do. The renderer folds
// them into the feature flags of every variant key it records, so one
// renderer instance produces recordings tailored to one backend.
type Capabilities struct {
	// StorageBuffers routes per-path records through a storage buffer
	// instead of per-draw uniform state.
	StorageBuffers bool
	// AdvancedBlend marks hardware support for advanced blend equations.
	// Backends without it get fragment-stage emulation variants when such a
	// blend is requested.
	AdvancedBlend bool
	// NativeBlit marks support for direct texture-to-texture copies.
	// Without it the engine replays CopyTexture commands as draws.
	NativeBlit bool
	// BatchCount is the number of path records per draw batch when
	// StorageBuffers is set. Zero means one.
	BatchCount uint32
}

type RendererOptions struct {
	Capabilities Capabilities
	// MaxRampRows bounds the gradient ramp texture height. Zero lets it
	// grow on demand.
	MaxRampRows uint32
	// AtlasWidth and AtlasHeight size the feather atlas. Zero selects the
	// default of 1024.
	AtlasWidth  uint32
	AtlasHeight uint32
	// Tolerance is the curve flattening tolerance in device pixels.
	Tolerance float64
}

const (
	defaultAtlasSize = 1024
	defaultTolerance = 0.25

	// Stroke expansion happens before the transform is known exactly, so it
	// uses a finer tolerance than flattening.
	strokeTolerance = 0.01

	rampRowChunk = 64
)

// Renderer turns submitted paths, gradients and meshes into Recordings. It
// owns the frame-persistent caches; the engine that replays the recordings
// owns the GPU objects they refer to.
//
// All methods must be called from one goroutine.
type Renderer struct {
	opts RendererOptions

	ramps rampCache
	atlas atlasCache

	// rampTex is the gradient ramp texture, reallocated when the cache
	// outgrows it. rampCap is its allocated height in rows.
	rampTex ImageProxy
	rampCap uint32

	atlasTex ImageProxy

	images map[image.Image]ImageProxy

	frame Frame
	live  bool
}

func New(opts RendererOptions) *Renderer {
	if opts.AtlasWidth == 0 {
		opts.AtlasWidth = defaultAtlasSize
	}
	if opts.AtlasHeight == 0 {
		opts.AtlasHeight = defaultAtlasSize
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.Capabilities.BatchCount == 0 {
		opts.Capabilities.BatchCount = 1
	}
	r := &Renderer{
		opts:   opts,
		ramps:  newRampCache(opts.MaxRampRows),
		atlas:  newAtlasCache(opts.AtlasWidth, opts.AtlasHeight),
		images: make(map[image.Image]ImageProxy),
	}
	// The atlas holds single-channel coverage but is allocated as RGBA so
	// every color pass in the pipeline renders to one target format.
	r.atlasTex = NewImageProxy(opts.AtlasWidth, opts.AtlasHeight, Rgba8)
	return r
}

// Ramps returns the CPU mirror of the ramp texture.
func (r *Renderer) Ramps() Ramps {
	return r.ramps.ramps()
}

// RenderParams configures one frame.
type RenderParams struct {
	Width  uint32
	Height uint32
	// BaseColor clears the target at frame start. Nil clears to
	// transparent.
	BaseColor *color.Color
	// Clip restricts every draw of the frame to a device-space rectangle.
	Clip ClipRect
}

type ClipRect struct {
	Enabled    bool
	X, Y, W, H float32
}

// PathOptions carries the optional per-path settings of SubmitPath.
type PathOptions struct {
	// Feather blurs the path coverage with a Gaussian of this radius in
	// device pixels before compositing. Feathered paths composite with a
	// solid paint; gradient paints collapse to their average color.
	Feather float32
}

// Frame accumulates one frame of submissions. BeginFrame hands it out, End
// turns it into a Recording. The frame and the buffers behind it are reused;
// the engine must retire a frame's recording before the next BeginFrame.
type Frame struct {
	r      *Renderer
	params RenderParams
	rec    *Recording

	target  ImageProxy
	stencil ImageProxy

	contours PathContourBuffer
	paths    []pathDraw
	meshes   []meshDraw
	blits    []blitDraw
	items    []frameItem

	// meshVerts backs user meshes, blur quads and atlas blit quads; they
	// share a vertex layout. quadVerts and scratchVerts back cover
	// geometry for the frame target and for feather scratch targets.
	meshVerts    []MeshVertex
	meshIdx      []uint32
	quadVerts    []StencilVertex
	scratchVerts []StencilVertex

	tempBufs []BufferProxy
}

type itemKind int

const (
	itemPath itemKind = iota + 1
	itemMesh
	itemBlit
)

// frameItem preserves submission order across the three draw kinds.
type frameItem struct {
	kind  itemKind
	index int
}

type paintData struct {
	// fixed selects the fixed-function color path: color is the premultiplied
	// paint and no ramp is sampled.
	fixed  bool
	color  [4]float32
	ramp   RampRegion
	radial bool
	origin [2]float32
	axis   [2]float32
}

type pathDraw struct {
	geom  StencilGeometry
	rule  gfx.Fill
	paint paintData

	// feather > 0 routes the path through the atlas. Zero after submission
	// means the feather was dropped because the atlas was exhausted.
	feather  float32
	atlasHit bool
	region   AtlasRegion
	scratchW uint32
	scratchH uint32

	// vertex offsets assigned by the pre-pass in End.
	quadFirst       uint32
	scratchFanFirst uint32
	scratchQuad     uint32
	blurQuadH       uint32
	blurQuadV       uint32
	blitQuad        uint32
}

// frameUniforms mirrors the FrameUniforms struct of the generated shaders.
type frameUniforms struct {
	Viewport [4]float32
	Clip     [4]float32
	Paint    [4]float32
	Params   [4]float32
}

// gpuPathRec mirrors the PathRec struct of the storage-buffer variants.
type gpuPathRec struct {
	Mat    [4]float32
	Offset [2]float32
	Pad    [2]float32
}

// BeginFrame starts a frame. The previous frame must have been ended.
func (r *Renderer) BeginFrame(params RenderParams) *Frame {
	if r.live {
		panic("renderer: BeginFrame while a frame is in progress")
	}
	r.live = true
	r.ramps.maintain()
	r.atlas.maintain()

	f := &r.frame
	f.r = r
	f.params = params
	f.rec = &Recording{Epoch: r.ramps.epoch}
	f.target = NewImageProxy(params.Width, params.Height, Rgba8)
	f.stencil = NewImageProxy(params.Width, params.Height, Stencil8)
	f.contours.Reset()
	f.paths = f.paths[:0]
	f.meshes = f.meshes[:0]
	f.blits = f.blits[:0]
	f.items = f.items[:0]
	f.meshVerts = f.meshVerts[:0]
	f.meshIdx = f.meshIdx[:0]
	f.quadVerts = f.quadVerts[:0]
	f.scratchVerts = f.scratchVerts[:0]
	f.tempBufs = f.tempBufs[:0]
	return f
}

// Target is the proxy of the frame's color target. Engines map it to an
// external texture or surface when replaying the recording.
func (f *Frame) Target() ImageProxy {
	return f.target
}

// SubmitPath fills a path under the given fill rule and paint. Degenerate
// contours contribute nothing and are not an error.
func (f *Frame) SubmitPath(path iter.Seq[curve.PathElement], transform qmath.Transform, rule gfx.Fill, brush gfx.Brush, opts PathOptions) error {
	geom := f.contours.Tessellate(path, transform, f.r.opts.Tolerance)
	if geom.Empty() {
		return nil
	}
	paint, err := f.resolvePaint(brush, transform)
	if err != nil {
		return err
	}

	pd := pathDraw{geom: geom, rule: rule, paint: paint}
	if opts.Feather > 0 {
		if !paint.fixed {
			pd.paint = flattenPaint(brush)
		}
		pd.feather = opts.Feather
		f.planFeather(&pd)
	}
	f.paths = append(f.paths, pd)
	f.items = append(f.items, frameItem{kind: itemPath, index: len(f.paths) - 1})
	return nil
}

// SubmitStroke expands a stroke to its outline and fills it. Dashed styles
// are dashed before expansion.
func (f *Frame) SubmitStroke(path iter.Seq[curve.PathElement], style curve.Stroke, transform qmath.Transform, brush gfx.Brush, opts PathOptions) error {
	// StrokePath applies the dash pattern itself before expansion.
	stroked := curve.StrokePath(path, style, curve.StrokeOpts{}, strokeTolerance)
	// Stroke outlines are non-overlapping loops; non-zero is the correct
	// rule regardless of what the caller would fill the path with.
	return f.SubmitPath(stroked, transform, gfx.NonZero, brush, opts)
}

// SubmitGradient resolves a stop sequence to its ramp region without drawing
// anything. The region stays valid for the frames the cache retains it.
func (f *Frame) SubmitGradient(stops []gfx.ColorStop) (RampRegion, error) {
	return f.r.ramps.add(stops)
}

func (f *Frame) resolvePaint(brush gfx.Brush, t qmath.Transform) (paintData, error) {
	switch b := brush.(type) {
	case gfx.SolidBrush:
		return solidPaint(b.Color), nil
	case gfx.GradientBrush:
		stops := b.Gradient.Stops()
		if len(stops) == 0 {
			return paintData{}, fmt.Errorf("renderer: gradient with no color stops")
		}
		region, err := f.r.ramps.add(stops)
		if err != nil {
			// The bounded ramp texture is full. Draw the average stop color
			// instead of dropping the path or failing the frame.
			return solidPaint(averageStops(stops)), nil
		}
		pd := paintData{ramp: region}
		switch g := b.Gradient.(type) {
		case gfx.LinearGradient:
			x0, y0 := t.Apply(float32(g.Start.X), float32(g.Start.Y))
			x1, y1 := t.Apply(float32(g.End.X), float32(g.End.Y))
			dx, dy := x1-x0, y1-y0
			d2 := dx*dx + dy*dy
			pd.origin = [2]float32{x0, y0}
			if d2 > 0 {
				pd.axis = [2]float32{dx / d2, dy / d2}
			}
		case gfx.RadialGradient:
			cx, cy := t.Apply(float32(g.Center.X), float32(g.Center.Y))
			pd.radial = true
			pd.origin = [2]float32{cx, cy}
			radius := g.Radius * transformScale(t)
			if radius > 0 {
				pd.axis = [2]float32{1 / radius, 0}
			}
		default:
			return paintData{}, fmt.Errorf("renderer: unknown gradient %T", g)
		}
		return pd, nil
	case gfx.ImageBrush:
		return paintData{}, fmt.Errorf("renderer: image paints are drawn with SubmitImageMesh")
	default:
		return paintData{}, fmt.Errorf("renderer: unknown brush %T", brush)
	}
}

func solidPaint(c gfx.Color) paintData {
	p := c.Premul()
	return paintData{fixed: true, color: [4]float32{p.R, p.G, p.B, p.A}}
}

// flattenPaint collapses a brush to a solid color for passes that cannot
// sample a ramp.
func flattenPaint(brush gfx.Brush) paintData {
	switch b := brush.(type) {
	case gfx.SolidBrush:
		return solidPaint(b.Color)
	case gfx.GradientBrush:
		return solidPaint(averageStops(b.Gradient.Stops()))
	default:
		return solidPaint(gfx.RGBA(1, 1, 1, 1))
	}
}

func averageStops(stops []gfx.ColorStop) gfx.Color {
	var c gfx.Color
	for _, s := range stops {
		c.R += s.Color.R
		c.G += s.Color.G
		c.B += s.Color.B
		c.A += s.Color.A
	}
	n := float32(len(stops))
	return gfx.Color{R: c.R / n, G: c.G / n, B: c.B / n, A: c.A / n}
}

// transformScale is the isotropic scale factor of a transform, used to carry
// radial gradient radii into device space.
func transformScale(t qmath.Transform) float32 {
	det := t.Matrix[0]*t.Matrix[3] - t.Matrix[1]*t.Matrix[2]
	return math32.Sqrt(math32.Abs(det))
}

func featherPad(radius float32) float32 {
	return math32.Ceil(radius) + 1
}

// planFeather reserves the atlas region for a feathered path, or clears the
// feather when the atlas cannot hold it so the path still draws sharp.
func (f *Frame) planFeather(pd *pathDraw) {
	pad := featherPad(pd.feather)
	w := uint32(math32.Ceil(pd.geom.Bounds[2] - pd.geom.Bounds[0] + 2*pad))
	h := uint32(math32.Ceil(pd.geom.Bounds[3] - pd.geom.Bounds[1] + 2*pad))
	if w == 0 || h == 0 {
		pd.feather = 0
		return
	}
	key := atlasKey{
		Content: hashGeometry(f.contours.Segments(pd.geom)),
		Radius:  pd.feather,
	}
	if region, ok := f.r.atlas.lookup(key); ok {
		pd.atlasHit = true
		pd.region = region
		pd.scratchW = region.Width
		pd.scratchH = region.Height
		return
	}
	region, err := f.r.atlas.insert(key, w, h)
	if err != nil {
		pd.feather = 0
		return
	}
	pd.region = region
	pd.scratchW = w
	pd.scratchH = h
}

// End assembles the frame into a Recording: ramp maintenance first, then the
// target clear, then every submission in order. The returned recording
// references the frame's buffers; replay it before the next BeginFrame.
func (f *Frame) End() *Recording {
	r := f.r
	rec := f.rec

	f.ensureRampTexture()
	f.recordDirtyRamps()

	clearColor := [4]float32{}
	if f.params.BaseColor != nil {
		clearColor = gfx.Premul32(f.params.BaseColor)
	}
	rec.ClearTexture(f.target, clearColor)

	f.planQuads()

	var fanBuf, quadBuf, scratchBuf, meshBuf, meshIdxBuf, pathsBuf BufferProxy
	if len(f.contours.vertices) > 0 {
		fanBuf = f.upload("fan vertices", safeish.SliceCast[[]byte](f.contours.vertices))
	}
	if len(f.quadVerts) > 0 {
		quadBuf = f.upload("cover quads", safeish.SliceCast[[]byte](f.quadVerts))
	}
	if len(f.scratchVerts) > 0 {
		scratchBuf = f.upload("scratch vertices", safeish.SliceCast[[]byte](f.scratchVerts))
	}
	if len(f.meshVerts) > 0 {
		meshBuf = f.upload("mesh vertices", safeish.SliceCast[[]byte](f.meshVerts))
	}
	if len(f.meshIdx) > 0 {
		meshIdxBuf = f.upload("mesh indices", safeish.SliceCast[[]byte](f.meshIdx))
	}
	if r.opts.Capabilities.StorageBuffers {
		recs := make([]gpuPathRec, r.opts.Capabilities.BatchCount)
		for i := range recs {
			recs[i].Mat = [4]float32{1, 0, 0, 1}
		}
		pathsBuf = f.upload("path records", safeish.SliceCast[[]byte](recs))
	}

	for _, item := range f.items {
		switch item.kind {
		case itemPath:
			pd := &f.paths[item.index]
			if pd.feather > 0 {
				f.recordFeather(pd, fanBuf, scratchBuf, meshBuf, pathsBuf)
			} else {
				f.recordPath(pd, fanBuf, quadBuf, pathsBuf)
			}
		case itemMesh:
			f.recordMesh(&f.meshes[item.index], meshBuf, meshIdxBuf)
		case itemBlit:
			b := &f.blits[item.index]
			rec.CopyTexture(b.src, f.target, b.dstX, b.dstY)
		}
	}

	for _, buf := range f.tempBufs {
		rec.FreeBuffer(buf)
	}
	rec.FreeImage(f.stencil)

	r.live = false
	return rec
}

func (f *Frame) upload(name string, data []byte) BufferProxy {
	buf := f.rec.Upload(name, data)
	f.tempBufs = append(f.tempBufs, buf)
	return buf
}

func (f *Frame) uniform(u frameUniforms) BufferProxy {
	buf := f.rec.UploadUniform("frame uniforms", safeish.AsBytes(&u))
	f.tempBufs = append(f.tempBufs, buf)
	return buf
}

// ensureRampTexture grows the ramp texture to the cache size, re-uploading
// the CPU mirror after a reallocation.
func (f *Frame) ensureRampTexture() {
	r := f.r
	rows := r.ramps.rows()
	if r.rampTex.ID == 0 && rows == 0 {
		// Composite variants always bind the ramp texture, so a frame with
		// no gradients still needs one.
		r.rampCap = 1
		r.rampTex = NewImageProxy(rampWidth, 1, Rgba8)
		return
	}
	if rows <= r.rampCap {
		return
	}
	if r.rampTex.ID != 0 {
		f.rec.FreeImage(r.rampTex)
	}
	r.rampCap = qmath.AlignUp(rows, rampRowChunk)
	if r.opts.MaxRampRows != 0 && r.rampCap > r.opts.MaxRampRows {
		r.rampCap = r.opts.MaxRampRows
	}
	r.rampTex = NewImageProxy(rampWidth, r.rampCap, Rgba8)
	ramps := r.ramps.ramps()
	f.rec.WriteImage(r.rampTex, 0, 0, ramps.Width, ramps.Height, safeish.SliceCast[[]byte](ramps.Data))
}

// gpuRampStop mirrors the RampStop struct of the ColorRamp shader.
type gpuRampStop struct {
	Color  [4]float32
	Offset [4]float32
}

// recordDirtyRamps repaints the rows touched this frame with ColorRamp
// draws, keeping row generation on the GPU.
func (f *Frame) recordDirtyRamps() {
	r := f.r
	for _, d := range r.ramps.dirty {
		if d.Row >= r.rampCap {
			continue
		}
		stops := make([]gpuRampStop, len(d.Stops))
		for i, s := range d.Stops {
			stops[i] = gpuRampStop{
				Color:  [4]float32{s.Color.R, s.Color.G, s.Color.B, s.Color.A},
				Offset: [4]float32{s.Offset},
			}
		}
		stopBuf := f.upload("ramp stops", safeish.SliceCast[[]byte](stops))
		u := f.uniform(frameUniforms{
			Params: [4]float32{float32(d.Row), float32(r.rampCap)},
		})
		f.rec.Draw(Draw{
			Key:           shaders.VariantKey{Pass: shaders.ColorRamp},
			Target:        r.rampTex,
			Load:          LoadOpLoad,
			VertexCount:   6,
			InstanceCount: 1,
			Bindings:      []ResourceProxy{u.Resource(), stopBuf.Resource()},
		})
	}
}

// planQuads assigns vertex ranges for every quad End will draw: cover quads
// over path bounds, feather scratch geometry, blur quads and atlas blits.
func (f *Frame) planQuads() {
	aw := float32(f.r.opts.AtlasWidth)
	ah := float32(f.r.opts.AtlasHeight)
	for i := range f.paths {
		pd := &f.paths[i]
		if pd.feather <= 0 {
			pd.quadFirst = appendCoverQuad(&f.quadVerts, pd.geom.Bounds)
			continue
		}
		pad := featherPad(pd.feather)
		ox := pd.geom.Bounds[0] - pad
		oy := pd.geom.Bounds[1] - pad
		w := float32(pd.scratchW)
		h := float32(pd.scratchH)
		if !pd.atlasHit {
			pd.scratchFanFirst = uint32(len(f.scratchVerts))
			for _, v := range f.contours.Vertices(pd.geom) {
				f.scratchVerts = append(f.scratchVerts, StencilVertex{v.X - ox, v.Y - oy})
			}
			pd.scratchQuad = appendCoverQuad(&f.scratchVerts, [4]float32{0, 0, w, h})
			f.meshVerts, pd.blurQuadH = appendQuad(f.meshVerts, 0, 0, w, h, 0, 0, 1, 1)
			f.meshVerts, pd.blurQuadV = appendQuad(f.meshVerts,
				float32(pd.region.X), float32(pd.region.Y),
				float32(pd.region.X)+w, float32(pd.region.Y)+h,
				0, 0, 1, 1)
		}
		f.meshVerts, pd.blitQuad = appendQuad(f.meshVerts,
			ox, oy, ox+w, oy+h,
			float32(pd.region.X)/aw, float32(pd.region.Y)/ah,
			(float32(pd.region.X)+w)/aw, (float32(pd.region.Y)+h)/ah)
	}
}

func appendCoverQuad(verts *[]StencilVertex, bounds [4]float32) uint32 {
	first := uint32(len(*verts))
	x0, y0, x1, y1 := bounds[0], bounds[1], bounds[2], bounds[3]
	*verts = append(*verts,
		StencilVertex{x0, y0},
		StencilVertex{x1, y0},
		StencilVertex{x1, y1},
		StencilVertex{x0, y0},
		StencilVertex{x1, y1},
		StencilVertex{x0, y1},
	)
	return first
}

func (f *Frame) pathFeatures(clip bool) shaders.Features {
	feat := shaders.Features{Clipping: clip}
	if f.r.opts.Capabilities.StorageBuffers {
		feat.PathStorageBuffer = true
		feat.BatchCount = f.r.opts.Capabilities.BatchCount
	}
	return feat
}

func (f *Frame) clipUniform() [4]float32 {
	c := f.params.Clip
	if !c.Enabled {
		return [4]float32{}
	}
	return [4]float32{c.X, c.Y, c.X + c.W, c.Y + c.H}
}

// paintUniform encodes a paint into the uniform's paint and params slots.
func paintUniform(p paintData, rampRows uint32) (paint, params [4]float32) {
	if p.fixed {
		return p.color, [4]float32{}
	}
	paint = [4]float32{p.origin[0], p.origin[1], p.axis[0], p.axis[1]}
	params = [4]float32{float32(p.ramp.Row), float32(rampRows), 0, 0}
	if p.radial {
		params[2] = 1
	}
	return paint, params
}

// scissorFor clamps path bounds to the target, returning false when nothing
// of the path is visible.
func scissorFor(bounds [4]float32, w, h uint32) ([4]uint32, bool) {
	x0 := int32(math32.Floor(bounds[0]))
	y0 := int32(math32.Floor(bounds[1]))
	x1 := int32(math32.Ceil(bounds[2]))
	y1 := int32(math32.Ceil(bounds[3]))
	x0 = max(x0, 0)
	y0 = max(y0, 0)
	x1 = min(x1, int32(w))
	y1 = min(y1, int32(h))
	if x1 <= x0 || y1 <= y0 {
		return [4]uint32{}, false
	}
	return [4]uint32{uint32(x0), uint32(y0), uint32(x1 - x0), uint32(y1 - y0)}, true
}

func storageBinding(bindings []ResourceProxy, pathsBuf BufferProxy) []ResourceProxy {
	if pathsBuf.ID != 0 {
		bindings = append(bindings, pathsBuf.Resource())
	}
	return bindings
}

// recordPath emits the stencil accumulation and the cover draw of one plain
// path. The stencil attachment is cleared at accumulation start, so the cover
// never sees winding left over from an earlier path.
func (f *Frame) recordPath(pd *pathDraw, fanBuf, quadBuf, pathsBuf BufferProxy) {
	scissor, visible := scissorFor(pd.geom.Bounds, f.params.Width, f.params.Height)
	if !visible {
		return
	}
	clip := f.params.Clip.Enabled
	paint, params := paintUniform(pd.paint, f.r.rampCap)
	u := f.uniform(frameUniforms{
		Viewport: [4]float32{float32(f.params.Width), float32(f.params.Height)},
		Clip:     f.clipUniform(),
		Paint:    paint,
		Params:   params,
	})

	f.rec.Draw(Draw{
		Key:           shaders.VariantKey{Pass: shaders.StencilDraw, Features: f.pathFeatures(clip)},
		Stencil:       f.stencil,
		StencilLoad:   LoadOpClear,
		Vertex:        fanBuf,
		FirstVertex:   uint32(pd.geom.VertexStart),
		VertexCount:   uint32(pd.geom.VertexCount),
		InstanceCount: 1,
		Scissor:       scissor,
		Bindings:      storageBinding([]ResourceProxy{u.Resource()}, pathsBuf),
	})

	cfeat := f.pathFeatures(clip)
	cfeat.EvenOddFill = pd.rule == gfx.EvenOdd
	cfeat.FixedFunctionColor = pd.paint.fixed
	f.rec.Draw(Draw{
		Key:           shaders.VariantKey{Pass: shaders.CompositeDraw, Features: cfeat},
		Target:        f.target,
		Load:          LoadOpLoad,
		Stencil:       f.stencil,
		StencilLoad:   LoadOpLoad,
		Vertex:        quadBuf,
		FirstVertex:   pd.quadFirst,
		VertexCount:   6,
		InstanceCount: 1,
		Scissor:       scissor,
		Bindings: storageBinding([]ResourceProxy{
			u.Resource(),
			f.r.rampTex.Resource(),
		}, pathsBuf),
	})
}

// recordFeather renders a feathered path: on an atlas miss the coverage is
// rendered into scratch textures, blurred in two separable passes into the
// atlas region, and freed; hit or miss, the result composites onto the
// target as a textured quad.
func (f *Frame) recordFeather(pd *pathDraw, fanBuf, scratchBuf, meshBuf, pathsBuf BufferProxy) {
	r := f.r
	w, h := pd.scratchW, pd.scratchH

	if !pd.atlasHit {
		scratchStencil := NewImageProxy(w, h, Stencil8)
		cov := NewImageProxy(w, h, Rgba8)
		blur := NewImageProxy(w, h, Rgba8)

		u := f.uniform(frameUniforms{
			Viewport: [4]float32{float32(w), float32(h)},
			Paint:    [4]float32{1, 1, 1, 1},
		})
		f.rec.Draw(Draw{
			Key:           shaders.VariantKey{Pass: shaders.StencilDraw, Features: f.pathFeatures(false)},
			Stencil:       scratchStencil,
			StencilLoad:   LoadOpClear,
			Vertex:        scratchBuf,
			FirstVertex:   pd.scratchFanFirst,
			VertexCount:   uint32(pd.geom.VertexCount),
			InstanceCount: 1,
			Bindings:      storageBinding([]ResourceProxy{u.Resource()}, pathsBuf),
		})
		cfeat := f.pathFeatures(false)
		cfeat.EvenOddFill = pd.rule == gfx.EvenOdd
		cfeat.FixedFunctionColor = true
		f.rec.Draw(Draw{
			Key:           shaders.VariantKey{Pass: shaders.CompositeDraw, Features: cfeat},
			Target:        cov,
			Load:          LoadOpClear,
			Stencil:       scratchStencil,
			StencilLoad:   LoadOpLoad,
			Vertex:        scratchBuf,
			FirstVertex:   pd.scratchQuad,
			VertexCount:   6,
			InstanceCount: 1,
			Bindings: storageBinding([]ResourceProxy{
				u.Resource(),
				r.rampTex.Resource(),
			}, pathsBuf),
		})

		uh := f.uniform(frameUniforms{
			Viewport: [4]float32{float32(w), float32(h), float32(w), float32(h)},
			Params:   [4]float32{0, 0, pd.feather, 0},
		})
		f.rec.Draw(Draw{
			Key:           shaders.VariantKey{Pass: shaders.AtlasDraw},
			Target:        blur,
			Load:          LoadOpClear,
			Vertex:        meshBuf,
			FirstVertex:   pd.blurQuadH,
			VertexCount:   6,
			InstanceCount: 1,
			Bindings:      []ResourceProxy{uh.Resource(), cov.Resource()},
		})
		uv := f.uniform(frameUniforms{
			Viewport: [4]float32{float32(r.opts.AtlasWidth), float32(r.opts.AtlasHeight), float32(w), float32(h)},
			Params:   [4]float32{0, 0, pd.feather, 1},
		})
		f.rec.Draw(Draw{
			Key:           shaders.VariantKey{Pass: shaders.AtlasDraw},
			Target:        r.atlasTex,
			Load:          LoadOpLoad,
			Vertex:        meshBuf,
			FirstVertex:   pd.blurQuadV,
			VertexCount:   6,
			InstanceCount: 1,
			Scissor:       [4]uint32{pd.region.X, pd.region.Y, w, h},
			Bindings:      []ResourceProxy{uv.Resource(), blur.Resource()},
		})

		f.rec.FreeImage(scratchStencil)
		f.rec.FreeImage(cov)
		f.rec.FreeImage(blur)
	}

	ub := f.uniform(frameUniforms{
		Viewport: [4]float32{float32(f.params.Width), float32(f.params.Height)},
		Clip:     f.clipUniform(),
		Paint:    pd.paint.color,
	})
	f.rec.Draw(Draw{
		Key: shaders.VariantKey{Pass: shaders.ImageMesh, Features: shaders.Features{
			Clipping:           f.params.Clip.Enabled,
			FixedFunctionColor: true,
		}},
		Target:        f.target,
		Load:          LoadOpLoad,
		Vertex:        meshBuf,
		FirstVertex:   pd.blitQuad,
		VertexCount:   6,
		InstanceCount: 1,
		Winding:       gfx.Clockwise,
		Bindings:      []ResourceProxy{ub.Resource(), r.atlasTex.Resource()},
	})
}

func (f *Frame) recordMesh(m *meshDraw, meshBuf, meshIdxBuf BufferProxy) {
	u := f.uniform(frameUniforms{
		Viewport: [4]float32{float32(f.params.Width), float32(f.params.Height)},
		Clip:     f.clipUniform(),
		Paint:    [4]float32{0, 0, 0, m.opacity},
	})
	f.rec.Draw(Draw{
		Key: shaders.VariantKey{Pass: shaders.ImageMesh, Features: shaders.Features{
			Clipping: f.params.Clip.Enabled,
		}},
		Target:        f.target,
		Load:          LoadOpLoad,
		Vertex:        meshBuf,
		Index:         meshIdxBuf,
		IndexCount:    m.indexCount,
		FirstIndex:    m.firstIndex,
		BaseVertex:    int32(m.vertexBase),
		InstanceCount: 1,
		Winding:       m.winding,
		Bindings:      []ResourceProxy{u.Resource(), f.r.imageProxy(m.image).Resource()},
	})
}

// imageProxy uploads an image once and reuses its texture for the lifetime
// of the renderer.
func (r *Renderer) imageProxy(img gfx.Image) ImageProxy {
	if proxy, ok := r.images[img.Image]; ok {
		return proxy
	}
	b := img.Image.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img.Image, b.Min, draw.Src)
	proxy := r.frame.rec.UploadImage(uint32(b.Dx()), uint32(b.Dy()), Rgba8, rgba.Pix)
	r.images[img.Image] = proxy
	return proxy
}
