// Package quill is a multi-pass GPU renderer for 2D vector graphics: paths
// are rasterized with a stencil-then-cover pipeline, gradients through a
// cached ramp texture, feathered shapes through a shared atlas, and images
// as textured meshes. The renderer records backend-agnostic command lists;
// the wgpu engine replays them on a device.
package quill

import (
	"github.com/quillgfx/quill/engine/wgpu_engine"
	"github.com/quillgfx/quill/renderer"
	"honnef.co/go/wgpu"
)

type Options struct {
	// SurfaceFormat is the format of the presentation surface, for
	// RenderToSurface.
	SurfaceFormat wgpu.TextureFormat
	// DisableNativeBlit and DisableStorageBuffers restrict the engine to
	// the corresponding fallback paths.
	DisableNativeBlit     bool
	DisableStorageBuffers bool
	// MaxRampRows bounds the gradient ramp texture. Zero lets it grow.
	MaxRampRows uint32
	// AtlasWidth and AtlasHeight size the feather atlas. Zero selects the
	// defaults.
	AtlasWidth  uint32
	AtlasHeight uint32
	// Tolerance is the curve flattening tolerance in device pixels.
	Tolerance float64
}

// Renderer couples a recording renderer with the wgpu engine that replays
// its frames.
type Renderer struct {
	engine *wgpu_engine.Engine
	core   *renderer.Renderer
}

func NewRenderer(dev *wgpu.Device, opts Options) *Renderer {
	engine := wgpu_engine.New(dev, wgpu_engine.Options{
		SurfaceFormat:         opts.SurfaceFormat,
		DisableNativeBlit:     opts.DisableNativeBlit,
		DisableStorageBuffers: opts.DisableStorageBuffers,
	})
	core := renderer.New(renderer.RendererOptions{
		Capabilities: engine.Capabilities(),
		MaxRampRows:  opts.MaxRampRows,
		AtlasWidth:   opts.AtlasWidth,
		AtlasHeight:  opts.AtlasHeight,
		Tolerance:    opts.Tolerance,
	})
	return &Renderer{
		engine: engine,
		core:   core,
	}
}

// BeginFrame starts a frame. Submit paths, strokes, gradients and meshes to
// the returned frame, then render it with RenderToTexture or
// RenderToSurface.
func (r *Renderer) BeginFrame(params renderer.RenderParams) *renderer.Frame {
	return r.core.BeginFrame(params)
}

// RenderToTexture ends the frame and renders it into the given RGBA8
// texture view.
func (r *Renderer) RenderToTexture(queue *wgpu.Queue, frame *renderer.Frame, texture *wgpu.TextureView) error {
	return r.engine.RenderToTexture(queue, frame, texture)
}

// RenderToSurface ends the frame and presents it to a surface texture,
// converting to the surface format.
func (r *Renderer) RenderToSurface(queue *wgpu.Queue, frame *renderer.Frame, surface *wgpu.SurfaceTexture) error {
	return r.engine.RenderToSurface(queue, frame, surface)
}

// Release frees the engine's GPU objects, including every cached pipeline.
func (r *Renderer) Release() {
	r.engine.Release()
}
