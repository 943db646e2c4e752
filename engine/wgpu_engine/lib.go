// Package wgpu_engine replays renderer recordings on a wgpu device.
package wgpu_engine

import (
	"fmt"

	"github.com/quillgfx/quill/renderer"
	"github.com/quillgfx/quill/shaders"
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

type Options struct {
	// SurfaceFormat is the texture format of the presentation surface.
	SurfaceFormat wgpu.TextureFormat
	// DisableNativeBlit replays CopyTexture commands as draws where
	// possible, the path backends without a native copy would take.
	DisableNativeBlit bool
	// DisableStorageBuffers keeps per-path records in uniforms.
	DisableStorageBuffers bool
	// BatchCount overrides the path record batch size. Zero means one.
	BatchCount uint32
}

type Engine struct {
	Device *wgpu.Device

	opts     Options
	resolver *renderer.Resolver
	pool     resourcePool
	bindMap  bindMap

	// sampler backs every sampler binding slot; all passes sample with
	// linear filtering and edge clamping.
	sampler *wgpu.Sampler

	// blits caches the copy-as-draw pipeline per destination format.
	blits map[wgpu.TextureFormat]*pipeline

	// target is the intermediate texture for surface rendering.
	target *targetTexture
}

func New(dev *wgpu.Device, opts Options) *Engine {
	eng := &Engine{
		Device:  dev,
		opts:    opts,
		pool:    newResourcePool(),
		bindMap: newBindMap(),
		blits:   make(map[wgpu.TextureFormat]*pipeline),
	}
	eng.resolver = renderer.NewResolver(eng)
	eng.sampler = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "engine sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	return eng
}

// Capabilities reports what recordings for this engine may rely on. Hand it
// to renderer.New so the renderer records variants this engine can replay.
func (eng *Engine) Capabilities() renderer.Capabilities {
	return renderer.Capabilities{
		StorageBuffers: !eng.opts.DisableStorageBuffers,
		NativeBlit:     !eng.opts.DisableNativeBlit,
		BatchCount:     max(eng.opts.BatchCount, 1),
	}
}

// Release frees every GPU object the engine owns. Recordings must not be
// replayed afterwards.
func (eng *Engine) Release() {
	eng.resolver.Release()
	for _, p := range eng.blits {
		p.Release()
	}
	clear(eng.blits)
	for _, bufs := range eng.pool.bufs {
		for _, buf := range bufs {
			buf.Release()
		}
	}
	clear(eng.pool.bufs)
	for id, entry := range eng.bindMap.images {
		entry.texture.Release()
		entry.view.Release()
		delete(eng.bindMap.images, id)
	}
	for id, buf := range eng.bindMap.bufs {
		buf.Release()
		delete(eng.bindMap.bufs, id)
	}
	eng.sampler.Release()
	if eng.target != nil {
		eng.target.view.Release()
		eng.target = nil
	}
}

func (eng *Engine) blitPipeline(format wgpu.TextureFormat) *pipeline {
	if p, ok := eng.blits[format]; ok {
		return p
	}
	src, err := shaders.Resolve(shaders.BlitAsDraw, shaders.Features{})
	if err != nil {
		panic(err)
	}
	stride, attrs := shaders.VertexLayout(shaders.BlitAsDraw)
	p, err := eng.createPipeline(renderer.PipelineDesc{
		Label:        src.Label,
		Key:          shaders.VariantKey{Pass: shaders.BlitAsDraw},
		Vertex:       src.Vertex,
		Fragment:     src.Fragment,
		Bindings:     shaders.Bindings(shaders.BlitAsDraw, shaders.Features{}),
		VertexStride: stride,
		VertexAttrs:  attrs,
		ColorWrite:   true,
	}, format)
	if err != nil {
		panic(err)
	}
	eng.blits[format] = p
	return p
}

type targetTexture struct {
	view   *wgpu.TextureView
	width  uint32
	height uint32
}

func newTargetTexture(dev *wgpu.Device, width, height uint32) *targetTexture {
	tex := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: "target texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage: wgpu.TextureUsageRenderAttachment |
			wgpu.TextureUsageTextureBinding,
		Format: wgpu.TextureFormatRGBA8Unorm,
	})
	defer tex.Release()
	view := tex.CreateView(nil)
	return &targetTexture{
		view:   view,
		width:  width,
		height: height,
	}
}

func imageFormatToWGPU(f renderer.ImageFormat) wgpu.TextureFormat {
	switch f {
	case renderer.Rgba8:
		return wgpu.TextureFormatRGBA8Unorm
	case renderer.Bgra8:
		return wgpu.TextureFormatBGRA8Unorm
	case renderer.R8:
		return wgpu.TextureFormatR8Unorm
	case renderer.Stencil8:
		return wgpu.TextureFormatStencil8
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

// RenderToTexture ends the frame and replays it with the frame target mapped
// to the given texture view.
func (eng *Engine) RenderToTexture(
	queue *wgpu.Queue,
	frame *renderer.Frame,
	texture *wgpu.TextureView,
) error {
	recording := frame.End()
	externalResources := []ExternalResource{
		ExternalImage{
			Proxy: frame.Target(),
			View:  texture,
		},
	}
	return eng.RunRecording(queue, recording, externalResources, "render_to_texture")
}

// RenderToSurface renders the frame to an intermediate texture and blits it
// to the surface, converting to the surface format on the way.
func (eng *Engine) RenderToSurface(
	queue *wgpu.Queue,
	frame *renderer.Frame,
	surface *wgpu.SurfaceTexture,
) error {
	target := frame.Target()
	if eng.target == nil || eng.target.width != target.Width || eng.target.height != target.Height {
		if eng.target != nil {
			eng.target.view.Release()
		}
		eng.target = newTargetTexture(eng.Device, target.Width, target.Height)
	}

	if err := eng.RenderToTexture(queue, frame, eng.target.view); err != nil {
		return err
	}

	surfaceView := surface.Texture.CreateView(nil)
	defer surfaceView.Release()

	w := float32(eng.target.width)
	h := float32(eng.target.height)
	u := blitUniforms{Viewport: [4]float32{w, h, w, h}}
	data := safeish.AsBytes(&u)
	ubuf := eng.pool.getBuf(uint64(len(data)), "blit uniforms",
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, eng.Device)
	queue.WriteBuffer(ubuf, 0, data)

	blit := eng.blitPipeline(eng.opts.SurfaceFormat)
	bindGroup := eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: blit.layout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  ubuf,
				Size:    ^uint64(0),
			},
			{
				Binding:     1,
				TextureView: eng.target.view,
				Size:        ^uint64(0),
			},
		},
	})
	defer bindGroup.Release()

	encoder := eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "blitter"})
	defer encoder.Release()
	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    surfaceView,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	defer renderPass.Release()

	renderPass.SetPipeline(blit.pipeline)
	renderPass.SetBindGroup(0, bindGroup, nil)
	renderPass.Draw(6, 1, 0, 0)
	renderPass.End()

	cmd := encoder.Finish(nil)
	defer cmd.Release()
	queue.Submit(cmd)
	eng.pool.returnBuf(ubuf)
	return nil
}
