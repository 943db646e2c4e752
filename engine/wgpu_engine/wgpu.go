package wgpu_engine

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/renderer"
	"github.com/quillgfx/quill/shaders"
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

// pipeline is one compiled render pipeline plus the layout metadata needed
// to build bind groups for its draws.
type pipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	bindings []shaders.Binding
	stencil  renderer.StencilMode
}

func (p *pipeline) Release() {
	p.pipeline.Release()
	p.layout.Release()
}

// CreatePipeline builds a render pipeline from the generated stage modules
// and the fixed-function state of the descriptor. It implements
// renderer.GPU.
func (eng *Engine) CreatePipeline(desc renderer.PipelineDesc) (renderer.Pipeline, error) {
	return eng.createPipeline(desc, wgpu.TextureFormatRGBA8Unorm)
}

func (eng *Engine) createPipeline(desc renderer.PipelineDesc, format wgpu.TextureFormat) (*pipeline, error) {
	dev := eng.Device

	vertMod := dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  desc.Label + " vs",
		Source: wgpu.ShaderSourceWGSL(desc.Vertex),
	})
	fragMod := dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  desc.Label + " fs",
		Source: wgpu.ShaderSourceWGSL(desc.Fragment),
	})

	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Bindings))
	for i, b := range desc.Bindings {
		var vis wgpu.ShaderStage
		if b.Stages&shaders.StageVertex != 0 {
			vis |= wgpu.ShaderStageVertex
		}
		if b.Stages&shaders.StageFragment != 0 {
			vis |= wgpu.ShaderStageFragment
		}
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: vis,
		}
		switch b.Kind {
		case shaders.BindUniform:
			entry.Buffer = &wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeUniform,
			}
		case shaders.BindStorageRead:
			entry.Buffer = &wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeReadOnlyStorage,
			}
		case shaders.BindTexture:
			entry.Texture = &wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
				Multisampled:  false,
			}
		case shaders.BindSampler:
			entry.Sampler = &wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeFiltering,
			}
		default:
			return nil, fmt.Errorf("wgpu_engine: invalid bind kind %d in %s", b.Kind, desc.Label)
		}
		entries[i] = entry
	}
	bindLayout := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: entries,
	})
	pipelineLayout := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindLayout},
	})
	defer pipelineLayout.Release()

	vertexState := &wgpu.VertexState{
		Module:     vertMod,
		EntryPoint: "vs_main",
	}
	if desc.VertexStride > 0 {
		attrs := make([]wgpu.VertexAttribute, len(desc.VertexAttrs))
		for i, a := range desc.VertexAttrs {
			attrs[i] = wgpu.VertexAttribute{
				Format:         attrFormatToWGPU(a.Format),
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		vertexState.Buffers = []wgpu.VertexBufferLayout{
			{
				ArrayStride: uint64(desc.VertexStride),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  attrs,
			},
		}
	}

	fragState := &wgpu.FragmentState{
		Module:     fragMod,
		EntryPoint: "fs_main",
	}
	if desc.ColorWrite {
		target := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if desc.Blend == renderer.BlendPremulOver {
			target.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					Operation: wgpu.BlendOperationAdd,
				},
				Alpha: wgpu.BlendComponent{
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					Operation: wgpu.BlendOperationAdd,
				},
			}
		}
		fragState.Targets = []wgpu.ColorTargetState{target}
	}

	cull := wgpu.CullModeNone
	if desc.Cull == renderer.CullBack {
		cull = wgpu.CullModeBack
	}
	p := dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:    desc.Label,
		Layout:   pipelineLayout,
		Vertex:   vertexState,
		Fragment: fragState,
		Primitive: &wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleList,
			StripIndexFormat: ^wgpu.IndexFormat(0),
			FrontFace:        frontFaceToWGPU(desc.FrontFace),
			CullMode:         cull,
		},
		DepthStencil: stencilStateToWGPU(desc.Stencil),
		Multisample: &wgpu.MultisampleState{
			Count:                  1,
			Mask:                   ^uint32(0),
			AlphaToCoverageEnabled: false,
		},
	})

	return &pipeline{
		label:    desc.Label,
		pipeline: p,
		layout:   bindLayout,
		bindings: desc.Bindings,
		stencil:  desc.Stencil,
	}, nil
}

// frontFaceToWGPU maps a device-space winding to the rasterizer. Device
// coordinates are y-down while normalized device coordinates are y-up, so
// the orientation flips.
func frontFaceToWGPU(w gfx.Winding) wgpu.FrontFace {
	if w == gfx.Clockwise {
		return wgpu.FrontFaceCCW
	}
	return wgpu.FrontFaceCW
}

func attrFormatToWGPU(f shaders.AttrFormat) wgpu.VertexFormat {
	switch f {
	case shaders.Float32x2:
		return wgpu.VertexFormatFloat32x2
	case shaders.Float32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		panic(fmt.Sprintf("unhandled attribute format %d", f))
	}
}

func stencilStateToWGPU(mode renderer.StencilMode) *wgpu.DepthStencilState {
	if mode == renderer.StencilNone {
		return nil
	}
	ds := &wgpu.DepthStencilState{
		Format:            wgpu.TextureFormatStencil8,
		DepthWriteEnabled: false,
		DepthCompare:      wgpu.CompareFunctionAlways,
		StencilReadMask:   0xff,
		StencilWriteMask:  0xff,
	}
	switch mode {
	case renderer.StencilAccumulate:
		// Front faces carry positive winding, back faces negative, with
		// wraparound so deeply nested contours cannot saturate.
		ds.StencilFront = wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationIncrementWrap,
		}
		ds.StencilBack = wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationDecrementWrap,
		}
	case renderer.StencilCoverNonZero, renderer.StencilCoverEvenOdd:
		// Covered fragments pass and reset their winding to the reference,
		// which draws record as zero.
		face := wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionNotEqual,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationReplace,
		}
		ds.StencilFront = face
		ds.StencilBack = face
		if mode == renderer.StencilCoverEvenOdd {
			ds.StencilReadMask = 1
		}
	}
	return ds
}

type ExternalResource interface {
	// One of ExternalBuffer and ExternalImage
}

type ExternalBuffer struct {
	Proxy  renderer.BufferProxy
	Buffer *wgpu.Buffer
}

type ExternalImage struct {
	Proxy renderer.ImageProxy
	View  *wgpu.TextureView
}

type imageEntry struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type bindMap struct {
	bufs   map[renderer.ResourceID]*wgpu.Buffer
	images map[renderer.ResourceID]imageEntry
}

func newBindMap() bindMap {
	return bindMap{
		bufs:   make(map[renderer.ResourceID]*wgpu.Buffer),
		images: make(map[renderer.ResourceID]imageEntry),
	}
}

func (m *bindMap) getOrCreateImage(proxy renderer.ImageProxy, dev *wgpu.Device) imageEntry {
	if entry, ok := m.images[proxy.ID]; ok {
		return entry
	}

	format := imageFormatToWGPU(proxy.Format)
	usage := wgpu.TextureUsageTextureBinding |
		wgpu.TextureUsageRenderAttachment |
		wgpu.TextureUsageCopyDst |
		wgpu.TextureUsageCopySrc
	if proxy.Format == renderer.Stencil8 {
		usage = wgpu.TextureUsageRenderAttachment
	}
	texture := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: "engine image",
		Size: wgpu.Extent3D{
			Width:              proxy.Width,
			Height:             proxy.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage:         usage,
		Format:        format,
	})
	view := texture.CreateView(&wgpu.TextureViewDescriptor{
		Dimension:       wgpu.TextureViewDimension2D,
		Aspect:          wgpu.TextureAspectAll,
		MipLevelCount:   ^uint32(0),
		ArrayLayerCount: ^uint32(0),
		Format:          format,
	})
	entry := imageEntry{texture, view}
	m.images[proxy.ID] = entry
	return entry
}

type bufferProperties struct {
	size   uint64
	usages wgpu.BufferUsage
}

// resourcePool recycles GPU buffers between frames, bucketed by size class
// and usage so a recycled buffer always satisfies the request that pops it.
type resourcePool struct {
	bufs map[bufferProperties][]*wgpu.Buffer
}

func newResourcePool() resourcePool {
	return resourcePool{
		bufs: make(map[bufferProperties][]*wgpu.Buffer),
	}
}

func (pool *resourcePool) getBuf(size uint64, name string, usage wgpu.BufferUsage, dev *wgpu.Device) *wgpu.Buffer {
	const sizeClassBits = 1

	rounded := poolSizeClass(size, sizeClassBits)
	props := bufferProperties{
		size:   rounded,
		usages: usage,
	}
	if bufs := pool.bufs[props]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		pool.bufs[props] = bufs[:len(bufs)-1]
		return buf
	}
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  rounded,
		Usage: usage,
	})
}

func (pool *resourcePool) returnBuf(buf *wgpu.Buffer) {
	props := bufferProperties{
		size:   buf.Size(),
		usages: buf.Usage(),
	}
	pool.bufs[props] = append(pool.bufs[props], buf)
}

func poolSizeClass(x uint64, numBits uint32) uint64 {
	if x > 1<<numBits {
		a := bits.LeadingZeros64(x - 1)
		b := (x - 1) | (((math.MaxUint64 / 2) >> numBits) >> a)
		return b + 1
	}
	return 1 << numBits
}

const uploadUsage = wgpu.BufferUsageCopySrc |
	wgpu.BufferUsageCopyDst |
	wgpu.BufferUsageStorage |
	wgpu.BufferUsageVertex |
	wgpu.BufferUsageIndex

// RunRecording replays a frame recording against the device. External
// resources substitute caller-owned GPU objects for proxies, which is how a
// frame's target ends up on a caller texture.
func (eng *Engine) RunRecording(
	queue *wgpu.Queue,
	recording *renderer.Recording,
	externalResources []ExternalResource,
	label string,
) error {
	freeBufs := map[renderer.ResourceID]struct{}{}
	freeImages := map[renderer.ResourceID]struct{}{}
	var blitBufs []*wgpu.Buffer
	externalImages := map[renderer.ResourceID]*wgpu.TextureView{}
	for _, res := range externalResources {
		switch res := res.(type) {
		case ExternalBuffer:
			eng.bindMap.bufs[res.Proxy.ID] = res.Buffer
		case ExternalImage:
			externalImages[res.Proxy.ID] = res.View
		}
	}

	encoder := eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	defer encoder.Release()

	for _, cmd := range recording.Commands {
		switch cmd := cmd.(type) {
		case *renderer.Upload:
			buf := eng.pool.getBuf(cmd.Buffer.Size, cmd.Buffer.Name, uploadUsage, eng.Device)
			queue.WriteBuffer(buf, 0, cmd.Data)
			eng.bindMap.bufs[cmd.Buffer.ID] = buf

		case *renderer.UploadUniform:
			usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			buf := eng.pool.getBuf(cmd.Buffer.Size, cmd.Buffer.Name, usage, eng.Device)
			queue.WriteBuffer(buf, 0, cmd.Data)
			eng.bindMap.bufs[cmd.Buffer.ID] = buf

		case *renderer.UploadImage:
			entry := eng.bindMap.getOrCreateImage(cmd.Image, eng.Device)
			eng.writeTexture(queue, entry.texture, cmd.Image.Format, 0, 0, cmd.Image.Width, cmd.Image.Height, cmd.Data)

		case *renderer.WriteImage:
			entry := eng.bindMap.getOrCreateImage(cmd.Image, eng.Device)
			eng.writeTexture(queue, entry.texture, cmd.Image.Format,
				cmd.Coords[0], cmd.Coords[1], cmd.Coords[2], cmd.Coords[3], cmd.Data)

		case *renderer.ClearTexture:
			view := eng.imageView(cmd.Image, externalImages)
			pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				ColorAttachments: []wgpu.RenderPassColorAttachment{
					{
						View:    view,
						LoadOp:  wgpu.LoadOpClear,
						StoreOp: wgpu.StoreOpStore,
						ClearValue: wgpu.Color{
							R: float64(cmd.Color[0]),
							G: float64(cmd.Color[1]),
							B: float64(cmd.Color[2]),
							A: float64(cmd.Color[3]),
						},
					},
				},
			})
			pass.End()
			pass.Release()

		case *renderer.Draw:
			if err := eng.replayDraw(queue, encoder, cmd, externalImages); err != nil {
				return err
			}

		case *renderer.CopyTexture:
			if ubuf := eng.replayCopy(queue, encoder, cmd, externalImages); ubuf != nil {
				blitBufs = append(blitBufs, ubuf)
			}

		case *renderer.FreeBuffer:
			freeBufs[cmd.Buffer.ID] = struct{}{}

		case *renderer.FreeImage:
			freeImages[cmd.Image.ID] = struct{}{}

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}

	cmdBuf := encoder.Finish(nil)
	defer cmdBuf.Release()
	queue.Submit(cmdBuf)

	for _, buf := range blitBufs {
		eng.pool.returnBuf(buf)
	}
	for id := range freeBufs {
		if buf, ok := eng.bindMap.bufs[id]; ok {
			delete(eng.bindMap.bufs, id)
			eng.pool.returnBuf(buf)
		}
	}
	for id := range freeImages {
		if entry, ok := eng.bindMap.images[id]; ok {
			delete(eng.bindMap.images, id)
			entry.texture.Release()
			entry.view.Release()
		}
	}
	return nil
}

func (eng *Engine) writeTexture(queue *wgpu.Queue, texture *wgpu.Texture, format renderer.ImageFormat, x, y, width, height uint32, data []byte) {
	queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture: texture,
			Origin:  wgpu.Origin3D{X: x, Y: y},
			Aspect:  wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			BytesPerRow: width * formatBlockSize(format),
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
}

func formatBlockSize(f renderer.ImageFormat) uint32 {
	switch f {
	case renderer.Rgba8, renderer.Bgra8:
		return 4
	case renderer.R8, renderer.Stencil8:
		return 1
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

func (eng *Engine) imageView(proxy renderer.ImageProxy, external map[renderer.ResourceID]*wgpu.TextureView) *wgpu.TextureView {
	if view, ok := external[proxy.ID]; ok {
		return view
	}
	return eng.bindMap.getOrCreateImage(proxy, eng.Device).view
}

// createBindGroup walks the pipeline's binding table, consuming draw
// resources for buffer and texture slots and inserting the engine's shared
// sampler for sampler slots.
func (eng *Engine) createBindGroup(p *pipeline, bindings []renderer.ResourceProxy, external map[renderer.ResourceID]*wgpu.TextureView) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(p.bindings))
	next := 0
	for slot, b := range p.bindings {
		entry := wgpu.BindGroupEntry{
			Binding: uint32(slot),
			Size:    ^uint64(0),
		}
		if b.Kind == shaders.BindSampler {
			entry.Sampler = eng.sampler
			entries[slot] = entry
			continue
		}
		if next >= len(bindings) {
			return nil, fmt.Errorf("wgpu_engine: draw for %s provides %d resources, pipeline needs more", p.label, len(bindings))
		}
		res := bindings[next]
		next++
		switch b.Kind {
		case shaders.BindUniform, shaders.BindStorageRead:
			if res.Kind != renderer.ResourceProxyKindBuffer {
				return nil, fmt.Errorf("wgpu_engine: slot %d of %s needs a buffer", slot, p.label)
			}
			buf, ok := eng.bindMap.bufs[res.BufferProxy.ID]
			if !ok {
				return nil, fmt.Errorf("wgpu_engine: buffer %q was never uploaded", res.BufferProxy.Name)
			}
			entry.Buffer = buf
		case shaders.BindTexture:
			if res.Kind != renderer.ResourceProxyKindImage {
				return nil, fmt.Errorf("wgpu_engine: slot %d of %s needs a texture", slot, p.label)
			}
			entry.TextureView = eng.imageView(res.ImageProxy, external)
		}
		entries[slot] = entry
	}
	return eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  p.layout,
		Entries: entries,
	}), nil
}

func (eng *Engine) replayDraw(queue *wgpu.Queue, encoder *wgpu.CommandEncoder, cmd *renderer.Draw, external map[renderer.ResourceID]*wgpu.TextureView) error {
	rp, err := eng.resolver.Pipeline(cmd.Key)
	if err != nil {
		return err
	}
	p := rp.(*pipeline)

	bindGroup, err := eng.createBindGroup(p, cmd.Bindings, external)
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	desc := wgpu.RenderPassDescriptor{}
	if cmd.Target.ID != 0 {
		att := wgpu.RenderPassColorAttachment{
			View:    eng.imageView(cmd.Target, external),
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if cmd.Load == renderer.LoadOpClear {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{
				R: float64(cmd.ClearColor[0]),
				G: float64(cmd.ClearColor[1]),
				B: float64(cmd.ClearColor[2]),
				A: float64(cmd.ClearColor[3]),
			}
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{att}
	}
	if cmd.Stencil.ID != 0 {
		att := &wgpu.RenderPassDepthStencilAttachment{
			View:           eng.imageView(cmd.Stencil, external),
			StencilLoadOp:  wgpu.LoadOpLoad,
			StencilStoreOp: wgpu.StoreOpStore,
		}
		if cmd.StencilLoad == renderer.LoadOpClear {
			att.StencilLoadOp = wgpu.LoadOpClear
			att.StencilClearValue = 0
		}
		desc.DepthStencilAttachment = att
	}

	pass := encoder.BeginRenderPass(&desc)
	defer pass.Release()

	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	if cmd.Scissor[2] != 0 && cmd.Scissor[3] != 0 {
		pass.SetScissorRect(cmd.Scissor[0], cmd.Scissor[1], cmd.Scissor[2], cmd.Scissor[3])
	}
	if p.stencil != renderer.StencilNone {
		pass.SetStencilReference(cmd.StencilRef)
	}
	if cmd.Vertex.ID != 0 {
		vbuf, ok := eng.bindMap.bufs[cmd.Vertex.ID]
		if !ok {
			return fmt.Errorf("wgpu_engine: vertex buffer %q was never uploaded", cmd.Vertex.Name)
		}
		pass.SetVertexBuffer(0, vbuf, 0, ^uint64(0))
	}
	instances := max(cmd.InstanceCount, 1)
	if cmd.Index.ID != 0 {
		ibuf, ok := eng.bindMap.bufs[cmd.Index.ID]
		if !ok {
			return fmt.Errorf("wgpu_engine: index buffer %q was never uploaded", cmd.Index.Name)
		}
		pass.SetIndexBuffer(ibuf, wgpu.IndexFormatUint32, 0, ^uint64(0))
		pass.DrawIndexed(cmd.IndexCount, instances, cmd.FirstIndex, cmd.BaseVertex, 0)
	} else {
		pass.Draw(cmd.VertexCount, instances, cmd.FirstVertex, 0)
	}
	pass.End()
	return nil
}

// blitUniforms mirrors the FrameUniforms struct of the blit variant.
// Viewport holds destination then source size, Params the destination
// origin.
type blitUniforms struct {
	Viewport [4]float32
	Clip     [4]float32
	Paint    [4]float32
	Params   [4]float32
}

// replayCopy executes a CopyTexture command, natively or as a draw. External
// images only exist as views here, so copies touching one go through the
// draw path regardless of native blit support. Returns the transient uniform
// buffer of a draw copy; the caller pools it after submission.
func (eng *Engine) replayCopy(queue *wgpu.Queue, encoder *wgpu.CommandEncoder, cmd *renderer.CopyTexture, external map[renderer.ResourceID]*wgpu.TextureView) *wgpu.Buffer {
	_, srcExternal := external[cmd.Src.ID]
	_, dstExternal := external[cmd.Dst.ID]
	if !eng.opts.DisableNativeBlit && !srcExternal && !dstExternal {
		src := eng.bindMap.getOrCreateImage(cmd.Src, eng.Device)
		dst := eng.bindMap.getOrCreateImage(cmd.Dst, eng.Device)
		encoder.CopyTextureToTexture(
			&wgpu.ImageCopyTexture{
				Texture: src.texture,
				Aspect:  wgpu.TextureAspectAll,
			},
			&wgpu.ImageCopyTexture{
				Texture: dst.texture,
				Origin:  wgpu.Origin3D{X: cmd.DstX, Y: cmd.DstY},
				Aspect:  wgpu.TextureAspectAll,
			},
			&wgpu.Extent3D{
				Width:              cmd.Src.Width,
				Height:             cmd.Src.Height,
				DepthOrArrayLayers: 1,
			},
		)
		return nil
	}

	u := blitUniforms{
		Viewport: [4]float32{
			float32(cmd.Dst.Width), float32(cmd.Dst.Height),
			float32(cmd.Src.Width), float32(cmd.Src.Height),
		},
		Params: [4]float32{float32(cmd.DstX), float32(cmd.DstY), 0, 0},
	}
	data := safeish.AsBytes(&u)
	ubuf := eng.pool.getBuf(uint64(len(data)), "blit uniforms",
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, eng.Device)
	queue.WriteBuffer(ubuf, 0, data)

	blit := eng.blitPipeline(imageFormatToWGPU(cmd.Dst.Format))
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
				TextureView: eng.imageView(cmd.Src, external),
				Size:        ^uint64(0),
			},
		},
	})
	defer bindGroup.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    eng.imageView(cmd.Dst, external),
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	defer pass.Release()
	pass.SetPipeline(blit.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.SetScissorRect(cmd.DstX, cmd.DstY, cmd.Src.Width, cmd.Src.Height)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	return ubuf
}
