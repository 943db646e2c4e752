package renderer

import (
	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/shaders"
)

// Resolver owns the compiled-pipeline cache. Specialization constants are
// resolved once per unique variant key; after that a draw costs a map
// lookup, not a shader rebuild.
//
// All methods must be called from the rendering context thread.
type Resolver struct {
	gpu       GPU
	pipelines map[shaders.VariantKey]Pipeline
	failed    map[shaders.VariantKey]*PipelineError
}

func NewResolver(gpu GPU) *Resolver {
	return &Resolver{
		gpu:       gpu,
		pipelines: make(map[shaders.VariantKey]Pipeline),
		failed:    make(map[shaders.VariantKey]*PipelineError),
	}
}

// Pipeline returns the compiled pipeline for key, building it on first use.
// A compilation failure is fatal to this key only: it is remembered and
// returned again on later calls instead of retrying the compile.
func (r *Resolver) Pipeline(key shaders.VariantKey) (Pipeline, error) {
	if p, ok := r.pipelines[key]; ok {
		return p, nil
	}
	if err, ok := r.failed[key]; ok {
		return nil, err
	}

	src, err := shaders.Resolve(key.Pass, key.Features)
	if err != nil {
		return nil, err
	}
	desc := descForKey(key, src)
	p, err := r.gpu.CreatePipeline(desc)
	if err != nil {
		perr := &PipelineError{Key: key, Err: err}
		r.failed[key] = perr
		return nil, perr
	}
	r.pipelines[key] = p
	return p, nil
}

// Release frees every cached pipeline. Called when the owning rendering
// context tears down.
func (r *Resolver) Release() {
	for k, p := range r.pipelines {
		p.Release()
		delete(r.pipelines, k)
	}
	clear(r.failed)
}

func descForKey(key shaders.VariantKey, src shaders.SourcePair) PipelineDesc {
	stride, attrs := shaders.VertexLayout(key.Pass)
	desc := PipelineDesc{
		Label:        src.Label,
		Key:          key,
		Vertex:       src.Vertex,
		Fragment:     src.Fragment,
		Bindings:     shaders.Bindings(key.Pass, key.Features),
		VertexStride: stride,
		VertexAttrs:  attrs,
		FrontFace:    gfx.CounterClockwise,
		ColorWrite:   true,
	}
	switch key.Pass {
	case shaders.StencilDraw:
		desc.Stencil = StencilAccumulate
		desc.ColorWrite = false
	case shaders.CompositeDraw:
		if key.Features.EvenOddFill {
			desc.Stencil = StencilCoverEvenOdd
		} else {
			desc.Stencil = StencilCoverNonZero
		}
		desc.Blend = BlendPremulOver
	case shaders.ImageMesh:
		// Image meshes are wound clockwise; anything else is back-facing
		// and culled, drawing nothing.
		desc.Cull = CullBack
		desc.FrontFace = gfx.Clockwise
		desc.Blend = BlendPremulOver
	case shaders.AtlasDraw, shaders.ColorRamp, shaders.BlitAsDraw:
		// Overwrite draws into cache textures.
	}
	return desc
}
