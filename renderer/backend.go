package renderer

import (
	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/shaders"
)

// GPU is the capability set the core needs from a graphics backend. The
// core is polymorphic over it so the same pipeline logic drives every
// backend, including the CPU interpreter used in tests.
type GPU interface {
	// CreatePipeline compiles both stage modules of desc and builds the
	// pipeline object. Implementations must not substitute a different
	// variant on failure.
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
}

// Pipeline is an opaque compiled pipeline handle owned by the Resolver.
type Pipeline interface {
	Release()
}

// StencilMode is the fixed-function stencil configuration of a pipeline.
type StencilMode int

const (
	// StencilNone disables the stencil unit.
	StencilNone StencilMode = iota
	// StencilAccumulate adds signed winding contributions: front faces
	// increment, back faces decrement, with wraparound.
	StencilAccumulate
	// StencilCoverNonZero passes fragments whose accumulated winding is not
	// zero and clears it back to zero.
	StencilCoverNonZero
	// StencilCoverEvenOdd passes fragments with odd winding parity and
	// clears it back to zero.
	StencilCoverEvenOdd
)

type BlendMode int

const (
	// BlendNone overwrites the destination.
	BlendNone BlendMode = iota
	// BlendPremulOver is source-over with premultiplied alpha.
	BlendPremulOver
)

type CullMode int

const (
	CullNone CullMode = iota
	CullBack
)

// PipelineDesc carries everything a backend needs to build one compiled
// pipeline: the two generated stage modules, the binding table they were
// emitted from, and the fixed-function state implied by the pass.
type PipelineDesc struct {
	Label        string
	Key          shaders.VariantKey
	Vertex       []byte
	Fragment     []byte
	Bindings     []shaders.Binding
	VertexStride uint32
	VertexAttrs  []shaders.VertexAttribute
	Stencil      StencilMode
	Blend        BlendMode
	Cull         CullMode
	FrontFace    gfx.Winding
	// ColorWrite is false for the stencil accumulation pass, which has no
	// color target.
	ColorWrite bool
}
