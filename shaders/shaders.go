// Package shaders enumerates the renderer's draw passes and produces the
// shader source variant for a pass and a set of feature flags.
//
// Every variant is generated from a single per-pass table of bindings and
// varyings. The builder emits one vertex module and one fragment module from
// that table, so the two stages agree on struct layouts and binding slots by
// construction. Feature flags become constants in the emitted source; a
// unique flag combination yields a unique source pair, compiled once by the
// pipeline cache.
package shaders

import (
	"errors"
	"fmt"
)

type Pass int

const (
	StencilDraw Pass = iota
	ColorRamp
	AtlasDraw
	ImageMesh
	BlitAsDraw
	CompositeDraw
	numPasses
)

func (p Pass) String() string {
	switch p {
	case StencilDraw:
		return "stencil_draw"
	case ColorRamp:
		return "color_ramp"
	case AtlasDraw:
		return "atlas_draw"
	case ImageMesh:
		return "image_mesh"
	case BlitAsDraw:
		return "blit_as_draw"
	case CompositeDraw:
		return "composite_draw"
	default:
		return fmt.Sprintf("Pass(%d)", int(p))
	}
}

// Features is the set of toggles that select a shader variant. The zero
// value describes the simplest variant of any pass. Features is a value
// type; two keys built from it compare equal iff every field matches.
type Features struct {
	// Clipping enables the frame clip rectangle.
	Clipping bool
	// AdvancedBlend selects blend equation emulation in the fragment stage
	// for backends without advanced blend hardware.
	AdvancedBlend bool
	// PathStorageBuffer reads per-path records from a storage buffer instead
	// of per-draw uniforms.
	PathStorageBuffer bool
	// FixedFunctionColor outputs the paint color directly, skipping ramp
	// sampling.
	FixedFunctionColor bool
	// EvenOddFill selects parity coverage in the resolve step. Only
	// meaningful for CompositeDraw.
	EvenOddFill bool
	// BatchCount is the fixed number of path records per draw batch when
	// PathStorageBuffer is set. Zero means one.
	BatchCount uint32
}

type FeatureMask uint32

const (
	MaskClipping FeatureMask = 1 << iota
	MaskAdvancedBlend
	MaskPathStorageBuffer
	MaskFixedFunctionColor
	MaskEvenOddFill
	MaskBatchCount
)

// Mask reports which features deviate from the zero value.
func (f Features) Mask() FeatureMask {
	var m FeatureMask
	if f.Clipping {
		m |= MaskClipping
	}
	if f.AdvancedBlend {
		m |= MaskAdvancedBlend
	}
	if f.PathStorageBuffer {
		m |= MaskPathStorageBuffer
	}
	if f.FixedFunctionColor {
		m |= MaskFixedFunctionColor
	}
	if f.EvenOddFill {
		m |= MaskEvenOddFill
	}
	if f.BatchCount > 1 {
		m |= MaskBatchCount
	}
	return m
}

func (f Features) batch() uint32 {
	if f.BatchCount == 0 {
		return 1
	}
	return f.BatchCount
}

// VariantKey identifies one compiled shader variant. It is the key of the
// pipeline cache.
type VariantKey struct {
	Pass     Pass
	Features Features
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s+%06b", k.Pass, k.Features.Mask())
}

// SourcePair is the generated WGSL for both stages of one variant.
type SourcePair struct {
	Label    string
	Vertex   []byte
	Fragment []byte
}

type BindKind int

const (
	BindUniform BindKind = iota + 1
	BindStorageRead
	BindTexture
	BindSampler
)

type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
)

// Binding is one slot of a pass's bind group. The slot number is the index
// into the slice returned by Bindings; vertex and fragment modules share the
// numbering because both are emitted from the same table.
type Binding struct {
	Name   string
	Kind   BindKind
	Stages Stage
}

type AttrFormat int

const (
	Float32x2 AttrFormat = iota + 1
	Float32x4
)

// VertexAttribute describes one element of a pass's vertex buffer layout.
type VertexAttribute struct {
	Name     string
	Format   AttrFormat
	Offset   uint32
	Location uint32
}

// ErrUnsupportedFeatureCombination is returned when a requested flag has no
// meaning for the pass. The caller may retry with a simpler flag set.
var ErrUnsupportedFeatureCombination = errors.New("shaders: unsupported feature combination for pass")

var passMasks = [numPasses]FeatureMask{
	StencilDraw:   MaskClipping | MaskPathStorageBuffer | MaskBatchCount,
	ColorRamp:     0,
	AtlasDraw:     0,
	ImageMesh:     MaskClipping | MaskAdvancedBlend | MaskFixedFunctionColor,
	BlitAsDraw:    0,
	CompositeDraw: MaskClipping | MaskAdvancedBlend | MaskPathStorageBuffer | MaskFixedFunctionColor | MaskEvenOddFill | MaskBatchCount,
}

// ValidFeatures reports the flags that are meaningful for a pass.
func ValidFeatures(pass Pass) FeatureMask {
	if pass < 0 || pass >= numPasses {
		panic(fmt.Sprintf("invalid pass %d", int(pass)))
	}
	return passMasks[pass]
}

// Resolve maps a (pass, feature set) tuple to its shader source pair. It is
// a pure function over the static pass table; the same inputs always return
// identical source.
func Resolve(pass Pass, f Features) (SourcePair, error) {
	if pass < 0 || pass >= numPasses {
		panic(fmt.Sprintf("invalid pass %d", int(pass)))
	}
	if extra := f.Mask() &^ passMasks[pass]; extra != 0 {
		return SourcePair{}, fmt.Errorf("%w: %s does not support %06b", ErrUnsupportedFeatureCombination, pass, extra)
	}
	spec := passSpec(pass)
	return SourcePair{
		Label:    VariantKey{pass, f}.String(),
		Vertex:   buildStage(spec, f, StageVertex),
		Fragment: buildStage(spec, f, StageFragment),
	}, nil
}

// Bindings returns the bind group table of a variant, in slot order. The
// engine derives its bind group layout from this, guaranteeing agreement
// with the emitted source.
func Bindings(pass Pass, f Features) []Binding {
	return passSpec(pass).bindings(f)
}

// VertexLayout returns the vertex buffer stride and attributes of a pass. A
// zero stride means the pass generates vertices from the vertex index alone.
func VertexLayout(pass Pass) (stride uint32, attrs []VertexAttribute) {
	spec := passSpec(pass)
	return spec.vertexStride, spec.vertexAttrs
}
