package shaders

import (
	"fmt"
	"strings"
	"sync"
)

// A varying is one cross-stage interface value. Both stage modules emit the
// Varyings struct from the same list, which is what guarantees interface
// agreement between the stages.
type varying struct {
	name string
	typ  string
}

type bindingSpec struct {
	Binding
	// wgslType is the declared type; only meaningful for uniform and
	// storage bindings.
	wgslType string
}

type spec struct {
	pass         Pass
	varyings     []varying
	vertexStride uint32
	vertexAttrs  []VertexAttribute
	// binds returns the bind table in slot order for a feature set.
	binds func(Features) []bindingSpec
	// structs emits shared struct declarations beyond FrameUniforms.
	structs  func(Features) string
	vertex   func(Features) string
	fragment func(Features) string
}

var specTable = sync.OnceValue(buildSpecs)

func passSpec(p Pass) *spec {
	return specTable()[p]
}

func (s *spec) bindings(f Features) []Binding {
	bs := s.binds(f)
	out := make([]Binding, len(bs))
	for i, b := range bs {
		out[i] = b.Binding
	}
	return out
}

const frameUniformsWGSL = `struct FrameUniforms {
    viewport: vec4<f32>,
    clip: vec4<f32>,
    paint: vec4<f32>,
    params: vec4<f32>,
}
`

func buildStage(s *spec, f Features, stage Stage) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "const clipping_enabled: bool = %t;\n", f.Clipping)
	fmt.Fprintf(&b, "const advanced_blend: bool = %t;\n", f.AdvancedBlend)
	fmt.Fprintf(&b, "const path_storage: bool = %t;\n", f.PathStorageBuffer)
	fmt.Fprintf(&b, "const fixed_function_color: bool = %t;\n", f.FixedFunctionColor)
	fmt.Fprintf(&b, "const even_odd_fill: bool = %t;\n", f.EvenOddFill)
	fmt.Fprintf(&b, "const batch_count: u32 = %du;\n\n", f.batch())

	b.WriteString(frameUniformsWGSL)
	if s.structs != nil {
		b.WriteString(s.structs(f))
	}

	b.WriteString("struct Varyings {\n")
	b.WriteString("    @builtin(position) position: vec4<f32>,\n")
	for i, v := range s.varyings {
		fmt.Fprintf(&b, "    @location(%d) %s: %s,\n", i, v.name, v.typ)
	}
	b.WriteString("}\n\n")

	for slot, bind := range s.binds(f) {
		if bind.Stages&stage == 0 {
			continue
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) ", slot)
		switch bind.Kind {
		case BindUniform:
			fmt.Fprintf(&b, "var<uniform> %s: %s;\n", bind.Name, bind.wgslType)
		case BindStorageRead:
			fmt.Fprintf(&b, "var<storage, read> %s: %s;\n", bind.Name, bind.wgslType)
		case BindTexture:
			fmt.Fprintf(&b, "var %s: texture_2d<f32>;\n", bind.Name)
		case BindSampler:
			fmt.Fprintf(&b, "var %s: sampler;\n", bind.Name)
		default:
			panic(fmt.Sprintf("invalid bind kind %d", bind.Kind))
		}
	}
	b.WriteString("\n")

	switch stage {
	case StageVertex:
		b.WriteString(s.vertex(f))
	case StageFragment:
		b.WriteString(s.fragment(f))
	default:
		panic(fmt.Sprintf("invalid stage %d", stage))
	}

	return []byte(b.String())
}

// ndcHelper converts device pixel coordinates to normalized device
// coordinates, flipping y so the origin is the top left.
const ndcHelper = `fn to_ndc(p: vec2<f32>) -> vec4<f32> {
    let n = p / frame.viewport.xy * 2.0 - vec2(1.0, 1.0);
    return vec4(n.x, -n.y, 0.0, 1.0);
}
`

// clipHelper discards fragments outside the frame clip rectangle. The
// condition folds to nothing when clipping is disabled.
const clipHelper = `fn apply_clip(pos: vec4<f32>) -> bool {
    if clipping_enabled {
        if pos.x < frame.clip.x || pos.y < frame.clip.y ||
            pos.x > frame.clip.z || pos.y > frame.clip.w {
            return true;
        }
    }
    return false;
}
`
