package shaders

// The per-pass tables. Binding slot numbers are positional: slot 0 is the
// frame uniform for every pass that has one, keeping bind group layouts
// uniform across variants of a pass.

func buildSpecs() [numPasses]*spec {
	var t [numPasses]*spec
	t[StencilDraw] = stencilDrawSpec()
	t[ColorRamp] = colorRampSpec()
	t[AtlasDraw] = atlasDrawSpec()
	t[ImageMesh] = imageMeshSpec()
	t[BlitAsDraw] = blitAsDrawSpec()
	t[CompositeDraw] = compositeDrawSpec()
	return t
}

const pathRecWGSL = `struct PathRec {
    mat: vec4<f32>,
    offset: vec2<f32>,
    pad: vec2<f32>,
}
`

func pathStorageStructs(f Features) string {
	if f.PathStorageBuffer {
		return pathRecWGSL
	}
	return ""
}

func pathStorageBinding(f Features, binds []bindingSpec) []bindingSpec {
	if f.PathStorageBuffer {
		binds = append(binds, bindingSpec{
			Binding:  Binding{Name: "paths", Kind: BindStorageRead, Stages: StageVertex},
			wgslType: "array<PathRec>",
		})
	}
	return binds
}

// applyPathRec positions a vertex, optionally through the per-batch path
// record selected by the instance index.
const applyPathRec = `fn apply_path(pos: vec2<f32>, instance: u32) -> vec2<f32> {
    if path_storage {
        let rec = paths[min(instance, batch_count - 1u)];
        return vec2(
            rec.mat.x * pos.x + rec.mat.z * pos.y,
            rec.mat.y * pos.x + rec.mat.w * pos.y,
        ) + rec.offset;
    }
    return pos;
}
`

func stencilDrawSpec() *spec {
	return &spec{
		pass:         StencilDraw,
		vertexStride: 8,
		vertexAttrs: []VertexAttribute{
			{Name: "pos", Format: Float32x2, Offset: 0, Location: 0},
		},
		structs: pathStorageStructs,
		binds: func(f Features) []bindingSpec {
			binds := []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
			}
			return pathStorageBinding(f, binds)
		},
		vertex: func(f Features) string {
			src := ndcHelper
			if f.PathStorageBuffer {
				src += applyPathRec
			}
			src += `
@vertex
fn vs_main(
    @builtin(instance_index) instance: u32,
    @location(0) pos: vec2<f32>,
) -> Varyings {
    var out: Varyings;
    var p = pos;
`
			if f.PathStorageBuffer {
				src += "    p = apply_path(p, instance);\n"
			}
			src += `    out.position = to_ndc(p);
    return out;
}
`
			return src
		},
		fragment: func(f Features) string {
			// Winding accumulates in the stencil attachment; there is no
			// color target to write.
			return clipHelper + `
@fragment
fn fs_main(in: Varyings) {
    if apply_clip(in.position) {
        discard;
    }
}
`
		},
	}
}

func colorRampSpec() *spec {
	return &spec{
		pass:     ColorRamp,
		varyings: []varying{{name: "v_t", typ: "f32"}},
		structs: func(Features) string {
			return `struct RampStop {
    color: vec4<f32>,
    offset: vec4<f32>,
}
`
		},
		binds: func(Features) []bindingSpec {
			return []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
				{Binding: Binding{Name: "stops", Kind: BindStorageRead, Stages: StageFragment}, wgslType: "array<RampStop>"},
			}
		},
		vertex: func(Features) string {
			// One full-width row quad; the target row is carried in
			// frame.params.x, the ramp texture height in frame.params.y.
			return `@vertex
fn vs_main(@builtin(vertex_index) ix: u32) -> Varyings {
    var out: Varyings;
    var x = 0.0;
    switch ix {
        case 2u, 4u, 5u: { x = 1.0; }
        default: {}
    }
    var y = 0.0;
    switch ix {
        case 1u, 2u, 4u: { y = 1.0; }
        default: {}
    }
    let row = frame.params.x;
    let rows = frame.params.y;
    let ny = (row + y) / rows * 2.0 - 1.0;
    out.position = vec4(x * 2.0 - 1.0, -ny, 0.0, 1.0);
    out.v_t = x;
    return out;
}
`
		},
		fragment: func(Features) string {
			return `@fragment
fn fs_main(in: Varyings) -> @location(0) vec4<f32> {
    let n = arrayLength(&stops);
    var last = stops[0];
    var cur = stops[0];
    for (var i = 0u; i < n; i++) {
        if stops[i].offset.x >= in.v_t {
            cur = stops[i];
            break;
        }
        last = stops[i];
        cur = stops[i];
    }
    let du = cur.offset.x - last.offset.x;
    var c = cur.color;
    if du > 1e-9 {
        c = mix(last.color, cur.color, (in.v_t - last.offset.x) / du);
    }
    return vec4(c.rgb * c.a, c.a);
}
`
		},
	}
}

func atlasDrawSpec() *spec {
	return &spec{
		pass:         AtlasDraw,
		varyings:     []varying{{name: "v_uv", typ: "vec2<f32>"}},
		vertexStride: 16,
		vertexAttrs: []VertexAttribute{
			{Name: "pos", Format: Float32x2, Offset: 0, Location: 0},
			{Name: "uv", Format: Float32x2, Offset: 8, Location: 1},
		},
		binds: func(Features) []bindingSpec {
			return []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
				{Binding: Binding{Name: "coverage_tex", Kind: BindTexture, Stages: StageFragment}},
				{Binding: Binding{Name: "coverage_smp", Kind: BindSampler, Stages: StageFragment}},
			}
		},
		vertex: func(Features) string {
			return ndcHelper + `
@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> Varyings {
    var out: Varyings;
    out.position = to_ndc(pos);
    out.v_uv = uv;
    return out;
}
`
		},
		fragment: func(Features) string {
			// Separable Gaussian; frame.params.z is the feather radius in
			// texels, frame.params.w selects the blur axis.
			return `const taps = 9;

@fragment
fn fs_main(in: Varyings) -> @location(0) vec4<f32> {
    let radius = max(frame.params.z, 0.5);
    let sigma = radius * 0.5;
    var dir = vec2(1.0, 0.0);
    if frame.params.w > 0.5 {
        dir = vec2(0.0, 1.0);
    }
    let texel = dir / frame.viewport.zw;
    var sum = 0.0;
    var weight = 0.0;
    for (var i = 0; i < taps; i++) {
        let o = f32(i - taps / 2) / f32(taps / 2) * radius;
        let w = exp(-o * o / (2.0 * sigma * sigma));
        sum += textureSampleLevel(coverage_tex, coverage_smp, in.v_uv + texel * o, 0.0).r * w;
        weight += w;
    }
    return vec4(sum / weight, 0.0, 0.0, 1.0);
}
`
		},
	}
}

func imageMeshSpec() *spec {
	return &spec{
		pass:         ImageMesh,
		varyings:     []varying{{name: "v_uv", typ: "vec2<f32>"}},
		vertexStride: 16,
		vertexAttrs: []VertexAttribute{
			{Name: "pos", Format: Float32x2, Offset: 0, Location: 0},
			{Name: "uv", Format: Float32x2, Offset: 8, Location: 1},
		},
		binds: func(Features) []bindingSpec {
			return []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
				{Binding: Binding{Name: "mesh_tex", Kind: BindTexture, Stages: StageFragment}},
				{Binding: Binding{Name: "mesh_smp", Kind: BindSampler, Stages: StageFragment}},
			}
		},
		vertex: func(Features) string {
			return ndcHelper + `
@vertex
fn vs_main(@location(0) pos: vec2<f32>, @location(1) uv: vec2<f32>) -> Varyings {
    var out: Varyings;
    out.position = to_ndc(pos);
    out.v_uv = uv;
    return out;
}
`
		},
		fragment: func(Features) string {
			return clipHelper + `
@fragment
fn fs_main(in: Varyings) -> @location(0) vec4<f32> {
    if apply_clip(in.position) {
        discard;
    }
    var color = textureSampleLevel(mesh_tex, mesh_smp, in.v_uv, 0.0);
    if fixed_function_color {
        // Paint modulated by a single-channel mask, the atlas-blit case.
        color = frame.paint * color.r;
    } else {
        color = color * frame.paint.a;
    }
    if advanced_blend {
        color = vec4(color.rgb / max(color.a, 1e-4), color.a);
    }
    return color;
}
`
		},
	}
}

func blitAsDrawSpec() *spec {
	return &spec{
		pass: BlitAsDraw,
		binds: func(Features) []bindingSpec {
			return []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
				{Binding: Binding{Name: "src", Kind: BindTexture, Stages: StageFragment}},
			}
		},
		vertex: func(Features) string {
			// A quad over the destination rectangle: frame.params.xy is the
			// destination origin, frame.viewport.zw the source size.
			return ndcHelper + `
@vertex
fn vs_main(@builtin(vertex_index) ix: u32) -> Varyings {
    var out: Varyings;
    var sx = 0.0;
    switch ix {
        case 2u, 4u, 5u: { sx = 1.0; }
        default: {}
    }
    var sy = 0.0;
    switch ix {
        case 1u, 2u, 4u: { sy = 1.0; }
        default: {}
    }
    out.position = to_ndc(frame.params.xy + vec2(sx, sy) * frame.viewport.zw);
    return out;
}
`
		},
		fragment: func(Features) string {
			// A straight copy. Pixel values must come out bit-identical, so
			// no premultiplication or other rewriting happens here.
			return `@fragment
fn fs_main(in: Varyings) -> @location(0) vec4<f32> {
    let p = vec2<i32>(in.position.xy) - vec2<i32>(frame.params.xy);
    return textureLoad(src, p, 0);
}
`
		},
	}
}

func compositeDrawSpec() *spec {
	return &spec{
		pass:         CompositeDraw,
		varyings:     []varying{{name: "v_pos", typ: "vec2<f32>"}},
		vertexStride: 8,
		vertexAttrs: []VertexAttribute{
			{Name: "pos", Format: Float32x2, Offset: 0, Location: 0},
		},
		structs: pathStorageStructs,
		binds: func(f Features) []bindingSpec {
			binds := []bindingSpec{
				{Binding: Binding{Name: "frame", Kind: BindUniform, Stages: StageVertex | StageFragment}, wgslType: "FrameUniforms"},
				{Binding: Binding{Name: "ramp_tex", Kind: BindTexture, Stages: StageFragment}},
				{Binding: Binding{Name: "ramp_smp", Kind: BindSampler, Stages: StageFragment}},
			}
			return pathStorageBinding(f, binds)
		},
		vertex: func(f Features) string {
			src := ndcHelper
			if f.PathStorageBuffer {
				src += applyPathRec
			}
			src += `
@vertex
fn vs_main(
    @builtin(instance_index) instance: u32,
    @location(0) pos: vec2<f32>,
) -> Varyings {
    var out: Varyings;
    var p = pos;
`
			if f.PathStorageBuffer {
				src += "    p = apply_path(p, instance);\n"
			}
			src += `    out.position = to_ndc(p);
    out.v_pos = p;
    return out;
}
`
			return src
		},
		fragment: func(f Features) string {
			// The stencil test has already resolved winding (non-zero or
			// parity per even_odd_fill); only covered fragments reach this
			// stage.
			return clipHelper + `
@fragment
fn fs_main(in: Varyings) -> @location(0) vec4<f32> {
    if apply_clip(in.position) {
        discard;
    }
    var color = frame.paint;
    if !fixed_function_color {
        // paint.xy is the gradient origin; paint.zw the projection axis for
        // linear gradients or (1/radius, 0) for radial ones.
        var t = clamp(dot(in.v_pos - frame.paint.xy, frame.paint.zw), 0.0, 1.0);
        if frame.params.z > 0.5 {
            t = clamp(length(in.v_pos - frame.paint.xy) * frame.paint.z, 0.0, 1.0);
        }
        let v = (frame.params.x + 0.5) / frame.params.y;
        color = textureSampleLevel(ramp_tex, ramp_smp, vec2(t, v), 0.0);
    }
    if advanced_blend {
        color = vec4(color.rgb / max(color.a, 1e-4), color.a);
    }
    return color;
}
`
		},
	}
}
