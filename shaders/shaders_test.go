package shaders

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allPasses() []Pass {
	return []Pass{StencilDraw, ColorRamp, AtlasDraw, ImageMesh, BlitAsDraw, CompositeDraw}
}

// subsets of a feature mask, for exhaustive variant enumeration.
func maskSubsets(mask FeatureMask) []FeatureMask {
	var bits []FeatureMask
	for b := FeatureMask(1); b <= mask; b <<= 1 {
		if mask&b != 0 {
			bits = append(bits, b)
		}
	}
	out := []FeatureMask{0}
	for _, b := range bits {
		for _, m := range out {
			out = append(out, m|b)
		}
	}
	return out
}

func featuresFromMask(m FeatureMask) Features {
	f := Features{
		Clipping:           m&MaskClipping != 0,
		AdvancedBlend:      m&MaskAdvancedBlend != 0,
		PathStorageBuffer:  m&MaskPathStorageBuffer != 0,
		FixedFunctionColor: m&MaskFixedFunctionColor != 0,
		EvenOddFill:        m&MaskEvenOddFill != 0,
	}
	if m&MaskBatchCount != 0 {
		f.BatchCount = 4
	}
	return f
}

func TestResolveDeterministic(t *testing.T) {
	for _, pass := range allPasses() {
		for _, m := range maskSubsets(ValidFeatures(pass)) {
			f := featuresFromMask(m)
			a, err := Resolve(pass, f)
			require.NoError(t, err)
			b, err := Resolve(pass, f)
			require.NoError(t, err)
			assert.Equal(t, a.Vertex, b.Vertex)
			assert.Equal(t, a.Fragment, b.Fragment)
			assert.Equal(t, VariantKey{pass, f}.String(), a.Label)
		}
	}
}

func TestResolveRejectsInvalidFeatures(t *testing.T) {
	cases := []struct {
		pass Pass
		f    Features
	}{
		{ColorRamp, Features{Clipping: true}},
		{AtlasDraw, Features{PathStorageBuffer: true}},
		{BlitAsDraw, Features{EvenOddFill: true}},
		{StencilDraw, Features{FixedFunctionColor: true}},
		{StencilDraw, Features{EvenOddFill: true}},
		{ImageMesh, Features{PathStorageBuffer: true}},
	}
	for _, c := range cases {
		_, err := Resolve(c.pass, c.f)
		assert.ErrorIs(t, err, ErrUnsupportedFeatureCombination, "%s %+v", c.pass, c.f)
	}
}

func TestFeatureConstantsInSource(t *testing.T) {
	f := Features{
		Clipping:          true,
		EvenOddFill:       true,
		PathStorageBuffer: true,
		BatchCount:        4,
	}
	src, err := Resolve(CompositeDraw, f)
	require.NoError(t, err)
	for _, stage := range []string{string(src.Vertex), string(src.Fragment)} {
		assert.Contains(t, stage, "const clipping_enabled: bool = true;")
		assert.Contains(t, stage, "const even_odd_fill: bool = true;")
		assert.Contains(t, stage, "const path_storage: bool = true;")
		assert.Contains(t, stage, "const fixed_function_color: bool = false;")
		assert.Contains(t, stage, "const batch_count: u32 = 4u;")
	}
	// The path record machinery only appears when the storage variant asks
	// for it.
	assert.Contains(t, string(src.Vertex), "struct PathRec")
	assert.Contains(t, string(src.Vertex), "apply_path")

	plain, err := Resolve(CompositeDraw, Features{})
	require.NoError(t, err)
	assert.NotContains(t, string(plain.Vertex), "struct PathRec")
	assert.Contains(t, string(plain.Vertex), "const batch_count: u32 = 1u;")
}

func TestStageEntryPoints(t *testing.T) {
	for _, pass := range allPasses() {
		src, err := Resolve(pass, Features{})
		require.NoError(t, err)
		assert.Contains(t, string(src.Vertex), "fn vs_main", pass)
		assert.NotContains(t, string(src.Vertex), "fn fs_main", pass)
		assert.Contains(t, string(src.Fragment), "fn fs_main", pass)
		assert.NotContains(t, string(src.Fragment), "fn vs_main", pass)
	}
}

func TestFeaturesMask(t *testing.T) {
	assert.Equal(t, FeatureMask(0), Features{}.Mask())
	assert.Equal(t, MaskClipping, Features{Clipping: true}.Mask())
	assert.Equal(t, MaskAdvancedBlend, Features{AdvancedBlend: true}.Mask())
	assert.Equal(t, MaskPathStorageBuffer, Features{PathStorageBuffer: true}.Mask())
	assert.Equal(t, MaskFixedFunctionColor, Features{FixedFunctionColor: true}.Mask())
	assert.Equal(t, MaskEvenOddFill, Features{EvenOddFill: true}.Mask())
	// A batch of one is the same variant as no batching at all.
	assert.Equal(t, FeatureMask(0), Features{BatchCount: 1}.Mask())
	assert.Equal(t, MaskBatchCount, Features{BatchCount: 2}.Mask())
}

func TestVariantKeyStringsUnique(t *testing.T) {
	seen := make(map[string]VariantKey)
	for _, pass := range allPasses() {
		for _, m := range maskSubsets(ValidFeatures(pass)) {
			key := VariantKey{pass, featuresFromMask(m)}
			s := key.String()
			prev, dup := seen[s]
			require.False(t, dup, "%v and %v share the label %q", prev, key, s)
			seen[s] = key
		}
	}
}

func TestBindingsSlotOrder(t *testing.T) {
	names := func(bs []Binding) []string {
		out := make([]string, len(bs))
		for i, b := range bs {
			out[i] = b.Name
		}
		return out
	}

	assert.Equal(t, []string{"frame"}, names(Bindings(StencilDraw, Features{})))
	assert.Equal(t, []string{"frame", "paths"},
		names(Bindings(StencilDraw, Features{PathStorageBuffer: true})))
	assert.Equal(t, []string{"frame", "stops"}, names(Bindings(ColorRamp, Features{})))
	assert.Equal(t, []string{"frame", "coverage_tex", "coverage_smp"},
		names(Bindings(AtlasDraw, Features{})))
	assert.Equal(t, []string{"frame", "mesh_tex", "mesh_smp"},
		names(Bindings(ImageMesh, Features{})))
	assert.Equal(t, []string{"frame", "src"}, names(Bindings(BlitAsDraw, Features{})))
	assert.Equal(t, []string{"frame", "ramp_tex", "ramp_smp"},
		names(Bindings(CompositeDraw, Features{})))
	assert.Equal(t, []string{"frame", "ramp_tex", "ramp_smp", "paths"},
		names(Bindings(CompositeDraw, Features{PathStorageBuffer: true})))
}

// Every binding the table declares has to appear in the source of at least
// one stage, at its slot number.
func TestBindingsMatchSource(t *testing.T) {
	for _, pass := range allPasses() {
		for _, m := range maskSubsets(ValidFeatures(pass)) {
			f := featuresFromMask(m)
			src, err := Resolve(pass, f)
			require.NoError(t, err)
			combined := string(src.Vertex) + string(src.Fragment)
			for slot, b := range Bindings(pass, f) {
				decl := fmt.Sprintf("@group(0) @binding(%d)", slot)
				assert.Contains(t, combined, decl, "%s %+v", pass, f)
				assert.True(t, strings.Contains(combined, " "+b.Name+":"),
					"%s %+v: binding %q not declared", pass, f, b.Name)
			}
		}
	}
}

// Identifiers on the WGSL reserved-word list are rejected by conforming
// compilers even though some frontends let them through.
func TestSourcesAvoidReservedWords(t *testing.T) {
	reserved := []string{
		"this", "self", "super", "typedef", "auto", "new", "delete",
		"null", "nil", "static", "template", "union", "using", "throw",
	}
	for _, pass := range allPasses() {
		for _, m := range maskSubsets(ValidFeatures(pass)) {
			f := featuresFromMask(m)
			src, err := Resolve(pass, f)
			require.NoError(t, err)
			combined := string(src.Vertex) + string(src.Fragment)
			for _, word := range reserved {
				re := regexp.MustCompile(`\b` + word + `\b`)
				assert.False(t, re.MatchString(combined),
					"%s %+v declares reserved word %q", pass, f, word)
			}
		}
	}
}

func TestVertexLayout(t *testing.T) {
	stride, attrs := VertexLayout(StencilDraw)
	assert.Equal(t, uint32(8), stride)
	require.Len(t, attrs, 1)
	assert.Equal(t, Float32x2, attrs[0].Format)

	stride, attrs = VertexLayout(ImageMesh)
	assert.Equal(t, uint32(16), stride)
	require.Len(t, attrs, 2)
	assert.Equal(t, uint32(8), attrs[1].Offset)
	assert.Equal(t, uint32(1), attrs[1].Location)

	// Index-generated passes carry no vertex buffer.
	for _, pass := range []Pass{ColorRamp, BlitAsDraw} {
		stride, attrs = VertexLayout(pass)
		assert.Equal(t, uint32(0), stride, pass)
		assert.Empty(t, attrs, pass)
	}
}
