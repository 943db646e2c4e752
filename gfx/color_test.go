package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"honnef.co/go/color"
)

func TestColorPremul(t *testing.T) {
	c := RGBA(1, 0.5, 0, 0.5).Premul()
	assert.Equal(t, Color{0.5, 0.25, 0, 0.5}, c)

	opaque := RGBA(0.2, 0.4, 0.6, 1)
	assert.Equal(t, opaque, opaque.Premul())
}

func TestFromColorPreservesAlpha(t *testing.T) {
	c := color.Make(color.SRGB, 0.5, 0.25, 0.75, 0.8)
	got := FromColor(&c)
	assert.InDelta(t, 0.5, got.R, 1e-4)
	assert.InDelta(t, 0.25, got.G, 1e-4)
	assert.InDelta(t, 0.75, got.B, 1e-4)
	assert.InDelta(t, 0.8, got.A, 1e-6)
}

func TestPremul32(t *testing.T) {
	c := color.Make(color.LinearSRGB, 0.5, 0.25, 1, 0.5)
	got := Premul32(&c)
	assert.InDelta(t, 0.25, got[0], 1e-6)
	assert.InDelta(t, 0.125, got[1], 1e-6)
	assert.InDelta(t, 0.5, got[2], 1e-6)
	assert.InDelta(t, 0.5, got[3], 1e-6)
}

func TestColorLerpEndpoints(t *testing.T) {
	a := RGBA(0, 0, 0, 1)
	b := RGBA(1, 1, 1, 0)
	assert.Equal(t, a, a.Lerp(b, 0))
	got := a.Lerp(b, 1)
	assert.InDelta(t, 1, got.R, 1e-5)
	assert.InDelta(t, 0, got.A, 1e-5)

	// t clamps instead of extrapolating.
	assert.Equal(t, a.Lerp(b, 0), a.Lerp(b, -3))
}

func TestColorLerpLinearLight(t *testing.T) {
	// The midpoint between black and white mixes in linear light, which is
	// brighter in sRGB encoding than the naive 0.5.
	mid := RGBA(0, 0, 0, 1).Lerp(RGBA(1, 1, 1, 1), 0.5)
	assert.Greater(t, mid.R, float32(0.7))
	assert.Less(t, mid.R, float32(0.8))
	assert.Equal(t, float32(1), mid.A)

	// Alpha interpolates linearly.
	half := RGBA(1, 1, 1, 0).Lerp(RGBA(1, 1, 1, 1), 0.5)
	assert.InDelta(t, 0.5, half.A, 1e-6)
}

func TestSRGBRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.01, 0.04045, 0.2, 0.5, 1} {
		assert.InDelta(t, v, linearToSRGB(srgbToLinear(v)), 1e-5, "v=%v", v)
	}
}

func TestColorStopWithAlphaFactor(t *testing.T) {
	cs := ColorStop{Offset: 0.5, Color: RGBA(1, 0, 0, 0.8)}
	faded := cs.WithAlphaFactor(0.5)
	assert.InDelta(t, 0.4, faded.Color.A, 1e-6)
	assert.Equal(t, float32(0.5), faded.Offset)
	// The receiver is unchanged.
	assert.InDelta(t, 0.8, cs.Color.A, 1e-6)
}
