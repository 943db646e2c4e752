// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"github.com/chewxy/math32"
	"honnef.co/go/color"
)

// Color is an sRGB color with straight (non-premultiplied) alpha.
type Color struct {
	R, G, B, A float32
}

func RGBA(r, g, b, a float32) Color {
	return Color{r, g, b, a}
}

// FromColor converts a managed color to renderer-native sRGB.
func FromColor(c *color.Color) Color {
	cc := c.Convert(color.LinearSRGB)
	return Color{
		R: linearToSRGB(float32(cc.Values[0])),
		G: linearToSRGB(float32(cc.Values[1])),
		B: linearToSRGB(float32(cc.Values[2])),
		A: float32(cc.Values[3]),
	}
}

// Premul32 converts a managed color to premultiplied linear components, the
// form clear colors are uploaded in.
func Premul32(c *color.Color) [4]float32 {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return [4]float32{
		float32(r * a),
		float32(g * a),
		float32(b * a),
		float32(a),
	}
}

// Lerp interpolates between c and other in linear space. t is clamped to
// [0, 1].
func (c Color) Lerp(other Color, t float32) Color {
	t = min(max(t, 0), 1)
	lerp := func(a, b float32) float32 {
		la := srgbToLinear(a)
		lb := srgbToLinear(b)
		return linearToSRGB(la + (lb-la)*t)
	}
	return Color{
		R: lerp(c.R, other.R),
		G: lerp(c.G, other.G),
		B: lerp(c.B, other.B),
		A: c.A + (other.A-c.A)*t,
	}
}

// Premul returns the color with alpha multiplied into the color channels,
// still in sRGB encoding.
func (c Color) Premul() Color {
	return Color{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

func linearToSRGB(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1/2.4) - 0.055
}
