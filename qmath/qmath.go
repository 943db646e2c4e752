package qmath

import (
	"honnef.co/go/curve"

	"golang.org/x/exp/constraints"
)

const Epsilon = 1e-12

// Transform is a 2x3 affine matrix in the column-major layout the shaders
// consume.
type Transform struct {
	Matrix      [4]float32
	Translation [2]float32
}

var Identity = Transform{
	Matrix: [4]float32{1, 0, 0, 1},
}

func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Matrix: [4]float32{
			t.Matrix[0]*other.Matrix[0] + t.Matrix[2]*other.Matrix[1],
			t.Matrix[1]*other.Matrix[0] + t.Matrix[3]*other.Matrix[1],
			t.Matrix[0]*other.Matrix[2] + t.Matrix[2]*other.Matrix[3],
			t.Matrix[1]*other.Matrix[2] + t.Matrix[3]*other.Matrix[3],
		},
		Translation: [2]float32{
			t.Matrix[0]*other.Translation[0] +
				t.Matrix[2]*other.Translation[1] +
				t.Translation[0],
			t.Matrix[1]*other.Translation[0] +
				t.Matrix[3]*other.Translation[1] +
				t.Translation[1],
		},
	}
}

// Apply transforms a point, returning device coordinates.
func (t Transform) Apply(x, y float32) (float32, float32) {
	return t.Matrix[0]*x + t.Matrix[2]*y + t.Translation[0],
		t.Matrix[1]*x + t.Matrix[3]*y + t.Translation[1]
}

func TransformFromAffine(transform curve.Affine) Transform {
	c := transform.Coefficients()
	return Transform{
		Matrix:      [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
		Translation: [2]float32{float32(c[4]), float32(c[5])},
	}
}

func AlignUp[T constraints.Integer](len T, alignment T) T {
	return (len + alignment - 1) & -alignment
}

// PackUnorm4x8 packs four [0,1] channels into an RGBA word, little-endian, 8
// bits of fixed point per channel.
func PackUnorm4x8(r, g, b, a float32) uint32 {
	conv := func(v float32) uint32 {
		v = min(max(v, 0), 1)
		return uint32(v*255 + 0.5)
	}
	return conv(r) | conv(g)<<8 | conv(b)<<16 | conv(a)<<24
}

// UnpackUnorm4x8 is the inverse of PackUnorm4x8.
func UnpackUnorm4x8(word uint32) (r, g, b, a float32) {
	return float32(word&0xff) / 255,
		float32(word>>8&0xff) / 255,
		float32(word>>16&0xff) / 255,
		float32(word>>24&0xff) / 255
}
