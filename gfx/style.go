// Copyright 2022 the Peniko Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

// Fill selects how overlapping contours of a path resolve to inside and
// outside.
type Fill int

const (
	NonZero Fill = iota
	EvenOdd
)

func (f Fill) String() string {
	switch f {
	case NonZero:
		return "NonZero"
	case EvenOdd:
		return "EvenOdd"
	default:
		return "Fill(?)"
	}
}

// Winding is the vertex ordering of front-facing triangles. Meshes wound the
// other way are culled by the hardware and draw nothing.
type Winding int

const (
	Clockwise Winding = iota
	CounterClockwise
)

func (w Winding) String() string {
	switch w {
	case Clockwise:
		return "Clockwise"
	case CounterClockwise:
		return "CounterClockwise"
	default:
		return "Winding(?)"
	}
}
