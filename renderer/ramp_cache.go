// Copyright 2022 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/quillgfx/quill/gfx"
	"github.com/quillgfx/quill/qmath"
	"honnef.co/go/safeish"
)

// The ramp texture encodes one gradient per row; the column is the
// interpolation parameter. Texels are packed 8-bit fixed point per channel,
// premultiplied, little-endian.
const rampWidth = 256
const retainedRows = 64

// Ramps is the CPU-side mirror of the ramp texture.
type Ramps struct {
	Data   []uint32
	Width  uint32
	Height uint32
}

// RampRegion is the region of the ramp texture owned by one gradient.
type RampRegion struct {
	Row   uint32
	Width uint32
}

type rampCacheEntry struct {
	row   uint32
	epoch uint64
}

// dirtyRamp is a row repainted this frame; the frame assembly turns these
// into ColorRamp draws.
type dirtyRamp struct {
	Row   uint32
	Stops []gfx.ColorStop
}

type rampCache struct {
	epoch uint64
	// mapping from serialized []ColorStop
	mapping map[string]*rampCacheEntry
	data    []uint32
	dirty   []dirtyRamp

	// maxRows bounds the texture height; zero means the texture may grow.
	maxRows uint32

	// slice reused across calls to add, used for building the map key.
	key []byte
}

func newRampCache(maxRows uint32) rampCache {
	return rampCache{
		mapping: make(map[string]*rampCacheEntry),
		maxRows: maxRows,
	}
}

// maintain starts a new epoch and trims rows beyond the retained count once
// the mapping has grown past it. Entries referenced in the current or
// previous epoch are never reclaimed, so draws from a frame still in flight
// keep the rows they sampled.
func (rc *rampCache) maintain() {
	rc.epoch++
	rc.dirty = rc.dirty[:0]
	if rc.rows() > retainedRows {
		for k, v := range rc.mapping {
			if v.row >= retainedRows {
				delete(rc.mapping, k)
			}
		}
		rc.data = rc.data[:retainedRows*rampWidth]
	}
}

func (rc *rampCache) rows() uint32 {
	return uint32(len(rc.data) / rampWidth)
}

// add resolves stops to a ramp row, reusing a cached row when the stop
// sequence is identical. Within one epoch the returned region and its
// content are stable.
func (rc *rampCache) add(stops []gfx.ColorStop) (RampRegion, error) {
	if len(stops) == 0 {
		panic("empty gradient")
	}

	key := rc.key[:0]
	// Adding the number of stops makes the key unique for different length
	// sequences of colors that would have the same concatenation.
	key = binary.LittleEndian.AppendUint64(key, uint64(len(stops)))
	for _, stop := range stops {
		key = binary.LittleEndian.AppendUint32(key, math.Float32bits(stop.Offset))
		key = binary.LittleEndian.AppendUint32(key, math.Float32bits(stop.Color.R))
		key = binary.LittleEndian.AppendUint32(key, math.Float32bits(stop.Color.G))
		key = binary.LittleEndian.AppendUint32(key, math.Float32bits(stop.Color.B))
		key = binary.LittleEndian.AppendUint32(key, math.Float32bits(stop.Color.A))
	}
	rc.key = key[:0]

	keyStr := safeish.Cast[string](key)
	if entry, ok := rc.mapping[keyStr]; ok {
		entry.epoch = rc.epoch
		return RampRegion{Row: entry.row, Width: rampWidth}, nil
	} else if len(rc.mapping) < retainedRows {
		row := rc.rows()
		if rc.maxRows != 0 && row >= rc.maxRows {
			return RampRegion{}, ErrResourceExhausted
		}
		rc.data = append(rc.data, makeRamp(stops)...)
		// Copy the key so it no longer aliases the reused slice.
		rc.mapping[strings.Clone(keyStr)] = &rampCacheEntry{row, rc.epoch}
		rc.markDirty(row, stops)
		return RampRegion{Row: row, Width: rampWidth}, nil
	}

	// The retained set is full; reuse a row that no frame still in flight
	// can reference.
	var reuseRow uint32
	var reuseKey string
	var found bool
	for k, entry := range rc.mapping {
		if entry.epoch+2 < rc.epoch {
			reuseRow = entry.row
			reuseKey = k
			found = true
			break
		}
	}
	if found {
		delete(rc.mapping, reuseKey)
		start := int(reuseRow) * rampWidth
		copy(rc.data[start:start+rampWidth], makeRamp(stops))
		rc.mapping[strings.Clone(keyStr)] = &rampCacheEntry{reuseRow, rc.epoch}
		rc.markDirty(reuseRow, stops)
		return RampRegion{Row: reuseRow, Width: rampWidth}, nil
	}

	row := rc.rows()
	if rc.maxRows != 0 && row >= rc.maxRows {
		return RampRegion{}, ErrResourceExhausted
	}
	// Uncached overflow row; reclaimed by the next maintain.
	rc.data = append(rc.data, makeRamp(stops)...)
	rc.markDirty(row, stops)
	return RampRegion{Row: row, Width: rampWidth}, nil
}

func (rc *rampCache) markDirty(row uint32, stops []gfx.ColorStop) {
	s := make([]gfx.ColorStop, len(stops))
	copy(s, stops)
	rc.dirty = append(rc.dirty, dirtyRamp{Row: row, Stops: s})
}

func (rc *rampCache) ramps() Ramps {
	return Ramps{
		Data:   rc.data,
		Width:  rampWidth,
		Height: rc.rows(),
	}
}

func makeRamp(stops []gfx.ColorStop) []uint32 {
	out := make([]uint32, rampWidth)

	lastU := float32(0.0)
	lastC := stops[0].Color
	thisU := lastU
	thisC := lastC
	j := 0
	for i := range rampWidth {
		u := float32(i) / (rampWidth - 1)
		for u > thisU {
			lastU = thisU
			lastC = thisC
			if j+1 < len(stops) {
				s := stops[j+1]
				thisU = s.Offset
				thisC = s.Color
				j++
			} else {
				break
			}
		}
		du := thisU - lastU
		var c gfx.Color
		if du < 1e-9 {
			c = thisC
		} else {
			c = lastC.Lerp(thisC, (u-lastU)/du)
		}
		p := c.Premul()
		out[i] = qmath.PackUnorm4x8(p.R, p.G, p.B, p.A)
	}

	return out
}
