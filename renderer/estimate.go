// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"math"

	"honnef.co/go/curve"
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/jmath"
)

// 1/sqrt(FlattenTolerance)
const rsqrtOfTol = 2.0

// Size of the clip scratch space the fine rasterizer allocates per tile and
// clip depth.
const ClipScratchSize = TilePixels * 5 * 4

// Commands that fit in one chunk of a command list, leaving room for a jump.
const cmdsPerChunk = (PtclInitialAlloc - CmdSize) / CmdSize

// MemoryEstimate breaks down the dynamic memory needed to render a scene, in
// bytes.
type MemoryEstimate struct {
	Tiles       uint64
	Segments    uint64
	Bins        uint64
	Ptcl        uint64
	ClipScratch uint64
}

// Total returns the sum of the estimate, saturated to the range of uint32.
func (est *MemoryEstimate) Total() uint32 {
	total := est.Tiles + est.Segments + est.Bins + est.Ptcl + est.ClipScratch
	return uint32(min(total, math.MaxUint32))
}

// EstimateMemory returns a conservative estimate of the dynamic memory used
// by rendering enc with cfg. Flattened lines are estimated with Wang's
// formula and every line is assumed to touch as many tiles as its extent
// allows, so the estimate usually overshoots. Clip paths are not taken into
// account when counting the tiles of their contents.
func EstimateMemory(enc *encoding.Encoding, cfg *RenderConfig) MemoryEstimate {
	var est MemoryEstimate
	w, h := cfg.Config.WidthInTiles, cfg.Config.HeightInTiles

	// Tile segments of the path being encoded.
	var segments uint64
	var cmds uint64
	var clipTiles uint64
	depth, maxDepth := 0, 0

	st := encoding.IdentityState
	for i := range enc.Elements {
		el := &enc.Elements[i]
		st = st.Combine(encoding.MapElement(el))
		switch el.Tag {
		case encoding.ElementLine, encoding.ElementQuad, encoding.ElementCubic:
			segments += estimateTileSegments(el, &st)

		case encoding.ElementFillColor, encoding.ElementFillImage, encoding.ElementBeginClip:
			bbox := st.StrokeBBox()
			if el.Tag == encoding.ElementBeginClip {
				bbox = el.BBox()
			}
			x0, y0, x1, y1 := tileRect(bbox, w, h)
			tiles := uint64((x1 - x0) * (y1 - y0))
			est.Tiles += tiles * TileSize
			est.Segments += segments * TileSegSize
			est.Bins += binCount(bbox, cfg) * BinInstanceSize
			segments = 0
			if el.Tag == encoding.ElementBeginClip {
				// The clip's own commands and those of the matching EndClip.
				cmds += 4 * tiles
				clipTiles += tiles
				depth++
				maxDepth = max(maxDepth, depth)
			} else {
				cmds += 2 * tiles
			}

		case encoding.ElementEndClip:
			est.Bins += binCount(el.BBox(), cfg) * BinInstanceSize
			depth--
		}
	}

	est.Ptcl = (cmds + cmdsPerChunk - 1) / cmdsPerChunk * PtclInitialAlloc
	maxDepth = min(maxDepth, MaxClipDepth)
	est.ClipScratch = min(clipTiles, uint64(w)*uint64(h)*uint64(maxDepth)) * ClipScratchSize
	return est
}

// tileRect returns the rectangle of tiles covered by bbox, clamped to the
// target.
func tileRect(bbox [4]float32, w, h uint32) (x0, y0, x1, y1 uint32) {
	if !(bbox[0] < bbox[2] && bbox[1] < bbox[3]) {
		return 0, 0, 0, 0
	}
	clamp := func(f float32, hi uint32) uint32 {
		return uint32(jmath.Clamp(f, 0, float32(hi)))
	}
	x0 = clamp(jmath.Floor32(bbox[0]/TileWidth), w)
	y0 = clamp(jmath.Floor32(bbox[1]/TileHeight), h)
	x1 = max(clamp(jmath.Ceil32(bbox[2]/TileWidth), w), x0)
	y1 = max(clamp(jmath.Ceil32(bbox[3]/TileHeight), h), y0)
	return x0, y0, x1, y1
}

func binCount(bbox [4]float32, cfg *RenderConfig) uint64 {
	x0, y0, x1, y1 := tileRect(bbox, cfg.Config.WidthInTiles, cfg.Config.HeightInTiles)
	if x0 == x1 || y0 == y1 {
		return 0
	}
	bx := (x1+NTileX-1)/NTileX - x0/NTileX
	by := (y1+NTileY-1)/NTileY - y0/NTileY
	return uint64(bx * by)
}

// estimateTileSegments bounds the number of tile segments produced by a
// path segment under the state's transform.
func estimateTileSegments(el *encoding.Element, st *encoding.State) uint64 {
	t := st.Transform()
	var pts [4]curve.Vec2
	n := 2
	switch el.Tag {
	case encoding.ElementQuad:
		n = 3
	case encoding.ElementCubic:
		n = 4
	}
	for i := range n {
		p := el.Point(i)
		x, y := t.Apply(p[0], p[1])
		pts[i] = curve.Vec(float64(x), float64(y))
	}

	var lines float64
	switch n {
	case 2:
		lines = 1
	case 3:
		lines = wangQuadratic(pts[0], pts[1], pts[2])
	case 4:
		lines = wangCubic(pts[0], pts[1], pts[2], pts[3])
	}
	// The flattener's subdivision isn't uniform; allow for it.
	lines = 2*max(lines, 1) + 2

	// The control polygon bounds the length of the curve.
	var length float64
	for i := 1; i < n; i++ {
		length += pts[i].Sub(pts[i-1]).Hypot()
	}

	if st.FillMode() != encoding.FillModeStroke {
		// A line with extents dx and dy touches at most dy/32+2 rows, and
		// in each row at most two tiles plus those it crosses.
		return uint64(math.Ceil(length*3/TileWidth + 5*lines))
	}

	// A stroked line touches every tile within its half-width of it.
	hw := st.HalfWidth()
	r := float64(max(hw[0], hw[1])) + 0.5
	c := 2*r/TileWidth + 2
	a := length/TileWidth + c
	return uint64(math.Ceil(a*a + (lines-1)*c*c))
}

// The curve degree term sqrt(n * (n - 1) / 8) for cubics.
const sqrtOfDegreeTermCubic = 0.86602540378

// The curve degree term sqrt(n * (n - 1) / 8) for quadratics.
const sqrtOfDegreeTermQuad = 0.5

// wangQuadratic is Wang's formula: a lower bound on the number of lines
// needed to flatten the curve with uniform subdivision.
func wangQuadratic(p0, p1, p2 curve.Vec2) float64 {
	v := p1.Mul(-2).Add(p0).Add(p2)
	return math.Ceil(sqrtOfDegreeTermQuad * math.Sqrt(v.Hypot()) * rsqrtOfTol)
}

func wangCubic(p0, p1, p2, p3 curve.Vec2) float64 {
	v1 := p1.Mul(-2).Add(p0).Add(p2)
	v2 := p2.Mul(-2).Add(p1).Add(p3)
	m := max(v1.Hypot(), v2.Hypot())
	return math.Ceil(sqrtOfDegreeTermCubic * math.Sqrt(m) * rsqrtOfTol)
}
