// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"iter"

	"honnef.co/go/curve"
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

const PATH_COARSE_WG = 32

// PathCoarse flattens each path segment and appends the resulting lines to
// the segment lists of the tiles they touch. For fills it also records
// backdrop deltas for Backdrop to propagate.
func PathCoarse(wg [3]uint32, resources []CPUBinding) error {
	config := config(resources[0])
	memory := memory(resources[1])
	if memory.Failed() {
		return nil
	}

	for local_ix := range uint32(PATH_COARSE_WG) {
		seg_ix := wg[0]*PATH_COARSE_WG + local_ix
		if seg_ix >= config.NPathSeg {
			break
		}
		seg, ok := mem.Load[renderer.PathSeg](memory, config.PathSegAlloc.Offset+seg_ix*renderer.PathSegSize)
		if !ok {
			return nil
		}
		// Segments after the last paint don't belong to a path.
		if seg.PathIx >= config.NPaths {
			continue
		}
		path, ok := mem.Load[renderer.Path](memory, config.TileAlloc.Offset+seg.PathIx*renderer.PathSize)
		if !ok {
			return nil
		}
		t := jmath.Identity
		if seg.TransIx > 0 {
			trans, ok := mem.Load[renderer.TransformSeg](memory, config.TransAlloc.Offset+(seg.TransIx-1)*renderer.TransformSegSize)
			if !ok {
				return nil
			}
			t = jmath.Transform{Matrix: trans.Mat, Translation: trans.Translate}
		}

		w := newTileWriter(memory, &path)
		if w.empty() {
			continue
		}
		stroke := seg.FillMode() == encoding.FillModeStroke
		for p0, p1 := range flattenSeg(&seg, t) {
			if stroke {
				w.strokeLine(p0, p1, Vec2FromArray(seg.Stroke))
			} else {
				w.fillLine(p0, p1)
			}
			if w.failed {
				return nil
			}
		}
	}
	return nil
}

// flattenSeg yields the lines approximating seg under t.
func flattenSeg(seg *renderer.PathSeg, t jmath.Transform) iter.Seq2[Vec2, Vec2] {
	pt := func(p [2]float32) curve.Point {
		x, y := t.Apply(p[0], p[1])
		return curve.Point{X: float64(x), Y: float64(y)}
	}
	cubic := func(yield func(curve.PathElement) bool) {
		_ = yield(curve.MoveTo(pt(seg.P0))) &&
			yield(curve.CubicTo(pt(seg.P1), pt(seg.P2), pt(seg.P3)))
	}
	return func(yield func(Vec2, Vec2) bool) {
		var last Vec2
		for el := range curve.Flatten(cubic, renderer.FlattenTolerance) {
			p := Vec2{float32(el.P0.X), float32(el.P0.Y)}
			switch el.Kind {
			case curve.MoveToKind:
				last = p
			case curve.LineToKind:
				if p != last && !yield(last, p) {
					return
				}
				last = p
			}
		}
	}
}

// tileWriter appends lines to the tiles of a path.
type tileWriter struct {
	memory *mem.Memory
	tiles  uint32
	// Tile rectangle of the path.
	x0, y0, x1, y1 int32
	failed         bool
}

func newTileWriter(memory *mem.Memory, path *renderer.Path) tileWriter {
	x0, y0, x1, y1 := path.TileBBox()
	return tileWriter{
		memory: memory,
		tiles:  path.Tiles.Offset,
		x0:     int32(x0),
		y0:     int32(y0),
		x1:     int32(x1),
		y1:     int32(y1),
	}
}

func (w *tileWriter) empty() bool {
	return w.x0 >= w.x1 || w.y0 >= w.y1
}

func (w *tileWriter) tile(x, y int32) uint32 {
	stride := w.x1 - w.x0
	return w.tiles + uint32((y-w.y0)*stride+(x-w.x0))*renderer.TileSize
}

// push prepends seg to the segment list of tile (x, y).
func (w *tileWriter) push(x, y int32, seg renderer.TileSeg) {
	alloc, ok := w.memory.Malloc(renderer.TileSegSize)
	if !ok {
		w.failed = true
		return
	}
	seg.Next = w.memory.AtomicSwap(w.tile(x, y), alloc.Offset)
	mem.Store(w.memory, alloc.Offset, seg)
}

// fillLine adds the line to every tile it crosses. In each row of tiles the
// line is clipped at the left edge of each tile; the part left of that edge
// is accounted for by YEdge. Crossings of a row's top edge become backdrop
// deltas of the tile right of the crossing.
func (w *tileWriter) fillLine(p0, p1 Vec2) {
	const SX = 1.0 / TILE_WIDTH
	const SY = 1.0 / TILE_HEIGHT

	top, bot := p0, p1
	if top.y > bot.y {
		top, bot = bot, top
	}
	xAt := func(y float32) float32 {
		if p1.y == p0.y {
			return p0.x
		}
		return jmath.Mix32(p0.x, p1.x, (y-p0.y)/(p1.y-p0.y))
	}

	// A line touching the top edge of a row belongs to that row, too.
	ry0 := max(floorInt(top.y*SY), w.y0)
	ry1 := min(floorInt(bot.y*SY)+1, w.y1)
	backdrop := int32(-1)
	if p1.y < p0.y {
		backdrop = 1
	}
	for y := ry0; y < ry1; y++ {
		tile_y0 := float32(y * TILE_HEIGHT)
		tile_y1 := tile_y0 + TILE_HEIGHT
		ya := max(top.y, tile_y0)
		yb := min(bot.y, tile_y1)
		xa, xb := xAt(ya), xAt(yb)
		if p0.y == p1.y {
			xa, xb = p0.x, p1.x
		}
		xray := floorInt(xa * SX)
		min_xray := min(xray, floorInt(xb*SX))
		max_xray := max(xray, floorInt(xb*SX))

		if top.y < tile_y0 {
			xbackdrop := max(xray+1, w.x0)
			if xbackdrop < w.x1 {
				w.memory.AtomicAdd(w.tile(xbackdrop, y)+4, backdrop)
			}
		}

		xx0 := max(min_xray, w.x0)
		xx1 := min(max_xray+1, w.x1)
		for x := xx0; x < xx1; x++ {
			tile_x0 := float32(x * TILE_WIDTH)
			seg := renderer.TileSeg{
				Origin: p0.to_array(),
				Vector: p1.Sub(p0).to_array(),
				YEdge:  renderer.NoYEdge,
			}
			if min(p0.x, p1.x) < tile_x0 {
				y_edge := jmath.Mix32(p0.y, p1.y, (tile_x0-p0.x)/(p1.x-p0.x))
				p := Vec2{tile_x0, y_edge}
				if p0.x > p1.x {
					seg.Vector = p.Sub(p0).to_array()
				} else {
					seg.Origin = p.to_array()
					seg.Vector = p1.Sub(p).to_array()
				}
				if seg.Vector[0] == 0 {
					seg.Vector[0] = jmath.Sign32(p1.x-p0.x) * 1e-9
				}
				if min_xray < x && x <= max_xray {
					seg.YEdge = y_edge
				}
			}
			w.push(x, y, seg)
			if w.failed {
				return
			}
		}
	}
}

// strokeLine adds the line to every tile within the stroke's half-width
// plus half a pixel of it.
func (w *tileWriter) strokeLine(p0, p1, halfWidth Vec2) {
	const SX = 1.0 / TILE_WIDTH
	const SY = 1.0 / TILE_HEIGHT

	r := halfWidth.Add(Vec2{0.5, 0.5})
	x0 := max(floorInt((min(p0.x, p1.x)-r.x)*SX), w.x0)
	y0 := max(floorInt((min(p0.y, p1.y)-r.y)*SY), w.y0)
	x1 := min(ceilInt((max(p0.x, p1.x)+r.x)*SX), w.x1)
	y1 := min(ceilInt((max(p0.y, p1.y)+r.y)*SY), w.y1)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			w.push(x, y, renderer.TileSeg{
				Origin: p0.to_array(),
				Vector: p1.Sub(p0).to_array(),
				YEdge:  renderer.NoYEdge,
			})
			if w.failed {
				return
			}
		}
	}
}
