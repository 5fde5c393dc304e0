// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

const TILE_ALLOC_WG = 128

// TileAlloc allocates the tiles of each annotated path's tile rectangle.
func TileAlloc(wg [3]uint32, resources []CPUBinding) error {
	const SX = 1.0 / TILE_WIDTH
	const SY = 1.0 / TILE_HEIGHT

	config := config(resources[0])
	memory := memory(resources[1])
	if memory.Failed() {
		return nil
	}

	width_in_tiles := int32(config.WidthInTiles)
	height_in_tiles := int32(config.HeightInTiles)
	for local_ix := range uint32(TILE_ALLOC_WG) {
		element_ix := wg[0]*TILE_ALLOC_WG + local_ix
		if element_ix >= config.NPaths {
			break
		}
		anno, ok := mem.Load[renderer.Annotated](memory, config.AnnoAlloc.Offset+element_ix*renderer.AnnotatedSize)
		if !ok {
			memory.SetError(mem.MallocFailed)
			return nil
		}
		var x0, y0, x1, y1 int32
		switch anno.Tag() {
		case renderer.AnnoColor, renderer.AnnoImage, renderer.AnnoBeginClip:
			bbox := anno.BBox
			if bbox[0] < bbox[2] && bbox[1] < bbox[3] {
				x0 = floorInt(bbox[0] * SX)
				y0 = floorInt(bbox[1] * SY)
				x1 = ceilInt(bbox[2] * SX)
				y1 = ceilInt(bbox[3] * SY)
			}
		}
		x0 = jmath.Clamp(x0, 0, width_in_tiles)
		y0 = jmath.Clamp(y0, 0, height_in_tiles)
		x1 = jmath.Clamp(x1, x0, width_in_tiles)
		y1 = jmath.Clamp(y1, y0, height_in_tiles)

		path := renderer.Path{
			BBox: renderer.PackTileBBox(uint32(x0), uint32(y0), uint32(x1), uint32(y1)),
		}
		tile_count := uint32((x1 - x0) * (y1 - y0))
		if tile_count > 0 {
			tiles, ok := memory.Malloc(tile_count * renderer.TileSize)
			if !ok {
				return nil
			}
			words, _ := memory.Words(tiles.Offset, tile_count*renderer.TileSize/4)
			clear(words)
			path.Tiles = tiles
		}
		mem.Store(memory, config.TileAlloc.Offset+element_ix*renderer.PathSize, path)
	}
	return nil
}
