// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

const BACKDROP_WG = 128

// Backdrop turns the backdrop deltas written by PathCoarse into backdrops by
// summing them along each row of a path's tiles.
func Backdrop(wg [3]uint32, resources []CPUBinding) error {
	config := config(resources[0])
	memory := memory(resources[1])
	if memory.Failed() {
		return nil
	}

	for local_ix := range uint32(BACKDROP_WG) {
		element_ix := wg[0]*BACKDROP_WG + local_ix
		if element_ix >= config.NPaths {
			break
		}
		path, ok := mem.Load[renderer.Path](memory, config.TileAlloc.Offset+element_ix*renderer.PathSize)
		if !ok {
			return nil
		}
		x0, y0, x1, y1 := path.TileBBox()
		width := x1 - x0
		height := y1 - y0
		tiles, ok := memory.Words(path.Tiles.Offset, width*height*renderer.TileSize/4)
		if !ok {
			return nil
		}
		for y := range height {
			var sum int32
			for x := range width {
				backdrop := &tiles[(y*width+x)*2+1]
				sum += int32(*backdrop)
				*backdrop = uint32(sum)
			}
		}
	}
	return nil
}
