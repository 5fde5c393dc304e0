// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"math/bits"
	"sync/atomic"

	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

// binRect returns the rectangle of bins covered by bbox, clamped to the bin
// grid. Empty boxes cover no bins.
func binRect(bbox [4]float32, width_in_bins, height_in_bins int32) (x0, y0, x1, y1 int32) {
	const SX = 1.0 / (N_TILE_X * TILE_WIDTH)
	const SY = 1.0 / (N_TILE_Y * TILE_HEIGHT)

	if bbox[0] < bbox[2] && bbox[1] < bbox[3] {
		x0 = floorInt(bbox[0] * SX)
		y0 = floorInt(bbox[1] * SY)
		x1 = ceilInt(bbox[2] * SX)
		y1 = ceilInt(bbox[3] * SY)
	}
	x0 = jmath.Clamp(x0, 0, width_in_bins)
	y0 = jmath.Clamp(y0, 0, height_in_bins)
	x1 = jmath.Clamp(x1, x0, width_in_bins)
	y1 = jmath.Clamp(y1, y0, height_in_bins)
	if x0 == x1 {
		y1 = y0
	}
	return x0, y0, x1, y1
}

// Binning assigns the N_TILE annotated paths of workgroup wg to the bins
// their bounding boxes intersect. For every bin it writes a header at
// bin_alloc + (wg*N_TILE + bin)*8 and an exactly sized list of instances.
func Binning(wg [3]uint32, resources []CPUBinding) error {
	config := config(resources[0])
	memory := memory(resources[1])
	if memory.Failed() {
		return nil
	}

	var bitmaps [N_SLICE][N_TILE]uint32
	var count [N_SLICE][N_TILE]uint32
	var chunks [N_TILE]uint32
	var rects [N_TILE][4]int32
	var failed bool

	width_in_bins := int32(config.WidthInBins())
	height_in_bins := int32(config.HeightInBins())

	// Each lane is one annotated path.
	for local_ix := range uint32(N_TILE) {
		element_ix := wg[0]*N_TILE + local_ix
		if element_ix >= config.NPaths {
			break
		}
		anno, ok := mem.Load[renderer.Annotated](memory, config.AnnoAlloc.Offset+element_ix*renderer.AnnotatedSize)
		if !ok {
			memory.SetError(mem.MallocFailed)
			return nil
		}
		switch anno.Tag() {
		case renderer.AnnoColor, renderer.AnnoImage, renderer.AnnoBeginClip, renderer.AnnoEndClip:
		default:
			continue
		}
		x0, y0, x1, y1 := binRect(anno.BBox, width_in_bins, height_in_bins)
		rects[local_ix] = [4]int32{x0, y0, x1, y1}

		my_slice := local_ix / 32
		my_mask := uint32(1) << (local_ix & 31)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				atomic.OrUint32(&bitmaps[my_slice][y*width_in_bins+x], my_mask)
			}
		}
	}

	// Barrier. Each lane is now one bin.
	for bin := range uint32(N_TILE) {
		element_count := uint32(0)
		for i := range N_SLICE {
			element_count += uint32(bits.OnesCount32(bitmaps[i][bin]))
			count[i][bin] = element_count
		}
		var chunk mem.Alloc
		if element_count != 0 {
			var ok bool
			chunk, ok = memory.Malloc(element_count * renderer.BinInstanceSize)
			if !ok {
				failed = true
			}
		}
		chunks[bin] = chunk.Offset
		mem.Store(memory, config.BinAlloc.Offset+(wg[0]*N_TILE+bin)*renderer.BinHeaderSize, renderer.BinHeader{
			NElements: element_count,
			Chunk:     chunk,
		})
	}

	// Barrier.
	if failed || memory.Failed() {
		return nil
	}

	for local_ix := range uint32(N_TILE) {
		element_ix := wg[0]*N_TILE + local_ix
		if element_ix >= config.NPaths {
			break
		}
		my_slice := local_ix / 32
		my_mask := uint32(1) << (local_ix & 31)
		rect := rects[local_ix]
		for y := rect[1]; y < rect[3]; y++ {
			for x := rect[0]; x < rect[2]; x++ {
				bin := y*width_in_bins + x
				idx := uint32(bits.OnesCount32(bitmaps[my_slice][bin] & (my_mask - 1)))
				if my_slice > 0 {
					idx += count[my_slice-1][bin]
				}
				mem.Store(memory, chunks[bin]+idx*renderer.BinInstanceSize, renderer.BinInstance{ElementIx: element_ix})
			}
		}
	}
	return nil
}
