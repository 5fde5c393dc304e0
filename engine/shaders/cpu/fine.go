// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"math"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

// Words of clip scratch per pixel: the saved color and the clip's coverage.
const clipScratchWords = 5

func chunk_offset(i uint32) Vec2 {
	return Vec2{float32(i % 2 * TILE_WIDTH / 2), float32(i / 2 * TILE_HEIGHT / 4)}
}

// fineTile is the state of the fine rasterizer for one tile. Cell k of lane
// lane is stored at lane*CHUNK + k.
type fineTile struct {
	memory *mem.Memory
	images CPUTextureArray

	tile_x, tile_y uint32
	// Pixel coordinates of each lane's first cell.
	xy [N_TILE]Vec2

	area [N_TILE * CHUNK]float32
	rgba [N_TILE * CHUNK][4]float32

	depth uint32
	// Scratch allocations per clip depth, or 0.
	clips [renderer.MaxClipDepth]uint32
}

func (ft *fineTile) corrupt(cmd_ref uint32, tag renderer.CmdTag, reason string) error {
	return &renderer.CommandStreamError{
		TileX:  ft.tile_x,
		TileY:  ft.tile_y,
		Offset: cmd_ref,
		Tag:    tag,
		Reason: reason,
	}
}

// Kernel4 is the fine rasterizer. It interprets the command list of tile wg
// and writes the tile's pixels to the output image.
func Kernel4(wg [3]uint32, resources []CPUBinding) error {
	config := config(resources[0])
	memory := memory(resources[1])
	out := resources[2].(*CPUTexture)
	images := resources[3].(CPUTextureArray)

	ft := &fineTile{
		memory: memory,
		images: images,
		tile_x: wg[0],
		tile_y: wg[1],
	}
	for lane := range uint32(N_TILE) {
		ft.xy[lane] = Vec2{
			float32(wg[0]*TILE_WIDTH + lane%FINE_LANES_X),
			float32(wg[1]*TILE_HEIGHT + lane/FINE_LANES_X),
		}
	}
	tile_ix := wg[1]*config.WidthInTiles + wg[0]
	err := ft.run(config.PtclAlloc.Offset + tile_ix*PTCL_INITIAL_ALLOC)
	ft.store(out)
	return err
}

// store writes the tile's pixels that lie within out.
func (ft *fineTile) store(out *CPUTexture) {
	for lane := range uint32(N_TILE) {
		for k := range uint32(CHUNK) {
			xy := ft.xy[lane].Add(chunk_offset(k))
			x, y := int(xy.x), int(xy.y)
			if x >= out.Width || y >= out.Height {
				continue
			}
			out.Pixels[y*out.Width+x] = gfx.Unpremultiply(ft.rgba[lane*CHUNK+k])
		}
	}
}

func (ft *fineTile) run(cmd_ref uint32) error {
	memory := ft.memory
	max_jumps := memory.Size()/PTCL_INITIAL_ALLOC + 1
	jumps := uint32(0)
	for {
		if memory.Failed() {
			return renderer.ErrMemory
		}
		cmd, ok := mem.Load[renderer.Cmd](memory, cmd_ref)
		if !ok {
			return ft.corrupt(cmd_ref, cmd.Tag, "offset out of range")
		}
		switch cmd.Tag {
		case renderer.CmdEnd:
			return nil
		case renderer.CmdFill:
			if err := ft.fill(cmd_ref, &cmd); err != nil {
				return err
			}
		case renderer.CmdStroke:
			if err := ft.stroke(cmd_ref, &cmd); err != nil {
				return err
			}
		case renderer.CmdSolid:
			ft.setArea(1)
		case renderer.CmdAlpha:
			ft.setArea(cmd.Alpha())
		case renderer.CmdColor:
			fg := gfx.Premultiply(cmd.RGBA())
			for i := range ft.rgba {
				ft.blend(i, fg, ft.area[i])
			}
		case renderer.CmdImage:
			ft.image(&cmd)
		case renderer.CmdBeginClip:
			if ft.depth >= renderer.MaxClipDepth {
				return ft.corrupt(cmd_ref, cmd.Tag, "clip depth exceeds maximum")
			}
			if !ft.beginClip() {
				return renderer.ErrMemory
			}
		case renderer.CmdEndClip:
			if ft.depth == 0 {
				return ft.corrupt(cmd_ref, cmd.Tag, "clip stack underflow")
			}
			ft.endClip()
		case renderer.CmdJump:
			jumps++
			if jumps > max_jumps {
				return ft.corrupt(cmd_ref, cmd.Tag, "too many jumps")
			}
			cmd_ref = cmd.JumpTarget()
			continue
		default:
			return ft.corrupt(cmd_ref, cmd.Tag, "unknown command")
		}
		cmd_ref += renderer.CmdSize
	}
}

func (ft *fineTile) setArea(a float32) {
	for i := range ft.area {
		ft.area[i] = a
	}
}

func (ft *fineTile) blend(i int, fg [4]float32, area float32) {
	a := 1 - fg[3]*area
	for c := range 4 {
		ft.rgba[i][c] = ft.rgba[i][c]*a + fg[c]*area
	}
}

// segments yields the tile segments of the list starting at ref. A list that
// leaves the arena or is longer than the arena could hold is corrupt.
func (ft *fineTile) segments(cmd_ref uint32, cmd *renderer.Cmd, yield func(*renderer.TileSeg)) error {
	max_segs := ft.memory.Size() / renderer.TileSegSize
	n := uint32(0)
	for ref := cmd.TileSeg(); ref != 0; {
		seg, ok := mem.Load[renderer.TileSeg](ft.memory, ref)
		if !ok {
			return ft.corrupt(cmd_ref, cmd.Tag, "segment out of range")
		}
		n++
		if n > max_segs {
			return ft.corrupt(cmd_ref, cmd.Tag, "cyclic segment list")
		}
		yield(&seg)
		ref = seg.Next
	}
	return nil
}

func (ft *fineTile) fill(cmd_ref uint32, cmd *renderer.Cmd) error {
	ft.setArea(float32(cmd.Backdrop()))
	err := ft.segments(cmd_ref, cmd, func(seg *renderer.TileSeg) {
		origin := Vec2FromArray(seg.Origin)
		vector := Vec2FromArray(seg.Vector)
		sign := jmath.Sign32(vector.x)
		for lane := range uint32(N_TILE) {
			for k := range uint32(CHUNK) {
				my_xy := ft.xy[lane].Add(chunk_offset(k))
				start := origin.Sub(my_xy)
				end := start.Add(vector)
				wx := jmath.Clamp(start.y, 0, 1)
				wy := jmath.Clamp(end.y, 0, 1)
				a := &ft.area[lane*CHUNK+k]
				if wx != wy {
					tx := (wx - start.y) / vector.y
					ty := (wy - start.y) / vector.y
					xsx := jmath.Mix32(start.x, end.x, tx)
					xsy := jmath.Mix32(start.x, end.x, ty)
					*a += spanCoverage(xsx, xsy) * (wx - wy)
				}
				*a += sign * jmath.Clamp(my_xy.y-seg.YEdge+1, 0, 1)
			}
		}
	})
	if err != nil {
		return err
	}
	for i, a := range ft.area {
		ft.area[i] = min(jmath.Abs32(a), 1)
	}
	return nil
}

// spanCoverage returns the mean of 1-clamp(x, 0, 1) for x between x0 and
// x1: the part of a pixel row right of a segment spanning x0 to x1.
func spanCoverage(x0, x1 float32) float32 {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	switch {
	case x1 <= 0:
		return 1
	case x0 >= 1:
		return 0
	case x1-x0 < 1e-6:
		return 1 - jmath.Clamp((x0+x1)*0.5, 0, 1)
	}
	l := max(x0, 0)
	r := min(x1, 1)
	return (max(-x0, 0) + (r-l)*(1-(l+r)*0.5)) / (x1 - x0)
}

func (ft *fineTile) stroke(cmd_ref uint32, cmd *renderer.Cmd) error {
	var df [N_TILE * CHUNK]float32
	for i := range df {
		df[i] = 1e9
	}
	err := ft.segments(cmd_ref, cmd, func(seg *renderer.TileSeg) {
		origin := Vec2FromArray(seg.Origin)
		vector := Vec2FromArray(seg.Vector)
		vv := vector.dot(vector)
		for lane := range uint32(N_TILE) {
			for k := range uint32(CHUNK) {
				dpos := ft.xy[lane].Add(chunk_offset(k)).Add(Vec2{0.5, 0.5}).Sub(origin)
				var t float32
				if vv != 0 {
					t = jmath.Clamp(vector.dot(dpos)/vv, 0, 1)
				}
				i := lane*CHUNK + k
				df[i] = min(df[i], vector.Mul(t).Sub(dpos).length())
			}
		}
	})
	if err != nil {
		return err
	}
	half_width := cmd.HalfWidth()
	for i := range ft.area {
		ft.area[i] = jmath.Clamp(half_width+0.5-df[i], 0, 1)
	}
	return nil
}

func (ft *fineTile) image(cmd *renderer.Cmd) {
	img := ft.images.lookup(cmd.Index())
	if img == nil {
		return
	}
	dx, dy := encoding.UnpackOffset(cmd.Offset())
	for lane := range uint32(N_TILE) {
		for k := range uint32(CHUNK) {
			i := lane*CHUNK + k
			xy := ft.xy[lane].Add(chunk_offset(k))
			texel := img.At(int(xy.x)+int(dx), int(xy.y)+int(dy))
			ft.blend(int(i), gfx.Premultiply(texel), ft.area[i])
		}
	}
}

func (imgs CPUTextureArray) lookup(index uint32) *CPUTexture {
	if uint64(index) >= uint64(len(imgs)) {
		return nil
	}
	return imgs[index]
}

// beginClip saves the current colors and coverage and starts a new layer.
// It reports false if the scratch space couldn't be allocated.
func (ft *fineTile) beginClip() bool {
	ref := ft.clips[ft.depth]
	if ref == 0 {
		alloc, ok := ft.memory.Malloc(N_TILE * CHUNK * clipScratchWords * 4)
		if !ok {
			return false
		}
		ref = alloc.Offset
		ft.clips[ft.depth] = ref
	}
	scratch, ok := ft.memory.Words(ref, N_TILE*CHUNK*clipScratchWords)
	if !ok {
		return false
	}
	for i := range ft.rgba {
		s := scratch[i*clipScratchWords : (i+1)*clipScratchWords]
		for c := range 4 {
			s[c] = math.Float32bits(ft.rgba[i][c])
		}
		s[4] = math.Float32bits(jmath.Clamp(jmath.Abs32(ft.area[i]), 0, 1))
		ft.rgba[i] = [4]float32{}
	}
	ft.depth++
	return true
}

// endClip composites the current layer, masked by the saved coverage, onto
// the saved colors.
func (ft *fineTile) endClip() {
	ft.depth--
	scratch, ok := ft.memory.Words(ft.clips[ft.depth], N_TILE*CHUNK*clipScratchWords)
	if !ok {
		return
	}
	for i := range ft.rgba {
		s := scratch[i*clipScratchWords : (i+1)*clipScratchWords]
		var bg [4]float32
		for c := range 4 {
			bg[c] = math.Float32frombits(s[c])
		}
		fg := ft.rgba[i]
		ft.rgba[i] = bg
		ft.blend(i, fg, ft.area[i]*math.Float32frombits(s[4]))
	}
}
