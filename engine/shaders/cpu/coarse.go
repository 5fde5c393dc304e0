// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

// Clip depths that can be elided; the width of clip_one_mask.
const clipMaskBits = 64

// TileState writes the command list of one tile. The list starts with
// PTCL_INITIAL_ALLOC bytes; when they run out, a new chunk is allocated and
// linked with a Jump. There is always room for a final Jump or End.
type TileState struct {
	memory  *mem.Memory
	cmd_ref uint32
	limit   uint32
	failed  bool
}

func newTileState(memory *mem.Memory, ref uint32) TileState {
	return TileState{
		memory:  memory,
		cmd_ref: ref,
		limit:   ref + PTCL_INITIAL_ALLOC - renderer.CmdSize,
	}
}

// alloc_cmd makes room for n commands.
func (t *TileState) alloc_cmd(n uint32) bool {
	if t.failed {
		return false
	}
	if t.cmd_ref+n*renderer.CmdSize <= t.limit {
		return true
	}
	chunk, ok := t.memory.Malloc(PTCL_INITIAL_ALLOC)
	if !ok {
		t.failed = true
		return false
	}
	mem.Store(t.memory, t.cmd_ref, renderer.CmdJumpOf(chunk.Offset))
	t.cmd_ref = chunk.Offset
	t.limit = chunk.Offset + PTCL_INITIAL_ALLOC - renderer.CmdSize
	return true
}

func (t *TileState) write(cmd renderer.Cmd) {
	mem.Store(t.memory, t.cmd_ref, cmd)
	t.cmd_ref += renderer.CmdSize
}

// write_path writes the command that sets the coverage of a non-empty tile.
func (t *TileState) write_path(tile renderer.Tile, anno *renderer.Annotated) {
	switch {
	case anno.FillMode() == encoding.FillModeStroke:
		t.write(renderer.CmdStrokeOf(tile.Tile, 0.5*anno.LineWidth))
	case tile.Tile != 0:
		t.write(renderer.CmdFillOf(tile.Tile, tile.Backdrop))
	default:
		t.write(renderer.Cmd{Tag: renderer.CmdSolid})
	}
}

func (t *TileState) end() {
	if t.failed {
		return
	}
	t.write(renderer.Cmd{Tag: renderer.CmdEnd})
}

// pathTile returns the tile (x, y) of annotated path element_ix, or false if
// the tile lies outside the path's tile rectangle.
func pathTile(memory *mem.Memory, config *renderer.Config, element_ix uint32, x, y uint32) (renderer.Tile, bool) {
	path, ok := mem.Load[renderer.Path](memory, config.TileAlloc.Offset+element_ix*renderer.PathSize)
	if !ok {
		return renderer.Tile{}, false
	}
	x0, y0, x1, y1 := path.TileBBox()
	if x < x0 || x >= x1 || y < y0 || y >= y1 {
		return renderer.Tile{}, false
	}
	tile, ok := mem.Load[renderer.Tile](memory, path.Tiles.Offset+((y-y0)*(x1-x0)+(x-x0))*renderer.TileSize)
	return tile, ok
}

// Coarse writes the command lists of the tiles of bin wg. It walks the bin's
// instances of all binning partitions in order.
func Coarse(wg [3]uint32, resources []CPUBinding) error {
	config := config(resources[0])
	memory := memory(resources[1])
	if memory.Failed() {
		return nil
	}

	bin_x, bin_y := wg[0], wg[1]
	width_in_bins := config.WidthInBins()
	bin_ix := bin_y*width_in_bins + bin_x
	n_partitions := config.NumBinPartitions()

	// Each lane is one tile of the bin.
	for local_ix := range uint32(N_TILE) {
		tile_x := bin_x*N_TILE_X + local_ix%N_TILE_X
		tile_y := bin_y*N_TILE_Y + local_ix/N_TILE_X
		if tile_x >= config.WidthInTiles || tile_y >= config.HeightInTiles {
			continue
		}
		tile_ix := tile_y*config.WidthInTiles + tile_x
		ts := newTileState(memory, config.PtclAlloc.Offset+tile_ix*PTCL_INITIAL_ALLOC)

		var clip_depth uint32
		// Nonzero while inside a clip that doesn't cover the tile: the depth
		// of that clip plus one.
		var clip_zero_depth uint32
		// Bit i is set if the clip at depth i fully covers the tile and was
		// elided.
		var clip_one_mask uint64

	instances:
		for part := range n_partitions {
			header, ok := mem.Load[renderer.BinHeader](memory, config.BinAlloc.Offset+(part*N_TILE+bin_ix)*renderer.BinHeaderSize)
			if !ok {
				return nil
			}
			for i := range header.NElements {
				element_ix, ok := memory.Load(header.Chunk.Offset + i*renderer.BinInstanceSize)
				if !ok {
					return nil
				}
				anno, ok := mem.Load[renderer.Annotated](memory, config.AnnoAlloc.Offset+element_ix*renderer.AnnotatedSize)
				if !ok {
					return nil
				}
				tag := anno.Tag()

				if clip_zero_depth != 0 {
					switch tag {
					case renderer.AnnoBeginClip:
						clip_depth++
					case renderer.AnnoEndClip:
						if clip_depth == clip_zero_depth {
							clip_zero_depth = 0
						}
						clip_depth--
					}
					continue
				}

				switch tag {
				case renderer.AnnoColor, renderer.AnnoImage:
					tile, ok := pathTile(memory, config, element_ix, tile_x, tile_y)
					if !ok || (tile.Tile == 0 && tile.Backdrop == 0) {
						continue
					}
					if !ts.alloc_cmd(2) {
						break instances
					}
					ts.write_path(tile, &anno)
					if tag == renderer.AnnoColor {
						ts.write(renderer.CmdColorOf(anno.Payload[0]))
					} else {
						ts.write(renderer.CmdImageOf(anno.Payload[0], anno.Payload[1]))
					}

				case renderer.AnnoBeginClip:
					tile, ok := pathTile(memory, config, element_ix, tile_x, tile_y)
					switch {
					case !ok || (tile.Tile == 0 && tile.Backdrop == 0):
						clip_zero_depth = clip_depth + 1
					case tile.Tile == 0 && anno.FillMode() != encoding.FillModeStroke && clip_depth < clipMaskBits:
						clip_one_mask |= 1 << clip_depth
					default:
						if !ts.alloc_cmd(2) {
							break instances
						}
						ts.write_path(tile, &anno)
						ts.write(renderer.Cmd{Tag: renderer.CmdBeginClip})
						if clip_depth < clipMaskBits {
							clip_one_mask &^= 1 << clip_depth
						}
					}
					clip_depth++

				case renderer.AnnoEndClip:
					if clip_depth == 0 {
						continue
					}
					clip_depth--
					if clip_depth >= clipMaskBits || clip_one_mask&(1<<clip_depth) == 0 {
						if !ts.alloc_cmd(2) {
							break instances
						}
						ts.write(renderer.Cmd{Tag: renderer.CmdSolid})
						ts.write(renderer.Cmd{Tag: renderer.CmdEndClip})
					}
				}
			}
		}
		ts.end()
	}
	return nil
}
