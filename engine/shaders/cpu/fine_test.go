// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/vector"
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

const dynamicMemory = 1 << 20

func assertColorNear(t *testing.T, want, got uint32, tol int) {
	t.Helper()
	for shift := 24; shift >= 0; shift -= 8 {
		w := int(want >> shift & 0xFF)
		g := int(got >> shift & 0xFF)
		if d := w - g; d > tol || d < -tol {
			t.Errorf("want color %08x, got %08x", want, got)
			return
		}
	}
}

func TestSpanCoverage(t *testing.T) {
	tests := []struct {
		x0, x1 float32
		want   float32
	}{
		{-40, -32, 1},
		{-1, -1, 1},
		{0, 0, 1},
		{1, 1, 0},
		{33, 40, 0},
		{0.25, 0.25, 0.75},
		{0, 1, 0.5},
		{-1, 2, 0.5},
		{2, -1, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, spanCoverage(tt.x0, tt.x1), 1e-6, "(%v, %v)", tt.x0, tt.x1)
	}
}

func TestFillRect(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 8, 8, 40, 40)
	enc.FillColor(0xFFFFFFFF)
	p := newPipeline(t, &enc, 64, 64, dynamicMemory)
	require.NoError(t, p.render(t))

	for y := range 64 {
		for x := range 64 {
			want := uint32(0)
			if x >= 8 && x < 40 && y >= 8 && y < 40 {
				want = 0xFFFFFFFF
			}
			require.Equal(t, want, p.at(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestFillMatchesVectorRasterizer(t *testing.T) {
	polys := [][][2]float32{
		{{5, 3}, {90, 40}, {30, 110}},
		{{100, 10}, {120, 120}, {10, 90}, {60, 60}},
		{{0.5, 0.5}, {127.5, 0.5}, {64, 127.5}},
	}
	for i, poly := range polys {
		var enc encoding.Encoding
		enc.MoveTo(poly[0])
		for _, pt := range poly[1:] {
			enc.LineTo(pt)
		}
		enc.ClosePath()
		enc.FillColor(0xFFFFFFFF)
		p := newPipeline(t, &enc, 128, 128, dynamicMemory)
		require.NoError(t, p.render(t))

		r := vector.NewRasterizer(128, 128)
		r.MoveTo(poly[0][0], poly[0][1])
		for _, pt := range poly[1:] {
			r.LineTo(pt[0], pt[1])
		}
		r.ClosePath()
		want := image.NewAlpha(image.Rect(0, 0, 128, 128))
		r.Draw(want, want.Bounds(), image.Opaque, image.Point{})

		got := p.alpha()
		for y := range 128 {
			for x := range 128 {
				w := int(want.Pix[y*want.Stride+x])
				g := int(got[y*128+x])
				if d := w - g; d > 3 || d < -3 {
					t.Fatalf("polygon %d: pixel (%d, %d): want alpha %d, got %d", i, x, y, w, g)
				}
			}
		}
	}
}

func TestStroke(t *testing.T) {
	var enc encoding.Encoding
	enc.SetFillMode(encoding.FillModeStroke)
	enc.SetLineWidth(4)
	enc.MoveTo([2]float32{10, 20})
	enc.LineTo([2]float32{50, 20})
	enc.FillColor(0xFFFFFFFF)
	p := newPipeline(t, &enc, 64, 64, dynamicMemory)
	require.NoError(t, p.render(t))

	for y := 18; y < 22; y++ {
		assert.Equal(t, uint32(0xFFFFFFFF), p.at(30, y), "row %d", y)
	}
	assert.Zero(t, p.at(30, 16))
	assert.Zero(t, p.at(30, 23))
	assert.Zero(t, p.at(60, 20))
}

func TestSourceOver(t *testing.T) {
	const red = 0xFF0000FF
	const blue = 0x0000FF80
	var enc encoding.Encoding
	rect(&enc, 0, 0, 32, 32)
	enc.FillColor(red)
	rect(&enc, 16, 0, 64, 32)
	enc.FillColor(blue)
	p := newPipeline(t, &enc, 64, 32, dynamicMemory)
	require.NoError(t, p.render(t))

	bg := gfx.Premultiply(red)
	fg := gfx.Premultiply(blue)
	var over [4]float32
	for c := range 4 {
		over[c] = bg[c]*(1-fg[3]) + fg[c]
	}
	assertColorNear(t, red, p.at(8, 8), 0)
	assertColorNear(t, gfx.Unpremultiply(over), p.at(20, 8), 1)
	assertColorNear(t, blue, p.at(40, 8), 1)
}

func TestImageFill(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			i := src.PixOffset(x, y)
			copy(src.Pix[i:i+4], []uint8{uint8(x * 30), uint8(y * 30), 0x80, 0xFF})
		}
	}
	var enc encoding.Encoding
	rect(&enc, 4, 4, 12, 12)
	enc.FillImage(0, -4, -4)
	p := newPipeline(t, &enc, 32, 32, dynamicMemory)
	p.images = textureArray(gfx.NewImage(src))
	require.NoError(t, p.render(t))

	img := p.images[0]
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			assertColorNear(t, img.At(x-4, y-4), p.at(x, y), 1)
		}
	}
	assert.Zero(t, p.at(2, 2))
	assert.Zero(t, p.at(20, 20))
}

func TestImageFillOutOfRangeIndex(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 16, 16)
	enc.FillImage(3, 0, 0)
	p := newPipeline(t, &enc, 32, 32, dynamicMemory)
	require.NoError(t, p.render(t))
	assert.Zero(t, p.at(4, 4))
}

func TestClip(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 16, 16, 48, 48)
	enc.BeginClip()
	rect(&enc, 0, 0, 64, 64)
	enc.FillColor(0xFF0000FF)
	enc.EndClip()
	p := newPipeline(t, &enc, 64, 64, dynamicMemory)
	require.NoError(t, p.render(t))

	for y := range 64 {
		for x := range 64 {
			want := uint32(0)
			if x >= 16 && x < 48 && y >= 16 && y < 48 {
				want = 0xFF0000FF
			}
			require.Equal(t, want, p.at(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestNestedClips(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 40, 40)
	enc.BeginClip()
	rect(&enc, 20, 20, 64, 64)
	enc.BeginClip()
	rect(&enc, 0, 0, 64, 64)
	enc.FillColor(0x00FF00FF)
	enc.EndClip()
	enc.EndClip()
	p := newPipeline(t, &enc, 64, 64, dynamicMemory)
	require.NoError(t, p.render(t))

	assert.Equal(t, uint32(0x00FF00FF), p.at(30, 30))
	assert.Zero(t, p.at(10, 10))
	assert.Zero(t, p.at(50, 50))
	assert.Zero(t, p.at(10, 30))
}

// tileCommands returns the tags of the command list of tile (x, y),
// following jumps.
func tileCommands(t *testing.T, p *pipeline, x, y uint32) []renderer.CmdTag {
	t.Helper()
	m := p.mem()
	ref := p.cfg.Config.PtclAlloc.Offset + (y*p.cfg.Config.WidthInTiles+x)*renderer.PtclInitialAlloc
	var out []renderer.CmdTag
	for range 10000 {
		cmd, ok := mem.Load[renderer.Cmd](m, ref)
		require.True(t, ok)
		out = append(out, cmd.Tag)
		switch cmd.Tag {
		case renderer.CmdEnd:
			return out
		case renderer.CmdJump:
			ref = cmd.JumpTarget()
		default:
			ref += renderer.CmdSize
		}
	}
	t.Fatal("command list doesn't end")
	return nil
}

func TestClipCoveringTileIsElided(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 96, 96)
	enc.BeginClip()
	rect(&enc, 0, 0, 128, 128)
	enc.FillColor(0xFF0000FF)
	enc.EndClip()
	p := newPipeline(t, &enc, 128, 128, dynamicMemory)
	require.NoError(t, p.render(t))

	assert.Equal(t, []renderer.CmdTag{renderer.CmdSolid, renderer.CmdColor, renderer.CmdEnd}, tileCommands(t, p, 1, 1))
	assert.Contains(t, tileCommands(t, p, 3, 1), renderer.CmdBeginClip)
	assert.Contains(t, tileCommands(t, p, 3, 1), renderer.CmdEndClip)
	assert.Equal(t, uint32(0xFF0000FF), p.at(50, 50))
	assert.Equal(t, uint32(0xFF0000FF), p.at(95, 40))
	assert.Zero(t, p.at(100, 40))
}

func TestCommandListJumps(t *testing.T) {
	var enc encoding.Encoding
	for i := range 100 {
		rect(&enc, 0, 0, 32, 32)
		enc.FillColor(uint32(i)<<8 | 0xFF)
	}
	rect(&enc, 0, 0, 32, 32)
	enc.FillColor(0x00FF00FF)
	p := newPipeline(t, &enc, 32, 32, dynamicMemory)
	require.NoError(t, p.render(t))

	cmds := tileCommands(t, p, 0, 0)
	assert.Contains(t, cmds, renderer.CmdJump)
	assert.Equal(t, renderer.CmdEnd, cmds[len(cmds)-1])
	assert.Equal(t, uint32(0x00FF00FF), p.at(16, 16))
}

// corruptFirstCommand replaces the first command of tile (0, 0).
func corruptFirstCommand(p *pipeline, cmd renderer.Cmd) uint32 {
	ref := p.cfg.Config.PtclAlloc.Offset
	mem.Store(p.mem(), ref, cmd)
	return ref
}

func corruptScene(t *testing.T, dynamic uint32) *pipeline {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 64, 64)
	enc.FillColor(0xFF0000FF)
	p := newPipeline(t, &enc, 64, 64, dynamic)
	p.coarse(t)
	return p
}

func TestUnknownCommand(t *testing.T) {
	p := corruptScene(t, dynamicMemory)
	ref := corruptFirstCommand(p, renderer.Cmd{Tag: 42})
	err := p.fine()
	require.Error(t, err)
	assert.ErrorIs(t, err, renderer.ErrCorruptCommandStream)
	var cerr *renderer.CommandStreamError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, renderer.CmdTag(42), cerr.Tag)
	assert.Equal(t, ref, cerr.Offset)
	assert.Equal(t, uint32(0), cerr.TileX)
	assert.Equal(t, uint32(0), cerr.TileY)

	// Other tiles are unaffected.
	assert.Equal(t, uint32(0xFF0000FF), p.at(40, 40))
}

func TestClipStackUnderflow(t *testing.T) {
	p := corruptScene(t, dynamicMemory)
	corruptFirstCommand(p, renderer.Cmd{Tag: renderer.CmdEndClip})
	var cerr *renderer.CommandStreamError
	require.ErrorAs(t, p.fine(), &cerr)
	assert.Equal(t, renderer.CmdEndClip, cerr.Tag)
}

func TestJumpLoop(t *testing.T) {
	p := corruptScene(t, dynamicMemory)
	ref := p.cfg.Config.PtclAlloc.Offset
	corruptFirstCommand(p, renderer.CmdJumpOf(ref))
	var cerr *renderer.CommandStreamError
	require.ErrorAs(t, p.fine(), &cerr)
	assert.Equal(t, renderer.CmdJump, cerr.Tag)
}

func TestCommandOutOfRange(t *testing.T) {
	p := corruptScene(t, dynamicMemory)
	corruptFirstCommand(p, renderer.CmdJumpOf(1<<30))
	assert.ErrorIs(t, p.fine(), renderer.ErrCorruptCommandStream)
}

func TestClipDepthLimit(t *testing.T) {
	p := corruptScene(t, 4<<20)
	m := p.mem()
	chunk, ok := m.Malloc(renderer.CmdSize * (renderer.MaxClipDepth + 2))
	require.True(t, ok)
	for i := range uint32(renderer.MaxClipDepth + 1) {
		mem.Store(m, chunk.Offset+i*renderer.CmdSize, renderer.Cmd{Tag: renderer.CmdBeginClip})
	}
	mem.Store(m, chunk.Offset+(renderer.MaxClipDepth+1)*renderer.CmdSize, renderer.Cmd{Tag: renderer.CmdEnd})
	corruptFirstCommand(p, renderer.CmdJumpOf(chunk.Offset))

	var cerr *renderer.CommandStreamError
	require.ErrorAs(t, p.fine(), &cerr)
	assert.Equal(t, renderer.CmdBeginClip, cerr.Tag)
	assert.Equal(t, chunk.Offset+renderer.MaxClipDepth*renderer.CmdSize, cerr.Offset)
}

// runCommands interprets cmds as the command list of tile (0, 0) of p.
func runCommands(t *testing.T, p *pipeline, cmds ...renderer.Cmd) *fineTile {
	t.Helper()
	m := p.mem()
	chunk, ok := m.Malloc(renderer.CmdSize * uint32(len(cmds)))
	require.True(t, ok)
	for i, cmd := range cmds {
		mem.Store(m, chunk.Offset+uint32(i)*renderer.CmdSize, cmd)
	}
	ft := &fineTile{memory: m}
	require.NoError(t, ft.run(chunk.Offset))
	return ft
}

func TestEmptyClipRestoresState(t *testing.T) {
	background := []renderer.Cmd{
		renderer.CmdAlphaOf(0.3),
		renderer.CmdColorOf(0x3366CC80),
	}
	begin := renderer.Cmd{Tag: renderer.CmdBeginClip}
	end := renderer.Cmd{Tag: renderer.CmdEndClip}
	tests := []struct {
		name string
		clip []renderer.Cmd
	}{
		{"depth 1", []renderer.Cmd{begin, end}},
		{"depth 2", []renderer.Cmd{begin, begin, end, end}},
	}

	p := corruptScene(t, dynamicMemory)
	want := runCommands(t, p, append(background, renderer.Cmd{Tag: renderer.CmdEnd})...)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := append(append(append([]renderer.Cmd{}, background...), tt.clip...), renderer.Cmd{Tag: renderer.CmdEnd})
			got := runCommands(t, p, cmds...)
			assert.Zero(t, got.depth)
			for i := range got.rgba {
				if got.rgba[i] != want.rgba[i] {
					t.Fatalf("cell %d: want color %v, got %v", i, want.rgba[i], got.rgba[i])
				}
				if got.area[i] != float32(0.3) {
					t.Fatalf("cell %d: want area 0.3, got %v", i, got.area[i])
				}
			}
		})
	}
}

func TestMemoryExhaustion(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 64, 64)
	enc.FillColor(0xFF0000FF)
	p := newPipeline(t, &enc, 64, 64, 16)
	p.coarse(t)
	require.True(t, p.mem().Failed())

	err := p.fine()
	assert.True(t, errors.Is(err, renderer.ErrMemory))
	assert.False(t, errors.Is(err, renderer.ErrCorruptCommandStream))
}

func TestOutputIsStraightAlpha(t *testing.T) {
	var enc encoding.Encoding
	rect(&enc, 0, 0, 32, 32)
	enc.FillColor(0x3366CC80)
	p := newPipeline(t, &enc, 32, 32, dynamicMemory)
	require.NoError(t, p.render(t))
	assertColorNear(t, 0x3366CC80, p.at(5, 5), 1)
}
