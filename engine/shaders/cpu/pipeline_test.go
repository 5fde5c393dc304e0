// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"honnef.co/go/safeish"
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
)

// alignedBytes returns n zeroed bytes that may be accessed as 32-bit words.
func alignedBytes(n int) []byte {
	return safeish.SliceCast[[]byte](make([]uint32, (n+3)/4))[:n]
}

// pipeline holds the resources of a single render, run stage by stage on
// the calling goroutine.
type pipeline struct {
	cfg    *renderer.RenderConfig
	config CPUBuffer
	scene  CPUBuffer
	state  CPUBuffer
	memory CPUBuffer
	out    *CPUTexture
	images CPUTextureArray
}

func newPipeline(t *testing.T, enc *encoding.Encoding, width, height uint32, dynamic uint32) *pipeline {
	t.Helper()
	cfg, err := renderer.NewRenderConfig(enc, width, height)
	require.NoError(t, err)

	p := &pipeline{cfg: cfg}
	configBytes := safeish.AsBytes(&cfg.Config)
	p.config = alignedBytes(len(configBytes))
	copy(p.config, configBytes)
	sceneBytes := safeish.SliceCast[[]byte](enc.Elements)
	p.scene = alignedBytes(len(sceneBytes))
	copy(p.scene, sceneBytes)
	p.state = alignedBytes(int(cfg.StateSize))
	m := mem.NewMemory(cfg.StaticSize+dynamic, cfg.StaticSize)
	p.memory = m.Bytes()
	p.out = &CPUTexture{
		Width:  int(width),
		Height: int(height),
		Pixels: make([]uint32, width*height),
	}
	return p
}

func (p *pipeline) mem() *mem.Memory { return mem.View(p.memory) }

// dispatch runs every workgroup of kernel in order and joins their errors.
func dispatch(kernel Kernel, size renderer.WorkgroupSize, resources []CPUBinding) error {
	var errs []error
	for z := range size[2] {
		for y := range size[1] {
			for x := range size[0] {
				errs = append(errs, kernel([3]uint32{x, y, z}, resources))
			}
		}
	}
	return errors.Join(errs...)
}

// coarse runs all stages up to and including Coarse.
func (p *pipeline) coarse(t *testing.T) {
	t.Helper()
	wg := &p.cfg.WorkgroupCounts
	require.NoError(t, dispatch(Elements, wg.Elements, []CPUBinding{p.config, p.scene, p.state, p.memory}))
	stages := []struct {
		kernel Kernel
		size   renderer.WorkgroupSize
	}{
		{TileAlloc, wg.TileAlloc},
		{PathCoarse, wg.PathCoarse},
		{Backdrop, wg.Backdrop},
		{Binning, wg.Binning},
		{Coarse, wg.Coarse},
	}
	for _, stage := range stages {
		require.NoError(t, dispatch(stage.kernel, stage.size, []CPUBinding{p.config, p.memory}))
	}
}

func (p *pipeline) fine() error {
	return dispatch(Kernel4, p.cfg.WorkgroupCounts.Kernel4, []CPUBinding{p.config, p.memory, p.out, p.images})
}

// render runs the whole pipeline.
func (p *pipeline) render(t *testing.T) error {
	t.Helper()
	p.coarse(t)
	return p.fine()
}

func (p *pipeline) at(x, y int) uint32 {
	return p.out.Pixels[y*p.out.Width+x]
}

// alpha returns the alpha channel of the output as bytes.
func (p *pipeline) alpha() []uint8 {
	out := make([]uint8, len(p.out.Pixels))
	for i, px := range p.out.Pixels {
		out[i] = uint8(px)
	}
	return out
}

func rect(enc *encoding.Encoding, x0, y0, x1, y1 float32) {
	enc.MoveTo([2]float32{x0, y0})
	enc.LineTo([2]float32{x1, y0})
	enc.LineTo([2]float32{x1, y1})
	enc.LineTo([2]float32{x0, y1})
	enc.ClosePath()
}

func textureArray(imgs ...gfx.Image) CPUTextureArray {
	out := make(CPUTextureArray, len(imgs))
	for i := range imgs {
		out[i] = &imgs[i]
	}
	return out
}
