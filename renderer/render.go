// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/profiler"
	"honnef.co/go/safeish"
)

// FullShaders holds the IDs of the kernels of the pipeline, in dispatch
// order.
type FullShaders struct {
	Elements   ShaderID
	TileAlloc  ShaderID
	PathCoarse ShaderID
	Backdrop   ShaderID
	Binning    ShaderID
	Coarse     ShaderID
	Kernel4    ShaderID
}

type RenderParams struct {
	// Size of the dynamically allocated part of the memory arena, in bytes.
	DynamicMemory uint32
}

// Target names the resources a recording downloads.
type Target struct {
	// The memory arena, including its header.
	Memory BufferProxy
	// The rendered image.
	Image ImageProxy
}

// RenderFull records the full pipeline for rendering enc with the layout
// computed by NewRenderConfig. images is the image store referenced by
// FillImage elements.
func RenderFull(
	arena *mem.Arena,
	cfg *RenderConfig,
	enc *encoding.Encoding,
	images gfx.Images,
	shaders *FullShaders,
	params *RenderParams,
	pgroup profiler.ProfilerGroup,
) (Recording, Target) {
	pgroup = pgroup.Start("RenderFull")
	defer pgroup.End()

	var recording Recording
	wgCounts := &cfg.WorkgroupCounts

	configBuf := recording.UploadUniform(arena, "config", mem.MakeSlice(arena, safeish.AsBytes(&cfg.Config)))
	sceneBuf := recording.Upload(arena, "scene", safeish.SliceCast[[]byte](enc.Elements))
	stateBuf := NewBufferProxy(uint64(cfg.StateSize), "state")
	memBuf := NewBufferProxy(uint64(mem.HeaderSize)+uint64(cfg.StaticSize)+uint64(params.DynamicMemory), "memory")
	header := mem.MakeSlice(arena, []uint32{cfg.StaticSize, mem.NoError})
	recording.Write(arena, memBuf, 0, safeish.SliceCast[[]byte](header))

	imageProxies := mem.NewSlice[[]ImageProxy](arena, 0, len(images))
	for _, img := range images {
		proxy := recording.UploadImage(arena, uint32(img.Width), uint32(img.Height), Rgba8Srgb, img.Pixels)
		imageProxies = mem.Append(arena, imageProxies, proxy)
	}
	outImage := NewImageProxy(cfg.Width, cfg.Height, Rgba8Srgb)

	recording.Dispatch(
		arena,
		shaders.Elements,
		wgCounts.Elements,
		mem.MakeSlice(arena, []ResourceProxy{
			configBuf.Resource(),
			sceneBuf.Resource(),
			stateBuf.Resource(),
			memBuf.Resource(),
		}),
	)
	recording.FreeResource(arena, stateBuf.Resource())
	recording.FreeResource(arena, sceneBuf.Resource())

	// The remaining stages communicate only through the memory arena.
	stages := [...]struct {
		shader ShaderID
		wgSize WorkgroupSize
	}{
		{shaders.TileAlloc, wgCounts.TileAlloc},
		{shaders.PathCoarse, wgCounts.PathCoarse},
		{shaders.Backdrop, wgCounts.Backdrop},
		{shaders.Binning, wgCounts.Binning},
		{shaders.Coarse, wgCounts.Coarse},
	}
	for _, stage := range stages {
		recording.Dispatch(
			arena,
			stage.shader,
			stage.wgSize,
			mem.MakeSlice(arena, []ResourceProxy{configBuf.Resource(), memBuf.Resource()}),
		)
	}

	recording.Dispatch(
		arena,
		shaders.Kernel4,
		wgCounts.Kernel4,
		mem.MakeSlice(arena, []ResourceProxy{
			configBuf.Resource(),
			memBuf.Resource(),
			outImage.Resource(),
			ImageArrayResource(imageProxies),
		}),
	)

	recording.Download(arena, memBuf)
	recording.DownloadImage(arena, outImage)
	recording.FreeResource(arena, configBuf.Resource())
	recording.FreeResource(arena, memBuf.Resource())
	recording.FreeResource(arena, outImage.Resource())
	recording.FreeResource(arena, ImageArrayResource(imageProxies))
	return recording, Target{Memory: memBuf, Image: outImage}
}
