// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu_engine

import (
	"context"
	"reflect"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/engine/shaders"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/profiler"
	"honnef.co/go/tessera/renderer"
)

var bindTypeMapping = [...]renderer.BindType{
	shaders.Buffer:         {Type: renderer.BindTypeBuffer},
	shaders.BufReadOnly:    {Type: renderer.BindTypeBufReadOnly},
	shaders.Uniform:        {Type: renderer.BindTypeUniform},
	shaders.Image:          {Type: renderer.BindTypeImage, ImageFormat: renderer.Rgba8Srgb},
	shaders.ImageRead:      {Type: renderer.BindTypeImageRead, ImageFormat: renderer.Rgba8Srgb},
	shaders.ImageArrayRead: {Type: renderer.BindTypeImageArrayRead, ImageFormat: renderer.Rgba8Srgb},
}

func (engine *Engine) newFullShaders() *renderer.FullShaders {
	var out renderer.FullShaders
	outV := reflect.ValueOf(&out).Elem()
	v := reflect.ValueOf(&shaders.Collection)
	for i := range v.Elem().NumField() {
		fieldName := v.Elem().Type().Field(i).Name
		outField := outV.FieldByName(fieldName)
		if !outField.IsValid() {
			continue
		}
		shader := v.Elem().Field(i).Addr().Interface().(*shaders.ComputeShader)
		bindings := make([]renderer.BindType, len(shader.Bindings))
		for i, b := range shader.Bindings {
			bindings[i] = bindTypeMapping[b]
		}
		id := engine.addShader(shader.Name, bindings, shader.CPU)
		outField.Set(reflect.ValueOf(id))
	}
	return &out
}

// Result is the outcome of rendering a scene once.
type Result struct {
	Image *gfx.Image
	// State of the memory arena after the last stage.
	MemoryOffset uint32
	MemoryError  uint32
}

// RenderToImage records and runs the full pipeline for enc, rendering to a
// new width by height image. The error of a failed stage is returned
// together with the state of the memory arena, if it was downloaded.
func (eng *Engine) RenderToImage(
	ctx context.Context,
	arena *mem.Arena,
	enc *encoding.Encoding,
	images gfx.Images,
	width, height uint32,
	params *renderer.RenderParams,
	pgroup profiler.ProfilerGroup,
) (Result, error) {
	pgroup = pgroup.Start("RenderToImage")
	defer pgroup.End()

	cfg, err := renderer.NewRenderConfig(enc, width, height)
	if err != nil {
		return Result{}, err
	}
	recording, target := renderer.RenderFull(arena, cfg, enc, images, eng.fullShaders, params, pgroup)
	defer eng.FreeDownloads()
	if err := eng.RunRecording(ctx, arena, &recording, pgroup); err != nil {
		return Result{}, err
	}

	var res Result
	if buf, ok := eng.Download(target.Memory); ok {
		m := mem.View(buf)
		res.MemoryOffset = m.Offset()
		res.MemoryError = m.Error()
	}
	res.Image, _ = eng.DownloadImage(target.Image)
	return res, nil
}
