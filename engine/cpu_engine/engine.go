// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cpu_engine executes recordings on the CPU. Each workgroup of a
// dispatch runs on its own goroutine; dispatches run one after another.
package cpu_engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"honnef.co/go/safeish"
	"honnef.co/go/tessera/engine/shaders/cpu"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/profiler"
	"honnef.co/go/tessera/renderer"
)

type Engine struct {
	shaders        []shader
	downloads      map[renderer.ResourceID][]byte
	imageDownloads map[renderer.ResourceID]*gfx.Image
	workers        int
	fullShaders    *renderer.FullShaders
}

type shader struct {
	Label    string
	Bindings []renderer.BindType
	CPU      cpu.Kernel
}

type bindMapBuffer struct {
	Buffer []byte
	Label  string
}

type bindMap struct {
	bufMap   mem.BinaryTreeMap[renderer.ResourceID, *bindMapBuffer]
	imageMap mem.BinaryTreeMap[renderer.ResourceID, *cpu.CPUTexture]
}

// New returns an engine that runs at most workers workgroups at once. If
// workers is zero or negative, GOMAXPROCS is used.
func New(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eng := &Engine{
		downloads:      make(map[renderer.ResourceID][]byte),
		imageDownloads: make(map[renderer.ResourceID]*gfx.Image),
		workers:        workers,
	}
	eng.fullShaders = eng.newFullShaders()
	return eng
}

func (eng *Engine) Workers() int { return eng.workers }

func (eng *Engine) FullShaders() *renderer.FullShaders { return eng.fullShaders }

func (eng *Engine) addShader(label string, layout []renderer.BindType, kernel cpu.Kernel) renderer.ShaderID {
	if kernel == nil {
		panic(fmt.Sprintf("shader %q has no CPU implementation", label))
	}
	id := len(eng.shaders)
	eng.shaders = append(eng.shaders, shader{
		Label:    label,
		Bindings: layout,
		CPU:      kernel,
	})
	return renderer.ShaderID(id)
}

// newBuffer returns a zeroed buffer of size bytes, aligned for 32-bit
// access.
func newBuffer(size uint64) []byte {
	words := make([]uint32, (size+3)/4)
	return safeish.SliceCast[[]byte](words)[:size]
}

func (m *bindMap) getOrCreateBuf(arena *mem.Arena, proxy renderer.BufferProxy) []byte {
	if b, ok := m.bufMap.Get(proxy.ID); ok {
		return b.Buffer
	}
	buf := newBuffer(proxy.Size)
	m.bufMap.Insert(arena, proxy.ID, &bindMapBuffer{
		Buffer: buf,
		Label:  proxy.Name,
	})
	return buf
}

func (m *bindMap) getOrCreateImage(arena *mem.Arena, proxy renderer.ImageProxy) *cpu.CPUTexture {
	if img, ok := m.imageMap.Get(proxy.ID); ok {
		return img
	}
	img := &cpu.CPUTexture{
		Width:  int(proxy.Width),
		Height: int(proxy.Height),
		Pixels: make([]uint32, int(proxy.Width)*int(proxy.Height)),
	}
	m.imageMap.Insert(arena, proxy.ID, img)
	return img
}

func (m *bindMap) createCPUResources(arena *mem.Arena, bindings []renderer.ResourceProxy) []cpu.CPUBinding {
	out := mem.NewSlice[[]cpu.CPUBinding](arena, len(bindings), len(bindings))
	for i, resource := range bindings {
		switch resource.Kind {
		case renderer.ResourceProxyKindBuffer:
			out[i] = cpu.CPUBuffer(m.getOrCreateBuf(arena, resource.BufferProxy))
		case renderer.ResourceProxyKindImage:
			out[i] = m.getOrCreateImage(arena, resource.ImageProxy)
		case renderer.ResourceProxyKindImageArray:
			arr := make(cpu.CPUTextureArray, len(resource.ImageArray))
			for j, img := range resource.ImageArray {
				arr[j] = m.getOrCreateImage(arena, img)
			}
			out[i] = arr
		default:
			panic(fmt.Sprintf("unhandled kind %d", resource.Kind))
		}
	}
	return out
}

// RunRecording executes the commands of recording. It stops at the first
// dispatch that reports an error and returns the errors of all of its
// workgroups. Cancelling ctx stops the recording between workgroups.
func (eng *Engine) RunRecording(
	ctx context.Context,
	arena *mem.Arena,
	recording *renderer.Recording,
	pgroup profiler.ProfilerGroup,
) error {
	pgroup = pgroup.Start("RunRecording")
	defer pgroup.End()

	var bindMap bindMap
	for _, cmd := range recording.Commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch cmd := cmd.(type) {
		case *renderer.Upload:
			buf := bindMap.getOrCreateBuf(arena, cmd.Buffer)
			copy(buf, cmd.Data)

		case *renderer.UploadUniform:
			buf := bindMap.getOrCreateBuf(arena, cmd.Buffer)
			copy(buf, cmd.Data)

		case *renderer.UploadImage:
			img := bindMap.getOrCreateImage(arena, cmd.Image)
			copy(img.Pixels, cmd.Data)

		case *renderer.Write:
			buf := bindMap.getOrCreateBuf(arena, cmd.Buffer)
			if cmd.Offset > uint64(len(buf)) {
				panic(fmt.Sprintf("write at offset %d past end of buffer %q", cmd.Offset, cmd.Buffer.Name))
			}
			copy(buf[cmd.Offset:], cmd.Data)

		case *renderer.Dispatch:
			shader := eng.shaders[cmd.Shader]
			resources := bindMap.createCPUResources(arena, cmd.Bindings)
			sg := pgroup.Start(shader.Label)
			err := eng.dispatch(ctx, shader.CPU, cmd.WorkgroupSize, resources)
			sg.End()
			if err != nil {
				return fmt.Errorf("%s: %w", shader.Label, err)
			}

		case *renderer.Download:
			b, ok := bindMap.bufMap.Get(cmd.Buffer.ID)
			if !ok {
				panic("tried using unavailable buffer for download")
			}
			eng.downloads[cmd.Buffer.ID] = b.Buffer

		case *renderer.DownloadImage:
			img, ok := bindMap.imageMap.Get(cmd.Image.ID)
			if !ok {
				panic("tried using unavailable image for download")
			}
			eng.imageDownloads[cmd.Image.ID] = img

		case *renderer.Clear:
			buf := bindMap.getOrCreateBuf(arena, cmd.Buffer)
			slice := buf[cmd.Offset:]
			if cmd.Size >= 0 {
				slice = slice[:cmd.Size]
			}
			clear(slice)

		case *renderer.FreeBuffer:
			bindMap.bufMap.Delete(cmd.Buffer.ID)

		case *renderer.FreeImage:
			bindMap.imageMap.Delete(cmd.Image.ID)

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}
	return nil
}

// dispatch runs all workgroups of a kernel, at most eng.workers at a time.
func (eng *Engine) dispatch(
	ctx context.Context,
	kernel cpu.Kernel,
	wgSize renderer.WorkgroupSize,
	resources []cpu.CPUBinding,
) error {
	n := int(wgSize[0]) * int(wgSize[1]) * int(wgSize[2])
	if n == 0 {
		return nil
	}
	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(eng.workers)
	i := 0
launch:
	for z := range wgSize[2] {
		for y := range wgSize[1] {
			for x := range wgSize[0] {
				if ctx.Err() != nil {
					break launch
				}
				ix := i
				g.Go(func() error {
					errs[ix] = kernel([3]uint32{x, y, z}, resources)
					return nil
				})
				i++
			}
		}
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Download returns the contents of a buffer downloaded by the last
// recording.
func (eng *Engine) Download(buf renderer.BufferProxy) ([]byte, bool) {
	got, ok := eng.downloads[buf.ID]
	return got, ok
}

// DownloadImage returns an image downloaded by the last recording.
func (eng *Engine) DownloadImage(img renderer.ImageProxy) (*gfx.Image, bool) {
	got, ok := eng.imageDownloads[img.ID]
	return got, ok
}

func (eng *Engine) FreeDownloads() {
	clear(eng.downloads)
	clear(eng.imageDownloads)
}
