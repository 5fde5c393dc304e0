// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"sync/atomic"

	"honnef.co/go/tessera/mem"
)

var resourceID atomic.Uint64

func nextResourceID() ResourceID {
	return ResourceID(resourceID.Add(1))
}

type ResourceID uint64

type ResourceProxyKind int

const (
	ResourceProxyKindBuffer ResourceProxyKind = iota + 1
	ResourceProxyKindImage
	ResourceProxyKindImageArray
)

type ResourceProxy struct {
	Kind ResourceProxyKind
	BufferProxy
	ImageProxy
	ImageArray []ImageProxy
}

// Recording is an ordered list of uploads, dispatches and downloads,
// executed by an engine.
type Recording struct {
	Commands []Command
}

func (rec *Recording) push(arena *mem.Arena, cmd Command) {
	rec.Commands = mem.Append(arena, rec.Commands, cmd)
}

func (rec *Recording) Upload(arena *mem.Arena, name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(arena, mem.Make(arena, Upload{buf, data}))
	return buf
}

func (rec *Recording) UploadUniform(arena *mem.Arena, name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(arena, mem.Make(arena, UploadUniform{buf, data}))
	return buf
}

// UploadImage uploads an image whose pixels are packed 0xRRGGBBAA words.
func (rec *Recording) UploadImage(arena *mem.Arena, width, height uint32, format ImageFormat, data []uint32) ImageProxy {
	imageProxy := NewImageProxy(width, height, format)
	rec.push(arena, mem.Make(arena, UploadImage{imageProxy, data}))
	return imageProxy
}

// Write copies data into buf at offset. The rest of buf is zeroed when it
// is first materialized.
func (rec *Recording) Write(arena *mem.Arena, buf BufferProxy, offset uint64, data []byte) {
	rec.push(arena, mem.Make(arena, Write{buf, offset, data}))
}

func (rec *Recording) Dispatch(arena *mem.Arena, shader ShaderID, wgSize WorkgroupSize, resources []ResourceProxy) {
	rec.push(arena, mem.Make(arena, Dispatch{shader, wgSize, resources}))
}

func (rec *Recording) Download(arena *mem.Arena, buf BufferProxy) {
	rec.push(arena, mem.Make(arena, Download{buf}))
}

func (rec *Recording) DownloadImage(arena *mem.Arena, image ImageProxy) {
	rec.push(arena, mem.Make(arena, DownloadImage{image}))
}

func (rec *Recording) ClearAll(arena *mem.Arena, buf BufferProxy) {
	rec.push(arena, mem.Make(arena, Clear{buf, 0, -1}))
}

func (rec *Recording) FreeBuffer(arena *mem.Arena, buf BufferProxy) {
	rec.push(arena, mem.Make(arena, FreeBuffer{buf}))
}

func (rec *Recording) FreeImage(arena *mem.Arena, image ImageProxy) {
	rec.push(arena, mem.Make(arena, FreeImage{image}))
}

func (rec *Recording) FreeResource(arena *mem.Arena, resource ResourceProxy) {
	switch resource.Kind {
	case ResourceProxyKindBuffer:
		rec.FreeBuffer(arena, resource.BufferProxy)
	case ResourceProxyKindImage:
		rec.FreeImage(arena, resource.ImageProxy)
	case ResourceProxyKindImageArray:
		for _, img := range resource.ImageArray {
			rec.FreeImage(arena, img)
		}
	default:
		panic(fmt.Sprintf("unhandled kind %d", resource.Kind))
	}
}

// NumDispatches returns the number of Dispatch commands.
func (rec *Recording) NumDispatches() int {
	n := 0
	for _, cmd := range rec.Commands {
		if _, ok := cmd.(*Dispatch); ok {
			n++
		}
	}
	return n
}

func NewBufferProxy(size uint64, name string) BufferProxy {
	id := nextResourceID()
	return BufferProxy{size, id, name}
}

func NewImageProxy(width, height uint32, format ImageFormat) ImageProxy {
	id := nextResourceID()
	return ImageProxy{
		Width:  width,
		Height: height,
		Format: format,
		ID:     id,
	}
}

type BufferProxy struct {
	Size uint64
	ID   ResourceID
	Name string
}

func (p BufferProxy) Resource() ResourceProxy {
	return ResourceProxy{
		Kind:        ResourceProxyKindBuffer,
		BufferProxy: p,
	}
}

type ImageFormat int

const (
	// Packed 0xRRGGBBAA, sRGB with straight alpha.
	Rgba8Srgb ImageFormat = iota
)

type ImageProxy struct {
	Width  uint32
	Height uint32
	Format ImageFormat
	ID     ResourceID
}

func (p ImageProxy) Resource() ResourceProxy {
	return ResourceProxy{
		Kind:       ResourceProxyKindImage,
		ImageProxy: p,
	}
}

func ImageArrayResource(images []ImageProxy) ResourceProxy {
	return ResourceProxy{
		Kind:       ResourceProxyKindImageArray,
		ImageArray: images,
	}
}

type ShaderID int

type Command interface {
	isCommand()
}

func (*Upload) isCommand()        {}
func (*UploadUniform) isCommand() {}
func (*UploadImage) isCommand()   {}
func (*Write) isCommand()         {}
func (*Dispatch) isCommand()      {}
func (*Download) isCommand()      {}
func (*DownloadImage) isCommand() {}
func (*Clear) isCommand()         {}
func (*FreeBuffer) isCommand()    {}
func (*FreeImage) isCommand()     {}

type BindTypeType int

const (
	BindTypeBuffer BindTypeType = iota + 1
	BindTypeBufReadOnly
	BindTypeUniform
	BindTypeImage
	BindTypeImageRead
	BindTypeImageArrayRead
)

type BindType struct {
	Type        BindTypeType
	ImageFormat ImageFormat
}

type Upload struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadUniform struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadImage struct {
	Image ImageProxy
	Data  []uint32
}

type Write struct {
	Buffer BufferProxy
	Offset uint64
	Data   []byte
}

type Dispatch struct {
	Shader        ShaderID
	WorkgroupSize WorkgroupSize
	Bindings      []ResourceProxy
}

type Download struct {
	Buffer BufferProxy
}

type DownloadImage struct {
	Image ImageProxy
}

type Clear struct {
	Buffer BufferProxy
	Offset uint64
	Size   int64
}

type FreeBuffer struct {
	Buffer BufferProxy
}

type FreeImage struct {
	Image ImageProxy
}
