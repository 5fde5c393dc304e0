// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cpu implements the kernels of the pipeline.
//
// A kernel is called once per workgroup, possibly concurrently with other
// workgroups of the same dispatch. The lanes of a workgroup run as
// sequential phases; a barrier is the boundary between two phases.
package cpu

import (
	"fmt"
	"unsafe"

	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
	"honnef.co/go/safeish"
)

const TILE_WIDTH = renderer.TileWidth
const TILE_HEIGHT = renderer.TileHeight
const TILE_SCALE = 1.0 / TILE_WIDTH

const N_TILE_X = renderer.NTileX
const N_TILE_Y = renderer.NTileY
const N_TILE = renderer.NTile
const N_SLICE = renderer.NSlice

const PTCL_INITIAL_ALLOC = renderer.PtclInitialAlloc

// Fine rasterization: a tile is covered by N_TILE lanes of CHUNK cells.
const CHUNK_X = 2
const CHUNK_Y = 4
const CHUNK = CHUNK_X * CHUNK_Y
const FINE_LANES_X = TILE_WIDTH / CHUNK_X
const FINE_LANES_Y = TILE_HEIGHT / CHUNK_Y

// Kernel runs workgroup wg of a dispatch.
type Kernel func(wg [3]uint32, resources []CPUBinding) error

type CPUBinding interface {
	// One of CPUBuffer, *CPUTexture, CPUTextureArray
}

type CPUBuffer []byte

// CPUTexture holds packed 0xRRGGBBAA texels.
type CPUTexture = gfx.Image

type CPUTextureArray []*CPUTexture

// XXX move this into safeish
func fromBytes[E any, T *E](b []byte) T {
	if uintptr(len(b)) < unsafe.Sizeof(*new(E)) {
		panic(fmt.Sprintf(
			"buffer of size %d cannot represent object of size %d", len(b), unsafe.Sizeof(*new(E))))
	}

	return safeish.Cast[T](&b[0])
}

func config(b CPUBinding) *renderer.Config {
	return fromBytes[renderer.Config](b.(CPUBuffer))
}

func memory(b CPUBinding) *mem.Memory {
	return mem.View(b.(CPUBuffer))
}

type Vec2 struct {
	x, y float32
}

func Vec2FromArray(arr [2]float32) Vec2 {
	return Vec2{arr[0], arr[1]}
}

func (v Vec2) to_array() [2]float32 {
	return [2]float32{v.x, v.y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.x + o.x, v.y + o.y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.x - o.x, v.y - o.y}
}

func (v Vec2) Mul(f float32) Vec2 {
	return Vec2{v.x * f, v.y * f}
}

func (v Vec2) dot(other Vec2) float32 {
	return v.x*other.x + v.y*other.y
}

func (v Vec2) length() float32 {
	return jmath.Hypot32(v.x, v.y)
}

func (self Vec2) mix(other Vec2, t float32) Vec2 {
	x := self.x + (other.x-self.x)*t
	y := self.y + (other.y-self.y)*t
	return Vec2{x, y}
}

// Coordinates are clamped to this range before conversion to integers.
const coordLimit = 1 << 24

func floorInt(f float32) int32 {
	return int32(jmath.Clamp(jmath.Floor32(f), -coordLimit, coordLimit))
}

func ceilInt(f float32) int32 {
	return int32(jmath.Clamp(jmath.Ceil32(f), -coordLimit, coordLimit))
}
