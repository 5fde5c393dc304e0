// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package shaders describes the kernels of the pipeline: their names,
// workgroup sizes and bindings.
package shaders

import "honnef.co/go/tessera/engine/shaders/cpu"

type BindType int

const (
	Buffer BindType = iota + 1
	BufReadOnly
	Uniform
	Image
	ImageRead
	ImageArrayRead
)

func (typ BindType) IsMutable() bool {
	return typ == Buffer || typ == Image
}

type ComputeShader struct {
	Name          string
	WorkgroupSize [3]uint32
	Bindings      []BindType
	CPU           cpu.Kernel
}

var Collection = struct {
	Elements   ComputeShader
	TileAlloc  ComputeShader
	PathCoarse ComputeShader
	Backdrop   ComputeShader
	Binning    ComputeShader
	Coarse     ComputeShader
	Kernel4    ComputeShader
}{
	Elements: ComputeShader{
		Name:          "elements",
		WorkgroupSize: [3]uint32{32, 1, 1},
		Bindings:      []BindType{Uniform, BufReadOnly, Buffer, Buffer},
		CPU:           cpu.Elements,
	},
	TileAlloc: ComputeShader{
		Name:          "tile_alloc",
		WorkgroupSize: [3]uint32{cpu.TILE_ALLOC_WG, 1, 1},
		Bindings:      []BindType{Uniform, Buffer},
		CPU:           cpu.TileAlloc,
	},
	PathCoarse: ComputeShader{
		Name:          "path_coarse",
		WorkgroupSize: [3]uint32{cpu.PATH_COARSE_WG, 1, 1},
		Bindings:      []BindType{Uniform, Buffer},
		CPU:           cpu.PathCoarse,
	},
	Backdrop: ComputeShader{
		Name:          "backdrop",
		WorkgroupSize: [3]uint32{cpu.BACKDROP_WG, 1, 1},
		Bindings:      []BindType{Uniform, Buffer},
		CPU:           cpu.Backdrop,
	},
	Binning: ComputeShader{
		Name:          "binning",
		WorkgroupSize: [3]uint32{cpu.N_TILE, 1, 1},
		Bindings:      []BindType{Uniform, Buffer},
		CPU:           cpu.Binning,
	},
	Coarse: ComputeShader{
		Name:          "coarse",
		WorkgroupSize: [3]uint32{cpu.N_TILE, 1, 1},
		Bindings:      []BindType{Uniform, Buffer},
		CPU:           cpu.Coarse,
	},
	Kernel4: ComputeShader{
		Name:          "kernel4",
		WorkgroupSize: [3]uint32{cpu.FINE_LANES_X, cpu.FINE_LANES_Y, 1},
		Bindings:      []BindType{Uniform, Buffer, Image, ImageArrayRead},
		CPU:           cpu.Kernel4,
	},
}
