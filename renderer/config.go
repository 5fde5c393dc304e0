// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"structs"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/jmath"
	"honnef.co/go/tessera/mem"
)

type WorkgroupSize [3]uint32

// Config contains the render configuration shared by all stages. The
// allocations are static regions of the memory arena, computed on the host.
type Config struct {
	_ structs.HostLayout

	// Number of scene elements.
	NElements uint32
	// Number of annotated paths.
	NPaths uint32
	// Number of path segments.
	NPathSeg uint32
	// Number of transform segments.
	NTrans uint32
	// Width of the target in tiles.
	WidthInTiles uint32
	// Height of the target in tiles.
	HeightInTiles uint32

	// Path records, one per annotated path.
	TileAlloc mem.Alloc
	// Bin headers, NTile per binning partition.
	BinAlloc mem.Alloc
	// Per-tile command lists, PtclInitialAlloc bytes per tile.
	PtclAlloc mem.Alloc
	// Path segments.
	PathSegAlloc mem.Alloc
	// Annotated paths.
	AnnoAlloc mem.Alloc
	// Transform segments.
	TransAlloc mem.Alloc
}

func (c *Config) WidthInBins() uint32 {
	return (c.WidthInTiles + NTileX - 1) / NTileX
}

func (c *Config) HeightInBins() uint32 {
	return (c.HeightInTiles + NTileY - 1) / NTileY
}

// NumBinPartitions is the number of binning workgroups.
func (c *Config) NumBinPartitions() uint32 {
	return (c.NPaths + NTile - 1) / NTile
}

type WorkgroupCounts struct {
	Elements   WorkgroupSize
	TileAlloc  WorkgroupSize
	PathCoarse WorkgroupSize
	Backdrop   WorkgroupSize
	Binning    WorkgroupSize
	Coarse     WorkgroupSize
	Kernel4    WorkgroupSize
}

type RenderConfig struct {
	Config          Config
	WorkgroupCounts WorkgroupCounts
	// Size of the statically allocated part of the memory arena.
	StaticSize uint32
	// Size of the element scan's state buffer.
	StateSize uint32
	// Target size in pixels.
	Width, Height uint32
}

// Paths are processed in workgroups of this many lanes by the stages that
// run per annotated path or per segment.
const (
	pathWorkgroupSize    = 128
	pathSegWorkgroupSize = 32
)

// ScanStateSize is the size of the element scan's state buffer for n
// partitions: a partition counter followed by, per partition, a flag, the
// aggregate and the inclusive prefix.
func ScanStateSize(partitions uint32) uint32 {
	return 4 + partitions*(4+2*encoding.StateSize)
}

// NewRenderConfig computes the memory layout and workgroup counts for
// rendering enc to a width by height target.
func NewRenderConfig(enc *encoding.Encoding, width, height uint32) (*RenderConfig, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if depth := enc.MaxClipDepth(); depth > MaxClipDepth {
		return nil, fmt.Errorf("scene nests %d clips, at most %d are supported: %w",
			depth, MaxClipDepth, ErrClipsTooDeep)
	}
	widthInTiles := jmath.AlignUp(width, TileWidth) / TileWidth
	heightInTiles := jmath.AlignUp(height, TileHeight) / TileHeight
	cfg := Config{
		NElements:     uint32(len(enc.Elements)),
		NPaths:        enc.NumPaths,
		NPathSeg:      enc.NumPathSegs,
		NTrans:        enc.NumTransforms,
		WidthInTiles:  widthInTiles,
		HeightInTiles: heightInTiles,
	}
	if bins := cfg.WidthInBins() * cfg.HeightInBins(); bins > NTile {
		return nil, fmt.Errorf("%dx%d target needs %d bins, at most %d are supported: %w",
			width, height, bins, NTile, ErrTargetTooLarge)
	}

	// Offset 0 terminates segment lists, so nothing may be allocated there.
	offset := uint32(4)
	alloc := func(size uint32) mem.Alloc {
		a := mem.Alloc{Offset: offset}
		offset += jmath.AlignUp(size, 4)
		return a
	}
	cfg.AnnoAlloc = alloc(cfg.NPaths * AnnotatedSize)
	cfg.PathSegAlloc = alloc(cfg.NPathSeg * PathSegSize)
	cfg.TransAlloc = alloc(cfg.NTrans * TransformSegSize)
	cfg.TileAlloc = alloc(cfg.NPaths * PathSize)
	cfg.BinAlloc = alloc(cfg.NumBinPartitions() * NTile * BinHeaderSize)
	cfg.PtclAlloc = alloc(widthInTiles * heightInTiles * PtclInitialAlloc)

	partitions := (cfg.NElements + PartitionSize - 1) / PartitionSize
	pathWgs := (cfg.NPaths + pathWorkgroupSize - 1) / pathWorkgroupSize
	return &RenderConfig{
		Config: cfg,
		WorkgroupCounts: WorkgroupCounts{
			Elements:   WorkgroupSize{partitions, 1, 1},
			TileAlloc:  WorkgroupSize{pathWgs, 1, 1},
			PathCoarse: WorkgroupSize{(cfg.NPathSeg + pathSegWorkgroupSize - 1) / pathSegWorkgroupSize, 1, 1},
			Backdrop:   WorkgroupSize{pathWgs, 1, 1},
			Binning:    WorkgroupSize{cfg.NumBinPartitions(), 1, 1},
			Coarse:     WorkgroupSize{cfg.WidthInBins(), cfg.HeightInBins(), 1},
			Kernel4:    WorkgroupSize{widthInTiles, heightInTiles, 1},
		},
		StaticSize: offset,
		StateSize:  ScanStateSize(partitions),
		Width:      width,
		Height:     height,
	}, nil
}
