// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"structs"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/mem"
)

const (
	TileWidth  = 32
	TileHeight = 32
	// Pixels per tile.
	TilePixels = TileWidth * TileHeight

	// A bin covers NTileX by NTileY tiles.
	NTileX = 16
	NTileY = 8
	NTile  = NTileX * NTileY
	// The binning bitmap is sliced into NSlice words of 32 bits.
	NSlice = NTile / 32

	// The element scan uses workgroups of ScanLanes lanes, each folding a
	// row of ScanRows elements.
	ScanLanes     = 32
	ScanRows      = 4
	PartitionSize = ScanLanes * ScanRows

	// Each tile's command list starts with this many bytes.
	PtclInitialAlloc = 1024

	// Tolerance for flattening curves, in pixels.
	FlattenTolerance = 0.25

	// Maximum nesting of clips in a single tile.
	MaxClipDepth = 64
)

type AnnoTag uint32

const (
	AnnoNop       AnnoTag = 0
	AnnoColor     AnnoTag = 1
	AnnoImage     AnnoTag = 2
	AnnoBeginClip AnnoTag = 3
	AnnoEndClip   AnnoTag = 4
)

// Annotated is a path's paint, written by the element scan. The tag word
// holds the tag in the low 16 bits and the fill mode above.
//
// For AnnoColor, Payload[0] is the packed color. For AnnoImage, it is the
// image index followed by the packed offset. Clips have no payload.
type Annotated struct {
	_ structs.HostLayout

	TagWord   uint32
	BBox      [4]float32
	LineWidth float32
	Payload   [2]uint32
}

func NewAnnotated(tag AnnoTag, fillMode encoding.FillMode) Annotated {
	return Annotated{TagWord: uint32(tag) | uint32(fillMode)<<16}
}

func (a *Annotated) Tag() AnnoTag                { return AnnoTag(a.TagWord & 0xFFFF) }
func (a *Annotated) FillMode() encoding.FillMode { return encoding.FillMode(a.TagWord >> 16) }

const PathSegCubic = 1

// PathSeg is a cubic Bézier segment in the coordinate space of transform
// TransIx. Lines and quadratic segments are stored in cubic form.
type PathSeg struct {
	_ structs.HostLayout

	TagWord uint32
	P0      [2]float32
	P1      [2]float32
	P2      [2]float32
	P3      [2]float32
	PathIx  uint32
	// 1-based index into the transform segments; 0 is the identity.
	TransIx uint32
	// The stroke's half-width along each axis, or zero for fills.
	Stroke [2]float32
}

func (seg *PathSeg) FillMode() encoding.FillMode { return encoding.FillMode(seg.TagWord >> 16) }

// TransformSeg is the cumulative transform at a Transform element.
type TransformSeg struct {
	_ structs.HostLayout

	Mat       [4]float32
	Translate [2]float32
}

// Path is the tile rectangle of an annotated path. The rectangle is packed
// as x0 | y0<<16 and x1 | y1<<16, in tiles.
type Path struct {
	_ structs.HostLayout

	BBox  [2]uint32
	Tiles mem.Alloc
}

func PackTileBBox(x0, y0, x1, y1 uint32) [2]uint32 {
	return [2]uint32{x0 | y0<<16, x1 | y1<<16}
}

func (p *Path) TileBBox() (x0, y0, x1, y1 uint32) {
	return p.BBox[0] & 0xFFFF, p.BBox[0] >> 16, p.BBox[1] & 0xFFFF, p.BBox[1] >> 16
}

// Tile is a tile of a path. Tile is the head of the tile's segment list, or
// zero.
type Tile struct {
	_ structs.HostLayout

	Tile     uint32
	Backdrop int32
}

// TileSeg is a line segment clipped to a tile row. YEdge is the y
// coordinate at which the segment crosses the tile's left edge, or 1e9.
type TileSeg struct {
	_ structs.HostLayout

	Origin [2]float32
	Vector [2]float32
	YEdge  float32
	Next   uint32
}

type BinHeader struct {
	_ structs.HostLayout

	NElements uint32
	Chunk     mem.Alloc
}

// BinInstance is the index of an annotated path.
type BinInstance struct {
	_ structs.HostLayout

	ElementIx uint32
}

const (
	AnnotatedSize    = 32
	PathSegSize      = 52
	TransformSegSize = 24
	PathSize         = 12
	TileSize         = 8
	TileSegSize      = 24
	BinHeaderSize    = 8
	BinInstanceSize  = 4
)

// NoYEdge marks a tile segment that does not cross the tile's left edge.
const NoYEdge = 1e9
