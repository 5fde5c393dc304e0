// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"math"
	"structs"
)

// CmdTag is the tag of a command in a per-tile command list.
type CmdTag uint32

const (
	CmdEnd       CmdTag = 0
	CmdFill      CmdTag = 1
	CmdStroke    CmdTag = 2
	CmdSolid     CmdTag = 3
	CmdAlpha     CmdTag = 4
	CmdColor     CmdTag = 5
	CmdImage     CmdTag = 6
	CmdBeginClip CmdTag = 7
	CmdEndClip   CmdTag = 8
	CmdJump      CmdTag = 9
)

var cmdTagNames = [...]string{
	CmdEnd:       "End",
	CmdFill:      "Fill",
	CmdStroke:    "Stroke",
	CmdSolid:     "Solid",
	CmdAlpha:     "Alpha",
	CmdColor:     "Color",
	CmdImage:     "Image",
	CmdBeginClip: "BeginClip",
	CmdEndClip:   "EndClip",
	CmdJump:      "Jump",
}

func (tag CmdTag) String() string {
	if int(tag) < len(cmdTagNames) {
		return cmdTagNames[tag]
	}
	return fmt.Sprintf("CmdTag(%d)", uint32(tag))
}

const CmdSize = 12

// Cmd is one command of a per-tile command list.
//
//	Fill    tile_seg_ref backdrop
//	Stroke  tile_seg_ref half_width
//	Alpha   alpha
//	Color   rgba
//	Image   index offset
//	Jump    new_ref
type Cmd struct {
	_ structs.HostLayout

	Tag     CmdTag
	Payload [2]uint32
}

func CmdFillOf(tileSeg uint32, backdrop int32) Cmd {
	return Cmd{Tag: CmdFill, Payload: [2]uint32{tileSeg, uint32(backdrop)}}
}

func CmdStrokeOf(tileSeg uint32, halfWidth float32) Cmd {
	return Cmd{Tag: CmdStroke, Payload: [2]uint32{tileSeg, math.Float32bits(halfWidth)}}
}

func CmdAlphaOf(alpha float32) Cmd {
	return Cmd{Tag: CmdAlpha, Payload: [2]uint32{math.Float32bits(alpha)}}
}

func CmdColorOf(rgba uint32) Cmd {
	return Cmd{Tag: CmdColor, Payload: [2]uint32{rgba}}
}

func CmdImageOf(index, offset uint32) Cmd {
	return Cmd{Tag: CmdImage, Payload: [2]uint32{index, offset}}
}

func CmdJumpOf(ref uint32) Cmd {
	return Cmd{Tag: CmdJump, Payload: [2]uint32{ref}}
}

func (c *Cmd) TileSeg() uint32    { return c.Payload[0] }
func (c *Cmd) Backdrop() int32    { return int32(c.Payload[1]) }
func (c *Cmd) HalfWidth() float32 { return math.Float32frombits(c.Payload[1]) }
func (c *Cmd) Alpha() float32     { return math.Float32frombits(c.Payload[0]) }
func (c *Cmd) RGBA() uint32       { return c.Payload[0] }
func (c *Cmd) Index() uint32      { return c.Payload[0] }
func (c *Cmd) Offset() uint32     { return c.Payload[1] }
func (c *Cmd) JumpTarget() uint32 { return c.Payload[0] }
