// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"math"
	"structs"
)

type ElementTag uint32

const (
	ElementNop          ElementTag = 0
	ElementLine         ElementTag = 1
	ElementQuad         ElementTag = 2
	ElementCubic        ElementTag = 3
	ElementFillColor    ElementTag = 4
	ElementSetLineWidth ElementTag = 5
	ElementTransform    ElementTag = 6
	ElementBeginClip    ElementTag = 7
	ElementEndClip      ElementTag = 8
	ElementFillImage    ElementTag = 9
	ElementSetFillMode  ElementTag = 10
)

// ElementSize is the size of an encoded element in bytes.
const ElementSize = 36

type FillMode uint32

const (
	FillModeNonzero FillMode = 0
	FillModeStroke  FillMode = 1
)

// Element is one scene element: a tag word followed by eight payload words.
//
//	Line          p0 p1
//	Quad          p0 p1 p2
//	Cubic         p0 p1 p2 p3
//	FillColor     rgba
//	SetLineWidth  width
//	Transform     mat[4] translate[2]
//	BeginClip     bbox[4]
//	EndClip       bbox[4]
//	FillImage     index offset
//	SetFillMode   mode
type Element struct {
	_ structs.HostLayout

	Tag     ElementTag
	Payload [8]uint32
}

func (el *Element) Word(i int) uint32 { return el.Payload[i] }

func (el *Element) Float(i int) float32 { return math.Float32frombits(el.Payload[i]) }

// Point returns the i-th point of a Line, Quad or Cubic.
func (el *Element) Point(i int) [2]float32 {
	return [2]float32{el.Float(2 * i), el.Float(2*i + 1)}
}

// BBox returns the bounding box of a BeginClip or EndClip.
func (el *Element) BBox() [4]float32 {
	return [4]float32{el.Float(0), el.Float(1), el.Float(2), el.Float(3)}
}

func (el *Element) setFloat(i int, f float32) { el.Payload[i] = math.Float32bits(f) }

func (el *Element) setPoints(pts ...[2]float32) {
	for i, p := range pts {
		el.setFloat(2*i, p[0])
		el.setFloat(2*i+1, p[1])
	}
}

func (el *Element) setBBox(bbox [4]float32) {
	for i, f := range bbox {
		el.setFloat(i, f)
	}
}

// PackOffset packs an image offset into one word, x in the low half.
func PackOffset(x, y int16) uint32 {
	return uint32(uint16(x)) | uint32(uint16(y))<<16
}

// UnpackOffset is the inverse of PackOffset.
func UnpackOffset(v uint32) (x, y int16) {
	return int16(uint16(v)), int16(uint16(v >> 16))
}
