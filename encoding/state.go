// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"structs"

	"honnef.co/go/tessera/jmath"
)

const (
	FlagSetLineWidth uint32 = 1
	FlagSetBBox      uint32 = 2
	FlagResetBBox    uint32 = 4
	FlagSetFillMode  uint32 = 8

	// The fill mode is stored in the flags word.
	LgFillMode   = 4
	FillModeMask = 1 << LgFillMode
)

// StateSize is the size of an encoded State in bytes.
const StateSize = 60

// State is the monoid computed by the element scan. The inclusive
// combination of all states up to an element describes the element's
// cumulative transform, the bounding box of the current path, the current
// line width and fill mode, and the number of paths, path segments and
// transforms that precede it, itself included.
//
// The bounding box is (x0, y0, x1, y1). A box with x1 <= x0 and y1 <= y0 is
// empty. FlagResetBBox marks a state ending in a paint; the box of the paint's
// path is still visible, but the next segment starts a new box. FlagSetBBox
// marks a state containing such a reset before its last element.
//
// Bounding boxes combine exactly under axis-aligned transforms. Under
// rotation and shear the box of a transformed box is an over-approximation.
type State struct {
	_ structs.HostLayout

	BBox         [4]float32
	Mat          [4]float32
	Translate    [2]float32
	LineWidth    float32
	Flags        uint32
	PathCount    uint32
	PathSegCount uint32
	TransCount   uint32
}

// IdentityState is the identity of Combine.
var IdentityState = State{
	Mat:       [4]float32{1, 0, 0, 1},
	LineWidth: 1,
}

// MapElement returns the state contributed by a single element.
func MapElement(el *Element) State {
	c := IdentityState
	switch el.Tag {
	case ElementLine, ElementQuad, ElementCubic:
		n := 2
		switch el.Tag {
		case ElementQuad:
			n = 3
		case ElementCubic:
			n = 4
		}
		p := el.Point(0)
		c.BBox = [4]float32{p[0], p[1], p[0], p[1]}
		for i := 1; i < n; i++ {
			p := el.Point(i)
			c.BBox[0] = min(c.BBox[0], p[0])
			c.BBox[1] = min(c.BBox[1], p[1])
			c.BBox[2] = max(c.BBox[2], p[0])
			c.BBox[3] = max(c.BBox[3], p[1])
		}
		c.PathSegCount = 1
	case ElementFillColor, ElementFillImage, ElementBeginClip:
		c.Flags = FlagResetBBox
		c.PathCount = 1
	case ElementEndClip:
		c.PathCount = 1
	case ElementSetLineWidth:
		c.LineWidth = el.Float(0)
		c.Flags = FlagSetLineWidth
	case ElementTransform:
		c.Mat = [4]float32{el.Float(0), el.Float(1), el.Float(2), el.Float(3)}
		c.Translate = [2]float32{el.Float(4), el.Float(5)}
		c.TransCount = 1
	case ElementSetFillMode:
		c.Flags = FlagSetFillMode | el.Word(0)<<LgFillMode
	}
	return c
}

func bboxEmpty(b [4]float32) bool {
	return b[2] <= b[0] && b[3] <= b[1]
}

// Combine returns a followed by b.
func (a State) Combine(b State) State {
	var c State
	bb := b.BBox
	if !bboxEmpty(bb) {
		m := a.Mat
		bb = [4]float32{
			min(m[0]*b.BBox[0], m[0]*b.BBox[2]) + min(m[2]*b.BBox[1], m[2]*b.BBox[3]) + a.Translate[0],
			min(m[1]*b.BBox[0], m[1]*b.BBox[2]) + min(m[3]*b.BBox[1], m[3]*b.BBox[3]) + a.Translate[1],
			max(m[0]*b.BBox[0], m[0]*b.BBox[2]) + max(m[2]*b.BBox[1], m[2]*b.BBox[3]) + a.Translate[0],
			max(m[1]*b.BBox[0], m[1]*b.BBox[2]) + max(m[3]*b.BBox[1], m[3]*b.BBox[3]) + a.Translate[1],
		}
	}
	// A reset at the end of a, or anywhere inside b, discards a's box.
	if a.Flags&FlagResetBBox != 0 || b.Flags&FlagSetBBox != 0 {
		c.BBox = bb
	} else {
		c.BBox = unionBBox(a.BBox, bb)
	}

	t := a.Transform().Mul(b.Transform())
	c.Mat = t.Matrix
	c.Translate = t.Translation

	if b.Flags&FlagSetLineWidth == 0 {
		c.LineWidth = a.LineWidth
	} else {
		c.LineWidth = b.LineWidth
	}
	c.Flags = (a.Flags & (FlagSetLineWidth | FlagSetBBox | FlagSetFillMode)) | b.Flags
	c.Flags |= (a.Flags & FlagResetBBox) >> 1
	fillMode := a.Flags
	if b.Flags&FlagSetFillMode != 0 {
		fillMode = b.Flags
	}
	c.Flags = c.Flags&^FillModeMask | fillMode&FillModeMask

	c.PathCount = a.PathCount + b.PathCount
	c.PathSegCount = a.PathSegCount + b.PathSegCount
	c.TransCount = a.TransCount + b.TransCount
	return c
}

func (st *State) Transform() jmath.Transform {
	return jmath.Transform{Matrix: st.Mat, Translation: st.Translate}
}

func (st *State) FillMode() FillMode {
	return FillMode(st.Flags&FillModeMask) >> LgFillMode
}

// HalfWidth is the stroke half-width along each axis under the state's
// transform.
func (st *State) HalfWidth() [2]float32 {
	x, y := st.Transform().HalfWidth(st.LineWidth)
	return [2]float32{x, y}
}

// StrokeBBox returns the state's bounding box, inflated by the stroke
// half-width if the fill mode is stroke.
func (st *State) StrokeBBox() [4]float32 {
	if st.FillMode() != FillModeStroke {
		return st.BBox
	}
	lw := st.HalfWidth()
	return [4]float32{st.BBox[0] - lw[0], st.BBox[1] - lw[1], st.BBox[2] + lw[0], st.BBox[3] + lw[1]}
}

// StrokeLineWidth is the line width scaled by the transform, or 0 for fills.
func (st *State) StrokeLineWidth() float32 {
	if st.FillMode() != FillModeStroke {
		return 0
	}
	return st.LineWidth * jmath.Sqrt32(jmath.Abs32(st.Transform().Determinant()))
}
