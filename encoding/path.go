// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"iter"
	"slices"

	"honnef.co/go/curve"
)

// Line encodes a line segment.
func (enc *Encoding) Line(p0, p1 [2]float32) {
	el := Element{Tag: ElementLine}
	el.setPoints(p0, p1)
	enc.push(el)
}

// Quad encodes a quadratic Bézier segment.
func (enc *Encoding) Quad(p0, p1, p2 [2]float32) {
	el := Element{Tag: ElementQuad}
	el.setPoints(p0, p1, p2)
	enc.push(el)
}

// Cubic encodes a cubic Bézier segment.
func (enc *Encoding) Cubic(p0, p1, p2, p3 [2]float32) {
	el := Element{Tag: ElementCubic}
	el.setPoints(p0, p1, p2, p3)
	enc.push(el)
}

type pathState struct {
	first [2]float32
	last  [2]float32
	// Whether first and last are valid.
	started bool
	// Whether the subpath has at least one segment.
	nonempty bool
}

// MoveTo starts a new subpath. In fill mode, the previous subpath is closed.
func (enc *Encoding) MoveTo(p [2]float32) {
	if enc.state.FillMode() == FillModeNonzero {
		enc.closePath()
	}
	enc.path = pathState{first: p, last: p, started: true}
}

func (enc *Encoding) LineTo(p [2]float32) {
	if !enc.path.started {
		// An initial segment acts as a move.
		enc.MoveTo(p)
		return
	}
	if p == enc.path.last {
		return
	}
	enc.Line(enc.path.last, p)
	enc.path.last = p
	enc.path.nonempty = true
}

func (enc *Encoding) QuadTo(p1, p2 [2]float32) {
	if !enc.path.started {
		enc.MoveTo(p2)
		return
	}
	p0 := enc.path.last
	if p0 == p1 && p1 == p2 {
		return
	}
	enc.Quad(p0, p1, p2)
	enc.path.last = p2
	enc.path.nonempty = true
}

func (enc *Encoding) CubicTo(p1, p2, p3 [2]float32) {
	if !enc.path.started {
		enc.MoveTo(p3)
		return
	}
	p0 := enc.path.last
	if p0 == p1 && p1 == p2 && p2 == p3 {
		return
	}
	enc.Cubic(p0, p1, p2, p3)
	enc.path.last = p3
	enc.path.nonempty = true
}

// ClosePath closes the current subpath with a line back to its start.
// Segments that follow continue from the start.
func (enc *Encoding) ClosePath() {
	enc.closeSubpath()
}

func (enc *Encoding) closeSubpath() {
	if enc.path.nonempty && enc.path.last != enc.path.first {
		enc.Line(enc.path.last, enc.path.first)
	}
	enc.path.last = enc.path.first
	enc.path.nonempty = false
}

// closePath implicitly closes an open subpath before it is consumed by a
// fill.
func (enc *Encoding) closePath() {
	if enc.state.FillMode() == FillModeNonzero {
		enc.closeSubpath()
	}
	enc.path = pathState{}
}

// PathElements encodes the segments of a path.
func (enc *Encoding) PathElements(path iter.Seq[curve.PathElement]) {
	for el := range path {
		switch el.Kind {
		case curve.MoveToKind:
			enc.MoveTo(pt(el.P0))
		case curve.LineToKind:
			enc.LineTo(pt(el.P0))
		case curve.QuadToKind:
			enc.QuadTo(pt(el.P0), pt(el.P1))
		case curve.CubicToKind:
			enc.CubicTo(pt(el.P0), pt(el.P1), pt(el.P2))
		case curve.ClosePathKind:
			enc.ClosePath()
		}
	}
}

// Path encodes the segments of p.
func (enc *Encoding) Path(p curve.BezPath) {
	enc.PathElements(slices.Values(p))
}

func pt(p curve.Point) [2]float32 {
	return [2]float32{float32(p.X), float32(p.Y)}
}
