// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/curve"
	"honnef.co/go/tessera/jmath"
)

func tags(enc *Encoding) []ElementTag {
	out := make([]ElementTag, len(enc.Elements))
	for i := range enc.Elements {
		out[i] = enc.Elements[i].Tag
	}
	return out
}

func rectPath(x0, y0, x1, y1 float64) curve.BezPath {
	var p curve.BezPath
	p.MoveTo(curve.Point{X: x0, Y: y0})
	p.LineTo(curve.Point{X: x1, Y: y0})
	p.LineTo(curve.Point{X: x1, Y: y1})
	p.LineTo(curve.Point{X: x0, Y: y1})
	return p
}

func sizeof[T any](v T) uintptr { return unsafe.Sizeof(v) }

func TestElementSize(t *testing.T) {
	var el Element
	assert.Equal(t, uintptr(ElementSize), sizeof(el))
	var st State
	assert.Equal(t, uintptr(StateSize), sizeof(st))
}

func TestScenarioState(t *testing.T) {
	var enc Encoding
	enc.Transform(jmath.Translate(10, 10))
	enc.Line([2]float32{0, 0}, [2]float32{5, 5})
	enc.SetFillMode(FillModeNonzero)
	enc.FillColor(0xFF0000FF)

	assert.Equal(t, []ElementTag{ElementTransform, ElementLine, ElementSetFillMode, ElementFillColor}, tags(&enc))
	st := enc.State()
	assert.Equal(t, [4]float32{10, 10, 15, 15}, st.BBox)
	assert.Equal(t, uint32(1), enc.NumPaths)
	assert.Equal(t, uint32(1), enc.NumPathSegs)
	assert.Equal(t, uint32(1), enc.NumTransforms)
}

func TestFillPathIsClosed(t *testing.T) {
	var enc Encoding
	enc.Path(rectPath(0, 0, 10, 20))
	enc.FillColor(0xFFFFFFFF)

	require.Equal(t, []ElementTag{ElementLine, ElementLine, ElementLine, ElementLine, ElementFillColor}, tags(&enc))
	last := enc.Elements[3]
	assert.Equal(t, [2]float32{0, 20}, last.Point(0))
	assert.Equal(t, [2]float32{0, 0}, last.Point(1))
	assert.Equal(t, [4]float32{0, 0, 10, 20}, enc.State().BBox)
}

func TestStrokePathIsOpen(t *testing.T) {
	var enc Encoding
	enc.SetFillMode(FillModeStroke)
	enc.SetLineWidth(2)
	enc.Path(rectPath(0, 0, 10, 20))
	enc.FillColor(0xFFFFFFFF)

	assert.Equal(t, []ElementTag{ElementSetFillMode, ElementSetLineWidth, ElementLine, ElementLine, ElementLine, ElementFillColor}, tags(&enc))
	st := enc.State()
	assert.Equal(t, [4]float32{-1, -1, 11, 21}, st.StrokeBBox())
	assert.Equal(t, float32(2), st.StrokeLineWidth())
}

func TestDegenerateSegmentsAreDropped(t *testing.T) {
	var enc Encoding
	enc.MoveTo([2]float32{1, 1})
	enc.LineTo([2]float32{1, 1})
	enc.QuadTo([2]float32{1, 1}, [2]float32{1, 1})
	enc.CubicTo([2]float32{1, 1}, [2]float32{1, 1}, [2]float32{1, 1})
	enc.FillColor(0xFF)
	assert.Equal(t, []ElementTag{ElementFillColor}, tags(&enc))
}

func TestClipBBoxIsPatched(t *testing.T) {
	var enc Encoding
	enc.Path(rectPath(0, 0, 10, 10))
	enc.BeginClip()
	begin := len(enc.Elements) - 1
	enc.Path(rectPath(50, 50, 60, 60))
	enc.FillColor(0xFF0000FF)
	enc.EndClip()

	want := [4]float32{-1, -1, 61, 61}
	require.Equal(t, ElementBeginClip, enc.Elements[begin].Tag)
	assert.Equal(t, want, enc.Elements[begin].BBox())
	end := enc.Elements[len(enc.Elements)-1]
	require.Equal(t, ElementEndClip, end.Tag)
	assert.Equal(t, want, end.BBox())
	assert.Equal(t, 0, enc.OpenClips())
	// BeginClip, FillColor and EndClip are paths.
	assert.Equal(t, uint32(3), enc.NumPaths)
}

func TestMaxClipDepth(t *testing.T) {
	var enc Encoding
	assert.Equal(t, 0, enc.MaxClipDepth())
	for range 3 {
		enc.Path(rectPath(0, 0, 10, 10))
		enc.BeginClip()
	}
	for range 3 {
		enc.EndClip()
	}
	enc.Path(rectPath(0, 0, 10, 10))
	enc.BeginClip()
	enc.EndClip()
	assert.Equal(t, 3, enc.MaxClipDepth())
	assert.Equal(t, 0, enc.OpenClips())

	enc.Reset()
	assert.Equal(t, 0, enc.MaxClipDepth())
}

func TestNestedClipExtendsParent(t *testing.T) {
	var enc Encoding
	enc.Path(rectPath(0, 0, 10, 10))
	enc.BeginClip()
	outer := len(enc.Elements) - 1
	enc.Path(rectPath(20, 20, 30, 30))
	enc.BeginClip()
	enc.Path(rectPath(100, 0, 110, 10))
	enc.FillColor(0xFF)
	enc.EndClip()
	enc.EndClip()

	// The inner union is (19,-1)-(111,31). The outer clip adds its own path
	// and pads once more.
	assert.Equal(t, [4]float32{-1, -2, 112, 32}, enc.Elements[outer].BBox())
}

func TestEndClipWithoutBeginClip(t *testing.T) {
	var enc Encoding
	enc.EndClip()
	assert.True(t, enc.IsEmpty())
}

func TestClipUnderTransform(t *testing.T) {
	var enc Encoding
	enc.Transform(jmath.Scale(2, 2))
	enc.Path(rectPath(0, 0, 10, 10))
	enc.BeginClip()
	enc.EndClip()
	end := enc.Elements[len(enc.Elements)-1]
	assert.Equal(t, [4]float32{-1, -1, 21, 21}, end.BBox())
}

func TestAppend(t *testing.T) {
	var inner Encoding
	inner.Path(rectPath(0, 0, 10, 10))
	inner.BeginClip()
	inner.Path(rectPath(0, 0, 5, 5))
	inner.FillColor(0xFF)
	inner.EndClip()

	var enc Encoding
	enc.Transform(jmath.Translate(100, 0))
	enc.Append(&inner)

	assert.Equal(t, uint32(3), enc.NumPaths)
	assert.Equal(t, uint32(8), enc.NumPathSegs)
	end := enc.Elements[len(enc.Elements)-1]
	assert.Equal(t, [4]float32{99, -1, 111, 11}, end.BBox())

	enc.Reset()
	assert.True(t, enc.IsEmpty())
	assert.Equal(t, uint32(0), enc.NumPaths)
	assert.Equal(t, IdentityState, enc.State())
}

func TestPackOffset(t *testing.T) {
	x, y := UnpackOffset(PackOffset(-3, 1200))
	assert.Equal(t, int16(-3), x)
	assert.Equal(t, int16(1200), y)
}
