// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package encoding builds the scene element stream consumed by the
// rasterizer.
package encoding

import (
	"honnef.co/go/tessera/jmath"
)

// Encoding is a scene, encoded as a flat element stream.
//
// Transforms are relative: each Transform element is concatenated onto the
// current transform. Path segments are in the coordinate space of the current
// transform. A paint element (FillColor, FillImage) or BeginClip consumes the
// segments encoded since the previous one.
type Encoding struct {
	Elements []Element

	NumPaths      uint32
	NumPathSegs   uint32
	NumTransforms uint32

	// The sequential fold of all elements, used for clip bounding boxes.
	state State
	clips []openClip
	// Deepest clip nesting seen so far.
	maxClips int
	path     pathState
}

type openClip struct {
	begin int
	bbox  [4]float32
}

func (enc *Encoding) IsEmpty() bool {
	return len(enc.Elements) == 0
}

func (enc *Encoding) Reset() {
	enc.Elements = enc.Elements[:0]
	enc.NumPaths = 0
	enc.NumPathSegs = 0
	enc.NumTransforms = 0
	enc.state = IdentityState
	enc.clips = enc.clips[:0]
	enc.maxClips = 0
	enc.path = pathState{}
}

// Append appends the elements of other. other is interpreted relative to the
// current transform, line width and fill mode of enc. Clips in other are
// re-resolved against enc.
func (enc *Encoding) Append(other *Encoding) {
	for i := range other.Elements {
		el := other.Elements[i]
		switch el.Tag {
		case ElementBeginClip:
			enc.BeginClip()
		case ElementEndClip:
			enc.EndClip()
		case ElementFillColor, ElementFillImage:
			enc.paint(el)
		default:
			enc.push(el)
		}
	}
}

// OpenClips returns the number of BeginClip elements without a matching
// EndClip.
func (enc *Encoding) OpenClips() int {
	return len(enc.clips)
}

// MaxClipDepth returns the deepest nesting of clips in the encoding.
func (enc *Encoding) MaxClipDepth() int {
	return enc.maxClips
}

// State returns the inclusive state of the last element.
func (enc *Encoding) State() State {
	if len(enc.Elements) == 0 {
		return IdentityState
	}
	return enc.state
}

func (enc *Encoding) push(el Element) {
	if len(enc.Elements) == 0 {
		enc.state = IdentityState
	}
	enc.Elements = append(enc.Elements, el)
	enc.state = enc.state.Combine(MapElement(&el))
	enc.NumPaths = enc.state.PathCount
	enc.NumPathSegs = enc.state.PathSegCount
	enc.NumTransforms = enc.state.TransCount
}

func (enc *Encoding) SetLineWidth(width float32) {
	el := Element{Tag: ElementSetLineWidth}
	el.setFloat(0, width)
	enc.push(el)
}

// Transform concatenates t onto the current transform.
func (enc *Encoding) Transform(t jmath.Transform) {
	el := Element{Tag: ElementTransform}
	for i, f := range t.Matrix {
		el.setFloat(i, f)
	}
	el.setFloat(4, t.Translation[0])
	el.setFloat(5, t.Translation[1])
	enc.push(el)
}

func (enc *Encoding) SetFillMode(mode FillMode) {
	enc.push(Element{Tag: ElementSetFillMode, Payload: [8]uint32{uint32(mode)}})
}

// BeginClip starts a clip group. The segments encoded since the last paint
// form the clip path. Every BeginClip must be matched by an EndClip.
func (enc *Encoding) BeginClip() {
	enc.closePath()
	enc.push(Element{Tag: ElementBeginClip})
	st := enc.state
	enc.clips = append(enc.clips, openClip{
		begin: len(enc.Elements) - 1,
		bbox:  st.StrokeBBox(),
	})
	enc.maxClips = max(enc.maxClips, len(enc.clips))
	enc.Elements[len(enc.Elements)-1].setBBox(st.StrokeBBox())
}

// EndClip ends the innermost clip group. Both the BeginClip and the EndClip
// record the union of the clip path's and the content's bounding boxes, so
// every tile touched by the content also sees the clip. EndClip without an
// open clip does nothing.
func (enc *Encoding) EndClip() {
	if len(enc.clips) == 0 {
		return
	}
	enc.closePath()
	clip := enc.clips[len(enc.clips)-1]
	enc.clips = enc.clips[:len(enc.clips)-1]

	bbox := clip.bbox
	if !bboxEmpty(bbox) {
		// Rounding in the parallel scan may differ from the sequential fold.
		bbox = [4]float32{bbox[0] - 1, bbox[1] - 1, bbox[2] + 1, bbox[3] + 1}
	}
	enc.Elements[clip.begin].setBBox(bbox)
	el := Element{Tag: ElementEndClip}
	el.setBBox(bbox)
	enc.push(el)
	enc.extendClips(bbox)
}

func (enc *Encoding) paint(el Element) {
	enc.closePath()
	enc.push(el)
	enc.extendClips(enc.state.StrokeBBox())
}

func (enc *Encoding) extendClips(bbox [4]float32) {
	if len(enc.clips) == 0 {
		return
	}
	c := &enc.clips[len(enc.clips)-1]
	c.bbox = unionBBox(c.bbox, bbox)
}

func unionBBox(a, b [4]float32) [4]float32 {
	switch {
	case bboxEmpty(a):
		return b
	case bboxEmpty(b):
		return a
	default:
		return [4]float32{min(a[0], b[0]), min(a[1], b[1]), max(a[2], b[2]), max(a[3], b[3])}
	}
}
