// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"sync/atomic"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/renderer"
	"honnef.co/go/safeish"
)

// Partition status flags.
const (
	FLAG_NOT_READY       = 0
	FLAG_AGGREGATE_READY = 1
	FLAG_PREFIX_READY    = 2
)

// scanGeometry is the shape of an element scan workgroup.
type scanGeometry struct {
	lanes uint32
	rows  uint32
}

func (g scanGeometry) partitionSize() uint32 { return g.lanes * g.rows }

var defaultScanGeometry = scanGeometry{renderer.ScanLanes, renderer.ScanRows}

// scanHook, if not nil, is called after a workgroup claimed partition part
// and before it publishes the partition's aggregate.
var scanHook func(part uint32)

// partitionStatus is the layout of one partition in the scan state buffer.
type partitionStatus struct {
	Flag      uint32
	Aggregate encoding.State
	Prefix    encoding.State
}

// scanState is a view of the scan state buffer: a partition counter,
// followed by one partitionStatus per partition.
type scanState struct {
	words []uint32
	buf   []byte
}

func newScanState(buf []byte) scanState {
	return scanState{
		words: safeish.SliceCast[[]uint32](buf),
		buf:   buf,
	}
}

func (s scanState) claim() uint32 {
	return atomic.AddUint32(&s.words[0], 1) - 1
}

func (s scanState) partition(part uint32) *partitionStatus {
	off := 4 + part*(4+2*encoding.StateSize)
	return safeish.Cast[*partitionStatus](&s.buf[off])
}

// The payload is written before the flag is stored, and read after the flag
// is loaded.
func (s scanState) flag(part uint32) uint32 {
	return atomic.LoadUint32(&s.partition(part).Flag)
}

func (s scanState) publish(part uint32, flag uint32) {
	atomic.StoreUint32(&s.partition(part).Flag, flag)
}

// Elements is the element scan. Each workgroup claims the next partition of
// the scene, computes the inclusive State of each of its elements and writes
// the path segments, annotated records and transform segments derived from
// them.
func Elements(_ [3]uint32, resources []CPUBinding) error {
	elements(defaultScanGeometry, resources)
	return nil
}

func elements(geom scanGeometry, resources []CPUBinding) {
	config := config(resources[0])
	scene := safeish.SliceCast[[]encoding.Element](resources[1].(CPUBuffer))
	state := newScanState(resources[2].(CPUBuffer))
	memory := memory(resources[3])

	n := min(config.NElements, uint32(len(scene)))
	part := state.claim()
	partSize := geom.partitionSize()
	mapElement := func(ix uint32) encoding.State {
		if ix >= n {
			return encoding.IdentityState
		}
		return encoding.MapElement(&scene[ix])
	}

	// Each lane folds its row.
	local := make([]encoding.State, geom.lanes)
	for lane := range geom.lanes {
		base := part*partSize + lane*geom.rows
		agg := mapElement(base)
		for row := uint32(1); row < geom.rows; row++ {
			agg = agg.Combine(mapElement(base + row))
		}
		local[lane] = agg
	}

	// Inclusive scan of the lanes' aggregates. Every step reads the values
	// of the previous step.
	prev := make([]encoding.State, geom.lanes)
	for i := uint32(1); i < geom.lanes; i <<= 1 {
		copy(prev, local)
		for lane := i; lane < geom.lanes; lane++ {
			local[lane] = prev[lane-i].Combine(prev[lane])
		}
	}
	agg := local[geom.lanes-1]

	if scanHook != nil {
		scanHook(part)
	}

	status := state.partition(part)
	status.Aggregate = agg
	if part == 0 {
		status.Prefix = agg
		state.publish(part, FLAG_PREFIX_READY)
	} else {
		state.publish(part, FLAG_AGGREGATE_READY)
	}

	exclusive := encoding.IdentityState
	if part != 0 {
		look := part - 1
		for {
			flag := state.flag(look)
			if flag == FLAG_PREFIX_READY {
				exclusive = state.partition(look).Prefix.Combine(exclusive)
				break
			}
			var a encoding.State
			if flag == FLAG_AGGREGATE_READY {
				a = state.partition(look).Aggregate
			} else {
				// The partition hasn't published anything. Derive its
				// aggregate from the scene instead of waiting for it.
				a = encoding.IdentityState
				for ix := look * partSize; ix < (look+1)*partSize; ix++ {
					a = a.Combine(mapElement(ix))
				}
			}
			exclusive = a.Combine(exclusive)
			if look == 0 {
				// Partition 0's aggregate is its prefix.
				break
			}
			look--
		}
		status.Prefix = exclusive.Combine(agg)
		state.publish(part, FLAG_PREFIX_READY)
	}

	if memory.Failed() {
		return
	}
	for lane := range geom.lanes {
		st := exclusive
		if lane > 0 {
			st = st.Combine(local[lane-1])
		}
		base := part*partSize + lane*geom.rows
		for row := range geom.rows {
			ix := base + row
			if ix >= n {
				return
			}
			el := &scene[ix]
			st = st.Combine(encoding.MapElement(el))
			writeElement(memory, config, el, &st)
		}
	}
}

// writeElement writes the outputs of el, whose inclusive state is st.
// Out-of-range writes are dropped and set the memory error.
func writeElement(memory *mem.Memory, config *renderer.Config, el *encoding.Element, st *encoding.State) {
	fillMode := st.FillMode()
	switch el.Tag {
	case encoding.ElementLine, encoding.ElementQuad, encoding.ElementCubic:
		seg := renderer.PathSeg{
			TagWord: renderer.PathSegCubic | uint32(fillMode)<<16,
			PathIx:  st.PathCount,
			TransIx: st.TransCount,
		}
		p0 := Vec2FromArray(el.Point(0))
		var p1, p2, p3 Vec2
		switch el.Tag {
		case encoding.ElementLine:
			q1 := Vec2FromArray(el.Point(1))
			p1 = p0.mix(q1, 1.0/3.0)
			p2 = q1.mix(p0, 1.0/3.0)
			p3 = q1
		case encoding.ElementQuad:
			q1 := Vec2FromArray(el.Point(1))
			q2 := Vec2FromArray(el.Point(2))
			p1 = q1.mix(p0, 1.0/3.0)
			p2 = q1.mix(q2, 1.0/3.0)
			p3 = q2
		case encoding.ElementCubic:
			p1 = Vec2FromArray(el.Point(1))
			p2 = Vec2FromArray(el.Point(2))
			p3 = Vec2FromArray(el.Point(3))
		}
		seg.P0 = p0.to_array()
		seg.P1 = p1.to_array()
		seg.P2 = p2.to_array()
		seg.P3 = p3.to_array()
		if fillMode == encoding.FillModeStroke {
			seg.Stroke = st.HalfWidth()
		}
		mem.Store(memory, config.PathSegAlloc.Offset+(st.PathSegCount-1)*renderer.PathSegSize, seg)

	case encoding.ElementFillColor, encoding.ElementFillImage:
		anno := renderer.NewAnnotated(renderer.AnnoColor, fillMode)
		if el.Tag == encoding.ElementFillImage {
			anno = renderer.NewAnnotated(renderer.AnnoImage, fillMode)
			anno.Payload = [2]uint32{el.Word(0), el.Word(1)}
		} else {
			anno.Payload[0] = el.Word(0)
		}
		anno.BBox = st.StrokeBBox()
		anno.LineWidth = st.StrokeLineWidth()
		writeAnnotated(memory, config, st, anno)

	case encoding.ElementBeginClip:
		anno := renderer.NewAnnotated(renderer.AnnoBeginClip, fillMode)
		anno.BBox = el.BBox()
		anno.LineWidth = st.StrokeLineWidth()
		writeAnnotated(memory, config, st, anno)

	case encoding.ElementEndClip:
		anno := renderer.NewAnnotated(renderer.AnnoEndClip, fillMode)
		anno.BBox = el.BBox()
		writeAnnotated(memory, config, st, anno)

	case encoding.ElementTransform:
		seg := renderer.TransformSeg{
			Mat:       st.Mat,
			Translate: st.Translate,
		}
		mem.Store(memory, config.TransAlloc.Offset+(st.TransCount-1)*renderer.TransformSegSize, seg)
	}
}

func writeAnnotated(memory *mem.Memory, config *renderer.Config, st *encoding.State, anno renderer.Annotated) {
	mem.Store(memory, config.AnnoAlloc.Offset+(st.PathCount-1)*renderer.AnnotatedSize, anno)
}
