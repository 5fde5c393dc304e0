// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package profiler records nested wall-clock spans of a render.
package profiler

import (
	"time"
)

type ProfilerGroup interface {
	Start(label string) ProfilerGroup
	End()
}

type nopGroup struct{}

func (nopGroup) Start(string) ProfilerGroup { return nopGroup{} }
func (nopGroup) End()                       {}

// Nop is a ProfilerGroup that records nothing.
var Nop ProfilerGroup = nopGroup{}

// Group is a span of time with nested spans. Groups are not safe for
// concurrent use.
type Group struct {
	Label    string
	CPUStart time.Time
	CPUEnd   time.Time
	Children []*Group

	parent *Group
}

// New starts a top-level group.
func New(label string) *Group {
	return &Group{
		Label:    label,
		CPUStart: time.Now(),
	}
}

func (g *Group) Start(label string) ProfilerGroup {
	return g.Nest(label)
}

func (g *Group) Nest(label string) *Group {
	cg := &Group{
		Label:    label,
		CPUStart: time.Now(),
		parent:   g,
	}
	g.Children = append(g.Children, cg)
	return cg
}

func (g *Group) End() {
	if !g.CPUEnd.IsZero() {
		panic("trying to end same group twice")
	}
	g.CPUEnd = time.Now()
}

// Duration returns the length of the span, or zero if it hasn't ended.
func (g *Group) Duration() time.Duration {
	if g.CPUEnd.IsZero() {
		return 0
	}
	return g.CPUEnd.Sub(g.CPUStart)
}

// Walk calls fn for g and all of its descendants in depth-first order.
func (g *Group) Walk(fn func(depth int, g *Group)) {
	var walk func(depth int, g *Group)
	walk = func(depth int, g *Group) {
		fn(depth, g)
		for _, c := range g.Children {
			walk(depth+1, c)
		}
	}
	walk(0, g)
}
