// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package tessera renders 2D vector scenes into images. Scenes are built
// with the encoding package and rendered by a pipeline of data-parallel
// stages that share a single bump-allocated memory arena.
package tessera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/engine/cpu_engine"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/mem"
	"honnef.co/go/tessera/profiler"
	"honnef.co/go/tessera/renderer"
)

var (
	ErrMemory               = renderer.ErrMemory
	ErrCorruptCommandStream = renderer.ErrCorruptCommandStream
	ErrTargetTooLarge       = renderer.ErrTargetTooLarge
	ErrClipsTooDeep         = renderer.ErrClipsTooDeep
)

type CommandStreamError = renderer.CommandStreamError

// The dynamic part of the arena never shrinks below this when growing.
const minDynamicMemory = 64 << 10

// Renderer renders scenes on the CPU. It is safe for concurrent use, but
// renders are serialized.
type Renderer struct {
	mu      sync.Mutex
	options Options
	engine  *cpu_engine.Engine
	arena   *mem.Arena
	// Dynamic memory that sufficed for the last render.
	dynamic uint32
}

func NewRenderer(options Options) *Renderer {
	return &Renderer{
		options: options,
		engine:  cpu_engine.New(options.Workers),
		arena:   mem.NewArena(),
		dynamic: options.DynamicMemory,
	}
}

// Render renders enc to a width by height image. images are the images
// referenced by the scene's FillImage elements.
//
// If the memory arena turns out to be too small, it is grown and the scene
// rendered again, until Options.MaxMemory is reached.
func (r *Renderer) Render(
	ctx context.Context,
	enc *encoding.Encoding,
	images gfx.Images,
	width, height uint32,
) (*image.NRGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := enc.OpenClips(); n != 0 {
		return nil, fmt.Errorf("scene has %d unterminated clips", n)
	}

	log := Logger()
	cfg, err := renderer.NewRenderConfig(enc, width, height)
	if err != nil {
		return nil, err
	}
	dynamic := r.dynamic
	if r.options.EstimateMemory {
		est := renderer.EstimateMemory(enc, cfg)
		dynamic = max(dynamic, min(est.Total(), r.options.MaxMemory))
		log.DebugContext(ctx, "estimated memory",
			"static", cfg.StaticSize,
			"tiles", est.Tiles,
			"segments", est.Segments,
			"bins", est.Bins,
			"ptcl", est.Ptcl,
			"clip_scratch", est.ClipScratch)
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.arena.Reset()
		pgroup := profiler.New("Render")
		res, err := r.engine.RenderToImage(
			ctx,
			r.arena,
			enc,
			images,
			width, height,
			&renderer.RenderParams{DynamicMemory: dynamic},
			pgroup,
		)
		pgroup.End()
		if err == nil && res.MemoryError != mem.NoError {
			err = ErrMemory
		}
		if log.Enabled(ctx, slog.LevelDebug) {
			logTimings(ctx, log, pgroup, attempt, dynamic)
		}

		switch {
		case err == nil:
			r.dynamic = dynamic
			return res.Image.ToNRGBA(), nil
		case !errors.Is(err, ErrMemory):
			log.ErrorContext(ctx, "render failed", "error", err)
			return nil, err
		case dynamic >= r.options.MaxMemory:
			log.ErrorContext(ctx, "render failed", "error", err, "dynamic_memory", dynamic)
			return nil, fmt.Errorf("scene needs more than %d bytes of dynamic memory: %w", r.options.MaxMemory, ErrMemory)
		}

		next := min(max(uint64(dynamic)*3/2, minDynamicMemory), uint64(r.options.MaxMemory))
		log.WarnContext(ctx, "memory arena exhausted, growing",
			"attempt", attempt,
			"dynamic_memory", dynamic,
			"next", next)
		dynamic = uint32(next)
	}
}

func logTimings(ctx context.Context, log *slog.Logger, pgroup *profiler.Group, attempt int, dynamic uint32) {
	log.DebugContext(ctx, "render attempt",
		"attempt", attempt,
		"dynamic_memory", dynamic,
		"duration", pgroup.Duration())
	pgroup.Walk(func(depth int, g *profiler.Group) {
		if depth == 0 {
			return
		}
		log.DebugContext(ctx, "stage",
			"label", strings.Repeat("  ", depth-1)+g.Label,
			"duration", g.Duration())
	})
}
