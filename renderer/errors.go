// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrMemory is reported when the memory arena was exhausted.
	ErrMemory = errors.New("memory arena exhausted")
	// ErrCorruptCommandStream is matched by every *CommandStreamError.
	ErrCorruptCommandStream = errors.New("corrupt command stream")
	// ErrTargetTooLarge is returned for targets whose bins don't fit a
	// single binning workgroup.
	ErrTargetTooLarge = errors.New("target too large")
	// ErrClipsTooDeep is returned for scenes that nest more than
	// MaxClipDepth clips.
	ErrClipsTooDeep = errors.New("clips nested too deeply")
)

// CommandStreamError describes a per-tile command list that could not be
// interpreted.
type CommandStreamError struct {
	TileX, TileY uint32
	// Offset of the offending command in the memory arena.
	Offset uint32
	Tag    CmdTag
	Reason string
}

func (err *CommandStreamError) Error() string {
	return fmt.Sprintf("tile (%d, %d): command %s at offset %d: %s",
		err.TileX, err.TileY, err.Tag, err.Offset, err.Reason)
}

func (err *CommandStreamError) Is(target error) bool {
	return target == ErrCorruptCommandStream
}
