// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"fmt"
	"math"
	"structs"
	"sync/atomic"
	"unsafe"

	"honnef.co/go/safeish"
)

// Error codes stored in the memory header.
const (
	NoError      uint32 = 0
	MallocFailed uint32 = 1
)

// HeaderSize is the size of the memory header in bytes. The header holds the
// bump offset followed by the error code.
const HeaderSize = 8

// Alloc is the offset of an allocation in the data region of a Memory.
type Alloc struct {
	_ structs.HostLayout

	Offset uint32
}

// Memory is the arena shared by all pipeline stages. It is a single buffer
// consisting of a header and a data region. Allocations are bump allocated
// and never freed; a failed allocation sets a sticky error code that every
// stage consults before trusting the arena. Offsets are byte offsets into the
// data region and must be 4-byte aligned.
//
// Methods may be called concurrently, but callers are responsible for not
// racing plain loads and stores of the same words.
type Memory struct {
	buf   []byte
	words []uint32
}

// NewMemory allocates a Memory with size bytes of data and the first static
// bytes already allocated.
func NewMemory(size, static uint32) *Memory {
	words := make([]uint32, (HeaderSize+size+3)/4)
	m := &Memory{
		buf:   safeish.SliceCast[[]byte](words),
		words: words,
	}
	m.Reset(static)
	return m
}

// View interprets buf, which must have been produced by Memory.Bytes or be
// otherwise 4-byte aligned, as a Memory.
func View(buf []byte) *Memory {
	if len(buf) < HeaderSize {
		panic(fmt.Sprintf("buffer of size %d is too small to hold a memory header", len(buf)))
	}
	buf = buf[:len(buf)&^3]
	return &Memory{
		buf:   buf,
		words: safeish.SliceCast[[]uint32](buf),
	}
}

func (m *Memory) Bytes() []byte { return m.buf }

// Size returns the size of the data region in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.buf)) - HeaderSize }

// Reset reinitializes the header. The first static bytes count as
// allocated. Reset is the only way to clear the error code.
func (m *Memory) Reset(static uint32) {
	atomic.StoreUint32(&m.words[0], static)
	atomic.StoreUint32(&m.words[1], NoError)
}

// Offset returns the current bump offset. It may exceed Size after failed
// allocations.
func (m *Memory) Offset() uint32 { return atomic.LoadUint32(&m.words[0]) }

func (m *Memory) Error() uint32 { return atomic.LoadUint32(&m.words[1]) }

func (m *Memory) Failed() bool { return m.Error() != NoError }

// SetError raises the error code to at least code.
func (m *Memory) SetError(code uint32) {
	for {
		old := atomic.LoadUint32(&m.words[1])
		if old >= code || atomic.CompareAndSwapUint32(&m.words[1], old, code) {
			return
		}
	}
}

// Malloc allocates size bytes, rounded up to a multiple of 4. It never
// blocks and never grows the buffer. On failure it sets MallocFailed and
// returns false.
func (m *Memory) Malloc(size uint32) (Alloc, bool) {
	size = (size + 3) &^ 3
	offset := atomic.AddUint32(&m.words[0], size) - size
	if uint64(offset)+uint64(size) > uint64(m.Size()) {
		m.SetError(MallocFailed)
		return Alloc{}, false
	}
	return Alloc{Offset: offset}, true
}

// Touch reports whether the size bytes at off lie inside the data region.
func (m *Memory) Touch(off, size uint32) bool {
	return off&3 == 0 && uint64(off)+uint64(size) <= uint64(m.Size())
}

func (m *Memory) index(off uint32) int {
	return int((HeaderSize + off) / 4)
}

func (m *Memory) Load(off uint32) (uint32, bool) {
	if !m.Touch(off, 4) {
		return 0, false
	}
	return m.words[m.index(off)], true
}

// Store writes v at off. Out of range writes are dropped and set the error
// code.
func (m *Memory) Store(off uint32, v uint32) bool {
	if !m.Touch(off, 4) {
		m.SetError(MallocFailed)
		return false
	}
	m.words[m.index(off)] = v
	return true
}

func (m *Memory) LoadFloat(off uint32) (float32, bool) {
	v, ok := m.Load(off)
	return math.Float32frombits(v), ok
}

func (m *Memory) StoreFloat(off uint32, v float32) bool {
	return m.Store(off, math.Float32bits(v))
}

func (m *Memory) AtomicLoad(off uint32) uint32 {
	return atomic.LoadUint32(&m.words[m.index(off)])
}

func (m *Memory) AtomicStore(off uint32, v uint32) {
	atomic.StoreUint32(&m.words[m.index(off)], v)
}

func (m *Memory) AtomicAdd(off uint32, delta int32) uint32 {
	return atomic.AddUint32(&m.words[m.index(off)], uint32(delta))
}

func (m *Memory) AtomicSwap(off uint32, v uint32) uint32 {
	return atomic.SwapUint32(&m.words[m.index(off)], v)
}

func (m *Memory) AtomicOr(off uint32, v uint32) uint32 {
	return atomic.OrUint32(&m.words[m.index(off)], v)
}

// Words returns the n words starting at off, or false if they don't lie
// inside the data region.
func (m *Memory) Words(off, n uint32) ([]uint32, bool) {
	if !m.Touch(off, n*4) {
		return nil, false
	}
	i := m.index(off)
	return m.words[i : i+int(n) : i+int(n)], true
}

// Load reads a record of type T at off. T must consist of 4-byte fields.
func Load[T any](m *Memory, off uint32) (T, bool) {
	var zero T
	if !m.Touch(off, uint32(unsafe.Sizeof(zero))) {
		return zero, false
	}
	return *safeish.Cast[*T](&m.buf[HeaderSize+off]), true
}

// Store writes a record of type T at off. Out of range writes are dropped and
// set the error code.
func Store[T any](m *Memory, off uint32, v T) bool {
	if !m.Touch(off, uint32(unsafe.Sizeof(v))) {
		m.SetError(MallocFailed)
		return false
	}
	*safeish.Cast[*T](&m.buf[HeaderSize+off]) = v
	return true
}
