// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocBumpsOffset(t *testing.T) {
	m := NewMemory(64, 8)
	a, ok := m.Malloc(10)
	require.True(t, ok)
	assert.Equal(t, uint32(8), a.Offset)
	b, ok := m.Malloc(4)
	require.True(t, ok)
	// 10 is rounded up to 12.
	assert.Equal(t, uint32(20), b.Offset)
	assert.False(t, m.Failed())
}

func TestMallocFailureIsSticky(t *testing.T) {
	m := NewMemory(16, 0)
	_, ok := m.Malloc(32)
	require.False(t, ok)
	assert.Equal(t, MallocFailed, m.Error())

	// The offset stays past the end, so small allocations fail too.
	_, ok = m.Malloc(4)
	assert.False(t, ok)
	assert.True(t, m.Failed())

	m.Reset(0)
	assert.False(t, m.Failed())
	_, ok = m.Malloc(16)
	assert.True(t, ok)
}

func TestConcurrentMallocIsDisjoint(t *testing.T) {
	const n = 64
	m := NewMemory(n*16, 0)
	offsets := make([]uint32, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, ok := m.Malloc(16)
			if ok {
				offsets[i] = a.Offset
			}
		}()
	}
	wg.Wait()
	require.False(t, m.Failed())
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for i, off := range offsets {
		assert.Equal(t, uint32(i*16), off)
	}
}

func TestStoreOutOfRange(t *testing.T) {
	m := NewMemory(8, 0)
	assert.True(t, m.Store(4, 42))
	v, ok := m.Load(4)
	require.True(t, ok)
	assert.Equal(t, uint32(42), v)

	assert.False(t, m.Store(8, 1))
	assert.Equal(t, MallocFailed, m.Error())
	_, ok = m.Load(8)
	assert.False(t, ok)
}

func TestRecordRoundTrip(t *testing.T) {
	type record struct {
		A float32
		B uint32
		C [2]float32
	}
	m := NewMemory(64, 0)
	in := record{A: 1.5, B: 7, C: [2]float32{-1, 2}}
	require.True(t, Store(m, 16, in))
	out, ok := Load[record](m, 16)
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = Load[record](m, 56)
	assert.False(t, ok)
}

func TestViewSharesHeader(t *testing.T) {
	m := NewMemory(32, 4)
	v := View(m.Bytes())
	_, ok := v.Malloc(8)
	require.True(t, ok)
	assert.Equal(t, uint32(12), m.Offset())
}

func TestAtomics(t *testing.T) {
	m := NewMemory(16, 0)
	m.AtomicAdd(0, -3)
	m.AtomicAdd(0, 5)
	assert.Equal(t, uint32(2), m.AtomicLoad(0))
	assert.Equal(t, uint32(2), m.AtomicSwap(0, 9))
	m.AtomicOr(4, 1)
	m.AtomicOr(4, 4)
	assert.Equal(t, uint32(5), m.AtomicLoad(4))
}
