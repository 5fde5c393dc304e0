// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArenaSlicesAreZeroed(t *testing.T) {
	a := NewArena()
	s := NewSlice[[]uint32](a, 8, 8)
	for i := range s {
		s[i] = uint32(i + 1)
	}
	a.Reset()
	s2 := NewSlice[[]uint32](a, 8, 8)
	assert.Equal(t, make([]uint32, 8), s2)
}

func TestArenaAppend(t *testing.T) {
	a := NewArena()
	var s []string
	for i := range 300 {
		s = Append(a, s, string(rune('a'+i%26)))
	}
	assert.Len(t, s, 300)
	assert.Equal(t, "a", s[0])
	assert.Equal(t, "n", s[299])
}

func TestArenaLargeAllocation(t *testing.T) {
	a := NewArena()
	s := NewSlice[[]uint64](a, slabSize, slabSize)
	assert.Len(t, s, slabSize)
}

func TestBinaryTreeMap(t *testing.T) {
	a := NewArena()
	var m BinaryTreeMap[int, string]
	m.Insert(a, 3, "c")
	m.Insert(a, 1, "a")
	m.Insert(a, 2, "b")
	m.Insert(a, 2, "B")

	v, ok := m.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "B", v)
	assert.Equal(t, []int{1, 2, 3}, slices.Collect(m.Keys()))

	assert.True(t, m.Delete(1))
	assert.False(t, m.Delete(1))
	_, ok = m.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())

	m.Insert(a, 1, "again")
	v, _ = m.Get(1)
	assert.Equal(t, "again", v)
}
