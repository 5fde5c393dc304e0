// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import (
	"reflect"
	"unsafe"
)

// Arena is a host-side slab allocator for short-lived values: recordings,
// binding lists and the group-shared arrays of kernels. Memory is reused
// after Reset. An Arena must not be used concurrently.
type Arena struct {
	byteSlabs  []slab
	typedSlabs map[reflect.Type][]slab
}

const slabSize = 1024 * 1024

func NewArena() *Arena {
	return &Arena{
		typedSlabs: make(map[reflect.Type][]slab),
	}
}

func New[T any](a *Arena) *T {
	// TypeOf(*new(T)) would be nil for interface types.
	var t *T
	typ := reflect.TypeOf(t).Elem()
	return (*T)(a.alloc(typ, 1))
}

func Make[T any](a *Arena, v T) *T {
	ptr := New[T](a)
	*ptr = v
	return ptr
}

// NewSlice returns a zeroed slice.
func NewSlice[T ~[]E, E any](a *Arena, len, cap int) T {
	if cap == 0 {
		return nil
	}
	var e *E
	ptr := a.alloc(reflect.TypeOf(e).Elem(), cap)
	return T(unsafe.Slice((*E)(ptr), cap)[:len])
}

func MakeSlice[T ~[]E, E any](a *Arena, values T) T {
	s := NewSlice[T, E](a, len(values), len(values))
	copy(s, values)
	return s
}

func Append[T ~[]E, E any](a *Arena, s T, data ...E) T {
	s = growSlice(a, s, len(data))
	s = append(s, data...)
	return s
}

func growSlice[T ~[]E, E any](a *Arena, s T, n int) T {
	const growThreshold = 256
	newLen := len(s) + n
	newCap := cap(s)

	if newCap > 0 {
		for newLen > newCap {
			if newCap < growThreshold {
				newCap *= 2
			} else {
				newCap += newCap / 4
			}
		}
	} else {
		newCap = n
	}
	if newCap == cap(s) {
		return s
	}
	s2 := NewSlice[T, E](a, len(s), newCap)
	copy(s2, s)
	return s2
}

func (a *Arena) alloc(typ reflect.Type, num int) unsafe.Pointer {
	size := int(typ.Size())
	if size == 0 {
		return unsafe.Pointer(&zeroBase)
	}
	totalSize := num * size
	if totalSize > slabSize {
		// Too large for a slab, let the Go allocator deal with it.
		return reflect.MakeSlice(reflect.SliceOf(typ), num, num).UnsafePointer()
	}

	if !hasPointers(typ) {
		for i := range a.byteSlabs {
			sl := &a.byteSlabs[i]
			off := align(sl.offset, typ.Align())
			if sl.size-off >= totalSize {
				sl.offset = off + totalSize
				ptr := unsafe.Add(sl.data, off)
				clear(unsafe.Slice((*byte)(ptr), totalSize))
				return ptr
			}
		}
		a.byteSlabs = append(a.byteSlabs, slab{
			data:   unsafe.Pointer(unsafe.SliceData(make([]uint64, slabSize/8))),
			size:   slabSize,
			offset: totalSize,
		})
		return a.byteSlabs[len(a.byteSlabs)-1].data
	}

	if a.typedSlabs == nil {
		a.typedSlabs = make(map[reflect.Type][]slab)
	}
	slabs := a.typedSlabs[typ]
	for i := range slabs {
		sl := &slabs[i]
		if sl.size-sl.offset >= num {
			// Typed slabs are cleared by Reset.
			ptr := unsafe.Add(sl.data, sl.offset*size)
			sl.offset += num
			return ptr
		}
	}
	n := max(slabSize/size, num)
	ptr := reflect.MakeSlice(reflect.SliceOf(typ), n, n).UnsafePointer()
	a.typedSlabs[typ] = append(slabs, slab{
		data:   ptr,
		size:   n,
		offset: num,
		elem:   size,
	})
	return ptr
}

var zeroBase [0]uint64

// to has to be a power of two.
func align(v int, to int) int {
	return v + (-v & (to - 1))
}

func hasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return typ.Len() > 0 && hasPointers(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if hasPointers(typ.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (a *Arena) Reset() {
	for i := range a.byteSlabs {
		a.byteSlabs[i].offset = 0
	}
	for _, slabs := range a.typedSlabs {
		for i := range slabs {
			sl := &slabs[i]
			// Don't keep Go pointers alive.
			clear(unsafe.Slice((*byte)(sl.data), sl.offset*sl.elem))
			sl.offset = 0
		}
	}
}

type slab struct {
	data unsafe.Pointer
	// For byte slabs, size and offset are in bytes. For typed slabs they
	// count elements of elem bytes each.
	size   int
	offset int
	elem   int
}
