// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vdb

import "github.com/gviegas/vdbgfx/bitmask"

// attrNull marks the absence of an attribute range.
const attrNull uint32 = 0xffffffff

// run is a free range in the attribute store's backing slab.
type run struct{ start, len int }

// AttrStore holds variable-length per-leaf attribute ranges, indexed by
// leaf occupancy, with copy-on-resize as leaves are parked/compacted by
// the cached accessor (see accessor.go). V is the per-voxel value type.
type AttrStore[V comparable] struct {
	data []V
	free []run
}

// NewAttrStore returns an empty attribute store.
func NewAttrStore[V comparable]() *AttrStore[V] {
	return &AttrStore[V]{}
}

// alloc reserves a contiguous range of n values and returns its pointer.
// A request for zero values returns attrNull without consuming storage.
func (s *AttrStore[V]) alloc(n int) uint32 {
	if n == 0 {
		return attrNull
	}
	for i, r := range s.free {
		if r.len == n {
			s.free = append(s.free[:i], s.free[i+1:]...)
			return uint32(r.start)
		}
		if r.len > n {
			s.free[i] = run{r.start + n, r.len - n}
			return uint32(r.start)
		}
	}
	ptr := len(s.data)
	var zero V
	for i := 0; i < n; i++ {
		s.data = append(s.data, zero)
	}
	return uint32(ptr)
}

// Get returns the value at offset within the range starting at ptr.
func (s *AttrStore[V]) Get(ptr uint32, offset int) V {
	return s.data[int(ptr)+offset]
}

// Set assigns the value at offset within the range starting at ptr.
func (s *AttrStore[V]) Set(ptr uint32, offset int, v V) {
	s.data[int(ptr)+offset] = v
}

// Free releases a range of count values starting at ptr. Freeing a
// zero-length (attrNull) range is a no-op.
func (s *AttrStore[V]) Free(ptr uint32, count int) {
	if count == 0 || ptr == attrNull {
		return
	}
	s.free = append(s.free, run{int(ptr), count})
}

// Copy allocates a new range sized to newMask's popcount and copies,
// in mask-ascending order, the entries set in both oldMask and newMask
// from the range at ptr. It does not free the original range; the
// caller is responsible for that once it knows no further reads of it
// are required.
func (s *AttrStore[V]) Copy(ptr uint32, oldMask, newMask *bitmask.Mask) uint32 {
	newLen := newMask.CountOnes()
	newPtr := s.alloc(newLen)
	w := 0
	newMask.IterSetBits(func(i int) bool {
		if oldMask.Get(i) {
			old := oldMask.Rank(i)
			s.Set(newPtr, w, s.Get(ptr, old))
		}
		w++
		return true
	})
	return newPtr
}
