// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package nodepool implements a slab allocator for fixed-layout node
// records, handing out stable 32-bit handles.
package nodepool

import (
	"errors"
	"math"

	"github.com/gviegas/vdbgfx/internal/bitm"
)

// Null is the handle value denoting "no node".
const Null uint32 = math.MaxUint32

// ErrOutOfHandles is returned when the pool cannot grow any further.
// In practice this only happens if the slab would need to exceed the
// range addressable by a uint32 handle.
var ErrOutOfHandles = errors.New("nodepool: out of handles")

// slabGrow is the fixed number of records added to the slab every time
// it needs to grow; the slab grows by this constant step, not by
// doubling. Must be a multiple of 32 (the bit width of the
// bitm.Bitm[uint32] word backing used).
const slabGrow = 64
const slabGrowWords = slabGrow / 32

// Pool is a slab allocator for one tree level's node records. T is the
// node record type for that level.
type Pool[T any] struct {
	slots []T
	used  bitm.Bitm[uint32] // Set(i) means slots[i] is allocated.
}

// New returns an empty Pool.
func New[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Len returns the number of live (allocated) nodes.
func (p *Pool[T]) Len() int { return len(p.slots) - p.used.Rem() }

// Cap returns the current slab capacity.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Alloc reserves a slot and returns its handle. The returned record is
// zero-valued. Amortized O(1).
func (p *Pool[T]) Alloc() (uint32, error) {
	idx, ok := p.used.Search()
	if !ok {
		if uint64(len(p.slots))+slabGrow > uint64(Null) {
			return Null, ErrOutOfHandles
		}
		base := p.used.Grow(slabGrowWords)
		var zero [slabGrow]T
		p.slots = append(p.slots, zero[:]...)
		idx = base
	}
	p.used.Set(idx)
	var zero T
	p.slots[idx] = zero
	return uint32(idx), nil
}

// Free releases a previously allocated handle. Freeing an already-free
// or out-of-range handle is a caller bug and panics, matching the
// teacher's treatment of invalid handles as programmer error.
func (p *Pool[T]) Free(h uint32) {
	if h == Null || int(h) >= len(p.slots) || !p.used.IsSet(int(h)) {
		panic("nodepool: invalid handle")
	}
	p.used.Unset(int(h))
	var zero T
	p.slots[h] = zero
}

// Get returns a pointer to the node record for h. It panics on an
// invalid handle.
func (p *Pool[T]) Get(h uint32) *T {
	if h == Null || int(h) >= len(p.slots) || !p.used.IsSet(int(h)) {
		panic("nodepool: invalid handle")
	}
	return &p.slots[h]
}

// Valid reports whether h currently names a live node.
func (p *Pool[T]) Valid(h uint32) bool {
	return h != Null && int(h) < len(p.slots) && p.used.IsSet(int(h))
}
