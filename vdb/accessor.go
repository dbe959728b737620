// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vdb

import (
	"github.com/gviegas/vdbgfx/bitmask"
	"github.com/gviegas/vdbgfx/nodepool"
)

// Accessor is a stateful traversal over a Tree that caches the node
// handle visited at every internal level and defers leaf attribute
// compaction. Exactly one leaf may be "parked" (held at a
// fully-mapped, leaf-sized attribute range) at a time; moving to a
// different leaf, or calling End, compacts it back down to the size
// implied by its occupancy popcount.
//
// Grounded algorithm-for-algorithm on
// original_source/crates/vdb/src/accessor.rs's get/set/
// purge_prev_access_leaf_node, with the lowest-common-ancestor test
// re-expressed as a coordinate right-shift comparison (levelMeta.nodeAddr)
// instead of a per-axis leading-zero bit trick — both identify the same
// level, since nodeAddr equality at a deeper level always implies
// equality at every shallower one.
type Accessor[V comparable] struct {
	tree *Tree[V]

	valid     bool
	lastCoord Coord
	ptrs      []uint32 // ptrs[i] = handle of the branch node at level i, for i in [1, leafLevel-1]

	parked           bool
	parkedLeafHandle uint32
}

// NewAccessor returns an Accessor over t.
func NewAccessor[V comparable](t *Tree[V]) *Accessor[V] {
	ptrs := make([]uint32, t.leafLevel())
	for i := range ptrs {
		ptrs[i] = nodepool.Null
	}
	return &Accessor[V]{tree: t, ptrs: ptrs}
}

// lcaLevel returns the deepest level at or below which a.lastCoord and c
// are guaranteed to resolve through the same node, i.e. their lowest
// common ancestor (0 means only the root is shared, i.e. no pool-backed
// cache entry can be reused and the root map must be consulted again).
func (a *Accessor[V]) lcaLevel(c Coord) int {
	t := a.tree
	for i := t.leafLevel() - 1; i >= 1; i-- {
		if a.ptrs[i] == nodepool.Null {
			continue
		}
		if t.levels[i].nodeAddr(a.lastCoord) == t.levels[i].nodeAddr(c) {
			return i
		}
	}
	return 0
}

// invalidateFrom nulls out cached node handles at and beyond level,
// since a failed (non-allocating) resolve leaves nothing trustworthy to
// compare against for those levels on the next lcaLevel call.
func (a *Accessor[V]) invalidateFrom(level int) {
	for i := level; i < len(a.ptrs); i++ {
		a.ptrs[i] = nodepool.Null
	}
}

// resolve descends to the leaf that contains c, reusing cached state
// when possible. If allocate is true, missing nodes (and, for a fresh
// leaf, its occupancy mask) are created along the way; otherwise a
// missing path reports ok=false.
func (a *Accessor[V]) resolve(c Coord, allocate bool) (h uint32, leafIdx int, ok bool) {
	t := a.tree

	var node *branchNode
	startLevel := 0
	if a.valid {
		if lvl := a.lcaLevel(c); lvl > 0 {
			node = t.pools[lvl].Get(a.ptrs[lvl])
			startLevel = lvl
		}
	}
	if node == nil {
		key := t.levels[0].nodeAddr(c)
		root, present := t.rootMap[key]
		if !present {
			if !allocate {
				a.invalidateFrom(1)
				return 0, 0, false
			}
			root = newBranch(t.levels[0].fanoutCount)
			t.rootMap[key] = root
		}
		node = root
		startLevel = 0
	}

	for level := startLevel; level < t.leafLevel(); level++ {
		idx := t.levels[level].localIndex(c)
		if !node.mask.Get(idx) {
			if !allocate {
				a.invalidateFrom(level + 1)
				return 0, 0, false
			}
			t.allocChild(node, level, idx)
		}
		child := node.children[idx]
		if level+1 == t.leafLevel() {
			return child, t.levels[level+1].localIndex(c), true
		}
		a.ptrs[level+1] = child
		node = t.pools[level+1].Get(child)
	}
	panic("vdb: unreachable")
}

// Get returns the value stored at c, if any.
func (a *Accessor[V]) Get(c Coord) (V, bool) {
	var zero V
	h, leafIdx, ok := a.resolve(c, false)
	a.lastCoord, a.valid = c, true
	if !ok {
		return zero, false
	}
	leaf := a.tree.leafPool.Get(h)
	if !leaf.occ.Get(leafIdx) {
		return zero, false
	}
	off := leafIdx
	if !(a.parked && a.parkedLeafHandle == h) {
		off = leaf.occ.Rank(leafIdx)
	}
	return a.tree.attrs.Get(leaf.attrPtr, off), true
}

// Set writes value at c. Writing the zero value clears the voxel; if c
// was never written (no leaf occupies it along the way), a clearing
// Set allocates nothing and returns immediately, mirroring Tree.Set's
// own "if clearing { return }" guard at every level of the descent.
func (a *Accessor[V]) Set(c Coord, v V) {
	var zero V
	clearing := v == zero

	if clearing {
		h, leafIdx, ok := a.resolve(c, false)
		if !ok {
			a.lastCoord, a.valid = c, true
			return
		}
		leaf := a.tree.leafPool.Get(h)
		if !leaf.occ.Get(leafIdx) {
			a.lastCoord, a.valid = c, true
			return
		}
		a.setAt(c, h, leafIdx, zero, true)
		return
	}

	h, leafIdx, ok := a.resolve(c, true)
	if !ok {
		panic("vdb: unreachable")
	}
	a.setAt(c, h, leafIdx, v, false)
}

// setAt applies the write at an already-resolved leaf handle/index,
// parking the leaf for subsequent nearby writes unless clearing drops
// its occupancy to zero, in which case the leaf (and any ancestor left
// empty by its removal) is pruned immediately instead of being parked.
func (a *Accessor[V]) setAt(c Coord, h uint32, leafIdx int, v V, clearing bool) {
	leaf := a.tree.leafPool.Get(h)

	if a.parked && a.parkedLeafHandle == h {
		leaf.occ.Set(leafIdx, !clearing)
		switch {
		case !clearing:
			a.tree.attrs.Set(leaf.attrPtr, leafIdx, v)
		case leaf.occ.IsZeroed():
			a.tree.attrs.Free(leaf.attrPtr, leaf.attrLen)
			a.tree.leafPool.Free(h)
			a.tree.prune(a.pathTo(c))
			a.invalidateFrom(1)
			a.parked = false
			a.parkedLeafHandle = nodepool.Null
		}
		a.lastCoord, a.valid = c, true
		return
	}

	a.purgePrevParkedLeaf()

	fLeaf := leaf.occ.Len()
	if leaf.attrLen != fLeaf {
		full := bitmask.NewMask(fLeaf)
		full.Fill()
		newPtr := a.tree.attrs.Copy(leaf.attrPtr, leaf.occ, full)
		a.tree.attrs.Free(leaf.attrPtr, leaf.attrLen)
		leaf.attrPtr = newPtr
		leaf.attrLen = fLeaf
	}

	leaf.occ.Set(leafIdx, !clearing)
	if clearing && leaf.occ.IsZeroed() {
		a.tree.attrs.Free(leaf.attrPtr, leaf.attrLen)
		a.tree.leafPool.Free(h)
		a.tree.prune(a.pathTo(c))
		a.invalidateFrom(1)
		a.lastCoord, a.valid = c, true
		return
	}
	if !clearing {
		a.tree.attrs.Set(leaf.attrPtr, leafIdx, v)
	}

	a.parked = true
	a.parkedLeafHandle = h
	a.lastCoord, a.valid = c, true
}

// pathTo reconstructs the root-to-leaf-parent chain of branch nodes and
// indices for c, for use by prune when a write empties a leaf found
// along this path. Unlike resolve, it performs no caching and assumes
// the full path already exists (the caller has just read or written a
// live leaf at c).
func (a *Accessor[V]) pathTo(c Coord) []pathFrame {
	t := a.tree
	path := make([]pathFrame, 0, t.leafLevel())
	key := t.levels[0].nodeAddr(c)
	node := t.rootMap[key]
	for level := 0; level < t.leafLevel(); level++ {
		idx := t.levels[level].localIndex(c)
		path = append(path, pathFrame{node: node, rootKey: key, level: level, idx: idx})
		if level+1 == t.leafLevel() {
			break
		}
		node = t.pools[level+1].Get(node.children[idx])
	}
	return path
}

// purgePrevParkedLeaf compacts the currently parked leaf's attribute
// range down to its occupancy popcount, per
// original_source/crates/vdb/src/accessor.rs's
// purge_prev_access_leaf_node: a no-op if the leaf's occupancy is
// already maxed, since the fully-mapped and compact layouts then
// coincide. setAt already prunes a leaf the moment a clear empties it,
// so the parked leaf reaching here always has occupied voxels; the
// zero-occupancy branch below, which frees and prunes the leaf along
// with any ancestor left empty by its removal, is a guard only.
func (a *Accessor[V]) purgePrevParkedLeaf() {
	if !a.parked {
		return
	}
	leaf := a.tree.leafPool.Get(a.parkedLeafHandle)
	if !leaf.occ.IsMaxed() {
		full := bitmask.NewMask(leaf.occ.Len())
		full.Fill()
		newPtr := a.tree.attrs.Copy(leaf.attrPtr, full, leaf.occ)
		a.tree.attrs.Free(leaf.attrPtr, leaf.attrLen)
		leaf.attrPtr = newPtr
		leaf.attrLen = leaf.occ.CountOnes()
	}
	if leaf.occ.IsZeroed() {
		a.tree.leafPool.Free(a.parkedLeafHandle)
		a.tree.prune(a.pathTo(a.lastCoord))
		a.invalidateFrom(1)
	}
	a.parked = false
	a.parkedLeafHandle = nodepool.Null
}

// End compacts any parked leaf and returns the number of leaves
// compacted (0 or 1, since at most one leaf is ever parked at a time).
func (a *Accessor[V]) End() int {
	if !a.parked {
		return 0
	}
	a.purgePrevParkedLeaf()
	return 1
}
