// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vdb

import (
	"errors"

	"github.com/gviegas/vdbgfx/bitmask"
	"github.com/gviegas/vdbgfx/nodepool"
)

// ErrFewLevels is returned by NewTree when given fewer than two levels.
var ErrFewLevels = errors.New("vdb: tree configuration needs at least a root and a leaf level")

// branchNode is the record shared by the root level (held in a map keyed
// by the coordinate bits above the tree's declared extent) and every
// internal level (held in a per-level nodepool.Pool): a child bitmask
// plus an equal-length child handle array. There is exactly one Go
// type for every non-leaf level; behavior differences are driven
// entirely from levelMeta (tagged dispatch through a metadata table
// rather than per-level types).
type branchNode struct {
	mask     *bitmask.Mask
	children []uint32
}

// leafNode carries an occupancy mask and a pointer into the tree's
// AttrStore. While an accessor (see accessor.go) has the leaf parked,
// attrLen may exceed occ.CountOnes(); otherwise the two always agree.
type leafNode struct {
	occ     *bitmask.Mask
	attrPtr uint32
	attrLen int
}

func newBranch(fanout int) *branchNode {
	return &branchNode{mask: bitmask.NewMask(fanout), children: nullSlice(fanout)}
}

func nullSlice(n int) []uint32 {
	s := make([]uint32, n)
	for i := range s {
		s[i] = nodepool.Null
	}
	return s
}

// Tree is a multi-level sparse voxel grid over node pools, storing
// values of type V (compared against the zero value to decide
// occupancy: a leaf slot holding the zero value is unoccupied).
type Tree[V comparable] struct {
	levels   []levelMeta
	rootMap  map[Coord]*branchNode
	pools    []*nodepool.Pool[branchNode] // indices 1..len-2 populated
	leafPool *nodepool.Pool[leafNode]
	attrs    *AttrStore[V]
}

// NewTree constructs a Tree from cfg, storing attribute values in attrs.
// cfg must describe at least two levels (a root and a leaf).
func NewTree[V comparable](cfg TreeConfig, attrs *AttrStore[V]) (*Tree[V], error) {
	if len(cfg.Levels) < 2 {
		return nil, ErrFewLevels
	}
	levels, err := buildLevels(cfg)
	if err != nil {
		return nil, err
	}
	pools := make([]*nodepool.Pool[branchNode], len(levels))
	for i := 1; i < len(levels)-1; i++ {
		pools[i] = nodepool.New[branchNode]()
	}
	return &Tree[V]{
		levels:   levels,
		rootMap:  make(map[Coord]*branchNode),
		pools:    pools,
		leafPool: nodepool.New[leafNode](),
		attrs:    attrs,
	}, nil
}

// leafLevel returns the index of the leaf level.
func (t *Tree[V]) leafLevel() int { return len(t.levels) - 1 }

// Get returns the value stored at c, if any.
func (t *Tree[V]) Get(c Coord) (V, bool) {
	var zero V
	leaf, idx, ok := t.findLeaf(c)
	if !ok || !leaf.occ.Get(idx) {
		return zero, false
	}
	off := leaf.occ.Rank(idx)
	return t.attrs.Get(leaf.attrPtr, off), true
}

// findLeaf performs a pure (non-allocating) descent to the leaf that
// would contain c, returning the leaf record and c's local index within
// it.
func (t *Tree[V]) findLeaf(c Coord) (leaf *leafNode, idx int, ok bool) {
	key := t.levels[0].nodeAddr(c)
	node, present := t.rootMap[key]
	if !present {
		return nil, 0, false
	}
	for level := 0; level < t.leafLevel(); level++ {
		li := t.levels[level].localIndex(c)
		if !node.mask.Get(li) {
			return nil, 0, false
		}
		h := node.children[li]
		if level+1 == t.leafLevel() {
			return t.leafPool.Get(h), t.levels[level+1].localIndex(c), true
		}
		node = t.pools[level+1].Get(h)
	}
	panic("vdb: unreachable")
}

// pathFrame records one step of a root-to-leaf descent, for use by Set
// when it needs to prune empty ancestors after a clearing write.
type pathFrame struct {
	node     *branchNode
	rootKey  Coord // meaningful only when level == 0
	level    int
	idx      int
}

// Set writes value at c. Writing the zero value clears the voxel; per
// the eager-free design decision (DESIGN.md, Open Question 1) this
// recursively frees leaf and internal nodes that become empty as a
// result, all the way up to removing the root bucket itself.
func (t *Tree[V]) Set(c Coord, v V) {
	var zero V
	clearing := v == zero

	key := t.levels[0].nodeAddr(c)
	root, present := t.rootMap[key]
	if !present {
		if clearing {
			return
		}
		root = newBranch(t.levels[0].fanoutCount)
		t.rootMap[key] = root
	}

	path := make([]pathFrame, 0, t.leafLevel())
	node := root

	for level := 0; level < t.leafLevel(); level++ {
		idx := t.levels[level].localIndex(c)
		path = append(path, pathFrame{node: node, rootKey: key, level: level, idx: idx})

		if !node.mask.Get(idx) {
			if clearing {
				return
			}
			t.allocChild(node, level, idx)
		}

		childHandle := node.children[idx]
		if level+1 == t.leafLevel() {
			leaf := t.leafPool.Get(childHandle)
			leafIdx := t.levels[level+1].localIndex(c)
			t.writeLeaf(leaf, leafIdx, v, clearing)
			if leaf.occ.IsZeroed() {
				t.leafPool.Free(childHandle)
				t.prune(path)
			}
			return
		}
		node = t.pools[level+1].Get(childHandle)
	}
	panic("vdb: unreachable")
}

// allocChild allocates the (level+1) child at idx of node, which the
// caller has already confirmed is unset, and wires it into node.
func (t *Tree[V]) allocChild(node *branchNode, level, idx int) {
	nextLevel := level + 1
	var h uint32
	if t.levels[nextLevel].isLeaf {
		hh, err := t.leafPool.Alloc()
		if err != nil {
			panic(err)
		}
		lf := t.leafPool.Get(hh)
		lf.occ = bitmask.NewMask(t.levels[nextLevel].fanoutCount)
		lf.attrPtr = attrNull
		h = hh
	} else {
		hh, err := t.pools[nextLevel].Alloc()
		if err != nil {
			panic(err)
		}
		bn := t.pools[nextLevel].Get(hh)
		bn.mask = bitmask.NewMask(t.levels[nextLevel].fanoutCount)
		bn.children = nullSlice(t.levels[nextLevel].fanoutCount)
		h = hh
	}
	node.mask.Set(idx, true)
	node.children[idx] = h
}

// prune clears the child slot that led to a just-freed node and, for as
// long as the parent itself becomes empty as a result, frees it too and
// continues upward; the root bucket is deleted from rootMap if it ends
// up empty.
func (t *Tree[V]) prune(path []pathFrame) {
	for i := len(path) - 1; i >= 0; i-- {
		f := path[i]
		f.node.mask.Set(f.idx, false)
		f.node.children[f.idx] = nodepool.Null
		if !f.node.mask.IsZeroed() {
			return
		}
		if f.level == 0 {
			delete(t.rootMap, f.rootKey)
			return
		}
		// f.node lives in t.pools[f.level]; its handle is still held in
		// the parent frame's child slot, which the next iteration clears
		// after this free.
		parent := path[i-1]
		h := parent.node.children[parent.idx]
		t.pools[f.level].Free(h)
	}
}

// writeLeaf sets or clears voxel idx within leaf, always keeping
// leaf.attrLen equal to the occupancy popcount (the plain Tree API has
// no parking optimization; that is Accessor's job).
func (t *Tree[V]) writeLeaf(leaf *leafNode, idx int, v V, clearing bool) {
	was := leaf.occ.Get(idx)
	switch {
	case clearing && was:
		newMask := leaf.occ.Clone()
		newMask.Set(idx, false)
		newPtr := t.attrs.Copy(leaf.attrPtr, leaf.occ, newMask)
		t.attrs.Free(leaf.attrPtr, leaf.attrLen)
		leaf.occ = newMask
		leaf.attrPtr = newPtr
		leaf.attrLen = newMask.CountOnes()
	case !clearing && !was:
		newMask := leaf.occ.Clone()
		newMask.Set(idx, true)
		newPtr := t.attrs.Copy(leaf.attrPtr, leaf.occ, newMask)
		t.attrs.Free(leaf.attrPtr, leaf.attrLen)
		off := newMask.Rank(idx)
		t.attrs.Set(newPtr, off, v)
		leaf.occ = newMask
		leaf.attrPtr = newPtr
		leaf.attrLen = newMask.CountOnes()
	case !clearing && was:
		off := leaf.occ.Rank(idx)
		t.attrs.Set(leaf.attrPtr, off, v)
	default: // clearing && !was: no-op
	}
}

// LeafView describes one non-empty leaf as reported by LeafIter.
type LeafView struct {
	Base Coord
	Occ  *bitmask.Mask

	ptr uint32
}

// Value returns the value stored at local voxel index idx (0-based,
// ascending in the same order as the level's fanout) within a leaf
// reported by LeafIter.
func (t *Tree[V]) Value(lv LeafView, localIdx int) V {
	return t.attrs.Get(lv.ptr, lv.Occ.Rank(localIdx))
}

// LeafIter calls f once for every non-empty leaf, with the voxel
// coordinate of the leaf's origin. Iteration order is unspecified. It
// stops early if f returns false.
func (t *Tree[V]) LeafIter(f func(LeafView) bool) {
	for key, root := range t.rootMap {
		var origin Coord
		for a := 0; a < 3; a++ {
			origin[a] = key[a] << t.levels[0].extentLog2[a]
		}
		if !t.walkBranch(root, 0, origin, f) {
			return
		}
	}
}

// walkBranch recursively visits node (at the given level, with addr the
// voxel-space coordinate of its origin) using plain recursion; tree
// depth is small and fixed by configuration, so this does not risk
// stack exhaustion, unlike gviegas-neo3/node/node.go's scene graphs
// which use explicit stacks because their depth is unbounded user data.
func (t *Tree[V]) walkBranch(node *branchNode, level int, addr Coord, f func(LeafView) bool) bool {
	cont := true
	node.mask.IterSetBits(func(idx int) bool {
		child := node.children[idx]
		base := childBase(addr, &t.levels[level], idx)
		if level+1 == t.leafLevel() {
			leaf := t.leafPool.Get(child)
			if !f(LeafView{Base: base, Occ: leaf.occ, ptr: leaf.attrPtr}) {
				cont = false
				return false
			}
			return true
		}
		bn := t.pools[level+1].Get(child)
		if !t.walkBranch(bn, level+1, base, f) {
			cont = false
			return false
		}
		return true
	})
	return cont
}

// childBase recovers the voxel-space origin coordinate of child idx of
// a node occupying addr at the given level.
func childBase(addr Coord, m *levelMeta, idx int) Coord {
	var out Coord
	rem := idx
	for a := 0; a < 3; a++ {
		bits := m.fanoutLog2[a]
		axisIdx := rem & (1<<bits - 1)
		rem >>= bits
		out[a] = addr[a] + uint32(axisIdx)<<m.childExtentLog2(a)
	}
	return out
}
