// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package vdb implements a hierarchical sparse voxel tree: a multi-level
// grid over node pools with bitmask occupancy and an externally-stored
// attribute array, plus a stateful cached accessor for point queries and
// updates.
package vdb

import "errors"

// ErrInvalidHandle names a stale node or attribute handle. No function
// in this package returns or panics with it; a stale node handle makes
// package nodepool panic with its own message instead.
var ErrInvalidHandle = errors.New("vdb: invalid handle")

// Coord is a three-axis voxel coordinate.
type Coord [3]uint32

// LevelDesc describes one level of a tree, ordered root-first down to the
// leaf (the last entry in a TreeConfig.Levels slice is always the leaf).
// Log2 gives, per axis, log2 of the number of children a node at this
// level has along that axis (for the leaf level, log2 of the number of
// voxels along that axis instead).
type LevelDesc struct {
	Log2 [3]uint
}

// TreeConfig configures a Tree's level hierarchy.
type TreeConfig struct {
	Levels []LevelDesc
}

// levelMeta is the per-level metadata table entry used in place of
// per-level-type inheritance: every level's behavior (local index
// computation, child count, leaf-ness) is driven from this table
// rather than from distinct Go types per level.
type levelMeta struct {
	fanoutLog2  [3]uint // this level's own Log2
	extentLog2  [3]uint // total addressable extent (in bits) of one node at this level
	fanoutCount int     // product of (1<<fanoutLog2[a]) over axes
	isLeaf      bool
	isRoot      bool
}

func buildLevels(cfg TreeConfig) ([]levelMeta, error) {
	n := len(cfg.Levels)
	if n == 0 {
		return nil, errors.New("vdb: tree configuration has no levels")
	}
	metas := make([]levelMeta, n)
	// extentLog2 beyond the leaf (a virtual level) is zero on every axis.
	var childExtent [3]uint
	for i := n - 1; i >= 0; i-- {
		ld := cfg.Levels[i]
		m := levelMeta{fanoutLog2: ld.Log2, isLeaf: i == n-1, isRoot: i == 0}
		cnt := 1
		for a := 0; a < 3; a++ {
			m.extentLog2[a] = ld.Log2[a] + childExtent[a]
			cnt *= 1 << ld.Log2[a]
		}
		m.fanoutCount = cnt
		metas[i] = m
		childExtent = m.extentLog2
	}
	return metas, nil
}

// localIndex returns the flattened child/voxel index that coord maps to
// at level i: (v >> child_extent_log2_L) & fanout_mask_L per axis.
func (m *levelMeta) localIndex(c Coord) int {
	idx := 0
	for a := 2; a >= 0; a-- {
		shift := m.childExtentLog2(a)
		mask := uint32(1)<<m.fanoutLog2[a] - 1
		axisIdx := (c[a] >> shift) & mask
		idx = idx<<m.fanoutLog2[a] | int(axisIdx)
	}
	return idx
}

// childExtentLog2 returns extentLog2[a] of the level immediately below
// this one (zero for the leaf level, which has no children).
func (m *levelMeta) childExtentLog2(a int) uint {
	if m.isLeaf {
		return 0
	}
	return m.extentLog2[a] - m.fanoutLog2[a]
}

// nodeAddr returns c shifted right by this level's own extent on every
// axis: two coordinates sharing the same nodeAddr at level i are
// guaranteed to resolve to the same node at every level shallower than i
// too, which is what the cached accessor's lowest-common-ancestor search
// relies on.
func (m *levelMeta) nodeAddr(c Coord) Coord {
	var out Coord
	for a := 0; a < 3; a++ {
		out[a] = c[a] >> m.extentLog2[a]
	}
	return out
}
