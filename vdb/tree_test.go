// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/vdb"
)

// cfg123 is a three-level hierarchy (root, mid, leaf) with leaf extent 4
// voxels per axis, mid extent 16, root extent 32 — small enough to make
// coordinate (144, 1, 0) fall outside the leaf (and mid) containing the
// origin.
func cfg123() vdb.TreeConfig {
	return vdb.TreeConfig{Levels: []vdb.LevelDesc{
		{Log2: [3]uint{1, 1, 1}}, // root: 2x2x2 fanout
		{Log2: [3]uint{2, 2, 2}}, // mid: 4x4x4 fanout
		{Log2: [3]uint{2, 2, 2}}, // leaf: 4x4x4 voxels
	}}
}

func TestTreeRoundTrip(t *testing.T) {
	tr, err := vdb.NewTree(cfg123(), vdb.NewAttrStore[uint16]())
	require.NoError(t, err)

	c := vdb.Coord{3, 2, 1}
	_, ok := tr.Get(c)
	assert.False(t, ok)

	tr.Set(c, 12)
	v, ok := tr.Get(c)
	require.True(t, ok)
	assert.EqualValues(t, 12, v)

	tr.Set(c, 0)
	_, ok = tr.Get(c)
	assert.False(t, ok, "clearing must remove the voxel")
}

func TestTreeEagerFree(t *testing.T) {
	tr, err := vdb.NewTree(cfg123(), vdb.NewAttrStore[uint16]())
	require.NoError(t, err)

	c := vdb.Coord{100, 50, 9}
	tr.Set(c, 5)
	count := 0
	tr.LeafIter(func(vdb.LeafView) bool { count++; return true })
	assert.Equal(t, 1, count)

	tr.Set(c, 0)
	count = 0
	tr.LeafIter(func(vdb.LeafView) bool { count++; return true })
	assert.Equal(t, 0, count, "emptied leaf and its ancestors must be pruned")
}

func TestTreeLeafIter(t *testing.T) {
	tr, err := vdb.NewTree(cfg123(), vdb.NewAttrStore[uint16]())
	require.NoError(t, err)

	tr.Set(vdb.Coord{0, 0, 0}, 1)
	tr.Set(vdb.Coord{1, 0, 0}, 2)
	tr.Set(vdb.Coord{144, 1, 0}, 3)

	seen := map[vdb.Coord]uint16{}
	tr.LeafIter(func(lv vdb.LeafView) bool {
		lv.Occ.IterSetBits(func(idx int) bool {
			seen[lv.Base] = tr.Value(lv, idx)
			return true
		})
		return true
	})
	assert.Len(t, seen, 2, "two distinct leaves should have been visited")
}
