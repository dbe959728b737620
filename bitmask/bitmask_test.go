// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package bitmask_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/bitmask"
)

func TestGetSet(t *testing.T) {
	m := bitmask.NewMask(70)
	assert.True(t, m.IsZeroed())
	m.Set(0, true)
	m.Set(63, true)
	m.Set(64, true)
	m.Set(69, true)
	assert.True(t, m.Get(0))
	assert.True(t, m.Get(63))
	assert.True(t, m.Get(64))
	assert.True(t, m.Get(69))
	assert.False(t, m.Get(1))
	assert.Equal(t, 4, m.CountOnes())
	m.Set(0, false)
	assert.False(t, m.Get(0))
	assert.Equal(t, 3, m.CountOnes())
}

func TestIsMaxed(t *testing.T) {
	m := bitmask.NewMask(5)
	assert.False(t, m.IsMaxed())
	for i := 0; i < 5; i++ {
		m.Set(i, true)
	}
	assert.True(t, m.IsMaxed())
	assert.Equal(t, 5, m.CountOnes())
}

func TestIterSetBits(t *testing.T) {
	m := bitmask.NewMask(130)
	want := []int{0, 5, 63, 64, 65, 129}
	for _, i := range want {
		m.Set(i, true)
	}
	var got []int
	m.IterSetBits(func(i int) bool {
		got = append(got, i)
		return true
	})
	assert.Equal(t, want, got)
}

func TestRank(t *testing.T) {
	m := bitmask.NewMask(8)
	m.Set(1, true)
	m.Set(2, true)
	m.Set(5, true)
	require.Equal(t, 0, m.Rank(0))
	assert.Equal(t, 1, m.Rank(2))
	assert.Equal(t, 2, m.Rank(3))
	assert.Equal(t, 2, m.Rank(5))
	assert.Equal(t, 3, m.Rank(6))
	assert.Equal(t, 3, m.Rank(8))
}

func TestClone(t *testing.T) {
	m := bitmask.NewMask(10)
	m.Set(3, true)
	c := m.Clone()
	c.Set(4, true)
	assert.False(t, m.Get(4))
	assert.True(t, c.Get(3))
}
