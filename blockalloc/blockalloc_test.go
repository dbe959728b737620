// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package blockalloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/blockalloc"
	"github.com/gviegas/vdbgfx/driver/fake"
)

func newAllocator(t *testing.T) *blockalloc.Allocator {
	t.Helper()
	gpu := fake.New()
	queue := gpu.Queues()[0][0]
	a, err := blockalloc.New(gpu, queue, 16*gpu.MemBlockSize())
	require.NoError(t, err)
	return a
}

func TestAllocateDeallocateReuse(t *testing.T) {
	a := newAllocator(t)

	p1, err := a.AllocateBlock()
	require.NoError(t, err)
	p2, err := a.AllocateBlock()
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	off2, err := a.Offset(p2)
	require.NoError(t, err)

	require.NoError(t, a.DeallocateBlock(p2))
	p3, err := a.AllocateBlock()
	require.NoError(t, err)
	off3, err := a.Offset(p3)
	require.NoError(t, err)
	assert.Equal(t, off2, off3)

	stats := a.Stats()
	assert.Equal(t, 2, stats.BlocksAllocated)
	assert.NotEqual(t, p1, p3, "handles are never reused, only resource offsets")
}

func TestFlushAfterBind(t *testing.T) {
	a := newAllocator(t)

	b1, err := a.AllocateBlock()
	require.NoError(t, err)

	ok, err := a.CanFlush()
	require.NoError(t, err)
	assert.True(t, ok, "immediate bind path should leave both fences signaled")

	b1Bytes, err := a.BlockBytes(b1)
	require.NoError(t, err)
	copy(b1Bytes[0:4], []byte{0xEF, 0xBE, 0xAD, 0xDE})

	err = a.Flush([]blockalloc.DirtyRange{{Block: b1, Start: 0, End: 4}})
	require.NoError(t, err)

	off, err := a.Offset(b1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, a.DeviceBuffer().Bytes()[off:off+4])
}

// TestBlockBytesAfterReuse exercises the case Offset/BlockBytes exist
// for: a freed resource offset reassigned to a new Handle must still
// resolve to the right bytes, even though the new Handle's allocation
// order no longer coincides with its offset.
func TestBlockBytesAfterReuse(t *testing.T) {
	a := newAllocator(t)

	p1, err := a.AllocateBlock()
	require.NoError(t, err)
	p2, err := a.AllocateBlock()
	require.NoError(t, err)
	require.NoError(t, a.DeallocateBlock(p1))
	p3, err := a.AllocateBlock()
	require.NoError(t, err)

	off1, err := a.Offset(p1)
	assert.ErrorIs(t, err, blockalloc.ErrInvalidHandle)
	_ = off1

	b3, err := a.BlockBytes(p3)
	require.NoError(t, err)
	b3[0] = 0x7A

	off3, err := a.Offset(p3)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7A), a.SystemBuffer().Bytes()[off3])

	off2, err := a.Offset(p2)
	require.NoError(t, err)
	assert.NotEqual(t, off2, off3, "reused offset must not alias the still-live block")
}

func TestDeallocateInvalidHandle(t *testing.T) {
	a := newAllocator(t)
	assert.ErrorIs(t, a.DeallocateBlock(blockalloc.Null), blockalloc.ErrInvalidHandle)
}
