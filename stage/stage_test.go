// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/driver/fake"
	"github.com/gviegas/vdbgfx/stage"
	"github.com/gviegas/vdbgfx/track"
)

func TestFirstAccessNoBarrier(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderRead)
	require.NoError(t, err)

	c := stage.NewContext(track.New())
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderRead}))
	globals, images, buffers, transitions := c.Flush()
	assert.Empty(t, globals)
	assert.Empty(t, images)
	assert.Empty(t, buffers)
	assert.Empty(t, transitions)
}

func TestWriteAfterWriteEmitsMemoryBarrier(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderWrite)
	require.NoError(t, err)

	tr := track.New()
	c := stage.NewContext(tr)
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderWrite}))
	c.Flush()

	c2 := stage.NewContext(tr)
	require.NoError(t, c2.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderWrite}))
	globals, _, _, _ := c2.Flush()
	require.Len(t, globals, 1)
	assert.Equal(t, driver.AShaderWrite, globals[0].SrcAccess)
	assert.Equal(t, driver.AShaderWrite, globals[0].DstAccess)
}

func TestReadAfterReadEmitsNoBarrier(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderRead)
	require.NoError(t, err)

	tr := track.New()
	c := stage.NewContext(tr)
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderRead}))
	c.Flush()

	c2 := stage.NewContext(tr)
	require.NoError(t, c2.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderRead}))
	globals, _, _, _ := c2.Flush()
	assert.Empty(t, globals)
}

func TestWriteAfterReadHasNoMemoryAccessMask(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderRead|driver.UShaderWrite)
	require.NoError(t, err)

	tr := track.New()
	c := stage.NewContext(tr)
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderRead}))
	c.Flush()

	c2 := stage.NewContext(tr)
	require.NoError(t, c2.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderWrite}))
	globals, _, _, _ := c2.Flush()
	require.Len(t, globals, 1)
	assert.Equal(t, driver.ANone, globals[0].SrcAccess)
	assert.Equal(t, driver.ANone, globals[0].DstAccess)
}

func TestAliasedWriteRejected(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderWrite)
	require.NoError(t, err)

	c := stage.NewContext(track.New())
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderWrite}))
	err = c.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderWrite})
	assert.ErrorIs(t, err, stage.ErrAliasedWrite)
}

func TestImageLayoutChangeEmitsImageBarrier(t *testing.T) {
	gpu := fake.New()
	img, err := gpu.NewImage(driver.FRGBA8, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, driver.UShaderRead)
	require.NoError(t, err)

	tr := track.New()
	c := stage.NewContext(tr)
	require.NoError(t, c.Record(stage.Access{Image: img, Stages: driver.SCopy, Access: driver.ATransferWrite, Layout: driver.LTransferDst}))
	c.Flush()

	c2 := stage.NewContext(tr)
	require.NoError(t, c2.Record(stage.Access{Image: img, Stages: driver.SCompute, Access: driver.AShaderRead, Layout: driver.LShaderRead}))
	globals, images, _, _ := c2.Flush()
	assert.Empty(t, globals)
	require.Len(t, images, 1)
	assert.Equal(t, driver.LTransferDst, images[0].LayoutBefore)
	assert.Equal(t, driver.LShaderRead, images[0].LayoutAfter)
}

func TestQueueFamilyChangeReportsTransition(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(256, false, driver.UShaderRead)
	require.NoError(t, err)

	famA := driver.QueueFamily{Index: 0, Transfer: true}
	famB := driver.QueueFamily{Index: 1, Compute: true}

	tr := track.New()
	c := stage.NewContext(tr)
	require.NoError(t, c.Record(stage.Access{Buffer: buf, Stages: driver.SCopy, Access: driver.ATransferWrite, Family: famA}))
	c.Flush()

	c2 := stage.NewContext(tr)
	require.NoError(t, c2.Record(stage.Access{Buffer: buf, Stages: driver.SCompute, Access: driver.AShaderRead, Family: famB}))
	_, _, buffers, transitions := c2.Flush()
	require.Len(t, buffers, 1)
	require.Len(t, transitions, 1)
	assert.Equal(t, famA, transitions[0].From)
	assert.Equal(t, famB, transitions[0].To)
}
