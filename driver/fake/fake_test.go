// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package fake_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/driver/fake"
)

func TestNewExposesOneQueue(t *testing.T) {
	gpu := fake.New()
	qs := gpu.Queues()
	require.Len(t, qs, 1)
	require.Len(t, qs[0], 1)
	fam := qs[0][0].Family()
	assert.True(t, fam.Compute)
	assert.True(t, fam.Transfer)
	assert.True(t, fam.Present)
}

func TestSparseBufferBindAndCopy(t *testing.T) {
	gpu := fake.New()
	q := gpu.Queues()[0][0]

	blockSize := gpu.MemBlockSize()
	buf, err := gpu.NewSparseBuffer(blockSize*2, driver.UShaderRead)
	require.NoError(t, err)

	mem, err := gpu.NewSparseMemory(true)
	require.NoError(t, err)

	err = q.BindSparse([]driver.BindSparseInfo{{
		Binds: []driver.SparseBind{{Buf: buf, BufOff: 0, MemHandle: mem, Size: blockSize}},
	}}, nil)
	require.NoError(t, err)

	dst, err := gpu.NewBuffer(blockSize, true, driver.UCopyDst)
	require.NoError(t, err)
	copy(buf.Bytes()[:4], []byte{1, 2, 3, 4})

	cb, err := gpu.NewCmdBuffer(q.Family())
	require.NoError(t, err)
	require.NoError(t, cb.Begin())
	cb.CopyBuffer(&driver.BufferCopy{From: buf, To: dst, Size: 4})
	require.NoError(t, cb.End())

	require.NoError(t, q.Submit([]driver.SubmitInfo{{CmdBuffers: []driver.CmdBuffer{cb}}}, nil))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst.Bytes()[:4])
}

func TestSubmitWaitsOnTimelineSemaphore(t *testing.T) {
	gpu := fake.New()
	q := gpu.Queues()[0][0]

	sem, err := gpu.NewSemaphore(driver.STimeline)
	require.NoError(t, err)
	require.NoError(t, sem.Signal(1))

	cb, err := gpu.NewCmdBuffer(q.Family())
	require.NoError(t, err)
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())

	fence, err := gpu.NewFence(false)
	require.NoError(t, err)

	err = q.Submit([]driver.SubmitInfo{{
		CmdBuffers: []driver.CmdBuffer{cb},
		Waits:      []driver.WaitPair{{Sem: sem, Value: 1, Stages: driver.SCopy}},
	}}, fence)
	require.NoError(t, err)

	signaled, err := fence.Signaled()
	require.NoError(t, err)
	assert.True(t, signaled)
}

func TestSubmitFailsOnUnmetTimelineWait(t *testing.T) {
	gpu := fake.New()
	q := gpu.Queues()[0][0]

	sem, err := gpu.NewSemaphore(driver.STimeline)
	require.NoError(t, err)

	cb, err := gpu.NewCmdBuffer(q.Family())
	require.NoError(t, err)

	err = q.Submit([]driver.SubmitInfo{{
		CmdBuffers: []driver.CmdBuffer{cb},
		Waits:      []driver.WaitPair{{Sem: sem, Value: 1, Stages: driver.SCopy}},
	}}, nil)
	assert.Error(t, err)
}

func TestBufferBytesPanicsWhenNotVisible(t *testing.T) {
	gpu := fake.New()
	buf, err := gpu.NewBuffer(64, false, driver.UShaderRead)
	require.NoError(t, err)
	assert.Panics(t, func() { buf.Bytes() })
}

// TestDriverRegistersUnderFakeName confirms package fake registers
// itself through driver.Register on import, and that Open/Close behave
// like the driver.Driver contract requires: repeated Open calls return
// the same GPU, and Close lets a later Open start fresh.
func TestDriverRegistersUnderFakeName(t *testing.T) {
	var drv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == "fake" {
			drv = d
		}
	}
	require.NotNil(t, drv, "package fake must register itself on import")

	gpu1, err := drv.Open()
	require.NoError(t, err)
	gpu2, err := drv.Open()
	require.NoError(t, err)
	assert.Same(t, gpu1, gpu2)

	drv.Close()
	gpu3, err := drv.Open()
	require.NoError(t, err)
	assert.NotSame(t, gpu1, gpu3)
}

func TestPresentIsUnsupported(t *testing.T) {
	gpu := fake.New()
	q := gpu.Queues()[0][0]
	assert.Error(t, q.Present(nil, 0, nil))
}
