// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package fake

import (
	"errors"

	"github.com/gviegas/vdbgfx/driver"
)

// Queue is an in-memory driver.Queue. Submissions execute synchronously
// on the calling goroutine: waits are checked (and must already be
// satisfied, since nothing else drives the fake GPU forward
// concurrently), command buffers are replayed, and signals fire
// immediately, in program order.
type Queue struct {
	gpu *GPU
	fam driver.QueueFamily
}

func (q *Queue) Family() driver.QueueFamily { return q.fam }

func (q *Queue) Submit(batch []driver.SubmitInfo, fence driver.Fence) error {
	for _, info := range batch {
		for _, w := range info.Waits {
			if s, ok := w.Sem.(*Semaphore); ok {
				if err := s.Wait(w.Value); err != nil {
					return err
				}
			}
		}
		for _, cb := range info.CmdBuffers {
			fcb, ok := cb.(*CmdBuffer)
			if !ok {
				return errors.New("fake: Submit with non-fake command buffer")
			}
			if err := fcb.replay(); err != nil {
				return err
			}
		}
		for _, sg := range info.Signals {
			s, ok := sg.Sem.(*Semaphore)
			if !ok {
				continue
			}
			if s.Kind() == driver.SBinary {
				s.signalBinary()
			} else {
				s.Signal(sg.Value)
			}
		}
	}
	if f, ok := fence.(*Fence); ok {
		f.signaled = true
	}
	return nil
}

func (q *Queue) BindSparse(batch []driver.BindSparseInfo, fence driver.Fence) error {
	for _, info := range batch {
		for _, b := range info.Binds {
			buf, ok := b.Buf.(*Buffer)
			if !ok || !buf.sparse {
				continue
			}
			blockIdx := int(b.BufOff / q.gpu.blockSize)
			if blockIdx < 0 || blockIdx >= len(buf.binds) {
				return errors.New("fake: sparse bind out of range")
			}
			buf.binds[blockIdx] = b.MemHandle
		}
		for _, s := range info.Signals {
			if fs, ok := s.(*Semaphore); ok {
				if fs.Kind() == driver.SBinary {
					fs.signalBinary()
				}
			}
		}
	}
	if f, ok := fence.(*Fence); ok {
		f.signaled = true
	}
	return nil
}

func (q *Queue) Present(sc driver.Swapchain, index int, waits []driver.Semaphore) error {
	return errors.New("fake: presentation not supported")
}

func (q *Queue) WaitIdle() error { return nil }
