// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package submit implements the submission compiler: it takes the
// per-queue work of one stage at a time (as produced by a caller
// driving a queuefuture.QueueFuture), resolves the semaphores that
// connect one stage's signals to the next stage's waits, and packages
// each queue's work into a concrete driver.Queue.Submit,
// Queue.BindSparse or Queue.Present call.
package submit

import (
	"errors"

	"github.com/gviegas/vdbgfx/driver"
)

// ErrUnwaitedTimeline is returned by SemaphorePool.Reset if a timeline
// semaphore acquired this cycle was never marked Waited, which would
// otherwise let its signal value collide with a future cycle's.
var ErrUnwaitedTimeline = errors.New("submit: timeline semaphore acquired but never waited")

// TimelineHandle identifies one timeline semaphore signal point drawn
// from a SemaphorePool, named by the value it will be signaled to.
type TimelineHandle struct {
	Sem   driver.Semaphore
	Value uint64

	waited bool
}

type timelineEntry struct {
	sem  driver.Semaphore
	next uint64
}

// SemaphorePool is a tri-state pool: reusable timeline semaphores
// whose next signal value is tracked, plus a separate list of binary
// semaphores drawn round-robin (for forced-binary handoffs, e.g. into
// a present operation).
type SemaphorePool struct {
	gpu driver.GPU

	timelines []*timelineEntry
	acquired  []*TimelineHandle

	binaries []driver.Semaphore
	binIdx   int
}

// NewSemaphorePool returns an empty pool backed by gpu.
func NewSemaphorePool(gpu driver.GPU) *SemaphorePool {
	return &SemaphorePool{gpu: gpu}
}

// AcquireTimeline returns a handle to the next signal value of a
// reused (or newly created) timeline semaphore. The caller must call
// Waited on the returned handle once the corresponding wait has been
// resolved, before the next Reset.
func (p *SemaphorePool) AcquireTimeline() (*TimelineHandle, error) {
	for _, e := range p.timelines {
		if !p.inUse(e) {
			e.next++
			h := &TimelineHandle{Sem: e.sem, Value: e.next}
			p.acquired = append(p.acquired, h)
			return h, nil
		}
	}
	sem, err := p.gpu.NewSemaphore(driver.STimeline)
	if err != nil {
		return nil, err
	}
	e := &timelineEntry{sem: sem, next: 1}
	p.timelines = append(p.timelines, e)
	h := &TimelineHandle{Sem: sem, Value: 1}
	p.acquired = append(p.acquired, h)
	return h, nil
}

func (p *SemaphorePool) inUse(e *timelineEntry) bool {
	for _, h := range p.acquired {
		if h.Sem == e.sem && !h.waited {
			return true
		}
	}
	return false
}

// Waited marks h's wait as resolved, making its underlying semaphore
// eligible for reuse by a future AcquireTimeline call.
func (h *TimelineHandle) Waited() { h.waited = true }

// AcquireBinary draws the next binary semaphore round-robin, growing
// the pool if every existing one is still pending a wait. Binary
// semaphores are single-use, so the pool always grows rather than risk
// handing out one still in flight; Reset clears the round-robin index,
// letting the next cycle reuse the full list from the start once the
// caller has confirmed (by fence wait) that this cycle's semaphores
// were consumed.
func (p *SemaphorePool) AcquireBinary() (driver.Semaphore, error) {
	if p.binIdx >= len(p.binaries) {
		sem, err := p.gpu.NewSemaphore(driver.SBinary)
		if err != nil {
			return nil, err
		}
		p.binaries = append(p.binaries, sem)
	}
	sem := p.binaries[p.binIdx]
	p.binIdx++
	return sem, nil
}

// Reset prepares the pool for the next submission cycle. It reports
// ErrUnwaitedTimeline if any timeline semaphore acquired since the
// last Reset was never marked Waited.
func (p *SemaphorePool) Reset() error {
	for _, h := range p.acquired {
		if !h.waited {
			return ErrUnwaitedTimeline
		}
	}
	p.acquired = p.acquired[:0]
	p.binIdx = 0
	return nil
}

// FencePool is a growable list of reusable fences.
type FencePool struct {
	gpu    driver.GPU
	fences []driver.Fence
	used   int
}

// NewFencePool returns an empty fence pool backed by gpu.
func NewFencePool(gpu driver.GPU) *FencePool {
	return &FencePool{gpu: gpu}
}

// Acquire returns an unsignaled fence, growing the pool if every
// existing fence is already in use this cycle.
func (p *FencePool) Acquire() (driver.Fence, error) {
	if p.used >= len(p.fences) {
		f, err := p.gpu.NewFence(false)
		if err != nil {
			return nil, err
		}
		p.fences = append(p.fences, f)
	}
	f := p.fences[p.used]
	p.used++
	return f, nil
}

// Reset resets only the fences used this cycle (the pool's first used
// entries), then clears the in-use count.
func (p *FencePool) Reset() error {
	for i := 0; i < p.used; i++ {
		if err := p.fences[i].Reset(); err != nil {
			return err
		}
	}
	p.used = 0
	return nil
}
