// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package submit

import (
	"fmt"

	"github.com/gviegas/vdbgfx/driver"
)

// SubmitType classifies how a QueueSubmission's work must be packaged.
type SubmitType int

const (
	Regular SubmitType = iota
	SparseBind
	Present
)

// SignalSpec requests that a queue's submission this stage signal a
// semaphore tagged with the given source-stages bitmask, once the
// named pipeline stages of this submission's work have completed.
// Forced names the semaphore kind to use; STimeline (the pool default)
// unless the consumer requires a binary semaphore (e.g. a present).
type SignalSpec struct {
	Stages driver.Sync
	Forced driver.SemaphoreKind
}

// WaitRef resolves to the semaphore signaled by queue's SignalSpec
// with matching Stages in the previous stage, waited at DstStages.
type WaitRef struct {
	Queue     int
	Stages    driver.Sync
	DstStages driver.Sync
}

// QueueSubmission is one queue's work for one stage, as produced by
// the caller driving a queuefuture.QueueFuture (package queuefuture).
type QueueSubmission struct {
	Type SubmitType

	CmdBuffers  []driver.CmdBuffer
	SparseBinds []driver.SparseBind

	PresentSwapchain driver.Swapchain
	PresentIndex     int

	// Exports are ownership-release barriers recorded into
	// CmdBuffers[0] before submission, from cross-queue handoffs
	// (package queuefuture's Export values).
	BufferExports []driver.BufferBarrier
	ImageExports  []driver.ImageBarrier

	Waits      []WaitRef
	Signals    []SignalSpec
	ExtraWaits []driver.WaitPair // e.g. a swapchain acquire semaphore
}

type signalKey struct {
	queue  int
	stages driver.Sync
}

// Compiler packages a stage's worth of QueueSubmissions into concrete
// GPU work: it resolves cross-stage semaphore handoffs, emits export
// barriers, and issues the driver.Queue calls, presents last.
type Compiler struct {
	queues []driver.Queue
	sems   *SemaphorePool
	fences *FencePool

	prevTimeline map[signalKey]*TimelineHandle
	prevBinary   map[signalKey]driver.Semaphore
}

// NewCompiler returns a Compiler issuing work against queues (a flat
// list; QueueSubmission.Waits/Signals index into it) and drawing
// semaphores/fences from gpu.
func NewCompiler(gpu driver.GPU, queues []driver.Queue) *Compiler {
	return &Compiler{
		queues:       queues,
		sems:         NewSemaphorePool(gpu),
		fences:       NewFencePool(gpu),
		prevTimeline: make(map[signalKey]*TimelineHandle),
		prevBinary:   make(map[signalKey]driver.Semaphore),
	}
}

// CompileStage resolves subs's waits against the previous stage's
// signals, allocates this stage's own signals, records export barriers,
// and issues every submission — all non-present batches first, then
// presents. If final is true, every non-empty queue additionally
// signals a completion semaphore, returned in doneSems for the caller
// to await.
func (c *Compiler) CompileStage(subs []QueueSubmission, final bool) (fences []driver.Fence, doneSems []driver.Semaphore, err error) {
	waits := make([][]driver.WaitPair, len(subs))
	for i, s := range subs {
		wp := append([]driver.WaitPair{}, s.ExtraWaits...)
		for _, w := range s.Waits {
			key := signalKey{w.Queue, w.Stages}
			if h, ok := c.prevTimeline[key]; ok {
				wp = append(wp, driver.WaitPair{Sem: h.Sem, Value: h.Value, Stages: w.DstStages})
				h.Waited()
				continue
			}
			if sem, ok := c.prevBinary[key]; ok {
				wp = append(wp, driver.WaitPair{Sem: sem, Stages: w.DstStages})
				continue
			}
			return nil, nil, fmt.Errorf("submit: no signal recorded for queue %d stages %d", w.Queue, w.Stages)
		}
		waits[i] = wp
	}

	signals := make([][]driver.SignalPair, len(subs))
	newTimeline := make(map[signalKey]*TimelineHandle)
	newBinary := make(map[signalKey]driver.Semaphore)
	for i, s := range subs {
		for _, sig := range s.Signals {
			if sig.Forced == driver.SBinary {
				sem, err := c.sems.AcquireBinary()
				if err != nil {
					return nil, nil, err
				}
				signals[i] = append(signals[i], driver.SignalPair{Sem: sem, Stages: sig.Stages})
				newBinary[signalKey{i, sig.Stages}] = sem
				continue
			}
			h, err := c.sems.AcquireTimeline()
			if err != nil {
				return nil, nil, err
			}
			signals[i] = append(signals[i], driver.SignalPair{Sem: h.Sem, Value: h.Value, Stages: sig.Stages})
			newTimeline[signalKey{i, sig.Stages}] = h
		}
	}

	if final {
		for i, s := range subs {
			if len(s.CmdBuffers) == 0 && len(s.SparseBinds) == 0 {
				continue
			}
			h, err := c.sems.AcquireTimeline()
			if err != nil {
				return nil, nil, err
			}
			signals[i] = append(signals[i], driver.SignalPair{Sem: h.Sem, Value: h.Value, Stages: driver.SAll})
			doneSems = append(doneSems, h.Sem)
			// This semaphore's wait is performed by the caller directly
			// (it awaits completion of the whole future), not by another
			// queue's submission, so no later CompileStage call will ever
			// find it via prevTimeline; mark it waited now so the pool
			// can reclaim it once the caller's own wait has happened.
			h.Waited()
		}
	}

	for _, s := range subs {
		if (len(s.BufferExports) == 0 && len(s.ImageExports) == 0) || len(s.CmdBuffers) == 0 {
			continue
		}
		s.CmdBuffers[0].BufferBarrier(s.BufferExports)
		s.CmdBuffers[0].ImageBarrier(s.ImageExports)
	}

	var presentIdx []int
	for i, s := range subs {
		switch s.Type {
		case Present:
			presentIdx = append(presentIdx, i)
		case SparseBind:
			if len(s.SparseBinds) == 0 {
				continue
			}
			f, err := c.fences.Acquire()
			if err != nil {
				return nil, nil, err
			}
			info := driver.BindSparseInfo{Binds: s.SparseBinds, Waits: semsOf(waits[i]), Signals: semsOfSignal(signals[i])}
			if err := c.queues[i].BindSparse([]driver.BindSparseInfo{info}, f); err != nil {
				return nil, nil, err
			}
			fences = append(fences, f)
		default:
			if len(s.CmdBuffers) == 0 {
				continue
			}
			f, err := c.fences.Acquire()
			if err != nil {
				return nil, nil, err
			}
			info := driver.SubmitInfo{CmdBuffers: s.CmdBuffers, Waits: waits[i], Signals: signals[i]}
			if err := c.queues[i].Submit([]driver.SubmitInfo{info}, f); err != nil {
				return nil, nil, err
			}
			fences = append(fences, f)
		}
	}
	for _, i := range presentIdx {
		s := subs[i]
		if err := c.queues[i].Present(s.PresentSwapchain, s.PresentIndex, semsOf(waits[i])); err != nil {
			return nil, nil, err
		}
	}

	c.prevTimeline, c.prevBinary = newTimeline, newBinary
	return fences, doneSems, nil
}

// FinishCycle resets the fence and semaphore pools once the caller has
// waited on every fence CompileStage returned this cycle.
func (c *Compiler) FinishCycle() error {
	if err := c.fences.Reset(); err != nil {
		return err
	}
	return c.sems.Reset()
}

// Await blocks until every fence in fences is signaled.
func Await(fences []driver.Fence) error {
	for _, f := range fences {
		if err := f.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func semsOf(wp []driver.WaitPair) []driver.Semaphore {
	out := make([]driver.Semaphore, len(wp))
	for i, w := range wp {
		out[i] = w.Sem
	}
	return out
}

func semsOfSignal(sp []driver.SignalPair) []driver.Semaphore {
	out := make([]driver.Semaphore, len(sp))
	for i, s := range sp {
		out[i] = s.Sem
	}
	return out
}
