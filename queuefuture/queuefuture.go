// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package queuefuture implements the multi-stage, multi-queue driver
// layer that sits above package cmdfuture: it advances command futures
// queue by queue, stage by stage, surfacing the points where
// cross-queue synchronization or submission is required so that
// package submit can compile them into concrete GPU operations.
//
// Same state-machine approach as package cmdfuture; new code (no
// teacher analogue — see package track's doc comment for why).
package queuefuture

import (
	"github.com/gviegas/vdbgfx/cmdfuture"
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/stage"
)

// StepKind classifies what a QueueFuture's Step call reached.
type StepKind int

const (
	// StepBarrier means another stage on the same queue is needed;
	// no cross-queue synchronization occurred.
	StepBarrier StepKind = iota

	// StepSemaphore means a cross-queue synchronization point was
	// reached; ExtraWaits names additional waits the next stage's
	// submission must honor.
	StepSemaphore

	// StepReady means the queue future has completed.
	StepReady
)

// Step is the result of one QueueFuture.Step call.
type Step struct {
	Kind StepKind

	// ExtraWaits is set for StepSemaphore.
	ExtraWaits []driver.WaitPair

	// NextQueueMask and Output are set for StepReady: NextQueueMask
	// names the queues whose work must complete before this future's
	// own completion semaphore is considered signaled.
	NextQueueMask uint32
	Output        any

	// Retained holds objects (e.g. staging buffers) that must outlive
	// every submission this future contributed commands to.
	Retained []driver.Destroyer
}

// QueueFuture is a suspendable, queue-aware unit of work.
type QueueFuture interface {
	Step() (Step, error)
}

// InlineRunner adapts a cmdfuture.Future onto a single queue: it
// drives the inner future one record step at a time, staging a
// stage.Context and folding it before every Record call.
type InlineRunner struct {
	future   cmdfuture.Future
	queue    int
	ctx      *stage.Context
	cb       driver.CmdBuffer
	recycled any
	done     bool
}

// NewInlineRunner returns a runner that drives future on queue
// (an index into the submission compiler's flat queue list), recording
// into cb and folding accesses against ctx.
func NewInlineRunner(future cmdfuture.Future, queue int, ctx *stage.Context, cb driver.CmdBuffer, recycled any) *InlineRunner {
	return &InlineRunner{future: future, queue: queue, ctx: ctx, cb: cb, recycled: recycled}
}

func (r *InlineRunner) Step() (Step, error) {
	if r.done {
		return Step{Kind: StepReady, NextQueueMask: 1 << uint(r.queue)}, nil
	}
	r.future.Context(r.ctx)
	r.ctx.Flush()
	poll, retained := r.future.Record(r.cb, r.recycled)
	if poll.Ready {
		r.done = true
		return Step{
			Kind:          StepReady,
			NextQueueMask: 1 << uint(r.queue),
			Output:        poll.Output,
			Retained:      retained,
		}, nil
	}
	return Step{Kind: StepBarrier, Retained: retained}, nil
}

// Block adapts a user-authored generator function into a QueueFuture:
// Gen is called once per Step call, receiving the 0-based step index,
// and must itself decide when to return StepReady.
type Block struct {
	Gen  func(step int) (Step, error)
	step int
}

func (b *Block) Step() (Step, error) {
	s, err := b.Gen(b.step)
	b.step++
	return s, err
}
