// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package cmdfuture implements the command-future abstraction: a
// suspendable unit of command recording that declares its resource
// accesses up front (so package stage can insert barriers between
// steps) and emits commands into a primary command buffer across
// possibly several steps before producing an output.
//
// This is an explicit step(&mut ctx) → Poll state machine rather than
// a transliteration of a coroutine-based future (whose Arc/UnsafeCell/
// atomic shared-device-state machinery has no idiomatic Go shape); see
// DESIGN.md for the grounding behind this shape.
package cmdfuture

import (
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/stage"
)

// Poll is the result of one Record step.
type Poll struct {
	Ready  bool
	Output any
}

// Pending reports that a Future needs at least one more Record step.
func Pending() Poll { return Poll{} }

// Done wraps output as the Future's final result.
func Done(output any) Poll { return Poll{Ready: true, Output: output} }

// Future is a suspendable unit of command recording.
type Future interface {
	// Context declares every resource access this step will perform.
	// It is called once per step, before Record.
	Context(ctx *stage.Context)

	// Record emits commands for this step into cb. recycled is
	// per-call scratch state the future may read and mutate; the
	// caller owns its lifetime across frames. The second return value
	// lists objects (e.g. staging buffers) that must outlive the
	// submission this recording becomes part of.
	Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer)
}

// Func adapts a pair of plain functions into a Future, for leaf
// operations that need no extra state.
type Func struct {
	ContextFn func(ctx *stage.Context)
	RecordFn  func(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer)
}

func (f *Func) Context(ctx *stage.Context) {
	if f.ContextFn != nil {
		f.ContextFn(ctx)
	}
}

func (f *Func) Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer) {
	return f.RecordFn(cb, recycled)
}
