// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package cmdfuture

import (
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/stage"
)

// joined advances a fixed pair of futures independently, completing
// once both have produced output.
type joined struct {
	a, b           Future
	aDone, bDone   bool
	aOut, bOut     any
}

// Join returns a Future that completes with [2]any{a's output, b's
// output} once both a and b have completed, each advancing at its own
// pace.
func Join(a, b Future) Future { return &joined{a: a, b: b} }

func (j *joined) Context(ctx *stage.Context) {
	if !j.aDone {
		j.a.Context(ctx)
	}
	if !j.bDone {
		j.b.Context(ctx)
	}
}

func (j *joined) Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer) {
	var retained []driver.Destroyer
	if !j.aDone {
		p, r := j.a.Record(cb, recycled)
		retained = append(retained, r...)
		if p.Ready {
			j.aDone, j.aOut = true, p.Output
		}
	}
	if !j.bDone {
		p, r := j.b.Record(cb, recycled)
		retained = append(retained, r...)
		if p.Ready {
			j.bDone, j.bOut = true, p.Output
		}
	}
	if j.aDone && j.bDone {
		return Done([2]any{j.aOut, j.bOut}), retained
	}
	return Pending(), retained
}

// joinedVec is JoinVec's backing type, generalizing joined to N
// branches.
type joinedVec struct {
	branches []Future
	done     []bool
	out      []any
}

// JoinVec returns a Future that completes with a []any of every
// branch's output once all of fs have completed.
func JoinVec(fs []Future) Future {
	return &joinedVec{branches: fs, done: make([]bool, len(fs)), out: make([]any, len(fs))}
}

func (j *joinedVec) Context(ctx *stage.Context) {
	for i, f := range j.branches {
		if !j.done[i] {
			f.Context(ctx)
		}
	}
}

func (j *joinedVec) Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer) {
	var retained []driver.Destroyer
	allDone := true
	for i, f := range j.branches {
		if j.done[i] {
			continue
		}
		p, r := f.Record(cb, recycled)
		retained = append(retained, r...)
		if p.Ready {
			j.done[i], j.out[i] = true, p.Output
		} else {
			allDone = false
		}
	}
	if allDone {
		return Done(j.out), retained
	}
	return Pending(), retained
}

// mapped transforms a Future's eventual output through f.
type mapped struct {
	inner Future
	f     func(any) any
}

// Map returns a Future equivalent to inner, except its output is
// f(inner's output).
func Map(inner Future, f func(any) any) Future { return &mapped{inner: inner, f: f} }

func (m *mapped) Context(ctx *stage.Context) { m.inner.Context(ctx) }

func (m *mapped) Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer) {
	p, r := m.inner.Record(cb, recycled)
	if p.Ready {
		return Done(m.f(p.Output)), r
	}
	return p, r
}

// forkState is shared by every branch returned from Fork. Context and
// Record each forward to the wrapped future exactly once per round —
// the round being one pass where every branch is driven exactly once,
// in the same relative order, which is how the inline command runner
// (package queuefuture) drives joined branches. A branch that is not
// the round's last arrival contributes no barriers (Context is a
// no-op for it) and emits no commands (Record reports Pending).
type forkState struct {
	inner      Future
	n          int
	ctxTurn    int
	recTurn    int
	poll       Poll
	retained   []driver.Destroyer
}

// Fork returns n Futures that all observe the same inner Future's
// single eventual output, recorded exactly once (at the last branch's
// turn in each round).
func Fork(inner Future, n int) []Future {
	s := &forkState{inner: inner, n: n}
	out := make([]Future, n)
	for i := range out {
		out[i] = &forkBranch{state: s}
	}
	return out
}

type forkBranch struct{ state *forkState }

func (b *forkBranch) Context(ctx *stage.Context) {
	s := b.state
	s.ctxTurn++
	if s.ctxTurn == s.n {
		s.inner.Context(ctx)
		s.ctxTurn = 0
	}
}

func (b *forkBranch) Record(cb driver.CmdBuffer, recycled any) (Poll, []driver.Destroyer) {
	s := b.state
	s.recTurn++
	if s.recTurn == s.n {
		s.poll, s.retained = s.inner.Record(cb, recycled)
		s.recTurn = 0
		return s.poll, s.retained
	}
	return Pending(), nil
}
