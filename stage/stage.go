// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package stage folds the resource accesses declared by a command
// future's context step into the minimal set of barriers needed to
// order them against whatever last touched the same resources, using
// a write-after-write/write-after-read/read-after-write/read-after-read
// table keyed by access kind, plus layout and queue-family changes.
//
// New code (see package track's doc comment for why no teacher
// analogue exists), using driver.Barrier/ImageBarrier/BufferBarrier as
// its output shape.
package stage

import (
	"errors"

	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/track"
)

// ErrAliasedWrite is returned by Record when two accesses declared in
// the same step write the same resource. Per the design decision
// recorded in DESIGN.md (Open Question 2), this is
// always forbidden rather than resolved by ordering.
var ErrAliasedWrite = errors.New("stage: multiple writes to the same resource within one step")

// Access describes a single resource access declared against a
// Context. Exactly one of Buffer or Image must be set.
type Access struct {
	Buffer driver.Buffer
	Image  driver.Image

	Stages driver.Sync
	Access driver.Access
	Layout driver.Layout // ignored when Buffer is set
	Family driver.QueueFamily

	Timeline uint64
}

func (a Access) key() any {
	if a.Image != nil {
		return a.Image
	}
	return a.Buffer
}

// Context accumulates the accesses declared for one step of a command
// future and, on Flush, folds them against the tracker's last-known
// state into barriers.
type Context struct {
	tracker *track.Tracker
	pending []Access
}

// NewContext returns a Context that resolves transitions against t.
func NewContext(t *track.Tracker) *Context {
	return &Context{tracker: t}
}

// Record declares one resource access for the step in progress. It
// reports ErrAliasedWrite if a is a write and some earlier access
// recorded in the same step (not yet flushed) touches the same
// resource with a write.
func (c *Context) Record(a Access) error {
	k := a.key()
	for _, p := range c.pending {
		if p.key() == k && p.Access.Write() && a.Access.Write() {
			return ErrAliasedWrite
		}
	}
	c.pending = append(c.pending, a)
	return nil
}

// Transition is a cross-queue semaphore handoff point detected while
// folding a step's accesses: resource last touched on Family at
// Timeline, now also touched by the current step's queue family.
type Transition struct {
	Resource any
	From     driver.QueueFamily
	To       driver.QueueFamily
	SrcStages driver.Sync
	DstStages driver.Sync
}

// Flush folds every access recorded since the last Flush into
// barriers, updates the tracker, and returns the result. The pending
// list is cleared on return.
func (c *Context) Flush() (globals []driver.Barrier, images []driver.ImageBarrier, buffers []driver.BufferBarrier, transitions []Transition) {
	for _, a := range c.pending {
		k := a.key()
		prev, had := c.tracker.Get(k)
		if had {
			b, special, none := foldBarrier(prev, a)
			if !none {
				if special {
					if a.Image != nil {
						images = append(images, driver.ImageBarrier{
							Barrier:      b,
							Image:        a.Image,
							LayoutBefore: prev.Layout,
							LayoutAfter:  a.Layout,
							SrcFamily:    prev.Family,
							DstFamily:    a.Family,
						})
					} else {
						buffers = append(buffers, driver.BufferBarrier{
							Barrier:   b,
							Buffer:    a.Buffer,
							SrcFamily: prev.Family,
							DstFamily: a.Family,
						})
					}
				} else {
					globals = append(globals, b)
				}
			}
			if prev.Family != a.Family {
				transitions = append(transitions, Transition{
					Resource:  k,
					From:      prev.Family,
					To:        a.Family,
					SrcStages: prev.Stages,
					DstStages: a.Stages,
				})
			}
		}
		c.tracker.Set(k, track.Record{
			Stages:   a.Stages,
			Access:   a.Access,
			Layout:   a.Layout,
			Family:   a.Family,
			Timeline: a.Timeline,
		})
	}
	c.pending = c.pending[:0]
	return
}

// foldBarrier computes the barrier (if any) needed to order one access
// against its resource's previous recorded state.
func foldBarrier(prev track.Record, a Access) (b driver.Barrier, special, none bool) {
	if a.Image != nil {
		special = prev.Layout != a.Layout || prev.Family != a.Family
	} else {
		special = prev.Family != a.Family
	}
	switch {
	case special:
		b = driver.Barrier{
			SrcStages: prev.Stages | a.Stages,
			DstStages: prev.Stages | a.Stages,
			SrcAccess: prev.Access | a.Access,
			DstAccess: prev.Access | a.Access,
		}
	case prev.Access.Write() && a.Access.Write(): // WaW
		b = driver.Barrier{SrcStages: prev.Stages, DstStages: a.Stages, SrcAccess: prev.Access, DstAccess: a.Access}
	case !prev.Access.Write() && a.Access.Write(): // WaR: execution barrier only
		b = driver.Barrier{SrcStages: prev.Stages, DstStages: a.Stages}
	case prev.Access.Write() && !a.Access.Write(): // RaW
		b = driver.Barrier{SrcStages: prev.Stages, DstStages: a.Stages, SrcAccess: prev.Access, DstAccess: a.Access}
	default: // RaR
		none = true
	}
	return
}
