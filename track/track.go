// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package track records the most recent GPU access made to each
// tracked buffer or image, so that package stage can fold successive
// accesses into barriers instead of serializing every operation.
//
// gviegas-neo3 assumes a single implicit queue and has no equivalent
// package; this is new code built directly on driver/core.go's
// Sync/Access/Layout vocabulary, in the same flat-struct,
// explicit-field style used throughout that package.
package track

import "github.com/gviegas/vdbgfx/driver"

// Record is the last-known access state of one tracked resource.
type Record struct {
	Stages   driver.Sync
	Access   driver.Access
	Layout   driver.Layout // meaningful for images only
	Family   driver.QueueFamily
	Timeline uint64 // timeline index at which this access was recorded
}

// Tracker holds the last Record for every resource it has seen.
// Resources are identified by the driver.Buffer or driver.Image value
// itself (both interfaces wrapping comparable pointer types).
type Tracker struct {
	records map[any]Record
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{records: make(map[any]Record)}
}

// Get returns the last recorded access to resource, if any.
func (t *Tracker) Get(resource any) (Record, bool) {
	r, ok := t.records[resource]
	return r, ok
}

// Set stores the access state for resource, replacing any previous
// entry.
func (t *Tracker) Set(resource any, r Record) {
	t.records[resource] = r
}

// Forget removes resource from the tracker, for use when a resource
// is destroyed and its GPU identity may be reused by an unrelated
// allocation.
func (t *Tracker) Forget(resource any) {
	delete(t.records, resource)
}
