// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package sbt manages a deduplicating index of shader binding table
// entries, uploading only the slots that changed since the last
// upload.
//
// No teacher analogue exists (gviegas-neo3 has no ray tracing
// pipeline), so this is new code grounded on
// original_source/crates/rhyolite/src/pipeline/sbt.rs's add/
// get_sbt_buffer, translated from an Arc<Weak>/mpsc-channel handle
// scheme into a mutex-guarded free-list and explicit reference counts,
// since Go has no Drop: callers must call Handle.Release explicitly.
package sbt

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gviegas/vdbgfx/driver"
)

// Entry is one shader binding table record: a hit group selector plus
// a fixed-size inline shader parameter blob, written after the opaque
// shader group handle at the start of every record.
type Entry struct {
	HitgroupIndex int
	Param         [16]byte
}

// Handle references one live Entry slot. Release must be called
// exactly once per Handle (including every one returned by Clone)
// once the caller no longer needs the slot kept alive; the slot
// becomes eligible for reuse once every outstanding Handle has been
// released.
type Handle struct {
	id   int
	Tag  uuid.UUID
	mgr  *Manager
	refs *int32
}

// Clone returns a new Handle referencing the same slot, incrementing
// its reference count.
func (h *Handle) Clone() *Handle {
	h.mgr.mu.Lock()
	defer h.mgr.mu.Unlock()
	*h.refs++
	return &Handle{id: h.id, Tag: uuid.New(), mgr: h.mgr, refs: h.refs}
}

// Release decrements the slot's reference count, freeing it for reuse
// once it reaches zero.
func (h *Handle) Release() {
	h.mgr.mu.Lock()
	defer h.mgr.mu.Unlock()
	*h.refs--
	if *h.refs == 0 {
		h.mgr.release(h.id)
	}
}

type slot struct {
	entry Entry
	refs  int32
}

// Manager deduplicates Entry values by content and tracks, per device
// buffer it has produced, which slots changed since that buffer's last
// upload.
type Manager struct {
	mu sync.Mutex

	pipeline driver.Pipeline
	stride   int64
	unified  bool // true if device and host-visible memory coincide

	slots     []slot
	live      map[Entry]int
	freeSlots []int

	changeset map[driver.Buffer]map[int]struct{}

	frame  driver.Buffer // reused host-visible buffer
	device driver.Buffer // reused device-local mirror; nil when unified
}

// New returns a Manager writing entries against pipeline's shader
// group handles. unified should be true when the device memory backing
// the returned buffer can be mapped directly by the host (so no
// staging copy is needed).
func New(pipeline driver.Pipeline, unified bool) *Manager {
	return &Manager{
		pipeline:  pipeline,
		stride:    pipeline.SBTStride(),
		unified:   unified,
		live:      make(map[Entry]int),
		changeset: make(map[driver.Buffer]map[int]struct{}),
	}
}

// Add returns a Handle for entry, reusing an existing live slot if an
// equal entry is already referenced, reviving a freed slot if one
// still holds equal content, recycling any other freed slot, or
// appending a new one.
func (m *Manager) Add(entry Entry) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.live[entry]; ok {
		m.slots[id].refs++
		return &Handle{id: id, Tag: uuid.New(), mgr: m, refs: &m.slots[id].refs}
	}

	for i, id := range m.freeSlots {
		if m.slots[id].entry == entry {
			m.freeSlots = append(m.freeSlots[:i], m.freeSlots[i+1:]...)
			m.slots[id].refs = 1
			m.live[entry] = id
			return &Handle{id: id, Tag: uuid.New(), mgr: m, refs: &m.slots[id].refs}
		}
	}

	if len(m.freeSlots) > 0 {
		id := m.freeSlots[0]
		m.freeSlots = m.freeSlots[1:]
		m.slots[id] = slot{entry: entry, refs: 1}
		m.live[entry] = id
		m.markDirty(id)
		return &Handle{id: id, Tag: uuid.New(), mgr: m, refs: &m.slots[id].refs}
	}

	id := len(m.slots)
	m.slots = append(m.slots, slot{entry: entry, refs: 1})
	m.live[entry] = id
	m.markDirty(id)
	return &Handle{id: id, Tag: uuid.New(), mgr: m, refs: &m.slots[id].refs}
}

// release is called by Handle.Release once a slot's refcount reaches
// zero; m.mu is already held by the caller.
func (m *Manager) release(id int) {
	delete(m.live, m.slots[id].entry)
	m.freeSlots = append(m.freeSlots, id)
}

func (m *Manager) markDirty(id int) {
	for _, dirty := range m.changeset {
		dirty[id] = struct{}{}
	}
}

// entrySize returns the buffer size needed for the current slot slab,
// sized from its capacity rather than its length (mirroring a Vec's
// growth): appending within existing capacity never forces the SBT
// buffer to be recreated, so most Add calls fall on the cheap
// selective-update path in GetSBTBuffer.
func (m *Manager) entrySize() int64 {
	return int64(cap(m.slots)) * m.stride
}

func (m *Manager) writeEntry(dst []byte, id int) {
	e := m.slots[id].entry
	rec := dst[int64(id)*m.stride : int64(id+1)*m.stride]
	h := m.pipeline.GroupHandle(e.HitgroupIndex)
	hs := m.pipeline.SBTHandleSize()
	copy(rec[:hs], h)
	copy(rec[hs:], e.Param[:])
}
