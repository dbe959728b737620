// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package sbt

import (
	"sort"

	"github.com/gviegas/vdbgfx/cmdfuture"
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/stage"
)

// GetSBTBuffer returns a command future yielding the buffer a
// ray tracing dispatch should bind as its shader binding table.
//
// When the Manager was built with unified set, entries are written
// directly into the host-visible buffer shaders read from, and the
// returned future completes on its first Record call with no commands
// recorded. Otherwise, entries are written into a host-visible staging
// buffer, then a command future copies either the whole buffer (first
// call, or after growth) or the merged byte ranges of every slot
// touched since the last call into a device-local mirror.
func (m *Manager) GetSBTBuffer(gpu driver.GPU) (cmdfuture.Future, error) {
	m.mu.Lock()

	expected := m.entrySize()
	fullRewrite := m.frame == nil || m.frame.Size() != expected

	var dirtyIDs []int
	if fullRewrite {
		buf, err := gpu.NewBuffer(expected, true, driver.UCopySrc|driver.UShaderRead)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		if m.frame != nil {
			delete(m.changeset, m.frame)
		}
		m.frame = buf
		m.changeset[buf] = make(map[int]struct{})
		for i := range m.slots {
			m.writeEntry(buf.Bytes(), i)
		}
	} else {
		dirty := m.changeset[m.frame]
		for id := range dirty {
			dirtyIDs = append(dirtyIDs, id)
		}
		sort.Ints(dirtyIDs)
		for _, id := range dirtyIDs {
			m.writeEntry(m.frame.Bytes(), id)
		}
		m.changeset[m.frame] = make(map[int]struct{})
	}

	if m.unified {
		frame := m.frame
		m.mu.Unlock()
		return &cmdfuture.Func{
			RecordFn: func(driver.CmdBuffer, any) (cmdfuture.Poll, []driver.Destroyer) {
				return cmdfuture.Done(frame), nil
			},
		}, nil
	}

	deviceRecreate := m.device == nil || m.device.Size() != expected
	if deviceRecreate {
		dbuf, err := gpu.NewBuffer(expected, false, driver.UCopyDst|driver.UShaderRead)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.device = dbuf
	}

	frame, device := m.frame, m.device
	var copies []driver.BufferCopy
	if fullRewrite || deviceRecreate {
		copies = []driver.BufferCopy{{From: frame, To: device, Size: expected}}
	} else {
		copies = mergeCopies(dirtyIDs, m.stride)
		for i := range copies {
			copies[i].From, copies[i].To = frame, device
		}
	}
	m.mu.Unlock()

	return &cmdfuture.Func{
		ContextFn: func(ctx *stage.Context) {
			ctx.Record(stage.Access{Buffer: frame, Stages: driver.SCopy, Access: driver.ATransferRead})
			ctx.Record(stage.Access{Buffer: device, Stages: driver.SCopy, Access: driver.ATransferWrite})
		},
		RecordFn: func(cb driver.CmdBuffer, recycled any) (cmdfuture.Poll, []driver.Destroyer) {
			cb.BeginBlit()
			for _, c := range copies {
				cp := c
				cb.CopyBuffer(&cp)
			}
			cb.EndBlit()
			return cmdfuture.Done(device), nil
		},
	}, nil
}

// mergeCopies turns a sorted-ascending list of dirty slot ids into the
// smallest set of contiguous byte-range copies, each stride bytes per
// id, same offset in both the source and destination buffer.
func mergeCopies(ids []int, stride int64) []driver.BufferCopy {
	if len(ids) == 0 {
		return nil
	}
	var out []driver.BufferCopy
	start := ids[0]
	prev := ids[0]
	flush := func(end int) {
		off := int64(start) * stride
		size := int64(end-start+1) * stride
		out = append(out, driver.BufferCopy{FromOff: off, ToOff: off, Size: size})
	}
	for _, id := range ids[1:] {
		if id == prev+1 {
			prev = id
			continue
		}
		flush(prev)
		start, prev = id, id
	}
	flush(prev)
	return out
}
