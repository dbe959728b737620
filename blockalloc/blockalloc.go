// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package blockalloc implements a sparse-residency GPU block allocator:
// fixed-size blocks carved out of a pair of sparsely-bound buffers (a
// host-visible "system" buffer and a device-local "device" buffer
// occupying the same virtual range), with deferred bind batching and an
// explicit flush that copies dirty byte ranges from system to device
// memory.
//
// Grounded algorithm-for-algorithm on
// original_source/crates/render/src/block_alloc/discrete.rs, using
// driver.Queue.BindSparse/Submit and driver.Fence/Semaphore (see
// driver/queue.go) in place of direct Vulkan calls, and a stable
// uint32 handle (this module's arena-handle convention, also used by
// package nodepool) in place of the original's host pointer.
package blockalloc

import (
	"errors"
	"math"

	"github.com/gviegas/vdbgfx/driver"
)

// Null is the invalid Handle value.
const Null Handle = math.MaxUint32

// Handle identifies a block allocated by Allocator.
type Handle uint32

// ErrInvalidHandle is returned when a Handle passed to DeallocateBlock
// or named in a DirtyRange does not identify a live block.
var ErrInvalidHandle = errors.New("blockalloc: invalid handle")

// ErrOutOfBlocks is returned by AllocateBlock when every block-sized
// offset of the two buffers is already in use.
var ErrOutOfBlocks = errors.New("blockalloc: out of blocks")

type block struct {
	systemMem driver.SparseMemory
	deviceMem driver.SparseMemory
	offset    int64
}

type pendingBind struct {
	offset    int64
	systemMem driver.SparseMemory
	deviceMem driver.SparseMemory
}

// Allocator carves fixed-size blocks out of a system/device buffer
// pair, as described in the package doc comment.
type Allocator struct {
	gpu   driver.GPU
	queue driver.Queue

	blockSize int64
	systemBuf driver.Buffer
	deviceBuf driver.Buffer

	nextOffset  int64
	freeOffsets []int64
	blocks      map[Handle]*block
	nextHandle  Handle

	pendingBinds []pendingBind

	cmdBuf    driver.CmdBuffer
	copyFence driver.Fence
	bindFence driver.Fence
	bindDone  driver.Semaphore
}

// New creates an Allocator over two new sparse buffers of maxTotalSize
// bytes each, using queue for every bind-sparse and submit operation.
// queue's family must accept both transfer and sparse-binding work.
func New(gpu driver.GPU, queue driver.Queue, maxTotalSize int64) (*Allocator, error) {
	deviceBuf, err := gpu.NewSparseBuffer(maxTotalSize, driver.UShaderRead|driver.UShaderWrite|driver.UCopyDst)
	if err != nil {
		return nil, err
	}
	systemBuf, err := gpu.NewSparseBuffer(maxTotalSize, driver.UCopySrc)
	if err != nil {
		deviceBuf.Destroy()
		return nil, err
	}
	cmdBuf, err := gpu.NewCmdBuffer(queue.Family())
	if err != nil {
		deviceBuf.Destroy()
		systemBuf.Destroy()
		return nil, err
	}
	copyFence, err := gpu.NewFence(true)
	if err != nil {
		return nil, err
	}
	bindFence, err := gpu.NewFence(true)
	if err != nil {
		return nil, err
	}
	bindDone, err := gpu.NewSemaphore(driver.SBinary)
	if err != nil {
		return nil, err
	}
	return &Allocator{
		gpu:       gpu,
		queue:     queue,
		blockSize: gpu.MemBlockSize(),
		systemBuf: systemBuf,
		deviceBuf: deviceBuf,
		blocks:    make(map[Handle]*block),
		cmdBuf:    cmdBuf,
		copyFence: copyFence,
		bindFence: bindFence,
		bindDone:  bindDone,
	}, nil
}

// SystemBuffer returns the host-visible buffer blocks are written
// through prior to a Flush.
func (a *Allocator) SystemBuffer() driver.Buffer { return a.systemBuf }

// DeviceBuffer returns the device-local buffer blocks are read from
// by shader dispatches, kept current by Flush.
func (a *Allocator) DeviceBuffer() driver.Buffer { return a.deviceBuf }

// Offset returns h's byte offset into both SystemBuffer and
// DeviceBuffer. It is the only correct way to locate a block's bytes:
// resource offsets are reused by AllocateBlock after a DeallocateBlock,
// so a Handle's offset need not match its allocation order.
func (a *Allocator) Offset(h Handle) (int64, error) {
	b, ok := a.blocks[h]
	if !ok {
		return 0, ErrInvalidHandle
	}
	return b.offset * a.blockSize, nil
}

// BlockBytes returns the byte slice of SystemBuffer backing h, sized to
// one block.
func (a *Allocator) BlockBytes(h Handle) ([]byte, error) {
	off, err := a.Offset(h)
	if err != nil {
		return nil, err
	}
	return a.systemBuf.Bytes()[off : off+a.blockSize], nil
}

// AllocateBlock reserves a resource offset (preferring a freed one)
// and allocates a system/device memory pair for it. If no bind is
// currently in flight, the pair is bound immediately; otherwise the
// bind is deferred to the next Flush. It returns ErrOutOfBlocks when no
// free offset is left and the next offset would end past the buffers.
func (a *Allocator) AllocateBlock() (Handle, error) {
	if len(a.freeOffsets) == 0 && (a.nextOffset+1)*a.blockSize > a.systemBuf.Size() {
		return Null, ErrOutOfBlocks
	}
	offset := a.popFreeOffset()

	systemMem, err := a.gpu.NewSparseMemory(true)
	if err != nil {
		return Null, err
	}
	deviceMem, err := a.gpu.NewSparseMemory(false)
	if err != nil {
		systemMem.Destroy()
		return Null, err
	}

	h := a.nextHandle
	a.nextHandle++
	a.blocks[h] = &block{systemMem: systemMem, deviceMem: deviceMem, offset: offset}

	signaled, err := a.bindFence.Signaled()
	if err != nil {
		return Null, err
	}
	if signaled {
		if err := a.bindFence.Reset(); err != nil {
			return Null, err
		}
		batch := []driver.BindSparseInfo{{Binds: a.bindPair(offset, systemMem, deviceMem)}}
		if err := a.queue.BindSparse(batch, a.bindFence); err != nil {
			return Null, err
		}
	} else {
		a.pendingBinds = append(a.pendingBinds, pendingBind{offset, systemMem, deviceMem})
	}
	return h, nil
}

func (a *Allocator) popFreeOffset() int64 {
	if n := len(a.freeOffsets); n > 0 {
		o := a.freeOffsets[n-1]
		a.freeOffsets = a.freeOffsets[:n-1]
		return o
	}
	o := a.nextOffset
	a.nextOffset++
	return o
}

func (a *Allocator) bindPair(offset int64, systemMem, deviceMem driver.SparseMemory) []driver.SparseBind {
	return []driver.SparseBind{
		{Buf: a.systemBuf, BufOff: offset * a.blockSize, MemHandle: systemMem, Size: a.blockSize},
		{Buf: a.deviceBuf, BufOff: offset * a.blockSize, MemHandle: deviceMem, Size: a.blockSize},
	}
}

// DeallocateBlock frees h's memory and releases its resource offset
// for reuse. If h held the highest allocated offset, the
// allocator's bump pointer is retracted instead of growing the free
// list, matching the original's "shrink the common case" behavior.
func (a *Allocator) DeallocateBlock(h Handle) error {
	b, ok := a.blocks[h]
	if !ok {
		return ErrInvalidHandle
	}
	b.systemMem.Destroy()
	b.deviceMem.Destroy()
	delete(a.blocks, h)
	if b.offset == a.nextOffset-1 {
		a.nextOffset--
	} else {
		a.freeOffsets = append(a.freeOffsets, b.offset)
	}
	return nil
}

// DirtyRange names a byte range, local to one block, that Flush must
// copy from the system buffer to the device buffer.
type DirtyRange struct {
	Block Handle
	Start int64
	End   int64
}

// Flush drains any pending binds (submitting them as a single batch
// signaling bindDone) and then, for every range in dirty, copies the
// corresponding bytes from the system buffer to the device buffer.
// The copy submission waits on bindDone only when a bind was submitted
// in this same call, guaranteeing copies never reference memory whose
// bind is still in flight.
func (a *Allocator) Flush(dirty []DirtyRange) error {
	needsBinding := len(a.pendingBinds) > 0
	if needsBinding {
		if err := a.bindFence.Reset(); err != nil {
			return err
		}
		binds := make([]driver.SparseBind, 0, 2*len(a.pendingBinds))
		for _, p := range a.pendingBinds {
			binds = append(binds, a.bindPair(p.offset, p.systemMem, p.deviceMem)...)
		}
		batch := []driver.BindSparseInfo{{Binds: binds, Signals: []driver.Semaphore{a.bindDone}}}
		if err := a.queue.BindSparse(batch, a.bindFence); err != nil {
			return err
		}
		a.pendingBinds = a.pendingBinds[:0]
	}

	copies := make([]driver.BufferCopy, 0, len(dirty))
	for _, r := range dirty {
		b, ok := a.blocks[r.Block]
		if !ok {
			return ErrInvalidHandle
		}
		loc := b.offset*a.blockSize + r.Start
		copies = append(copies, driver.BufferCopy{
			From: a.systemBuf, FromOff: loc,
			To: a.deviceBuf, ToOff: loc,
			Size: r.End - r.Start,
		})
	}
	if len(copies) == 0 {
		return nil
	}

	if err := a.cmdBuf.Reset(); err != nil {
		return err
	}
	if err := a.cmdBuf.Begin(); err != nil {
		return err
	}
	a.cmdBuf.BeginBlit()
	for i := range copies {
		a.cmdBuf.CopyBuffer(&copies[i])
	}
	a.cmdBuf.EndBlit()
	if err := a.cmdBuf.End(); err != nil {
		return err
	}

	if err := a.copyFence.Reset(); err != nil {
		return err
	}
	submit := driver.SubmitInfo{CmdBuffers: []driver.CmdBuffer{a.cmdBuf}}
	if needsBinding {
		submit.Waits = []driver.WaitPair{{Sem: a.bindDone, Stages: driver.SCopy}}
	}
	return a.queue.Submit([]driver.SubmitInfo{submit}, a.copyFence)
}

// CanFlush reports whether neither a bind nor a copy submitted by a
// previous Flush is still in flight.
func (a *Allocator) CanFlush() (bool, error) {
	copyDone, err := a.copyFence.Signaled()
	if err != nil {
		return false, err
	}
	bindDone, err := a.bindFence.Signaled()
	if err != nil {
		return false, err
	}
	return copyDone && bindDone, nil
}

// Stats reports allocator occupancy, for diagnostics and tests.
type Stats struct {
	BlocksAllocated int
	FreeOffsets     int
	PendingBinds    int
}

// Stats returns a snapshot of the allocator's bookkeeping state.
func (a *Allocator) Stats() Stats {
	return Stats{
		BlocksAllocated: len(a.blocks),
		FreeOffsets:     len(a.freeOffsets),
		PendingBinds:    len(a.pendingBinds),
	}
}
