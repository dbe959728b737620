// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import "errors"

// ErrNoQueue means that no queue of the requested kind
// could be found.
var ErrNoQueue = errors.New("driver: no suitable queue found")

// QueueFamily identifies a set of queues that share the
// same capabilities and the same queue family index, as
// reported by the implementation.
// A command buffer and the pools/allocators it draws from
// are bound to a single QueueFamily for their lifetime;
// moving a resource to a different family requires an
// explicit release/acquire pair of barriers (see
// ImageBarrier and BufferBarrier).
type QueueFamily struct {
	// Index is the implementation-defined family index.
	Index int

	// Compute reports whether queues in this family accept
	// compute and ray tracing dispatches.
	Compute bool

	// Transfer reports whether queues in this family accept
	// copy commands and sparse binding operations.
	Transfer bool

	// Present reports whether queues in this family can
	// present to a Swapchain.
	Present bool
}

// SemaphoreKind distinguishes binary from timeline
// semaphores.
type SemaphoreKind int

// Semaphore kinds.
const (
	// SBinary semaphores are signaled and waited exactly
	// once per use; they carry no value.
	SBinary SemaphoreKind = iota

	// STimeline semaphores carry a monotonically
	// increasing uint64 value and may be waited on
	// multiple times for the same signal.
	STimeline
)

// Semaphore is the interface that defines a GPU-side
// synchronization primitive used to order work across
// queue submissions, including across different queues.
type Semaphore interface {
	Destroyer

	Kind() SemaphoreKind

	// Value returns the current value of a timeline
	// semaphore. It panics if Kind is SBinary.
	Value() (uint64, error)

	// Wait blocks the calling goroutine until the
	// semaphore's value reaches at least val (for
	// STimeline) or is signaled (for SBinary, val is
	// ignored).
	Wait(val uint64) error

	// Signal sets a timeline semaphore's value from the
	// host. It panics if Kind is SBinary.
	Signal(val uint64) error
}

// Fence is the interface that defines a GPU-to-host
// synchronization primitive, signaled upon completion of
// a queue submission.
type Fence interface {
	Destroyer

	// Signaled reports whether the fence is currently
	// signaled, without blocking.
	Signaled() (bool, error)

	// Wait blocks until the fence is signaled.
	Wait() error

	// Reset clears the fence's signaled state. The fence
	// must not be associated with a pending submission.
	Reset() error
}

// WaitPair associates a semaphore wait with the pipeline
// stages of the waiting work that depend on it.
type WaitPair struct {
	Sem    Semaphore
	Value  uint64 // ignored for SBinary
	Stages Sync
}

// SignalPair associates a semaphore signal with the
// pipeline stages of the signaling work that must
// complete beforehand.
type SignalPair struct {
	Sem    Semaphore
	Value  uint64 // ignored for SBinary
	Stages Sync
}

// SubmitInfo describes a batch of command buffers to
// execute on a Queue, together with the semaphores that
// gate and follow its execution.
type SubmitInfo struct {
	CmdBuffers []CmdBuffer
	Waits      []WaitPair
	Signals    []SignalPair
}

// SparseImageRange describes a region of a sparse image's
// mip tail or a single resource-tile aligned region.
type SparseImageRange struct {
	Sub    ImageSubresource
	Off    Off3D
	Extent Dim3D
}

// SparseBind describes a single bind operation, mapping a
// memory block (identified by an opaque handle managed by
// the implementation) to a range of a sparse buffer or
// image.
type SparseBind struct {
	// Img is non-nil for an image opaque/tile bind; Buf is
	// non-nil for a buffer bind. Exactly one must be set.
	Img    Image
	ImgRng SparseImageRange
	Buf    Buffer
	BufOff int64

	// MemHandle identifies the device memory block backing
	// this range, as returned by GPU.NewSparseMemory. A nil
	// handle unbinds the range.
	MemHandle any
	MemOff    int64
	Size      int64
}

// BindSparseInfo describes a batch of sparse (un)bind
// operations together with the semaphores that gate and
// follow it.
type BindSparseInfo struct {
	Binds   []SparseBind
	Waits   []Semaphore
	Signals []Semaphore
}

// Queue is the interface that defines a single GPU queue
// belonging to a QueueFamily, used to submit command
// buffers, sparse bind batches and present operations.
// Queue's methods are not safe for concurrent use by
// multiple goroutines; callers external to this module
// are expected to serialize access to a given Queue (see
// package submit, which owns this responsibility for the
// command-graph execution core).
type Queue interface {
	Family() QueueFamily

	// Submit submits a batch of SubmitInfo for execution,
	// signaling fence (which may be nil) upon completion
	// of the entire batch.
	Submit(batch []SubmitInfo, fence Fence) error

	// BindSparse submits a batch of sparse bind operations.
	BindSparse(batch []BindSparseInfo, fence Fence) error

	// Present presents the given swapchain image, waiting
	// on the given semaphores beforehand.
	Present(sc Swapchain, index int, waits []Semaphore) error

	// WaitIdle blocks until all work submitted to the
	// queue has completed.
	WaitIdle() error
}

// SparseMemory is a single block-sized memory object bound
// to a sparse buffer or image range through Queue.BindSparse.
// Package blockalloc is the only intended caller of
// GPU.NewSparseMemory.
type SparseMemory interface {
	Destroyer
}

// GPU is the interface that defines a single GPU device
// instance, exposing all other interfaces defined by this
// package as factory methods.
type GPU interface {
	// Queues returns the queue families exposed by the
	// device, and the queues available in each.
	Queues() [][]Queue

	NewCmdBuffer(fam QueueFamily) (CmdBuffer, error)
	NewShaderCode(code []byte) (ShaderCode, error)
	NewDescHeap(desc []Descriptor) (DescHeap, error)
	NewDescTable(heap []DescHeap) (DescTable, error)
	NewPipeline() (Pipeline, error)

	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)
	NewSparseBuffer(size int64, usg Usage) (Buffer, error)
	NewImage(pf PixelFmt, dim Dim3D, layers, levels int, usg Usage) (Image, error)
	NewSparseImage(pf PixelFmt, dim Dim3D, layers, levels int, usg Usage) (Image, error)
	NewSampler() (Destroyer, error)

	NewSemaphore(kind SemaphoreKind) (Semaphore, error)
	NewFence(signaled bool) (Fence, error)

	// NewSparseMemory allocates one MemBlockSize-sized memory
	// object, for binding into a sparse buffer or image
	// through Queue.BindSparse. When visible is true, the
	// memory type is chosen to be host-visible, host-coherent,
	// host-cached and not device-local; when false, it is
	// chosen to be device-local, on the largest device-local
	// heap that satisfies the implementation's sparse
	// residency requirements.
	NewSparseMemory(visible bool) (SparseMemory, error)

	// MemBlockSize returns the granularity, in bytes, of a
	// sparse memory block for the device, as used by
	// package blockalloc.
	MemBlockSize() int64

	Limits() *Limits
}
