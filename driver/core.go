// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Usage is a mask of buffer/image usage flags.
type Usage int

// Usage flags.
const (
	UCopySrc Usage = 1 << iota
	UCopyDst
	UShaderRead
	UShaderWrite
	UShaderConst
	USparse
)

// Buffer is the interface that defines a linear memory
// range visible to the GPU.
// Buffers back the system/device pair that the block
// allocator carves into fixed-size blocks (see package
// blockalloc), as well as staging ranges used by the SBT
// manager and other upload paths.
type Buffer interface {
	Destroyer

	// Size returns the size in bytes of the buffer.
	Size() int64

	// Usage returns the usage flags the buffer was
	// created with.
	Usage() Usage

	// Visible reports whether the buffer's memory can be
	// mapped for host access.
	Visible() bool

	// Bytes returns the mapped host view of the buffer.
	// It panics if Visible returns false.
	Bytes() []byte
}

// PixelFmt identifies an image's pixel format.
type PixelFmt int

// A representative subset of pixel formats. Concrete
// drivers may support additional formats.
const (
	FInvalid PixelFmt = iota
	FRGBA8
	FRGBA8sRGB
	FBGRA8
	FRGBA16F
	FR32F
	FD16Unorm
	FD32F
)

// Dim3D describes a three-dimensional extent.
type Dim3D struct{ Width, Height, Depth int }

// Off3D describes a three-dimensional offset.
type Off3D struct{ X, Y, Z int }

// ImageSubresource identifies a single mip level/array
// layer pair of an image.
type ImageSubresource struct {
	Layer int
	Level int
}

// Image is the interface that defines GPU-resident pixel
// data, possibly backed by sparse memory.
type Image interface {
	Destroyer

	PixelFmt() PixelFmt
	Dim3D() Dim3D
	Layers() int
	Levels() int
	Usage() Usage

	// Sparse reports whether the image was created with
	// sparse residency, in which case its memory must be
	// bound explicitly through Queue.BindSparse before
	// any subresource is addressed.
	Sparse() bool
}

// ImageView is the interface that defines a view into an
// image, restricted to a given subresource range.
type ImageView interface {
	Destroyer

	Image() Image
}

// BufferCopy describes the parameters of a copy command
// that copies data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy describes the parameters of a copy command
// that copies data from one image to another.
type ImageCopy struct {
	From      Image
	FromOff   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToOff     Off3D
	ToLayer   int
	ToLevel   int
	Size      Dim3D
	Layers    int
}

// BufImgCopy describes the parameters of a copy command
// that copies data between a buffer and an image.
type BufImgCopy struct {
	Buf     Buffer
	BufOff  int64
	Stride  [2]int64
	Img     Image
	ImgOff  Off3D
	Layer   int
	Level   int
	Size    Dim3D
}

// Sync is the type of a pipeline synchronization scope.
// It names the GPU pipeline stages a barrier must order
// against, independent of the memory access performed in
// those stages (see Access).
type Sync int

// Synchronization scopes.
const (
	SCopy Sync = 1 << iota
	SCompute
	SRayTracing
	SSparseBind
	SHost
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
// Accesses are tagged read or write by the Read/Write
// predicates; the stage context (package stage) uses the
// tag to classify transitions as WaW/WaR/RaW/RaR.
type Access int

// Memory access scopes.
const (
	AShaderRead Access = 1 << iota
	AShaderWrite
	ATransferRead
	ATransferWrite
	AUniformRead
	AHostRead
	AHostWrite
	AAccelStructRead
	AAccelStructWrite
	ANone Access = 0
)

const writeAccessMask = AShaderWrite | ATransferWrite | AHostWrite | AAccelStructWrite

// Write reports whether a is (or contains) a write access.
func (a Access) Write() bool { return a&writeAccessMask != 0 }

// Layout is the type of an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LGeneral
	LTransferSrc
	LTransferDst
	LShaderRead
	LPresent
)

// AccessInfo describes one stage+access occurrence tagged as
// a read or a write, as consumed by the tracking record
// (package track) and folded by the stage context
// (package stage).
type AccessInfo struct {
	Stages Sync
	Access Access
}

// Write reports whether the access is a write.
func (a AccessInfo) Write() bool { return a.Access.Write() }

// Barrier represents a global (non-image, non-buffer
// specific) synchronization barrier.
type Barrier struct {
	SrcStages Sync
	DstStages Sync
	SrcAccess Access
	DstAccess Access
}

// ImageBarrier represents a synchronization barrier scoped
// to a single image subresource, optionally also
// performing a layout transition and/or a queue family
// ownership transfer.
type ImageBarrier struct {
	Barrier
	Image        Image
	Sub          ImageSubresource
	LayoutBefore Layout
	LayoutAfter  Layout
	SrcFamily    QueueFamily
	DstFamily    QueueFamily
}

// BufferBarrier represents a synchronization barrier
// scoped to a single buffer, used for queue family
// ownership transfers.
type BufferBarrier struct {
	Barrier
	Buffer    Buffer
	Offset    int64
	Size      int64
	SrcFamily QueueFamily
	DstFamily QueueFamily
}

// ShaderCode is the interface that defines a compiled
// shader binary for use in a pipeline stage.
type ShaderCode interface {
	Destroyer
}

// Stage is a mask of programmable shader stages.
type Stage int

// Shader stages.
const (
	SGeneric Stage = 1 << iota
	SRaygen
	SMiss
	SClosestHit
	SAnyHit
	SIntersection
	SCallable
)

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	DBuffer DescType = iota
	DImage
	DConstant
	DTexture
	DSampler
	DAccelStruct
)

// Descriptor describes a single binding for use in
// shaders.
type Descriptor struct {
	Type   DescType
	Stages Stage
	Nr     int
	Len    int
}

// DescHeap is the interface that defines a set of
// descriptors for use in a pipeline.
type DescHeap interface {
	Destroyer

	New(n int) error
	SetBuffer(cpy, nr, start int, buf []Buffer, off, size []int64)
	SetImage(cpy, nr, start int, iv []ImageView)
	Count() int
}

// DescTable is the interface that binds a number of
// descriptor heaps to a pipeline.
type DescTable interface {
	Destroyer
}

// Pipeline is the interface that defines a compute or
// ray tracing pipeline. Pipeline construction (shader
// compilation, SBT group layout) is outside this
// package's scope; package sbt consumes the handle to
// describe per-pipeline dispatch.
type Pipeline interface {
	Destroyer

	// SBTStride returns the byte stride of a single
	// shader record in this pipeline's shader binding
	// table, as reported by the implementation.
	SBTStride() int64

	// SBTAlign returns the required base alignment, in
	// bytes, of the shader binding table region handed
	// to a trace-rays dispatch.
	SBTAlign() int64

	// SBTHandleSize returns the size, in bytes, of the
	// opaque shader group handle written at the start of
	// each shader record.
	SBTHandleSize() int64

	// GroupHandle returns the opaque shader group handle
	// for shader group index i.
	GroupHandle(i int) []byte
}

// CmdBuffer is the interface that defines a command
// buffer bound to a single queue family.
// Commands are recorded into command buffers and later
// submitted to a Queue for execution. Recording is split
// into logical blocks:
//
// To record copy commands:
//	1. call BeginBlit
//	2. call Copy*/Fill commands
//	3. call EndBlit
//
// To record compute/ray tracing commands:
//	1. call BeginWork
//	2. call Set*/Dispatch/TraceRays commands
//	3. call EndWork
//
// Barrier and Transition may be called at any point
// between Begin and End, outside of a Begin*/End* block.
type CmdBuffer interface {
	Destroyer

	Family() QueueFamily

	// Begin prepares the command buffer for recording.
	Begin() error

	// BeginWork begins compute/ray tracing work.
	BeginWork()

	// EndWork ends the current compute/ray tracing work.
	EndWork()

	// BeginBlit begins data transfer.
	BeginBlit()

	// EndBlit ends the current data transfer.
	EndBlit()

	SetPipeline(pl Pipeline)
	SetDescTable(table DescTable, start int, heapCopy []int)

	// Dispatch dispatches compute thread groups.
	Dispatch(grpCountX, grpCountY, grpCountZ int)

	// TraceRays dispatches a ray tracing pipeline using
	// the given shader binding table regions (raygen,
	// miss, hit, callable), each a byte range within a
	// buffer addressed by device address.
	TraceRays(raygen, miss, hit, callable SBTRegion, width, height, depth int)

	CopyBuffer(param *BufferCopy)
	CopyImage(param *ImageCopy)
	CopyBufToImg(param *BufImgCopy)
	CopyImgToBuf(param *BufImgCopy)
	Fill(buf Buffer, off int64, value byte, size int64)

	// Barrier inserts global barriers in the command
	// buffer.
	Barrier(b []Barrier)

	// ImageBarrier inserts per-image barriers, optionally
	// performing layout transitions and/or queue family
	// release/acquire operations.
	ImageBarrier(b []ImageBarrier)

	// BufferBarrier inserts per-buffer barriers, used for
	// queue family release/acquire operations.
	BufferBarrier(b []BufferBarrier)

	// End ends command recording and prepares the command
	// buffer for submission.
	End() error

	// Reset discards all recorded commands.
	Reset() error
}

// SBTRegion addresses a range of a buffer holding shader
// records for one shader group kind, as handed to
// CmdBuffer.TraceRays.
type SBTRegion struct {
	Buf    Buffer
	Off    int64
	Stride int64
	Size   int64
}

// Limits reports implementation-defined limits relevant
// to the components in this module.
type Limits struct {
	MaxSparseBlockSize    int64
	MaxStorageBufferSize  int64
	SBTHandleSize         int64
	SBTHandleAlign        int64
	SBTBaseAlign          int64
}
