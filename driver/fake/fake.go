// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package fake implements an in-memory driver.GPU test double.
// The teacher module's own driver tests (gviegas-neo3/driver/*_test.go)
// run exclusively against real Vulkan hardware via driver/vk; this
// package exists because the command-graph execution core and the
// block allocator need a GPU to drive in tests that run without one.
// It implements every interface in package driver well enough to
// exercise allocation, submission and synchronization bookkeeping; it
// performs no actual rendering or compute work.
package fake

import (
	"sync"

	"github.com/gviegas/vdbgfx/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver is the driver.Driver implementation backing this package's
// in-memory GPU. It registers itself under the name "fake" on import,
// so callers that select a device through driver.Drivers/Register
// rather than constructing a GPU directly (the command-graph tests and
// cmd/vdbgfx-bench do both) can reach the same test double either way.
type Driver struct {
	gpu *GPU
}

func (d *Driver) Name() string { return "fake" }

// Open returns the fake GPU, constructing it on first call as New
// does. Subsequent calls return the same instance.
func (d *Driver) Open() (driver.GPU, error) {
	if d.gpu == nil {
		d.gpu = New()
	}
	return d.gpu, nil
}

// Close releases the open GPU, if any, so a later Open constructs a
// fresh one.
func (d *Driver) Close() { d.gpu = nil }

// GPU is an in-memory driver.GPU.
type GPU struct {
	mu        sync.Mutex
	queues    [][]driver.Queue
	blockSize int64
	limits    driver.Limits
	nextMem   int
}

// New returns a fake GPU with one queue family supporting compute,
// transfer and present, holding a single queue.
func New() *GPU {
	g := &GPU{
		blockSize: 64 * 1024,
		limits: driver.Limits{
			MaxSparseBlockSize:   64 * 1024,
			MaxStorageBufferSize: 1 << 30,
			SBTHandleSize:        32,
			SBTHandleAlign:       32,
			SBTBaseAlign:         64,
		},
	}
	fam := driver.QueueFamily{Index: 0, Compute: true, Transfer: true, Present: true}
	g.queues = [][]driver.Queue{{&Queue{gpu: g, fam: fam}}}
	return g
}

func (g *GPU) Queues() [][]driver.Queue { return g.queues }

func (g *GPU) NewCmdBuffer(fam driver.QueueFamily) (driver.CmdBuffer, error) {
	return &CmdBuffer{fam: fam}, nil
}

func (g *GPU) NewShaderCode(code []byte) (driver.ShaderCode, error) { return &destroyed{}, nil }

func (g *GPU) NewDescHeap(desc []driver.Descriptor) (driver.DescHeap, error) {
	return &DescHeap{desc: desc}, nil
}

func (g *GPU) NewDescTable(heap []driver.DescHeap) (driver.DescTable, error) {
	return &destroyed{}, nil
}

func (g *GPU) NewPipeline() (driver.Pipeline, error) {
	return &Pipeline{stride: 64, align: 64, handleSize: 32}, nil
}

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	b := &Buffer{size: size, usage: usg, visible: visible, data: make([]byte, size)}
	return b, nil
}

func (g *GPU) NewSparseBuffer(size int64, usg driver.Usage) (driver.Buffer, error) {
	n := size / g.blockSize
	if size%g.blockSize != 0 {
		n++
	}
	// The fake has no separate device-memory address space to copy
	// through, unlike a real sparse buffer backed by non-mapped device
	// memory; every sparse buffer's backing slice is exposed via Bytes
	// so tests can inspect both sides of a flush directly.
	return &Buffer{
		size:    size,
		usage:   usg | driver.USparse,
		visible: true,
		sparse:  true,
		data:    make([]byte, size),
		binds:   make([]any, n),
	}, nil
}

func (g *GPU) NewImage(pf driver.PixelFmt, dim driver.Dim3D, layers, levels int, usg driver.Usage) (driver.Image, error) {
	return &Image{pf: pf, dim: dim, layers: layers, levels: levels, usage: usg}, nil
}

func (g *GPU) NewSparseImage(pf driver.PixelFmt, dim driver.Dim3D, layers, levels int, usg driver.Usage) (driver.Image, error) {
	return &Image{pf: pf, dim: dim, layers: layers, levels: levels, usage: usg | driver.USparse, sparse: true}, nil
}

func (g *GPU) NewSampler() (driver.Destroyer, error) { return &destroyed{}, nil }

func (g *GPU) NewSemaphore(kind driver.SemaphoreKind) (driver.Semaphore, error) {
	return &Semaphore{kind: kind}, nil
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	return &Fence{signaled: signaled}, nil
}

func (g *GPU) NewSparseMemory(visible bool) (driver.SparseMemory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMem++
	return &Memory{id: g.nextMem, visible: visible, bytes: make([]byte, g.blockSize)}, nil
}

func (g *GPU) MemBlockSize() int64 { return g.blockSize }

func (g *GPU) Limits() *driver.Limits { return &g.limits }

// Memory is an in-memory driver.SparseMemory.
type Memory struct {
	destroyed
	id      int
	visible bool
	bytes   []byte
}

type destroyed struct{ destroyed bool }

func (d *destroyed) Destroy() { d.destroyed = true }
