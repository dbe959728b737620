// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package fake

import (
	"errors"

	"github.com/gviegas/vdbgfx/driver"
)

// Buffer is an in-memory driver.Buffer. Sparse buffers track their
// per-block memory handle in binds, nil meaning unbound.
type Buffer struct {
	destroyed
	size    int64
	usage   driver.Usage
	visible bool
	data    []byte
	sparse  bool
	binds   []any
}

func (b *Buffer) Size() int64         { return b.size }
func (b *Buffer) Usage() driver.Usage { return b.usage }
func (b *Buffer) Visible() bool       { return b.visible }

func (b *Buffer) Bytes() []byte {
	if !b.visible {
		panic("fake: buffer is not host-visible")
	}
	return b.data
}

// Image is an in-memory driver.Image. It carries no pixel storage;
// tests that need to verify copied pixel data should use Buffer.
type Image struct {
	destroyed
	pf     driver.PixelFmt
	dim    driver.Dim3D
	layers int
	levels int
	usage  driver.Usage
	sparse bool
}

func (i *Image) PixelFmt() driver.PixelFmt { return i.pf }
func (i *Image) Dim3D() driver.Dim3D       { return i.dim }
func (i *Image) Layers() int               { return i.layers }
func (i *Image) Levels() int               { return i.levels }
func (i *Image) Usage() driver.Usage       { return i.usage }
func (i *Image) Sparse() bool              { return i.sparse }

// Semaphore is an in-memory driver.Semaphore. Binary semaphores track
// a single pending signal; timeline semaphores track a monotonic
// value. Wait/Signal never actually block, since the fake driver
// executes submissions synchronously.
type Semaphore struct {
	destroyed
	kind    driver.SemaphoreKind
	value   uint64
	pending bool
}

func (s *Semaphore) Kind() driver.SemaphoreKind { return s.kind }

func (s *Semaphore) Value() (uint64, error) {
	if s.kind == driver.SBinary {
		panic("fake: Value called on a binary semaphore")
	}
	return s.value, nil
}

func (s *Semaphore) Wait(val uint64) error {
	if s.kind == driver.SBinary {
		if !s.pending {
			return errors.New("fake: wait on unsignaled binary semaphore")
		}
		s.pending = false
		return nil
	}
	if s.value < val {
		return errors.New("fake: timeline semaphore never reached the requested value")
	}
	return nil
}

func (s *Semaphore) Signal(val uint64) error {
	if s.kind == driver.SBinary {
		panic("fake: Signal called on a binary semaphore")
	}
	s.value = val
	return nil
}

func (s *Semaphore) signalBinary() { s.pending = true }

// Fence is an in-memory driver.Fence.
type Fence struct {
	destroyed
	signaled bool
}

func (f *Fence) Signaled() (bool, error) { return f.signaled, nil }
func (f *Fence) Wait() error             { return nil }

func (f *Fence) Reset() error {
	f.signaled = false
	return nil
}

// DescHeap is an in-memory driver.DescHeap; it records bindings for
// inspection but does not interpret them.
type DescHeap struct {
	destroyed
	desc    []driver.Descriptor
	count   int
	buffers map[int][]driver.Buffer
	images  map[int][]driver.ImageView
}

func (h *DescHeap) New(n int) error {
	h.count = n
	h.buffers = make(map[int][]driver.Buffer)
	h.images = make(map[int][]driver.ImageView)
	return nil
}

func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	h.buffers[nr] = buf
}

func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	h.images[nr] = iv
}

func (h *DescHeap) Count() int { return h.count }

// Pipeline is an in-memory driver.Pipeline with fixed SBT geometry,
// sufficient for exercising package sbt without a real ray tracing
// backend.
type Pipeline struct {
	destroyed
	stride     int64
	align      int64
	handleSize int64
	groups     int
}

func (p *Pipeline) SBTStride() int64     { return p.stride }
func (p *Pipeline) SBTAlign() int64      { return p.align }
func (p *Pipeline) SBTHandleSize() int64 { return p.handleSize }

func (p *Pipeline) GroupHandle(i int) []byte {
	h := make([]byte, p.handleSize)
	for j := range h {
		h[j] = byte(i + 1)
	}
	return h
}
