// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package fake

import (
	"errors"

	"github.com/gviegas/vdbgfx/driver"
)

// cmd is one recorded operation, replayed synchronously by Queue.Submit.
type cmd struct {
	copyBuf   *driver.BufferCopy
	fill      *fillCmd
	pipeline  driver.Pipeline
	dispatch  *[3]int
}

type fillCmd struct {
	buf   driver.Buffer
	off   int64
	value byte
	size  int64
}

// CmdBuffer is an in-memory driver.CmdBuffer. It replays buffer-to-buffer
// copies and fills against the fake Buffer's backing slice and records
// SetPipeline and Dispatch without executing them; every other command
// (barriers, descriptor tables, ray tracing, image copies) is accepted
// and discarded. This is sufficient for the command-graph execution
// core's bookkeeping to be exercised end to end.
type CmdBuffer struct {
	destroyed
	fam     driver.QueueFamily
	cmds    []cmd
	working bool
	blit    bool
}

func (c *CmdBuffer) Family() driver.QueueFamily { return c.fam }

func (c *CmdBuffer) Begin() error {
	c.cmds = c.cmds[:0]
	return nil
}

func (c *CmdBuffer) BeginWork() { c.working = true }
func (c *CmdBuffer) EndWork()   { c.working = false }
func (c *CmdBuffer) BeginBlit() { c.blit = true }
func (c *CmdBuffer) EndBlit()   { c.blit = false }

func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	c.cmds = append(c.cmds, cmd{pipeline: pl})
}

func (c *CmdBuffer) SetDescTable(table driver.DescTable, start int, heapCopy []int) {}

func (c *CmdBuffer) Dispatch(x, y, z int) {
	c.cmds = append(c.cmds, cmd{dispatch: &[3]int{x, y, z}})
}

func (c *CmdBuffer) TraceRays(raygen, miss, hit, callable driver.SBTRegion, w, h, d int) {}

func (c *CmdBuffer) CopyBuffer(p *driver.BufferCopy) {
	cp := *p
	c.cmds = append(c.cmds, cmd{copyBuf: &cp})
}

func (c *CmdBuffer) CopyImage(p *driver.ImageCopy)       {}
func (c *CmdBuffer) CopyBufToImg(p *driver.BufImgCopy)   {}
func (c *CmdBuffer) CopyImgToBuf(p *driver.BufImgCopy)   {}

func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	c.cmds = append(c.cmds, cmd{fill: &fillCmd{buf, off, value, size}})
}

func (c *CmdBuffer) Barrier(b []driver.Barrier)                   {}
func (c *CmdBuffer) ImageBarrier(b []driver.ImageBarrier)         {}
func (c *CmdBuffer) BufferBarrier(b []driver.BufferBarrier)       {}

func (c *CmdBuffer) End() error { return nil }

func (c *CmdBuffer) Reset() error {
	c.cmds = c.cmds[:0]
	return nil
}

// replay executes the buffer copy/fill commands recorded in c against
// their fake Buffer backing stores, in order.
func (c *CmdBuffer) replay() error {
	for _, op := range c.cmds {
		switch {
		case op.copyBuf != nil:
			p := op.copyBuf
			from, ok1 := p.From.(*Buffer)
			to, ok2 := p.To.(*Buffer)
			if !ok1 || !ok2 {
				return errors.New("fake: CopyBuffer with non-fake buffer")
			}
			copy(to.data[p.ToOff:p.ToOff+p.Size], from.data[p.FromOff:p.FromOff+p.Size])
		case op.fill != nil:
			f := op.fill
			buf, ok := f.buf.(*Buffer)
			if !ok {
				return errors.New("fake: Fill with non-fake buffer")
			}
			for i := f.off; i < f.off+f.size; i++ {
				buf.data[i] = f.value
			}
		}
	}
	return nil
}
