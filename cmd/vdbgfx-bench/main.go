// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Command vdbgfx-bench exercises the voxel tree, the sparse block
// allocator and the submission compiler end to end against the
// in-memory fake driver, reporting what each did. It performs no
// rendering and opens no real GPU device; it exists for manual
// inspection of the pipeline's behavior.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/gviegas/vdbgfx/blockalloc"
	"github.com/gviegas/vdbgfx/cmdfuture"
	"github.com/gviegas/vdbgfx/driver"
	_ "github.com/gviegas/vdbgfx/driver/fake"
	"github.com/gviegas/vdbgfx/internal/linear"
	"github.com/gviegas/vdbgfx/queuefuture"
	"github.com/gviegas/vdbgfx/stage"
	"github.com/gviegas/vdbgfx/submit"
	"github.com/gviegas/vdbgfx/track"
	"github.com/gviegas/vdbgfx/vdb"
)

var (
	voxels    = flag.Int("voxels", 200, "number of voxels to write through the accessor")
	blocks    = flag.Int("blocks", 8, "number of blocks to allocate in the block allocator")
	seed      = flag.Int64("seed", 1, "seed for the voxel coordinate generator")
	voxelSize = flag.Float64("voxel-size", 0.1, "world-space size of one voxel, for the bounding box report")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if err := runTree(*voxels, *seed, float32(*voxelSize)); err != nil {
		log.Fatalf("vdbgfx-bench: tree: %v", err)
	}
	gpu, err := openGPU()
	if err != nil {
		log.Fatalf("vdbgfx-bench: open: %v", err)
	}
	if err := runBlockAlloc(gpu, *blocks); err != nil {
		log.Fatalf("vdbgfx-bench: blockalloc: %v", err)
	}
	if err := runSubmission(gpu); err != nil {
		log.Fatalf("vdbgfx-bench: submit: %v", err)
	}
}

// treeConfig is a three-level hierarchy covering a 128^3 voxel
// extent: an 8x8x8 root, a 4x4x4 mid level, and 4x4x4 leaves.
func treeConfig() vdb.TreeConfig {
	return vdb.TreeConfig{Levels: []vdb.LevelDesc{
		{Log2: [3]uint{3, 3, 3}},
		{Log2: [3]uint{2, 2, 2}},
		{Log2: [3]uint{2, 2, 2}},
	}}
}

func runTree(n int, seed int64, voxelSize float32) error {
	tr, err := vdb.NewTree(treeConfig(), vdb.NewAttrStore[uint32]())
	if err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(seed))
	acc := vdb.NewAccessor(tr)
	for i := 0; i < n; i++ {
		c := vdb.Coord{rnd.Uint32() % 128, rnd.Uint32() % 128, rnd.Uint32() % 128}
		acc.Set(c, uint32(i+1))
	}
	compacted := acc.End()

	leaves, occupied := 0, 0
	var min, max linear.V3
	first := true
	tr.LeafIter(func(lv vdb.LeafView) bool {
		leaves++
		lv.Occ.IterSetBits(func(int) bool { occupied++; return true })
		origin := linear.V3{float32(lv.Base[0]), float32(lv.Base[1]), float32(lv.Base[2])}
		if first {
			min, max, first = origin, origin, false
			return true
		}
		for a := 0; a < 3; a++ {
			if origin[a] < min[a] {
				min[a] = origin[a]
			}
			if origin[a] > max[a] {
				max[a] = origin[a]
			}
		}
		return true
	})

	var diag linear.V3
	diag.Sub(&max, &min)
	diag.Scale(voxelSize, &diag)
	fmt.Printf("tree: wrote %d voxels, %d leaves touched, %d voxels occupied, accessor compacted %d leaf(s) on End, leaf-origin bounding diagonal %.3f world units\n",
		n, leaves, occupied, compacted, diag.Len())
	return nil
}

// openGPU selects the "fake" driver through the same driver.Register
// registry a real platform backend would populate from its own init
// function, rather than constructing a fake.GPU directly.
func openGPU() (driver.GPU, error) {
	for _, d := range driver.Drivers() {
		if d.Name() == "fake" {
			return d.Open()
		}
	}
	return nil, fmt.Errorf("vdbgfx-bench: no %q driver registered", "fake")
}

func runBlockAlloc(gpu driver.GPU, n int) error {
	q := gpu.Queues()[0][0]
	a, err := blockalloc.New(gpu, q, int64(n)*gpu.MemBlockSize())
	if err != nil {
		return err
	}

	handles := make([]blockalloc.Handle, n)
	for i := range handles {
		h, err := a.AllocateBlock()
		if err != nil {
			return err
		}
		handles[i] = h
	}

	dirty := make([]blockalloc.DirtyRange, 0, n)
	for i, h := range handles {
		b, err := a.BlockBytes(h)
		if err != nil {
			return err
		}
		b[0] = byte(i + 1)
		dirty = append(dirty, blockalloc.DirtyRange{Block: h, Start: 0, End: 1})
	}
	if err := a.Flush(dirty); err != nil {
		return err
	}
	done, err := a.CanFlush()
	if err != nil {
		return err
	}

	stats := a.Stats()
	fmt.Printf("blockalloc: %d block(s) allocated, %d free offset(s), flush settled=%v\n",
		stats.BlocksAllocated, stats.FreeOffsets, done)
	return nil
}

// runSubmission drives a single command future across cmdfuture,
// queuefuture and submit, copying one block's worth of bytes and
// compiling the result into a concrete submission against the fake
// queue.
func runSubmission(gpu driver.GPU) error {
	q := gpu.Queues()[0][0]
	size := gpu.MemBlockSize()

	src, err := gpu.NewBuffer(size, true, driver.UCopySrc)
	if err != nil {
		return err
	}
	dst, err := gpu.NewBuffer(size, true, driver.UCopyDst)
	if err != nil {
		return err
	}
	copy(src.Bytes()[:4], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	cb, err := gpu.NewCmdBuffer(q.Family())
	if err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}

	future := &cmdfuture.Func{
		ContextFn: func(ctx *stage.Context) {
			ctx.Record(stage.Access{Buffer: src, Stages: driver.SCopy, Access: driver.ATransferRead})
			ctx.Record(stage.Access{Buffer: dst, Stages: driver.SCopy, Access: driver.ATransferWrite})
		},
		RecordFn: func(cb driver.CmdBuffer, _ any) (cmdfuture.Poll, []driver.Destroyer) {
			cb.BeginBlit()
			cb.CopyBuffer(&driver.BufferCopy{From: src, To: dst, Size: size})
			cb.EndBlit()
			return cmdfuture.Done(dst), nil
		},
	}
	ctx := stage.NewContext(track.New())
	runner := queuefuture.NewInlineRunner(future, 0, ctx, cb, nil)
	for {
		step, err := runner.Step()
		if err != nil {
			return err
		}
		if step.Kind == queuefuture.StepReady {
			break
		}
	}
	if err := cb.End(); err != nil {
		return err
	}

	compiler := submit.NewCompiler(gpu, []driver.Queue{q})
	fences, _, err := compiler.CompileStage([]submit.QueueSubmission{{
		Type:       submit.Regular,
		CmdBuffers: []driver.CmdBuffer{cb},
	}}, true)
	if err != nil {
		return err
	}
	if err := submit.Await(fences); err != nil {
		return err
	}
	if err := compiler.FinishCycle(); err != nil {
		return err
	}

	fmt.Printf("submit: copied %d byte(s), readback matches=%v\n",
		size, dst.Bytes()[0] == 0xDE && dst.Bytes()[3] == 0xEF)
	return nil
}
