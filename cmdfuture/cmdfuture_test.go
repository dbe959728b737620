// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package cmdfuture_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/cmdfuture"
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/driver/fake"
	"github.com/gviegas/vdbgfx/stage"
)

// stepsThenDone returns a Future that stays Pending for n-1 Record
// calls and completes with out on the nth.
func stepsThenDone(n int, out any) cmdfuture.Future {
	i := 0
	return &cmdfuture.Func{
		RecordFn: func(cb driver.CmdBuffer, recycled any) (cmdfuture.Poll, []driver.Destroyer) {
			i++
			if i < n {
				return cmdfuture.Pending(), nil
			}
			return cmdfuture.Done(out), nil
		},
	}
}

func drive(t *testing.T, f cmdfuture.Future, cb driver.CmdBuffer, ctx *stage.Context, maxSteps int) any {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		f.Context(ctx)
		ctx.Flush()
		p, _ := f.Record(cb, nil)
		if p.Ready {
			return p.Output
		}
	}
	t.Fatal("future did not complete within maxSteps")
	return nil
}

func newCmdBuffer(t *testing.T) driver.CmdBuffer {
	t.Helper()
	gpu := fake.New()
	cb, err := gpu.NewCmdBuffer(gpu.Queues()[0][0].Family())
	require.NoError(t, err)
	return cb
}

func TestFuncFutureSingleStep(t *testing.T) {
	f := stepsThenDone(1, 42)
	out := drive(t, f, newCmdBuffer(t), stage.NewContext(nil), 4)
	assert.Equal(t, 42, out)
}

func TestJoinWaitsForBothBranches(t *testing.T) {
	j := cmdfuture.Join(stepsThenDone(1, "a"), stepsThenDone(3, "b"))
	out := drive(t, j, newCmdBuffer(t), stage.NewContext(nil), 5)
	assert.Equal(t, [2]any{"a", "b"}, out)
}

func TestJoinVec(t *testing.T) {
	j := cmdfuture.JoinVec([]cmdfuture.Future{stepsThenDone(1, 1), stepsThenDone(2, 2), stepsThenDone(1, 3)})
	out := drive(t, j, newCmdBuffer(t), stage.NewContext(nil), 5)
	assert.Equal(t, []any{1, 2, 3}, out)
}

func TestMap(t *testing.T) {
	m := cmdfuture.Map(stepsThenDone(1, 2), func(v any) any { return v.(int) * 10 })
	out := drive(t, m, newCmdBuffer(t), stage.NewContext(nil), 4)
	assert.Equal(t, 20, out)
}

func TestForkRecordsOnce(t *testing.T) {
	calls := 0
	inner := &cmdfuture.Func{
		RecordFn: func(cb driver.CmdBuffer, recycled any) (cmdfuture.Poll, []driver.Destroyer) {
			calls++
			return cmdfuture.Done("done"), nil
		},
	}
	branches := cmdfuture.Fork(inner, 3)
	cb := newCmdBuffer(t)

	var outs []any
	for _, b := range branches {
		p, _ := b.Record(cb, nil)
		outs = append(outs, p)
	}
	assert.Equal(t, 1, calls, "inner future must be recorded exactly once per round")
	assert.False(t, outs[0].(cmdfuture.Poll).Ready)
	assert.False(t, outs[1].(cmdfuture.Poll).Ready)
	assert.True(t, outs[2].(cmdfuture.Poll).Ready, "only the last branch's turn observes the result")
}
