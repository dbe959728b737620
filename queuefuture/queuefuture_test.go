// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package queuefuture_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/vdbgfx/cmdfuture"
	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/driver/fake"
	"github.com/gviegas/vdbgfx/queuefuture"
	"github.com/gviegas/vdbgfx/stage"
	"github.com/gviegas/vdbgfx/track"
)

func TestInlineRunnerReportsBarrierThenReady(t *testing.T) {
	gpu := fake.New()
	q := gpu.Queues()[0][0]
	cb, err := gpu.NewCmdBuffer(q.Family())
	require.NoError(t, err)

	steps := 0
	inner := &cmdfuture.Func{
		RecordFn: func(driver.CmdBuffer, any) (cmdfuture.Poll, []driver.Destroyer) {
			steps++
			if steps < 2 {
				return cmdfuture.Pending(), nil
			}
			return cmdfuture.Done("result"), nil
		},
	}

	ctx := stage.NewContext(track.New())
	runner := queuefuture.NewInlineRunner(inner, 0, ctx, cb, nil)

	s1, err := runner.Step()
	require.NoError(t, err)
	assert.Equal(t, queuefuture.StepBarrier, s1.Kind)

	s2, err := runner.Step()
	require.NoError(t, err)
	assert.Equal(t, queuefuture.StepReady, s2.Kind)
	assert.Equal(t, "result", s2.Output)
	assert.Equal(t, uint32(1), s2.NextQueueMask)
}

func TestBlockGeneratorDrivesBySteps(t *testing.T) {
	b := &queuefuture.Block{
		Gen: func(step int) (queuefuture.Step, error) {
			if step < 2 {
				return queuefuture.Step{Kind: queuefuture.StepBarrier}, nil
			}
			return queuefuture.Step{Kind: queuefuture.StepReady, Output: step}, nil
		},
	}
	for i := 0; i < 2; i++ {
		s, err := b.Step()
		require.NoError(t, err)
		assert.Equal(t, queuefuture.StepBarrier, s.Kind)
	}
	s, err := b.Step()
	require.NoError(t, err)
	assert.Equal(t, queuefuture.StepReady, s.Kind)
	assert.Equal(t, 2, s.Output)
}

func TestHandoffsWrapTransitions(t *testing.T) {
	famA := driver.QueueFamily{Index: 0, Transfer: true}
	famB := driver.QueueFamily{Index: 1, Compute: true}
	ts := []stage.Transition{{From: famA, To: famB}}
	ex := queuefuture.Handoffs(ts)
	require.Len(t, ex, 1)
	assert.Equal(t, famA, ex[0].Transition.From)
	assert.Equal(t, famB, ex[0].Transition.To)
}
