// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package track_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gviegas/vdbgfx/driver"
	"github.com/gviegas/vdbgfx/track"
)

func TestGetMissReturnsFalse(t *testing.T) {
	tr := track.New()
	_, ok := tr.Get("resource")
	assert.False(t, ok)
}

func TestSetThenGetReturnsLatest(t *testing.T) {
	tr := track.New()
	r1 := track.Record{Stages: driver.SCopy, Access: driver.ATransferWrite}
	tr.Set("buf", r1)
	got, ok := tr.Get("buf")
	assert.True(t, ok)
	assert.Equal(t, r1, got)

	r2 := track.Record{Stages: driver.SCompute, Access: driver.AShaderRead}
	tr.Set("buf", r2)
	got, ok = tr.Get("buf")
	assert.True(t, ok)
	assert.Equal(t, r2, got)
}

func TestForgetRemovesEntry(t *testing.T) {
	tr := track.New()
	tr.Set("buf", track.Record{Stages: driver.SCopy, Access: driver.ATransferRead})
	tr.Forget("buf")
	_, ok := tr.Get("buf")
	assert.False(t, ok)
}
