// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package queuefuture

import "github.com/gviegas/vdbgfx/stage"

// Export is the source-queue half of a cross-queue resource handoff
// materialized from a stage.Transition: an ownership-release barrier
// the source queue's recording command buffer must emit before the
// submission compiler resolves the matching semaphore signal.
type Export struct {
	Transition stage.Transition
}

// Handoffs splits a batch of transitions reported by a stage.Context
// flush into paired export/wait entries: the source queue gains an
// Export, the destination queue is simply named by the transition's
// To family (the submission compiler looks up the matching wait from
// the previous stage's signal map, so no separate wait value is
// materialized here).
func Handoffs(transitions []stage.Transition) []Export {
	exports := make([]Export, len(transitions))
	for i, t := range transitions {
		exports[i] = Export{Transition: t}
	}
	return exports
}
