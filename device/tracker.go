// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "fmt"

// Tracker keeps the CPU-side view of resource states as of the end of the
// most recently recorded command list. It turns "use r as S" requests into
// the minimal set of barriers.
//
// Tracker is not safe for concurrent use; it belongs to the render thread.
type Tracker struct {
	states map[Resource]ResourceState
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[Resource]ResourceState)}
}

// Track registers r in state s, replacing any previous entry.
func (t *Tracker) Track(r Resource, s ResourceState) {
	t.states[r] = s
}

// Forget removes r. Call it before releasing r.
func (t *Tracker) Forget(r Resource) {
	delete(t.states, r)
}

// State returns the tracked state of r.
func (t *Tracker) State(r Resource) (ResourceState, bool) {
	s, ok := t.states[r]
	return s, ok
}

// Len returns the number of tracked resources.
func (t *Tracker) Len() int { return len(t.states) }

// Transition records one batched barrier on cl moving every resource in rs
// to state to. Resources already in state to are skipped.
func (t *Tracker) Transition(cl CommandList, to ResourceState, rs ...Resource) error {
	barriers := make([]Barrier, 0, len(rs))
	for _, r := range rs {
		from, ok := t.states[r]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUntracked, labelOf(r))
		}
		if from == to {
			continue
		}
		barriers = append(barriers, Barrier{Resource: r, Before: from, After: to})
	}
	if len(barriers) == 0 {
		return nil
	}
	cl.Barrier(barriers...)
	for _, b := range barriers {
		t.states[b.Resource] = b.After
	}
	return nil
}

func labelOf(r Resource) string {
	if r == nil {
		return "<nil>"
	}
	return r.Label()
}

// Snapshot is a saved copy of a Tracker's states.
type Snapshot map[Resource]ResourceState

// Snapshot returns a copy of the tracked states.
func (t *Tracker) Snapshot() Snapshot {
	s := make(Snapshot, len(t.states))
	for r, st := range t.states {
		s[r] = st
	}
	return s
}

// Restore replaces the tracked states with s. Use it to undo the
// transitions of a command list that was recorded but never executed.
func (t *Tracker) Restore(s Snapshot) {
	t.states = make(map[Resource]ResourceState, len(s))
	for r, st := range s {
		t.states[r] = st
	}
}
