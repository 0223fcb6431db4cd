// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

type fakeResource struct{ name string }

func (r *fakeResource) Release()      {}
func (r *fakeResource) Label() string { return r.name }

type recordingList struct {
	CommandList
	barriers [][]Barrier
}

func (l *recordingList) Barrier(b ...Barrier) {
	l.barriers = append(l.barriers, append([]Barrier(nil), b...))
}

func TestTrackerTransitionBatchesAndSkips(t *testing.T) {
	tr := NewTracker()
	a := &fakeResource{"a"}
	b := &fakeResource{"b"}
	tr.Track(a, StatePresent)
	tr.Track(b, StateRenderTarget)

	cl := &recordingList{}
	if err := tr.Transition(cl, StateRenderTarget, a, b); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(cl.barriers) != 1 || len(cl.barriers[0]) != 1 {
		t.Fatalf("barriers = %v, want one batch with one barrier", cl.barriers)
	}
	got := cl.barriers[0][0]
	if got.Resource != a || got.Before != StatePresent || got.After != StateRenderTarget {
		t.Errorf("barrier = %v", got)
	}
	if s, _ := tr.State(a); s != StateRenderTarget {
		t.Errorf("State(a) = %v, want render-target", s)
	}

	// Nothing to do: no barrier call at all.
	if err := tr.Transition(cl, StateRenderTarget, a, b); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(cl.barriers) != 1 {
		t.Errorf("redundant transition recorded %d batches", len(cl.barriers)-1)
	}
}

func TestTrackerUntracked(t *testing.T) {
	tr := NewTracker()
	err := tr.Transition(&recordingList{}, StateCopyDest, &fakeResource{"x"})
	if !errors.Is(err, ErrUntracked) {
		t.Fatalf("err = %v, want ErrUntracked", err)
	}
}

func TestTrackerForget(t *testing.T) {
	tr := NewTracker()
	r := &fakeResource{"r"}
	tr.Track(r, StateCommon)
	tr.Forget(r)
	if _, ok := tr.State(r); ok || tr.Len() != 0 {
		t.Error("resource still tracked after Forget")
	}
}

func TestTrackerSnapshotRestore(t *testing.T) {
	tr := NewTracker()
	a := &fakeResource{"a"}
	tr.Track(a, StatePresent)
	snap := tr.Snapshot()

	if err := tr.Transition(&recordingList{}, StateRenderTarget, a); err != nil {
		t.Fatal(err)
	}
	tr.Track(&fakeResource{"b"}, StateCommon)
	tr.Restore(snap)

	if s, _ := tr.State(a); s != StatePresent {
		t.Errorf("state after Restore = %s, want %s", s, StatePresent)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
	// The snapshot is independent of later changes.
	tr.Track(a, StateCopyDest)
	if snap[a] != StatePresent {
		t.Error("snapshot aliased tracker state")
	}
}

func TestAlignConstant(t *testing.T) {
	tests := []struct{ in, want uint64 }{
		{1, 256}, {64, 256}, {256, 256}, {257, 512}, {432, 512},
	}
	for _, tt := range tests {
		if got := AlignConstant(tt.in); got != tt.want {
			t.Errorf("AlignConstant(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHeapInitialState(t *testing.T) {
	if HeapUpload.InitialState() != StateGenericRead {
		t.Error("upload heap must start in generic-read")
	}
	if HeapReadback.InitialState() != StateCopyDest {
		t.Error("readback heap must start in copy-dest")
	}
	if HeapDeviceLocal.InitialState() != StateCommon {
		t.Error("device-local heap must start in common")
	}
}

func TestDescriptorValidation(t *testing.T) {
	if err := (&BufferDesc{Label: "b"}).Validate(); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("zero-size buffer: err = %v", err)
	}
	if err := (&TextureDesc{Label: "t", Width: 4, Height: 4}).Validate(); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("formatless texture: err = %v", err)
	}
	ok := &TextureDesc{Label: "t", Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid texture: %v", err)
	}
	if err := (&SwapChainDesc{Width: 8, Height: 8, BufferCount: 4}).Validate(); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("4-buffer swap chain: err = %v", err)
	}
	p := &PipelineDesc{Label: "p", Kind: PipelineCompute, Shader: ShaderSource{WGSL: "x"}}
	if err := p.Validate(); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("compute without entry: err = %v", err)
	}
}
