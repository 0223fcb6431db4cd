// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package swapchain

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/backend/sim"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/fence"
)

func newSet(t *testing.T, dev *sim.Device, cfg Config) (*BufferSet, *fence.Timeline) {
	t.Helper()
	tl, err := fence.New(dev)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := New(dev, tl, device.NewTracker(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		bs.Close()
		tl.Close()
	})
	return bs, tl
}

func stateOf(t *testing.T, tex device.Texture) device.ResourceState {
	t.Helper()
	return tex.(*sim.Texture).State()
}

func TestNewInitialStates(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 64, Height: 32, BufferCount: 3, Compute: true})

	if bs.BufferCount() != 3 {
		t.Fatalf("BufferCount = %d", bs.BufferCount())
	}
	if !bs.Valid() {
		t.Fatal("set not valid after New")
	}
	for i := 0; i < 3; i++ {
		bb, err := bs.BackBuffer(i)
		if err != nil {
			t.Fatal(err)
		}
		if s := stateOf(t, bb); s != device.StatePresent {
			t.Errorf("back buffer %d state = %s", i, s)
		}
	}
	depth, _ := bs.Depth()
	out, _ := bs.Output()
	acc, _ := bs.Accumulation()
	checks := []struct {
		tex  device.Texture
		want device.ResourceState
	}{
		{depth, device.StateDepthWrite},
		{out, device.StateCopySource},
		{acc, device.StateUnorderedAccess},
	}
	for _, c := range checks {
		if s := stateOf(t, c.tex); s != c.want {
			t.Errorf("%s state = %s, want %s", c.tex.Label(), s, c.want)
		}
		if s, _ := bs.Tracker().State(c.tex); s != c.want {
			t.Errorf("%s tracked state = %s, want %s", c.tex.Label(), s, c.want)
		}
	}
	if out.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("output format = %s", out.Format())
	}
	if acc.Format() != gputypes.TextureFormatRGBA32Float {
		t.Errorf("accumulation format = %s", acc.Format())
	}
}

func TestRasterSetHasNoComputeTargets(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 8, Height: 8})
	if _, err := bs.Output(); !errors.Is(err, ErrNoComputeTargets) {
		t.Fatalf("Output: %v", err)
	}
	if bs.BufferCount() != DefaultBufferCount {
		t.Fatalf("BufferCount = %d", bs.BufferCount())
	}
}

func TestResize(t *testing.T) {
	dev := sim.New(sim.WithPolicy(sim.OnWait(0)))
	defer dev.Close()
	bs, tl := newSet(t, dev, Config{Width: 64, Height: 64, Compute: true})

	oldDepth, _ := bs.Depth()
	oldBack, _ := bs.BackBuffer(0)
	before := tl.LastSignaled()

	if err := bs.Resize(128, 96); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h := bs.Size(); w != 128 || h != 96 {
		t.Fatalf("Size = %dx%d", w, h)
	}
	if !bs.Valid() || bs.Resizes() != 1 {
		t.Fatalf("Valid = %v, Resizes = %d", bs.Valid(), bs.Resizes())
	}
	// One flush before and one after the transitions.
	if got := tl.LastSignaled() - before; got != 2 {
		t.Errorf("resize signaled %d values, want 2", got)
	}
	if tl.Completed() != tl.LastSignaled() {
		t.Errorf("resize left work pending: completed %d of %d", tl.Completed(), tl.LastSignaled())
	}
	if !oldDepth.(*sim.Texture).Released() || !oldBack.(*sim.Texture).Released() {
		t.Error("old textures not released")
	}
	if _, ok := bs.Tracker().State(oldDepth); ok {
		t.Error("old depth still tracked")
	}

	depth, _ := bs.Depth()
	if depth.Width() != 128 || depth.Height() != 96 {
		t.Errorf("depth is %dx%d", depth.Width(), depth.Height())
	}
	if s := stateOf(t, depth); s != device.StateDepthWrite {
		t.Errorf("depth state = %s", s)
	}
	for i := 0; i < bs.BufferCount(); i++ {
		bb, _ := bs.BackBuffer(i)
		if bb.Width() != 128 || stateOf(t, bb) != device.StatePresent {
			t.Errorf("back buffer %d: %dx%d in %s", i, bb.Width(), bb.Height(), stateOf(t, bb))
		}
	}
	if bs.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex = %d after resize", bs.CurrentIndex())
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestResizeZeroIgnored(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, tl := newSet(t, dev, Config{Width: 16, Height: 16})
	before := tl.LastSignaled()
	for _, sz := range [][2]uint32{{0, 0}, {0, 10}, {10, 0}} {
		if err := bs.Resize(sz[0], sz[1]); err != nil {
			t.Fatalf("Resize(%v): %v", sz, err)
		}
	}
	if w, h := bs.Size(); w != 16 || h != 16 {
		t.Fatalf("Size = %dx%d", w, h)
	}
	if tl.LastSignaled() != before || bs.Resizes() != 0 {
		t.Fatal("zero-size resize touched the GPU")
	}
}

func TestInvalidDuringFailedResize(t *testing.T) {
	dev := sim.New(sim.WithPolicy(sim.OnWait(0)))
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 16, Height: 16})
	dev.Lose()
	if err := bs.Resize(32, 32); !errors.Is(err, device.ErrDeviceLost) {
		t.Fatalf("Resize: %v", err)
	}
	// The flush failed before anything was released.
	if !bs.Valid() {
		t.Fatal("set invalidated by a failed flush")
	}
}

func TestAccessorsWhileInvalid(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 16, Height: 16, Compute: true})
	bs.valid = false
	if _, err := bs.Current(); !errors.Is(err, ErrBuffersInvalid) {
		t.Errorf("Current: %v", err)
	}
	if _, err := bs.Depth(); !errors.Is(err, ErrBuffersInvalid) {
		t.Errorf("Depth: %v", err)
	}
	if _, err := bs.Output(); !errors.Is(err, ErrBuffersInvalid) {
		t.Errorf("Output: %v", err)
	}
	if err := bs.Present(); !errors.Is(err, ErrBuffersInvalid) {
		t.Errorf("Present: %v", err)
	}
	bs.valid = true
}

func TestPresentRotates(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 4, Height: 4, BufferCount: 3})
	for i := 0; i < 4; i++ {
		if got := bs.CurrentIndex(); got != i%3 {
			t.Fatalf("present %d: CurrentIndex = %d", i, got)
		}
		if err := bs.Present(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPresentWrongState(t *testing.T) {
	dev := sim.New()
	defer dev.Close()
	bs, _ := newSet(t, dev, Config{Width: 4, Height: 4})
	cur, _ := bs.Current()
	alloc, _ := dev.CreateCommandAllocator("a")
	cl, _ := dev.CreateCommandList("l", alloc)
	if err := bs.Tracker().Transition(cl, device.StateRenderTarget, cur); err != nil {
		t.Fatal(err)
	}
	if err := bs.Present(); !errors.Is(err, device.ErrInvalidState) {
		t.Fatalf("Present: %v", err)
	}
}
