// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"
	"strconv"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// SwapChain is an offscreen swap chain. Present checks that the current
// back buffer will be in device.StatePresent and rotates to the next one.
type SwapChain struct {
	object
	format  gputypes.TextureFormat
	count   int
	buffers []*Texture
	current int
}

// allocate creates fresh back buffers. Caller holds d.mu.
func (s *SwapChain) allocate(w, h uint32) {
	s.buffers = make([]*Texture, s.count)
	for i := range s.buffers {
		t := newTexture(s.dev, "backbuffer"+strconv.Itoa(i), w, h, s.format, device.StatePresent)
		t.owned = true
		s.buffers[i] = t
	}
	s.current = 0
}

// BufferCount implements device.SwapChain.
func (s *SwapChain) BufferCount() int { return s.count }

// Format implements device.SwapChain.
func (s *SwapChain) Format() gputypes.TextureFormat { return s.format }

// CurrentIndex implements device.SwapChain.
func (s *SwapChain) CurrentIndex() int {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.current
}

// Buffer implements device.SwapChain.
func (s *SwapChain) Buffer(i int) (device.Texture, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("sim: swap chain: %w", device.ErrReleased)
	}
	if i < 0 || i >= len(s.buffers) {
		return nil, fmt.Errorf("sim: swap chain has no buffer %d", i)
	}
	return s.buffers[i], nil
}

// Present implements device.SwapChain.
func (s *SwapChain) Present() error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	cur := s.buffers[s.current]
	if cur.state != device.StatePresent {
		return fmt.Errorf("sim: present %q in state %s: %w", cur.label, cur.state, device.ErrInvalidState)
	}
	s.current = (s.current + 1) % len(s.buffers)
	d.stats.Presents++
	return nil
}

// Resize implements device.SwapChain. It fails with device.ErrInUse while
// queued work references a back buffer; the old buffers are released.
func (s *SwapChain) Resize(width, height uint32) error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("sim: resize to %dx%d: %w", width, height, device.ErrInvalidDescriptor)
	}
	for _, b := range s.buffers {
		if b.inflight > 0 {
			return fmt.Errorf("sim: resize while %q is referenced by %d submissions: %w", b.label, b.inflight, device.ErrInUse)
		}
	}
	for _, b := range s.buffers {
		b.released = true
	}
	s.allocate(width, height)
	return nil
}

// Release implements device.Object.
func (s *SwapChain) Release() {
	s.dev.mu.Lock()
	for _, b := range s.buffers {
		if b.inflight > 0 {
			s.dev.violate(fmt.Errorf("%w: swap chain released while %q is in flight", device.ErrInUse, b.label))
		}
		b.released = true
	}
	s.dev.mu.Unlock()
	s.object.Release()
}
