// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// SwapChain is an offscreen swap chain. Back buffers are owned by it and
// start in device.StatePresent.
type SwapChain struct {
	object
	format   gputypes.TextureFormat
	buffers  []*Texture
	current  int
	presents uint64
}

var _ device.SwapChain = (*SwapChain)(nil)

const backBufferUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

// CreateSwapChain implements device.Device.
func (d *Device) CreateSwapChain(desc *device.SwapChainDesc) (device.SwapChain, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	sc := &SwapChain{object: object{dev: d, label: "swapchain"}, format: desc.Format}
	if err := sc.allocate(desc.BufferCount, desc.Width, desc.Height); err != nil {
		return nil, err
	}
	sc.destroy = sc.free
	return sc, nil
}

// allocate creates the back buffers. Caller holds d.mu.
func (s *SwapChain) allocate(count int, width, height uint32) error {
	bufs := make([]*Texture, 0, count)
	for i := range count {
		t, err := s.dev.newTexture(fmt.Sprintf("backbuffer%d", i), width, height, s.format, backBufferUsage)
		if err != nil {
			for _, b := range bufs {
				b.destroy()
			}
			return err
		}
		t.owned = true
		bufs = append(bufs, t)
	}
	s.buffers = bufs
	s.current = 0
	return nil
}

// free destroys the back buffers, deferring those the GPU still uses.
// Caller holds d.mu.
func (s *SwapChain) free() {
	for _, b := range s.buffers {
		if b.destroy != nil {
			s.dev.deferDestroy(b.lastUse, b.destroy)
			b.destroy = nil
		}
		b.released = true
	}
	s.buffers = nil
}

// BufferCount implements device.SwapChain.
func (s *SwapChain) BufferCount() int { return len(s.buffers) }

// CurrentIndex implements device.SwapChain.
func (s *SwapChain) CurrentIndex() int { return s.current }

// Format implements device.SwapChain.
func (s *SwapChain) Format() gputypes.TextureFormat { return s.format }

// Buffer implements device.SwapChain.
func (s *SwapChain) Buffer(i int) (device.Texture, error) {
	if s.released {
		return nil, fmt.Errorf("wgpu: swap chain: %w", device.ErrReleased)
	}
	if i < 0 || i >= len(s.buffers) {
		return nil, fmt.Errorf("wgpu: back buffer %d of %d", i, len(s.buffers))
	}
	return s.buffers[i], nil
}

// Present implements device.SwapChain by advancing to the next buffer.
func (s *SwapChain) Present() error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if s.released {
		return fmt.Errorf("wgpu: present: %w", device.ErrReleased)
	}
	s.current = (s.current + 1) % len(s.buffers)
	s.presents++
	return nil
}

// Resize implements device.SwapChain. It fails with device.ErrInUse while
// the GPU still uses a back buffer.
func (s *SwapChain) Resize(width, height uint32) error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: swap chain resize to %dx%d", device.ErrInvalidDescriptor, width, height)
	}
	done := d.queue.poll()
	for _, b := range s.buffers {
		if b.lastUse > done {
			return fmt.Errorf("wgpu: resize with %q in use: %w", b.label, device.ErrInUse)
		}
	}
	count := len(s.buffers)
	s.free()
	return s.allocate(count, width, height)
}
