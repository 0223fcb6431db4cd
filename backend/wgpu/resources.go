// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/airis/device"
)

// object is the common part of everything a Device creates.
type object struct {
	dev      *Device
	label    string
	released bool

	// lastUse is the last submission index referencing the object.
	lastUse uint64

	// destroy frees the HAL objects. Nil when there are none.
	destroy func()

	// owned objects belong to a swap chain; Release is a no-op.
	owned bool
}

type tracked interface {
	base() *object
}

func (o *object) base() *object { return o }

// Label implements device.Resource.
func (o *object) Label() string { return o.label }

// Release implements device.Object. HAL objects still used by the GPU are
// destroyed when their last submission completes.
func (o *object) Release() {
	d := o.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.released || o.owned {
		return
	}
	o.released = true
	if o.destroy != nil && !d.closed {
		d.deferDestroy(o.lastUse, o.destroy)
	}
	o.destroy = nil
}

// Buffer is a HAL buffer.
type Buffer struct {
	object
	raw   hal.Buffer
	size  uint64
	heap  device.Heap
	usage gputypes.BufferUsage

	// shadow is the CPU copy of upload and readback buffers.
	shadow []byte
}

var _ device.Buffer = (*Buffer)(nil)

// Size implements device.Buffer.
func (b *Buffer) Size() uint64 { return b.size }

// Heap implements device.Buffer.
func (b *Buffer) Heap() device.Heap { return b.heap }

// Map implements device.Buffer. Upload buffers return their CPU copy,
// which reaches the GPU when a command list using the buffer is executed.
// Readback buffers are read from the GPU on every call.
func (b *Buffer) Map() ([]byte, error) {
	d := b.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.released {
		return nil, fmt.Errorf("wgpu: map %q: %w", b.label, device.ErrReleased)
	}
	switch b.heap {
	case device.HeapUpload:
		return b.shadow, nil
	case device.HeapReadback:
		m, err := d.raw.MapBuffer(b.raw, 0, b.size)
		if err != nil {
			return nil, d.fail("map "+b.label, err)
		}
		copy(b.shadow, unsafe.Slice((*byte)(m.Ptr), b.size))
		if err := d.raw.UnmapBuffer(b.raw); err != nil {
			return nil, d.fail("unmap "+b.label, err)
		}
		return b.shadow, nil
	default:
		return nil, fmt.Errorf("wgpu: map %q: %w", b.label, device.ErrNotMappable)
	}
}

// Unmap implements device.Buffer.
func (b *Buffer) Unmap() {}

// halUsage returns the HAL usage flags of a buffer on heap h.
func halUsage(h device.Heap, u gputypes.BufferUsage) gputypes.BufferUsage {
	switch h {
	case device.HeapUpload:
		return u | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	case device.HeapReadback:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	default:
		return u | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	}
}

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(desc *device.BufferDesc) (device.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	// Sizes are rounded up to 4 bytes for copies and queue writes.
	size := (desc.Size + 3) &^ 3
	usage := halUsage(desc.Heap, desc.Usage)
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{Label: desc.Label, Size: size, Usage: usage})
	if err != nil {
		return nil, d.fail("create buffer "+desc.Label, err)
	}
	b := &Buffer{raw: raw, size: desc.Size, heap: desc.Heap, usage: usage}
	b.object = object{dev: d, label: desc.Label, destroy: func() { d.raw.DestroyBuffer(raw) }}
	if desc.Heap != device.HeapDeviceLocal {
		b.shadow = make([]byte, size)[:desc.Size]
	}
	return b, nil
}

// Texture is a HAL texture with its default view.
type Texture struct {
	object
	raw    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat

	// defined is set by the first barrier; until then the contents are
	// undefined whatever state the caller tracks.
	defined bool
}

var _ device.Texture = (*Texture)(nil)

// Width implements device.Texture.
func (t *Texture) Width() uint32 { return t.width }

// Height implements device.Texture.
func (t *Texture) Height() uint32 { return t.height }

// Format implements device.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc *device.TextureDesc) (device.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return d.newTexture(desc.Label, desc.Width, desc.Height, desc.Format, desc.Usage)
}

// newTexture creates a texture and its view. Caller holds d.mu.
func (d *Device) newTexture(label string, width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Texture, error) {
	usage |= gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, d.fail("create texture "+label, err)
	}
	view, err := d.raw.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           label + "-view",
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.raw.DestroyTexture(raw)
		return nil, d.fail("create view "+label, err)
	}
	t := &Texture{raw: raw, view: view, width: width, height: height, format: format}
	t.object = object{dev: d, label: label, destroy: func() {
		d.raw.DestroyTextureView(view)
		d.raw.DestroyTexture(raw)
	}}
	return t, nil
}

// CommandAllocator is a lifetime token: it cannot be reset while
// submitted work recorded from it is pending.
type CommandAllocator struct {
	object
}

// Reset implements device.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	d := a.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.released {
		return fmt.Errorf("wgpu: reset %q: %w", a.label, device.ErrReleased)
	}
	if a.lastUse > d.queue.poll() {
		return fmt.Errorf("wgpu: reset %q before submission %d completed: %w", a.label, a.lastUse, device.ErrInUse)
	}
	return nil
}
