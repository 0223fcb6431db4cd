// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// object is the common part of every simulated object. Mutable fields are
// guarded by dev.mu.
type object struct {
	dev      *Device
	label    string
	released bool
	inflight int

	// owned objects belong to a swap chain; Release on them is a no-op.
	owned bool
}

// Label returns the debug name.
func (o *object) Label() string { return o.label }

// Release marks the object released. Releasing an object that queued work
// still references is recorded as a violation.
func (o *object) Release() {
	d := o.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.released || o.owned {
		return
	}
	if o.inflight > 0 && !d.lost && !d.closed {
		d.violate(fmt.Errorf("%w: %q released with %d submissions pending", device.ErrInUse, o.label, o.inflight))
	}
	o.released = true
}

// resource is an object with a queue-timeline state: the state the
// resource will be in once every submitted command has executed.
type resource struct {
	object
	state device.ResourceState
}

func (r *resource) base() *resource { return r }

// tracked is implemented by Buffer and Texture.
type tracked interface {
	device.Resource
	base() *resource
}

// Buffer is a simulated buffer backed by a byte slice.
type Buffer struct {
	resource
	heap  device.Heap
	usage gputypes.BufferUsage
	data  []byte
}

// Size implements device.Buffer.
func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

// Heap implements device.Buffer.
func (b *Buffer) Heap() device.Heap { return b.heap }

// Map implements device.Buffer. The returned slice aliases the buffer
// memory, so writes to an upload buffer are visible to the GPU without a
// flush and reads of a readback buffer see retired copies.
func (b *Buffer) Map() ([]byte, error) {
	if b.heap == device.HeapDeviceLocal {
		return nil, fmt.Errorf("sim: map %q: %w", b.label, device.ErrNotMappable)
	}
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	if b.released {
		return nil, fmt.Errorf("sim: map %q: %w", b.label, device.ErrReleased)
	}
	return b.data, nil
}

// Unmap implements device.Buffer.
func (b *Buffer) Unmap() {}

// Bytes returns a copy of the buffer contents as the GPU sees them.
func (b *Buffer) Bytes() []byte {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Texture is a simulated 2D texture with tightly packed pixels.
type Texture struct {
	resource
	width, height uint32
	format        gputypes.TextureFormat
	pix           []byte
}

func newTexture(d *Device, label string, w, h uint32, f gputypes.TextureFormat, s device.ResourceState) *Texture {
	return &Texture{
		resource: resource{object: object{dev: d, label: label}, state: s},
		width:    w,
		height:   h,
		format:   f,
		pix:      make([]byte, int(w)*int(h)*device.BytesPerPixel(f)),
	}
}

// Width implements device.Texture.
func (t *Texture) Width() uint32 { return t.width }

// Height implements device.Texture.
func (t *Texture) Height() uint32 { return t.height }

// Format implements device.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Pixels returns a copy of the texture memory.
func (t *Texture) Pixels() []byte {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return append([]byte(nil), t.pix...)
}

// State returns the state the texture will be in after all queued work.
func (t *Texture) State() device.ResourceState {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return t.state
}

// Released reports whether the texture was released.
func (t *Texture) Released() bool {
	t.dev.mu.Lock()
	defer t.dev.mu.Unlock()
	return t.released
}

func (t *Texture) clear(c gputypes.Color) {
	var px []byte
	switch t.format {
	case gputypes.TextureFormatRGBA32Float:
		px = make([]byte, 16)
		for i, v := range [4]float64{c.R, c.G, c.B, c.A} {
			binary.LittleEndian.PutUint32(px[i*4:], math.Float32bits(float32(v)))
		}
	case gputypes.TextureFormatBGRA8Unorm:
		px = []byte{unorm8(c.B), unorm8(c.G), unorm8(c.R), unorm8(c.A)}
	default:
		px = []byte{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
	}
	fill(t.pix, px)
}

func (t *Texture) clearDepth(depth float32, stencil uint32) {
	// 24-bit unorm depth in the low bits, stencil in the high byte.
	d := uint32(float64(depth)*0xFFFFFF+0.5) & 0xFFFFFF
	px := make([]byte, 4)
	binary.LittleEndian.PutUint32(px, d|stencil<<24)
	fill(t.pix, px)
}

func fill(dst, pattern []byte) {
	for i := 0; i+len(pattern) <= len(dst); i += len(pattern) {
		copy(dst[i:], pattern)
	}
}

func unorm8(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255 + 0.5)
	}
}

// Pipeline is a simulated pipeline state object.
type Pipeline struct {
	object
	kind     device.PipelineKind
	shader   string
	bindings []device.BindingKind
	kernel   Kernel
}

// Kind implements device.Pipeline.
func (p *Pipeline) Kind() device.PipelineKind { return p.kind }

// CommandAllocator is a simulated command allocator. Its inflight count is
// the number of submissions recorded from it that have not retired.
type CommandAllocator struct {
	object
}

// Reset implements device.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	a.dev.mu.Lock()
	defer a.dev.mu.Unlock()
	if a.released {
		return fmt.Errorf("sim: reset %q: %w", a.label, device.ErrReleased)
	}
	if a.inflight > 0 {
		return fmt.Errorf("sim: reset %q with %d submissions pending: %w", a.label, a.inflight, device.ErrInUse)
	}
	return nil
}

// Fence is a simulated fence.
type Fence struct {
	object
	completed uint64
	signaled  uint64
}

// Completed implements device.Fence.
func (f *Fence) Completed() uint64 {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	return f.completed
}
