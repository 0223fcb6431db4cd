// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/airis/device"
)

// CommandList encodes into a HAL command encoder as commands are recorded.
// Draws share a render pass while the render targets stay the same; every
// other command ends it.
type CommandList struct {
	object

	alloc   *CommandAllocator
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
	open    bool
	err     error

	pass       hal.RenderPassEncoder
	color      *Texture
	depth      *Texture
	passColor  *Texture
	passDepth  *Texture
	pipeline   *Pipeline
	bindGroup  hal.BindGroup
	bindGroups []hal.BindGroup

	// refs are the objects the recorded commands use; uploads the
	// upload-heap buffers among them.
	refs    map[*object]struct{}
	uploads map[*Buffer]struct{}
}

var _ device.CommandList = (*CommandList)(nil)

// Reset implements device.CommandList.
func (c *CommandList) Reset(alloc device.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok || a.dev != c.dev {
		return fmt.Errorf("wgpu: command list %q: foreign allocator %T", c.label, alloc)
	}
	if err := a.Reset(); err != nil {
		return err
	}
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if c.released {
		return fmt.Errorf("wgpu: reset %q: %w", c.label, device.ErrReleased)
	}
	c.discard()

	enc, err := d.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: c.label})
	if err != nil {
		return d.fail("command encoder "+c.label, err)
	}
	if err := enc.BeginEncoding(c.label); err != nil {
		enc.Destroy()
		return d.fail("begin encoding "+c.label, err)
	}
	c.alloc = a
	c.encoder = enc
	c.open = true
	c.err = nil
	c.color, c.depth, c.pipeline, c.bindGroup = nil, nil, nil, nil
	c.refs = make(map[*object]struct{})
	c.uploads = make(map[*Buffer]struct{})
	return nil
}

// discard destroys an encoding that was never executed. Caller holds d.mu.
func (c *CommandList) discard() {
	d := c.dev
	if c.open {
		c.endPass()
		c.encoder.DiscardEncoding()
	}
	if c.cmd != nil {
		d.raw.FreeCommandBuffer(c.cmd)
	}
	if c.encoder != nil {
		c.encoder.Destroy()
	}
	for _, g := range c.bindGroups {
		d.raw.DestroyBindGroup(g)
	}
	c.encoder, c.cmd, c.bindGroups, c.open = nil, nil, nil, false
}

// retire hands the executed encoding to the device for destruction after
// submission index completes. Caller holds d.mu.
func (c *CommandList) retire(index uint64) {
	d := c.dev
	enc, cmd, groups := c.encoder, c.cmd, c.bindGroups
	d.deferDestroy(index, func() {
		d.raw.FreeCommandBuffer(cmd)
		enc.Destroy()
		for _, g := range groups {
			d.raw.DestroyBindGroup(g)
		}
	})
	c.encoder, c.cmd, c.bindGroups = nil, nil, nil
}

// Release implements device.Object.
func (c *CommandList) Release() {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.discard()
}

// recording reports whether commands can be recorded, remembering the
// first failure.
func (c *CommandList) recording() bool {
	switch {
	case c.err != nil:
		return false
	case !c.open:
		c.err = fmt.Errorf("wgpu: %q: %w", c.label, device.ErrListClosed)
		return false
	}
	return true
}

func (c *CommandList) failf(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("wgpu: %q: "+format, append([]any{c.label}, args...)...)
	}
}

func (c *CommandList) use(r any) {
	if t, ok := r.(tracked); ok {
		c.refs[t.base()] = struct{}{}
	}
	if b, ok := r.(*Buffer); ok && b.heap == device.HeapUpload {
		c.uploads[b] = struct{}{}
	}
}

func (c *CommandList) buffer(b device.Buffer) *Buffer {
	wb, ok := b.(*Buffer)
	if !ok || wb == nil {
		c.failf("foreign buffer %T", b)
		return nil
	}
	if wb.released {
		c.failf("buffer %q: %w", wb.label, device.ErrReleased)
		return nil
	}
	c.use(wb)
	return wb
}

func (c *CommandList) texture(t device.Texture) *Texture {
	wt, ok := t.(*Texture)
	if !ok || wt == nil {
		c.failf("foreign texture %T", t)
		return nil
	}
	if wt.released {
		c.failf("texture %q: %w", wt.label, device.ErrReleased)
		return nil
	}
	c.use(wt)
	return wt
}

func (c *CommandList) endPass() {
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
		c.passColor, c.passDepth = nil, nil
	}
}

// Barrier implements device.CommandList.
func (c *CommandList) Barrier(barriers ...device.Barrier) {
	if !c.recording() {
		return
	}
	c.endPass()
	var (
		bufs []hal.BufferBarrier
		texs []hal.TextureBarrier
	)
	for _, b := range barriers {
		switch r := b.Resource.(type) {
		case device.Buffer:
			wb := c.buffer(r)
			if wb == nil {
				return
			}
			if wb.heap != device.HeapDeviceLocal {
				c.failf("barrier on %s buffer %q: %w", wb.heap, wb.label, device.ErrInvalidState)
				return
			}
			bufs = append(bufs, hal.BufferBarrier{Buffer: wb.raw, Usage: hal.BufferUsageTransition{
				OldUsage: bufferUsage(b.Before, wb.usage),
				NewUsage: bufferUsage(b.After, wb.usage),
			}})
		case device.Texture:
			wt := c.texture(r)
			if wt == nil {
				return
			}
			old := textureUsage(b.Before)
			if !wt.defined {
				old = gputypes.TextureUsageNone
				wt.defined = true
			}
			texs = append(texs, hal.TextureBarrier{Texture: wt.raw, Usage: hal.TextureUsageTransition{
				OldUsage: old,
				NewUsage: textureUsage(b.After),
			}})
		default:
			c.failf("barrier on %T", b.Resource)
			return
		}
	}
	if len(bufs) > 0 {
		c.encoder.TransitionBuffers(bufs)
	}
	if len(texs) > 0 {
		c.encoder.TransitionTextures(texs)
	}
}

// CopyBuffer implements device.CommandList.
func (c *CommandList) CopyBuffer(dst, src device.Buffer) {
	if !c.recording() {
		return
	}
	d, s := c.buffer(dst), c.buffer(src)
	if d == nil || s == nil {
		return
	}
	c.endPass()
	size := (min(d.size, s.size) + 3) &^ 3
	c.encoder.CopyBufferToBuffer(s.raw, d.raw, []hal.BufferCopy{{Size: size}})
}

// CopyTexture implements device.CommandList.
func (c *CommandList) CopyTexture(dst, src device.Texture) {
	if !c.recording() {
		return
	}
	d, s := c.texture(dst), c.texture(src)
	if d == nil || s == nil {
		return
	}
	if d.width != s.width || d.height != s.height || d.format != s.format {
		c.failf("copy %q (%dx%d %s) to %q (%dx%d %s): %w", s.label, s.width, s.height, s.format,
			d.label, d.width, d.height, d.format, device.ErrInvalidDescriptor)
		return
	}
	c.endPass()
	c.encoder.CopyTextureToTexture(s.raw, d.raw, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: s.raw, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: d.raw, Aspect: gputypes.TextureAspectAll},
		Size:    hal.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
	}})
}

// CopyTextureToBuffer implements device.CommandList. Rows are tightly
// packed in dst.
func (c *CommandList) CopyTextureToBuffer(dst device.Buffer, src device.Texture) {
	if !c.recording() {
		return
	}
	d, s := c.buffer(dst), c.texture(src)
	if d == nil || s == nil {
		return
	}
	bpp := device.BytesPerPixel(s.format)
	if need := uint64(s.width) * uint64(s.height) * uint64(bpp); d.size < need {
		c.failf("readback of %q needs %d bytes, %q has %d: %w", s.label, need, d.label, d.size, device.ErrInvalidDescriptor)
		return
	}
	c.endPass()
	rows := rowCopies(s.width, s.height, bpp)
	regions := make([]hal.BufferTextureCopy, len(rows))
	for i, r := range rows {
		regions[i] = hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{Offset: r.offset, BytesPerRow: r.pitch, RowsPerImage: r.rows},
			TextureBase: hal.ImageCopyTexture{
				Texture: s.raw,
				Origin:  hal.Origin3D{Y: r.y},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: s.width, Height: r.rows, DepthOrArrayLayers: 1},
		}
	}
	c.encoder.CopyTextureToBuffer(s.raw, d.raw, regions)
}

// ClearRenderTarget implements device.CommandList.
func (c *CommandList) ClearRenderTarget(target device.Texture, col gputypes.Color) {
	if !c.recording() {
		return
	}
	t := c.texture(target)
	if t == nil {
		return
	}
	c.endPass()
	c.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "clear " + t.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: col,
		}},
	}).End()
}

// ClearDepthStencil implements device.CommandList.
func (c *CommandList) ClearDepthStencil(target device.Texture, depth float32, stencil uint32) {
	if !c.recording() {
		return
	}
	t := c.texture(target)
	if t == nil {
		return
	}
	c.endPass()
	c.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "clear " + t.label,
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   depth,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: stencil,
		},
	}).End()
}

// SetRenderTargets implements device.CommandList. depth may be nil.
func (c *CommandList) SetRenderTargets(color, depth device.Texture) {
	if !c.recording() {
		return
	}
	c.color = c.texture(color)
	c.depth = nil
	if depth != nil {
		c.depth = c.texture(depth)
	}
}

// SetPipeline implements device.CommandList.
func (c *CommandList) SetPipeline(p device.Pipeline) {
	if !c.recording() {
		return
	}
	wp, ok := p.(*Pipeline)
	if !ok || wp == nil || wp.released {
		c.failf("invalid pipeline %T", p)
		return
	}
	c.use(wp)
	c.pipeline = wp
	c.bindGroup = nil
}

// SetBindings implements device.CommandList. The bindings become one bind
// group, destroyed after the list executes.
func (c *CommandList) SetBindings(bindings ...device.Binding) {
	if !c.recording() {
		return
	}
	if c.pipeline == nil {
		c.failf("bindings without a pipeline: %w", device.ErrInvalidState)
		return
	}
	if len(bindings) != len(c.pipeline.bindings) {
		c.failf("pipeline %q takes %d bindings, got %d: %w",
			c.pipeline.label, len(c.pipeline.bindings), len(bindings), device.ErrInvalidDescriptor)
		return
	}
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		entries[i].Binding = uint32(i)
		if b.Texture != nil {
			t := c.texture(b.Texture)
			if t == nil {
				return
			}
			entries[i].Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
			continue
		}
		buf := c.buffer(b.Buffer)
		if buf == nil {
			return
		}
		entries[i].Resource = gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: b.Offset, Size: b.Size}
	}
	g, err := c.dev.raw.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   c.pipeline.label + "-group",
		Layout:  c.pipeline.layout,
		Entries: entries,
	})
	if err != nil {
		c.failf("bind group: %w", err)
		return
	}
	c.bindGroups = append(c.bindGroups, g)
	c.bindGroup = g
}

// DrawIndexed implements device.CommandList. Indices are uint16.
func (c *CommandList) DrawIndexed(vertices, indices device.Buffer, indexCount uint32) {
	if !c.recording() {
		return
	}
	vb, ib := c.buffer(vertices), c.buffer(indices)
	if vb == nil || ib == nil {
		return
	}
	switch {
	case c.pipeline == nil || c.pipeline.kind != device.PipelineRender:
		c.failf("draw without a render pipeline: %w", device.ErrInvalidState)
		return
	case c.color == nil:
		c.failf("draw without a render target: %w", device.ErrInvalidState)
		return
	}
	if c.pass == nil || c.passColor != c.color || c.passDepth != c.depth {
		c.beginPass()
	}
	c.pass.SetPipeline(c.pipeline.render)
	if c.bindGroup != nil {
		c.pass.SetBindGroup(0, c.bindGroup, nil)
	}
	c.pass.SetVertexBuffer(0, vb.raw, 0)
	c.pass.SetIndexBuffer(ib.raw, gputypes.IndexFormatUint16, 0)
	c.pass.DrawIndexed(indexCount, 1, 0, 0, 0)
}

func (c *CommandList) beginPass() {
	c.endPass()
	desc := &hal.RenderPassDescriptor{
		Label: "draw " + c.color.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    c.color.view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	}
	if c.depth != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:           c.depth.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
	}
	c.pass = c.encoder.BeginRenderPass(desc)
	c.passColor, c.passDepth = c.color, c.depth
}

// Dispatch implements device.CommandList.
func (c *CommandList) Dispatch(x, y, z uint32) {
	if !c.recording() {
		return
	}
	if c.pipeline == nil || c.pipeline.kind != device.PipelineCompute {
		c.failf("dispatch without a compute pipeline: %w", device.ErrInvalidState)
		return
	}
	c.endPass()
	cp := c.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: c.pipeline.label})
	cp.SetPipeline(c.pipeline.compute)
	if c.bindGroup != nil {
		cp.SetBindGroup(0, c.bindGroup, nil)
	}
	cp.Dispatch(x, y, z)
	cp.End()
}

// Close implements device.CommandList. It returns the first recording
// error.
func (c *CommandList) Close() error {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if !c.open {
		return fmt.Errorf("wgpu: close %q: %w", c.label, device.ErrListClosed)
	}
	c.endPass()
	if c.err != nil {
		c.encoder.DiscardEncoding()
		c.open = false
		return c.err
	}
	cmd, err := c.encoder.EndEncoding()
	c.open = false
	if err != nil {
		c.err = d.fail("end encoding "+c.label, err)
		return c.err
	}
	c.cmd = cmd
	return nil
}
