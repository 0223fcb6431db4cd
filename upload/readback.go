// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/fence"
)

// ReadBuffer copies src into a readback buffer, flushes tl and returns the
// bytes. src must be in state; it is returned to that state afterwards.
func ReadBuffer(dev device.Device, tl *fence.Timeline, src device.Buffer, state device.ResourceState) ([]byte, error) {
	return readback(dev, tl, src.Label(), src.Size(), func(cl device.CommandList, dst device.Buffer) {
		copyWithState(cl, src, state, func() { cl.CopyBuffer(dst, src) })
	})
}

// ReadTexture copies tex into a readback buffer, flushes tl and returns the
// tightly packed texels. tex must be in state; it is returned to that state
// afterwards.
func ReadTexture(dev device.Device, tl *fence.Timeline, tex device.Texture, state device.ResourceState) ([]byte, error) {
	size := uint64(tex.Width()) * uint64(tex.Height()) * uint64(device.BytesPerPixel(tex.Format()))
	return readback(dev, tl, tex.Label(), size, func(cl device.CommandList, dst device.Buffer) {
		copyWithState(cl, tex, state, func() { cl.CopyTextureToBuffer(dst, tex) })
	})
}

func copyWithState(cl device.CommandList, r device.Resource, state device.ResourceState, copyFn func()) {
	if state.CanCopyFrom() {
		copyFn()
		return
	}
	cl.Barrier(device.Transition(r, state, device.StateCopySource))
	copyFn()
	cl.Barrier(device.Transition(r, device.StateCopySource, state))
}

func readback(dev device.Device, tl *fence.Timeline, label string, size uint64, record func(device.CommandList, device.Buffer)) ([]byte, error) {
	dst, err := dev.CreateBuffer(&device.BufferDesc{
		Label: label + "-readback",
		Size:  size,
		Heap:  device.HeapReadback,
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	defer dst.Release()

	alloc, err := dev.CreateCommandAllocator(label + "-readback")
	if err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	defer alloc.Release()
	cl, err := dev.CreateCommandList(label+"-readback", alloc)
	if err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	defer cl.Release()

	record(cl, dst)
	if err := cl.Close(); err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	if err := dev.Queue().Execute(cl); err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	if err := tl.Flush(); err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}

	mem, err := dst.Map()
	if err != nil {
		return nil, fmt.Errorf("upload: readback %s: %w", label, err)
	}
	defer dst.Unmap()
	out := make([]byte, size)
	copy(out, mem)
	return out, nil
}
