// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package upload moves CPU data into GPU memory.
//
// NewDefaultBuffer creates a device-local buffer filled from CPU bytes
// through a staging buffer. Buffer is a persistently mapped upload-heap
// array for data rewritten every frame. ReadBuffer and ReadTexture copy GPU
// memory back to the CPU.
package upload

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// ErrEmptyUpload is returned when uploading zero bytes.
var ErrEmptyUpload = errors.New("upload: no data")

// NewDefaultBuffer records the upload of data into a new device-local
// buffer on cl and returns the buffer with the staging buffer the copy
// reads from.
//
// The destination is created in device.StateCommon and left in steady once
// cl executes. The staging buffer must stay alive until a fence wait
// confirms that cl has executed; hand it to a Pending set or release it
// after a flush. Allocation failures are returned, never retried.
func NewDefaultBuffer(dev device.Device, cl device.CommandList, label string, data []byte, usage gputypes.BufferUsage, steady device.ResourceState) (dst, staging device.Buffer, err error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyUpload, label)
	}
	size := uint64(len(data))

	dst, err = dev.CreateBuffer(&device.BufferDesc{
		Label: label,
		Size:  size,
		Heap:  device.HeapDeviceLocal,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upload: create %s: %w", label, err)
	}
	staging, err = dev.CreateBuffer(&device.BufferDesc{
		Label: label + "-staging",
		Size:  size,
		Heap:  device.HeapUpload,
		Usage: gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		dst.Release()
		return nil, nil, fmt.Errorf("upload: create %s staging: %w", label, err)
	}

	mem, err := staging.Map()
	if err != nil {
		dst.Release()
		staging.Release()
		return nil, nil, fmt.Errorf("upload: map %s staging: %w", label, err)
	}
	copy(mem, data)
	staging.Unmap()

	cl.Barrier(device.Transition(dst, device.StateCommon, device.StateCopyDest))
	cl.CopyBuffer(dst, staging)
	if steady != device.StateCopyDest {
		cl.Barrier(device.Transition(dst, device.StateCopyDest, steady))
	}
	return dst, staging, nil
}

// Pending holds staging buffers until the fence value of the submission
// that reads them completes.
type Pending struct {
	items []pendingItem
}

type pendingItem struct {
	buf   device.Buffer
	fence uint64
}

// Add keeps buf alive until fence value v completes.
func (p *Pending) Add(buf device.Buffer, v uint64) {
	p.items = append(p.items, pendingItem{buf: buf, fence: v})
}

// Collect releases every buffer whose fence value is at most completed and
// returns how many were released.
func (p *Pending) Collect(completed uint64) int {
	kept := p.items[:0]
	n := 0
	for _, it := range p.items {
		if it.fence <= completed {
			it.buf.Release()
			n++
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(p.items); i++ {
		p.items[i] = pendingItem{}
	}
	p.items = kept
	return n
}

// Len returns the number of buffers still held.
func (p *Pending) Len() int { return len(p.items) }
