// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// textureUsage maps a resource state to the texture usage the HAL derives
// layouts and access masks from. Common means undefined contents; Present
// is the copy source of an offscreen swap chain.
func textureUsage(s device.ResourceState) gputypes.TextureUsage {
	switch s {
	case device.StatePresent, device.StateCopySource:
		return gputypes.TextureUsageCopySrc
	case device.StateRenderTarget, device.StateDepthWrite:
		return gputypes.TextureUsageRenderAttachment
	case device.StateCopyDest:
		return gputypes.TextureUsageCopyDst
	case device.StateUnorderedAccess:
		return gputypes.TextureUsageStorageBinding
	case device.StateGenericRead:
		return gputypes.TextureUsageTextureBinding
	default:
		return gputypes.TextureUsageNone
	}
}

// readUsages are the buffer usages reachable in StateGenericRead.
const readUsages = gputypes.BufferUsageVertex | gputypes.BufferUsageIndex |
	gputypes.BufferUsageUniform | gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect

// bufferUsage maps a resource state of a buffer created with usage u.
func bufferUsage(s device.ResourceState, u gputypes.BufferUsage) gputypes.BufferUsage {
	switch s {
	case device.StateCopySource:
		return gputypes.BufferUsageCopySrc
	case device.StateCopyDest:
		return gputypes.BufferUsageCopyDst
	case device.StateUnorderedAccess:
		return gputypes.BufferUsageStorage
	case device.StateGenericRead:
		return u & readUsages
	default:
		return gputypes.BufferUsageNone
	}
}

// rowCopies splits a texture-to-buffer copy of tightly packed rows. A
// single region is used when the row pitch meets the 256-byte copy
// alignment, otherwise one region per row.
func rowCopies(width, height uint32, bpp int) []rowCopy {
	pitch := width * uint32(bpp)
	if pitch%copyPitchAlignment == 0 {
		return []rowCopy{{y: 0, rows: height, offset: 0, pitch: pitch}}
	}
	regions := make([]rowCopy, height)
	for y := range height {
		regions[y] = rowCopy{y: y, rows: 1, offset: uint64(y) * uint64(pitch), pitch: pitch}
	}
	return regions
}

const copyPitchAlignment = 256

type rowCopy struct {
	y      uint32
	rows   uint32
	offset uint64
	pitch  uint32
}
