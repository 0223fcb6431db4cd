// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "fmt"

// ResourceState is the declared usage role of a GPU resource.
type ResourceState uint8

const (
	// StateCommon is the initial state of device-local resources.
	StateCommon ResourceState = iota

	// StatePresent is the state a swap-chain buffer must be in when presented.
	StatePresent

	// StateRenderTarget allows clears and draws into a color texture.
	StateRenderTarget

	// StateDepthWrite allows depth/stencil clears and depth testing.
	StateDepthWrite

	// StateCopySource allows the resource to be read by copy commands.
	StateCopySource

	// StateCopyDest allows the resource to be written by copy commands.
	StateCopyDest

	// StateUnorderedAccess allows read/write access from compute shaders.
	StateUnorderedAccess

	// StateGenericRead is the read-only state of upload-heap buffers and of
	// device-local buffers consumed by shaders, vertex input or copies.
	StateGenericRead
)

var stateNames = [...]string{
	StateCommon:          "common",
	StatePresent:         "present",
	StateRenderTarget:    "render-target",
	StateDepthWrite:      "depth-write",
	StateCopySource:      "copy-source",
	StateCopyDest:        "copy-dest",
	StateUnorderedAccess: "unordered-access",
	StateGenericRead:     "generic-read",
}

// String returns the state name.
func (s ResourceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", s)
}

// CanCopyFrom reports whether a resource in state s may be a copy source.
func (s ResourceState) CanCopyFrom() bool {
	return s == StateCopySource || s == StateGenericRead
}

// Heap is the memory pool a buffer lives in.
type Heap uint8

const (
	// HeapDeviceLocal is GPU-optimal memory, not CPU visible.
	HeapDeviceLocal Heap = iota

	// HeapUpload is CPU-write-combined memory readable by the GPU.
	// Upload buffers are always in StateGenericRead.
	HeapUpload

	// HeapReadback is CPU-readable memory written by GPU copies.
	// Readback buffers are always in StateCopyDest.
	HeapReadback
)

// String returns the heap name.
func (h Heap) String() string {
	switch h {
	case HeapDeviceLocal:
		return "device-local"
	case HeapUpload:
		return "upload"
	case HeapReadback:
		return "readback"
	default:
		return fmt.Sprintf("Heap(%d)", h)
	}
}

// InitialState returns the fixed state of buffers created in heap h.
func (h Heap) InitialState() ResourceState {
	switch h {
	case HeapUpload:
		return StateGenericRead
	case HeapReadback:
		return StateCopyDest
	default:
		return StateCommon
	}
}

// Barrier transitions Resource from Before to After.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// Transition is shorthand for a Barrier literal.
func Transition(r Resource, before, after ResourceState) Barrier {
	return Barrier{Resource: r, Before: before, After: after}
}

// String formats the barrier for logs.
func (b Barrier) String() string {
	label := "<nil>"
	if b.Resource != nil {
		label = b.Resource.Label()
	}
	return fmt.Sprintf("%s: %s -> %s", label, b.Before, b.After)
}
