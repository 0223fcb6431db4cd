// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"time"

	"github.com/gogpu/gputypes"
)

// ConstantBufferAlignment is the minimum alignment of constant buffer
// elements. Persistent constant buffers pad their stride to this value.
const ConstantBufferAlignment = 256

// AlignConstant rounds size up to a multiple of ConstantBufferAlignment.
func AlignConstant(size uint64) uint64 {
	return (size + ConstantBufferAlignment - 1) &^ (ConstantBufferAlignment - 1)
}

// Object is anything created by a Device.
type Object interface {
	// Release frees the object. Releasing twice is a no-op.
	Release()
}

// Resource is a GPU memory object: a Buffer or a Texture.
type Resource interface {
	Object
	Label() string
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Resource
	Size() uint64
	Heap() Heap

	// Map returns CPU-visible memory for upload and readback buffers.
	// For upload buffers the returned slice stays valid until Unmap.
	Map() ([]byte, error)
	Unmap()
}

// Texture is a 2D image.
type Texture interface {
	Resource
	Width() uint32
	Height() uint32
	Format() gputypes.TextureFormat
}

// Pipeline is an opaque pipeline state object.
type Pipeline interface {
	Object
	Kind() PipelineKind
}

// CommandAllocator owns the memory command lists record into.
type CommandAllocator interface {
	Object

	// Reset reclaims the allocator memory. It fails with ErrInUse while
	// work recorded from it has not finished executing.
	Reset() error
}

// CommandList records GPU commands.
//
// Recording methods never fail individually; the first recording error is
// returned by Close. A list is created open, must be closed before it is
// executed, and reopened with Reset.
type CommandList interface {
	Object

	// Reset reopens the list, recording into alloc.
	Reset(alloc CommandAllocator) error

	Barrier(barriers ...Barrier)
	CopyBuffer(dst, src Buffer)
	CopyTexture(dst, src Texture)
	CopyTextureToBuffer(dst Buffer, src Texture)
	ClearRenderTarget(target Texture, c gputypes.Color)
	ClearDepthStencil(target Texture, depth float32, stencil uint32)
	SetRenderTargets(color, depth Texture)
	SetPipeline(p Pipeline)
	SetBindings(bindings ...Binding)
	DrawIndexed(vertices, indices Buffer, indexCount uint32)
	Dispatch(x, y, z uint32)

	// Close ends recording.
	Close() error
}

// Fence is a monotonically increasing completion counter written by the
// queue.
type Fence interface {
	Object

	// Completed returns the highest value the GPU has reached.
	Completed() uint64

	// Wait blocks until Completed() >= value or the timeout expires.
	// It returns false on timeout. A negative timeout waits forever.
	Wait(value uint64, timeout time.Duration) (bool, error)
}

// Queue executes command lists in submission order.
type Queue interface {
	// Execute submits closed command lists.
	Execute(lists ...CommandList) error

	// Signal sets f to value once all previously submitted work completes.
	Signal(f Fence, value uint64) error
}

// SwapChain owns the presentable back buffers.
//
// All references to the buffers must be dropped before Resize.
type SwapChain interface {
	Object
	BufferCount() int
	CurrentIndex() int
	Buffer(i int) (Texture, error)
	Format() gputypes.TextureFormat
	Present() error
	Resize(width, height uint32) error
}

// Info describes an opened device.
type Info struct {
	Backend string
	Name    string
}

// Device creates GPU objects and owns the queue.
type Device interface {
	Info() Info
	Queue() Queue
	CreateFence(initial uint64) (Fence, error)
	CreateCommandAllocator(label string) (CommandAllocator, error)
	CreateCommandList(label string, alloc CommandAllocator) (CommandList, error)
	CreateBuffer(desc *BufferDesc) (Buffer, error)
	CreateTexture(desc *TextureDesc) (Texture, error)
	CreatePipeline(desc *PipelineDesc) (Pipeline, error)
	CreateSwapChain(desc *SwapChainDesc) (SwapChain, error)

	// Close destroys the device. Objects created from it become invalid.
	Close() error
}

// InFlightReporter is implemented by devices that track which resources
// are referenced by unfinished GPU work.
type InFlightReporter interface {
	InFlight(r Resource) bool
}
