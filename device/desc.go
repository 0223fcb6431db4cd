// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BufferDesc describes a buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Heap  Heap

	// Usage lists the roles the buffer may take. Upload and readback heaps
	// add their implied usages automatically.
	Usage gputypes.BufferUsage
}

// Validate checks the descriptor.
func (d *BufferDesc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil buffer descriptor", ErrInvalidDescriptor)
	}
	if d.Size == 0 {
		return fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       gputypes.TextureFormat
	Usage        gputypes.TextureUsage
	InitialState ResourceState
}

// Validate checks the descriptor.
func (d *TextureDesc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil texture descriptor", ErrInvalidDescriptor)
	}
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidDescriptor, d.Label, d.Width, d.Height)
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return fmt.Errorf("%w: texture %q has no format", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// SwapChainDesc describes a swap chain.
type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount int
	Format      gputypes.TextureFormat
}

// Validate checks the descriptor.
func (d *SwapChainDesc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil swap chain descriptor", ErrInvalidDescriptor)
	}
	if d.BufferCount < 2 || d.BufferCount > 3 {
		return fmt.Errorf("%w: swap chain needs 2 or 3 buffers, got %d", ErrInvalidDescriptor, d.BufferCount)
	}
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("%w: swap chain is %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	return nil
}

// PipelineKind selects the pipeline type.
type PipelineKind uint8

const (
	PipelineRender PipelineKind = iota
	PipelineCompute
)

// String returns the kind name.
func (k PipelineKind) String() string {
	if k == PipelineCompute {
		return "compute"
	}
	return "render"
}

// ShaderSource is an opaque shader program. Backends use whichever
// representation they accept.
type ShaderSource struct {
	Name  string
	WGSL  string
	SPIRV []uint32
}

// BindingKind is the access mode of one binding slot.
type BindingKind uint8

const (
	// BindingUniform is a constant buffer range.
	BindingUniform BindingKind = iota

	// BindingReadOnly is a read-only structured buffer.
	BindingReadOnly

	// BindingReadWrite is a read/write texture or buffer.
	BindingReadWrite
)

// Binding binds a buffer range or a texture to the slot at its position in
// the SetBindings argument list.
type Binding struct {
	Kind    BindingKind
	Buffer  Buffer
	Offset  uint64
	Size    uint64
	Texture Texture
}

// Resource returns the bound buffer or texture.
func (b Binding) Resource() Resource {
	if b.Texture != nil {
		return b.Texture
	}
	if b.Buffer != nil {
		return b.Buffer
	}
	return nil
}

// UniformBinding binds size bytes of buf at offset as constants.
func UniformBinding(buf Buffer, offset, size uint64) Binding {
	return Binding{Kind: BindingUniform, Buffer: buf, Offset: offset, Size: size}
}

// ReadOnlyBinding binds a whole structured buffer.
func ReadOnlyBinding(buf Buffer) Binding {
	return Binding{Kind: BindingReadOnly, Buffer: buf, Size: buf.Size()}
}

// ReadWriteBinding binds a texture for unordered access.
func ReadWriteBinding(tex Texture) Binding {
	return Binding{Kind: BindingReadWrite, Texture: tex}
}

// PipelineDesc describes a render or compute pipeline.
type PipelineDesc struct {
	Label  string
	Kind   PipelineKind
	Shader ShaderSource

	// Entry points. Compute pipelines use ComputeEntry only.
	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string

	// Bindings lists the slots in binding order.
	Bindings []BindingKind

	// Render pipeline state.
	VertexStride     uint64
	VertexAttributes []gputypes.VertexAttribute
	ColorFormat      gputypes.TextureFormat
	DepthFormat      gputypes.TextureFormat

	// StorageFormats are the formats of the read/write textures bound to
	// compute pipelines, in binding order.
	StorageFormats []gputypes.TextureFormat
}

// Validate checks the descriptor.
func (d *PipelineDesc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil pipeline descriptor", ErrInvalidDescriptor)
	}
	if d.Shader.WGSL == "" && len(d.Shader.SPIRV) == 0 {
		return fmt.Errorf("%w: pipeline %q has no shader", ErrInvalidDescriptor, d.Label)
	}
	switch d.Kind {
	case PipelineCompute:
		if d.ComputeEntry == "" {
			return fmt.Errorf("%w: compute pipeline %q has no entry point", ErrInvalidDescriptor, d.Label)
		}
	case PipelineRender:
		if d.VertexEntry == "" || d.FragmentEntry == "" {
			return fmt.Errorf("%w: render pipeline %q needs vertex and fragment entry points", ErrInvalidDescriptor, d.Label)
		}
	}
	return nil
}

// BytesPerPixel returns the texel size of f for tightly packed copies.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
