// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/airis/device"
)

// Pipeline is a HAL render or compute pipeline with a single bind group.
type Pipeline struct {
	object
	kind     device.PipelineKind
	bindings []device.BindingKind
	layout   hal.BindGroupLayout
	render   hal.RenderPipeline
	compute  hal.ComputePipeline
}

var _ device.Pipeline = (*Pipeline)(nil)

// Kind implements device.Pipeline.
func (p *Pipeline) Kind() device.PipelineKind { return p.kind }

// layoutEntries maps binding kinds to bind group layout entries. Read/write
// slots consume formats in order.
func layoutEntries(desc *device.PipelineDesc) ([]gputypes.BindGroupLayoutEntry, error) {
	visibility := gputypes.ShaderStagesVertexFragment
	if desc.Kind == device.PipelineCompute {
		visibility = gputypes.ShaderStageCompute
	}
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Bindings))
	storage := 0
	for i, k := range desc.Bindings {
		e := gputypes.BindGroupLayoutEntry{Binding: uint32(i), Visibility: visibility}
		switch k {
		case device.BindingUniform:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case device.BindingReadOnly:
			e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
		case device.BindingReadWrite:
			if storage >= len(desc.StorageFormats) {
				return nil, fmt.Errorf("%w: pipeline %q binding %d has no storage format",
					device.ErrInvalidDescriptor, desc.Label, i)
			}
			e.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessReadWrite,
				Format:        desc.StorageFormats[storage],
				ViewDimension: gputypes.TextureViewDimension2D,
			}
			storage++
		default:
			return nil, fmt.Errorf("%w: pipeline %q binding %d has kind %d",
				device.ErrInvalidDescriptor, desc.Label, i, k)
		}
		entries[i] = e
	}
	return entries, nil
}

// CreatePipeline implements device.Device. SPIR-V is used when present,
// otherwise the HAL compiles the WGSL.
func (d *Device) CreatePipeline(desc *device.PipelineDesc) (_ device.Pipeline, err error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	entries, err := layoutEntries(desc)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}

	p := &Pipeline{kind: desc.Kind, bindings: append([]device.BindingKind(nil), desc.Bindings...)}
	var (
		module     hal.ShaderModule
		pipeLayout hal.PipelineLayout
	)
	destroy := func() {
		if p.render != nil {
			d.raw.DestroyRenderPipeline(p.render)
		}
		if p.compute != nil {
			d.raw.DestroyComputePipeline(p.compute)
		}
		if pipeLayout != nil {
			d.raw.DestroyPipelineLayout(pipeLayout)
		}
		if p.layout != nil {
			d.raw.DestroyBindGroupLayout(p.layout)
		}
		if module != nil {
			d.raw.DestroyShaderModule(module)
		}
	}
	defer func() {
		if err != nil {
			destroy()
		}
	}()

	src := hal.ShaderSource{SPIRV: desc.Shader.SPIRV}
	if len(src.SPIRV) == 0 {
		src.WGSL = desc.Shader.WGSL
	}
	module, err = d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Shader.Name, Source: src})
	if err != nil {
		return nil, d.fail("shader "+desc.Shader.Name, err)
	}
	p.layout, err = d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "-bindings",
		Entries: entries,
	})
	if err != nil {
		return nil, d.fail("bind group layout "+desc.Label, err)
	}
	pipeLayout, err = d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "-layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return nil, d.fail("pipeline layout "+desc.Label, err)
	}

	switch desc.Kind {
	case device.PipelineCompute:
		p.compute, err = d.raw.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   desc.Label,
			Layout:  pipeLayout,
			Compute: hal.ComputeState{Module: module, EntryPoint: desc.ComputeEntry},
		})
	default:
		p.render, err = d.raw.CreateRenderPipeline(renderDescriptor(desc, pipeLayout, module))
	}
	if err != nil {
		return nil, d.fail("pipeline "+desc.Label, err)
	}
	p.object = object{dev: d, label: desc.Label, destroy: destroy}
	return p, nil
}

func renderDescriptor(desc *device.PipelineDesc, layout hal.PipelineLayout, module hal.ShaderModule) *hal.RenderPipelineDescriptor {
	rd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: desc.VertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  desc.VertexAttributes,
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.ColorFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
	}
	if desc.DepthFormat != gputypes.TextureFormatUndefined {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		rd.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}
	return rd
}
