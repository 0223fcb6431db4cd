// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/events"
	"github.com/gogpu/airis/frame"
	"github.com/gogpu/airis/scene"
	"github.com/gogpu/airis/shader"
	"github.com/gogpu/airis/upload"
)

// raster draws render items with the raster pipeline.
type raster struct {
	mesh  *scene.Mesh
	clear gputypes.Color
	items []*scene.Item

	r        *Renderer
	vertices device.Buffer
	indices  device.Buffer
	pipeline device.Pipeline

	// spin rotates the items about Y; toggled with R.
	spin bool
}

func newRaster(cfg *config.Config, o *options) *raster {
	c := cfg.ClearColor
	return &raster{
		mesh:  o.mesh,
		clear: gputypes.Color{R: c.R, G: c.G, B: c.B, A: c.A},
	}
}

func (m *raster) Name() config.Mode { return config.ModeRaster }

func (m *raster) Objects() int { return 1 }

func (m *raster) Init(r *Renderer, cl device.CommandList) error {
	m.r = r
	var err error
	m.vertices, err = m.upload(cl, m.mesh.Name+"-vertices", m.mesh.VertexData(), gputypes.BufferUsageVertex)
	if err != nil {
		return err
	}
	m.indices, err = m.upload(cl, m.mesh.Name+"-indices", m.mesh.IndexData(), gputypes.BufferUsageIndex)
	if err != nil {
		return err
	}

	src, err := shader.Raster(r.opts.compile)
	if err != nil {
		return err
	}
	m.pipeline, err = r.dev.CreatePipeline(&device.PipelineDesc{
		Label:            "raster",
		Kind:             device.PipelineRender,
		Shader:           src,
		VertexEntry:      shader.VertexEntry,
		FragmentEntry:    shader.FragmentEntry,
		Bindings:         []device.BindingKind{device.BindingUniform, device.BindingUniform},
		VertexStride:     scene.VertexStride,
		VertexAttributes: scene.VertexAttributes(),
		ColorFormat:      r.buffers.Format(),
		DepthFormat:      r.buffers.DepthFormat(),
	})
	if err != nil {
		return fmt.Errorf("renderer: raster pipeline: %w", err)
	}

	m.items = []*scene.Item{
		scene.NewItem(m.mesh.Name, 0, scene.Identity(), m.mesh.IndexCount(), r.ring.Size()),
	}
	return nil
}

func (m *raster) upload(cl device.CommandList, label string, data []byte, usage gputypes.BufferUsage) (device.Buffer, error) {
	buf, staging, err := upload.NewDefaultBuffer(m.r.dev, cl, label, data, usage, device.StateGenericRead)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	m.r.stage(staging)
	return buf, nil
}

func (m *raster) Resize(width, height uint32) {}

func (m *raster) Update(res *frame.Resource, pass scene.PassConstants, total float32) error {
	if err := res.Pass.Write(0, pass); err != nil {
		return err
	}
	for _, it := range m.items {
		if m.spin {
			it.SetModel(scene.RotateY(total), m.r.ring.Size())
		}
		if _, err := it.Refresh(res.Objects.Write); err != nil {
			return fmt.Errorf("renderer: item %s: %w", it.Name, err)
		}
	}
	return nil
}

func (m *raster) Record(cl device.CommandList, res *frame.Resource, target device.Texture) error {
	depth, err := m.r.buffers.Depth()
	if err != nil {
		return err
	}
	tr := m.r.tracker
	if err := tr.Transition(cl, device.StateRenderTarget, target); err != nil {
		return err
	}
	cl.ClearRenderTarget(target, m.clear)
	cl.ClearDepthStencil(depth, 1, 0)
	cl.SetRenderTargets(target, depth)
	cl.SetPipeline(m.pipeline)
	for _, it := range m.items {
		cl.SetBindings(res.Pass.Binding(0), res.Objects.Binding(it.Index))
		cl.DrawIndexed(m.vertices, m.indices, it.IndexCount)
	}
	return tr.Transition(cl, device.StatePresent, target)
}

func (m *raster) HandleEvent(e events.Event) bool {
	if e.Kind == events.KindKeyPress && e.Key == gpucontext.KeyR {
		m.spin = !m.spin
		return true
	}
	return false
}

func (m *raster) Close() {
	for _, o := range []device.Object{m.pipeline, m.vertices, m.indices} {
		if o != nil {
			o.Release()
		}
	}
	m.pipeline, m.vertices, m.indices = nil, nil, nil
}
