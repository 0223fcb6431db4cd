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

// rayTrace renders the sphere world with the compute ray tracer and copies
// the result into the back buffer.
type rayTrace struct {
	world    *scene.World
	acc      *scene.Accumulator
	dragging bool

	r         *Renderer
	spheres   device.Buffer
	materials device.Buffer
	pipeline  device.Pipeline
}

func newRayTrace(cfg *config.Config, o *options) *rayTrace {
	return &rayTrace{
		world: o.world,
		acc:   scene.NewAccumulator(cfg.Accumulate, cfg.MaxRayBounces),
	}
}

func (m *rayTrace) Name() config.Mode { return config.ModeRayTrace }

func (m *rayTrace) Objects() int { return 0 }

func (m *rayTrace) Init(r *Renderer, cl device.CommandList) error {
	m.r = r
	if err := m.world.Validate(); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	var err error
	m.spheres, err = m.upload(cl, "spheres", m.world.SphereData())
	if err != nil {
		return err
	}
	m.materials, err = m.upload(cl, "materials", m.world.MaterialData())
	if err != nil {
		return err
	}

	src, err := shader.RayTrace(r.buffers.Format(), r.opts.compile)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	m.pipeline, err = r.dev.CreatePipeline(&device.PipelineDesc{
		Label:        "raytrace",
		Kind:         device.PipelineCompute,
		Shader:       src,
		ComputeEntry: shader.ComputeEntry,
		Bindings: []device.BindingKind{
			device.BindingUniform,   // pass
			device.BindingUniform,   // rt constants
			device.BindingReadOnly,  // spheres
			device.BindingReadOnly,  // materials
			device.BindingReadWrite, // output
			device.BindingReadWrite, // accumulation
		},
		StorageFormats: []gputypes.TextureFormat{r.buffers.Format(), gputypes.TextureFormatRGBA32Float},
	})
	if err != nil {
		return fmt.Errorf("renderer: ray tracing pipeline: %w", err)
	}
	return nil
}

func (m *rayTrace) upload(cl device.CommandList, label string, data []byte) (device.Buffer, error) {
	buf, staging, err := upload.NewDefaultBuffer(m.r.dev, cl, label, data, gputypes.BufferUsageStorage, device.StateGenericRead)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	m.r.stage(staging)
	return buf, nil
}

func (m *rayTrace) Resize(width, height uint32) { m.acc.Reset() }

func (m *rayTrace) Update(res *frame.Resource, pass scene.PassConstants, total float32) error {
	if err := res.Pass.Write(0, pass); err != nil {
		return err
	}
	return res.RT.Write(0, m.acc.Next())
}

// dispatchSize returns the workgroup grid covering width x height pixels.
func dispatchSize(width, height uint32) (x, y, z uint32) {
	return (width + shader.RayTraceWorkgroupWidth - 1) / shader.RayTraceWorkgroupWidth, height, 1
}

func (m *rayTrace) Record(cl device.CommandList, res *frame.Resource, target device.Texture) error {
	bs := m.r.buffers
	output, err := bs.Output()
	if err != nil {
		return err
	}
	accum, err := bs.Accumulation()
	if err != nil {
		return err
	}
	tr := m.r.tracker

	if err := tr.Transition(cl, device.StateUnorderedAccess, output, accum); err != nil {
		return err
	}
	cl.SetPipeline(m.pipeline)
	cl.SetBindings(
		res.Pass.Binding(0),
		res.RT.Binding(0),
		device.ReadOnlyBinding(m.spheres),
		device.ReadOnlyBinding(m.materials),
		device.ReadWriteBinding(output),
		device.ReadWriteBinding(accum),
	)
	cl.Dispatch(dispatchSize(bs.Size()))

	if err := tr.Transition(cl, device.StateCopySource, output); err != nil {
		return err
	}
	if err := tr.Transition(cl, device.StateCopyDest, target); err != nil {
		return err
	}
	cl.CopyTexture(target, output)
	return tr.Transition(cl, device.StatePresent, target)
}

// HandleEvent toggles accumulation on Space. Other key presses, mouse
// presses and drags move the view, so the accumulated samples are
// discarded. Hovering and scrolling leave them alone.
func (m *rayTrace) HandleEvent(e events.Event) bool {
	switch e.Kind {
	case events.KindKeyPress:
		if e.Key == gpucontext.KeySpace {
			m.acc.Toggle()
			return true
		}
	case events.KindMousePress:
		m.dragging = true
	case events.KindMouseRelease:
		m.dragging = false
		return false
	case events.KindMouseMove:
		if !m.dragging {
			return false
		}
	default:
		return false
	}
	m.acc.Reset()
	return true
}

func (m *rayTrace) Close() {
	for _, o := range []device.Object{m.pipeline, m.spheres, m.materials} {
		if o != nil {
			o.Release()
		}
	}
	m.pipeline, m.spheres, m.materials = nil, nil, nil
}
