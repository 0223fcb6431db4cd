// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"log/slog"

	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/events"
	"github.com/gogpu/airis/scene"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	bus := events.NewBus(nil)
//	r, err := renderer.New(dev, cfg,
//	    renderer.WithBus(bus),
//	    renderer.WithLogger(logger))
type Option func(*options)

// PassSource computes the pass constants of a frame for a render target of
// width x height. total is the time since the first frame, delta the frame
// time, both in seconds.
type PassSource func(width, height uint32, total, delta float32) scene.PassConstants

// DeviceFactory opens a replacement device after device loss.
type DeviceFactory func() (device.Device, error)

type options struct {
	logger  *slog.Logger
	bus     *events.Bus
	pass    PassSource
	factory DeviceFactory
	mesh    *scene.Mesh
	world   *scene.World
	compile bool
}

func defaultOptions() options {
	cam := scene.DefaultCamera()
	return options{
		pass:  cam.PassConstants,
		mesh:  scene.Cube(),
		world: scene.DefaultWorld(),
	}
}

// WithLogger sets the logger. The package logger is used by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBus subscribes the renderer to resize, window and input events on
// bus. Events are delivered at the start of every RenderFrame.
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithPassSource replaces the default fixed camera.
//
// Example:
//
//	cam := scene.DefaultCamera()
//	renderer.WithPassSource(func(w, h uint32, total, dt float32) scene.PassConstants {
//	    return cam.Orbit(total).PassConstants(w, h, total, dt)
//	})
func WithPassSource(src PassSource) Option {
	return func(o *options) {
		if src != nil {
			o.pass = src
		}
	}
}

// WithDeviceFactory enables Recover. The factory is called to open a new
// device after the current one was lost.
func WithDeviceFactory(f DeviceFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithMesh sets the mesh drawn in raster mode.
func WithMesh(m *scene.Mesh) Option {
	return func(o *options) {
		if m != nil {
			o.mesh = m
		}
	}
}

// WithWorld sets the spheres rendered in ray tracing mode.
func WithWorld(w *scene.World) Option {
	return func(o *options) {
		if w != nil {
			o.world = w
		}
	}
}

// WithCompiledShaders compiles the pipeline shaders to SPIR-V with naga
// before handing them to the device. Without it pipelines carry WGSL only.
func WithCompiledShaders() Option {
	return func(o *options) { o.compile = true }
}
