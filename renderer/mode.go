// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"fmt"

	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/events"
	"github.com/gogpu/airis/frame"
	"github.com/gogpu/airis/scene"
)

// mode is a rendering technique. The set is closed: raster and rayTrace.
type mode interface {
	Name() config.Mode

	// Objects is the number of object constant slots per frame resource.
	Objects() int

	// Init creates the mode's pipelines and records the upload of its
	// static data into cl. Staging buffers go to r.pending.
	Init(r *Renderer, cl device.CommandList) error

	// Resize reacts to new render target dimensions.
	Resize(width, height uint32)

	// Update writes the frame's constants into res.
	Update(res *frame.Resource, pass scene.PassConstants, total float32) error

	// Record records the frame into cl, leaving target in
	// device.StatePresent.
	Record(cl device.CommandList, res *frame.Resource, target device.Texture) error

	// HandleEvent reacts to input and reports whether it consumed e.
	HandleEvent(e events.Event) bool

	// Close releases the mode's GPU objects. The GPU is idle.
	Close()
}

func newMode(cfg *config.Config, o *options) (mode, error) {
	switch cfg.Mode {
	case config.ModeRaster:
		return newRaster(cfg, o), nil
	case config.ModeRayTrace:
		return newRayTrace(cfg, o), nil
	default:
		return nil, fmt.Errorf("renderer: unknown mode %q", cfg.Mode)
	}
}
