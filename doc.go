// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package airis is a small real-time rendering engine built on an explicit
// GPU abstraction: command allocators, command lists, resource-state
// barriers, fences and swap chains.
//
// The interesting part is the frame-synchronization engine:
//
//   - fence: a monotonic fence timeline with bounded waits ([fence.Timeline])
//   - frame: a ring of per-frame resources gated on fence values ([frame.Ring])
//   - upload: staging uploads and persistently mapped constant buffers
//   - swapchain: back buffers, depth and compute textures plus the resize protocol
//   - renderer: the Update/Draw orchestrator with raster and ray-tracing modes
//
// Devices come from a backend: backend/sim simulates a GPU on the CPU and is
// used by tests and the headless demo; backend/wgpu drives real GPUs through
// gogpu/wgpu.
//
// # Quick Start
//
//	dev, _ := backend.Open("sim", backend.Options{})
//	r, _ := renderer.New(dev, config.Default())
//	defer r.Close()
//	for i := 0; i < 10; i++ {
//	    if err := r.RenderFrame(16 * time.Millisecond); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Logging
//
// airis is silent by default. Call [SetLogger] to enable structured logging
// through log/slog.
package airis

// Version is the library version.
const Version = "0.1.0"
