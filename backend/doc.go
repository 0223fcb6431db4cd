// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend is the registry of device backends.
//
// Backends register a Factory from init():
//
//	import _ "github.com/gogpu/airis/backend/sim"
//
// and are opened by name or by priority:
//
//	dev, err := backend.Open("sim", backend.Options{})
//
//	// wgpu when a GPU is present, otherwise the simulation
//	dev, err := backend.Default(backend.Options{})
package backend
