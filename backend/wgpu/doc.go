// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements device.Device on the gogpu/wgpu HAL.
//
// The HAL is a thin, WebGPU-shaped layer over Vulkan, Metal, DX12 and GLES.
// This package maps the explicit model used by airis onto it:
//
//   - command lists are encoded directly into HAL command encoders; render
//     passes are opened lazily by draws and closed by any other command
//   - resource states become texture and buffer usage transitions
//   - fences are timeline values resolved against HAL submission indices
//   - upload-heap buffers keep a CPU copy that is written to the GPU buffer
//     when a command list referencing it is executed
//   - objects released while the GPU still uses them are destroyed once
//     their last submission completes
//
// The swap chain is offscreen: back buffers are ordinary textures and
// Present rotates them. Frames are read back with a texture copy.
//
// Importing the package registers the "wgpu" backend, which opens the
// first Vulkan adapter:
//
//	import _ "github.com/gogpu/airis/backend/wgpu"
package wgpu
