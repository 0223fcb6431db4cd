// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package frame implements the frame resource ring.
//
// A frame resource is everything the CPU writes while recording one frame:
// a command allocator and the per-frame constant buffers. The ring holds a
// fixed number of them so the CPU can record frame N+k while the GPU still
// executes frame N. Before a slot is reused, Begin waits for the fence value
// of the frame that last used it; this is the only place a steady-state
// frame blocks.
package frame
