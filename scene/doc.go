// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scene holds the CPU-side data the renderer uploads: constant
// buffer layouts, render items with per-frame dirty tracking, meshes and the
// sphere/material records of the ray tracer.
//
// All GPU-visible structs are fixed-size and encode little-endian with
// encoding/binary, so their byte layout matches the shader declarations:
//
//	PassConstants    432 bytes (512 in a constant buffer)
//	ObjectConstants   64 bytes (256 in a constant buffer)
//	RTConstants       20 bytes
//	Sphere            20 bytes
//	Material          20 bytes
package scene
