// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device defines the low-level GPU abstraction the frame engine
// executes against.
//
// The model is explicit: a Device creates resources, command allocators and
// command lists; a Queue executes closed command lists in submission order
// and signals Fences; every GPU resource carries a ResourceState that must be
// changed with an explicit Barrier before the resource is used in a different
// role.
//
// Two backends implement these interfaces: backend/sim (a CPU simulation used
// by tests and the headless demo) and backend/wgpu (gogpu/wgpu HAL devices).
//
// # Ownership
//
// Every object returned by a Device is owned by its creator and released with
// Release. Releasing an object that queued GPU work still references is a
// programming error; backends that can detect it report it.
package device
