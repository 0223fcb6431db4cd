// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "errors"

var (
	// ErrDeviceLost is returned when the device stopped responding or was
	// removed. The device and every object created from it must be rebuilt.
	ErrDeviceLost = errors.New("device: device lost")

	// ErrInvalidState is returned when a command uses a resource whose state
	// does not match the role the command needs, or a barrier's Before state
	// does not match the resource's current state.
	ErrInvalidState = errors.New("device: invalid resource state")

	// ErrReleased is returned when a released object is used.
	ErrReleased = errors.New("device: object released")

	// ErrInUse is returned when an object is reset or resized while queued
	// GPU work still references it.
	ErrInUse = errors.New("device: object in use by the GPU")

	// ErrListClosed is returned when recording into a closed command list.
	ErrListClosed = errors.New("device: command list is closed")

	// ErrListOpen is returned when executing a command list that was not
	// closed.
	ErrListOpen = errors.New("device: command list is open")

	// ErrNotMappable is returned by Map on device-local buffers.
	ErrNotMappable = errors.New("device: buffer is not CPU visible")

	// ErrInvalidDescriptor is returned for malformed descriptors.
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")

	// ErrUntracked is returned by Tracker for resources it does not know.
	ErrUntracked = errors.New("device: resource state not tracked")
)
