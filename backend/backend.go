// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/airis/device"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or cannot open a device on this machine.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend names.
const (
	// BackendWGPU drives a real GPU through gogpu/wgpu.
	BackendWGPU = "wgpu"

	// BackendSim is the CPU simulation.
	BackendSim = "sim"
)

// Options are passed to a backend factory.
type Options struct {
	// Logger receives backend logs. Nil uses the airis package logger.
	Logger *slog.Logger

	// Provider is an optional host-owned GPU device, such as a
	// gpucontext.DeviceProvider. Backends that cannot use it ignore it.
	Provider any
}

// Factory opens a device.
type Factory func(Options) (device.Device, error)
