// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan HAL backend

	"github.com/gogpu/airis/backend"
	"github.com/gogpu/airis/device"
)

func init() {
	backend.Register(backend.BackendWGPU, func(o backend.Options) (device.Device, error) {
		if o.Provider != nil {
			return NewFromProvider(o.Provider, WithLogger(o.Logger))
		}
		return Open(gputypes.BackendVulkan, WithLogger(o.Logger))
	})
}
