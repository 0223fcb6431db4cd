// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"github.com/gogpu/airis/backend"
	"github.com/gogpu/airis/device"
)

func init() {
	backend.Register(backend.BackendSim, func(o backend.Options) (device.Device, error) {
		return New(WithLogger(o.Logger)), nil
	})
}
