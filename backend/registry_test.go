// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/airis/device"
)

type stubDevice struct {
	device.Device
	name string
}

func TestRegistryRegisterAndOpen(t *testing.T) {
	Register("stub", func(Options) (device.Device, error) { return &stubDevice{name: "stub"}, nil })
	t.Cleanup(func() { Unregister("stub") })

	if !IsRegistered("stub") {
		t.Fatal("stub not registered")
	}
	dev, err := Open("stub", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if dev.(*stubDevice).name != "stub" {
		t.Errorf("Open returned %v", dev)
	}
}

func TestRegistryOpenUnregistered(t *testing.T) {
	_, err := Open("nonexistent", Options{})
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Fatalf("err = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryAvailableSorted(t *testing.T) {
	Register("zz-test", func(Options) (device.Device, error) { return nil, nil })
	Register("aa-test", func(Options) (device.Device, error) { return nil, nil })
	t.Cleanup(func() {
		Unregister("zz-test")
		Unregister("aa-test")
	})
	names := Available()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Available() not sorted: %v", names)
		}
	}
}

func TestRegistryDefaultFallsBack(t *testing.T) {
	Register(BackendWGPU, func(Options) (device.Device, error) { return nil, errors.New("no adapter") })
	Register(BackendSim, func(Options) (device.Device, error) { return &stubDevice{name: BackendSim}, nil })
	t.Cleanup(func() {
		Unregister(BackendWGPU)
		Unregister(BackendSim)
	})

	dev, err := Default(Options{})
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if dev.(*stubDevice).name != BackendSim {
		t.Errorf("Default picked %q", dev.(*stubDevice).name)
	}
}

func TestRegistryDefaultNoneOpens(t *testing.T) {
	Register(BackendSim, func(Options) (device.Device, error) { return nil, errors.New("broken") })
	t.Cleanup(func() { Unregister(BackendSim) })

	if _, err := Default(Options{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Fatalf("err = %v, want ErrBackendNotAvailable", err)
	}
}
