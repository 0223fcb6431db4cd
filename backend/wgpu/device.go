// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/device"
)

// BackendName is the name reported in device.Info.
const BackendName = "wgpu"

// ErrNoAdapter is returned by Open when the HAL backend exposes no adapter.
var ErrNoAdapter = errors.New("wgpu: no GPU adapter found")

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// garbage is a HAL object destroyed once submission index has completed.
type garbage struct {
	index   uint64
	destroy func()
}

// Device is a device.Device on a HAL device and queue.
type Device struct {
	raw   hal.Device
	queue *Queue
	info  device.Info
	log   *slog.Logger

	// shutdown destroys what Open created. Nil for borrowed devices.
	shutdown func()

	mu      sync.Mutex
	lost    error
	closed  bool
	garbage []garbage
}

var _ device.Device = (*Device)(nil)
var _ device.InFlightReporter = (*Device)(nil)

// Open creates an instance of the HAL backend, picks an adapter
// (discrete first, then integrated, then whatever comes first) and opens a
// device on it.
func Open(variant gputypes.Backend, opts ...Option) (*Device, error) {
	b, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("wgpu: %s: %w", variant, hal.ErrBackendNotFound)
	}
	inst, err := b.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, ErrNoAdapter
	}
	selected := pickAdapter(adapters)

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("wgpu: open %s: %w", selected.Info.Name, err)
	}
	d := NewFromHal(open.Device, open.Queue, selected.Info.Name, opts...)
	d.shutdown = func() {
		open.Device.Destroy()
		selected.Adapter.Destroy()
		inst.Destroy()
	}
	return d, nil
}

func pickAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// NewFromHal wraps a HAL device and queue owned by the caller. Close does
// not destroy them.
func NewFromHal(raw hal.Device, queue hal.Queue, name string, opts ...Option) *Device {
	d := &Device{raw: raw, info: device.Info{Backend: BackendName, Name: name}}
	for _, opt := range opts {
		opt(d)
	}
	d.log = airis.LoggerOr(d.log)
	d.queue = &Queue{dev: d, raw: queue}
	d.log.Info("wgpu: device ready", "adapter", name)
	return d
}

// NewFromProvider shares the GPU device of a host application. The
// provider must expose HalDevice() any and HalQueue() any returning a
// hal.Device and a hal.Queue. When it is also a gpucontext.DeviceProvider
// the adapter name is taken from it.
func NewFromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider %T does not expose HAL types", provider)
	}
	raw, ok := hp.HalDevice().(hal.Device)
	if !ok || raw == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not a hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not a hal.Queue")
	}
	name := "shared device"
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		info := dp.AdapterInfo()
		name = fmt.Sprintf("%s (%s)", info.Name, info.Type)
	}
	return NewFromHal(raw, queue, name, opts...), nil
}

// Info implements device.Device.
func (d *Device) Info() device.Info { return d.info }

// Queue implements device.Device.
func (d *Device) Queue() device.Queue { return d.queue }

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() any { return d.raw }

// HalQueue returns the underlying HAL queue.
func (d *Device) HalQueue() any { return d.queue.raw }

// usable fails once the device is lost or closed. Caller holds d.mu.
func (d *Device) usable() error {
	if d.lost != nil {
		return d.lost
	}
	if d.closed {
		return fmt.Errorf("wgpu: device closed: %w", device.ErrReleased)
	}
	return nil
}

// fail classifies a HAL error. Device loss is sticky. Caller holds d.mu.
func (d *Device) fail(op string, err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		if d.lost == nil {
			d.lost = fmt.Errorf("wgpu: %s: %w", op, device.ErrDeviceLost)
			d.log.Warn("wgpu: device lost", "op", op, "err", err)
		}
		return d.lost
	}
	return fmt.Errorf("wgpu: %s: %w", op, err)
}

// deferDestroy runs fn once index has completed, or now if it already has.
// Caller holds d.mu.
func (d *Device) deferDestroy(index uint64, fn func()) {
	if index <= d.queue.poll() {
		fn()
		return
	}
	d.garbage = append(d.garbage, garbage{index: index, destroy: fn})
}

// collect destroys garbage whose submission has completed. Caller holds
// d.mu.
func (d *Device) collect() {
	done := d.queue.poll()
	keep := d.garbage[:0]
	for _, g := range d.garbage {
		if g.index <= done {
			g.destroy()
			continue
		}
		keep = append(keep, g)
	}
	clear(d.garbage[len(keep):])
	d.garbage = keep
}

// CreateFence implements device.Device.
func (d *Device) CreateFence(initial uint64) (device.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return &Fence{object: object{dev: d, label: "fence"}, value: initial}, nil
}

// CreateCommandAllocator implements device.Device.
func (d *Device) CreateCommandAllocator(label string) (device.CommandAllocator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return &CommandAllocator{object: object{dev: d, label: label}}, nil
}

// CreateCommandList implements device.Device. The list is open.
func (d *Device) CreateCommandList(label string, alloc device.CommandAllocator) (device.CommandList, error) {
	cl := &CommandList{object: object{dev: d, label: label}}
	if err := cl.Reset(alloc); err != nil {
		return nil, err
	}
	return cl, nil
}

// InFlight implements device.InFlightReporter.
func (d *Device) InFlight(r device.Resource) bool {
	t, ok := r.(tracked)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return t.base().lastUse > d.queue.poll()
}

// Close waits for the GPU, destroys deferred objects and, for devices
// opened with Open, the HAL device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.lost == nil {
		if err := d.raw.WaitIdle(); err != nil {
			d.log.Warn("wgpu: wait idle on close", "err", err)
		}
	}
	for _, g := range d.garbage {
		g.destroy()
	}
	d.garbage = nil
	if d.shutdown != nil {
		d.shutdown()
	}
	d.log.Info("wgpu: device closed")
	return nil
}
