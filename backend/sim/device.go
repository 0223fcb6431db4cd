// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sim is a CPU simulation of an explicit GPU.
//
// The simulated queue executes command lists in submission order on its
// own schedule (see Policy), so the CPU can run ahead of the "GPU" exactly
// as it does on hardware. The simulation validates what real drivers only
// validate in debug layers:
//
//   - barrier Before states and the state each command needs
//   - use of released objects
//   - releasing, resetting or resizing objects that queued work references
//
// Copies, clears and present are executed for real on CPU memory, so
// uploads round-trip and frames can be read back. Compute dispatches run an
// optional Kernel registered for the pipeline's shader.
package sim

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/device"
)

// BackendName is the name the backend registers under.
const BackendName = "sim"

// Option configures a Device.
type Option func(*Device)

// WithPolicy sets the retire policy. The default is Immediate.
func WithPolicy(p Policy) Option {
	return func(d *Device) { d.policy = p }
}

// WithKernel registers a CPU kernel run by dispatches of pipelines whose
// shader has the given name.
func WithKernel(shader string, k Kernel) Option {
	return func(d *Device) { d.kernels[shader] = k }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// Stats counts simulated GPU activity.
type Stats struct {
	Submissions uint64
	Lists       uint64
	Retired     uint64
	Draws       uint64
	Dispatches  uint64
	Copies      uint64
	Presents    uint64
}

// Device is a simulated GPU. It implements device.Device and
// device.InFlightReporter.
type Device struct {
	policy  Policy
	kernels map[string]Kernel
	log     *slog.Logger
	queue   *queue

	mu         sync.Mutex
	cond       *sync.Cond
	pending    []*item
	lost       bool
	hung       bool
	closed     bool
	stats      Stats
	violations []error

	done chan struct{}
	wg   sync.WaitGroup
}

var _ device.Device = (*Device)(nil)
var _ device.InFlightReporter = (*Device)(nil)

// New creates a simulated device.
func New(opts ...Option) *Device {
	d := &Device{
		policy:  Immediate(),
		kernels: make(map[string]Kernel),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = airis.LoggerOr(d.log)
	d.cond = sync.NewCond(&d.mu)
	d.queue = &queue{dev: d}
	if d.policy.mode == modeAsync {
		d.wg.Add(1)
		go d.retireLoop()
	}
	d.log.Info("sim: device created", "policy", d.policy.String())
	return d
}

// Info implements device.Device.
func (d *Device) Info() device.Info {
	return device.Info{Backend: BackendName, Name: "simulated GPU (" + d.policy.String() + ")"}
}

// Queue implements device.Device.
func (d *Device) Queue() device.Queue { return d.queue }

// CreateFence implements device.Device.
func (d *Device) CreateFence(initial uint64) (device.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return &Fence{object: object{dev: d, label: "fence"}, completed: initial, signaled: initial}, nil
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

// CreateCommandList implements device.Device. The list is created open.
func (d *Device) CreateCommandList(label string, alloc device.CommandAllocator) (device.CommandList, error) {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("sim: foreign command allocator %T", alloc)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	if a.released {
		return nil, fmt.Errorf("sim: command list %q: %w", label, device.ErrReleased)
	}
	return &CommandList{object: object{dev: d, label: label}, alloc: a, open: true}, nil
}

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(desc *device.BufferDesc) (device.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	b := &Buffer{
		resource: resource{object: object{dev: d, label: desc.Label}, state: desc.Heap.InitialState()},
		heap:     desc.Heap,
		usage:    desc.Usage,
		data:     make([]byte, desc.Size),
	}
	return b, nil
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc *device.TextureDesc) (device.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return newTexture(d, desc.Label, desc.Width, desc.Height, desc.Format, desc.InitialState), nil
}

// CreatePipeline implements device.Device. Shaders are not compiled; the
// shader name selects the CPU kernel run by dispatches.
func (d *Device) CreatePipeline(desc *device.PipelineDesc) (device.Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		object:   object{dev: d, label: desc.Label},
		kind:     desc.Kind,
		shader:   desc.Shader.Name,
		bindings: append([]device.BindingKind(nil), desc.Bindings...),
	}
	if desc.Kind == device.PipelineCompute {
		p.kernel = d.kernels[desc.Shader.Name]
	}
	return p, nil
}

// CreateSwapChain implements device.Device. Back buffers start in
// device.StatePresent.
func (d *Device) CreateSwapChain(desc *device.SwapChainDesc) (device.SwapChain, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	sc := &SwapChain{
		object: object{dev: d, label: "swapchain"},
		format: desc.Format,
		count:  desc.BufferCount,
	}
	sc.allocate(desc.Width, desc.Height)
	return sc, nil
}

// InFlight reports whether unretired work references r.
func (d *Device) InFlight(r device.Resource) bool {
	t, ok := r.(tracked)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return t.base().inflight > 0
}

// Pending returns the number of queued, unretired items.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stats returns a snapshot of the activity counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Violations returns lifetime violations detected so far, such as releasing
// a resource that queued work still references.
func (d *Device) Violations() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.violations...)
}

// Lose simulates device removal. Every later queue operation and fence
// wait fails with device.ErrDeviceLost.
func (d *Device) Lose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
	d.cond.Broadcast()
	d.log.Warn("sim: device lost")
}

// Hang stops the GPU from retiring any further work. Fence waits then run
// into their timeout.
func (d *Device) Hang() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hung = true
}

// RetireNext retires the oldest queued item. It reports false when nothing
// was pending.
func (d *Device) RetireNext() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	d.retireHead()
	d.cond.Broadcast()
	return true
}

// RetireAll retires every queued item.
func (d *Device) RetireAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.pending) > 0 {
		d.retireHead()
	}
	d.cond.Broadcast()
}

// Close implements device.Device. Pending work is dropped.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.pending = nil
	d.cond.Broadcast()
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	d.log.Info("sim: device closed")
	return nil
}

// usable fails once the device is lost or closed. Caller holds d.mu.
func (d *Device) usable() error {
	if d.lost {
		return device.ErrDeviceLost
	}
	if d.closed {
		return fmt.Errorf("sim: device closed: %w", device.ErrReleased)
	}
	return nil
}

// violate records a lifetime violation. Caller holds d.mu.
func (d *Device) violate(err error) {
	d.violations = append(d.violations, err)
	d.log.Warn("sim: violation", "err", err)
}

// retireLoop runs the Async policy.
func (d *Device) retireLoop() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for (len(d.pending) == 0 || d.hung) && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		head := d.pending[0]
		wait := time.Until(head.due)
		d.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-d.done:
				timer.Stop()
				return
			}
		}

		d.mu.Lock()
		if !d.hung && len(d.pending) > 0 && d.pending[0] == head {
			d.retireHead()
			d.cond.Broadcast()
		}
		d.mu.Unlock()
	}
}
