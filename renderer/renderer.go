// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package renderer drives frames: it owns the device objects of a
// rendering mode, rotates frame resources, records and submits command
// lists, presents, and handles resize and device loss.
//
// A frame is Update followed by Draw (RenderFrame does both):
//
//	Update: wait for the frame resource's previous use, write constants
//	Draw:   record, execute, signal the fence, present
//
// All methods must be called from one goroutine, the render thread.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/events"
	"github.com/gogpu/airis/fence"
	"github.com/gogpu/airis/frame"
	"github.com/gogpu/airis/swapchain"
	"github.com/gogpu/airis/upload"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("renderer: closed")

	// ErrNoFrame is returned by Draw without a preceding Update.
	ErrNoFrame = errors.New("renderer: Draw without Update")

	// ErrNoDeviceFactory is returned by Recover when the renderer was
	// created without WithDeviceFactory.
	ErrNoDeviceFactory = errors.New("renderer: no device factory to recover with")
)

// Stats counts renderer activity.
type Stats struct {
	Frames     uint64
	Skipped    uint64
	Resizes    int
	Recoveries int
	RingWaits  uint64
	Fence      fence.Stats
}

// Renderer renders frames of one mode on one device.
type Renderer struct {
	cfg  config.Config
	opts options
	log  *slog.Logger

	dev     device.Device
	tl      *fence.Timeline
	tracker *device.Tracker
	buffers *swapchain.BufferSet
	ring    *frame.Ring
	cl      device.CommandList
	mode    mode
	pending upload.Pending

	cancels   []func()
	eventErr  error
	lost      error
	paused    bool
	recording bool
	closed    bool

	total      float32
	stats      Stats
	recoveries int
}

// New creates a renderer on dev and takes ownership of it: Close closes the
// device. Initialization failures are returned and leave nothing behind.
func New(dev device.Device, cfg config.Config, opts ...Option) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("renderer: %w", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{cfg: cfg, opts: o, log: airis.LoggerOr(o.logger)}
	if err := r.build(dev); err != nil {
		r.teardown(true)
		return nil, err
	}
	if o.bus != nil {
		r.subscribe(o.bus)
	}
	r.log.Info("renderer: ready", "backend", dev.Info().Backend, "device", dev.Info().Name,
		"mode", string(cfg.Mode), "width", cfg.Width, "height", cfg.Height,
		"buffers", cfg.BufferCount, "frames", cfg.FrameResources)
	return r, nil
}

// build creates every GPU object on dev.
func (r *Renderer) build(dev device.Device) error {
	r.dev = dev
	m, err := newMode(&r.cfg, &r.opts)
	if err != nil {
		return err
	}
	r.mode = m

	timeout := r.cfg.FenceTimeout.Std()
	r.tl, err = fence.New(dev, fence.WithTimeout(timeout), fence.WithLogger(r.log))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.tracker = device.NewTracker()
	r.buffers, err = swapchain.New(dev, r.tl, r.tracker, swapchain.Config{
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		BufferCount: r.cfg.BufferCount,
		Format:      gputypes.TextureFormatBGRA8Unorm,
		Compute:     m.Name() == config.ModeRayTrace,
	}, swapchain.WithLogger(r.log))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.ring, err = frame.NewRing(dev, r.tl, frame.Config{
		Size:    r.cfg.FrameResources,
		Objects: m.Objects(),
		RT:      m.Name() == config.ModeRayTrace,
	}, frame.WithLogger(r.log))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.cl, err = dev.CreateCommandList("frame", r.ring.Slot(0).Allocator)
	if err != nil {
		return fmt.Errorf("renderer: command list: %w", err)
	}
	if err := r.cl.Close(); err != nil {
		return fmt.Errorf("renderer: command list: %w", err)
	}
	return r.initMode()
}

// initMode records the mode's static uploads on a one-off list and waits
// for them.
func (r *Renderer) initMode() error {
	alloc, err := r.dev.CreateCommandAllocator("init")
	if err != nil {
		return fmt.Errorf("renderer: init allocator: %w", err)
	}
	defer alloc.Release()
	cl, err := r.dev.CreateCommandList("init", alloc)
	if err != nil {
		return fmt.Errorf("renderer: init list: %w", err)
	}
	defer cl.Release()

	if err := r.mode.Init(r, cl); err != nil {
		return err
	}
	if err := cl.Close(); err != nil {
		return fmt.Errorf("renderer: init list: %w", err)
	}
	if err := r.dev.Queue().Execute(cl); err != nil {
		return fmt.Errorf("renderer: init: %w", err)
	}
	if err := r.tl.Flush(); err != nil {
		return fmt.Errorf("renderer: init: %w", err)
	}
	r.pending.Collect(r.tl.Completed())
	return nil
}

// stage keeps an upload staging buffer alive until the next signaled fence
// value completes.
func (r *Renderer) stage(buf device.Buffer) {
	r.pending.Add(buf, r.tl.LastSignaled()+1)
}

func (r *Renderer) subscribe(bus *events.Bus) {
	r.cancels = append(r.cancels,
		bus.Subscribe(events.KindResize, func(e events.Event) bool {
			if e.Width <= 0 || e.Height <= 0 {
				return true
			}
			r.paused = false
			if err := r.Resize(uint32(e.Width), uint32(e.Height)); err != nil {
				r.eventErr = err
			}
			return true
		}),
		bus.Subscribe(events.KindMinimize, func(events.Event) bool {
			r.paused = true
			return true
		}),
		bus.Subscribe(events.KindMaximize, func(events.Event) bool {
			r.paused = false
			return true
		}),
		bus.SubscribeInput(func(e events.Event) bool {
			if r.mode == nil {
				return false
			}
			return r.mode.HandleEvent(e)
		}),
	)
}

// usable fails once the renderer is closed or the device is lost.
func (r *Renderer) usable() error {
	if r.closed {
		return ErrClosed
	}
	if r.lost != nil {
		return r.lost
	}
	if r.tl == nil {
		return fmt.Errorf("renderer: not initialized: %w", device.ErrDeviceLost)
	}
	return r.tl.Err()
}

// fail records err as the sticky loss when it wraps device.ErrDeviceLost.
func (r *Renderer) fail(err error) error {
	if r.lost == nil && errors.Is(err, device.ErrDeviceLost) {
		r.lost = err
	}
	return err
}

// Update starts a frame: it waits until the next frame resource is free and
// writes the frame's constants. dt is the frame time.
func (r *Renderer) Update(dt time.Duration) error {
	if err := r.usable(); err != nil {
		return err
	}
	if r.recording {
		return fmt.Errorf("renderer: %w", frame.ErrRecording)
	}
	delta := float32(dt.Seconds())
	r.total += delta

	res, err := r.ring.Begin()
	if err != nil {
		return r.fail(fmt.Errorf("renderer: update: %w", err))
	}
	w, h := r.buffers.Size()
	pass := r.opts.pass(w, h, r.total, delta)
	if err := r.mode.Update(res, pass, r.total); err != nil {
		r.ring.Abort()
		return r.fail(fmt.Errorf("renderer: update: %w", err))
	}
	r.recording = true
	return nil
}

// Draw records, submits and presents the frame started by Update.
func (r *Renderer) Draw() error {
	if err := r.usable(); err != nil {
		return err
	}
	if !r.recording {
		return ErrNoFrame
	}
	r.recording = false

	if err := r.draw(); err != nil {
		return r.fail(fmt.Errorf("renderer: draw: %w", err))
	}
	r.stats.Frames++
	r.pending.Collect(r.tl.Completed())
	return nil
}

func (r *Renderer) draw() error {
	res := r.ring.Current()
	target, err := r.buffers.Current()
	if err != nil {
		r.ring.Abort()
		return err
	}
	snap := r.tracker.Snapshot()
	abort := func(err error) error {
		r.tracker.Restore(snap)
		r.ring.Abort()
		return err
	}

	if err := r.cl.Reset(res.Allocator); err != nil {
		return abort(err)
	}
	if err := r.mode.Record(r.cl, res, target); err != nil {
		r.cl.Close()
		return abort(err)
	}
	if err := r.cl.Close(); err != nil {
		return abort(err)
	}
	if err := r.dev.Queue().Execute(r.cl); err != nil {
		return abort(err)
	}
	v, err := r.tl.SignalNext()
	if err != nil {
		return err
	}
	if err := r.ring.Submit(v); err != nil {
		return err
	}
	return r.buffers.Present()
}

// RenderFrame delivers pending events, then runs Update and Draw. It does
// nothing while the window is minimized.
func (r *Renderer) RenderFrame(dt time.Duration) error {
	if r.opts.bus != nil {
		r.opts.bus.Dispatch()
		if err := r.eventErr; err != nil {
			r.eventErr = nil
			return err
		}
	}
	if r.paused {
		r.stats.Skipped++
		return nil
	}
	if err := r.Update(dt); err != nil {
		return err
	}
	return r.Draw()
}

// Resize runs the swap chain resize protocol. Zero sizes are ignored.
func (r *Renderer) Resize(width, height uint32) error {
	if err := r.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return nil
	}
	if r.recording {
		return fmt.Errorf("renderer: resize during a frame: %w", frame.ErrRecording)
	}
	if err := r.buffers.Resize(width, height); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.cfg.Width, r.cfg.Height = width, height
	r.mode.Resize(width, height)
	r.stats.Resizes++
	return nil
}

// Recover replaces a lost device: every GPU object is dropped without
// waiting, the factory opens a new device, and the mode is rebuilt.
func (r *Renderer) Recover() error {
	if r.closed {
		return ErrClosed
	}
	if r.opts.factory == nil {
		return ErrNoDeviceFactory
	}
	r.log.Warn("renderer: recovering device", "err", r.Err())
	r.teardown(false)

	dev, err := r.opts.factory()
	if err != nil {
		return fmt.Errorf("renderer: recover: %w", err)
	}
	if err := r.build(dev); err != nil {
		r.teardown(false)
		return fmt.Errorf("renderer: recover: %w", err)
	}
	r.recording = false
	r.lost = nil
	r.recoveries++
	r.log.Info("renderer: recovered", "device", dev.Info().Name)
	return nil
}

// teardown releases every GPU object and closes the device. With flush the
// GPU is drained first; after device loss it is not.
func (r *Renderer) teardown(flush bool) {
	if flush && r.tl != nil && r.Err() == nil {
		if err := r.tl.Flush(); err != nil {
			r.log.Warn("renderer: flush on close", "err", err)
		}
	}
	if r.mode != nil {
		r.mode.Close()
		r.mode = nil
	}
	if r.cl != nil {
		r.cl.Release()
		r.cl = nil
	}
	if r.ring != nil {
		r.ring.Close()
		r.ring = nil
	}
	if r.buffers != nil {
		r.buffers.Close()
		r.buffers = nil
	}
	r.pending.Collect(^uint64(0))
	if r.tl != nil {
		r.tl.Close()
		r.tl = nil
	}
	if r.dev != nil {
		r.dev.Close()
		r.dev = nil
	}
	r.tracker = nil
}

// Snapshot flushes the GPU and returns the most recently presented frame.
func (r *Renderer) Snapshot() (*image.RGBA, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	n := r.buffers.BufferCount()
	idx := (r.buffers.CurrentIndex() + n - 1) % n
	tex, err := r.buffers.BackBuffer(idx)
	if err != nil {
		return nil, fmt.Errorf("renderer: snapshot: %w", err)
	}
	state, _ := r.tracker.State(tex)
	pix, err := upload.ReadTexture(r.dev, r.tl, tex, state)
	if err != nil {
		return nil, fmt.Errorf("renderer: snapshot: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(tex.Width()), int(tex.Height())))
	copy(img.Pix, pix)
	if tex.Format() == gputypes.TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

// Mode returns the rendering mode.
func (r *Renderer) Mode() config.Mode { return r.cfg.Mode }

// Size returns the render target size.
func (r *Renderer) Size() (width, height uint32) { return r.cfg.Width, r.cfg.Height }

// Device returns the current device. It changes after Recover.
func (r *Renderer) Device() device.Device { return r.dev }

// Paused reports whether rendering is suspended by a minimize event.
func (r *Renderer) Paused() bool { return r.paused }

// Err returns the sticky device-lost error, or nil. It stays set until
// Recover succeeds.
func (r *Renderer) Err() error {
	if r.lost != nil {
		return r.lost
	}
	if r.tl == nil {
		return nil
	}
	return r.tl.Err()
}

// Stats returns a snapshot of the counters.
func (r *Renderer) Stats() Stats {
	s := r.stats
	s.Recoveries = r.recoveries
	if r.ring != nil {
		s.RingWaits = r.ring.Waits()
	}
	if r.tl != nil {
		s.Fence = r.tl.Stats()
	}
	return s
}

// Close waits for the GPU, releases every object, unsubscribes from the
// event bus and closes the device.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	for _, c := range r.cancels {
		c()
	}
	r.cancels = nil
	r.teardown(true)
	r.closed = true
	r.log.Info("renderer: closed", "frames", r.stats.Frames)
}
