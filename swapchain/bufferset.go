// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package swapchain owns the size-dependent render targets: the swap chain
// back buffers, the depth/stencil buffer and, for compute rendering, the
// compute output and accumulation textures. It implements the resize
// protocol that recreates all of them without racing the GPU.
package swapchain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/fence"
)

// DefaultBufferCount is the number of back buffers.
const DefaultBufferCount = 2

var (
	// ErrBuffersInvalid is returned by accessors while a resize is in
	// progress or after a failed resize.
	ErrBuffersInvalid = errors.New("swapchain: buffers are being recreated")

	// ErrNoComputeTargets is returned by Output and Accumulation on a set
	// created without compute targets.
	ErrNoComputeTargets = errors.New("swapchain: set has no compute targets")
)

// Config describes a buffer set.
type Config struct {
	Width       uint32
	Height      uint32
	BufferCount int
	Format      gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat

	// Compute adds a compute output texture in Format and an RGBA32Float
	// accumulation texture.
	Compute bool
}

func (c *Config) defaults() {
	if c.BufferCount == 0 {
		c.BufferCount = DefaultBufferCount
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = gputypes.TextureFormatBGRA8Unorm
	}
	if c.DepthFormat == gputypes.TextureFormatUndefined {
		c.DepthFormat = gputypes.TextureFormatDepth24PlusStencil8
	}
}

// Option configures a BufferSet.
type Option func(*BufferSet)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *BufferSet) { b.log = l }
}

// BufferSet is a swap chain with its size-dependent companions. The CPU
// view of every texture's state lives in the shared device.Tracker.
type BufferSet struct {
	dev     device.Device
	tl      *fence.Timeline
	tracker *device.Tracker
	log     *slog.Logger
	cfg     Config

	sc      device.SwapChain
	back    []device.Texture
	depth   device.Texture
	output  device.Texture
	accum   device.Texture
	valid   bool
	resizes int
}

// New creates the swap chain and its companion textures and transitions
// them into their steady states.
func New(dev device.Device, tl *fence.Timeline, tracker *device.Tracker, cfg Config, opts ...Option) (*BufferSet, error) {
	cfg.defaults()
	b := &BufferSet{dev: dev, tl: tl, tracker: tracker, cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	b.log = airis.LoggerOr(b.log)

	sc, err := dev.CreateSwapChain(&device.SwapChainDesc{
		Width:       cfg.Width,
		Height:      cfg.Height,
		BufferCount: cfg.BufferCount,
		Format:      cfg.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("swapchain: create: %w", err)
	}
	b.sc = sc
	if err := b.build(); err != nil {
		b.Close()
		return nil, err
	}
	b.log.Info("swapchain: created", "width", cfg.Width, "height", cfg.Height,
		"buffers", cfg.BufferCount, "format", cfg.Format.String(), "compute", cfg.Compute)
	return b, nil
}

// build fetches the back buffers, creates the companion textures and
// brings everything into its steady state with a one-off command list.
func (b *BufferSet) build() error {
	b.back = b.back[:0]
	for i := 0; i < b.sc.BufferCount(); i++ {
		t, err := b.sc.Buffer(i)
		if err != nil {
			return fmt.Errorf("swapchain: back buffer %d: %w", i, err)
		}
		b.back = append(b.back, t)
		b.tracker.Track(t, device.StatePresent)
	}

	var err error
	b.depth, err = b.texture("depth", b.cfg.DepthFormat, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	if b.cfg.Compute {
		b.output, err = b.texture("compute-output", b.cfg.Format,
			gputypes.TextureUsageStorageBinding|gputypes.TextureUsageCopySrc)
		if err != nil {
			return err
		}
		b.accum, err = b.texture("accumulation", gputypes.TextureFormatRGBA32Float,
			gputypes.TextureUsageStorageBinding)
		if err != nil {
			return err
		}
	}
	if err := b.initialTransitions(); err != nil {
		return err
	}
	b.valid = true
	return nil
}

func (b *BufferSet) texture(label string, format gputypes.TextureFormat, usage gputypes.TextureUsage) (device.Texture, error) {
	t, err := b.dev.CreateTexture(&device.TextureDesc{
		Label:        label,
		Width:        b.cfg.Width,
		Height:       b.cfg.Height,
		Format:       format,
		Usage:        usage,
		InitialState: device.StateCommon,
	})
	if err != nil {
		return nil, fmt.Errorf("swapchain: %s: %w", label, err)
	}
	b.tracker.Track(t, device.StateCommon)
	return t, nil
}

func (b *BufferSet) initialTransitions() error {
	alloc, err := b.dev.CreateCommandAllocator("swapchain-init")
	if err != nil {
		return fmt.Errorf("swapchain: init allocator: %w", err)
	}
	defer alloc.Release()
	cl, err := b.dev.CreateCommandList("swapchain-init", alloc)
	if err != nil {
		return fmt.Errorf("swapchain: init list: %w", err)
	}
	defer cl.Release()

	if err := b.tracker.Transition(cl, device.StateDepthWrite, b.depth); err != nil {
		return fmt.Errorf("swapchain: %w", err)
	}
	if b.cfg.Compute {
		if err := b.tracker.Transition(cl, device.StateCopySource, b.output); err != nil {
			return fmt.Errorf("swapchain: %w", err)
		}
		if err := b.tracker.Transition(cl, device.StateUnorderedAccess, b.accum); err != nil {
			return fmt.Errorf("swapchain: %w", err)
		}
	}
	if err := cl.Close(); err != nil {
		return fmt.Errorf("swapchain: init list: %w", err)
	}
	if err := b.dev.Queue().Execute(cl); err != nil {
		return fmt.Errorf("swapchain: init: %w", err)
	}
	if err := b.tl.Flush(); err != nil {
		return fmt.Errorf("swapchain: init: %w", err)
	}
	return nil
}

// releaseTargets drops the back buffer references and releases the
// companion textures. The caller has flushed the GPU.
func (b *BufferSet) releaseTargets() {
	for _, t := range b.back {
		b.tracker.Forget(t)
	}
	b.back = b.back[:0]
	for _, t := range []*device.Texture{&b.depth, &b.output, &b.accum} {
		if *t == nil {
			continue
		}
		b.tracker.Forget(*t)
		(*t).Release()
		*t = nil
	}
}

// Resize recreates every size-dependent texture at width x height.
//
// The GPU is flushed first, so nothing queued still references the old
// textures. Between the flush and the final flush the set is invalid. A
// zero width or height, as reported for minimized windows, is ignored.
func (b *BufferSet) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		b.log.Debug("swapchain: ignoring zero-size resize", "width", width, "height", height)
		return nil
	}
	if err := b.tl.Flush(); err != nil {
		return fmt.Errorf("swapchain: resize: %w", err)
	}
	b.valid = false
	b.releaseTargets()

	if err := b.sc.Resize(width, height); err != nil {
		return fmt.Errorf("swapchain: resize to %dx%d: %w", width, height, err)
	}
	b.cfg.Width, b.cfg.Height = width, height
	if err := b.build(); err != nil {
		return fmt.Errorf("swapchain: resize to %dx%d: %w", width, height, err)
	}
	b.resizes++
	b.log.Info("swapchain: resized", "width", width, "height", height)
	return nil
}

// Valid reports whether the buffers may be used.
func (b *BufferSet) Valid() bool { return b.valid }

// Size returns the current width and height.
func (b *BufferSet) Size() (width, height uint32) { return b.cfg.Width, b.cfg.Height }

// Format returns the back buffer format.
func (b *BufferSet) Format() gputypes.TextureFormat { return b.cfg.Format }

// DepthFormat returns the depth buffer format.
func (b *BufferSet) DepthFormat() gputypes.TextureFormat { return b.cfg.DepthFormat }

// BufferCount returns the number of back buffers.
func (b *BufferSet) BufferCount() int { return b.cfg.BufferCount }

// Resizes returns how many resizes completed.
func (b *BufferSet) Resizes() int { return b.resizes }

// Tracker returns the state tracker shared with the renderer.
func (b *BufferSet) Tracker() *device.Tracker { return b.tracker }

// CurrentIndex returns the index of the back buffer being rendered to.
func (b *BufferSet) CurrentIndex() int { return b.sc.CurrentIndex() }

// Current returns the back buffer being rendered to.
func (b *BufferSet) Current() (device.Texture, error) {
	if !b.valid {
		return nil, ErrBuffersInvalid
	}
	return b.back[b.sc.CurrentIndex()], nil
}

// BackBuffer returns back buffer i.
func (b *BufferSet) BackBuffer(i int) (device.Texture, error) {
	if !b.valid {
		return nil, ErrBuffersInvalid
	}
	if i < 0 || i >= len(b.back) {
		return nil, fmt.Errorf("swapchain: no back buffer %d of %d", i, len(b.back))
	}
	return b.back[i], nil
}

// Depth returns the depth/stencil buffer.
func (b *BufferSet) Depth() (device.Texture, error) {
	if !b.valid {
		return nil, ErrBuffersInvalid
	}
	return b.depth, nil
}

// Output returns the compute output texture.
func (b *BufferSet) Output() (device.Texture, error) {
	if !b.valid {
		return nil, ErrBuffersInvalid
	}
	if !b.cfg.Compute {
		return nil, ErrNoComputeTargets
	}
	return b.output, nil
}

// Accumulation returns the accumulation texture.
func (b *BufferSet) Accumulation() (device.Texture, error) {
	if !b.valid {
		return nil, ErrBuffersInvalid
	}
	if !b.cfg.Compute {
		return nil, ErrNoComputeTargets
	}
	return b.accum, nil
}

// Present presents the current back buffer, which must be back in
// device.StatePresent.
func (b *BufferSet) Present() error {
	if !b.valid {
		return ErrBuffersInvalid
	}
	cur := b.back[b.sc.CurrentIndex()]
	if s, ok := b.tracker.State(cur); ok && s != device.StatePresent {
		return fmt.Errorf("swapchain: present %s in state %s: %w", cur.Label(), s, device.ErrInvalidState)
	}
	if err := b.sc.Present(); err != nil {
		return fmt.Errorf("swapchain: present: %w", err)
	}
	return nil
}

// Close releases the textures and the swap chain. The caller must flush
// the GPU first.
func (b *BufferSet) Close() {
	b.valid = false
	b.releaseTargets()
	if b.sc != nil {
		b.sc.Release()
		b.sc = nil
	}
}
