// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package frame

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/fence"
	"github.com/gogpu/airis/scene"
	"github.com/gogpu/airis/upload"
)

// DefaultSize is the number of frame resources in a ring.
const DefaultSize = 3

var (
	// ErrRecording is returned by Begin when the current slot is still
	// being recorded.
	ErrRecording = errors.New("frame: slot is already recording")

	// ErrNotRecording is returned by Submit and Abort without a Begin.
	ErrNotRecording = errors.New("frame: no slot is recording")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("frame: ring closed")
)

// SlotState is the lifecycle state of a frame resource.
type SlotState uint8

const (
	// Idle slots have never been submitted.
	Idle SlotState = iota
	// Recording slots are owned by the CPU.
	Recording
	// Submitted slots may still be read by the GPU until Fence completes.
	Submitted
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("SlotState(%d)", uint8(s))
	}
}

// Resource is one frame's worth of CPU-written GPU memory.
type Resource struct {
	Allocator device.CommandAllocator

	Pass    *upload.Buffer[scene.PassConstants]
	Objects *upload.Buffer[scene.ObjectConstants]
	RT      *upload.Buffer[scene.RTConstants]

	// Fence is the value signaled after the frame last recorded here.
	Fence uint64
	State SlotState
}

func (r *Resource) release() {
	if r.Pass != nil {
		r.Pass.Close()
	}
	if r.Objects != nil {
		r.Objects.Close()
	}
	if r.RT != nil {
		r.RT.Close()
	}
	if r.Allocator != nil {
		r.Allocator.Release()
	}
}

// Config sizes a ring.
type Config struct {
	// Size is the number of frame resources; DefaultSize when zero.
	Size int
	// Objects is the number of object constant slots per frame; zero
	// omits the object buffer.
	Objects int
	// RT adds a ray tracing constant buffer to every frame.
	RT bool
}

// Option configures a Ring.
type Option func(*Ring)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ring) { r.log = l }
}

// Ring rotates frame resources. It is used from the render thread only.
type Ring struct {
	tl    *fence.Timeline
	log   *slog.Logger
	slots []*Resource
	index int
	waits uint64

	closed bool
}

// NewRing creates cfg.Size frame resources on dev, synchronized with tl.
func NewRing(dev device.Device, tl *fence.Timeline, cfg Config, opts ...Option) (*Ring, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Size < 1 {
		return nil, fmt.Errorf("frame: ring size %d", cfg.Size)
	}
	r := &Ring{tl: tl}
	for _, opt := range opts {
		opt(r)
	}
	r.log = airis.LoggerOr(r.log)

	for i := 0; i < cfg.Size; i++ {
		res, err := newResource(dev, i, cfg)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.slots = append(r.slots, res)
	}
	r.log.Debug("frame: ring created", "size", cfg.Size, "objects", cfg.Objects, "rt", cfg.RT)
	return r, nil
}

func newResource(dev device.Device, i int, cfg Config) (_ *Resource, err error) {
	res := &Resource{}
	defer func() {
		if err != nil {
			res.release()
		}
	}()

	if res.Allocator, err = dev.CreateCommandAllocator(fmt.Sprintf("frame%d", i)); err != nil {
		return nil, fmt.Errorf("frame %d: allocator: %w", i, err)
	}
	if res.Pass, err = upload.NewBuffer[scene.PassConstants](dev, fmt.Sprintf("frame%d-pass", i), 1, true); err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	if cfg.Objects > 0 {
		if res.Objects, err = upload.NewBuffer[scene.ObjectConstants](dev, fmt.Sprintf("frame%d-objects", i), cfg.Objects, true); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	if cfg.RT {
		if res.RT, err = upload.NewBuffer[scene.RTConstants](dev, fmt.Sprintf("frame%d-rt", i), 1, true); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return res, nil
}

// Size returns the number of frame resources. It never changes.
func (r *Ring) Size() int { return len(r.slots) }

// Index returns the index of the current slot.
func (r *Ring) Index() int { return r.index }

// Current returns the current slot.
func (r *Ring) Current() *Resource { return r.slots[r.index] }

// Slot returns slot i.
func (r *Ring) Slot(i int) *Resource { return r.slots[i] }

// Waits returns how many times Begin had to block on the GPU.
func (r *Ring) Waits() uint64 { return r.waits }

// Begin makes the current slot available for recording. If the GPU has not
// finished the frame that last used the slot, Begin blocks until it has.
// The slot's allocator is reset.
func (r *Ring) Begin() (*Resource, error) {
	if r.closed {
		return nil, ErrClosed
	}
	res := r.slots[r.index]
	switch res.State {
	case Recording:
		return nil, fmt.Errorf("%w: slot %d", ErrRecording, r.index)
	case Submitted:
		if r.tl.Completed() < res.Fence {
			r.waits++
			r.log.Debug("frame: waiting for slot", "slot", r.index, "fence", res.Fence, "completed", r.tl.Completed())
			if err := r.tl.WaitUntil(res.Fence); err != nil {
				return nil, fmt.Errorf("frame: slot %d: %w", r.index, err)
			}
		}
	}
	if err := res.Allocator.Reset(); err != nil {
		return nil, fmt.Errorf("frame: slot %d: %w", r.index, err)
	}
	res.State = Recording
	return res, nil
}

// Submit records that the current slot's frame signals v on completion and
// advances to the next slot.
func (r *Ring) Submit(v uint64) error {
	if r.closed {
		return ErrClosed
	}
	res := r.slots[r.index]
	if res.State != Recording {
		return fmt.Errorf("%w: slot %d is %s", ErrNotRecording, r.index, res.State)
	}
	res.Fence = v
	res.State = Submitted
	r.index = (r.index + 1) % len(r.slots)
	return nil
}

// Abort returns the current slot to the state it had before Begin after a
// frame failed before submission.
func (r *Ring) Abort() {
	res := r.slots[r.index]
	if res.State != Recording {
		return
	}
	if res.Fence > 0 {
		res.State = Submitted
	} else {
		res.State = Idle
	}
}

// Close releases every frame resource. The caller must flush the timeline
// first so no slot is still in use by the GPU.
func (r *Ring) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for _, res := range r.slots {
		res.release()
	}
	r.slots = nil
}
