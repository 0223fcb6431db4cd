// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fence implements the CPU side of GPU/CPU synchronization: a
// monotonic timeline of fence values signaled on a queue, with bounded
// blocking waits.
//
// Every submission is followed by SignalNext, which returns the value the
// GPU will write once the submission completes. WaitUntil blocks until the
// GPU reaches a value; Flush signals and waits, guaranteeing that all work
// submitted so far has finished. Flush must run before releasing or
// recreating any resource that queued work might still reference.
//
// Waits are bounded. A wait that exceeds the timeout puts the timeline into
// the lost state: the error wraps device.ErrDeviceLost and every later call
// fails fast with the same error until the device is rebuilt.
package fence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/device"
)

// DefaultTimeout bounds a single wait.
const DefaultTimeout = 5 * time.Second

// slowWait is the blocking duration above which a wait is logged at warn.
const slowWait = 100 * time.Millisecond

// ErrNeverSignaled is returned when waiting for a value that was never
// signaled; such a wait could never complete.
var ErrNeverSignaled = errors.New("fence: value was never signaled")

// Option configures a Timeline.
type Option func(*options)

type options struct {
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout sets the wait bound. A negative value waits forever.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger. The package logger is used by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Stats counts timeline activity.
type Stats struct {
	Signals       uint64
	Waits         uint64
	BlockingWaits uint64
	Blocked       time.Duration
}

// Timeline is a fence plus the last value signaled on it.
//
// SignalNext, WaitUntil and Flush are meant for the render thread.
// Completed, LastSignaled, Err and Stats are safe for concurrent use.
type Timeline struct {
	queue   device.Queue
	fence   device.Fence
	timeout time.Duration
	log     *slog.Logger

	mu           sync.Mutex
	lastSignaled uint64
	lost         error
	stats        Stats
}

// New creates a fence on dev starting at zero.
func New(dev device.Device, opts ...Option) (*Timeline, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	f, err := dev.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("fence: create: %w", err)
	}
	return &Timeline{
		queue:   dev.Queue(),
		fence:   f,
		timeout: o.timeout,
		log:     airis.LoggerOr(o.logger),
	}, nil
}

// SignalNext increments the timeline and enqueues a signal of the new value
// behind all previously submitted work. The returned values are strictly
// increasing.
func (t *Timeline) SignalNext() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lost != nil {
		return 0, t.lost
	}
	v := t.lastSignaled + 1
	if err := t.queue.Signal(t.fence, v); err != nil {
		return 0, t.fail(fmt.Errorf("fence: signal %d: %w", v, err))
	}
	t.lastSignaled = v
	t.stats.Signals++
	return v, nil
}

// WaitUntil blocks until the GPU has reached v. It returns immediately when
// the value is already complete.
func (t *Timeline) WaitUntil(v uint64) error {
	t.mu.Lock()
	if t.lost != nil {
		err := t.lost
		t.mu.Unlock()
		return err
	}
	t.stats.Waits++
	last := t.lastSignaled
	t.mu.Unlock()

	if v == 0 || t.fence.Completed() >= v {
		return nil
	}
	if v > last {
		return fmt.Errorf("%w: waiting for %d, last signaled %d", ErrNeverSignaled, v, last)
	}

	start := time.Now()
	ok, err := t.fence.Wait(v, t.timeout)
	blocked := time.Since(start)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.BlockingWaits++
	t.stats.Blocked += blocked
	switch {
	case err != nil:
		return t.fail(fmt.Errorf("fence: wait %d: %w", v, err))
	case !ok:
		return t.fail(fmt.Errorf("fence: value %d not reached within %v (completed %d): %w",
			v, t.timeout, t.fence.Completed(), device.ErrDeviceLost))
	}
	if blocked > slowWait {
		t.log.Warn("fence: slow wait", "value", v, "blocked", blocked)
	} else {
		t.log.Debug("fence: waited", "value", v, "blocked", blocked)
	}
	return nil
}

// Flush signals a new value and waits for it: on return every command
// submitted before the call has finished executing.
func (t *Timeline) Flush() error {
	v, err := t.SignalNext()
	if err != nil {
		return err
	}
	return t.WaitUntil(v)
}

// Completed returns the value the GPU has reached.
func (t *Timeline) Completed() uint64 {
	return t.fence.Completed()
}

// LastSignaled returns the most recent value handed out by SignalNext.
func (t *Timeline) LastSignaled() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSignaled
}

// Err returns the sticky error after device loss, or nil.
func (t *Timeline) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lost
}

// Stats returns a snapshot of the counters.
func (t *Timeline) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Close releases the fence.
func (t *Timeline) Close() {
	t.fence.Release()
}

// fail records err as sticky when it denotes device loss. Caller holds t.mu.
func (t *Timeline) fail(err error) error {
	if errors.Is(err, device.ErrDeviceLost) {
		t.lost = err
		t.log.Warn("fence: device lost", "err", err)
	}
	return err
}
