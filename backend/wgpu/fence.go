// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"time"

	"github.com/gogpu/airis/device"
)

// mark is a fence value reached when a HAL submission completes.
type mark struct {
	value uint64
	index uint64
}

// Fence resolves signaled values against HAL submission indices.
type Fence struct {
	object
	value   uint64
	pending []mark
}

var _ device.Fence = (*Fence)(nil)

// Completed implements device.Fence.
func (f *Fence) Completed() uint64 {
	d := f.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	return f.advance()
}

// advance moves value past every completed mark. Caller holds d.mu.
func (f *Fence) advance() uint64 {
	done := f.dev.queue.poll()
	n := 0
	for _, m := range f.pending {
		if m.index > done {
			break
		}
		f.value = max(f.value, m.value)
		n++
	}
	f.pending = f.pending[n:]
	return f.value
}

const (
	minPoll = 50 * time.Microsecond
	maxPoll = 2 * time.Millisecond
)

// Wait implements device.Fence by polling the queue with backoff.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	d := f.dev
	sleep := minPoll
	for {
		d.mu.Lock()
		reached := f.advance() >= value
		lost := d.lost
		d.collect()
		d.mu.Unlock()
		switch {
		case reached:
			return true, nil
		case lost != nil:
			return false, lost
		case !deadline.IsZero() && time.Now().After(deadline):
			return false, nil
		}
		time.Sleep(sleep)
		sleep = min(sleep*2, maxPoll)
	}
}
