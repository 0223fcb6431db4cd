// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/airis/device"
)

// Queue submits closed command lists to the HAL queue.
type Queue struct {
	dev *Device
	raw hal.Queue

	// submitted is the last HAL submission index, completed the highest
	// one seen complete.
	submitted uint64
	completed uint64

	submissions uint64
}

var _ device.Queue = (*Queue)(nil)

// poll refreshes the completed submission index. Caller holds d.mu.
func (q *Queue) poll() uint64 {
	q.completed = max(q.completed, q.raw.PollCompleted())
	return q.completed
}

// Execute implements device.Queue. The CPU copies of upload buffers used by
// the lists are written first.
func (q *Queue) Execute(lists ...device.CommandList) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}

	wls := make([]*CommandList, len(lists))
	cmds := make([]hal.CommandBuffer, len(lists))
	uploads := make(map[*Buffer]struct{})
	for i, cl := range lists {
		l, ok := cl.(*CommandList)
		switch {
		case !ok || l.dev != d:
			return fmt.Errorf("wgpu: execute: foreign command list %T", cl)
		case l.released:
			return fmt.Errorf("wgpu: execute %q: %w", l.label, device.ErrReleased)
		case l.open:
			return fmt.Errorf("wgpu: execute %q: %w", l.label, device.ErrListOpen)
		case l.err != nil:
			return fmt.Errorf("wgpu: execute %q: %w", l.label, l.err)
		case l.cmd == nil:
			return fmt.Errorf("wgpu: execute %q: already executed", l.label)
		}
		for b := range l.uploads {
			uploads[b] = struct{}{}
		}
		wls[i], cmds[i] = l, l.cmd
	}

	for b := range uploads {
		if b.released {
			continue
		}
		if err := q.raw.WriteBuffer(b.raw, 0, b.shadow[:cap(b.shadow)]); err != nil {
			return d.fail("write "+b.label, err)
		}
	}
	index, err := q.raw.Submit(cmds)
	if err != nil {
		return d.fail("submit", err)
	}
	q.submitted = index
	q.submissions++

	for _, l := range wls {
		for o := range l.refs {
			o.lastUse = index
		}
		l.alloc.lastUse = index
		l.retire(index)
	}
	d.collect()
	return nil
}

// Signal implements device.Queue. The fence reaches value when the last
// submission so far completes.
func (q *Queue) Signal(f device.Fence, value uint64) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	wf, ok := f.(*Fence)
	if !ok || wf.dev != d {
		return fmt.Errorf("wgpu: signal: foreign fence %T", f)
	}
	if wf.released {
		return fmt.Errorf("wgpu: signal: %w", device.ErrReleased)
	}
	wf.pending = append(wf.pending, mark{value: value, index: q.submitted})
	wf.advance()
	return nil
}
