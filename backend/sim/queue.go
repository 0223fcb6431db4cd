// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"
	"time"

	"github.com/gogpu/airis/device"
)

// item is one queued unit of GPU work: a batch of command lists or a
// fence signal.
type item struct {
	lists [][]op
	refs  []*object
	fence *Fence
	value uint64
	due   time.Time
}

type queue struct {
	dev *Device
}

// Execute implements device.Queue. Lists are validated against the
// queue-timeline resource states; on error nothing is queued.
func (q *queue) Execute(lists ...device.CommandList) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}

	ex := &execution{states: make(map[*resource]device.ResourceState), refs: make(map[*object]struct{})}
	it := &item{due: time.Now().Add(d.policy.latency)}
	for _, cl := range lists {
		l, ok := cl.(*CommandList)
		if !ok {
			return fmt.Errorf("sim: execute foreign command list %T", cl)
		}
		if l.open {
			return fmt.Errorf("sim: execute %q: %w", l.label, device.ErrListOpen)
		}
		if l.err != nil {
			return fmt.Errorf("sim: execute %q: %w", l.label, l.err)
		}
		if l.released || l.alloc.released {
			return fmt.Errorf("sim: execute %q: %w", l.label, device.ErrReleased)
		}
		if err := ex.validate(l); err != nil {
			return err
		}
		ex.refs[&l.alloc.object] = struct{}{}
		it.lists = append(it.lists, append([]op(nil), l.ops...))
	}

	for r, s := range ex.states {
		r.state = s
	}
	for o := range ex.refs {
		o.inflight++
		it.refs = append(it.refs, o)
	}
	d.pending = append(d.pending, it)
	d.stats.Submissions++
	d.stats.Lists += uint64(len(lists))
	d.afterEnqueue()
	return nil
}

// Signal implements device.Queue. Signaling an idle queue completes at once.
func (q *queue) Signal(f device.Fence, value uint64) error {
	sf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("sim: signal foreign fence %T", f)
	}
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if sf.released {
		return fmt.Errorf("sim: signal: %w", device.ErrReleased)
	}
	if value <= sf.signaled {
		return fmt.Errorf("sim: signal %d after %d: fence values must increase", value, sf.signaled)
	}
	sf.signaled = value
	if len(d.pending) == 0 && !d.hung {
		sf.completed = value
		d.cond.Broadcast()
		return nil
	}
	d.pending = append(d.pending, &item{fence: sf, value: value})
	d.afterEnqueue()
	return nil
}

// afterEnqueue applies the Immediate policy and wakes the async retirer.
// Caller holds d.mu.
func (d *Device) afterEnqueue() {
	if d.policy.mode == modeImmediate && !d.hung {
		for len(d.pending) > 0 {
			d.retireHead()
		}
	}
	d.cond.Broadcast()
}

// retireHead executes the oldest queued item. Caller holds d.mu.
func (d *Device) retireHead() {
	it := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	if it.fence != nil {
		if it.value > it.fence.completed {
			it.fence.completed = it.value
		}
	} else {
		for _, ops := range it.lists {
			d.run(ops)
		}
	}
	for _, o := range it.refs {
		o.inflight--
	}
	d.stats.Retired++
}

// retireFor runs the OnWait policy for a wait on f reaching v.
// Caller holds d.mu.
func (d *Device) retireFor(f *Fence, v uint64) {
	target := v
	if f.signaled > d.policy.lag && f.signaled-d.policy.lag > target {
		target = f.signaled - d.policy.lag
	}
	for f.completed < target && len(d.pending) > 0 {
		d.retireHead()
	}
	d.cond.Broadcast()
}

// Wait implements device.Fence.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	d := f.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if f.released {
		return false, fmt.Errorf("sim: wait: %w", device.ErrReleased)
	}
	if f.completed >= value {
		return true, nil
	}
	if d.policy.mode == modeOnWait && !d.hung && !d.lost {
		d.retireFor(f, value)
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			d.mu.Lock()
			d.cond.Broadcast()
			d.mu.Unlock()
		})
		defer timer.Stop()
	}
	for f.completed < value {
		if d.lost {
			return false, device.ErrDeviceLost
		}
		if d.closed {
			return false, fmt.Errorf("sim: wait on closed device: %w", device.ErrReleased)
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return false, nil
		}
		d.cond.Wait()
	}
	return true, nil
}

// execution validates one Execute call. states holds the resource states
// produced by the lists validated so far.
type execution struct {
	states map[*resource]device.ResourceState
	refs   map[*object]struct{}

	pipeline *Pipeline
	bindings []boundResource
	color    *Texture
	depth    *Texture
}

func (ex *execution) state(r *resource) device.ResourceState {
	if s, ok := ex.states[r]; ok {
		return s
	}
	return r.state
}

func (ex *execution) use(r *resource) error {
	if r.released {
		return fmt.Errorf("%q: %w", r.label, device.ErrReleased)
	}
	ex.refs[&r.object] = struct{}{}
	return nil
}

func (ex *execution) expect(r *resource, want device.ResourceState) error {
	if err := ex.use(r); err != nil {
		return err
	}
	if got := ex.state(r); got != want {
		return fmt.Errorf("%q is %s, need %s: %w", r.label, got, want, device.ErrInvalidState)
	}
	return nil
}

func (ex *execution) expectCopySource(r *resource) error {
	if err := ex.use(r); err != nil {
		return err
	}
	if got := ex.state(r); !got.CanCopyFrom() {
		return fmt.Errorf("%q is %s, need copy-source: %w", r.label, got, device.ErrInvalidState)
	}
	return nil
}

func (ex *execution) validate(l *CommandList) error {
	ex.pipeline, ex.bindings, ex.color, ex.depth = nil, nil, nil, nil
	ex.refs[&l.object] = struct{}{}
	for i, o := range l.ops {
		if err := ex.validateOp(o); err != nil {
			return fmt.Errorf("sim: execute %q: op %d (%s): %w", l.label, i, o.kind, err)
		}
	}
	return nil
}

func (ex *execution) validateOp(o op) error {
	switch o.kind {
	case opBarrier:
		for _, b := range o.barriers {
			r := b.Resource.(tracked).base()
			if err := ex.use(r); err != nil {
				return err
			}
			if buf, ok := b.Resource.(*Buffer); ok && buf.heap != device.HeapDeviceLocal {
				return fmt.Errorf("%q lives in the %s heap and cannot change state: %w", r.label, buf.heap, device.ErrInvalidState)
			}
			if got := ex.state(r); got != b.Before {
				return fmt.Errorf("barrier %v but %q is %s: %w", b, r.label, got, device.ErrInvalidState)
			}
			ex.states[r] = b.After
		}
	case opCopyBuffer:
		if err := ex.expectCopySource(&o.srcBuf.resource); err != nil {
			return err
		}
		if err := ex.expect(&o.dstBuf.resource, device.StateCopyDest); err != nil {
			return err
		}
		if len(o.dstBuf.data) < len(o.srcBuf.data) {
			return fmt.Errorf("copy %d bytes into %d: %w", len(o.srcBuf.data), len(o.dstBuf.data), device.ErrInvalidDescriptor)
		}
	case opCopyTexture:
		if err := ex.expectCopySource(&o.srcTex.resource); err != nil {
			return err
		}
		if err := ex.expect(&o.dstTex.resource, device.StateCopyDest); err != nil {
			return err
		}
		if o.srcTex.width != o.dstTex.width || o.srcTex.height != o.dstTex.height || o.srcTex.format != o.dstTex.format {
			return fmt.Errorf("copy %q into %q: mismatched textures: %w", o.srcTex.label, o.dstTex.label, device.ErrInvalidDescriptor)
		}
	case opCopyTextureToBuffer:
		if err := ex.expectCopySource(&o.srcTex.resource); err != nil {
			return err
		}
		if err := ex.expect(&o.dstBuf.resource, device.StateCopyDest); err != nil {
			return err
		}
		if len(o.dstBuf.data) < len(o.srcTex.pix) {
			return fmt.Errorf("read back %d bytes into %d: %w", len(o.srcTex.pix), len(o.dstBuf.data), device.ErrInvalidDescriptor)
		}
	case opClearRenderTarget:
		return ex.expect(&o.dstTex.resource, device.StateRenderTarget)
	case opClearDepthStencil:
		return ex.expect(&o.dstTex.resource, device.StateDepthWrite)
	case opSetRenderTargets:
		ex.color, ex.depth = o.dstTex, o.srcTex
	case opSetPipeline:
		if o.pipeline.released {
			return fmt.Errorf("pipeline %q: %w", o.pipeline.label, device.ErrReleased)
		}
		ex.refs[&o.pipeline.object] = struct{}{}
		ex.pipeline = o.pipeline
	case opSetBindings:
		ex.bindings = o.bindings
	case opDraw:
		if err := ex.needPipeline(device.PipelineRender); err != nil {
			return err
		}
		if ex.color == nil {
			return fmt.Errorf("draw without a render target: %w", device.ErrInvalidState)
		}
		if err := ex.expect(&ex.color.resource, device.StateRenderTarget); err != nil {
			return err
		}
		if ex.depth != nil {
			if err := ex.expect(&ex.depth.resource, device.StateDepthWrite); err != nil {
				return err
			}
		}
		if err := ex.expect(&o.srcBuf.resource, device.StateGenericRead); err != nil {
			return err
		}
		if err := ex.expect(&o.dstBuf.resource, device.StateGenericRead); err != nil {
			return err
		}
		return ex.checkBindings()
	case opDispatch:
		if err := ex.needPipeline(device.PipelineCompute); err != nil {
			return err
		}
		return ex.checkBindings()
	}
	return nil
}

func (ex *execution) needPipeline(kind device.PipelineKind) error {
	if ex.pipeline == nil {
		return fmt.Errorf("no pipeline set: %w", device.ErrInvalidState)
	}
	if ex.pipeline.kind != kind {
		return fmt.Errorf("pipeline %q is %s, need %s: %w", ex.pipeline.label, ex.pipeline.kind, kind, device.ErrInvalidState)
	}
	if len(ex.bindings) != len(ex.pipeline.bindings) {
		return fmt.Errorf("pipeline %q has %d bindings, %d bound: %w",
			ex.pipeline.label, len(ex.pipeline.bindings), len(ex.bindings), device.ErrInvalidState)
	}
	return nil
}

func (ex *execution) checkBindings() error {
	for i, b := range ex.bindings {
		if b.kind != ex.pipeline.bindings[i] {
			return fmt.Errorf("binding %d kind mismatch: %w", i, device.ErrInvalidState)
		}
		want := device.StateGenericRead
		if b.kind == device.BindingReadWrite {
			want = device.StateUnorderedAccess
		}
		var err error
		if b.tex != nil {
			err = ex.expect(&b.tex.resource, want)
		} else {
			if b.offset+b.size > uint64(len(b.buf.data)) {
				return fmt.Errorf("binding %d range exceeds %q: %w", i, b.buf.label, device.ErrInvalidDescriptor)
			}
			err = ex.expect(&b.buf.resource, want)
		}
		if err != nil {
			return fmt.Errorf("binding %d: %w", i, err)
		}
	}
	return nil
}
