// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

type opKind uint8

const (
	opBarrier opKind = iota
	opCopyBuffer
	opCopyTexture
	opCopyTextureToBuffer
	opClearRenderTarget
	opClearDepthStencil
	opSetRenderTargets
	opSetPipeline
	opSetBindings
	opDraw
	opDispatch
)

var opNames = [...]string{
	opBarrier:             "barrier",
	opCopyBuffer:          "copy-buffer",
	opCopyTexture:         "copy-texture",
	opCopyTextureToBuffer: "copy-texture-to-buffer",
	opClearRenderTarget:   "clear-render-target",
	opClearDepthStencil:   "clear-depth-stencil",
	opSetRenderTargets:    "set-render-targets",
	opSetPipeline:         "set-pipeline",
	opSetBindings:         "set-bindings",
	opDraw:                "draw-indexed",
	opDispatch:            "dispatch",
}

func (k opKind) String() string { return opNames[k] }

type boundResource struct {
	kind   device.BindingKind
	buf    *Buffer
	tex    *Texture
	offset uint64
	size   uint64
}

type op struct {
	kind     opKind
	barriers []device.Barrier
	dstBuf   *Buffer
	srcBuf   *Buffer
	dstTex   *Texture
	srcTex   *Texture
	color    gputypes.Color
	depth    float32
	stencil  uint32
	pipeline *Pipeline
	bindings []boundResource
	count    uint32
	groups   [3]uint32
}

// CommandList is a simulated command list. Commands are validated against
// resource states when the list is executed, not when they are recorded.
type CommandList struct {
	object
	alloc *CommandAllocator
	open  bool
	ops   []op
	err   error
}

// Reset implements device.CommandList.
func (l *CommandList) Reset(alloc device.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("sim: foreign command allocator %T", alloc)
	}
	if l.open {
		return fmt.Errorf("sim: reset %q: %w", l.label, device.ErrListOpen)
	}
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	if l.released || a.released {
		return fmt.Errorf("sim: reset %q: %w", l.label, device.ErrReleased)
	}
	l.alloc = a
	l.ops = l.ops[:0]
	l.err = nil
	l.open = true
	return nil
}

// Close implements device.CommandList.
func (l *CommandList) Close() error {
	if !l.open {
		return fmt.Errorf("sim: close %q: %w", l.label, device.ErrListClosed)
	}
	l.open = false
	return l.err
}

func (l *CommandList) record(o op) {
	if l.err != nil {
		return
	}
	if !l.open {
		l.err = fmt.Errorf("sim: record %s into %q: %w", o.kind, l.label, device.ErrListClosed)
		return
	}
	l.ops = append(l.ops, o)
}

func (l *CommandList) fail(format string, args ...any) {
	if l.err == nil {
		l.err = fmt.Errorf("sim: "+format, args...)
	}
}

func (l *CommandList) buffer(b device.Buffer) *Buffer {
	sb, ok := b.(*Buffer)
	if !ok {
		l.fail("%q: foreign buffer %T", l.label, b)
	}
	return sb
}

func (l *CommandList) texture(t device.Texture) *Texture {
	st, ok := t.(*Texture)
	if !ok && t != nil {
		l.fail("%q: foreign texture %T", l.label, t)
	}
	return st
}

// Barrier implements device.CommandList.
func (l *CommandList) Barrier(barriers ...device.Barrier) {
	for _, b := range barriers {
		if _, ok := b.Resource.(tracked); !ok {
			l.fail("%q: barrier on foreign resource %T", l.label, b.Resource)
			return
		}
	}
	l.record(op{kind: opBarrier, barriers: append([]device.Barrier(nil), barriers...)})
}

// CopyBuffer implements device.CommandList.
func (l *CommandList) CopyBuffer(dst, src device.Buffer) {
	l.record(op{kind: opCopyBuffer, dstBuf: l.buffer(dst), srcBuf: l.buffer(src)})
}

// CopyTexture implements device.CommandList.
func (l *CommandList) CopyTexture(dst, src device.Texture) {
	l.record(op{kind: opCopyTexture, dstTex: l.texture(dst), srcTex: l.texture(src)})
}

// CopyTextureToBuffer implements device.CommandList.
func (l *CommandList) CopyTextureToBuffer(dst device.Buffer, src device.Texture) {
	l.record(op{kind: opCopyTextureToBuffer, dstBuf: l.buffer(dst), srcTex: l.texture(src)})
}

// ClearRenderTarget implements device.CommandList.
func (l *CommandList) ClearRenderTarget(target device.Texture, c gputypes.Color) {
	l.record(op{kind: opClearRenderTarget, dstTex: l.texture(target), color: c})
}

// ClearDepthStencil implements device.CommandList.
func (l *CommandList) ClearDepthStencil(target device.Texture, depth float32, stencil uint32) {
	l.record(op{kind: opClearDepthStencil, dstTex: l.texture(target), depth: depth, stencil: stencil})
}

// SetRenderTargets implements device.CommandList. depth may be nil.
func (l *CommandList) SetRenderTargets(color, depth device.Texture) {
	l.record(op{kind: opSetRenderTargets, dstTex: l.texture(color), srcTex: l.texture(depth)})
}

// SetPipeline implements device.CommandList.
func (l *CommandList) SetPipeline(p device.Pipeline) {
	sp, ok := p.(*Pipeline)
	if !ok {
		l.fail("%q: foreign pipeline %T", l.label, p)
		return
	}
	l.record(op{kind: opSetPipeline, pipeline: sp})
}

// SetBindings implements device.CommandList.
func (l *CommandList) SetBindings(bindings ...device.Binding) {
	bound := make([]boundResource, len(bindings))
	for i, b := range bindings {
		br := boundResource{kind: b.Kind, offset: b.Offset, size: b.Size}
		switch {
		case b.Texture != nil:
			br.tex = l.texture(b.Texture)
		case b.Buffer != nil:
			br.buf = l.buffer(b.Buffer)
			if br.size == 0 {
				br.size = b.Buffer.Size() - b.Offset
			}
		default:
			l.fail("%q: binding %d is empty", l.label, i)
			return
		}
		bound[i] = br
	}
	l.record(op{kind: opSetBindings, bindings: bound})
}

// DrawIndexed implements device.CommandList.
func (l *CommandList) DrawIndexed(vertices, indices device.Buffer, indexCount uint32) {
	l.record(op{kind: opDraw, srcBuf: l.buffer(vertices), dstBuf: l.buffer(indices), count: indexCount})
}

// Dispatch implements device.CommandList.
func (l *CommandList) Dispatch(x, y, z uint32) {
	l.record(op{kind: opDispatch, groups: [3]uint32{x, y, z}})
}
