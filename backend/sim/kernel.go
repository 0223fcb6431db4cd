// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/device"
)

// Kernel emulates a compute shader on the CPU. It runs on the simulated GPU
// when the dispatch retires.
type Kernel func(inv *Invocation)

// Invocation is the input of one dispatch.
type Invocation struct {
	// Groups is the dispatch size in workgroups.
	Groups [3]uint32

	// Bindings are the bound resources in slot order.
	Bindings []Bound
}

// Bound is one bound resource. Data aliases GPU memory: buffer bindings
// cover the bound range, texture bindings the whole image.
type Bound struct {
	Kind   device.BindingKind
	Data   []byte
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

// run executes a retired command list. Caller holds d.mu.
func (d *Device) run(ops []op) {
	var (
		pipeline *Pipeline
		bindings []boundResource
	)
	for _, o := range ops {
		switch o.kind {
		case opCopyBuffer:
			copy(o.dstBuf.data, o.srcBuf.data)
			d.stats.Copies++
		case opCopyTexture:
			copy(o.dstTex.pix, o.srcTex.pix)
			d.stats.Copies++
		case opCopyTextureToBuffer:
			copy(o.dstBuf.data, o.srcTex.pix)
			d.stats.Copies++
		case opClearRenderTarget:
			o.dstTex.clear(o.color)
		case opClearDepthStencil:
			o.dstTex.clearDepth(o.depth, o.stencil)
		case opSetPipeline:
			pipeline = o.pipeline
		case opSetBindings:
			bindings = o.bindings
		case opDraw:
			d.stats.Draws++
		case opDispatch:
			d.stats.Dispatches++
			if pipeline != nil && pipeline.kernel != nil {
				pipeline.kernel(invocation(o.groups, bindings))
			}
		}
	}
}

func invocation(groups [3]uint32, bindings []boundResource) *Invocation {
	inv := &Invocation{Groups: groups, Bindings: make([]Bound, len(bindings))}
	for i, b := range bindings {
		if b.tex != nil {
			inv.Bindings[i] = Bound{
				Kind:   b.kind,
				Data:   b.tex.pix,
				Width:  b.tex.width,
				Height: b.tex.height,
				Format: b.tex.format,
			}
			continue
		}
		inv.Bindings[i] = Bound{Kind: b.kind, Data: b.buf.data[b.offset : b.offset+b.size]}
	}
	return inv
}
