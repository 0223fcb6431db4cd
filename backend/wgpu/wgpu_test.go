// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"bytes"
	"testing"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/renderer"
)

// gatedQueue reports submissions complete only up to limit.
type gatedQueue struct {
	hal.Queue
	limit  uint64
	submit error
}

func (q *gatedQueue) PollCompleted() uint64 { return min(q.limit, q.Queue.PollCompleted()) }

func (q *gatedQueue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	if q.submit != nil {
		return 0, q.submit
	}
	return q.Queue.Submit(cbs)
}

func openNoop(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	b, ok := hal.GetBackend(gputypes.BackendEmpty)
	require.True(t, ok, "noop backend not registered")
	inst, err := b.CreateInstance(&hal.InstanceDescriptor{})
	require.NoError(t, err)
	adapters := inst.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	require.NoError(t, err)
	return open.Device, open.Queue
}

func newGated(t *testing.T) (*Device, *gatedQueue) {
	t.Helper()
	raw, q := openNoop(t)
	gq := &gatedQueue{Queue: q, limit: ^uint64(0)}
	d := NewFromHal(raw, gq, "gated")
	t.Cleanup(func() { d.Close() })
	return d, gq
}

func newList(t *testing.T, d *Device) (device.CommandAllocator, device.CommandList) {
	t.Helper()
	alloc, err := d.CreateCommandAllocator("test")
	require.NoError(t, err)
	cl, err := d.CreateCommandList("test", alloc)
	require.NoError(t, err)
	return alloc, cl
}

func mapped(t *testing.T, d *Device, b *Buffer) []byte {
	t.Helper()
	m, err := d.raw.MapBuffer(b.raw, 0, b.size)
	require.NoError(t, err)
	return bytes.Clone(unsafe.Slice((*byte)(m.Ptr), b.size))
}

func TestOpenNoop(t *testing.T) {
	d, err := Open(gputypes.BackendEmpty)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, BackendName, d.Info().Backend)
	assert.Equal(t, "Noop Adapter", d.Info().Name)
	assert.NotNil(t, d.HalDevice())
}

func TestOpenMissingBackend(t *testing.T) {
	_, err := Open(gputypes.BackendMetal)
	assert.ErrorIs(t, err, hal.ErrBackendNotFound)
}

type provider struct {
	dev   hal.Device
	queue hal.Queue
}

func (p provider) HalDevice() any { return p.dev }
func (p provider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	raw, q := openNoop(t)
	d, err := NewFromProvider(provider{raw, q})
	require.NoError(t, err)
	assert.Equal(t, "shared device", d.Info().Name)
	require.NoError(t, d.Close())

	_, err = NewFromProvider(struct{}{})
	assert.Error(t, err)
	_, err = NewFromProvider(provider{})
	assert.Error(t, err)
}

func TestUploadWrittenOnExecute(t *testing.T) {
	d, _ := newGated(t)
	up, err := d.CreateBuffer(&device.BufferDesc{Label: "up", Size: 6, Heap: device.HeapUpload})
	require.NoError(t, err)
	dst, err := d.CreateBuffer(&device.BufferDesc{Label: "dst", Size: 6, Usage: gputypes.BufferUsageStorage})
	require.NoError(t, err)

	mem, err := up.Map()
	require.NoError(t, err)
	copy(mem, "airis!")

	_, cl := newList(t, d)
	cl.CopyBuffer(dst, up)
	require.NoError(t, cl.Close())
	assert.NotEqual(t, []byte("airis!"), mapped(t, d, up.(*Buffer))[:6])

	require.NoError(t, d.Queue().Execute(cl))
	assert.Equal(t, []byte("airis!"), mapped(t, d, up.(*Buffer))[:6])
}

func TestReadbackMap(t *testing.T) {
	d, _ := newGated(t)
	rb, err := d.CreateBuffer(&device.BufferDesc{Label: "rb", Size: 4, Heap: device.HeapReadback})
	require.NoError(t, err)
	require.NoError(t, d.queue.raw.WriteBuffer(rb.(*Buffer).raw, 0, []byte{1, 2, 3, 4}))

	got, err := rb.Map()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	local, err := d.CreateBuffer(&device.BufferDesc{Label: "local", Size: 4})
	require.NoError(t, err)
	_, err = local.Map()
	assert.ErrorIs(t, err, device.ErrNotMappable)
}

func TestInFlightAndDeferredDestroy(t *testing.T) {
	d, q := newGated(t)
	q.limit = 0
	up, err := d.CreateBuffer(&device.BufferDesc{Label: "up", Size: 4, Heap: device.HeapUpload})
	require.NoError(t, err)
	dst, err := d.CreateBuffer(&device.BufferDesc{Label: "dst", Size: 4})
	require.NoError(t, err)

	alloc, cl := newList(t, d)
	cl.CopyBuffer(dst, up)
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))

	assert.True(t, d.InFlight(dst))
	assert.ErrorIs(t, alloc.Reset(), device.ErrInUse)
	assert.ErrorIs(t, cl.Reset(alloc), device.ErrInUse)

	dst.Release()
	d.mu.Lock()
	pending := len(d.garbage)
	d.mu.Unlock()
	// The list's encoding and the released buffer wait for the GPU.
	assert.Equal(t, 2, pending)

	q.limit = ^uint64(0)
	assert.False(t, d.InFlight(dst))
	require.NoError(t, alloc.Reset())
	d.mu.Lock()
	d.collect()
	pending = len(d.garbage)
	d.mu.Unlock()
	assert.Zero(t, pending)
}

func TestFenceWait(t *testing.T) {
	d, q := newGated(t)
	f, err := d.CreateFence(0)
	require.NoError(t, err)

	// Nothing submitted: the signal completes at once.
	require.NoError(t, d.Queue().Signal(f, 1))
	assert.Equal(t, uint64(1), f.Completed())

	q.limit = 0
	_, cl := newList(t, d)
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	require.NoError(t, d.Queue().Signal(f, 2))
	assert.Equal(t, uint64(1), f.Completed())

	ok, err := f.Wait(2, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	go func() {
		time.Sleep(2 * time.Millisecond)
		d.mu.Lock()
		q.limit = ^uint64(0)
		d.mu.Unlock()
	}()
	ok, err = f.Wait(2, -1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), f.Completed())
}

func TestDeviceLostOnSubmit(t *testing.T) {
	d, q := newGated(t)
	q.submit = hal.ErrDeviceLost
	_, cl := newList(t, d)
	require.NoError(t, cl.Close())

	err := d.Queue().Execute(cl)
	assert.ErrorIs(t, err, device.ErrDeviceLost)
	_, err = d.CreateBuffer(&device.BufferDesc{Label: "b", Size: 4})
	assert.ErrorIs(t, err, device.ErrDeviceLost)

	f := &Fence{object: object{dev: d}}
	ok, err := f.Wait(1, time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, device.ErrDeviceLost)
}

func TestRecordingErrorsDeferredToClose(t *testing.T) {
	d, _ := newGated(t)
	vb, err := d.CreateBuffer(&device.BufferDesc{Label: "vb", Size: 16})
	require.NoError(t, err)

	_, cl := newList(t, d)
	cl.DrawIndexed(vb, vb, 3)
	err = cl.Close()
	assert.ErrorIs(t, err, device.ErrInvalidState)
	assert.Error(t, d.Queue().Execute(cl))
}

func TestBarrierOnUploadBuffer(t *testing.T) {
	d, _ := newGated(t)
	up, err := d.CreateBuffer(&device.BufferDesc{Label: "up", Size: 4, Heap: device.HeapUpload})
	require.NoError(t, err)
	_, cl := newList(t, d)
	cl.Barrier(device.Transition(up, device.StateGenericRead, device.StateCopyDest))
	assert.ErrorIs(t, cl.Close(), device.ErrInvalidState)
}

func TestCopyTextureMismatch(t *testing.T) {
	d, _ := newGated(t)
	a, err := d.CreateTexture(&device.TextureDesc{Label: "a", Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	b, err := d.CreateTexture(&device.TextureDesc{Label: "b", Width: 8, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	_, cl := newList(t, d)
	cl.CopyTexture(b, a)
	assert.ErrorIs(t, cl.Close(), device.ErrInvalidDescriptor)
}

func TestStorageFormatsRequired(t *testing.T) {
	d, _ := newGated(t)
	_, err := d.CreatePipeline(&device.PipelineDesc{
		Label:        "cs",
		Kind:         device.PipelineCompute,
		Shader:       device.ShaderSource{Name: "cs", WGSL: "@compute @workgroup_size(1) fn main() {}"},
		ComputeEntry: "main",
		Bindings:     []device.BindingKind{device.BindingReadWrite},
	})
	assert.ErrorIs(t, err, device.ErrInvalidDescriptor)
}

func TestSwapChain(t *testing.T) {
	d, q := newGated(t)
	scd := &device.SwapChainDesc{Width: 16, Height: 8, BufferCount: 3, Format: gputypes.TextureFormatBGRA8Unorm}
	sc, err := d.CreateSwapChain(scd)
	require.NoError(t, err)
	assert.Equal(t, 3, sc.BufferCount())

	for want := 1; want <= 4; want++ {
		require.NoError(t, sc.Present())
		assert.Equal(t, want%3, sc.CurrentIndex())
	}

	back, err := sc.Buffer(sc.CurrentIndex())
	require.NoError(t, err)
	back.Release()
	_, err = sc.Buffer(0)
	require.NoError(t, err, "back buffers are owned by the swap chain")

	q.limit = 0
	_, cl := newList(t, d)
	cl.ClearRenderTarget(back, gputypes.Color{R: 1, A: 1})
	require.NoError(t, cl.Close())
	require.NoError(t, d.Queue().Execute(cl))
	assert.ErrorIs(t, sc.Resize(32, 16), device.ErrInUse)

	q.limit = ^uint64(0)
	require.NoError(t, sc.Resize(32, 16))
	assert.Equal(t, 0, sc.CurrentIndex())
	nb, err := sc.Buffer(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), nb.Width())
	sc.Release()
	_, err = sc.Buffer(0)
	assert.ErrorIs(t, err, device.ErrReleased)
}

func TestStateUsages(t *testing.T) {
	assert.Equal(t, gputypes.TextureUsageRenderAttachment, textureUsage(device.StateRenderTarget))
	assert.Equal(t, gputypes.TextureUsageRenderAttachment, textureUsage(device.StateDepthWrite))
	assert.Equal(t, gputypes.TextureUsageCopySrc, textureUsage(device.StatePresent))
	assert.Equal(t, gputypes.TextureUsageStorageBinding, textureUsage(device.StateUnorderedAccess))
	assert.Equal(t, gputypes.TextureUsageNone, textureUsage(device.StateCommon))

	u := gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	assert.Equal(t, gputypes.BufferUsageVertex, bufferUsage(device.StateGenericRead, u))
	assert.Equal(t, gputypes.BufferUsageCopyDst, bufferUsage(device.StateCopyDest, u))
}

func TestRowCopies(t *testing.T) {
	whole := rowCopies(64, 10, 4)
	require.Len(t, whole, 1)
	assert.Equal(t, rowCopy{y: 0, rows: 10, offset: 0, pitch: 256}, whole[0])

	rows := rowCopies(10, 3, 4)
	require.Len(t, rows, 3)
	assert.Equal(t, rowCopy{y: 2, rows: 1, offset: 80, pitch: 40}, rows[2])
}

func TestRendererOnNoop(t *testing.T) {
	for _, m := range []config.Mode{config.ModeRaster, config.ModeRayTrace} {
		t.Run(string(m), func(t *testing.T) {
			d, err := Open(gputypes.BackendEmpty)
			require.NoError(t, err)
			cfg := config.Default()
			cfg.Mode = m
			cfg.Width, cfg.Height = 64, 32

			r, err := renderer.New(d, cfg)
			require.NoError(t, err)
			defer r.Close()
			for i := 0; i < 5; i++ {
				require.NoError(t, r.RenderFrame(16*time.Millisecond))
			}
			require.NoError(t, r.Resize(40, 20))
			require.NoError(t, r.RenderFrame(16*time.Millisecond))

			img, err := r.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, uint64(6), r.Stats().Frames)
		})
	}
}
