// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/airis/backend/sim"
	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/events"
	"github.com/gogpu/airis/shader"
)

const frameTime = 16 * time.Millisecond

func testConfig(m config.Mode) config.Config {
	cfg := config.Default()
	cfg.Mode = m
	cfg.Width, cfg.Height = 64, 32
	return cfg
}

func newRenderer(t *testing.T, dev *sim.Device, cfg config.Config, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(dev, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func renderFrames(t *testing.T, r *Renderer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.RenderFrame(frameTime), "frame %d", i+1)
	}
}

func TestFramePacingGPUOneBehind(t *testing.T) {
	dev := sim.New(sim.WithPolicy(sim.OnWait(1)))
	r := newRenderer(t, dev, testConfig(config.ModeRaster))
	require.Equal(t, 3, r.ring.Size())

	base := r.tl.LastSignaled()
	blocking := r.tl.Stats().BlockingWaits

	renderFrames(t, r, 5)

	// Frame 4 reuses frame 1's slot and must wait for it. By then the GPU
	// has caught up with frame 2, so frame 5 does not block.
	assert.Equal(t, uint64(1), r.ring.Waits())
	assert.Equal(t, blocking+1, r.tl.Stats().BlockingWaits)
	assert.Equal(t, base+5, r.tl.LastSignaled())

	var fences []uint64
	for i := 0; i < r.ring.Size(); i++ {
		fences = append(fences, r.ring.Slot(i).Fence)
	}
	assert.Equal(t, []uint64{base + 4, base + 5, base + 3}, fences)
	assert.Equal(t, uint64(5), r.Stats().Frames)
	assert.Empty(t, dev.Violations())
}

func TestSlotsNeverReusedEarly(t *testing.T) {
	for _, size := range []int{1, 2, 3} {
		dev := sim.New(sim.WithPolicy(sim.OnWait(0)))
		cfg := testConfig(config.ModeRaster)
		cfg.FrameResources = size
		r := newRenderer(t, dev, cfg)

		// A constant write into a slot the GPU still reads fails with
		// upload.ErrInFlight, so every frame succeeding is the check.
		renderFrames(t, r, 10)
		assert.Empty(t, dev.Violations(), "size %d", size)
	}
}

func TestDirtyItemWrittenOncePerSlot(t *testing.T) {
	r := newRenderer(t, sim.New(), testConfig(config.ModeRaster))
	m := r.mode.(*raster)
	require.Len(t, m.items, 1)
	assert.Equal(t, 3, m.items[0].Dirty)

	renderFrames(t, r, 2)
	assert.Equal(t, 1, m.items[0].Dirty)
	renderFrames(t, r, 2)
	assert.Equal(t, 0, m.items[0].Dirty)
}

func TestSpinToggle(t *testing.T) {
	bus := events.NewBus(nil)
	r := newRenderer(t, sim.New(), testConfig(config.ModeRaster), WithBus(bus))
	m := r.mode.(*raster)

	renderFrames(t, r, 3)
	require.Equal(t, 0, m.items[0].Dirty)

	bus.Publish(events.KeyPress(gpucontext.KeyR, 0))
	renderFrames(t, r, 1)
	assert.True(t, m.spin)
	// The spinning item is rewritten every frame.
	assert.Equal(t, 2, m.items[0].Dirty)
}

func TestDrawWithoutUpdate(t *testing.T) {
	r := newRenderer(t, sim.New(), testConfig(config.ModeRaster))
	assert.ErrorIs(t, r.Draw(), ErrNoFrame)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(config.ModeRaster)
	cfg.FrameResources = 0
	_, err := New(sim.New(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestResizeThroughBus(t *testing.T) {
	dev := sim.New(sim.WithPolicy(sim.OnWait(1)))
	bus := events.NewBus(nil)
	r := newRenderer(t, dev, testConfig(config.ModeRaster), WithBus(bus))
	renderFrames(t, r, 3)

	bus.Publish(events.Resize(0, 0))
	bus.Publish(events.Resize(40, 20))
	renderFrames(t, r, 3)

	w, h := r.Size()
	assert.Equal(t, uint32(40), w)
	assert.Equal(t, uint32(20), h)
	assert.Equal(t, 1, r.Stats().Resizes)

	back, err := r.buffers.Current()
	require.NoError(t, err)
	assert.Equal(t, uint32(40), back.Width())
	assert.Empty(t, dev.Violations())
}

func TestMinimizePauses(t *testing.T) {
	bus := events.NewBus(nil)
	r := newRenderer(t, sim.New(), testConfig(config.ModeRaster), WithBus(bus))

	bus.Publish(events.Event{Kind: events.KindMinimize})
	renderFrames(t, r, 2)
	assert.True(t, r.Paused())
	assert.Equal(t, uint64(0), r.Stats().Frames)
	assert.Equal(t, uint64(2), r.Stats().Skipped)

	bus.Publish(events.Event{Kind: events.KindMaximize})
	renderFrames(t, r, 1)
	assert.False(t, r.Paused())
	assert.Equal(t, uint64(1), r.Stats().Frames)
}

func TestDeviceLostAndRecover(t *testing.T) {
	var devices []*sim.Device
	factory := func() (device.Device, error) {
		d := sim.New()
		devices = append(devices, d)
		return d, nil
	}
	first := sim.New()
	r := newRenderer(t, first, testConfig(config.ModeRaster), WithDeviceFactory(factory))

	require.NoError(t, r.Update(frameTime))
	require.NoError(t, r.Draw())

	first.Lose()
	err := r.RenderFrame(frameTime)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrDeviceLost)

	require.NoError(t, r.Recover())
	require.Len(t, devices, 1)
	assert.Same(t, devices[0], r.Device())
	assert.NoError(t, r.Err())

	renderFrames(t, r, 4)
	assert.Equal(t, 1, r.Stats().Recoveries)
	assert.Empty(t, devices[0].Violations())
}

func TestRecoverRetriesAfterFactoryError(t *testing.T) {
	errBusy := errors.New("adapter busy")
	calls := 0
	factory := func() (device.Device, error) {
		calls++
		if calls == 1 {
			return nil, errBusy
		}
		return sim.New(), nil
	}
	first := sim.New()
	r := newRenderer(t, first, testConfig(config.ModeRaster), WithDeviceFactory(factory))
	renderFrames(t, r, 1)

	first.Lose()
	require.ErrorIs(t, r.RenderFrame(frameTime), device.ErrDeviceLost)
	assert.ErrorIs(t, r.Err(), device.ErrDeviceLost)
	assert.ErrorIs(t, r.RenderFrame(frameTime), device.ErrDeviceLost)

	assert.ErrorIs(t, r.Recover(), errBusy)
	assert.ErrorIs(t, r.Err(), device.ErrDeviceLost)
	assert.ErrorIs(t, r.RenderFrame(frameTime), device.ErrDeviceLost)

	require.NoError(t, r.Recover())
	assert.Equal(t, 2, calls)
	assert.NoError(t, r.Err())
	renderFrames(t, r, 3)
	assert.Equal(t, 1, r.Stats().Recoveries)
}

func TestRecoverWithoutFactory(t *testing.T) {
	r := newRenderer(t, sim.New(), testConfig(config.ModeRaster))
	assert.ErrorIs(t, r.Recover(), ErrNoDeviceFactory)
}

func TestClosedRenderer(t *testing.T) {
	r, err := New(sim.New(), testConfig(config.ModeRaster))
	require.NoError(t, err)
	r.Close()
	r.Close()
	assert.ErrorIs(t, r.RenderFrame(frameTime), ErrClosed)
	assert.ErrorIs(t, r.Resize(10, 10), ErrClosed)
}

func TestSnapshotRaster(t *testing.T) {
	cfg := testConfig(config.ModeRaster)
	cfg.ClearColor = config.Color{R: 1, G: 0.5, B: 0, A: 1}
	r := newRenderer(t, sim.New(sim.WithPolicy(sim.Async(time.Millisecond))), cfg)
	renderFrames(t, r, 2)

	img, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
	assert.Equal(t, []uint8{255, 128, 0, 255}, img.Pix[:4])
}

// fillRed writes opaque red into the BGRA output binding.
func fillRed(inv *sim.Invocation) {
	out := inv.Bindings[4].Data
	for i := 0; i+3 < len(out); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = 0, 0, 255, 255
	}
}

func TestRayTraceFrames(t *testing.T) {
	var dispatches [][3]uint32
	kernel := func(inv *sim.Invocation) {
		dispatches = append(dispatches, inv.Groups)
		fillRed(inv)
	}
	dev := sim.New(sim.WithKernel(shader.RayTraceName, kernel))
	bus := events.NewBus(nil)
	r := newRenderer(t, dev, testConfig(config.ModeRayTrace), WithBus(bus))
	m := r.mode.(*rayTrace)

	renderFrames(t, r, 3)
	require.Len(t, dispatches, 3)
	assert.Equal(t, [3]uint32{1, 32, 1}, dispatches[0])
	assert.Equal(t, uint32(3), m.acc.Samples())

	img, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[:4])

	bus.Publish(events.KeyPress(gpucontext.KeySpace, 0))
	renderFrames(t, r, 2)
	assert.False(t, m.acc.Enabled)
	assert.Equal(t, uint32(1), m.acc.Samples())

	bus.Publish(events.KeyPress(gpucontext.KeySpace, 0))
	bus.Publish(events.MouseMove(3, 4))
	renderFrames(t, r, 2)
	assert.True(t, m.acc.Enabled)
	assert.Equal(t, uint32(2), m.acc.Samples())
	assert.Empty(t, dev.Violations())
}

func TestRayTraceResizeResetsAccumulation(t *testing.T) {
	dev := sim.New(sim.WithPolicy(sim.OnWait(1)))
	r := newRenderer(t, dev, testConfig(config.ModeRayTrace))
	m := r.mode.(*rayTrace)
	renderFrames(t, r, 4)
	require.Equal(t, uint32(4), m.acc.Samples())

	require.NoError(t, r.Resize(300, 10))
	renderFrames(t, r, 1)
	assert.Equal(t, uint32(1), m.acc.Samples())
	assert.Empty(t, dev.Violations())
}

func TestRayTraceHoverKeepsAccumulation(t *testing.T) {
	bus := events.NewBus(nil)
	r := newRenderer(t, sim.New(), testConfig(config.ModeRayTrace), WithBus(bus))
	m := r.mode.(*rayTrace)
	renderFrames(t, r, 2)

	bus.Publish(events.MouseMove(3, 4))
	bus.Publish(events.Event{Kind: events.KindScroll, Y: 1})
	renderFrames(t, r, 1)
	assert.Equal(t, uint32(3), m.acc.Samples())

	bus.Publish(events.MousePress(gpucontext.MouseButtonLeft, 3, 4))
	bus.Publish(events.MouseMove(8, 4))
	renderFrames(t, r, 1)
	assert.Equal(t, uint32(1), m.acc.Samples())

	bus.Publish(events.Event{Kind: events.KindMouseRelease, Button: gpucontext.MouseButtonLeft, X: 8, Y: 4})
	bus.Publish(events.MouseMove(9, 9))
	renderFrames(t, r, 1)
	assert.Equal(t, uint32(2), m.acc.Samples())
}

func TestDispatchSize(t *testing.T) {
	tests := []struct {
		w, h    uint32
		x, y, z uint32
	}{
		{1, 1, 1, 1, 1},
		{256, 4, 1, 4, 1},
		{257, 4, 2, 4, 1},
		{1280, 720, 5, 720, 1},
	}
	for _, tt := range tests {
		x, y, z := dispatchSize(tt.w, tt.h)
		if x != tt.x || y != tt.y || z != tt.z {
			t.Errorf("dispatchSize(%d, %d) = %d, %d, %d; want %d, %d, %d", tt.w, tt.h, x, y, z, tt.x, tt.y, tt.z)
		}
	}
}

func TestUnknownModeRejected(t *testing.T) {
	cfg := testConfig("wireframe")
	_, err := New(sim.New(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}
