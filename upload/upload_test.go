// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/backend/sim"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/fence"
)

type fixture struct {
	dev   *sim.Device
	tl    *fence.Timeline
	alloc device.CommandAllocator
	cl    device.CommandList
}

func newFixture(t *testing.T, policy sim.Policy) *fixture {
	t.Helper()
	dev := sim.New(sim.WithPolicy(policy))
	tl, err := fence.New(dev)
	if err != nil {
		t.Fatalf("fence.New: %v", err)
	}
	alloc, err := dev.CreateCommandAllocator("test")
	if err != nil {
		t.Fatal(err)
	}
	cl, err := dev.CreateCommandList("test", alloc)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		tl.Close()
		dev.Close()
	})
	return &fixture{dev: dev, tl: tl, alloc: alloc, cl: cl}
}

func (f *fixture) submit(t *testing.T) uint64 {
	t.Helper()
	if err := f.cl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.dev.Queue().Execute(f.cl); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	v, err := f.tl.SignalNext()
	if err != nil {
		t.Fatalf("SignalNext: %v", err)
	}
	return v
}

func (f *fixture) reopen(t *testing.T) {
	t.Helper()
	if err := f.alloc.Reset(); err != nil {
		t.Fatalf("allocator Reset: %v", err)
	}
	if err := f.cl.Reset(f.alloc); err != nil {
		t.Fatalf("list Reset: %v", err)
	}
}

func TestDefaultBufferRoundTrip(t *testing.T) {
	f := newFixture(t, sim.Async(time.Millisecond))
	rng := rand.New(rand.NewSource(1))

	for _, size := range []int{1, 3, 256, 1000, 4096} {
		data := make([]byte, size)
		rng.Read(data)

		dst, staging, err := NewDefaultBuffer(f.dev, f.cl, "vb", data, gputypes.BufferUsageVertex, device.StateGenericRead)
		if err != nil {
			t.Fatalf("NewDefaultBuffer(%d): %v", size, err)
		}
		if dst.Size() != uint64(size) || staging.Size() != uint64(size) {
			t.Fatalf("sizes = %d, %d; want %d", dst.Size(), staging.Size(), size)
		}
		if staging.Heap() != device.HeapUpload || dst.Heap() != device.HeapDeviceLocal {
			t.Fatalf("heaps = %s, %s", staging.Heap(), dst.Heap())
		}
		f.submit(t)

		got, err := ReadBuffer(f.dev, f.tl, dst, device.StateGenericRead)
		if err != nil {
			t.Fatalf("ReadBuffer: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip of %d bytes differs", size)
		}
		staging.Release()
		dst.Release()
		f.reopen(t)
	}
	if v := f.dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestDefaultBufferSteadyCopyDest(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	dst, staging, err := NewDefaultBuffer(f.dev, f.cl, "buf", []byte{1, 2}, 0, device.StateCopyDest)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Release()
	defer dst.Release()
	f.submit(t)
	got, err := ReadBuffer(f.dev, f.tl, dst, device.StateCopyDest)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("got %v", got)
	}
}

func TestDefaultBufferEmpty(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	_, _, err := NewDefaultBuffer(f.dev, f.cl, "empty", nil, 0, device.StateGenericRead)
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("err = %v, want ErrEmptyUpload", err)
	}
}

func TestPendingCollect(t *testing.T) {
	f := newFixture(t, sim.Manual())
	var p Pending
	for v := uint64(1); v <= 3; v++ {
		b, err := f.dev.CreateBuffer(&device.BufferDesc{Label: "s", Size: 4, Heap: device.HeapUpload})
		if err != nil {
			t.Fatal(err)
		}
		p.Add(b, v)
	}
	if n := p.Collect(0); n != 0 || p.Len() != 3 {
		t.Fatalf("Collect(0) = %d, Len = %d", n, p.Len())
	}
	if n := p.Collect(2); n != 2 || p.Len() != 1 {
		t.Fatalf("Collect(2) = %d, Len = %d", n, p.Len())
	}
	if n := p.Collect(10); n != 1 || p.Len() != 0 {
		t.Fatalf("Collect(10) = %d, Len = %d", n, p.Len())
	}
}

type constants struct {
	Model [16]float32
	Index uint32
}

func TestBufferConstantStride(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	b, err := NewBuffer[constants](f.dev, "objects", 3, true)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer b.Close()

	if b.ElementSize() != 68 {
		t.Errorf("ElementSize = %d, want 68", b.ElementSize())
	}
	if b.Stride() != 256 {
		t.Errorf("Stride = %d, want 256", b.Stride())
	}
	if b.Resource().Size() != 768 {
		t.Errorf("Size = %d, want 768", b.Resource().Size())
	}
	if bd := b.Binding(2); bd.Offset != 512 || bd.Size != 256 {
		t.Errorf("Binding(2) = %+v", bd)
	}

	var c constants
	c.Model[0] = 1.5
	c.Index = 9
	if err := b.Write(2, c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mem, _ := b.Resource().Map()
	if got := math.Float32frombits(binary.LittleEndian.Uint32(mem[512:])); got != 1.5 {
		t.Errorf("Model[0] = %v", got)
	}
	if got := binary.LittleEndian.Uint32(mem[512+64:]); got != 9 {
		t.Errorf("Index = %d", got)
	}
	if mem[0] != 0 {
		t.Error("Write touched element 0")
	}
}

func TestBufferPackedStride(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	b, err := NewBuffer[[5]uint32](f.dev, "packed", 4, false)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer b.Close()
	if b.Stride() != 20 {
		t.Errorf("Stride = %d, want 20", b.Stride())
	}
}

func TestBufferWriteOutOfRange(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	b, err := NewBuffer[uint32](f.dev, "u", 2, true)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	for _, i := range []int{-1, 2, 100} {
		if err := b.Write(i, 1); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Write(%d): err = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestBufferClosed(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	b, err := NewBuffer[uint32](f.dev, "u", 1, false)
	if err != nil {
		t.Fatal(err)
	}
	b.Close()
	b.Close()
	if err := b.Write(0, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestBufferNotFixedSize(t *testing.T) {
	f := newFixture(t, sim.Immediate())
	if _, err := NewBuffer[[]byte](f.dev, "slice", 1, false); !errors.Is(err, ErrNotFixedSize) {
		t.Fatalf("err = %v, want ErrNotFixedSize", err)
	}
}

func TestBufferWriteInFlight(t *testing.T) {
	f := newFixture(t, sim.Manual())
	b, err := NewBuffer[uint32](f.dev, "cb", 1, true)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	dst, err := f.dev.CreateBuffer(&device.BufferDesc{Label: "dst", Size: 256, Heap: device.HeapDeviceLocal})
	if err != nil {
		t.Fatal(err)
	}
	f.cl.Barrier(device.Transition(dst, device.StateCommon, device.StateCopyDest))
	f.cl.CopyBuffer(dst, b.Resource())
	f.submit(t)

	if err := b.Write(0, 1); !errors.Is(err, ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
	f.dev.RetireAll()
	if err := b.Write(0, 1); err != nil {
		t.Fatalf("Write after retire: %v", err)
	}
}
