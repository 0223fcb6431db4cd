// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package events

import (
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	bus.Subscribe(KindResize, func(e Event) bool {
		got = append(got, e.String())
		return false
	})
	bus.Subscribe(KindKeyPress, func(e Event) bool {
		got = append(got, e.String())
		return false
	})

	bus.Publish(Resize(10, 20))
	bus.Publish(KeyPress(gpucontext.KeySpace, 0))
	bus.Publish(Resize(30, 40))
	require.Equal(t, 3, bus.Pending())

	assert.Equal(t, 3, bus.Dispatch())
	assert.Equal(t, []string{"resize 10x20", KeyPress(gpucontext.KeySpace, 0).String(), "resize 30x40"}, got)
	assert.Equal(t, 0, bus.Pending())
	assert.Equal(t, 0, bus.Dispatch())
}

func TestHandledStopsPropagation(t *testing.T) {
	bus := NewBus(nil)
	var calls []int
	bus.Subscribe(KindKeyPress, func(Event) bool { calls = append(calls, 1); return false })
	bus.Subscribe(KindKeyPress, func(Event) bool { calls = append(calls, 2); return true })
	bus.Subscribe(KindKeyPress, func(Event) bool { calls = append(calls, 3); return false })

	assert.True(t, bus.Send(KeyPress(gpucontext.KeyR, 0)))
	assert.Equal(t, []int{1, 2}, calls)
	assert.False(t, bus.Send(Resize(1, 1)), "no handler for resize")
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	n := 0
	cancel := bus.Subscribe(KindClose, func(Event) bool { n++; return false })
	bus.Send(Event{Kind: KindClose})
	cancel()
	cancel()
	bus.Send(Event{Kind: KindClose})
	assert.Equal(t, 1, n)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus(nil)
	var calls []int
	var cancelSecond func()
	bus.Subscribe(KindFocus, func(Event) bool {
		calls = append(calls, 1)
		cancelSecond()
		return false
	})
	cancelSecond = bus.Subscribe(KindFocus, func(Event) bool { calls = append(calls, 2); return false })

	bus.Send(Event{Kind: KindFocus})
	bus.Send(Event{Kind: KindFocus})
	assert.Equal(t, []int{1, 2, 1}, calls)
}

func TestPublishFromHandlerDeferred(t *testing.T) {
	bus := NewBus(nil)
	seen := 0
	bus.Subscribe(KindMinimize, func(Event) bool {
		seen++
		bus.Publish(Event{Kind: KindMaximize})
		return true
	})
	bus.Publish(Event{Kind: KindMinimize})
	assert.Equal(t, 1, bus.Dispatch())
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, bus.Pending())
}

func TestSubscribeInput(t *testing.T) {
	bus := NewBus(nil)
	var kinds []Kind
	cancel := bus.SubscribeInput(func(e Event) bool {
		kinds = append(kinds, e.Kind)
		return false
	})
	bus.Send(KeyPress(gpucontext.KeyA, gpucontext.ModShift))
	bus.Send(MousePress(gpucontext.MouseButtonLeft, 1, 2))
	bus.Send(MouseMove(3, 4))
	bus.Send(Resize(5, 5))
	cancel()
	bus.Send(KeyPress(gpucontext.KeyA, 0))
	assert.Equal(t, []Kind{KindKeyPress, KindMousePress, KindMouseMove}, kinds)
}

func TestKind(t *testing.T) {
	assert.True(t, KindScroll.IsInput())
	assert.True(t, KindKeyPress.IsInput())
	assert.False(t, KindResize.IsInput())
	assert.False(t, KindFocus.IsInput())
	assert.Equal(t, "mouse-release", KindMouseRelease.String())
	assert.Equal(t, "Kind(200)", Kind(200).String())
	assert.False(t, NewBus(nil).Send(Event{Kind: Kind(200)}))
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)
	total := 0
	bus.Subscribe(KindMouseMove, func(Event) bool { total++; return false })

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bus.Publish(MouseMove(float64(i), 0))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, bus.Dispatch())
	assert.Equal(t, 800, total)
}

type fakeSource struct {
	gpucontext.NullEventSource
	resize func(int, int)
	key    func(gpucontext.Key, gpucontext.Modifiers)
	scroll func(float64, float64)
}

func (f *fakeSource) OnResize(fn func(int, int)) { f.resize = fn }
func (f *fakeSource) OnKeyPress(fn func(gpucontext.Key, gpucontext.Modifiers)) { f.key = fn }
func (f *fakeSource) OnScroll(fn func(float64, float64)) { f.scroll = fn }

func TestAttach(t *testing.T) {
	bus := NewBus(nil)
	src := &fakeSource{}
	bus.Attach(src)
	require.NotNil(t, src.resize)
	require.NotNil(t, src.key)

	var got []Event
	record := func(e Event) bool {
		got = append(got, e)
		return true
	}
	bus.Subscribe(KindResize, record)
	bus.Subscribe(KindKeyPress, record)
	bus.Subscribe(KindScroll, record)

	src.resize(640, 480)
	src.key(gpucontext.KeyEscape, gpucontext.ModControl)
	src.scroll(0, -1)
	require.Equal(t, 3, bus.Dispatch())
	assert.Equal(t, Resize(640, 480), got[0])
	assert.Equal(t, KeyPress(gpucontext.KeyEscape, gpucontext.ModControl), got[1])
	assert.Equal(t, Event{Kind: KindScroll, Y: -1}, got[2])
}
