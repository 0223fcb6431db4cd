// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package events

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/airis"
)

// Handler receives an event and reports whether it consumed it. A consumed
// event is not offered to later handlers.
type Handler func(Event) bool

type subscription struct {
	id uint64
	fn Handler
}

// Bus is a registry of event handlers with a FIFO queue.
//
// Publish, Subscribe and the returned cancel funcs are safe for concurrent
// use. Dispatch and Send run handlers on the calling goroutine.
type Bus struct {
	log *slog.Logger

	mu     sync.Mutex
	subs   [kindCount][]subscription
	queue  []Event
	nextID uint64
}

// NewBus returns an empty bus. A nil logger uses the package logger.
func NewBus(l *slog.Logger) *Bus {
	return &Bus{log: airis.LoggerOr(l)}
}

// Subscribe registers fn for events of kind k. Handlers run in
// registration order. The returned func removes the handler.
func (b *Bus) Subscribe(k Kind, fn Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[k] = append(b.subs[k], subscription{id: id, fn: fn})
	return func() { b.unsubscribe(k, id) }
}

// SubscribeInput registers fn for every keyboard and mouse event kind.
func (b *Bus) SubscribeInput(fn Handler) (cancel func()) {
	var cancels []func()
	for k := KindKeyPress; k < kindCount; k++ {
		cancels = append(cancels, b.Subscribe(k, fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (b *Bus) unsubscribe(k Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[k]
	for i, s := range subs {
		if s.id == id {
			// Copy so a Dispatch iterating the old slice is unaffected.
			b.subs[k] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish queues e for the next Dispatch.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.mu.Unlock()
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dispatch delivers every queued event in publish order and returns how
// many were delivered. Events published by handlers during Dispatch are
// delivered by the next call.
func (b *Bus) Dispatch() int {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, e := range queue {
		b.Send(e)
	}
	return len(queue)
}

// Send delivers e immediately and reports whether a handler consumed it.
func (b *Bus) Send(e Event) bool {
	if e.Kind >= kindCount {
		b.log.Warn("events: unknown kind", "kind", e.Kind.String())
		return false
	}
	b.mu.Lock()
	subs := b.subs[e.Kind]
	b.mu.Unlock()

	for _, s := range subs {
		if s.fn(e) {
			return true
		}
	}
	return false
}

// Attach forwards the events of a windowing event source to the bus.
func (b *Bus) Attach(src gpucontext.EventSource) {
	src.OnResize(func(w, h int) { b.Publish(Resize(w, h)) })
	src.OnFocus(func(focused bool) { b.Publish(Event{Kind: KindFocus, Focused: focused}) })
	src.OnKeyPress(func(k gpucontext.Key, m gpucontext.Modifiers) { b.Publish(KeyPress(k, m)) })
	src.OnKeyRelease(func(k gpucontext.Key, m gpucontext.Modifiers) { b.Publish(KeyRelease(k, m)) })
	src.OnMouseMove(func(x, y float64) { b.Publish(MouseMove(x, y)) })
	src.OnMousePress(func(btn gpucontext.MouseButton, x, y float64) { b.Publish(MousePress(btn, x, y)) })
	src.OnMouseRelease(func(btn gpucontext.MouseButton, x, y float64) {
		b.Publish(Event{Kind: KindMouseRelease, Button: btn, X: x, Y: y})
	})
	src.OnScroll(func(dx, dy float64) { b.Publish(Event{Kind: KindScroll, X: dx, Y: dy}) })
}
