// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package events delivers window and input events to the renderer.
//
// An Event is a tagged value: Kind selects which fields are meaningful. A
// Bus keeps a registry of handlers per kind. Events are queued with Publish
// from any goroutine and delivered in order by Dispatch on the render
// thread, so handlers never run concurrently with frame recording.
package events

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// Kind is the event type.
type Kind uint8

const (
	KindResize Kind = iota
	KindClose
	KindMinimize
	KindMaximize
	KindFocus
	KindKeyPress
	KindKeyRelease
	KindMouseMove
	KindMousePress
	KindMouseRelease
	KindScroll

	kindCount
)

var kindNames = [...]string{
	KindResize:       "resize",
	KindClose:        "close",
	KindMinimize:     "minimize",
	KindMaximize:     "maximize",
	KindFocus:        "focus",
	KindKeyPress:     "key-press",
	KindKeyRelease:   "key-release",
	KindMouseMove:    "mouse-move",
	KindMousePress:   "mouse-press",
	KindMouseRelease: "mouse-release",
	KindScroll:       "scroll",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsInput reports whether k is a keyboard or mouse event.
func (k Kind) IsInput() bool { return k >= KindKeyPress && k < kindCount }

// Event is a window or input event.
type Event struct {
	Kind Kind

	// KindResize
	Width, Height int

	// KindKeyPress, KindKeyRelease
	Key  gpucontext.Key
	Mods gpucontext.Modifiers

	// KindMouse*, KindScroll (X, Y are the scroll deltas)
	Button gpucontext.MouseButton
	X, Y   float64

	// KindFocus
	Focused bool
}

// Resize returns a resize event.
func Resize(width, height int) Event {
	return Event{Kind: KindResize, Width: width, Height: height}
}

// KeyPress returns a key press event.
func KeyPress(key gpucontext.Key, mods gpucontext.Modifiers) Event {
	return Event{Kind: KindKeyPress, Key: key, Mods: mods}
}

// KeyRelease returns a key release event.
func KeyRelease(key gpucontext.Key, mods gpucontext.Modifiers) Event {
	return Event{Kind: KindKeyRelease, Key: key, Mods: mods}
}

// MousePress returns a mouse press event.
func MousePress(b gpucontext.MouseButton, x, y float64) Event {
	return Event{Kind: KindMousePress, Button: b, X: x, Y: y}
}

// MouseMove returns a mouse move event.
func MouseMove(x, y float64) Event {
	return Event{Kind: KindMouseMove, X: x, Y: y}
}

func (e Event) String() string {
	switch e.Kind {
	case KindResize:
		return fmt.Sprintf("resize %dx%d", e.Width, e.Height)
	case KindKeyPress, KindKeyRelease:
		return fmt.Sprintf("%s key=%d mods=%d", e.Kind, e.Key, e.Mods)
	case KindMouseMove, KindMousePress, KindMouseRelease:
		return fmt.Sprintf("%s button=%d at (%g,%g)", e.Kind, e.Button, e.X, e.Y)
	case KindScroll:
		return fmt.Sprintf("scroll (%g,%g)", e.X, e.Y)
	case KindFocus:
		return fmt.Sprintf("focus %t", e.Focused)
	default:
		return e.Kind.String()
	}
}
