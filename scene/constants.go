// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

// PassConstants are the per-frame constants shared by every draw.
type PassConstants struct {
	View        Mat4
	InvView     Mat4
	Proj        Mat4
	InvProj     Mat4
	ViewProj    Mat4
	InvViewProj Mat4
	EyePosW     Vec3
	_           float32

	RenderTargetSize    Vec2
	InvRenderTargetSize Vec2
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32
}

// ObjectConstants are the per-item constants.
type ObjectConstants struct {
	Model Mat4
}

// DefaultMaxRayBounces is the bounce limit used when none is configured.
const DefaultMaxRayBounces = 7

// RTConstants drive one frame of the progressive ray tracer.
type RTConstants struct {
	// AccumulateSamples is 1 when the frame adds to the running average.
	AccumulateSamples uint32
	// ResetOutput is 1 when the accumulation texture is discarded first.
	ResetOutput        uint32
	AccumulatedSamples uint32
	MaxRayBounces      uint32
	RandSeed           uint32
}

// Accumulator tracks progressive accumulation across frames.
type Accumulator struct {
	Enabled    bool
	MaxBounces uint32

	samples uint32
	reset   bool
	frame   uint32
}

// NewAccumulator returns an accumulator that starts from a cleared output.
func NewAccumulator(enabled bool, maxBounces uint32) *Accumulator {
	if maxBounces == 0 {
		maxBounces = DefaultMaxRayBounces
	}
	return &Accumulator{Enabled: enabled, MaxBounces: maxBounces, reset: true}
}

// Reset discards the accumulated samples on the next frame.
func (a *Accumulator) Reset() {
	a.samples = 0
	a.reset = true
}

// Toggle flips accumulation and restarts it.
func (a *Accumulator) Toggle() {
	a.Enabled = !a.Enabled
	a.Reset()
}

// Samples returns the number of frames averaged so far.
func (a *Accumulator) Samples() uint32 { return a.samples }

// Next returns the constants of the next frame and advances the counters.
func (a *Accumulator) Next() RTConstants {
	a.frame++
	c := RTConstants{
		MaxRayBounces: a.MaxBounces,
		RandSeed:      a.frame * 0x9E3779B9,
	}
	if a.reset {
		c.ResetOutput = 1
		a.reset = false
	}
	if a.Enabled {
		c.AccumulateSamples = 1
		a.samples++
	} else {
		a.samples = 1
	}
	c.AccumulatedSamples = a.samples
	return c
}
