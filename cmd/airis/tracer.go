// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/airis/backend/sim"
	"github.com/gogpu/airis/scene"
)

// Bindings of the ray tracing pipeline.
const (
	bindPass = iota
	bindRT
	_ // spheres
	_ // materials
	bindOutput
	bindAccum
)

// tracer shades the sphere world on the CPU. It stands in for the ray
// tracing compute shader on the sim backend.
type tracer struct {
	world *scene.World
	light scene.Vec3
}

func newTracer(w *scene.World) *tracer {
	return &tracer{world: w, light: scene.Vec3{X: 0.6, Y: 1, Z: 0.4}.Normalize()}
}

type ray struct {
	origin scene.Vec3
	dir    scene.Vec3
}

func (r ray) at(t float32) scene.Vec3 { return r.origin.Add(r.dir.Scale(t)) }

// kernel is a sim.Kernel.
func (t *tracer) kernel(inv *sim.Invocation) {
	if len(inv.Bindings) <= bindAccum {
		return
	}
	var (
		pc scene.PassConstants
		rc scene.RTConstants
	)
	if _, err := binary.Decode(inv.Bindings[bindPass].Data, binary.LittleEndian, &pc); err != nil {
		return
	}
	if _, err := binary.Decode(inv.Bindings[bindRT].Data, binary.LittleEndian, &rc); err != nil {
		return
	}
	out, acc := inv.Bindings[bindOutput], inv.Bindings[bindAccum]
	if rc.ResetOutput == 1 {
		clear(acc.Data)
	}
	samples := float32(max(rc.AccumulatedSamples, 1))
	w, h := out.Width, out.Height
	for y := range h {
		for x := range w {
			var jx, jy float32 = 0.5, 0.5
			if rc.AccumulateSamples == 1 {
				jx, jy = jitter(rc.RandSeed, x, y)
			}
			u := (float32(x) + jx) / float32(w)
			v := (float32(y) + jy) / float32(h)
			col := t.trace(t.primary(&pc, u, v), rc.MaxRayBounces)

			i := int(y*w + x)
			if rc.AccumulateSamples == 1 {
				col = accumulate(acc.Data[i*16:i*16+16], col).Scale(1 / samples)
			}
			store(out, i, col)
		}
	}
}

// primary returns the camera ray through (u, v) in [0,1]² with v down.
func (t *tracer) primary(pc *scene.PassConstants, u, v float32) ray {
	far := pc.InvViewProj.Transform(scene.Vec3{X: u*2 - 1, Y: 1 - v*2, Z: 1})
	return ray{origin: pc.EyePosW, dir: far.Sub(pc.EyePosW).Normalize()}
}

func (t *tracer) trace(r ray, bounces uint32) scene.Vec3 {
	atten := scene.Vec3{X: 1, Y: 1, Z: 1}
	for range max(bounces, 1) {
		s, dist, ok := t.hit(r)
		if !ok {
			return mul(atten, sky(r.dir))
		}
		p := r.at(dist)
		n := p.Sub(s.Position).Scale(1 / s.Radius)
		m := t.world.Materials[s.Material]
		switch m.Type {
		case scene.Metal:
			atten = mul(atten, m.Albedo)
			r = ray{origin: p, dir: r.dir.Sub(n.Scale(2 * r.dir.Dot(n)))}
		case scene.Dielectric, scene.HollowGlass:
			atten = atten.Scale(0.95)
			r = ray{origin: p, dir: r.dir}
		default:
			diffuse := max(n.Dot(t.light), 0)
			return mul(atten, m.Albedo.Scale(0.2+0.8*diffuse))
		}
	}
	return scene.Vec3{}
}

// hit returns the nearest sphere along r.
func (t *tracer) hit(r ray) (scene.Sphere, float32, bool) {
	const eps = 1e-3
	var (
		best  scene.Sphere
		bestT = float32(math.MaxFloat32)
		found bool
	)
	for _, s := range t.world.Spheres {
		oc := r.origin.Sub(s.Position)
		b := oc.Dot(r.dir)
		c := oc.Dot(oc) - s.Radius*s.Radius
		disc := b*b - c
		if disc < 0 {
			continue
		}
		sq := math32.Sqrt(disc)
		for _, d := range [2]float32{-b - sq, -b + sq} {
			if d > eps && d < bestT {
				best, bestT, found = s, d, true
				break
			}
		}
	}
	return best, bestT, found
}

func sky(dir scene.Vec3) scene.Vec3 {
	k := 0.5 * (dir.Y + 1)
	return scene.Vec3{X: 1, Y: 1, Z: 1}.Scale(1 - k).Add(scene.Vec3{X: 0.5, Y: 0.7, Z: 1}.Scale(k))
}

func mul(a, b scene.Vec3) scene.Vec3 { return scene.Vec3{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z} }

// jitter is a per-pixel sub-pixel offset that changes with seed.
func jitter(seed, x, y uint32) (float32, float32) {
	h := seed ^ (x * 0x27d4eb2d) ^ (y * 0x165667b1)
	h ^= h >> 15
	h *= 0x85ebca6b
	h ^= h >> 13
	return float32(h&0xffff) / 0x10000, float32(h>>16) / 0x10000
}

// accumulate adds col to an RGBA32Float texel and returns the sum.
func accumulate(texel []byte, col scene.Vec3) scene.Vec3 {
	sum := [3]float32{col.X, col.Y, col.Z}
	for c := range sum {
		sum[c] += math.Float32frombits(binary.LittleEndian.Uint32(texel[c*4:]))
		binary.LittleEndian.PutUint32(texel[c*4:], math.Float32bits(sum[c]))
	}
	binary.LittleEndian.PutUint32(texel[12:], math.Float32bits(1))
	return scene.Vec3{X: sum[0], Y: sum[1], Z: sum[2]}
}

// store writes col, gamma corrected, to texel i of an 8-bit target.
func store(out sim.Bound, i int, col scene.Vec3) {
	r, g, b := unorm(col.X), unorm(col.Y), unorm(col.Z)
	px := out.Data[i*4 : i*4+4]
	if out.Format == gputypes.TextureFormatBGRA8Unorm {
		r, b = b, r
	}
	px[0], px[1], px[2], px[3] = r, g, b, 255
}

func unorm(v float32) byte {
	v = math32.Sqrt(min(max(v, 0), 1))
	return byte(v*255 + 0.5)
}
