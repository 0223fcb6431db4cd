// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import "github.com/chewxy/math32"

// LookAt returns a right-handed view matrix.
func LookAt(eye, target, up Vec3) Mat4 {
	f := target.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)
	return Mat4{
		s.X, u.X, -f.X, 0,
		s.Y, u.Y, -f.Y, 0,
		s.Z, u.Z, -f.Z, 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// Perspective returns a right-handed projection with depth mapped to [0,1].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Camera is a perspective camera. The renderer turns it into PassConstants
// once per frame.
type Camera struct {
	Eye    Vec3
	Target Vec3
	Up     Vec3
	FovY   float32
	Near   float32
	Far    float32
}

// DefaultCamera looks at the origin from five units down the +Z axis.
func DefaultCamera() Camera {
	return Camera{
		Eye:  Vec3{0, 2, 5},
		Up:   Vec3{0, 1, 0},
		FovY: math32.Pi / 4,
		Near: 0.1,
		Far:  100,
	}
}

// Orbit returns c with the eye rotated by angle radians about the target's
// Y axis.
func (c Camera) Orbit(angle float32) Camera {
	off := RotateY(angle).Transform(c.Eye.Sub(c.Target))
	c.Eye = c.Target.Add(off)
	return c
}

// PassConstants fills the per-pass constants for a render target of
// width x height.
func (c Camera) PassConstants(width, height uint32, total, delta float32) PassConstants {
	w, h := float32(width), float32(height)
	aspect := float32(1)
	if h > 0 {
		aspect = w / h
	}
	view := LookAt(c.Eye, c.Target, c.Up)
	proj := Perspective(c.FovY, aspect, c.Near, c.Far)
	viewProj := proj.Mul(view)
	invView, _ := view.Inverse()
	invProj, _ := proj.Inverse()
	invViewProj, _ := viewProj.Inverse()

	pc := PassConstants{
		View:             view,
		InvView:          invView,
		Proj:             proj,
		InvProj:          invProj,
		ViewProj:         viewProj,
		InvViewProj:      invViewProj,
		EyePosW:          c.Eye,
		RenderTargetSize: Vec2{w, h},
		NearZ:            c.Near,
		FarZ:             c.Far,
		TotalTime:        total,
		DeltaTime:        delta,
	}
	if w > 0 && h > 0 {
		pc.InvRenderTargetSize = Vec2{1 / w, 1 / h}
	}
	return pc
}
