// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"encoding/binary"
	"fmt"
)

// MaterialType selects the scattering model of a Material.
type MaterialType uint32

const (
	Diffuse MaterialType = iota
	Metal
	Dielectric
	HollowGlass
)

func (t MaterialType) String() string {
	switch t {
	case Diffuse:
		return "diffuse"
	case Metal:
		return "metal"
	case Dielectric:
		return "dielectric"
	case HollowGlass:
		return "hollow-glass"
	default:
		return fmt.Sprintf("MaterialType(%d)", uint32(t))
	}
}

// Sphere is one ray-traced sphere. Material indexes the material array.
type Sphere struct {
	Position Vec3
	Radius   float32
	Material uint32
}

// Material is a ray tracer material.
type Material struct {
	Albedo    Vec3
	Type      MaterialType
	Roughness float32
}

// World is the sphere scene of the ray tracer.
type World struct {
	Spheres   []Sphere
	Materials []Material
}

// Validate checks that every sphere references an existing material.
func (w *World) Validate() error {
	if len(w.Spheres) == 0 {
		return fmt.Errorf("scene: world has no spheres")
	}
	for i, s := range w.Spheres {
		if int(s.Material) >= len(w.Materials) {
			return fmt.Errorf("scene: sphere %d uses material %d of %d", i, s.Material, len(w.Materials))
		}
		if s.Radius <= 0 {
			return fmt.Errorf("scene: sphere %d has radius %v", i, s.Radius)
		}
	}
	return nil
}

// SphereData returns the encoded sphere array.
func (w *World) SphereData() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, w.Spheres)
	return out
}

// MaterialData returns the encoded material array.
func (w *World) MaterialData() []byte {
	out, _ := binary.Append(nil, binary.LittleEndian, w.Materials)
	return out
}

// DefaultWorld is a ground sphere with one sphere of each material.
func DefaultWorld() *World {
	return &World{
		Materials: []Material{
			{Albedo: Vec3{0.8, 0.8, 0.0}, Type: Diffuse},
			{Albedo: Vec3{0.1, 0.2, 0.5}, Type: Diffuse},
			{Albedo: Vec3{0.8, 0.6, 0.2}, Type: Metal, Roughness: 0.1},
			{Albedo: Vec3{1, 1, 1}, Type: Dielectric, Roughness: 1.5},
			{Albedo: Vec3{1, 1, 1}, Type: HollowGlass, Roughness: 1.5},
		},
		Spheres: []Sphere{
			{Position: Vec3{0, -100.5, -1}, Radius: 100, Material: 0},
			{Position: Vec3{0, 0, -1.2}, Radius: 0.5, Material: 1},
			{Position: Vec3{1, 0, -1}, Radius: 0.5, Material: 2},
			{Position: Vec3{-1, 0, -1}, Radius: 0.5, Material: 3},
			{Position: Vec3{-1, 0, -1}, Radius: 0.4, Material: 4},
		},
	}
}
