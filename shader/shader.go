// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader holds the WGSL sources of the renderer pipelines and
// compiles them to SPIR-V with naga.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/airis/cache"
	"github.com/gogpu/airis/device"
)

// Shader names. Backends without a shader compiler key CPU kernels on them.
const (
	RasterName   = "raster"
	RayTraceName = "raytrace"
)

// Entry points.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
	ComputeEntry  = "cs_main"
)

// RayTraceWorkgroupWidth is the x size of the ray tracer's workgroups.
const RayTraceWorkgroupWidth = 256

//go:embed shaders/raster.wgsl
var rasterWGSL string

//go:embed shaders/raytrace.wgsl
var rayTraceWGSL string

// ErrUnsupportedFormat is returned for storage formats the ray tracer
// cannot write.
var ErrUnsupportedFormat = errors.New("shader: unsupported storage format")

type compileKey struct {
	name string
	wgsl string
}

// compiled memoizes naga output. Renderers rebuild their pipelines after
// every device recovery.
var compiled = cache.NewSharded[compileKey, []uint32](0)

// Compile compiles WGSL to SPIR-V and returns a source carrying both.
// Results are cached; the returned SPIR-V must not be modified.
func Compile(name, wgsl string) (device.ShaderSource, error) {
	spirv, err := compiled.GetOrCreate(compileKey{name, wgsl}, func() ([]uint32, error) {
		b, err := naga.Compile(wgsl)
		if err != nil {
			return nil, err
		}
		return words(b), nil
	})
	if err != nil {
		return device.ShaderSource{}, fmt.Errorf("shader: compile %s: %w", name, err)
	}
	return device.ShaderSource{Name: name, WGSL: wgsl, SPIRV: spirv}, nil
}

// CacheStats reports the compilation cache counters.
func CacheStats() cache.Stats { return compiled.Stats() }

// words converts little-endian SPIR-V bytes to 32-bit words.
func words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return out
}

// RasterWGSL returns the raster pipeline source.
func RasterWGSL() string { return rasterWGSL }

// RayTraceWGSL returns the ray tracer source writing to a storage texture
// of the given format.
func RayTraceWGSL(format gputypes.TextureFormat) (string, error) {
	var name string
	switch format {
	case gputypes.TextureFormatBGRA8Unorm:
		name = "bgra8unorm"
	case gputypes.TextureFormatRGBA8Unorm:
		name = "rgba8unorm"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return strings.ReplaceAll(rayTraceWGSL, "{{FORMAT}}", name), nil
}

// Raster returns the raster pipeline source. When compile is false the
// source carries WGSL only, for backends that do not consume SPIR-V.
func Raster(compile bool) (device.ShaderSource, error) {
	if !compile {
		return device.ShaderSource{Name: RasterName, WGSL: rasterWGSL}, nil
	}
	return Compile(RasterName, rasterWGSL)
}

// RayTrace returns the ray tracer source for the given output format.
func RayTrace(format gputypes.TextureFormat, compile bool) (device.ShaderSource, error) {
	src, err := RayTraceWGSL(format)
	if err != nil {
		return device.ShaderSource{}, err
	}
	if !compile {
		return device.ShaderSource{Name: RayTraceName, WGSL: src}, nil
	}
	return Compile(RayTraceName, src)
}
