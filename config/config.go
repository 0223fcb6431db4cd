// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads renderer settings from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Mode selects the rendering technique.
type Mode string

const (
	// ModeRaster draws a mesh with the raster pipeline.
	ModeRaster Mode = "raster"
	// ModeRayTrace renders spheres with the compute ray tracer.
	ModeRayTrace Mode = "raytrace"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration that reads "250ms"-style strings from TOML
// and YAML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Color is a linear RGBA clear color.
type Color struct {
	R float64 `toml:"r" yaml:"r"`
	G float64 `toml:"g" yaml:"g"`
	B float64 `toml:"b" yaml:"b"`
	A float64 `toml:"a" yaml:"a"`
}

// Config holds every setting of a renderer and the demo CLI.
type Config struct {
	// Backend names the registered GPU backend; empty picks the best
	// available one.
	Backend string `toml:"backend" yaml:"backend"`
	Mode    Mode   `toml:"mode" yaml:"mode"`

	Width  uint32 `toml:"width" yaml:"width"`
	Height uint32 `toml:"height" yaml:"height"`

	// BufferCount is the number of swap chain back buffers (2 or 3).
	BufferCount int `toml:"buffer_count" yaml:"buffer_count"`
	// FrameResources is the size of the frame resource ring.
	FrameResources int `toml:"frame_resources" yaml:"frame_resources"`
	// FenceTimeout bounds every fence wait; negative waits forever.
	FenceTimeout Duration `toml:"fence_timeout" yaml:"fence_timeout"`

	MaxRayBounces uint32 `toml:"max_ray_bounces" yaml:"max_ray_bounces"`
	Accumulate    bool   `toml:"accumulate" yaml:"accumulate"`
	ClearColor    Color  `toml:"clear_color" yaml:"clear_color"`

	// Frames is the number of frames the CLI renders; zero runs until
	// interrupted.
	Frames int `toml:"frames" yaml:"frames"`
	// Output is the image file the CLI writes the last frame to.
	Output string `toml:"output" yaml:"output"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Mode:           ModeRaster,
		Width:          1280,
		Height:         720,
		BufferCount:    2,
		FrameResources: 3,
		FenceTimeout:   Duration(5 * time.Second),
		MaxRayBounces:  7,
		Accumulate:     true,
		ClearColor:     Color{R: 0.1, G: 0.1, B: 0.15, A: 1},
	}
}

// Validate checks c.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeRaster, ModeRayTrace:
	default:
		errs = append(errs, fmt.Errorf("%w: mode %q (want %q or %q)", ErrInvalid, c.Mode, ModeRaster, ModeRayTrace))
	}
	if c.Width == 0 || c.Height == 0 {
		errs = append(errs, fmt.Errorf("%w: size %dx%d", ErrInvalid, c.Width, c.Height))
	}
	if c.BufferCount < 2 || c.BufferCount > 3 {
		errs = append(errs, fmt.Errorf("%w: buffer_count %d (want 2 or 3)", ErrInvalid, c.BufferCount))
	}
	if c.FrameResources < 1 {
		errs = append(errs, fmt.Errorf("%w: frame_resources %d", ErrInvalid, c.FrameResources))
	}
	if c.Mode == ModeRayTrace && c.MaxRayBounces == 0 {
		errs = append(errs, fmt.Errorf("%w: max_ray_bounces must be positive", ErrInvalid))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("%w: frames %d", ErrInvalid, c.Frames))
	}
	return errors.Join(errs...)
}

// Load reads the file at path over the defaults. The format follows the
// extension: .toml, or .yaml/.yml.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		return c, fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path in the format selected by the extension.
func Save(path string, c Config) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		data, err = toml.Marshal(c)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
