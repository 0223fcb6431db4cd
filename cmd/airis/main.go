// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command airis renders frames headlessly and writes the last one to an
// image file.
//
// Usage:
//
//	airis [flags]
//
// Settings are read from -config (TOML or YAML) and then overridden by the
// flags given on the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/airis"
	"github.com/gogpu/airis/backend"
	"github.com/gogpu/airis/backend/sim"
	_ "github.com/gogpu/airis/backend/wgpu"
	"github.com/gogpu/airis/config"
	"github.com/gogpu/airis/device"
	"github.com/gogpu/airis/internal/snapshot"
	"github.com/gogpu/airis/renderer"
	"github.com/gogpu/airis/scene"
	"github.com/gogpu/airis/shader"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "airis:", err)
		os.Exit(1)
	}
}

type flags struct {
	config   string
	list     bool
	verbose  bool
	compile  bool
	orbit    float64
	interval time.Duration

	backend string
	mode    string
	width   uint
	height  uint
	frames  int
	output  string
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("airis", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "TOML or YAML settings file")
	fs.BoolVar(&f.list, "list", false, "list the registered backends and exit")
	fs.BoolVar(&f.verbose, "v", false, "log at debug level")
	fs.BoolVar(&f.compile, "compile", false, "compile shaders to SPIR-V with naga")
	fs.Float64Var(&f.orbit, "orbit", 0, "camera orbit speed in radians per second")
	fs.DurationVar(&f.interval, "dt", 16*time.Millisecond, "simulated frame time")

	fs.StringVar(&f.backend, "backend", "", "GPU backend (default: best available)")
	fs.StringVar(&f.mode, "mode", "", "rendering mode: raster or raytrace")
	fs.UintVar(&f.width, "width", 0, "render width")
	fs.UintVar(&f.height, "height", 0, "render height")
	fs.IntVar(&f.frames, "frames", 0, "frames to render (0: until interrupted)")
	fs.StringVar(&f.output, "out", "", "write the last frame to this .png, .jpg, .bmp or .tiff file")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// settings merges the config file and the flags set on the command line.
func (f *flags) settings(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			cfg.Backend = f.backend
		case "mode":
			cfg.Mode = config.Mode(f.mode)
		case "width":
			cfg.Width = uint32(f.width)
		case "height":
			cfg.Height = uint32(f.height)
		case "frames":
			cfg.Frames = f.frames
		case "out":
			cfg.Output = f.output
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	airis.SetLogger(log)
	defer airis.SetLogger(nil)

	world := scene.DefaultWorld()
	tr := newTracer(world)
	backend.Register(backend.BackendSim, func(o backend.Options) (device.Device, error) {
		return sim.New(sim.WithLogger(o.Logger), sim.WithKernel(shader.RayTraceName, tr.kernel)), nil
	})

	if f.list {
		for _, name := range backend.Available() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	cfg, err := f.settings(fs)
	if err != nil {
		return err
	}

	open := func() (device.Device, error) {
		opts := backend.Options{Logger: log}
		if cfg.Backend == "" {
			return backend.Default(opts)
		}
		return backend.Open(cfg.Backend, opts)
	}
	dev, err := open()
	if err != nil {
		return err
	}
	log.Info("airis: device opened", "backend", dev.Info().Backend, "adapter", dev.Info().Name)

	cam := scene.DefaultCamera()
	speed := float32(f.orbit)
	opts := []renderer.Option{
		renderer.WithLogger(log),
		renderer.WithWorld(world),
		renderer.WithDeviceFactory(open),
		renderer.WithPassSource(func(w, h uint32, total, dt float32) scene.PassConstants {
			return cam.Orbit(total*speed).PassConstants(w, h, total, dt)
		}),
	}
	if f.compile {
		opts = append(opts, renderer.WithCompiledShaders())
	}
	r, err := renderer.New(dev, cfg, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	start := time.Now()
	if err := loop(ctx, r, cfg.Frames, f.interval, log); err != nil {
		return err
	}
	report(stdout, r, time.Since(start))

	if cfg.Output == "" {
		return nil
	}
	img, err := r.Snapshot()
	if err != nil {
		return err
	}
	if err := snapshot.Save(cfg.Output, img); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", cfg.Output)
	return nil
}

// loop renders frames until frames is reached, ctx is done or rendering
// fails. A lost device is recovered once per loss.
func loop(ctx context.Context, r *renderer.Renderer, frames int, dt time.Duration, log *slog.Logger) error {
	for i := 0; frames == 0 || i < frames; i++ {
		if ctx.Err() != nil {
			log.Info("airis: interrupted", "frame", i)
			return nil
		}
		err := r.RenderFrame(dt)
		if errors.Is(err, device.ErrDeviceLost) {
			log.Warn("airis: device lost, recovering", "frame", i, "err", err)
			err = r.Recover()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func report(w io.Writer, r *renderer.Renderer, elapsed time.Duration) {
	p := message.NewPrinter(language.English)
	s := r.Stats()
	width, height := r.Size()
	fps := 0.0
	if elapsed > 0 {
		fps = float64(s.Frames) / elapsed.Seconds()
	}
	p.Fprintf(w, "%s %dx%d on %s: %d frames in %v (%.1f fps)\n",
		r.Mode(), width, height, r.Device().Info().Name, s.Frames, elapsed.Round(time.Millisecond), fps)
	p.Fprintf(w, "fence waits %d (%d blocking), ring waits %d, skipped %d, recoveries %d\n",
		s.Fence.Waits, s.Fence.BlockingWaits, s.RingWaits, s.Skipped, s.Recoveries)
}
