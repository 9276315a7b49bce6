package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-sono/engine/config"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
	"github.com/Carmen-Shannon/oxy-sono/engine/window"
)

const defaultConfigPath = "oxy-sono.yaml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "run":
		err = runViewer(os.Args[2:])
	case "lint":
		err = runLint(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: oxy-sono <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run    [-config oxy-sono.yaml] [-backend wgpu|host] [-profile] [-write-config]")
	fmt.Fprintln(os.Stderr, "  lint")
	fmt.Fprintln(os.Stderr, "  export [-config oxy-sono.yaml] -out dir [-frames 36] [-size 256] [-scale 1]")
}

// runViewer opens the window and drives the engine until it closes.
func runViewer(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "YAML configuration file")
	backend := fs.String("backend", "", "override compute backend (wgpu or host)")
	profile := fs.Bool("profile", false, "log frame and dispatch statistics")
	writeConfig := fs.Bool("write-config", false, "write the effective configuration back to -config")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Compute.Backend = common.Coalesce(*backend, cfg.Compute.Backend)
	cfg.Profiling = cfg.Profiling || *profile
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			return err
		}
	}

	win := window.NewWindow(
		window.WithTitle(cfg.Display.Title),
		window.WithSize(cfg.Display.Width, cfg.Display.Height),
	)
	ctx, err := newContext(cfg, compute.WithSurface(win.SurfaceDescriptor(), win.Width(), win.Height()))
	if err != nil {
		win.Close()
		return err
	}
	defer ctx.Close()
	if cfg.Compute.Backend == "host" {
		log.Printf("[Engine] Host backend has no surface; the window stays blank")
	}

	arena := volume.NewArena()
	pipe, err := newPipeline(ctx, arena, cfg)
	if err != nil {
		win.Close()
		return err
	}
	eng, err := engine.NewEngine(ctx, pipe, arena,
		engine.WithWindow(win),
		engine.WithProfiling(cfg.Profiling),
		engine.WithRenderFrameLimit(cfg.Display.FrameLimit),
		engine.WithRecording(cfg.Recorder.Frames, cfg.Recorder.OutputDir, cfg.Recorder.Scale),
	)
	if err != nil {
		pipe.Release()
		win.Close()
		return err
	}
	defer eng.Close()

	// Scans can take a while to read; the window shows black until the load lands.
	go func() {
		v, err := loadVolume(cfg.Volume)
		if err != nil {
			log.Printf("[Engine] Load volume: %v", err)
			return
		}
		eng.Submit(pipeline.LoadVolume{Volume: v})
	}()

	eng.Run()
	return nil
}

// runLint validates every WGSL program offline and fails if any is rejected.
func runLint(args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	programs, err := filter.Programs()
	if err != nil {
		return err
	}
	builtin, err := compute.BuiltinPrograms()
	if err != nil {
		return err
	}
	programs = append(programs, builtin...)

	var failed []string
	for _, p := range programs {
		if err := lintProgram(p); err != nil {
			log.Printf("[Lint] %s: %v", p.Name(), err)
			failed = append(failed, p.Name())
			continue
		}
		log.Printf("[Lint] %s: ok", p.Name())
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d programs failed validation: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func lintProgram(p program.Program) error {
	var errs []error
	for _, t := range []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		if s := p.Shader(t); s != nil {
			if err := s.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// runExport renders a turntable of the pipeline output on the host backend and writes it as
// a TIFF sequence.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "YAML configuration file")
	out := fs.String("out", "", "output directory")
	frames := fs.Int("frames", 36, "frames in one full turn")
	size := fs.Uint("size", 256, "frame width and height in pixels")
	scale := fs.Float64("scale", 1, "export scale factor")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || *frames <= 0 || *size == 0 || *scale <= 0 {
		return errors.New("missing required arguments")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Compute.Backend = "host"

	ctx, err := newContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()

	arena := volume.NewArena()
	pipe, err := newPipeline(ctx, arena, cfg)
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(ctx, pipe, arena,
		engine.WithFrameSize(uint32(*size), uint32(*size)),
		engine.WithRecording(*frames, *out, *scale),
	)
	if err != nil {
		pipe.Release()
		return err
	}
	defer eng.Close()

	v, err := loadVolume(cfg.Volume)
	if err != nil {
		return err
	}
	eng.Submit(pipeline.LoadVolume{Volume: v})

	ctrl := eng.Camera().Controller()
	eng.Recorder().Arm(*frames)
	for i := range *frames {
		ctrl.SetAzimuth(float32(2 * math.Pi * float64(i) / float64(*frames)))
		if err := eng.Step(0); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	paths, err := eng.Recorder().Export(*out)
	if err != nil {
		return err
	}
	log.Printf("[Engine] Exported %d frames to %s", len(paths), *out)
	return nil
}
