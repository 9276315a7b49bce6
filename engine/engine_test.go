package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
	"github.com/Carmen-Shannon/oxy-sono/engine/window"
)

func newTestEngine(t *testing.T, options ...EngineBuilderOption) (*engine, compute.Context) {
	t.Helper()
	ctx, err := compute.NewContext(compute.BackendTypeHost, compute.WithWorkers(2))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(ctx.Close)

	arena := volume.NewArena()
	pipe, err := pipeline.NewPipeline(ctx, arena, pipeline.WithStage(filter.KindThreshold, nil))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	e, err := NewEngine(ctx, pipe, arena, append([]EngineBuilderOption{WithFrameSize(16, 16)}, options...)...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)

	e.Submit(pipeline.LoadVolume{Volume: volume.Phantom(16, 16, 8, 0, 0)})
	return e.(*engine), ctx
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func cutoff(t *testing.T, e *engine) float32 {
	t.Helper()
	p, ok := e.pipeline.Stages()[0].Params().(*filter.ThresholdParams)
	if !ok {
		t.Fatalf("stage 0 params are %T", e.pipeline.Stages()[0].Params())
	}
	return p.Cutoff
}

func TestStepRunsPipelineAndPresents(t *testing.T) {
	e, ctx := newTestEngine(t)

	before := ctx.DispatchCount()
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Threshold plus the render.
	if got := ctx.DispatchCount() - before; got != 2 {
		t.Errorf("first step dispatched %d kernels, want 2", got)
	}
	if e.bridge.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", e.bridge.FrameCount())
	}
	out, ok := e.arena.Get(e.pipeline.Output())
	if !ok || out.Buffer == nil {
		t.Fatal("pipeline output was not produced")
	}

	before = ctx.DispatchCount()
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.DispatchCount() - before; got != 1 {
		t.Errorf("idle step dispatched %d kernels, want only the render", got)
	}
}

func TestKeyboardEditsSelectedParameter(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}

	e.onKeyDown(common.KeyW)
	if got := cutoff(t, e); !near(got, 0.55) {
		t.Errorf("after W cutoff = %v, want 0.55", got)
	}

	e.onKeyDown(common.KeyLeftShift)
	e.onKeyDown(common.KeyS)
	e.onKeyUp(common.KeyLeftShift)
	if got := cutoff(t, e); !near(got, 0.54) {
		t.Errorf("after shift+S cutoff = %v, want 0.54", got)
	}

	e.Submit(pipeline.AddStage{Kind: filter.KindContrast})
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	e.onKeyDown(common.KeyD)
	e.onKeyDown(common.KeyS)
	p := e.pipeline.Stages()[1].Params().(*filter.ContrastParams)
	if !near(p.Gain, 0.45) {
		t.Errorf("after D, S gain = %v, want 0.45", p.Gain)
	}

	// Wraps back to the threshold cutoff.
	e.onKeyDown(common.KeyD)
	e.onKeyDown(common.KeyW)
	if got := cutoff(t, e); !near(got, 0.59) {
		t.Errorf("after wrap cutoff = %v, want 0.59", got)
	}
}

func TestParameterClampsAtBounds(t *testing.T) {
	e, _ := newTestEngine(t)
	for range 30 {
		e.onKeyDown(common.KeyW)
	}
	if got := cutoff(t, e); got != 1 {
		t.Errorf("cutoff = %v, want 1", got)
	}
}

func TestPauseHoldsPipeline(t *testing.T) {
	e, ctx := newTestEngine(t)
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}

	e.onKeyDown(common.KeyP)
	e.onKeyDown(common.KeyW)
	before := ctx.DispatchCount()
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.DispatchCount() - before; got != 1 {
		t.Errorf("paused step dispatched %d kernels, want 1", got)
	}

	e.onKeyDown(common.KeyP)
	before = ctx.DispatchCount()
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.DispatchCount() - before; got != 2 {
		t.Errorf("resumed step dispatched %d kernels, want 2", got)
	}
}

func TestMouseDragAndReset(t *testing.T) {
	e, _ := newTestEngine(t)
	ctrl := e.camera.Controller()
	az, el := ctrl.Azimuth(), ctrl.Elevation()

	e.onMouseButton(window.MouseButtonLeft, true, 100, 100)
	e.onMouseMove(120, 110)
	e.onMouseButton(window.MouseButtonLeft, false, 120, 110)
	if ctrl.Azimuth() == az || ctrl.Elevation() == el {
		t.Fatal("left drag did not orbit")
	}

	moved := ctrl.Azimuth()
	e.onMouseMove(300, 300)
	if ctrl.Azimuth() != moved {
		t.Error("moving without a button held changed the camera")
	}

	r := ctrl.Radius()
	e.onScroll(1)
	if ctrl.Radius() >= r {
		t.Errorf("scrolling up should zoom in: radius %v -> %v", r, ctrl.Radius())
	}

	e.onKeyDown(common.KeyC)
	if ctrl.Azimuth() != az || ctrl.Elevation() != el || ctrl.Radius() != r {
		t.Error("C did not reset the camera")
	}
}

func TestRecordingExportsFrames(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, WithRecording(2, dir, 1))

	e.onKeyDown(common.KeyF)
	for range 3 {
		if err := e.Step(0); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	for _, name := range []string{"frame_0000.tif", "frame_0001.tif"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_0002.tif")); err == nil {
		t.Error("recorded more frames than armed")
	}
	if e.recorder.Frames() != 0 || e.recording {
		t.Error("recorder should be empty after export")
	}
}

func TestSpaceRerunsEveryStage(t *testing.T) {
	e, ctx := newTestEngine(t)
	e.Submit(pipeline.AddStage{Kind: filter.KindInvert})
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}

	e.onKeyDown(common.KeySpace)
	before := ctx.DispatchCount()
	if err := e.Step(0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := ctx.DispatchCount() - before; got != 3 {
		t.Errorf("invalidated step dispatched %d kernels, want both stages plus the render", got)
	}
}
