package engine

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/camera"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-sono/engine/present"
	"github.com/Carmen-Shannon/oxy-sono/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
	"github.com/Carmen-Shannon/oxy-sono/engine/window"
)

const (
	// paramStep is the change applied by one W or S press.
	paramStep = 0.05

	// paramFineStep is paramStep with shift held.
	paramFineStep = 0.01
)

// engine implements the Engine interface.
// Everything it owns is touched only from the control thread, the one running Run or Step.
type engine struct {
	ctx      compute.Context
	arena    *volume.Arena
	pipeline pipeline.Pipeline

	window        window.Window
	windowClosed  bool
	quitRequested bool

	camera   camera.Camera
	bridge   present.Bridge
	frame    present.SharedFrame
	recorder present.Recorder

	frameWidth, frameHeight uint32
	recordFrames            int
	recordDir               string
	recording               bool
	recorderScale           float64

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastFrame        time.Time

	paused   bool
	selected int
	input    inputState
}

// inputState tracks held modifiers and mouse drags between window events.
type inputState struct {
	shift        bool
	orbiting     bool
	panning      bool
	lastX, lastY int32
}

// paramRef names one editable control of one stage.
type paramRef struct {
	stage int
	kind  filter.Kind
	name  string
	value float32
}

// Engine is the controller of the viewer. Each step drains queued pipeline commands, runs the
// pipeline, points the renderer at the pipeline output and renders and presents one frame
// through the presentation bridge. Window input edits the pipeline and the camera.
type Engine interface {
	// Window returns the underlying window, nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Pipeline returns the filter pipeline the engine runs.
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	Pipeline() pipeline.Pipeline

	// Camera returns the camera whose inverse view is rendered.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Bridge returns the presentation bridge.
	//
	// Returns:
	//   - present.Bridge: the bridge
	Bridge() present.Bridge

	// Recorder returns the frame recorder attached to the bridge.
	//
	// Returns:
	//   - present.Recorder: the recorder
	Recorder() present.Recorder

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// SetRenderCallback registers a function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// Submit queues a pipeline command for the next step. Safe to call from any goroutine.
	//
	// Parameters:
	//   - cmd: the command
	Submit(cmd pipeline.Command)

	// Step runs one control iteration: drain commands, run the pipeline unless paused, render
	// and present. Nothing happens while the window is minimized.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous step
	//
	// Returns:
	//   - error: the joined command, stage and frame errors of this step
	Step(deltaTime float32) error

	// Run steps once per window message loop iteration until the window closes or Quit is
	// called. It must be called from the thread that created the window.
	Run()

	// Quit stops Run after the current iteration. Safe to call multiple times.
	Quit()

	// Close exports any captured frames, releases the pipeline and the shared frame, and
	// closes the window. The compute context stays open.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates an Engine over an existing context and pipeline. The shared frame takes
// the window's framebuffer size, or the size given by WithFrameSize when headless.
//
// Parameters:
//   - ctx: the compute context that runs, renders and presents
//   - pipe: the pipeline to run each step
//   - arena: the arena holding the pipeline's volumes
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the shared frame cannot be allocated
func NewEngine(ctx compute.Context, pipe pipeline.Pipeline, arena *volume.Arena, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		ctx:           ctx,
		arena:         arena,
		pipeline:      pipe,
		frameWidth:    512,
		frameHeight:   512,
		recordFrames:  60,
		recordDir:     "recordings",
		recorderScale: 1,
		profiler:      profiler.NewProfiler(time.Second),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.frameWidth = uint32(max(e.window.Width(), 1))
		e.frameHeight = uint32(max(e.window.Height(), 1))
	}
	if e.camera == nil {
		e.camera = camera.NewCamera(camera.WithController(camera.NewCameraController()))
	}
	if e.recorder == nil {
		e.recorder = present.NewRecorder(ctx, present.WithScale(e.recorderScale))
	}

	frame, err := present.NewSharedFrame(ctx, e.frameWidth, e.frameHeight)
	if err != nil {
		return nil, fmt.Errorf("shared frame: %w", err)
	}
	e.frame = frame
	e.bridge = present.NewBridge(ctx, frame, present.WithRecorder(e.recorder))

	if e.window != nil {
		e.bindWindow()
	}
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Pipeline() pipeline.Pipeline {
	return e.pipeline
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Bridge() present.Bridge {
	return e.bridge
}

func (e *engine) Recorder() present.Recorder {
	return e.recorder
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) Submit(cmd pipeline.Command) {
	e.pipeline.Submit(cmd)
}

func (e *engine) Step(deltaTime float32) error {
	if e.window != nil && e.window.Minimized() {
		return nil
	}

	var errs []error
	if err := e.pipeline.Drain(); err != nil {
		errs = append(errs, err)
	}
	if !e.paused {
		if _, err := e.pipeline.Run(); err != nil {
			errs = append(errs, err)
		}
	}

	e.bindOutput()
	e.camera.Update()
	if err := e.bridge.Frame(e.camera.InverseView()); err != nil {
		errs = append(errs, fmt.Errorf("frame %d: %w", e.bridge.FrameCount(), err))
	}
	if e.recording && e.recorder.Armed() == 0 {
		e.recording = false
		e.exportRecording()
	}

	if e.renderCallback != nil {
		e.renderCallback(deltaTime)
	}
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(e.ctx.DispatchCount())
	}
	return errors.Join(errs...)
}

func (e *engine) Run() {
	if e.window == nil {
		log.Printf("[Engine] Run needs a window; use Step when headless")
		return
	}
	e.lastFrame = time.Now()
	e.window.SetUpdateCallback(e.update)
	e.window.ProcessMessages()
}

// Quit stops the message loop at the next update.
func (e *engine) Quit() {
	e.quitRequested = true
}

func (e *engine) Close() {
	if e.recorder.Frames() > 0 {
		e.exportRecording()
	}
	e.pipeline.Release()
	e.frame.Release()
	if e.window != nil && !e.windowClosed {
		e.windowClosed = true
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] Close window: %v", err)
		}
	}
}

// update is the window loop callback: one step, then the optional frame limit.
func (e *engine) update() {
	if e.quitRequested {
		e.windowClosed = true
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] Close window: %v", err)
		}
		return
	}

	start := time.Now()
	dt := float32(start.Sub(e.lastFrame).Seconds())
	e.lastFrame = start

	if err := e.Step(dt); err != nil {
		log.Printf("[Engine] %v", err)
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// bindOutput points the renderer at the pipeline output, or clears it when there is none.
func (e *engine) bindOutput() {
	v, ok := e.arena.Get(e.pipeline.Output())
	if !ok || v.Buffer == nil {
		e.ctx.SetActiveVolume(nil, 0, 0, 0)
		return
	}
	e.ctx.SetActiveVolume(v.Buffer, v.Depth, v.Length, v.Width)
}

func (e *engine) exportRecording() {
	paths, err := e.recorder.Export(e.recordDir)
	if err != nil {
		log.Printf("[Engine] Recording export failed: %v", err)
	}
	if len(paths) > 0 {
		log.Printf("[Engine] Exported %d frames to %s", len(paths), e.recordDir)
	}
}

func (e *engine) bindWindow() {
	e.window.SetResizeCallback(func(width, height int) {
		if width <= 0 || height <= 0 {
			return
		}
		if err := e.bridge.Resize(uint32(width), uint32(height)); err != nil {
			log.Printf("[Engine] Resize to %dx%d: %v", width, height, err)
		}
	})
	e.window.SetKeyDownCallback(e.onKeyDown)
	e.window.SetKeyUpCallback(e.onKeyUp)
	e.window.SetMouseButtonCallback(e.onMouseButton)
	e.window.SetMouseMoveCallback(e.onMouseMove)
	e.window.SetScrollCallback(e.onScroll)
}

// paramRefs lists every editable control in chain order.
func (e *engine) paramRefs() []paramRef {
	var refs []paramRef
	for i, f := range e.pipeline.Stages() {
		for _, field := range filter.Fields(f.Params()) {
			refs = append(refs, paramRef{stage: i, kind: f.Kind(), name: field.Name, value: field.Value})
		}
	}
	return refs
}

// selectParam moves the selection by delta leaves, wrapping at either end.
func (e *engine) selectParam(delta int) {
	refs := e.paramRefs()
	if len(refs) == 0 {
		log.Printf("[Engine] No stage has parameters")
		return
	}
	e.selected = ((e.selected+delta)%len(refs) + len(refs)) % len(refs)
	r := refs[e.selected]
	log.Printf("[Engine] Selected %d:%s/%s = %.2f", r.stage, r.kind, r.name, r.value)
}

// nudgeParam changes the selected control by delta.
func (e *engine) nudgeParam(delta float32) {
	refs := e.paramRefs()
	if len(refs) == 0 {
		return
	}
	r := refs[e.selected%len(refs)]
	v := common.Clamp01(r.value + delta)
	if err := e.pipeline.Apply(pipeline.SetParam{Stage: r.stage, Name: r.name, Value: v}); err != nil {
		log.Printf("[Engine] Set %d:%s/%s: %v", r.stage, r.kind, r.name, err)
		return
	}
	log.Printf("[Engine] %d:%s/%s = %.2f", r.stage, r.kind, r.name, v)
}

func (e *engine) onKeyDown(keyCode uint32) {
	ctrl := e.camera.Controller()
	step := float32(paramStep)
	if e.input.shift {
		step = paramFineStep
	}

	switch keyCode {
	case common.KeyLeftShift, common.KeyRightShift:
		e.input.shift = true
	case common.KeyA:
		e.selectParam(-1)
	case common.KeyD:
		e.selectParam(1)
	case common.KeyW:
		e.nudgeParam(step)
	case common.KeyS:
		e.nudgeParam(-step)
	case common.KeyL:
		log.Printf("[Engine] Options:\n%s", e.pipeline.Options())
	case common.KeySpace:
		e.pipeline.Submit(pipeline.Invalidate{})
	case common.KeyP:
		e.paused = !e.paused
		log.Printf("[Engine] Pipeline paused: %v", e.paused)
	case common.KeyF:
		e.recorder.Arm(e.recordFrames)
		e.recording = true
		log.Printf("[Engine] Recording %d frames", e.recordFrames)
	case common.KeyC:
		if ctrl != nil {
			ctrl.Reset()
		}
	case common.KeyLeft:
		if ctrl != nil {
			ctrl.OrbitLeft()
		}
	case common.KeyRight:
		if ctrl != nil {
			ctrl.OrbitRight()
		}
	case common.KeyUp:
		if ctrl != nil {
			ctrl.OrbitUp()
		}
	case common.KeyDown:
		if ctrl != nil {
			ctrl.OrbitDown()
		}
	case common.KeyEsc:
		e.Quit()
	}
}

func (e *engine) onKeyUp(keyCode uint32) {
	if keyCode == common.KeyLeftShift || keyCode == common.KeyRightShift {
		e.input.shift = false
	}
}

func (e *engine) onMouseButton(button window.MouseButton, pressed bool, x, y int32) {
	switch button {
	case window.MouseButtonLeft:
		e.input.orbiting = pressed
	case window.MouseButtonRight:
		e.input.panning = pressed
	default:
		return
	}
	e.input.lastX, e.input.lastY = x, y
}

func (e *engine) onMouseMove(x, y int32) {
	dx := float32(x - e.input.lastX)
	dy := float32(y - e.input.lastY)
	e.input.lastX, e.input.lastY = x, y

	ctrl := e.camera.Controller()
	if ctrl == nil {
		return
	}
	if e.input.orbiting {
		ctrl.Drag(dx, dy)
	}
	if e.input.panning {
		ctrl.PanRight(-dx)
		ctrl.PanUp(dy)
	}
}

func (e *engine) onScroll(delta float32) {
	if ctrl := e.camera.Controller(); ctrl != nil {
		ctrl.Zoom(delta)
	}
}
