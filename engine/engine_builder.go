package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-sono/engine/camera"
	"github.com/Carmen-Shannon/oxy-sono/engine/present"
	"github.com/Carmen-Shannon/oxy-sono/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithWindow attaches the window the engine presents to and takes input from.
// Without one the engine runs headless and is driven with Step.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithFrameSize sets the shared frame size used when no window is attached.
//
// Parameters:
//   - width, height: the frame size in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameSize(width, height uint32) EngineBuilderOption {
	return func(e *engine) {
		e.frameWidth = max(width, 1)
		e.frameHeight = max(height, 1)
	}
}

// WithCamera replaces the default orbit camera.
//
// Parameters:
//   - c: the camera, with a controller attached
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithRecording sets how many frames the F key captures, where they are exported and the
// export scale factor.
//
// Parameters:
//   - frames: frames captured per recording
//   - dir: the export directory
//   - scale: the export scale factor, 1 for full size
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRecording(frames int, dir string, scale float64) EngineBuilderOption {
	return func(e *engine) {
		e.recordFrames = max(frames, 1)
		e.recordDir = dir
		e.recorderScale = scale
	}
}

// WithRecorder replaces the default recorder. WithRecording's scale is ignored for it.
//
// Parameters:
//   - r: the recorder
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRecorder(r present.Recorder) EngineBuilderOption {
	return func(e *engine) {
		e.recorder = r
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
