package present

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
)

// bridge is the implementation of the Bridge interface.
type bridge struct {
	ctx      compute.Context
	frame    SharedFrame
	recorder Recorder
	frames   uint64
}

// Bridge drives one displayed frame: the frame is acquired for compute, the active volume is
// rendered into it, the frame is released and then presented.
type Bridge interface {
	// Frame renders and presents one frame. The frame is released even if rendering fails,
	// and nothing is presented in that case. An armed recorder captures the frame after
	// presentation.
	//
	// Parameters:
	//   - inverseTransform: the 3x4 inverse view transform, row major
	//
	// Returns:
	//   - error: a protocol, render or present error
	Frame(inverseTransform [12]float32) error

	// SharedFrame returns the frame the bridge renders into.
	//
	// Returns:
	//   - SharedFrame: the frame
	SharedFrame() SharedFrame

	// Resize resizes the frame and the presentation surface.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: a frame error
	Resize(width, height uint32) error

	// FrameCount returns the number of frames presented.
	//
	// Returns:
	//   - uint64: the frame count
	FrameCount() uint64
}

var _ Bridge = &bridge{}

// NewBridge creates a Bridge over an existing frame.
//
// Parameters:
//   - ctx: the compute context that renders and presents
//   - frame: the shared frame
//   - options: BridgeBuilderOption values, e.g. WithRecorder
//
// Returns:
//   - Bridge: the bridge
func NewBridge(ctx compute.Context, frame SharedFrame, options ...BridgeBuilderOption) Bridge {
	b := &bridge{ctx: ctx, frame: frame}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *bridge) Frame(inverseTransform [12]float32) error {
	if err := b.frame.AcquireCompute(); err != nil {
		return err
	}
	renderErr := b.ctx.Render(inverseTransform, b.frame)
	if err := b.frame.ReleaseCompute(); err != nil {
		return errors.Join(renderErr, err)
	}
	if renderErr != nil {
		return fmt.Errorf("render: %w", renderErr)
	}
	if err := b.ctx.Present(b.frame); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	b.frames++

	if b.recorder != nil && b.recorder.Armed() > 0 {
		if err := b.recorder.Capture(b.frame); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}
	return nil
}

func (b *bridge) SharedFrame() SharedFrame {
	return b.frame
}

func (b *bridge) Resize(width, height uint32) error {
	if err := b.frame.Resize(width, height); err != nil {
		return err
	}
	b.ctx.ConfigureSurface(int(width), int(height))
	return nil
}

func (b *bridge) FrameCount() uint64 {
	return b.frames
}
