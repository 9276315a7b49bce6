package compute

import (
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
)

// BackendType identifies the executor behind a Context.
type BackendType int

const (
	// BackendTypeWGPU runs kernels on a WebGPU device.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHost runs each program's HostFunc on the CPU, split across a worker pool.
	// It has no surface and Present is a no-op.
	BackendTypeHost
)

// PresentMode controls how presented frames are delivered to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately and may tear.
	PresentModeUncapped
)

// computeBackend is the executor contract shared by the WebGPU and host backends. Every
// method is called from the Context with its mutex held, so implementations see a single
// caller and submission order equals execution order.
type computeBackend interface {
	DeviceInfo() DeviceInfo

	// RegisterProgram compiles a program and stores the compiled objects on it.
	RegisterProgram(p program.Program) error

	// Allocate creates a zero-initialised buffer of size bytes usable as a kernel argument,
	// a copy source and a copy destination.
	Allocate(label string, size uint64) (kernel.Buffer, error)

	// Write queues a host to device copy.
	Write(buf kernel.Buffer, offset uint64, data []byte) error

	// Dispatch executes p over k's global extent with k's arguments. Arguments have already
	// been validated against the program's declared kinds.
	Dispatch(p program.Program, k kernel.Kernel) error

	// Read blocks until all queued work is complete and returns a copy of the buffer range.
	Read(buf kernel.Buffer, offset, size uint64) ([]byte, error)

	// Finish blocks until all queued work is complete.
	Finish() error

	ConfigureSurface(width, height int)

	// Present blits a packed RGBA pixel buffer to the surface.
	Present(pixels kernel.Buffer, width, height uint32) error

	Close()
}
