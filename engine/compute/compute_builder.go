package compute

import (
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/cogentcore/webgpu/wgpu"
)

// ContextBuilderOption is a functional option applied to a Context during construction via NewContext.
type ContextBuilderOption func(*context)

// WithSurface attaches a window surface so the Context can present frames. Without it the
// WebGPU backend runs headless and Present is a no-op.
//
// Parameters:
//   - desc: the platform surface descriptor, usually from the window
//   - width, height: the initial surface size in pixels
//
// Returns:
//   - ContextBuilderOption: a function that applies the surface option to a context
func WithSurface(desc *wgpu.SurfaceDescriptor, width, height int) ContextBuilderOption {
	return func(c *context) {
		c.surfaceDescriptor = desc
		c.surfaceWidth = width
		c.surfaceHeight = height
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithForceSoftwareRenderer(force bool) ContextBuilderOption {
	return func(c *context) {
		c.forceFallbackAdapter = force
	}
}

// WithShaderValidation runs every compute shader through the naga front end before the
// device compiles it, so WGSL errors are reported with source positions.
//
// Parameters:
//   - validate: true to enable validation
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithShaderValidation(validate bool) ContextBuilderOption {
	return func(c *context) {
		c.validateShaders = validate
	}
}

// WithWorkers sets the worker count of the host backend. Ignored by the WebGPU backend.
//
// Parameters:
//   - n: the number of workers, values below 1 are treated as 1
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithWorkers(n int) ContextBuilderOption {
	return func(c *context) {
		c.workers = max(n, 1)
	}
}

// WithPresentMode sets the surface present mode.
//
// Parameters:
//   - mode: PresentModeVSync or PresentModeUncapped
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithPresentMode(mode PresentMode) ContextBuilderOption {
	return func(c *context) {
		c.presentMode = mode
	}
}

// WithPrograms registers programs during construction.
//
// Parameters:
//   - programs: the programs to register
//
// Returns:
//   - ContextBuilderOption: a function that applies the option to a context
func WithPrograms(programs ...program.Program) ContextBuilderOption {
	return func(c *context) {
		c.pendingPrograms = append(c.pendingPrograms, programs...)
	}
}
