package kernel

import "github.com/cogentcore/webgpu/wgpu"

// KernelBuilderOption is a functional option used to configure a Kernel during construction.
type KernelBuilderOption func(*kernel)

// WithGlobal sets the initial global execution extent.
//
// Parameters:
//   - x, y, z: the extent along each dimension
//
// Returns:
//   - KernelBuilderOption: a function that sets the global extent
func WithGlobal(x, y, z uint32) KernelBuilderOption {
	return func(k *kernel) {
		k.global = [3]uint32{x, y, z}
	}
}

// WithUniform pre-populates the uniform buffer cached for a scalar slot.
//
// Parameters:
//   - slot: the positional argument index
//   - buf: the uniform buffer to associate with the slot
//
// Returns:
//   - KernelBuilderOption: a function that sets the uniform buffer for the slot
func WithUniform(slot int, buf *wgpu.Buffer) KernelBuilderOption {
	return func(k *kernel) {
		k.uniforms[slot] = buf
	}
}
