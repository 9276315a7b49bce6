package program

import "github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"

// ProgramBuilderOption is a functional option used to configure a Program during construction.
type ProgramBuilderOption func(*program)

// WithComputeShader sets the compute shader for this program.
//
// Parameters:
//   - s: the compute shader
//
// Returns:
//   - ProgramBuilderOption: a function that sets the compute shader
func WithComputeShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.computeShader = s
	}
}

// WithVertexShader sets the vertex shader for a render program.
//
// Parameters:
//   - s: the vertex shader
//
// Returns:
//   - ProgramBuilderOption: a function that sets the vertex shader
func WithVertexShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for a render program.
//
// Parameters:
//   - s: the fragment shader
//
// Returns:
//   - ProgramBuilderOption: a function that sets the fragment shader
func WithFragmentShader(s shader.Shader) ProgramBuilderOption {
	return func(p *program) {
		p.fragmentShader = s
	}
}

// WithHostFunc sets the CPU implementation executed by the host compute backend.
//
// Parameters:
//   - f: the host kernel function
//
// Returns:
//   - ProgramBuilderOption: a function that sets the host function
func WithHostFunc(f HostFunc) ProgramBuilderOption {
	return func(p *program) {
		p.hostFunc = f
	}
}
