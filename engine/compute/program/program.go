package program

import (
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ProgramType identifies whether a program is a compute kernel or the display blit.
type ProgramType int

const (
	// ProgramTypeCompute indicates a program with a single compute kernel entry point.
	ProgramTypeCompute ProgramType = iota

	// ProgramTypeRender indicates a program with vertex and fragment entry points, used to
	// blit the shared pixel buffer onto the window surface.
	ProgramTypeRender
)

// Span is a half-open 3D range of work items [Lo, Hi) handed to a HostFunc.
type Span struct {
	Lo, Hi [3]uint32
}

// HostFunc executes a compute kernel on the CPU for the work items inside span.
// args holds one resolved value per kernel slot: uint32, float32, [12]float32, or
// []uint32 for buffer slots. Concurrent calls receive disjoint spans.
type HostFunc func(args []any, span Span)

// program is the implementation of the Program interface.
type program struct {
	programType ProgramType
	name        string

	computeShader, vertexShader, fragmentShader shader.Shader
	hostFunc                                    HostFunc

	// GPU objects populated by the compute Context on registration.
	computePipeline *wgpu.ComputePipeline
	renderPipeline  *wgpu.RenderPipeline
	bindGroupLayout *wgpu.BindGroupLayout
}

// Program is one named, compile-once kernel program. It carries the WGSL shader(s) the GPU
// backend compiles, the HostFunc the CPU backend executes, and the compiled GPU objects once
// registered with a compute Context.
type Program interface {
	// Type returns the type of the program.
	//
	// Returns:
	//   - ProgramType: compute or render
	Type() ProgramType

	// Name returns the unique registry key of this program.
	//
	// Returns:
	//   - string: the program name
	Name() string

	// Shader retrieves the shader of the given stage, or nil if not set.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// Host returns the CPU implementation of the kernel, or nil if the program is GPU only.
	//
	// Returns:
	//   - HostFunc: the host kernel function
	Host() HostFunc

	// NumArgs returns the number of positional argument slots the compute kernel declares.
	//
	// Returns:
	//   - int: the argument count, 0 for render programs
	NumArgs() int

	// Pipeline returns the underlying pipeline object, either *wgpu.ComputePipeline or
	// *wgpu.RenderPipeline. The caller is responsible for the type assertion.
	//
	// Returns:
	//   - any: the compiled pipeline, or a typed nil before registration
	Pipeline() any

	// BindGroupLayout returns the group 0 layout created on registration.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout, or nil before registration
	BindGroupLayout() *wgpu.BindGroupLayout

	// SetComputePipeline stores the compiled compute pipeline.
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline
	SetComputePipeline(p *wgpu.ComputePipeline)

	// SetRenderPipeline stores the compiled render pipeline.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetBindGroupLayout stores the group 0 bind group layout.
	//
	// Parameters:
	//   - l: the WebGPU bind group layout
	SetBindGroupLayout(l *wgpu.BindGroupLayout)

	// Release releases the GPU objects held by this program.
	Release()
}

var _ Program = &program{}

// NewProgram creates a new Program with the given name and type.
//
// Parameters:
//   - name: the unique registry key
//   - programType: compute or render
//   - opts: options supplying shaders and the host function
//
// Returns:
//   - Program: the configured program
func NewProgram(name string, programType ProgramType, opts ...ProgramBuilderOption) Program {
	p := &program{
		name:        name,
		programType: programType,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *program) Type() ProgramType {
	return p.programType
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeCompute:
		return p.computeShader
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *program) Host() HostFunc {
	return p.hostFunc
}

func (p *program) NumArgs() int {
	if p.computeShader == nil {
		return 0
	}
	return len(p.computeShader.Args())
}

func (p *program) Pipeline() any {
	switch p.programType {
	case ProgramTypeRender:
		return p.renderPipeline
	default:
		return p.computePipeline
	}
}

func (p *program) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *program) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *program) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *program) SetBindGroupLayout(l *wgpu.BindGroupLayout) {
	p.bindGroupLayout = l
}

func (p *program) Release() {
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}
