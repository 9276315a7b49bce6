package program

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
)

const copyKernel = `//@oxy:arg 0 u32 count
//@oxy:arg 1 in src
//@oxy:arg 2 out dst

@compute @workgroup_size(64)
fn copy_words(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x < count) {
        dst[id.x] = src[id.x];
    }
}
`

func TestNewProgram(t *testing.T) {
	s, err := shader.NewShaderFromSource("copy_words", shader.ShaderTypeCompute, copyKernel)
	if err != nil {
		t.Fatalf("NewShaderFromSource: %v", err)
	}

	called := false
	p := NewProgram("copy_words", ProgramTypeCompute,
		WithComputeShader(s),
		WithHostFunc(func(args []any, span Span) { called = true }),
	)

	if p.Name() != "copy_words" || p.Type() != ProgramTypeCompute {
		t.Fatalf("unexpected identity %q/%v", p.Name(), p.Type())
	}
	if p.NumArgs() != 3 {
		t.Errorf("NumArgs() = %d, want 3", p.NumArgs())
	}
	if p.Shader(shader.ShaderTypeCompute) != s {
		t.Error("compute shader not stored")
	}
	if p.Shader(shader.ShaderTypeVertex) != nil {
		t.Error("vertex shader should be nil")
	}

	p.Host()(nil, Span{})
	if !called {
		t.Error("host function not stored")
	}
	p.Release()
}

func TestRenderProgramHasNoArgs(t *testing.T) {
	p := NewProgram("blit", ProgramTypeRender)
	if p.NumArgs() != 0 {
		t.Errorf("NumArgs() = %d, want 0", p.NumArgs())
	}
	if p.Host() != nil {
		t.Error("render program should have no host function")
	}
}
