// pre_processor.go implements the Oxy WGSL kernel pre-processor. It scans kernel
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected helper source, and collects the positional argument declarations the
// compute Context uses to bind kernel argument slots.
//
// The pre-processor maintains two registries:
//   - snippetRegistry: maps AnnotationArg keys to embedded WGSL helper sources.
//   - argRegistry: maps argument kinds to the WGSL var<> syntax and type they declare.
package shader

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed assets/voxel.wgsl
var voxelSource string

//go:embed assets/ray.wgsl
var raySource string

//go:embed assets/polar.wgsl
var polarSource string

// argDecl pairs the address space syntax of a generated declaration with its WGSL type.
type argDecl struct {
	addressSpace string
	wgslType     string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// snippetRegistry maps snippet argument keys to their embedded WGSL source.
	snippetRegistry map[AnnotationArg]string

	// argRegistry maps argument kinds to their generated declaration shape.
	argRegistry map[AnnotationArg]argDecl

	// declarations accumulates annotations of type AnnotationTypeArg during a Process call.
	// Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL kernel source code containing @oxy: annotations,
// replacing them with generated declarations or injected helper sources while collecting
// the argument declarations for downstream slot binding.
type PreProcessor interface {
	// Process takes raw WGSL kernel source code and pre-processes it by replacing
	// @oxy: annotations with their corresponding WGSL output. @oxy:include annotations
	// are replaced with embedded helper source text. @oxy:arg annotations are replaced
	// with generated @group(0)/@binding(slot) variable declarations.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the raw WGSL kernel source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL source code with annotations replaced
	//   - error: an error if any annotation is malformed or a slot is declared twice
	Process(source string) (string, error)

	// Declarations returns the AnnotationTypeArg annotations collected during the most
	// recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with all registered helper snippets and
// argument kinds pre-populated.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippetRegistry: map[AnnotationArg]string{
			AnnotationArgVoxel: voxelSource,
			AnnotationArgRay:   raySource,
			AnnotationArgPolar: polarSource,
		},
		argRegistry: map[AnnotationArg]argDecl{
			AnnotationArgIn:        {addressSpace: "var<storage, read>", wgslType: "array<u32>"},
			AnnotationArgOut:       {addressSpace: "var<storage, read_write>", wgslType: "array<u32>"},
			AnnotationArgU32:       {addressSpace: "var<uniform>", wgslType: "u32"},
			AnnotationArgF32:       {addressSpace: "var<uniform>", wgslType: "f32"},
			AnnotationArgTransform: {addressSpace: "var<uniform>", wgslType: "array<vec4<f32>, 3>"},
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	seen := make(map[int]int)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			src, ok := p.snippetRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, src)
		case AnnotationTypeArg:
			if prev, dup := seen[*a.Slot]; dup {
				return "", fmt.Errorf("line %d: slot %d already declared on line %d", i+1, *a.Slot, prev)
			}
			seen[*a.Slot] = i + 1
			decl := p.argRegistry[a.Args[0]]
			out = append(out, fmt.Sprintf("@group(0) @binding(%d) %s %s: %s;", *a.Slot, decl.addressSpace, a.Args[1], decl.wgslType))
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}

	for slot := range len(p.declarations) {
		if _, ok := seen[slot]; !ok {
			return "", fmt.Errorf("argument slots must be contiguous from 0: slot %d is missing", slot)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
