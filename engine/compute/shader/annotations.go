// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL kernel pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive helper injection and positional kernel argument declaration.
// The parsed results are stored as Annotation values and consumed by the PreProcessor
// and the compute Context to bind kernel argument slots without manual plumbing.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered helper snippet
	// into the shader at the annotation site. This annotation does not produce a
	// declaration and is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include voxel
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeArg generates a WGSL @group(0)/@binding(slot) variable declaration
	// for one positional kernel argument and appends an Annotation to the PreProcessor's
	// declarations list. The slot index doubles as the binding index, so the argument
	// order of a kernel is fixed by its source.
	//
	// Syntax: //@oxy:arg <slot> <kind> <var_name>
	//
	// Example: //@oxy:arg 3 in src
	AnnotationTypeArg AnnotationType = "arg"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include or arg).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = snippet key (e.g. "voxel")
	//   - arg:     [0] = argument kind, [1] = var name
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Slot is the positional argument index for arg annotations. Nil for include annotations.
	Slot *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Snippet arguments ──────────────────────────────────────────────────────────
// These identify registered WGSL helper snippets injected by @oxy:include.

const (
	// AnnotationArgVoxel identifies the packed RGBA8 voxel helpers and linear indexing.
	// Source: engine/compute/shader/assets/voxel.wgsl
	AnnotationArgVoxel AnnotationArg = "voxel"

	// AnnotationArgRay identifies the ray/box intersection helpers used by the render kernel.
	// Source: engine/compute/shader/assets/ray.wgsl
	AnnotationArgRay AnnotationArg = "ray"

	// AnnotationArgPolar identifies the scan geometry helpers shared by the polar and
	// cartesian conversion kernels.
	// Source: engine/compute/shader/assets/polar.wgsl
	AnnotationArgPolar AnnotationArg = "polar"
)

// ── Argument kinds ─────────────────────────────────────────────────────────────
// These specify how a positional kernel argument is declared and bound.

const (
	// AnnotationArgIn is a read-only voxel buffer: var<storage, read> array<u32>.
	AnnotationArgIn AnnotationArg = "in"

	// AnnotationArgOut is a writable voxel buffer: var<storage, read_write> array<u32>.
	AnnotationArgOut AnnotationArg = "out"

	// AnnotationArgU32 is an unsigned scalar passed through a uniform buffer.
	AnnotationArgU32 AnnotationArg = "u32"

	// AnnotationArgF32 is a float scalar passed through a uniform buffer.
	AnnotationArgF32 AnnotationArg = "f32"

	// AnnotationArgTransform is a 3x4 row-major matrix passed as array<vec4<f32>, 3>.
	AnnotationArgTransform AnnotationArg = "transform"
)

// validSnippets lists all AnnotationArg values that are accepted by @oxy:include.
var validSnippets = []AnnotationArg{
	AnnotationArgVoxel,
	AnnotationArgRay,
	AnnotationArgPolar,
}

// validArgKinds lists all AnnotationArg values that are accepted as argument kinds.
var validArgKinds = []AnnotationArg{
	AnnotationArgIn,
	AnnotationArgOut,
	AnnotationArgU32,
	AnnotationArgF32,
	AnnotationArgTransform,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validSnippets, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown snippet %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeArg):
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy arg annotation requires exactly three arguments (slot, kind, name)", lineNum)
		}
		slot, err := strconv.Atoi(args[1])
		if err != nil || slot < 0 {
			return nil, fmt.Errorf("line %d: invalid slot %q in @oxy arg annotation", lineNum, args[1])
		}
		if !slices.Contains(validArgKinds, AnnotationArg(args[2])) {
			return nil, fmt.Errorf("line %d: unknown argument kind %q in @oxy arg annotation", lineNum, args[2])
		}
		return &Annotation{
			Type: AnnotationTypeArg,
			Args: []AnnotationArg{AnnotationArg(args[2]), AnnotationArg(args[3])},
			Line: lineNum,
			Slot: &slot,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
