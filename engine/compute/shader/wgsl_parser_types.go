package shader

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
// Used to compute MinBindingSize for buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// Arg describes one positional kernel argument declared through an @oxy:arg annotation.
// The slot is also the @binding index inside @group(0).
type Arg struct {
	Slot    int
	Kind    AnnotationArg
	Name    string
	MinSize uint64
}
