package filter

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// ErrNoInput is returned by Execute before the filter has been given a producer.
var ErrNoInput = errors.New("filter has no input")

// Filter is one pipeline stage. It owns an output volume in the arena and reads from a
// producer volume it does not own. All filters of one kind share the kind's kernel, so every
// Execute rebinds all argument slots.
type Filter struct {
	kind   Kind
	params Params

	ctx    compute.Context
	kernel kernel.Kernel
	arena  *volume.Arena

	output   volume.Handle
	producer volume.Handle

	// Captured by Input.
	in           Extents
	inBuf        kernel.Buffer
	ratio, delta float32
}

// New creates a filter of the given kind. The kind's program is registered with ctx on first
// use and an empty output volume is inserted into arena.
//
// Parameters:
//   - kind: the filter kind
//   - ctx: the compute context that runs the filter
//   - arena: the arena owning every pipeline volume
//   - options: FilterBuilderOption values, e.g. WithParams
//
// Returns:
//   - *Filter: the filter
//   - error: an error if the program cannot be built or compiled, or the params do not match kind
func New(kind Kind, ctx compute.Context, arena *volume.Arena, options ...FilterBuilderOption) (*Filter, error) {
	if ctx.Program(kind.String()) == nil {
		p, err := Program(kind)
		if err != nil {
			return nil, err
		}
		if err := ctx.RegisterPrograms(p); err != nil {
			return nil, err
		}
	}
	k, err := ctx.Kernel(kind.String())
	if err != nil {
		return nil, err
	}

	f := &Filter{
		kind:   kind,
		params: DefaultParams(kind),
		ctx:    ctx,
		kernel: k,
		arena:  arena,
	}
	for _, option := range options {
		option(f)
	}
	if f.params == nil || f.params.Kind() != kind {
		return nil, fmt.Errorf("params do not belong to a %v filter", kind)
	}
	clampParams(f.params)

	f.output = arena.Insert(&volume.Volume{})
	return f, nil
}

// Kind returns the filter kind.
func (f *Filter) Kind() Kind {
	return f.kind
}

// Output returns the handle of the owned output volume.
func (f *Filter) Output() volume.Handle {
	return f.output
}

// Params returns a copy of the current params.
func (f *Filter) Params() Params {
	return f.params.clone()
}

// SetParams replaces the params. Values are clamped to [0, 1].
//
// Parameters:
//   - p: params of the filter's kind
//
// Returns:
//   - error: an error if p belongs to another kind
func (f *Filter) SetParams(p Params) error {
	if p == nil || p.Kind() != f.kind {
		return fmt.Errorf("params do not belong to a %v filter", f.kind)
	}
	f.params = p.clone()
	clampParams(f.params)
	return nil
}

// SetParam sets one named control, clamped to [0, 1].
func (f *Filter) SetParam(name string, value float32) error {
	return setField(f.params, name, value)
}

// Options returns the filter's controls as a tree rooted at the kind name with one leaf per
// parameter. The leaves stay bound to the filter across SetParams.
func (f *Filter) Options() *OptionTree {
	root := NewOptionGroup(f.kind.String())
	for _, fld := range f.params.fields() {
		name := fld.name
		root.Children = append(root.Children, NewOption(name,
			func() float32 {
				for _, cur := range f.params.fields() {
					if cur.name == name {
						return *cur.ptr
					}
				}
				return 0
			},
			func(v float32) { _ = f.SetParam(name, v) },
		))
	}
	return root
}

// Input connects the filter to its producer. The producer's metadata is copied to the output,
// its extents and buffer are captured, and the output is resized by the kind's extent rule.
// A handle that no longer refers to a live volume is ignored.
//
// Parameters:
//   - producer: the handle of the upstream volume
//
// Returns:
//   - error: an allocation error, or an error if the producer has no device buffer
func (f *Filter) Input(producer volume.Handle) error {
	src, ok := f.arena.Get(producer)
	if !ok {
		return nil
	}
	out, err := f.arena.Lookup(f.output)
	if err != nil {
		return err
	}
	if src.Buffer == nil {
		return fmt.Errorf("%v input %s has no device buffer", f.kind, producer)
	}

	out.CopyMeta(src)
	f.producer = producer
	f.in = extentsOf(src)
	f.inBuf = src.Buffer
	f.ratio, f.delta = src.Ratio, src.Delta
	return f.resizeOutput(out)
}

// Execute binds the kernel arguments and dispatches the filter over the output extents, then
// marks the output modified. If the producer has since been destroyed, Execute does nothing.
//
// Returns:
//   - error: ErrNoInput before the first Input, or a binding or dispatch error
func (f *Filter) Execute() error {
	if f.producer.IsZero() {
		return ErrNoInput
	}
	src, ok := f.arena.Get(f.producer)
	if !ok {
		return nil
	}
	if src.Buffer != f.inBuf || extentsOf(src) != f.in {
		if err := f.Input(f.producer); err != nil {
			return err
		}
	}
	out, err := f.arena.Lookup(f.output)
	if err != nil {
		return err
	}
	if err := f.resizeOutput(out); err != nil {
		return err
	}

	for slot, v := range f.args(out) {
		if err := f.kernel.SetArg(slot, v); err != nil {
			return fmt.Errorf("%v slot %d: %w", f.kind, slot, err)
		}
	}
	f.kernel.SetGlobal(out.Depth, out.Length, out.Width)
	if err := f.ctx.Dispatch(f.kernel); err != nil {
		return fmt.Errorf("%v: %w", f.kind, err)
	}
	out.Modified = true
	return nil
}

// Release destroys the owned output volume. The filter must not be used afterwards.
func (f *Filter) Release() {
	f.arena.Destroy(f.output)
	f.inBuf = nil
}

func (f *Filter) resizeOutput(out *volume.Volume) error {
	e := outputExtents(f.params, f.in, f.ratio, f.delta)
	return out.Resize(f.ctx, e.Depth, e.Length, e.Width)
}

// args returns the kernel arguments in slot order.
func (f *Filter) args(out *volume.Volume) []any {
	head := []any{f.in.Depth, f.in.Length, f.in.Width, f.inBuf}
	switch p := f.params.(type) {
	case *ThresholdParams:
		return append(head, out.Buffer, thresholdCutoff(p.Cutoff))
	case *ClampParams:
		return append(head, out.Buffer, p.DepthLo, p.DepthHi, p.LengthLo, p.LengthHi, p.WidthLo, p.WidthHi)
	case *ContrastParams:
		return append(head, out.Buffer, p.Gain)
	case *Log2Params:
		return append(head, out.Buffer, p.Strength)
	case *SqrtParams:
		return append(head, out.Buffer, p.Strength)
	case *FadeParams:
		return append(head, out.Buffer, p.Amount)
	case *ShrinkParams:
		return append(head, out.Buffer, p.Smooth)
	case *SliceParams:
		axis, index := sliceArgs(p, f.in)
		return append(head, out.Buffer, axis, index)
	case *ToCartesianParams, *ToPolarParams:
		return append(head, out.Depth, out.Length, out.Width, out.Buffer, f.ratio, f.delta)
	default:
		return append(head, out.Buffer)
	}
}

func clampParams(p Params) {
	for _, fld := range p.fields() {
		*fld.ptr = min(max(*fld.ptr, 0), 1)
	}
}
