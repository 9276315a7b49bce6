package kernel

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrArgNotSet is returned when a slot below NumArgs has no value at dispatch time.
	ErrArgNotSet = errors.New("kernel argument not set")

	// ErrArgType is returned when SetArg receives a value of an unsupported type or a slot
	// outside the kernel's argument range.
	ErrArgType = errors.New("unsupported kernel argument")
)

// Buffer is a device memory allocation handed out by a compute Context. The concrete type
// depends on the backend that allocated it.
type Buffer interface {
	// Label returns the debug label given at allocation.
	Label() string

	// Size returns the allocation size in bytes.
	Size() uint64

	// Release frees the allocation. Releasing twice is a no-op.
	Release()
}

// ArgKind identifies the value type held by an Arg.
type ArgKind int

const (
	ArgKindUnset ArgKind = iota
	ArgKindU32
	ArgKindF32
	ArgKindTransform
	ArgKindBuffer
)

// Arg is one type-erased positional kernel argument.
type Arg struct {
	Kind      ArgKind
	U32       uint32
	F32       float32
	Transform [12]float32
	Buffer    Buffer
}

// Bytes returns the 16-byte uniform payload of a scalar argument, or the 48-byte payload
// of a transform. Buffer arguments return nil.
func (a Arg) Bytes() []byte {
	switch a.Kind {
	case ArgKindU32:
		out := make([]byte, 16)
		putU32(out, a.U32)
		return out
	case ArgKindF32:
		out := make([]byte, 16)
		putF32(out, a.F32)
		return out
	case ArgKindTransform:
		out := make([]byte, 48)
		for i, v := range a.Transform {
			putF32(out[i*4:], v)
		}
		return out
	default:
		return nil
	}
}

// kernel is the implementation of the Kernel interface.
type kernel struct {
	name   string
	args   []Arg
	global [3]uint32

	// uniforms holds the backend-allocated uniform buffers for scalar slots, keyed by slot.
	// They persist across dispatches and are released with the kernel.
	uniforms map[int]*wgpu.Buffer
}

// Kernel binds a compiled program entry point to an ordered, mutable argument list and a 3D
// global extent. Arguments persist between dispatches until overwritten, so a caller must
// rebind every slot it relies on before each dispatch.
type Kernel interface {
	// Name returns the name of the program this kernel dispatches.
	//
	// Returns:
	//   - string: the program name
	Name() string

	// SetArg binds a value to a positional slot. Accepted types are uint32, uint8, int,
	// float32, float64, [12]float32, []float32 of length 12, and Buffer.
	//
	// Parameters:
	//   - slot: the positional argument index
	//   - v: the value to bind
	//
	// Returns:
	//   - error: ErrArgType for an unsupported type or out-of-range slot
	SetArg(slot int, v any) error

	// Arg returns the argument bound at slot.
	//
	// Parameters:
	//   - slot: the positional argument index
	//
	// Returns:
	//   - Arg: the bound argument
	//   - bool: false if the slot is out of range or unset
	Arg(slot int) (Arg, bool)

	// Args returns all argument slots in order.
	//
	// Returns:
	//   - []Arg: the argument list
	Args() []Arg

	// NumArgs returns the number of positional slots.
	//
	// Returns:
	//   - int: the slot count
	NumArgs() int

	// SetGlobal sets the global execution extent, one work item per element.
	//
	// Parameters:
	//   - x, y, z: the extent along each dimension
	SetGlobal(x, y, z uint32)

	// Global returns the global execution extent.
	//
	// Returns:
	//   - [3]uint32: the extent as [x, y, z]
	Global() [3]uint32

	// Validate reports the first unset slot.
	//
	// Returns:
	//   - error: an error wrapping ErrArgNotSet, or nil
	Validate() error

	// Uniform returns the backend uniform buffer cached for a scalar slot.
	//
	// Parameters:
	//   - slot: the positional argument index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer, or nil if none has been created
	Uniform(slot int) *wgpu.Buffer

	// SetUniform caches a backend uniform buffer for a scalar slot.
	//
	// Parameters:
	//   - slot: the positional argument index
	//   - buf: the uniform buffer
	SetUniform(slot int, buf *wgpu.Buffer)

	// Release releases the cached uniform buffers. Bound Buffer arguments are not owned by
	// the kernel and are left untouched.
	Release()
}

var _ Kernel = &kernel{}

// NewKernel creates a new Kernel for the named program with numArgs positional slots.
//
// Parameters:
//   - name: the program name
//   - numArgs: the number of argument slots
//   - opts: options applied after construction
//
// Returns:
//   - Kernel: the new kernel handle
func NewKernel(name string, numArgs int, opts ...KernelBuilderOption) Kernel {
	k := &kernel{
		name:     name,
		args:     make([]Arg, numArgs),
		global:   [3]uint32{1, 1, 1},
		uniforms: make(map[int]*wgpu.Buffer),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *kernel) Name() string {
	return k.name
}

func (k *kernel) SetArg(slot int, v any) error {
	if slot < 0 || slot >= len(k.args) {
		return fmt.Errorf("%s: slot %d outside [0,%d): %w", k.name, slot, len(k.args), ErrArgType)
	}
	var a Arg
	switch val := v.(type) {
	case uint32:
		a = Arg{Kind: ArgKindU32, U32: val}
	case uint8:
		a = Arg{Kind: ArgKindU32, U32: uint32(val)}
	case int:
		if val < 0 {
			return fmt.Errorf("%s: slot %d negative integer %d: %w", k.name, slot, val, ErrArgType)
		}
		a = Arg{Kind: ArgKindU32, U32: uint32(val)}
	case float32:
		a = Arg{Kind: ArgKindF32, F32: val}
	case float64:
		a = Arg{Kind: ArgKindF32, F32: float32(val)}
	case [12]float32:
		a = Arg{Kind: ArgKindTransform, Transform: val}
	case []float32:
		if len(val) != 12 {
			return fmt.Errorf("%s: slot %d transform has %d values: %w", k.name, slot, len(val), ErrArgType)
		}
		a = Arg{Kind: ArgKindTransform}
		copy(a.Transform[:], val)
	case Buffer:
		if val == nil {
			return fmt.Errorf("%s: slot %d nil buffer: %w", k.name, slot, ErrArgType)
		}
		a = Arg{Kind: ArgKindBuffer, Buffer: val}
	default:
		return fmt.Errorf("%s: slot %d type %T: %w", k.name, slot, v, ErrArgType)
	}
	k.args[slot] = a
	return nil
}

func (k *kernel) Arg(slot int) (Arg, bool) {
	if slot < 0 || slot >= len(k.args) || k.args[slot].Kind == ArgKindUnset {
		return Arg{}, false
	}
	return k.args[slot], true
}

func (k *kernel) Args() []Arg {
	return k.args
}

func (k *kernel) NumArgs() int {
	return len(k.args)
}

func (k *kernel) SetGlobal(x, y, z uint32) {
	k.global = [3]uint32{x, y, z}
}

func (k *kernel) Global() [3]uint32 {
	return k.global
}

func (k *kernel) Validate() error {
	for i, a := range k.args {
		if a.Kind == ArgKindUnset {
			return fmt.Errorf("%s: slot %d: %w", k.name, i, ErrArgNotSet)
		}
	}
	return nil
}

func (k *kernel) Uniform(slot int) *wgpu.Buffer {
	return k.uniforms[slot]
}

func (k *kernel) SetUniform(slot int, buf *wgpu.Buffer) {
	k.uniforms[slot] = buf
}

func (k *kernel) Release() {
	for slot, buf := range k.uniforms {
		if buf != nil {
			buf.Release()
		}
		delete(k.uniforms, slot)
	}
}
