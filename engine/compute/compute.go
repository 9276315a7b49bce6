package compute

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoDevice is returned by NewContext when no usable compute device exists.
	ErrNoDevice = errors.New("no compute device found")

	// ErrProgramNotFound is returned when a kernel refers to a program that was never registered.
	ErrProgramNotFound = errors.New("compute program not registered")

	// ErrFrameNotAcquired is returned when a frame is rendered or presented by the wrong domain.
	ErrFrameNotAcquired = errors.New("frame not owned by the calling domain")
)

// FrameTarget is the shared pixel buffer written by Render and read by Present. Ownership
// is tracked by the presentation layer; the Context only checks it.
type FrameTarget interface {
	Buffer() kernel.Buffer
	Width() uint32
	Height() uint32
	OwnedByCompute() bool
}

// context is the implementation of the Context interface.
type context struct {
	mu *sync.Mutex

	programs map[string]program.Program
	kernels  map[string]kernel.Kernel

	backendType BackendType
	backend     computeBackend

	dispatches uint64

	active struct {
		buffer               kernel.Buffer
		depth, length, width uint32
	}

	// Pre-creation config collected from builder options
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surfaceWidth         int
	surfaceHeight        int
	forceFallbackAdapter bool
	validateShaders      bool
	workers              int
	presentMode          PresentMode
	pendingPrograms      []program.Program
}

// Context owns the selected compute device, its single in-order queue and the registry of
// compiled kernel programs. All higher layers allocate buffers and dispatch kernels through it.
type Context interface {
	// DeviceInfo describes the device chosen at construction.
	//
	// Returns:
	//   - DeviceInfo: name, class and API backend of the device
	DeviceInfo() DeviceInfo

	// RegisterPrograms compiles and caches programs by name. Names already registered are
	// skipped, so registration is idempotent.
	//
	// Parameters:
	//   - programs: the programs to register
	//
	// Returns:
	//   - error: an error naming the first program that failed to compile
	RegisterPrograms(programs ...program.Program) error

	// Program retrieves a registered program by name.
	//
	// Parameters:
	//   - name: the program name
	//
	// Returns:
	//   - program.Program: the program, or nil if not registered
	Program(name string) program.Program

	// Programs returns the full program registry.
	//
	// Returns:
	//   - map[string]program.Program: programs keyed by name
	Programs() map[string]program.Program

	// Kernel returns the shared Kernel handle of a registered program, creating it on first use.
	//
	// Parameters:
	//   - name: the program name
	//
	// Returns:
	//   - kernel.Kernel: the shared handle
	//   - error: ErrProgramNotFound if the program is not registered
	Kernel(name string) (kernel.Kernel, error)

	// Allocate creates a zero-initialised device buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - kernel.Buffer: the buffer
	//   - error: an error if allocation fails
	Allocate(label string, size uint64) (kernel.Buffer, error)

	// PrepareVolume allocates a buffer sized for a depth x length x width volume and queues the
	// upload of src, which must hold exactly depth*length*width*4 bytes. A nil src leaves the
	// buffer zeroed.
	//
	// Parameters:
	//   - depth, length, width: the volume extents
	//   - src: packed RGBA voxels, or nil
	//
	// Returns:
	//   - kernel.Buffer: the volume buffer
	//   - error: an error on size mismatch or allocation failure
	PrepareVolume(depth, length, width uint32, src []byte) (kernel.Buffer, error)

	// Upload queues a host to device copy into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset
	//   - data: the bytes to copy
	//
	// Returns:
	//   - error: an error if the range exceeds the buffer
	Upload(buf kernel.Buffer, offset uint64, data []byte) error

	// Dispatch validates every slot of k against its program's declared arguments and queues
	// one execution over k's global extent.
	//
	// Parameters:
	//   - k: the kernel to dispatch
	//
	// Returns:
	//   - error: an error if the program is missing, a slot is unset or mistyped, or the device fails
	Dispatch(k kernel.Kernel) error

	// SetActiveVolume selects the volume sampled by Render. A nil buffer clears the selection.
	//
	// Parameters:
	//   - buf: the volume buffer
	//   - depth, length, width: the volume extents
	SetActiveVolume(buf kernel.Buffer, depth, length, width uint32)

	// Render ray casts the active volume through the inverse view transform into the frame's
	// pixel buffer as a maximum intensity projection. The frame must be owned by the compute
	// domain. With no active volume the frame is cleared to opaque black.
	//
	// Parameters:
	//   - inverseTransform: three rows of the camera to world matrix
	//   - frame: the shared frame to write
	//
	// Returns:
	//   - error: ErrFrameNotAcquired or a dispatch error
	Render(inverseTransform [12]float32, frame FrameTarget) error

	// ConfigureSurface resizes the presentation surface.
	//
	// Parameters:
	//   - width, height: the surface size in pixels
	ConfigureSurface(width, height int)

	// Present blits the frame to the window surface. The frame must be owned by the display domain.
	//
	// Parameters:
	//   - frame: the shared frame to present
	//
	// Returns:
	//   - error: ErrFrameNotAcquired or a surface error
	Present(frame FrameTarget) error

	// ReadBuffer blocks until all queued work completes and returns a copy of a buffer range.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - offset, size: the byte range
	//
	// Returns:
	//   - []byte: the bytes read
	//   - error: an error if the range is invalid or mapping fails
	ReadBuffer(buf kernel.Buffer, offset, size uint64) ([]byte, error)

	// Finish blocks until all queued work completes.
	//
	// Returns:
	//   - error: a device error, if any
	Finish() error

	// DispatchCount returns the number of kernel dispatches issued since creation, including renders.
	//
	// Returns:
	//   - uint64: the dispatch count
	DispatchCount() uint64

	// Close releases every kernel, program and device object.
	Close()
}

var _ Context = &context{}

// NewContext creates a Context on the given backend, selects its device, and registers the
// built-in render program plus any programs passed with WithPrograms.
//
// Parameters:
//   - backendType: the executor to use
//   - options: builder options
//
// Returns:
//   - Context: the ready context
//   - error: ErrNoDevice or a program compilation error
func NewContext(backendType BackendType, options ...ContextBuilderOption) (Context, error) {
	c := &context{
		mu:          &sync.Mutex{},
		programs:    make(map[string]program.Program),
		kernels:     make(map[string]kernel.Kernel),
		backendType: backendType,
		workers:     4,
		presentMode: PresentModeVSync,
	}
	for _, opt := range options {
		opt(c)
	}

	var err error
	switch backendType {
	case BackendTypeHost:
		c.backend = newHostComputeBackend(c.workers)
	case BackendTypeWGPU:
		fallthrough
	default:
		c.backend, err = newWGPUComputeBackend(c.surfaceDescriptor, c.forceFallbackAdapter, c.presentMode)
		if err != nil {
			return nil, err
		}
	}
	log.Printf("[Compute] Selected device: %s", c.backend.DeviceInfo())

	if c.surfaceDescriptor != nil && c.surfaceWidth > 0 && c.surfaceHeight > 0 {
		c.backend.ConfigureSurface(c.surfaceWidth, c.surfaceHeight)
	}

	render, err := newRenderProgram()
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := c.RegisterPrograms(append([]program.Program{render}, c.pendingPrograms...)...); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *context) DeviceInfo() DeviceInfo {
	return c.backend.DeviceInfo()
}

func (c *context) RegisterPrograms(programs ...program.Program) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range programs {
		name := p.Name()
		if _, exists := c.programs[name]; exists {
			continue
		}
		if c.validateShaders {
			if s := p.Shader(shader.ShaderTypeCompute); s != nil {
				if err := s.Validate(); err != nil {
					return fmt.Errorf("program %q failed validation: %w", name, err)
				}
			}
		}
		if err := c.backend.RegisterProgram(p); err != nil {
			return fmt.Errorf("program %q failed to compile: %w", name, err)
		}
		c.programs[name] = p
	}
	return nil
}

func (c *context) Program(name string) program.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.programs[name]
}

func (c *context) Programs() map[string]program.Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.programs
}

func (c *context) Kernel(name string) (kernel.Kernel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kernelLocked(name)
}

func (c *context) kernelLocked(name string) (kernel.Kernel, error) {
	if k, ok := c.kernels[name]; ok {
		return k, nil
	}
	p, ok := c.programs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrProgramNotFound)
	}
	k := kernel.NewKernel(name, p.NumArgs())
	c.kernels[name] = k
	return k, nil
}

func (c *context) Allocate(label string, size uint64) (kernel.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Allocate(label, size)
}

func (c *context) PrepareVolume(depth, length, width uint32, src []byte) (kernel.Buffer, error) {
	size := uint64(depth) * uint64(length) * uint64(width) * 4
	if src != nil && uint64(len(src)) != size {
		return nil, fmt.Errorf("volume %dx%dx%d needs %d bytes, got %d", depth, length, width, size, len(src))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := c.backend.Allocate(fmt.Sprintf("Volume %dx%dx%d", depth, length, width), max(size, 4))
	if err != nil {
		return nil, err
	}
	if src != nil && size > 0 {
		if err := c.backend.Write(buf, 0, src); err != nil {
			buf.Release()
			return nil, err
		}
	}
	return buf, nil
}

func (c *context) Upload(buf kernel.Buffer, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > buf.Size() {
		return fmt.Errorf("upload of %d bytes at %d exceeds %s (%d bytes)", len(data), offset, buf.Label(), buf.Size())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Write(buf, offset, data)
}

func (c *context) Dispatch(k kernel.Kernel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(k)
}

func (c *context) dispatchLocked(k kernel.Kernel) error {
	p, ok := c.programs[k.Name()]
	if !ok {
		return fmt.Errorf("%s: %w", k.Name(), ErrProgramNotFound)
	}
	if err := k.Validate(); err != nil {
		return err
	}
	if err := checkArgKinds(p, k); err != nil {
		return err
	}
	g := k.Global()
	if g[0] == 0 || g[1] == 0 || g[2] == 0 {
		return nil
	}
	if err := c.backend.Dispatch(p, k); err != nil {
		return fmt.Errorf("dispatch %s: %w", k.Name(), err)
	}
	c.dispatches++
	return nil
}

func (c *context) SetActiveVolume(buf kernel.Buffer, depth, length, width uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active.buffer = buf
	c.active.depth, c.active.length, c.active.width = depth, length, width
}

func (c *context) Render(inverseTransform [12]float32, frame FrameTarget) error {
	if !frame.OwnedByCompute() {
		return ErrFrameNotAcquired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w, h := frame.Width(), frame.Height()
	if c.active.buffer == nil || c.active.depth*c.active.length*c.active.width == 0 {
		clear := make([]uint32, int(w)*int(h))
		for i := range clear {
			clear[i] = common.PackVoxel(0, 0, 0, 255)
		}
		return c.backend.Write(frame.Buffer(), 0, common.SliceToBytes(clear))
	}

	k, err := c.kernelLocked(renderProgramName)
	if err != nil {
		return err
	}
	for slot, v := range []any{
		frame.Buffer(), w, h,
		c.active.depth, c.active.length, c.active.width,
		c.active.buffer, inverseTransform,
	} {
		if err := k.SetArg(slot, v); err != nil {
			return err
		}
	}
	k.SetGlobal(w, h, 1)
	return c.dispatchLocked(k)
}

func (c *context) ConfigureSurface(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend.ConfigureSurface(width, height)
}

func (c *context) Present(frame FrameTarget) error {
	if frame.OwnedByCompute() {
		return ErrFrameNotAcquired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Present(frame.Buffer(), frame.Width(), frame.Height())
}

func (c *context) ReadBuffer(buf kernel.Buffer, offset, size uint64) ([]byte, error) {
	if offset+size > buf.Size() {
		return nil, fmt.Errorf("read of %d bytes at %d exceeds %s (%d bytes)", size, offset, buf.Label(), buf.Size())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Read(buf, offset, size)
}

func (c *context) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Finish()
}

func (c *context) DispatchCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatches
}

func (c *context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, k := range c.kernels {
		k.Release()
		delete(c.kernels, name)
	}
	for name, p := range c.programs {
		p.Release()
		delete(c.programs, name)
	}
	if c.backend != nil {
		c.backend.Close()
	}
}

// checkArgKinds verifies each bound slot matches the kind its program declares.
func checkArgKinds(p program.Program, k kernel.Kernel) error {
	s := p.Shader(shader.ShaderTypeCompute)
	if s == nil {
		return fmt.Errorf("%s: not a compute program", p.Name())
	}
	decls := s.Args()
	if len(decls) != k.NumArgs() {
		return fmt.Errorf("%s: kernel has %d slots, program declares %d", p.Name(), k.NumArgs(), len(decls))
	}
	for i, a := range k.Args() {
		var want kernel.ArgKind
		switch decls[i].Kind {
		case shader.AnnotationArgIn, shader.AnnotationArgOut:
			want = kernel.ArgKindBuffer
		case shader.AnnotationArgU32:
			want = kernel.ArgKindU32
		case shader.AnnotationArgF32:
			want = kernel.ArgKindF32
		case shader.AnnotationArgTransform:
			want = kernel.ArgKindTransform
		}
		if a.Kind != want {
			return fmt.Errorf("%s: slot %d (%s) bound to the wrong kind: %w", p.Name(), i, decls[i].Name, kernel.ErrArgType)
		}
	}
	return nil
}
