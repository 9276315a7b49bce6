package compute

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBuffer is a storage buffer allocated on a WebGPU device.
type wgpuBuffer struct {
	label string
	size  uint64
	buf   *wgpu.Buffer
}

var _ kernel.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// wgpuComputeBackend runs kernels on a WebGPU device. Every dispatch is encoded and submitted
// as its own command buffer on the single device queue, so uniform writes issued between
// dispatches land in submission order.
type wgpuComputeBackend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     DeviceInfo

	surface       *wgpu.Surface
	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	blit          program.Program
	blitArgs      kernel.Kernel
}

var _ computeBackend = &wgpuComputeBackend{}

func newWGPUComputeBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, mode PresentMode) (*wgpuComputeBackend, error) {
	runtime.LockOSThread()
	b := &wgpuComputeBackend{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	if mode == PresentModeUncapped {
		b.presentMode = wgpu.PresentModeImmediate
	}
	if surfaceDescriptor != nil {
		b.surface = b.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := b.selectAdapter(forceFallbackAdapter)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.adapter = a
	b.info = adapterDeviceInfo(a)

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	b.device = d
	b.queue = d.GetQueue()
	return b, nil
}

// selectAdapter enumerates adapters and picks the preferred class. When enumeration yields
// nothing it requests a high performance adapter, then a low power one, then the software
// fallback. A forced fallback skips straight to the last request.
func (b *wgpuComputeBackend) selectAdapter(forceFallbackAdapter bool) (*wgpu.Adapter, error) {
	if !forceFallbackAdapter {
		adapters := b.instance.EnumerateAdapters(nil)
		usable := make([]*wgpu.Adapter, 0, len(adapters))
		infos := make([]DeviceInfo, 0, len(adapters))
		for _, a := range adapters {
			if b.surface != nil && len(b.surface.GetCapabilities(a).Formats) == 0 {
				a.Release()
				continue
			}
			usable = append(usable, a)
			infos = append(infos, adapterDeviceInfo(a))
		}
		if i := pickDevice(infos); i >= 0 {
			for j, a := range usable {
				if j != i {
					a.Release()
				}
			}
			return usable[i], nil
		}
	}

	attempts := []wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance, CompatibleSurface: b.surface},
		{PowerPreference: wgpu.PowerPreferenceLowPower, CompatibleSurface: b.surface},
		{ForceFallbackAdapter: true, CompatibleSurface: b.surface},
	}
	if forceFallbackAdapter {
		attempts = attempts[2:]
	}
	for i := range attempts {
		a, err := b.instance.RequestAdapter(&attempts[i])
		if err == nil && a != nil {
			return a, nil
		}
	}
	return nil, ErrNoDevice
}

func (b *wgpuComputeBackend) DeviceInfo() DeviceInfo {
	return b.info
}

func (b *wgpuComputeBackend) RegisterProgram(p program.Program) error {
	switch p.Type() {
	case program.ProgramTypeRender:
		return b.registerRenderProgram(p)
	default:
		return b.registerComputeProgram(p)
	}
}

func (b *wgpuComputeBackend) registerComputeProgram(p program.Program) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	desc := computeShader.BindGroupLayoutDescriptor(0)
	desc.Label = p.Name()
	bgl, err := b.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return fmt.Errorf("failed to create bind group layout: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Name(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Name() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		bgl.Release()
		return err
	}

	p.SetBindGroupLayout(bgl)
	p.SetComputePipeline(created)
	return nil
}

// registerRenderProgram builds the blit pipeline. It targets the surface format, so it can
// only run after the surface has been configured.
func (b *wgpuComputeBackend) registerRenderProgram(p program.Program) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}
	if b.surfaceFormat == nil {
		return nil
	}

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}
	defer fs.Release()

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	desc := merged[0]
	desc.Label = p.Name()
	bgl, err := b.device.CreateBindGroupLayout(&desc)
	if err != nil {
		return fmt.Errorf("failed to create bind group layout: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Name(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.Name() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		bgl.Release()
		return err
	}

	p.SetBindGroupLayout(bgl)
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuComputeBackend) Allocate(label string, size uint64) (kernel.Buffer, error) {
	// Storage bindings must be a multiple of 4 bytes.
	aligned := max((size+3)&^3, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  aligned,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: size, buf: buf}, nil
}

func (b *wgpuComputeBackend) Write(buf kernel.Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.buf == nil {
		return fmt.Errorf("write to %s: not a live device buffer", buf.Label())
	}
	if len(data) == 0 {
		return nil
	}
	// Queue writes must be 4-byte sized.
	if pad := len(data) % 4; pad != 0 {
		data = append(append([]byte(nil), data...), make([]byte, 4-pad)...)
	}
	b.queue.WriteBuffer(wb.buf, offset, data)
	return nil
}

// uniformFor returns the cached uniform buffer of a scalar slot, creating it on first use,
// and queues the slot's current value into it.
func (b *wgpuComputeBackend) uniformFor(k kernel.Kernel, slot int, a kernel.Arg) (*wgpu.Buffer, error) {
	payload := a.Bytes()
	u := k.Uniform(slot)
	if u == nil || u.GetSize() != uint64(len(payload)) {
		if u != nil {
			u.Release()
		}
		var err error
		u, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s Arg %d", k.Name(), slot),
			Size:  uint64(len(payload)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		k.SetUniform(slot, u)
	}
	b.queue.WriteBuffer(u, 0, payload)
	return u, nil
}

// bindGroupFor builds a group 0 bind group with one entry per kernel slot.
func (b *wgpuComputeBackend) bindGroupFor(p program.Program, k kernel.Kernel) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, 0, k.NumArgs())
	for slot, a := range k.Args() {
		var buf *wgpu.Buffer
		switch a.Kind {
		case kernel.ArgKindBuffer:
			wb, ok := a.Buffer.(*wgpuBuffer)
			if !ok || wb.buf == nil {
				return nil, fmt.Errorf("slot %d: %s is not a live device buffer", slot, a.Buffer.Label())
			}
			buf = wb.buf
		default:
			u, err := b.uniformFor(k, slot, a)
			if err != nil {
				return nil, err
			}
			buf = u
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(slot),
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	return b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.Name() + " Bind Group",
		Layout:  p.BindGroupLayout(),
		Entries: entries,
	})
}

func (b *wgpuComputeBackend) Dispatch(p program.Program, k kernel.Kernel) error {
	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok || computePipeline == nil {
		return fmt.Errorf("program %s has no compute pipeline", p.Name())
	}

	bindGroup, err := b.bindGroupFor(p, k)
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	wg := p.Shader(shader.ShaderTypeCompute).WorkgroupSize()
	g := k.Global()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(common.DivCeil(g[0], wg[0]), common.DivCeil(g[1], wg[1]), common.DivCeil(g[2], wg[2]))
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	b.queue.Submit(cmd)
	return nil
}

func (b *wgpuComputeBackend) Read(buf kernel.Buffer, offset, size uint64) ([]byte, error) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.buf == nil {
		return nil, fmt.Errorf("read from %s: not a live device buffer", buf.Label())
	}
	if size == 0 {
		return []byte{}, nil
	}

	// Copies must start and end on 4-byte boundaries.
	start := offset &^ 3
	end := min((offset+size+3)&^3, wb.buf.GetSize())
	span := end - start

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Staging",
		Size:  span,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(wb.buf, start, staging, 0, span)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	b.queue.Submit(cmd)
	cmd.Release()
	b.device.Poll(true, nil)

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, span, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("map failed: %v", status)
			return
		}
		done <- nil
	})
	b.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(span))[offset-start:])
	staging.Unmap()
	return out, nil
}

func (b *wgpuComputeBackend) Finish() error {
	b.device.Poll(true, nil)
	return nil
}

func (b *wgpuComputeBackend) ConfigureSurface(width, height int) {
	if b.surface == nil || width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.blit == nil {
		blit, err := newBlitProgram()
		if err == nil {
			err = b.registerRenderProgram(blit)
		}
		if err != nil {
			log.Printf("[Compute] Failed to build display blit: %v", err)
			return
		}
		b.blit = blit
		b.blitArgs = kernel.NewKernel(blit.Name(), len(blit.Shader(shader.ShaderTypeFragment).Args()))
	}
}

func (b *wgpuComputeBackend) Present(pixels kernel.Buffer, width, height uint32) error {
	if b.surface == nil || b.blit == nil {
		return nil
	}

	for slot, v := range []any{pixels, width, height} {
		if err := b.blitArgs.SetArg(slot, v); err != nil {
			return err
		}
	}
	bindGroup, err := b.bindGroupFor(b.blit, b.blitArgs)
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	pass.SetPipeline(b.blit.Pipeline().(*wgpu.RenderPipeline))
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	b.queue.Submit(cmd)
	b.surface.Present()
	return nil
}

func (b *wgpuComputeBackend) Close() {
	if b.blitArgs != nil {
		b.blitArgs.Release()
		b.blitArgs = nil
	}
	if b.blit != nil {
		b.blit.Release()
		b.blit = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// mergeBindGroupLayouts combines the bind group layout descriptors of a vertex and a fragment
// shader into one set suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
