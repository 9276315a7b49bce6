package compute

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
)

// hostBuffer is a buffer allocated by the host backend. Storage is kept as 32-bit words so
// kernels can index voxels directly; byte sizes are rounded up to a whole word.
type hostBuffer struct {
	label string
	size  uint64
	words []uint32
}

var _ kernel.Buffer = &hostBuffer{}

func (b *hostBuffer) Label() string { return b.label }
func (b *hostBuffer) Size() uint64  { return b.size }

func (b *hostBuffer) Release() {
	b.words = nil
}

func (b *hostBuffer) bytes() []byte {
	return common.SliceToBytes(b.words)
}

// hostComputeBackend executes each program's HostFunc on the CPU. Work is split into
// contiguous slabs along the outermost non-trivial axis and run on a reusable worker pool.
// Execution is synchronous, so the queue is always drained when Dispatch returns.
type hostComputeBackend struct {
	workers int
	pool    worker.DynamicWorkerPool
	taskID  int
}

var _ computeBackend = &hostComputeBackend{}

func newHostComputeBackend(workers int) *hostComputeBackend {
	workers = max(workers, 1)
	return &hostComputeBackend{
		workers: workers,
		pool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

func (h *hostComputeBackend) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Name:    fmt.Sprintf("host (%d workers)", h.workers),
		Class:   DeviceClassCPU,
		Backend: "host",
	}
}

func (h *hostComputeBackend) RegisterProgram(p program.Program) error {
	if p.Type() == program.ProgramTypeRender {
		return nil
	}
	if p.Host() == nil {
		return fmt.Errorf("program %s has no host implementation", p.Name())
	}
	return nil
}

func (h *hostComputeBackend) Allocate(label string, size uint64) (kernel.Buffer, error) {
	return &hostBuffer{
		label: label,
		size:  size,
		words: make([]uint32, (size+3)/4),
	}, nil
}

func (h *hostComputeBackend) Write(buf kernel.Buffer, offset uint64, data []byte) error {
	hb, ok := buf.(*hostBuffer)
	if !ok || hb.words == nil {
		return fmt.Errorf("write to %s: not a live host buffer", buf.Label())
	}
	copy(hb.bytes()[offset:], data)
	return nil
}

func (h *hostComputeBackend) Dispatch(p program.Program, k kernel.Kernel) error {
	args := make([]any, k.NumArgs())
	for i, a := range k.Args() {
		switch a.Kind {
		case kernel.ArgKindU32:
			args[i] = a.U32
		case kernel.ArgKindF32:
			args[i] = a.F32
		case kernel.ArgKindTransform:
			args[i] = a.Transform
		case kernel.ArgKindBuffer:
			hb, ok := a.Buffer.(*hostBuffer)
			if !ok || hb.words == nil {
				return fmt.Errorf("slot %d: %s is not a live host buffer", i, a.Buffer.Label())
			}
			args[i] = hb.words
		}
	}

	fn := p.Host()
	var wg sync.WaitGroup
	for _, span := range splitSpans(k.Global(), h.workers) {
		wg.Add(1)
		s := span
		id := h.taskID
		h.taskID++
		h.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(args, s)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

func (h *hostComputeBackend) Read(buf kernel.Buffer, offset, size uint64) ([]byte, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok || hb.words == nil {
		return nil, fmt.Errorf("read from %s: not a live host buffer", buf.Label())
	}
	out := make([]byte, size)
	copy(out, hb.bytes()[offset:offset+size])
	return out, nil
}

func (h *hostComputeBackend) Finish() error {
	return nil
}

func (h *hostComputeBackend) ConfigureSurface(width, height int) {}

func (h *hostComputeBackend) Present(pixels kernel.Buffer, width, height uint32) error {
	return nil
}

func (h *hostComputeBackend) Close() {}

// splitSpans cuts a global extent into at most n contiguous slabs along axis 2 when it is
// larger than one, otherwise along axis 1, otherwise along axis 0.
func splitSpans(global [3]uint32, n int) []program.Span {
	axis := 0
	switch {
	case global[2] > 1:
		axis = 2
	case global[1] > 1:
		axis = 1
	}
	extent := global[axis]
	chunks := min(uint32(max(n, 1)), max(extent, 1))
	step := common.DivCeil(extent, chunks)

	spans := make([]program.Span, 0, chunks)
	for lo := uint32(0); lo < extent; lo += step {
		s := program.Span{Hi: global}
		s.Lo[axis] = lo
		s.Hi[axis] = min(lo+step, extent)
		spans = append(spans, s)
	}
	return spans
}
