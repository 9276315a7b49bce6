package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// ErrStageRange is returned when a stage index is outside the pipeline.
var ErrStageRange = errors.New("stage index out of range")

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	ctx   compute.Context
	arena *volume.Arena

	source      volume.Handle
	ownsSource  bool
	stages      []*filter.Filter
	pendingSpec []stageSpec

	mu    sync.Mutex
	queue []Command
}

type stageSpec struct {
	kind   filter.Kind
	params filter.Params
}

// Pipeline is an ordered chain of filters over one source volume. Stage 0 reads the source and
// stage i reads the output of stage i-1. Only stages whose input changed since the last pass
// are run.
//
// Every method except Submit belongs to the control thread.
type Pipeline interface {
	// SetSource sets the volume stage 0 reads and marks it modified. The pipeline does not
	// take ownership of it.
	//
	// Parameters:
	//   - h: the source volume handle
	SetSource(h volume.Handle)

	// Source returns the source volume handle.
	//
	// Returns:
	//   - volume.Handle: the source handle, zero if none is set
	Source() volume.Handle

	// Append adds a stage at the end of the chain.
	//
	// Parameters:
	//   - kind: the filter kind
	//   - params: the starting params, or nil for the kind's defaults
	//
	// Returns:
	//   - *filter.Filter: the new stage
	//   - error: an error if the filter cannot be created
	Append(kind filter.Kind, params filter.Params) (*filter.Filter, error)

	// Insert adds a stage at index i, shifting later stages down the chain.
	//
	// Parameters:
	//   - i: the new stage index, 0..len(Stages())
	//   - kind: the filter kind
	//   - params: the starting params, or nil for the kind's defaults
	//
	// Returns:
	//   - *filter.Filter: the new stage
	//   - error: ErrStageRange or a filter creation error
	Insert(i int, kind filter.Kind, params filter.Params) (*filter.Filter, error)

	// Remove releases stage i and reconnects its neighbours.
	//
	// Parameters:
	//   - i: the stage index
	//
	// Returns:
	//   - error: ErrStageRange
	Remove(i int) error

	// Stages returns the stages in chain order.
	//
	// Returns:
	//   - []*filter.Filter: the stages
	Stages() []*filter.Filter

	// Output returns the volume at the end of the chain, the source if there are no stages.
	//
	// Returns:
	//   - volume.Handle: the output handle
	Output() volume.Handle

	// Run performs one pass. A stage runs when its input is modified; running it marks its
	// output modified, so changes flow down the chain in one pass. Inputs consumed by the
	// pass, including the input of a failed stage, are cleared afterwards. A stage error ends
	// the pass.
	//
	// Returns:
	//   - int: the number of kernel dispatches issued
	//   - error: the first stage error
	Run() (int, error)

	// Options returns the controls of every stage under a root named "pipeline". Stage nodes
	// are named "<index>:<kind>". Setting a leaf marks the stage's input modified.
	//
	// Returns:
	//   - *filter.OptionTree: the option tree
	Options() *filter.OptionTree

	// Submit queues a command for the next Drain. It is safe to call from any goroutine.
	//
	// Parameters:
	//   - cmd: the command
	Submit(cmd Command)

	// Apply runs a command immediately.
	//
	// Parameters:
	//   - cmd: the command
	//
	// Returns:
	//   - error: the command's error
	Apply(cmd Command) error

	// Drain applies every queued command in submission order. A failing command is logged
	// and skipped.
	//
	// Returns:
	//   - error: the joined command errors
	Drain() error

	// Release releases every stage and a source loaded through LoadVolume.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates an empty pipeline.
//
// Parameters:
//   - ctx: the compute context the stages run on
//   - arena: the arena owning every pipeline volume
//   - options: PipelineBuilderOption values
//
// Returns:
//   - Pipeline: the pipeline
//   - error: an error if a stage given by WithStage cannot be created
func NewPipeline(ctx compute.Context, arena *volume.Arena, options ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipeline{
		ctx:   ctx,
		arena: arena,
	}
	for _, option := range options {
		option(p)
	}
	for _, s := range p.pendingSpec {
		if _, err := p.Append(s.kind, s.params); err != nil {
			p.Release()
			return nil, err
		}
	}
	p.pendingSpec = nil
	return p, nil
}

func (p *pipeline) SetSource(h volume.Handle) {
	p.setSource(h, false)
}

func (p *pipeline) setSource(h volume.Handle, owned bool) {
	if p.ownsSource && p.source != h {
		p.arena.Destroy(p.source)
	}
	p.source = h
	p.ownsSource = owned
	p.touch(0)
}

func (p *pipeline) Source() volume.Handle {
	return p.source
}

func (p *pipeline) Append(kind filter.Kind, params filter.Params) (*filter.Filter, error) {
	return p.Insert(len(p.stages), kind, params)
}

func (p *pipeline) Insert(i int, kind filter.Kind, params filter.Params) (*filter.Filter, error) {
	if i < 0 || i > len(p.stages) {
		return nil, fmt.Errorf("insert at %d of %d: %w", i, len(p.stages), ErrStageRange)
	}
	var opts []filter.FilterBuilderOption
	if params != nil {
		opts = append(opts, filter.WithParams(params))
	}
	f, err := filter.New(kind, p.ctx, p.arena, opts...)
	if err != nil {
		return nil, err
	}
	p.stages = append(p.stages[:i], append([]*filter.Filter{f}, p.stages[i:]...)...)
	p.touch(i)
	return f, nil
}

func (p *pipeline) Remove(i int) error {
	if i < 0 || i >= len(p.stages) {
		return fmt.Errorf("remove %d of %d: %w", i, len(p.stages), ErrStageRange)
	}
	p.stages[i].Release()
	p.stages = append(p.stages[:i], p.stages[i+1:]...)
	if i < len(p.stages) {
		p.touch(i)
	}
	return nil
}

func (p *pipeline) Stages() []*filter.Filter {
	return p.stages
}

func (p *pipeline) Output() volume.Handle {
	if len(p.stages) == 0 {
		return p.source
	}
	return p.stages[len(p.stages)-1].Output()
}

func (p *pipeline) Run() (int, error) {
	start := p.ctx.DispatchCount()
	var consumed []*volume.Volume
	defer func() {
		for _, v := range consumed {
			v.Modified = false
		}
	}()

	in := p.source
	for i, f := range p.stages {
		if v, ok := p.arena.Get(in); ok && v.Modified {
			consumed = append(consumed, v)
			if err := f.Input(in); err != nil {
				log.Printf("[Pipeline] Stage %d (%v) input failed: %v", i, f.Kind(), err)
				return int(p.ctx.DispatchCount() - start), fmt.Errorf("stage %d: %w", i, err)
			}
			if err := f.Execute(); err != nil {
				log.Printf("[Pipeline] Stage %d (%v) failed: %v", i, f.Kind(), err)
				return int(p.ctx.DispatchCount() - start), fmt.Errorf("stage %d: %w", i, err)
			}
		}
		in = f.Output()
	}
	return int(p.ctx.DispatchCount() - start), nil
}

func (p *pipeline) Options() *filter.OptionTree {
	root := filter.NewOptionGroup("pipeline")
	for i, f := range p.stages {
		stage := filter.NewOptionGroup(fmt.Sprintf("%d:%v", i, f.Kind()))
		for _, leaf := range f.Options().Leaves() {
			stage.Children = append(stage.Children, filter.NewOption(leaf.Name, leaf.Value, func(v float32) {
				leaf.SetValue(v)
				p.touch(i)
			}))
		}
		root.Children = append(root.Children, stage)
	}
	return root
}

func (p *pipeline) Submit(cmd Command) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, cmd)
}

func (p *pipeline) Apply(cmd Command) error {
	return cmd.apply(p)
}

func (p *pipeline) Drain() error {
	p.mu.Lock()
	queue := p.queue
	p.queue = nil
	p.mu.Unlock()

	var errs []error
	for _, cmd := range queue {
		if err := cmd.apply(p); err != nil {
			log.Printf("[Pipeline] %T failed: %v", cmd, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *pipeline) Release() {
	for _, f := range p.stages {
		f.Release()
	}
	p.stages = nil
	if p.ownsSource {
		p.arena.Destroy(p.source)
		p.ownsSource = false
	}
	p.source = volume.Handle{}
}

// touch marks the input of stage i modified so that stage and everything after it rerun.
// An input that was never produced is left alone; its producer marks it when it first runs.
func (p *pipeline) touch(i int) {
	in := p.source
	if i > 0 && i <= len(p.stages) {
		in = p.stages[i-1].Output()
	}
	if v, ok := p.arena.Get(in); ok && v.Buffer != nil {
		v.Modified = true
	}
}
