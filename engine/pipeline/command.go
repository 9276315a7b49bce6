package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// Command is a pipeline edit produced by the UI and applied on the control thread.
type Command interface {
	apply(p *pipeline) error
}

// SetParam sets one named control of a stage and reruns the chain from that stage.
type SetParam struct {
	Stage int
	Name  string
	Value float32
}

// AddStage appends a stage. A nil Params uses the kind's defaults.
type AddStage struct {
	Kind   filter.Kind
	Params filter.Params
}

// RemoveStage removes the stage at index Stage.
type RemoveStage struct {
	Stage int
}

// LoadVolume uploads Volume, makes it the pipeline source and destroys a previously loaded
// source.
type LoadVolume struct {
	Volume *volume.Volume
}

// Invalidate reruns every stage on the next pass.
type Invalidate struct{}

func (c SetParam) apply(p *pipeline) error {
	if c.Stage < 0 || c.Stage >= len(p.stages) {
		return fmt.Errorf("set %s on stage %d: %w", c.Name, c.Stage, ErrStageRange)
	}
	if err := p.stages[c.Stage].SetParam(c.Name, c.Value); err != nil {
		return err
	}
	p.touch(c.Stage)
	return nil
}

func (c AddStage) apply(p *pipeline) error {
	_, err := p.Append(c.Kind, c.Params)
	return err
}

func (c RemoveStage) apply(p *pipeline) error {
	return p.Remove(c.Stage)
}

func (c LoadVolume) apply(p *pipeline) error {
	if c.Volume == nil {
		return fmt.Errorf("load of a nil volume")
	}
	if err := c.Volume.Upload(p.ctx); err != nil {
		return err
	}
	p.setSource(p.arena.Insert(c.Volume), true)
	return nil
}

func (c Invalidate) apply(p *pipeline) error {
	p.touch(0)
	return nil
}
