package pipeline

import (
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// PipelineBuilderOption is a functional option for configuring a Pipeline.
type PipelineBuilderOption func(*pipeline)

// WithStage appends a stage during construction. Stages are added in option order.
//
// Parameters:
//   - kind: the filter kind
//   - params: the starting params, or nil for the kind's defaults
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithStage(kind filter.Kind, params filter.Params) PipelineBuilderOption {
	return func(p *pipeline) {
		p.pendingSpec = append(p.pendingSpec, stageSpec{kind: kind, params: params})
	}
}

// WithSource sets the source volume during construction. The pipeline does not own it.
//
// Parameters:
//   - h: the source handle
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithSource(h volume.Handle) PipelineBuilderOption {
	return func(p *pipeline) {
		p.source = h
	}
}
