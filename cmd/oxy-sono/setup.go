package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/config"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// newContext opens the configured backend with every filter program registered.
func newContext(cfg *config.Config, extra ...compute.ContextBuilderOption) (compute.Context, error) {
	programs, err := filter.Programs()
	if err != nil {
		return nil, err
	}

	backend := compute.BackendTypeWGPU
	if cfg.Compute.Backend == "host" {
		backend = compute.BackendTypeHost
	}
	mode := compute.PresentModeUncapped
	if cfg.Display.VSync {
		mode = compute.PresentModeVSync
	}

	options := []compute.ContextBuilderOption{
		compute.WithWorkers(cfg.Compute.Workers),
		compute.WithForceSoftwareRenderer(cfg.Compute.ForceSoftware),
		compute.WithShaderValidation(cfg.Compute.ValidateShaders),
		compute.WithPresentMode(mode),
		compute.WithPrograms(programs...),
	}
	return compute.NewContext(backend, append(options, extra...)...)
}

// newPipeline builds the configured stage chain.
func newPipeline(ctx compute.Context, arena *volume.Arena, cfg *config.Config) (pipeline.Pipeline, error) {
	kinds, params, err := cfg.Stages()
	if err != nil {
		return nil, err
	}
	options := make([]pipeline.PipelineBuilderOption, len(kinds))
	for i := range kinds {
		options[i] = pipeline.WithStage(kinds[i], params[i])
	}
	return pipeline.NewPipeline(ctx, arena, options...)
}

// loadVolume reads the configured scan, or synthesises a phantom sweep.
func loadVolume(vc config.VolumeConfig) (*volume.Volume, error) {
	if vc.Phantom || vc.Path == "" {
		return volume.Phantom(vc.Depth, vc.Length, vc.Width, vc.Ratio, vc.Delta), nil
	}

	var (
		v   *volume.Volume
		err error
	)
	switch strings.ToLower(filepath.Ext(vc.Path)) {
	case ".tif", ".tiff":
		v, err = volume.LoadTIFFStack(append([]string{vc.Path}, vc.Pages...))
	default:
		v, err = volume.LoadRawFile(vc.Path, vc.Depth, vc.Length, vc.Width)
	}
	if err != nil {
		return nil, fmt.Errorf("load volume: %w", err)
	}
	v.Ratio, v.Delta = vc.Ratio, vc.Delta
	return v, nil
}
