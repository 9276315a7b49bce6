// Package config loads and saves the viewer's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the viewer configuration loaded from YAML.
type Config struct {
	Display struct {
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		Title  string `yaml:"title"`
		VSync  bool   `yaml:"vsync"`

		// FrameLimit caps frames per second, 0 for uncapped.
		FrameLimit float64 `yaml:"frame_limit"`
	} `yaml:"display"`

	Compute struct {
		// Backend is "wgpu" or "host".
		Backend         string `yaml:"backend"`
		ForceSoftware   bool   `yaml:"force_software"`
		Workers         int    `yaml:"workers"`
		ValidateShaders bool   `yaml:"validate_shaders"`
	} `yaml:"compute"`

	Volume VolumeConfig `yaml:"volume"`

	// Pipeline lists the stages in chain order.
	Pipeline []StageConfig `yaml:"pipeline"`

	Recorder struct {
		Frames    int     `yaml:"frames"`
		OutputDir string  `yaml:"output_dir"`
		Scale     float64 `yaml:"scale"`
	} `yaml:"recorder"`

	Profiling bool `yaml:"profiling"`
}

// VolumeConfig names the scan to load. With Phantom set, or with no Path, a synthetic sweep of
// the given extents is generated instead. A Path ending in .tif or .tiff names the first page
// of a TIFF stack; Pages lists the rest.
type VolumeConfig struct {
	Path    string   `yaml:"path"`
	Pages   []string `yaml:"pages,omitempty"`
	Phantom bool     `yaml:"phantom"`

	Depth  uint32 `yaml:"depth"`
	Length uint32 `yaml:"length"`
	Width  uint32 `yaml:"width"`

	// Ratio is the near to far radial ratio and Delta the angle between scan lines in radians.
	Ratio float32 `yaml:"ratio"`
	Delta float32 `yaml:"delta"`
}

// StageConfig is one pipeline stage. Params not listed keep the kind's defaults.
type StageConfig struct {
	Kind   string             `yaml:"kind"`
	Params map[string]float32 `yaml:"params,omitempty"`
}

// DefaultConfig returns a configuration with default values: a phantom sweep converted to
// cartesian space, thresholded and contrast boosted, shown in a 512x512 window.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Display.Width = 512
	cfg.Display.Height = 512
	cfg.Display.Title = "Ultrasound Pre-Processor"
	cfg.Display.VSync = true

	cfg.Compute.Backend = "wgpu"
	cfg.Compute.Workers = runtime.NumCPU()

	cfg.Volume.Phantom = true
	cfg.Volume.Depth = 128
	cfg.Volume.Length = 96
	cfg.Volume.Width = 48
	cfg.Volume.Ratio = 0.2
	cfg.Volume.Delta = 0.012

	cfg.Pipeline = []StageConfig{
		{Kind: filter.KindToCartesian.String()},
		{Kind: filter.KindThreshold.String(), Params: map[string]float32{"cutoff": 0.15}},
		{Kind: filter.KindContrast.String(), Params: map[string]float32{"gain": 0.6}},
	}

	cfg.Recorder.Frames = 60
	cfg.Recorder.OutputDir = "recordings"
	cfg.Recorder.Scale = 1

	return cfg
}

// LoadConfig loads configuration from a YAML file over the defaults.
// If the file doesn't exist, it returns the default configuration.
//
// Parameters:
//   - configPath: the YAML file
//
// Returns:
//   - *Config: the configuration
//   - error: a read, parse or validation error
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file, creating its directory.
//
// Parameters:
//   - cfg: the configuration
//   - configPath: the YAML file
//
// Returns:
//   - error: a write error
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Validate checks ranges and names that the rest of the program relies on.
//
// Returns:
//   - error: ErrInvalid wrapped with the first problem found
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size %dx%d: %w", c.Display.Width, c.Display.Height, ErrInvalid)
	}
	if c.Display.FrameLimit < 0 {
		return fmt.Errorf("frame_limit %v: %w", c.Display.FrameLimit, ErrInvalid)
	}
	if c.Compute.Backend != "wgpu" && c.Compute.Backend != "host" {
		return fmt.Errorf("compute backend %q: %w", c.Compute.Backend, ErrInvalid)
	}
	if c.Compute.Workers < 0 {
		return fmt.Errorf("compute workers %d: %w", c.Compute.Workers, ErrInvalid)
	}
	if c.Volume.Depth == 0 || c.Volume.Length == 0 || c.Volume.Width == 0 {
		return fmt.Errorf("volume extents %dx%dx%d: %w", c.Volume.Depth, c.Volume.Length, c.Volume.Width, ErrInvalid)
	}
	if c.Volume.Ratio < 0 || c.Volume.Ratio >= 1 || c.Volume.Delta < 0 {
		return fmt.Errorf("volume ratio %v delta %v: %w", c.Volume.Ratio, c.Volume.Delta, ErrInvalid)
	}
	for i, s := range c.Pipeline {
		kind, err := filter.ParseKind(s.Kind)
		if err != nil {
			return fmt.Errorf("pipeline stage %d: %v: %w", i, err, ErrInvalid)
		}
		if _, err := filter.NewParams(kind, s.Params); err != nil {
			return fmt.Errorf("pipeline stage %d: %v: %w", i, err, ErrInvalid)
		}
	}
	if c.Recorder.Frames <= 0 || c.Recorder.Scale <= 0 {
		return fmt.Errorf("recorder frames %d scale %v: %w", c.Recorder.Frames, c.Recorder.Scale, ErrInvalid)
	}
	return nil
}

// Stages resolves the pipeline section into filter kinds and params.
//
// Returns:
//   - []filter.Kind: the stage kinds in chain order
//   - []filter.Params: the matching params
//   - error: an unknown kind or parameter name
func (c *Config) Stages() ([]filter.Kind, []filter.Params, error) {
	kinds := make([]filter.Kind, 0, len(c.Pipeline))
	params := make([]filter.Params, 0, len(c.Pipeline))
	for i, s := range c.Pipeline {
		kind, err := filter.ParseKind(s.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline stage %d: %w", i, err)
		}
		p, err := filter.NewParams(kind, s.Params)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline stage %d: %w", i, err)
		}
		kinds = append(kinds, kind)
		params = append(params, p)
	}
	return kinds, params, nil
}
