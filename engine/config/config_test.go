package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Display.Width != 512 || cfg.Display.Height != 512 || cfg.Display.Title != "Ultrasound Pre-Processor" {
		t.Errorf("display = %+v", cfg.Display)
	}
	kinds, params, err := cfg.Stages()
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(kinds) != 3 || kinds[0] != filter.KindToCartesian || kinds[1] != filter.KindThreshold {
		t.Fatalf("kinds = %v", kinds)
	}
	if p := params[1].(*filter.ThresholdParams); p.Cutoff != 0.15 {
		t.Errorf("threshold cutoff = %v, want 0.15", p.Cutoff)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Compute.Backend != "wgpu" || !cfg.Volume.Phantom {
		t.Errorf("not the defaults: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "oxy-sono.yaml")
	cfg := DefaultConfig()
	cfg.Compute.Backend = "host"
	cfg.Volume.Phantom = false
	cfg.Volume.Path = "scan.raw"
	cfg.Pipeline = []StageConfig{{Kind: "slice", Params: map[string]float32{"axis": 0.9, "position": 0.25}}}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Compute.Backend != "host" || got.Volume.Path != "scan.raw" || got.Volume.Phantom {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Pipeline) != 1 || got.Pipeline[0].Kind != "slice" || got.Pipeline[0].Params["position"] != 0.25 {
		t.Errorf("pipeline = %+v", got.Pipeline)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("display:\n  width: 800\npipeline:\n  - kind: invert\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Display.Width != 800 || cfg.Display.Height != 512 {
		t.Errorf("display = %dx%d, want 800x512", cfg.Display.Width, cfg.Display.Height)
	}
	if len(cfg.Pipeline) != 1 || cfg.Pipeline[0].Kind != "invert" {
		t.Errorf("pipeline = %+v, want a single invert stage", cfg.Pipeline)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Display.Width = 0 }},
		{"backend", func(c *Config) { c.Compute.Backend = "cuda" }},
		{"extents", func(c *Config) { c.Volume.Width = 0 }},
		{"ratio", func(c *Config) { c.Volume.Ratio = 1 }},
		{"kind", func(c *Config) { c.Pipeline = []StageConfig{{Kind: "blur"}} }},
		{"param", func(c *Config) { c.Pipeline = []StageConfig{{Kind: "threshold", Params: map[string]float32{"gain": 1}}} }},
		{"recorder", func(c *Config) { c.Recorder.Scale = 0 }},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.modify(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: Validate() = %v, want ErrInvalid", c.name, err)
		}
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("display: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted malformed YAML")
	}
}
