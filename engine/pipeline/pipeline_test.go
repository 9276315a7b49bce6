package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/filter"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

func setup(t *testing.T, options ...PipelineBuilderOption) (compute.Context, *volume.Arena, Pipeline) {
	t.Helper()
	c, err := compute.NewContext(compute.BackendTypeHost, compute.WithWorkers(2))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(c.Close)
	a := volume.NewArena()
	p, err := NewPipeline(c, a, options...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return c, a, p
}

func grayVolume(t *testing.T, value byte) *volume.Volume {
	t.Helper()
	v, err := volume.New(2, 2, 2, bytes.Repeat([]byte{value}, 8))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func mustRun(t *testing.T, p Pipeline, want int) {
	t.Helper()
	n, err := p.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != want {
		t.Fatalf("Run dispatched %d kernels, want %d", n, want)
	}
}

func TestRunOnlyRerunsModifiedStages(t *testing.T) {
	_, _, p := setup(t,
		WithStage(filter.KindInvert, nil),
		WithStage(filter.KindThreshold, nil),
		WithStage(filter.KindContrast, nil),
	)
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 128)}); err != nil {
		t.Fatal(err)
	}

	mustRun(t, p, 3)
	mustRun(t, p, 0)

	p.Submit(SetParam{Stage: 1, Name: "cutoff", Value: 0.9})
	if err := p.Drain(); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 2)
	mustRun(t, p, 0)

	if err := p.Apply(Invalidate{}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 3)
}

func TestRunProducesOutput(t *testing.T) {
	c, a, p := setup(t, WithStage(filter.KindInvert, nil))
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 128)}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 1)

	out, ok := a.Get(p.Output())
	if !ok {
		t.Fatal("output handle invalid")
	}
	raw, err := c.ReadBuffer(out.Buffer, 0, out.ByteSize())
	if err != nil {
		t.Fatal(err)
	}
	want := common.SliceToBytes([]uint32{common.PackVoxel(127, 127, 127, 255)})
	for i := 0; i < len(raw); i += 4 {
		if !bytes.Equal(raw[i:i+4], want) {
			t.Fatalf("voxel %d = %v, want %v", i/4, raw[i:i+4], want)
		}
	}
}

func TestEmptyPipelineOutputsSource(t *testing.T) {
	_, a, p := setup(t)
	h := a.Insert(grayVolume(t, 1))
	p.SetSource(h)
	if p.Output() != h {
		t.Errorf("Output() = %v, want the source %v", p.Output(), h)
	}
	mustRun(t, p, 0)
}

func TestAddAndRemoveStages(t *testing.T) {
	_, a, p := setup(t, WithStage(filter.KindInvert, nil))
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 50)}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 1)

	if err := p.Apply(AddStage{Kind: filter.KindSqrt}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 1)

	removed := p.Stages()[0].Output()
	if err := p.Apply(RemoveStage{Stage: 0}); err != nil {
		t.Fatal(err)
	}
	if a.Valid(removed) {
		t.Error("removed stage output still valid")
	}
	if len(p.Stages()) != 1 || p.Stages()[0].Kind() != filter.KindSqrt {
		t.Fatalf("stages after removal: %d", len(p.Stages()))
	}
	mustRun(t, p, 1)

	if err := p.Apply(RemoveStage{Stage: 3}); !errors.Is(err, ErrStageRange) {
		t.Errorf("RemoveStage(3) = %v, want ErrStageRange", err)
	}
	if _, err := p.Insert(5, filter.KindFade, nil); !errors.Is(err, ErrStageRange) {
		t.Errorf("Insert(5) = %v, want ErrStageRange", err)
	}
}

func TestInsertRerunsFromInsertion(t *testing.T) {
	_, _, p := setup(t, WithStage(filter.KindInvert, nil), WithStage(filter.KindFade, nil))
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 50)}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 2)
	if _, err := p.Insert(1, filter.KindContrast, nil); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 2)
}

func TestLoadVolumeReplacesOwnedSource(t *testing.T) {
	_, a, p := setup(t, WithStage(filter.KindInvert, nil))
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 1)}); err != nil {
		t.Fatal(err)
	}
	first := p.Source()
	mustRun(t, p, 1)

	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 2)}); err != nil {
		t.Fatal(err)
	}
	if a.Valid(first) {
		t.Error("previous loaded source should be destroyed")
	}
	mustRun(t, p, 1)

	if err := p.Apply(LoadVolume{}); err == nil {
		t.Error("LoadVolume with no volume should fail")
	}
}

func TestStageErrorAbortsWithoutRetry(t *testing.T) {
	c, a, p := setup(t, WithStage(filter.KindInvert, nil), WithStage(filter.KindInvert, nil))
	// A source without a device buffer cannot be bound.
	p.SetSource(a.Insert(&volume.Volume{Depth: 2, Length: 2, Width: 2, Modified: true}))

	n, err := p.Run()
	if err == nil {
		t.Fatal("Run should fail on an unbound source")
	}
	if n != 0 || c.DispatchCount() != 0 {
		t.Errorf("failed pass dispatched %d kernels", n)
	}
	mustRun(t, p, 0)
}

func TestOptionsMarkStages(t *testing.T) {
	_, _, p := setup(t, WithStage(filter.KindInvert, nil), WithStage(filter.KindThreshold, nil))
	if err := p.Apply(LoadVolume{Volume: grayVolume(t, 90)}); err != nil {
		t.Fatal(err)
	}
	mustRun(t, p, 2)

	opts := p.Options()
	if len(opts.Children) != 2 || opts.Children[1].Name != "1:threshold" {
		t.Fatalf("unexpected option tree:\n%s", opts)
	}
	if err := opts.Set("1:threshold/cutoff", 2); err != nil {
		t.Fatal(err)
	}
	if got := p.Stages()[1].Params().(*filter.ThresholdParams).Cutoff; got != 1 {
		t.Errorf("cutoff = %v, want clamped to 1", got)
	}
	mustRun(t, p, 1)
}

func TestSetParamErrors(t *testing.T) {
	_, _, p := setup(t, WithStage(filter.KindInvert, nil))
	p.Submit(SetParam{Stage: 4, Name: "cutoff"})
	p.Submit(SetParam{Stage: 0, Name: "cutoff"})
	err := p.Drain()
	if !errors.Is(err, ErrStageRange) {
		t.Errorf("Drain() = %v, want ErrStageRange among the errors", err)
	}
}
