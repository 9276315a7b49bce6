package filter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

func newHostContext(t *testing.T) compute.Context {
	t.Helper()
	c, err := compute.NewContext(compute.BackendTypeHost, compute.WithWorkers(3))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func insertGray(t *testing.T, c compute.Context, a *volume.Arena, d, l, w uint32, gray []byte) volume.Handle {
	t.Helper()
	v, err := volume.New(d, l, w, gray)
	if err != nil {
		t.Fatalf("volume.New: %v", err)
	}
	if err := v.Upload(c); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return a.Insert(v)
}

func readVoxels(t *testing.T, c compute.Context, a *volume.Arena, h volume.Handle) []uint32 {
	t.Helper()
	v, ok := a.Get(h)
	if !ok {
		t.Fatalf("handle %s invalid", h)
	}
	raw, err := c.ReadBuffer(v.Buffer, 0, v.ByteSize())
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out
}

func run(t *testing.T, f *Filter, in volume.Handle) {
	t.Helper()
	if err := f.Input(in); err != nil {
		t.Fatalf("%v Input: %v", f.Kind(), err)
	}
	if err := f.Execute(); err != nil {
		t.Fatalf("%v Execute: %v", f.Kind(), err)
	}
}

func newFilter(t *testing.T, kind Kind, c compute.Context, a *volume.Arena, p Params) *Filter {
	t.Helper()
	var opts []FilterBuilderOption
	if p != nil {
		opts = append(opts, WithParams(p))
	}
	f, err := New(kind, c, a, opts...)
	if err != nil {
		t.Fatalf("New(%v): %v", kind, err)
	}
	return f
}

func extents(t *testing.T, a *volume.Arena, h volume.Handle) Extents {
	t.Helper()
	v, ok := a.Get(h)
	if !ok {
		t.Fatalf("handle %s invalid", h)
	}
	return extentsOf(v)
}

func TestThreshold(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	src := insertGray(t, c, a, 4, 1, 1, []byte{0, 100, 200, 255})
	f := newFilter(t, KindThreshold, c, a, &ThresholdParams{Cutoff: 0.5})
	run(t, f, src)

	want := []uint8{0, 0, 255, 255}
	for i, v := range readVoxels(t, c, a, f.Output()) {
		r, g, b, al := common.UnpackVoxel(v)
		if r != want[i] || g != want[i] || b != want[i] || al != 255 {
			t.Errorf("voxel %d = (%d,%d,%d,%d), want %d with alpha 255", i, r, g, b, al, want[i])
		}
	}
}

func TestThresholdCutoff(t *testing.T) {
	cases := []struct {
		c    float32
		want uint32
	}{
		{0, 0},
		{0.2, 51},
		{0.5, 128},
		{1, 255},
	}
	for _, tc := range cases {
		if got := thresholdCutoff(tc.c); got != tc.want {
			t.Errorf("thresholdCutoff(%v) = %d, want %d", tc.c, got, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	gray := make([]byte, 8*8*8)
	for i := range gray {
		gray[i] = byte(i % 251)
	}
	src := insertGray(t, c, a, 8, 8, 8, gray)

	f := newFilter(t, KindClamp, c, a, &ClampParams{DepthHi: 0.5, LengthHi: 0.5, WidthHi: 0.5})
	run(t, f, src)
	if e := extents(t, a, f.Output()); e != (Extents{4, 4, 4}) {
		t.Fatalf("extents = %+v, want 4x4x4", e)
	}

	if err := f.SetParams(&ClampParams{DepthLo: 0.25, DepthHi: 0.75, LengthLo: 0.25, LengthHi: 0.75, WidthLo: 0.25, WidthHi: 0.75}); err != nil {
		t.Fatal(err)
	}
	run(t, f, src)
	out := readVoxels(t, c, a, f.Output())
	for _, p := range [][3]uint32{{0, 0, 0}, {3, 1, 2}} {
		o := p[0] + p[1]*4 + p[2]*16
		i := (p[0] + 2) + (p[1]+2)*8 + (p[2]+2)*64
		if r, _, _, _ := common.UnpackVoxel(out[o]); r != gray[i] {
			t.Errorf("out%v = %d, want in%v = %d", p, r, [3]uint32{p[0] + 2, p[1] + 2, p[2] + 2}, gray[i])
		}
	}
}

func TestClampBounds(t *testing.T) {
	cases := []struct {
		lo, hi float32
		n      uint32
		a, b   uint32
	}{
		{0, 1, 8, 0, 8},
		{0, 0.5, 8, 0, 4},
		{0.5, 0.5, 8, 4, 5},
		{0.9, 0.1, 8, 7, 8},
		{1, 1, 8, 7, 8},
		{0, 0, 1, 0, 1},
	}
	for _, tc := range cases {
		a, b := clampBounds(tc.lo, tc.hi, tc.n)
		if a != tc.a || b != tc.b {
			t.Errorf("clampBounds(%v, %v, %d) = [%d, %d), want [%d, %d)", tc.lo, tc.hi, tc.n, a, b, tc.a, tc.b)
		}
	}
}

func TestInvertIsInvolutive(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	gray := make([]byte, 5*4*3)
	for i := range gray {
		gray[i] = byte(i * 37)
	}
	src := insertGray(t, c, a, 5, 4, 3, gray)
	want := readVoxels(t, c, a, src)

	first := newFilter(t, KindInvert, c, a, nil)
	second := newFilter(t, KindInvert, c, a, nil)
	run(t, first, src)
	run(t, second, first.Output())

	got := readVoxels(t, c, a, second.Output())
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("voxel %d = %#x after two inversions, want %#x", i, got[i], want[i])
		}
	}
}

func TestInvertEndToEnd(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	src := insertGray(t, c, a, 2, 2, 2, bytes.Repeat([]byte{128}, 8))
	f := newFilter(t, KindInvert, c, a, nil)
	run(t, f, src)

	out, _ := a.Get(f.Output())
	if !out.Modified {
		t.Error("Execute should mark the output modified")
	}
	for i, v := range readVoxels(t, c, a, f.Output()) {
		if v != common.PackVoxel(127, 127, 127, 255) {
			t.Errorf("voxel %d = %#x, want (127,127,127,255)", i, v)
		}
	}
}

func TestStaleInputIsNoop(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	src := insertGray(t, c, a, 2, 2, 2, bytes.Repeat([]byte{10}, 8))
	f := newFilter(t, KindInvert, c, a, nil)
	run(t, f, src)
	before := readVoxels(t, c, a, f.Output())

	other := insertGray(t, c, a, 3, 3, 3, bytes.Repeat([]byte{99}, 27))
	a.Destroy(other)
	if err := f.Input(other); err != nil {
		t.Fatalf("Input(stale) = %v, want nil", err)
	}
	if e := extents(t, a, f.Output()); e != (Extents{2, 2, 2}) {
		t.Fatalf("stale Input resized the output to %+v", e)
	}

	a.Destroy(src)
	if err := f.Execute(); err != nil {
		t.Fatalf("Execute with destroyed producer = %v, want nil", err)
	}
	after := readVoxels(t, c, a, f.Output())
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("voxel %d changed from %#x to %#x", i, before[i], after[i])
		}
	}
}

func TestExecuteWithoutInput(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	f := newFilter(t, KindInvert, c, a, nil)
	if err := f.Execute(); !errors.Is(err, ErrNoInput) {
		t.Errorf("Execute() = %v, want ErrNoInput", err)
	}
}

func TestValueRemaps(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		params Params
		in     []byte
		want   []uint8
	}{
		{"contrast neutral", KindContrast, &ContrastParams{Gain: 0.5}, []byte{0, 77, 128, 255}, []uint8{0, 77, 128, 255}},
		{"contrast boost", KindContrast, &ContrastParams{Gain: 1}, []byte{128, 138, 200, 100}, []uint8{128, 168, 255, 16}},
		{"log2 off", KindLog2, &Log2Params{Strength: 0}, []byte{0, 3, 90, 255}, []uint8{0, 3, 90, 255}},
		{"log2 full", KindLog2, &Log2Params{Strength: 1}, []byte{0, 3, 255, 1}, []uint8{0, 64, 255, 32}},
		{"sqrt full", KindSqrt, &SqrtParams{Strength: 1}, []byte{0, 64, 255, 255}, []uint8{0, 128, 255, 255}},
		{"fade full", KindFade, &FadeParams{Amount: 1}, []byte{200, 200, 200, 200}, []uint8{200, 133, 67, 0}},
		{"fade off", KindFade, &FadeParams{Amount: 0}, []byte{200, 200, 200, 200}, []uint8{200, 200, 200, 200}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, a := newHostContext(t), volume.NewArena()
			src := insertGray(t, c, a, 4, 1, 1, tc.in)
			f := newFilter(t, tc.kind, c, a, tc.params)
			run(t, f, src)
			for i, v := range readVoxels(t, c, a, f.Output()) {
				r, g, b, al := common.UnpackVoxel(v)
				if r != tc.want[i] || g != r || b != r || al != 255 {
					t.Errorf("voxel %d = (%d,%d,%d,%d), want %d", i, r, g, b, al, tc.want[i])
				}
			}
		})
	}
}

func TestShrink(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	gray := make([]byte, 4*2*2)
	for i := range gray {
		gray[i] = byte(i * 10)
	}
	src := insertGray(t, c, a, 4, 2, 2, gray)

	pick := newFilter(t, KindShrink, c, a, &ShrinkParams{Smooth: 0})
	run(t, pick, src)
	if e := extents(t, a, pick.Output()); e != (Extents{2, 1, 1}) {
		t.Fatalf("extents = %+v, want 2x1x1", e)
	}
	out := readVoxels(t, c, a, pick.Output())
	if r, _, _, _ := common.UnpackVoxel(out[1]); r != gray[2] {
		t.Errorf("picked voxel 1 = %d, want %d", r, gray[2])
	}

	box := newFilter(t, KindShrink, c, a, &ShrinkParams{Smooth: 1})
	run(t, box, src)
	out = readVoxels(t, c, a, box.Output())
	// Block at x 0..1 holds indices 0, 1, 4, 5, 8, 9, 12, 13: mean 6.5 -> 65.
	if r, _, _, al := common.UnpackVoxel(out[0]); r != 65 || al != 255 {
		t.Errorf("averaged voxel 0 = %d alpha %d, want 65 alpha 255", r, al)
	}
}

func TestShrinkOddExtents(t *testing.T) {
	for _, tc := range [][2]uint32{{0, 0}, {1, 1}, {2, 1}, {5, 3}, {8, 4}} {
		if got := halfExtent(tc[0]); got != tc[1] {
			t.Errorf("halfExtent(%d) = %d, want %d", tc[0], got, tc[1])
		}
	}
}

func TestSlice(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	gray := make([]byte, 4*3*2)
	for i := range gray {
		gray[i] = byte(i)
	}
	src := insertGray(t, c, a, 4, 3, 2, gray)
	f := newFilter(t, KindSlice, c, a, &SliceParams{Axis: 0.5, Position: 0.5})
	run(t, f, src)

	if e := extents(t, a, f.Output()); e != (Extents{4, 1, 2}) {
		t.Fatalf("extents = %+v, want 4x1x2", e)
	}
	out := readVoxels(t, c, a, f.Output())
	for z := range uint32(2) {
		for x := range uint32(4) {
			want := gray[x+1*4+z*12]
			if r, _, _, _ := common.UnpackVoxel(out[x+z*4]); r != want {
				t.Errorf("out(%d,0,%d) = %d, want %d", x, z, r, want)
			}
		}
	}
}

func TestSharedKernelRebindsArguments(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	src := insertGray(t, c, a, 2, 1, 1, []byte{100, 200})
	low := newFilter(t, KindThreshold, c, a, &ThresholdParams{Cutoff: 0.1})
	high := newFilter(t, KindThreshold, c, a, &ThresholdParams{Cutoff: 0.9})
	run(t, low, src)
	run(t, high, src)
	run(t, low, src)

	if got := readVoxels(t, c, a, low.Output()); got[0] != common.PackVoxel(255, 255, 255, 255) {
		t.Errorf("low cutoff voxel 0 = %#x, want white", got[0])
	}
	if got := readVoxels(t, c, a, high.Output()); got[1] != common.PackVoxel(0, 0, 0, 255) {
		t.Errorf("high cutoff voxel 1 = %#x, want black", got[1])
	}
	n := 0
	for name := range c.Programs() {
		if name == KindThreshold.String() {
			n++
		}
	}
	if n != 1 {
		t.Errorf("threshold registered %d times", n)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	v, err := volume.New(32, 24, 1, bytes.Repeat([]byte{200}, 32*24))
	if err != nil {
		t.Fatal(err)
	}
	v.Ratio, v.Delta = 0.25, 0.03
	if err := v.Upload(c); err != nil {
		t.Fatal(err)
	}
	src := a.Insert(v)

	cart := newFilter(t, KindToCartesian, c, a, nil)
	polar := newFilter(t, KindToPolar, c, a, nil)
	run(t, cart, src)
	run(t, polar, cart.Output())

	ce := extents(t, a, cart.Output())
	if ce == (Extents{32, 24, 1}) {
		t.Fatal("cartesian grid should differ from the polar extents")
	}
	out := readVoxels(t, c, a, cart.Output())
	if out[0] != common.PackVoxel(0, 0, 0, 255) {
		t.Errorf("corner outside the aperture = %#x, want opaque black", out[0])
	}
	mid := ce.Depth/2 + (ce.Length/2)*ce.Depth
	if out[mid] != common.PackVoxel(200, 200, 200, 255) {
		t.Errorf("centre voxel = %#x, want 200", out[mid])
	}

	pe := extents(t, a, polar.Output())
	for _, ax := range [][2]uint32{{pe.Depth, 32}, {pe.Length, 24}, {pe.Width, 1}} {
		if d := int(ax[0]) - int(ax[1]); d < -2 || d > 2 {
			t.Fatalf("round trip extents %+v, want 32x24x1 within 2", pe)
		}
	}
	back := readVoxels(t, c, a, polar.Output())
	centre := pe.Depth/2 + (pe.Length/2)*pe.Depth
	if back[centre] != common.PackVoxel(200, 200, 200, 255) {
		t.Errorf("round trip centre = %#x, want 200", back[centre])
	}
	if pv, _ := a.Get(polar.Output()); pv.Ratio != 0.25 || pv.Delta != 0.03 {
		t.Errorf("geometry not carried downstream: ratio %v delta %v", pv.Ratio, pv.Delta)
	}
}

func TestDegenerateConversionCopies(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	gray := make([]byte, 3*3*3)
	for i := range gray {
		gray[i] = byte(i * 9)
	}
	src := insertGray(t, c, a, 3, 3, 3, gray)
	want := readVoxels(t, c, a, src)

	for _, kind := range []Kind{KindToCartesian, KindToPolar} {
		f := newFilter(t, kind, c, a, nil)
		run(t, f, src)
		if e := extents(t, a, f.Output()); e != (Extents{3, 3, 3}) {
			t.Fatalf("%v extents = %+v, want passthrough", kind, e)
		}
		got := readVoxels(t, c, a, f.Output())
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%v voxel %d = %#x, want %#x", kind, i, got[i], want[i])
			}
		}
	}
}

func TestOptions(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	f := newFilter(t, KindClamp, c, a, nil)
	opts := f.Options()
	if opts.Name != "clamp" || len(opts.Leaves()) != 6 {
		t.Fatalf("options %q with %d leaves", opts.Name, len(opts.Leaves()))
	}
	if err := opts.Set("depth_hi", 1.7); err != nil {
		t.Fatal(err)
	}
	if err := opts.Set("width_lo", -3); err != nil {
		t.Fatal(err)
	}
	p := f.Params().(*ClampParams)
	if p.DepthHi != 1 || p.WidthLo != 0 {
		t.Errorf("params not clamped: %+v", p)
	}
	if err := opts.Set("gain", 0.3); err == nil {
		t.Error("Set of an unknown option should fail")
	}

	if err := f.SetParams(&ClampParams{DepthHi: 0.25}); err != nil {
		t.Fatal(err)
	}
	if v := opts.Find("depth_hi").Value(); v != 0.25 {
		t.Errorf("leaf reads %v after SetParams, want 0.25", v)
	}
}

func TestSetParamsWrongKind(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	f := newFilter(t, KindThreshold, c, a, nil)
	if err := f.SetParams(&ContrastParams{}); err == nil {
		t.Error("SetParams with another kind's params should fail")
	}
	if _, err := New(KindThreshold, c, a, WithParams(&FadeParams{})); err == nil {
		t.Error("New with another kind's params should fail")
	}
}

func TestNewParams(t *testing.T) {
	p, err := NewParams(KindSlice, map[string]float32{"axis": 0.9, "position": 2})
	if err != nil {
		t.Fatal(err)
	}
	if s := p.(*SliceParams); s.Axis != 0.9 || s.Position != 1 {
		t.Errorf("params = %+v", s)
	}
	if _, err := NewParams(KindInvert, map[string]float32{"cutoff": 1}); err == nil {
		t.Error("unknown control should fail")
	}
	if k, err := ParseKind("to_polar"); err != nil || k != KindToPolar {
		t.Errorf("ParseKind(to_polar) = %v, %v", k, err)
	}
}

func TestReleaseDestroysOutput(t *testing.T) {
	c, a := newHostContext(t), volume.NewArena()
	f := newFilter(t, KindInvert, c, a, nil)
	f.Release()
	if a.Valid(f.Output()) {
		t.Error("output still valid after Release")
	}
}

func TestFilterShadersCompile(t *testing.T) {
	progs, err := Programs()
	if err != nil {
		t.Fatalf("Programs: %v", err)
	}
	if len(progs) != len(Kinds()) {
		t.Fatalf("%d programs for %d kinds", len(progs), len(Kinds()))
	}
	for _, p := range progs {
		t.Run(p.Name(), func(t *testing.T) {
			s := p.Shader(shader.ShaderTypeCompute)
			if p.Host() == nil || s == nil {
				t.Fatal("program needs both a shader and a host kernel")
			}
			if err := s.Validate(); err != nil {
				t.Skipf("naga: %v", err)
			}
		})
	}
}
