package kernel

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

type fakeBuffer struct {
	size     uint64
	released int
}

func (f *fakeBuffer) Label() string { return "fake" }
func (f *fakeBuffer) Size() uint64  { return f.size }
func (f *fakeBuffer) Release()      { f.released++ }

func TestSetArgTypes(t *testing.T) {
	k := NewKernel("test", 7)
	buf := &fakeBuffer{size: 64}

	cases := []struct {
		slot int
		v    any
		kind ArgKind
	}{
		{0, uint32(7), ArgKindU32},
		{1, uint8(200), ArgKindU32},
		{2, 3, ArgKindU32},
		{3, float32(0.5), ArgKindF32},
		{4, 0.25, ArgKindF32},
		{5, [12]float32{1}, ArgKindTransform},
		{6, buf, ArgKindBuffer},
	}
	for _, c := range cases {
		if err := k.SetArg(c.slot, c.v); err != nil {
			t.Fatalf("SetArg(%d, %T): %v", c.slot, c.v, err)
		}
		a, ok := k.Arg(c.slot)
		if !ok || a.Kind != c.kind {
			t.Errorf("Arg(%d) = %+v ok=%v, want kind %v", c.slot, a, ok, c.kind)
		}
	}
	if a, _ := k.Arg(1); a.U32 != 200 {
		t.Errorf("uint8 slot = %d, want 200", a.U32)
	}
	if err := k.Validate(); err != nil {
		t.Errorf("Validate after binding every slot: %v", err)
	}
}

func TestSetArgRejects(t *testing.T) {
	k := NewKernel("test", 2)
	bad := []struct {
		slot int
		v    any
	}{
		{-1, uint32(1)},
		{2, uint32(1)},
		{0, "string"},
		{0, -4},
		{0, []float32{1, 2}},
	}
	for _, c := range bad {
		if err := k.SetArg(c.slot, c.v); !errors.Is(err, ErrArgType) {
			t.Errorf("SetArg(%d, %v) = %v, want ErrArgType", c.slot, c.v, err)
		}
	}
}

func TestValidateReportsUnsetSlot(t *testing.T) {
	k := NewKernel("test", 3)
	_ = k.SetArg(0, uint32(1))
	_ = k.SetArg(2, uint32(1))
	err := k.Validate()
	if !errors.Is(err, ErrArgNotSet) {
		t.Fatalf("Validate() = %v, want ErrArgNotSet", err)
	}
}

func TestArgsPersistAcrossRebind(t *testing.T) {
	k := NewKernel("test", 2, WithGlobal(4, 5, 6))
	_ = k.SetArg(0, uint32(1))
	_ = k.SetArg(1, uint32(2))
	_ = k.SetArg(0, uint32(9))

	if a, _ := k.Arg(1); a.U32 != 2 {
		t.Errorf("slot 1 = %d, want 2 (untouched)", a.U32)
	}
	if a, _ := k.Arg(0); a.U32 != 9 {
		t.Errorf("slot 0 = %d, want 9", a.U32)
	}
	if k.Global() != [3]uint32{4, 5, 6} {
		t.Errorf("Global() = %v, want [4 5 6]", k.Global())
	}
	k.SetGlobal(1, 2, 3)
	if k.Global() != [3]uint32{1, 2, 3} {
		t.Errorf("Global() = %v, want [1 2 3]", k.Global())
	}
}

func TestArgBytes(t *testing.T) {
	u := Arg{Kind: ArgKindU32, U32: 0xdeadbeef}.Bytes()
	if len(u) != 16 || binary.LittleEndian.Uint32(u) != 0xdeadbeef {
		t.Errorf("u32 bytes = %x", u)
	}
	f := Arg{Kind: ArgKindF32, F32: 1.5}.Bytes()
	if math.Float32frombits(binary.LittleEndian.Uint32(f)) != 1.5 {
		t.Errorf("f32 bytes = %x", f)
	}
	var tr [12]float32
	tr[11] = 4
	b := Arg{Kind: ArgKindTransform, Transform: tr}.Bytes()
	if len(b) != 48 || math.Float32frombits(binary.LittleEndian.Uint32(b[44:])) != 4 {
		t.Errorf("transform bytes = %x", b)
	}
	if (Arg{Kind: ArgKindBuffer}).Bytes() != nil {
		t.Error("buffer arg should have no uniform payload")
	}
}
