package volume

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"golang.org/x/image/tiff"
)

func newHostContext(t *testing.T) compute.Context {
	t.Helper()
	c, err := compute.NewContext(compute.BackendTypeHost, compute.WithWorkers(2))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewExpandsGrayscale(t *testing.T) {
	gray := bytes.Repeat([]byte{77}, 2*3*4)
	v, err := New(2, 3, 4, gray)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.ByteSize() != 2*3*4*4 || uint64(len(v.Raw)) != v.ByteSize() {
		t.Fatalf("ByteSize() = %d, len(Raw) = %d", v.ByteSize(), len(v.Raw))
	}
	for i := 0; i < len(v.Raw); i += 4 {
		if v.Raw[i] != 77 || v.Raw[i+1] != 77 || v.Raw[i+2] != 77 || v.Raw[i+3] != 255 {
			t.Fatalf("voxel %d = %v, want (77,77,77,255)", i/4, v.Raw[i:i+4])
		}
	}
	if v.Min != 77 || v.Max != 77 {
		t.Errorf("range = [%v, %v], want [77, 77]", v.Min, v.Max)
	}
}

func TestNewSizeMismatch(t *testing.T) {
	if _, err := New(2, 2, 2, make([]byte, 7)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("New with 7 samples = %v, want ErrSizeMismatch", err)
	}
}

func TestNewRange(t *testing.T) {
	v, err := New(4, 1, 1, []byte{9, 200, 3, 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.Min != 3 || v.Max != 200 {
		t.Errorf("range = [%v, %v], want [3, 200]", v.Min, v.Max)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	c := newHostContext(t)
	v, _ := New(3, 2, 2, bytes.Repeat([]byte{128}, 12))
	if err := v.Upload(c); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if v.Buffer.Size() != v.ByteSize() {
		t.Fatalf("buffer size = %d, want %d", v.Buffer.Size(), v.ByteSize())
	}
	if !v.Modified {
		t.Error("Upload should mark the volume modified")
	}
	got, err := c.ReadBuffer(v.Buffer, 0, v.ByteSize())
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if !bytes.Equal(got, v.Raw) {
		t.Errorf("device contents differ from Raw")
	}

	first := v.Buffer
	if err := v.Upload(c); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if v.Buffer == first {
		t.Error("re-upload should replace the buffer")
	}
}

func TestResizeReallocatesOnlyOnChange(t *testing.T) {
	c := newHostContext(t)
	v := &Volume{}
	if err := v.Resize(c, 4, 4, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	first := v.Buffer
	if err := v.Resize(c, 4, 4, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if v.Buffer != first {
		t.Error("same extents should keep the buffer")
	}
	if err := v.Resize(c, 2, 4, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if v.Buffer == first || v.Buffer.Size() != 2*4*4*4 {
		t.Errorf("new extents should reallocate to %d bytes, got %d", 2*4*4*4, v.Buffer.Size())
	}
}

func TestStats(t *testing.T) {
	mean, std := Stats([]byte{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(std-2.138) > 0.01 {
		t.Errorf("std = %v, want ~2.138", std)
	}
	if m, s := Stats(nil); m != 0 || s != 0 {
		t.Errorf("Stats(nil) = %v, %v", m, s)
	}
}

func TestLoadRaw(t *testing.T) {
	cases := []struct {
		n       int
		wantErr bool
	}{
		{8, false},
		{7, true},
		{9, true},
	}
	for _, c := range cases {
		_, err := LoadRaw(bytes.NewReader(make([]byte, c.n)), 2, 2, 2)
		if c.wantErr && !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("LoadRaw(%d bytes) = %v, want ErrSizeMismatch", c.n, err)
		}
		if !c.wantErr && err != nil {
			t.Errorf("LoadRaw(%d bytes): %v", c.n, err)
		}
	}
}

func TestLoadRawFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.raw")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 5, 6}, 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := LoadRawFile(path, 3, 2, 1)
	if err != nil {
		t.Fatalf("LoadRawFile: %v", err)
	}
	if v.Raw[4*4] != 5 {
		t.Errorf("voxel 4 = %d, want 5", v.Raw[4*4])
	}
}

func TestLoadTIFFStack(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for z := range 3 {
		img := image.NewGray(image.Rect(0, 0, 5, 4))
		for y := range 4 {
			for x := range 5 {
				img.SetGray(x, y, color.Gray{Y: uint8(z*100 + y*10 + x)})
			}
		}
		path := filepath.Join(dir, "slice"+string(rune('a'+z))+".tif")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := tiff.Encode(f, img, nil); err != nil {
			t.Fatal(err)
		}
		f.Close()
		paths = append(paths, path)
	}

	v, err := LoadTIFFStack(paths)
	if err != nil {
		t.Fatalf("LoadTIFFStack: %v", err)
	}
	if v.Depth != 4 || v.Length != 5 || v.Width != 3 {
		t.Fatalf("extents = %dx%dx%d, want 4x5x3", v.Depth, v.Length, v.Width)
	}
	// Row 2, column 3 of page 1.
	i := 2 + 3*4 + 1*4*5
	if got := v.Raw[i*4]; got != 123 {
		t.Errorf("voxel (2,3,1) = %d, want 123", got)
	}
}

func TestArenaGenerations(t *testing.T) {
	a := NewArena()
	var zero Handle
	if a.Valid(zero) {
		t.Fatal("zero handle must be invalid")
	}

	h1 := a.Insert(&Volume{Depth: 1})
	if !a.Valid(h1) || a.Len() != 1 {
		t.Fatalf("inserted handle invalid or Len() = %d", a.Len())
	}
	a.Destroy(h1)
	if a.Valid(h1) || a.Len() != 0 {
		t.Fatal("destroyed handle still valid")
	}
	if _, err := a.Lookup(h1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Lookup(destroyed) = %v, want ErrInvalidHandle", err)
	}

	h2 := a.Insert(&Volume{Depth: 2})
	if h2.index != h1.index {
		t.Fatalf("slot not reused: %v vs %v", h2, h1)
	}
	if a.Valid(h1) {
		t.Error("old handle became valid after slot reuse")
	}
	if v, ok := a.Get(h2); !ok || v.Depth != 2 {
		t.Errorf("Get(h2) = %v, %v", v, ok)
	}
	a.Destroy(h1)
	if !a.Valid(h2) {
		t.Error("destroying a stale handle affected the live one")
	}
}

func TestArenaDestroyReleasesBuffer(t *testing.T) {
	c := newHostContext(t)
	v := &Volume{}
	if err := v.Resize(c, 2, 2, 2); err != nil {
		t.Fatal(err)
	}
	a := NewArena()
	h := a.Insert(v)
	a.Destroy(h)
	if v.Buffer != nil {
		t.Error("Destroy should release the device buffer")
	}
}

func TestPolarGeometryDegenerate(t *testing.T) {
	cases := []struct {
		ratio, delta float32
		depth        uint32
	}{
		{0.2, 0, 16},
		{1, 0.01, 16},
		{-0.1, 0.01, 16},
		{0.2, 0.01, 1},
		{0.2, 1, 16},
	}
	for _, c := range cases {
		if _, ok := PolarGeometry(c.ratio, c.delta, c.depth, 8, 8); ok {
			t.Errorf("PolarGeometry(%v, %v, %d) should be degenerate", c.ratio, c.delta, c.depth)
		}
	}
}

// The extent formula is a modelling choice; the round trip only has to land close.
func TestGeometryRoundTripExtents(t *testing.T) {
	cases := []struct {
		ratio, delta         float32
		depth, length, width uint32
	}{
		{0.25, 0.03, 32, 24, 1},
		{0.2, 0.02, 64, 48, 16},
		{0.5, 0.05, 20, 10, 10},
	}
	for _, c := range cases {
		g, ok := PolarGeometry(c.ratio, c.delta, c.depth, c.length, c.width)
		if !ok {
			t.Fatalf("PolarGeometry(%+v) degenerate", c)
		}
		back, ok := SolvePolarGeometry(c.ratio, c.delta, g.CartDepth, g.CartLength, g.CartWidth)
		if !ok {
			t.Fatalf("SolvePolarGeometry(%+v) degenerate", c)
		}
		for _, ax := range [][2]uint32{{back.Depth, c.depth}, {back.Length, c.length}, {back.Width, c.width}} {
			if d := int(ax[0]) - int(ax[1]); d < -2 || d > 2 {
				t.Errorf("%+v: round trip extents %dx%dx%d", c, back.Depth, back.Length, back.Width)
				break
			}
		}
	}
}

func TestGeometryPointRoundTrip(t *testing.T) {
	g, ok := PolarGeometry(0.2, 0.02, 64, 48, 16)
	if !ok {
		t.Fatal("degenerate")
	}
	for _, p := range [][3]float64{{0, 0, 0}, {63, 47, 15}, {31, 12, 7}} {
		x, y, z := g.ToCartesian(p[0], p[1], p[2])
		i, j, k := g.ToPolar(x, y, z)
		if math.Abs(i-p[0]) > 1e-6 || math.Abs(j-p[1]) > 1e-6 || math.Abs(k-p[2]) > 1e-6 {
			t.Errorf("%v -> (%v,%v,%v) -> (%v,%v,%v)", p, x, y, z, i, j, k)
		}
		if _, ok := NearestIndex(x, g.CartDepth); !ok {
			t.Errorf("%v maps outside the cartesian depth axis: %v", p, x)
		}
	}
}

func TestPhantom(t *testing.T) {
	v := Phantom(32, 24, 8, 0.2, 0.03)
	if v.Voxels() != 32*24*8 || v.Ratio != 0.2 || v.Delta != 0.03 {
		t.Fatalf("phantom %dx%dx%d ratio %v delta %v", v.Depth, v.Length, v.Width, v.Ratio, v.Delta)
	}
	if v.Max != 255 {
		t.Errorf("phantom max = %v, want a 255 reflector", v.Max)
	}
	for i := 3; i < len(v.Raw); i += 4 {
		if v.Raw[i] != 255 {
			t.Fatalf("voxel %d alpha = %d", i/4, v.Raw[i])
		}
	}
}
