package volume

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/kernel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrSizeMismatch is returned when a grayscale source does not hold exactly depth*length*width bytes.
	ErrSizeMismatch = errors.New("volume size mismatch")

	// ErrInvalidHandle is returned when a handle does not refer to a live volume.
	ErrInvalidHandle = errors.New("invalid volume handle")
)

// Volume is a 3D voxel grid of packed RGBA samples with its scan geometry and the device
// buffer holding it. The buffer is owned exclusively by the Volume.
//
// Voxel (x, y, z) lives at x + y*Depth + z*Depth*Length, with x along depth, y along length
// and z along width.
type Volume struct {
	Depth, Length, Width uint32

	// Raw holds the expanded RGBA bytes of a loaded scan. Filter outputs leave it nil.
	Raw []byte

	// Buffer is nil until Upload or Resize allocates it. Its size is always ByteSize().
	Buffer kernel.Buffer

	// Min and Max are the intensity range of the source scan, carried downstream unchanged.
	Min, Max float32

	// Ratio is the near to far radial ratio of the scan and Delta the angle in radians
	// between adjacent scan lines.
	Ratio, Delta float32

	// Modified marks the contents as changed since the last pipeline pass consumed them.
	Modified bool
}

// New expands a grayscale scan into a Volume. Each byte v becomes the voxel (v, v, v, 255).
//
// Parameters:
//   - depth, length, width: the grid extents
//   - gray: one intensity byte per voxel in linear index order
//
// Returns:
//   - *Volume: the volume with Raw populated and no device buffer
//   - error: ErrSizeMismatch if len(gray) != depth*length*width
func New(depth, length, width uint32, gray []byte) (*Volume, error) {
	n := uint64(depth) * uint64(length) * uint64(width)
	if uint64(len(gray)) != n {
		return nil, fmt.Errorf("%dx%dx%d needs %d samples, got %d: %w", depth, length, width, n, len(gray), ErrSizeMismatch)
	}

	words := make([]uint32, n)
	for i, v := range gray {
		words[i] = common.PackVoxel(v, v, v, 255)
	}
	raw := make([]byte, n*4)
	copy(raw, common.SliceToBytes(words))

	v := &Volume{
		Depth:  depth,
		Length: length,
		Width:  width,
		Raw:    raw,
	}
	if n > 0 {
		f := toFloats(gray)
		v.Min = float32(floats.Min(f))
		v.Max = float32(floats.Max(f))
	}
	return v, nil
}

// Voxels returns depth*length*width.
func (v *Volume) Voxels() uint64 {
	return uint64(v.Depth) * uint64(v.Length) * uint64(v.Width)
}

// ByteSize returns the size of the device buffer in bytes, four per voxel.
func (v *Volume) ByteSize() uint64 {
	return v.Voxels() * 4
}

// Upload copies Raw into a newly allocated device buffer sized to the current extents. Any
// previously held buffer is released and replaced. The volume is marked modified.
//
// Parameters:
//   - ctx: the compute context to allocate from
//
// Returns:
//   - error: an allocation or size error
func (v *Volume) Upload(ctx compute.Context) error {
	if v.Raw != nil && uint64(len(v.Raw)) != v.ByteSize() {
		return fmt.Errorf("raw holds %d bytes, extents need %d: %w", len(v.Raw), v.ByteSize(), ErrSizeMismatch)
	}
	buf, err := ctx.PrepareVolume(v.Depth, v.Length, v.Width, v.Raw)
	if err != nil {
		return err
	}
	v.Release()
	v.Buffer = buf
	v.Modified = true
	return nil
}

// Resize sets new extents and reallocates the device buffer when the extents changed or no
// buffer is held. Reallocation discards the old contents.
//
// Parameters:
//   - ctx: the compute context to allocate from
//   - depth, length, width: the new extents
//
// Returns:
//   - error: an allocation error
func (v *Volume) Resize(ctx compute.Context, depth, length, width uint32) error {
	if v.Buffer != nil && v.Depth == depth && v.Length == length && v.Width == width {
		return nil
	}
	buf, err := ctx.PrepareVolume(depth, length, width, nil)
	if err != nil {
		return err
	}
	v.Release()
	v.Depth, v.Length, v.Width = depth, length, width
	v.Raw = nil
	v.Buffer = buf
	return nil
}

// CopyMeta copies the intensity range and scan geometry from src.
func (v *Volume) CopyMeta(src *Volume) {
	v.Min, v.Max = src.Min, src.Max
	v.Ratio, v.Delta = src.Ratio, src.Delta
}

// Release frees the device buffer. The extents and metadata are kept.
func (v *Volume) Release() {
	if v.Buffer != nil {
		v.Buffer.Release()
		v.Buffer = nil
	}
}

// Stats returns the mean and standard deviation of a grayscale scan. Fewer than two samples
// report a zero deviation.
//
// Parameters:
//   - gray: the intensity samples
//
// Returns:
//   - float64: the mean
//   - float64: the sample standard deviation
func Stats(gray []byte) (float64, float64) {
	switch len(gray) {
	case 0:
		return 0, 0
	case 1:
		return float64(gray[0]), 0
	}
	return stat.MeanStdDev(toFloats(gray), nil)
}

func toFloats(gray []byte) []float64 {
	f := make([]float64, len(gray))
	for i, v := range gray {
		f[i] = float64(v)
	}
	return f
}
