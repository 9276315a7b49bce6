package filter

import (
	"math"

	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// Extents is the depth, length and width of a volume.
type Extents struct {
	Depth, Length, Width uint32
}

func extentsOf(v *volume.Volume) Extents {
	return Extents{v.Depth, v.Length, v.Width}
}

// outputExtents applies a kind's extent rule to the input extents.
func outputExtents(p Params, in Extents, ratio, delta float32) Extents {
	switch p := p.(type) {
	case *ClampParams:
		d0, d1 := clampBounds(p.DepthLo, p.DepthHi, in.Depth)
		l0, l1 := clampBounds(p.LengthLo, p.LengthHi, in.Length)
		w0, w1 := clampBounds(p.WidthLo, p.WidthHi, in.Width)
		return Extents{d1 - d0, l1 - l0, w1 - w0}
	case *ShrinkParams:
		return Extents{halfExtent(in.Depth), halfExtent(in.Length), halfExtent(in.Width)}
	case *SliceParams:
		axis, _ := sliceArgs(p, in)
		dims := [3]uint32{in.Depth, in.Length, in.Width}
		dims[axis] = min(dims[axis], 1)
		return Extents{dims[0], dims[1], dims[2]}
	case *ToCartesianParams:
		if g, ok := volume.PolarGeometry(ratio, delta, in.Depth, in.Length, in.Width); ok {
			return Extents{g.CartDepth, g.CartLength, g.CartWidth}
		}
	case *ToPolarParams:
		if g, ok := volume.SolvePolarGeometry(ratio, delta, in.Depth, in.Length, in.Width); ok {
			return Extents{g.Depth, g.Length, g.Width}
		}
	}
	return in
}

// clampBounds returns the half-open range kept along an axis of n samples. It uses float32
// arithmetic so it agrees with the clamp kernel.
func clampBounds(lo, hi float32, n uint32) (uint32, uint32) {
	if n == 0 {
		return 0, 0
	}
	nf := float32(n)
	a := uint32(min(max(float32(math.Floor(float64(lo*nf))), 0), nf))
	b := uint32(min(max(float32(math.Floor(float64(hi*nf))), 0), nf))
	if b <= a {
		b = min(a+1, n)
		a = b - 1
	}
	return a, b
}

func halfExtent(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return max(1, (n+1)/2)
}

// sliceArgs returns the axis (0 depth, 1 length, 2 width) and the plane index along it.
func sliceArgs(p *SliceParams, in Extents) (uint32, uint32) {
	axis := min(2, uint32(math.Floor(float64(p.Axis)*3)))
	n := [3]uint32{in.Depth, in.Length, in.Width}[axis]
	if n == 0 {
		return axis, 0
	}
	return axis, min(n-1, uint32(math.Floor(float64(p.Position)*float64(n))))
}

// thresholdCutoff scales a [0, 1] cutoff to the smallest passing channel value, so that
// s >= cutoff*255 holds exactly for integer samples. The tolerance absorbs float32 error in c.
func thresholdCutoff(c float32) uint32 {
	return uint32(math.Ceil(float64(c)*255 - 1e-4))
}
