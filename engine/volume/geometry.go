package volume

import "math"

// Geometry describes a polar sweep and the cartesian grid it converts to.
//
// A polar voxel (i, j, k) is a sample at radius Ratio + i*Spacing along the scan line with
// lateral angle (j - (Length-1)/2)*Delta and elevation angle (k - (Width-1)/2)*Delta. The far
// radius is 1. The cartesian grid uses the same Spacing on every axis: x runs down from the
// shallowest sampled depth, y across the lateral aperture and z across the elevation aperture,
// both centred.
type Geometry struct {
	Ratio, Delta float64

	// Polar extents.
	Depth, Length, Width uint32

	// Cartesian extents.
	CartDepth, CartLength, CartWidth uint32

	Spacing                    float64
	HalfLateral, HalfElevation float64
	NearDepth                  float64
}

// PolarGeometry derives the conversion geometry of a polar sweep. It reports false for a
// degenerate geometry (delta <= 0, ratio outside [0, 1), fewer than two radial samples, or
// a half aperture of 90 degrees or more), which converts as a 1:1 copy.
//
// Parameters:
//   - ratio: the near to far radial ratio
//   - delta: the angle between scan lines in radians
//   - depth, length, width: the polar extents
//
// Returns:
//   - Geometry: the geometry, zero when degenerate
//   - bool: false when degenerate
func PolarGeometry(ratio, delta float32, depth, length, width uint32) (Geometry, bool) {
	r, d := float64(ratio), float64(delta)
	if d <= 0 || r < 0 || r >= 1 || depth < 2 {
		return Geometry{}, false
	}
	g := Geometry{
		Ratio:         r,
		Delta:         d,
		Depth:         depth,
		Length:        length,
		Width:         width,
		Spacing:       (1 - r) / float64(depth-1),
		HalfLateral:   float64(max(length, 1)-1) / 2 * d,
		HalfElevation: float64(max(width, 1)-1) / 2 * d,
	}
	if g.HalfLateral >= math.Pi/2 || g.HalfElevation >= math.Pi/2 {
		return Geometry{}, false
	}
	g.NearDepth = r * math.Cos(g.HalfLateral) * math.Cos(g.HalfElevation)
	g.CartDepth = cells((1-g.NearDepth)/g.Spacing) + 1
	g.CartLength = cells(2*math.Sin(g.HalfLateral)/g.Spacing) + 1
	g.CartWidth = cells(2*math.Sin(g.HalfElevation)/g.Spacing) + 1
	return g, true
}

// SolvePolarGeometry finds the polar sweep whose cartesian grid has the given extents. It is
// the inverse of PolarGeometry up to rounding, so a round trip lands within a sample or two.
//
// Parameters:
//   - ratio: the near to far radial ratio
//   - delta: the angle between scan lines in radians
//   - cartDepth, cartLength, cartWidth: the cartesian extents
//
// Returns:
//   - Geometry: the geometry, zero when degenerate
//   - bool: false when degenerate
func SolvePolarGeometry(ratio, delta float32, cartDepth, cartLength, cartWidth uint32) (Geometry, bool) {
	r, d := float64(ratio), float64(delta)
	if d <= 0 || r < 0 || r >= 1 || cartDepth < 2 {
		return Geometry{}, false
	}

	// The spacing depends on the near depth, which depends on the apertures, which depend on
	// the spacing. The map is a contraction for any ratio below 1.
	spacing := 1 / float64(cartDepth-1)
	var halfLat, halfEle float64
	for range 32 {
		halfLat = math.Asin(math.Min(1, float64(cartLength-1)*spacing/2))
		halfEle = math.Asin(math.Min(1, float64(cartWidth-1)*spacing/2))
		near := r * math.Cos(halfLat) * math.Cos(halfEle)
		next := (1 - near) / float64(cartDepth-1)
		if math.Abs(next-spacing) < 1e-12 {
			break
		}
		spacing = next
	}

	depth := uint32(math.Round((1-r)/spacing)) + 1
	length := uint32(math.Round(2*halfLat/d)) + 1
	width := uint32(math.Round(2*halfEle/d)) + 1
	g, ok := PolarGeometry(ratio, delta, depth, length, width)
	if !ok {
		return Geometry{}, false
	}
	return g, true
}

// ToCartesian maps fractional polar indices to fractional cartesian indices.
func (g Geometry) ToCartesian(i, j, k float64) (x, y, z float64) {
	r := g.Ratio + i*g.Spacing
	theta := (j - float64(max(g.Length, 1)-1)/2) * g.Delta
	phi := (k - float64(max(g.Width, 1)-1)/2) * g.Delta
	lat := r * math.Sin(theta)
	ele := r * math.Cos(theta) * math.Sin(phi)
	dep := r * math.Cos(theta) * math.Cos(phi)
	x = (dep - g.NearDepth) / g.Spacing
	y = lat/g.Spacing + float64(g.CartLength-1)/2
	z = ele/g.Spacing + float64(g.CartWidth-1)/2
	return x, y, z
}

// ToPolar maps fractional cartesian indices to fractional polar indices.
func (g Geometry) ToPolar(x, y, z float64) (i, j, k float64) {
	dep := g.NearDepth + x*g.Spacing
	lat := (y - float64(g.CartLength-1)/2) * g.Spacing
	ele := (z - float64(g.CartWidth-1)/2) * g.Spacing
	r := math.Sqrt(dep*dep + lat*lat + ele*ele)
	if r == 0 {
		return -1, -1, -1
	}
	theta := math.Asin(math.Max(-1, math.Min(1, lat/r)))
	phi := math.Atan2(ele, dep)
	i = (r - g.Ratio) / g.Spacing
	j = theta/g.Delta + float64(max(g.Length, 1)-1)/2
	k = phi/g.Delta + float64(max(g.Width, 1)-1)/2
	return i, j, k
}

// NearestIndex rounds a fractional index to the nearest sample of an axis with n samples.
//
// Returns:
//   - uint32: the sample index
//   - bool: false if v falls outside the axis
func NearestIndex(v float64, n uint32) (uint32, bool) {
	if v < -0.5 || v >= float64(n)-0.5 {
		return 0, false
	}
	return uint32(math.Max(0, math.Floor(v+0.5))), true
}

// cells returns ceil(v) with a small tolerance so exact multiples do not gain a sample.
func cells(v float64) uint32 {
	return uint32(math.Ceil(v - 1e-9))
}
