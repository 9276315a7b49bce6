package volume

import (
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-sono/common"
)

// phantomTarget is a bright point reflector in cartesian scan space (far radius 1).
type phantomTarget struct {
	dep, lat, ele, radius float64
}

var phantomTargets = []phantomTarget{
	{dep: 0.35, lat: -0.12, ele: 0, radius: 0.02},
	{dep: 0.50, lat: 0.10, ele: 0, radius: 0.02},
	{dep: 0.75, lat: -0.05, ele: 0, radius: 0.025},
	{dep: 0.90, lat: 0.15, ele: 0, radius: 0.025},
}

const (
	phantomShellDepth     = 0.62
	phantomShellRadius    = 0.16
	phantomShellThickness = 0.025
)

// Phantom synthesises a polar sweep of a speckled medium holding a spherical shell and a row
// of point reflectors. It stands in for a scan when none is configured. A degenerate
// geometry is sampled as if it were a plain cartesian grid.
//
// Parameters:
//   - depth, length, width: the polar extents
//   - ratio: the near to far radial ratio
//   - delta: the angle between scan lines in radians
//
// Returns:
//   - *Volume: the volume with Raw populated
func Phantom(depth, length, width uint32, ratio, delta float32) *Volume {
	g, polar := PolarGeometry(ratio, delta, depth, length, width)
	rng := rand.New(rand.NewPCG(0x6f7879, 0x736f6e6f))

	gray := make([]byte, uint64(depth)*uint64(length)*uint64(width))
	for k := range width {
		for j := range length {
			for i := range depth {
				var dep, lat, ele float64
				if polar {
					r := g.Ratio + float64(i)*g.Spacing
					theta := (float64(j) - float64(length-1)/2) * g.Delta
					phi := (float64(k) - float64(width-1)/2) * g.Delta
					lat = r * math.Sin(theta)
					ele = r * math.Cos(theta) * math.Sin(phi)
					dep = r * math.Cos(theta) * math.Cos(phi)
				} else {
					dep = unit(i, depth)
					lat = unit(j, length) - 0.5
					ele = unit(k, width) - 0.5
				}
				gray[uint64(i)+uint64(j)*uint64(depth)+uint64(k)*uint64(depth)*uint64(length)] = phantomSample(dep, lat, ele, rng)
			}
		}
	}

	v, _ := New(depth, length, width, gray)
	v.Ratio, v.Delta = ratio, delta
	return v
}

func phantomSample(dep, lat, ele float64, rng *rand.Rand) byte {
	for _, t := range phantomTargets {
		if math.Hypot(math.Hypot(dep-t.dep, lat-t.lat), ele-t.ele) < t.radius {
			return 255
		}
	}
	d := math.Hypot(math.Hypot(dep-phantomShellDepth, lat), ele)
	if math.Abs(d-phantomShellRadius) < phantomShellThickness {
		return 200 + byte(rng.IntN(40))
	}
	// Speckle, attenuated with depth.
	return common.ClampByte((20 + rng.Float64()*40) * (1 - 0.5*dep))
}

func unit(i, n uint32) float64 {
	if n < 2 {
		return 0.5
	}
	return float64(i) / float64(n-1)
}
