package filter

import (
	"math"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/volume"
)

// The host kernels below mirror the WGSL kernels in assets/ for the CPU backend. Each one
// only touches the output voxels inside its span.

func eachVoxel(span program.Span, fn func(x, y, z uint32)) {
	for z := span.Lo[2]; z < span.Hi[2]; z++ {
		for y := span.Lo[1]; y < span.Hi[1]; y++ {
			for x := span.Lo[0]; x < span.Hi[0]; x++ {
				fn(x, y, z)
			}
		}
	}
}

func channel(v float32) uint8 {
	return common.ClampByte(float64(v))
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

// hostRemap builds a host kernel applying fn to each color channel. fn receives the sample,
// the depth coordinate, the depth extent and the scalar in slot 5.
func hostRemap(fn func(s float32, x, d uint32, p float32) float32) program.HostFunc {
	return func(args []any, span program.Span) {
		d, l := args[0].(uint32), args[1].(uint32)
		src, dst := args[3].([]uint32), args[4].([]uint32)
		p := args[5].(float32)
		eachVoxel(span, func(x, y, z uint32) {
			i := x + y*d + z*d*l
			r, g, b, a := common.UnpackVoxel(src[i])
			dst[i] = common.PackVoxel(
				channel(fn(float32(r), x, d, p)),
				channel(fn(float32(g), x, d, p)),
				channel(fn(float32(b), x, d, p)),
				a,
			)
		})
	}
}

var (
	hostContrast = hostRemap(func(s float32, _, _ uint32, gain float32) float32 {
		k := float32(math.Exp2(float64(4 * (gain - 0.5))))
		return (s-128)*k + 128
	})

	hostLog2 = hostRemap(func(s float32, _, _ uint32, strength float32) float32 {
		return mix(s, 255*float32(math.Log2(float64(1+s)))/8, strength)
	})

	hostSqrt = hostRemap(func(s float32, _, _ uint32, strength float32) float32 {
		return mix(s, 255*float32(math.Sqrt(float64(s/255))), strength)
	})

	hostFade = hostRemap(func(s float32, x, d uint32, amount float32) float32 {
		return s * (1 - amount*float32(x)/float32(max(d, 2)-1))
	})
)

func hostThreshold(args []any, span program.Span) {
	d, l := args[0].(uint32), args[1].(uint32)
	src, dst := args[3].([]uint32), args[4].([]uint32)
	cutoff := args[5].(uint32)
	on := func(c uint8) uint8 {
		if uint32(c) >= cutoff {
			return 255
		}
		return 0
	}
	eachVoxel(span, func(x, y, z uint32) {
		i := x + y*d + z*d*l
		r, g, b, a := common.UnpackVoxel(src[i])
		dst[i] = common.PackVoxel(on(r), on(g), on(b), a)
	})
}

func hostInvert(args []any, span program.Span) {
	d, l := args[0].(uint32), args[1].(uint32)
	src, dst := args[3].([]uint32), args[4].([]uint32)
	eachVoxel(span, func(x, y, z uint32) {
		i := x + y*d + z*d*l
		r, g, b, a := common.UnpackVoxel(src[i])
		dst[i] = common.PackVoxel(255-r, 255-g, 255-b, a)
	})
}

func hostClamp(args []any, span program.Span) {
	d, l, w := args[0].(uint32), args[1].(uint32), args[2].(uint32)
	src, dst := args[3].([]uint32), args[4].([]uint32)
	d0, d1 := clampBounds(args[5].(float32), args[6].(float32), d)
	l0, l1 := clampBounds(args[7].(float32), args[8].(float32), l)
	w0, w1 := clampBounds(args[9].(float32), args[10].(float32), w)
	od, ol, ow := d1-d0, l1-l0, w1-w0
	eachVoxel(span, func(x, y, z uint32) {
		if x >= od || y >= ol || z >= ow {
			return
		}
		dst[x+y*od+z*od*ol] = src[(x+d0)+(y+l0)*d+(z+w0)*d*l]
	})
}

func hostShrink(args []any, span program.Span) {
	d, l, w := args[0].(uint32), args[1].(uint32), args[2].(uint32)
	src, dst := args[3].([]uint32), args[4].([]uint32)
	smooth := args[5].(float32)
	od, ol := halfExtent(d), halfExtent(l)
	eachVoxel(span, func(x, y, z uint32) {
		bx, by, bz := 2*x, 2*y, 2*z
		fr, fg, fb, fa := common.UnpackVoxel(src[bx+by*d+bz*d*l])
		var sum [3]float32
		var count float32
		for dz := range uint32(2) {
			for dy := range uint32(2) {
				for dx := range uint32(2) {
					px, py, pz := bx+dx, by+dy, bz+dz
					if px >= d || py >= l || pz >= w {
						continue
					}
					r, g, b, _ := common.UnpackVoxel(src[px+py*d+pz*d*l])
					sum[0] += float32(r)
					sum[1] += float32(g)
					sum[2] += float32(b)
					count++
				}
			}
		}
		dst[x+y*od+z*od*ol] = common.PackVoxel(
			channel(mix(float32(fr), sum[0]/count, smooth)),
			channel(mix(float32(fg), sum[1]/count, smooth)),
			channel(mix(float32(fb), sum[2]/count, smooth)),
			fa,
		)
	})
}

func hostSlice(args []any, span program.Span) {
	d, l := args[0].(uint32), args[1].(uint32)
	src, dst := args[3].([]uint32), args[4].([]uint32)
	axis, index := args[5].(uint32), args[6].(uint32)
	dims := [3]uint32{d, l, args[2].(uint32)}
	dims[axis] = 1
	eachVoxel(span, func(x, y, z uint32) {
		p := [3]uint32{x, y, z}
		p[axis] = index
		dst[x+y*dims[0]+z*dims[0]*dims[1]] = src[p[0]+p[1]*d+p[2]*d*l]
	})
}

// conversionArgs unpacks the argument layout shared by the two coordinate conversions.
type conversionArgs struct {
	src, dst     []uint32
	in, out      Extents
	ratio, delta float32
}

func newConversionArgs(args []any) conversionArgs {
	return conversionArgs{
		in:    Extents{args[0].(uint32), args[1].(uint32), args[2].(uint32)},
		src:   args[3].([]uint32),
		out:   Extents{args[4].(uint32), args[5].(uint32), args[6].(uint32)},
		dst:   args[7].([]uint32),
		ratio: args[8].(float32),
		delta: args[9].(float32),
	}
}

// copyVoxel copies the voxel at the same coordinates, or writes opaque black outside the input.
func (c conversionArgs) copyVoxel(x, y, z uint32) {
	o := x + y*c.out.Depth + z*c.out.Depth*c.out.Length
	if x < c.in.Depth && y < c.in.Length && z < c.in.Width {
		c.dst[o] = c.src[x+y*c.in.Depth+z*c.in.Depth*c.in.Length]
		return
	}
	c.dst[o] = blackVoxel
}

// sample writes the nearest input voxel to fractional input indices, or opaque black when
// they fall outside the input.
func (c conversionArgs) sample(o uint32, fi, fj, fk float64) {
	i, ok1 := volume.NearestIndex(fi, c.in.Depth)
	j, ok2 := volume.NearestIndex(fj, c.in.Length)
	k, ok3 := volume.NearestIndex(fk, c.in.Width)
	if !ok1 || !ok2 || !ok3 {
		c.dst[o] = blackVoxel
		return
	}
	c.dst[o] = c.src[i+j*c.in.Depth+k*c.in.Depth*c.in.Length]
}

var blackVoxel = common.PackVoxel(0, 0, 0, 255)

func hostToCartesian(args []any, span program.Span) {
	c := newConversionArgs(args)
	g, ok := volume.PolarGeometry(c.ratio, c.delta, c.in.Depth, c.in.Length, c.in.Width)
	if !ok || c.in == c.out {
		eachVoxel(span, c.copyVoxel)
		return
	}
	g.CartDepth, g.CartLength, g.CartWidth = c.out.Depth, c.out.Length, c.out.Width
	eachVoxel(span, func(x, y, z uint32) {
		i, j, k := g.ToPolar(float64(x), float64(y), float64(z))
		c.sample(x+y*c.out.Depth+z*c.out.Depth*c.out.Length, i, j, k)
	})
}

func hostToPolar(args []any, span program.Span) {
	c := newConversionArgs(args)
	g, ok := volume.PolarGeometry(c.ratio, c.delta, c.out.Depth, c.out.Length, c.out.Width)
	if !ok || c.in == c.out {
		eachVoxel(span, c.copyVoxel)
		return
	}
	g.CartDepth, g.CartLength, g.CartWidth = c.in.Depth, c.in.Length, c.in.Width
	eachVoxel(span, func(i, j, k uint32) {
		x, y, z := g.ToCartesian(float64(i), float64(j), float64(k))
		c.sample(i+j*c.out.Depth+k*c.out.Depth*c.out.Length, x, y, z)
	})
}
