package compute

import (
	_ "embed"
	"math"

	"github.com/Carmen-Shannon/oxy-sono/common"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
)

//go:embed assets/render_volume.wgsl
var renderVolumeSource string

//go:embed assets/blit.wgsl
var blitSource string

const (
	renderProgramName = "render_volume"
	blitProgramName   = "blit"

	// renderMaxSteps caps the samples taken along one ray.
	renderMaxSteps = 1024
)

// BuiltinPrograms builds the programs every Context registers on its own: the volume ray
// caster and the display blit. They are exposed for offline validation.
//
// Returns:
//   - []program.Program: the render and blit programs
//   - error: a shader parse error
func BuiltinPrograms() ([]program.Program, error) {
	render, err := newRenderProgram()
	if err != nil {
		return nil, err
	}
	blit, err := newBlitProgram()
	if err != nil {
		return nil, err
	}
	return []program.Program{render, blit}, nil
}

func newRenderProgram() (program.Program, error) {
	s, err := shader.NewShaderFromSource(renderProgramName, shader.ShaderTypeCompute, renderVolumeSource)
	if err != nil {
		return nil, err
	}
	return program.NewProgram(renderProgramName, program.ProgramTypeCompute,
		program.WithComputeShader(s),
		program.WithHostFunc(hostRenderVolume),
	), nil
}

func newBlitProgram() (program.Program, error) {
	vs, err := shader.NewShaderFromSource(blitProgramName+"_vs", shader.ShaderTypeVertex, blitSource)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShaderFromSource(blitProgramName+"_fs", shader.ShaderTypeFragment, blitSource)
	if err != nil {
		return nil, err
	}
	return program.NewProgram(blitProgramName, program.ProgramTypeRender,
		program.WithVertexShader(vs),
		program.WithFragmentShader(fs),
	), nil
}

// hostRenderVolume mirrors render_volume.wgsl on the CPU with the same float32 math.
func hostRenderVolume(args []any, span program.Span) {
	pixels := args[0].([]uint32)
	fw, fh := args[1].(uint32), args[2].(uint32)
	d, l, w := args[3].(uint32), args[4].(uint32), args[5].(uint32)
	volume := args[6].([]uint32)
	inv := args[7].([12]float32)

	ext := [3]float32{float32(l), float32(d), float32(w)}
	maxEdge := max(ext[0], ext[1], ext[2])
	half := [3]float32{ext[0] / maxEdge, ext[1] / maxEdge, ext[2] / maxEdge}
	origin := [3]float32{inv[3], inv[7], inv[11]}
	dt := 1 / maxEdge
	aspect := float32(fw) / float32(fh)
	black := common.PackVoxel(0, 0, 0, 255)

	for y := span.Lo[1]; y < span.Hi[1] && y < fh; y++ {
		for x := span.Lo[0]; x < span.Hi[0] && x < fw; x++ {
			u := (2*(float32(x)+0.5)/float32(fw) - 1) * aspect
			v := 1 - 2*(float32(y)+0.5)/float32(fh)
			c := [3]float32{u, v, -2}
			dir := normalize3([3]float32{
				inv[0]*c[0] + inv[1]*c[1] + inv[2]*c[2],
				inv[4]*c[0] + inv[5]*c[1] + inv[6]*c[2],
				inv[8]*c[0] + inv[9]*c[1] + inv[10]*c[2],
			})

			near, far := rayBox(origin, dir, half)
			out := x + y*fw
			if near >= far {
				pixels[out] = black
				continue
			}

			steps := min(uint32(math.Ceil(float64((far-near)/dt))), renderMaxSteps)
			var m uint8
			for i := uint32(0); i < steps; i++ {
				t := near + (float32(i)+0.5)*dt
				if t > far {
					break
				}
				px := origin[0] + dir[0]*t
				py := origin[1] + dir[1]*t
				pz := origin[2] + dir[2]*t
				fy := (px + half[0]) / (2 * half[0]) * ext[0]
				fx := (half[1] - py) / (2 * half[1]) * ext[1]
				fz := (pz + half[2]) / (2 * half[2]) * ext[2]
				idx := sampleIndex(fx, d) + sampleIndex(fy, l)*d + sampleIndex(fz, w)*d*l
				r, _, _, _ := common.UnpackVoxel(volume[idx])
				m = max(m, r)
			}
			pixels[out] = common.PackVoxel(m, m, m, 255)
		}
	}
}

func sampleIndex(f float32, n uint32) uint32 {
	return min(uint32(max(f, 0)), n-1)
}

func normalize3(v [3]float32) [3]float32 {
	n := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if n == 0 {
		return v
	}
	return [3]float32{v[0] / n, v[1] / n, v[2] / n}
}

// rayBox returns the entry and exit distances of a ray through an origin-centred box. The
// entry distance is clamped to zero so a camera inside the box starts at its eye.
func rayBox(origin, dir, half [3]float32) (float32, float32) {
	near, far := float32(0), float32(math.Inf(1))
	for i := range 3 {
		d := dir[i]
		if float32(math.Abs(float64(d))) < 1e-8 {
			d = 1e-8
		}
		inv := 1 / d
		t0 := (-half[i] - origin[i]) * inv
		t1 := (half[i] - origin[i]) * inv
		near = max(near, min(t0, t1))
		far = min(far, max(t0, t1))
	}
	return near, far
}
