package filter

import (
	"embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sono/engine/compute/program"
	"github.com/Carmen-Shannon/oxy-sono/engine/compute/shader"
)

//go:embed assets/*.wgsl
var assets embed.FS

type kernelSource struct {
	file string
	host program.HostFunc
}

var kernelSources = map[Kind]kernelSource{
	KindThreshold:   {"threshold.wgsl", hostThreshold},
	KindClamp:       {"clamp.wgsl", hostClamp},
	KindInvert:      {"invert.wgsl", hostInvert},
	KindContrast:    {"contrast.wgsl", hostContrast},
	KindLog2:        {"log2.wgsl", hostLog2},
	KindSqrt:        {"sqrt.wgsl", hostSqrt},
	KindFade:        {"fade.wgsl", hostFade},
	KindShrink:      {"shrink.wgsl", hostShrink},
	KindSlice:       {"slice.wgsl", hostSlice},
	KindToCartesian: {"to_cartesian.wgsl", hostToCartesian},
	KindToPolar:     {"to_polar.wgsl", hostToPolar},
}

// Program builds the compute program of a filter kind. The program is named after the kind.
//
// Parameters:
//   - kind: the filter kind
//
// Returns:
//   - program.Program: the program, ready for registration
//   - error: an error if the kind is unknown or its WGSL does not parse
func Program(kind Kind) (program.Program, error) {
	ks, ok := kernelSources[kind]
	if !ok {
		return nil, fmt.Errorf("unknown filter kind %v", kind)
	}
	src, err := assets.ReadFile("assets/" + ks.file)
	if err != nil {
		return nil, err
	}
	s, err := shader.NewShaderFromSource(kind.String(), shader.ShaderTypeCompute, string(src))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", kind, err)
	}
	return program.NewProgram(kind.String(), program.ProgramTypeCompute,
		program.WithComputeShader(s),
		program.WithHostFunc(ks.host),
	), nil
}

// Programs builds the program of every filter kind.
func Programs() ([]program.Program, error) {
	out := make([]program.Program, 0, len(kernelSources))
	for _, k := range Kinds() {
		p, err := Program(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
