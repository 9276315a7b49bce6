package common

import (
	"math"
	"unsafe"

	"gonum.org/v1/gonum/mat"
)

// Identity writes the 4x4 identity into m.
func Identity(m []float32) {
	clear(m[:16])
	for i := 0; i < 16; i += 5 {
		m[i] = 1
	}
}

// SliceToBytes reinterprets a slice as its raw bytes for buffer uploads. The result aliases
// data, so writes through either are visible in both.
//
// Parameters:
//   - data: source slice of any fixed-size element type
//
// Returns:
//   - []byte: byte view of data, or nil if data is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	n := int(unsafe.Sizeof(data[0])) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n)
}

// Invert4 inverts a 4x4 column-major matrix with gonum's LU based inverse. A singular or
// badly conditioned matrix leaves out untouched.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if out now holds the inverse
func Invert4(out, m []float32) bool {
	// Loading column-major data row-major gives the transpose, and the inverse of the
	// transpose read back the same way is the inverse.
	src := make([]float64, 16)
	for i := range src {
		src[i] = float64(m[i])
	}
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, src)); err != nil {
		return false
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = float32(inv.At(r, c))
		}
	}
	return true
}

type vec3 [3]float32

func (a vec3) sub(b vec3) vec3 { return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func (a vec3) dot(b vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a vec3) cross(b vec3) vec3 {
	return vec3{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

// unit normalises a, leaving a zero vector as is.
func (a vec3) unit() vec3 {
	l := float32(math.Sqrt(float64(a.dot(a))))
	if l == 0 {
		return a
	}
	return vec3{a[0] / l, a[1] / l, a[2] / l}
}

// LookAt writes the right-handed view matrix of an eye looking at center, column-major.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eyeX, eyeY, eyeZ: eye position
//   - centerX, centerY, centerZ: point looked at
//   - upX, upY, upZ: world up, usually +Y
func LookAt(out []float32, eyeX, eyeY, eyeZ, centerX, centerY, centerZ, upX, upY, upZ float32) {
	eye := vec3{eyeX, eyeY, eyeZ}
	back := eye.sub(vec3{centerX, centerY, centerZ}).unit()
	right := vec3{upX, upY, upZ}.cross(back).unit()
	up := back.cross(right)

	for i, axis := range [3]vec3{right, up, back} {
		out[i], out[4+i], out[8+i] = axis[0], axis[1], axis[2]
		out[12+i] = -axis.dot(eye)
	}
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// TransformRows extracts the upper 3x4 block of a column-major 4x4 matrix as three
// row vectors (x, y, z, translation). This is the layout the volume render kernel
// consumes as its inverse view transform.
//
// Parameters:
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - [12]float32: rows 0..2, each as 4 consecutive floats
func TransformRows(m []float32) [12]float32 {
	return [12]float32{
		m[0], m[4], m[8], m[12],
		m[1], m[5], m[9], m[13],
		m[2], m[6], m[10], m[14],
	}
}

// PackVoxel packs four 8-bit channels into one little-endian RGBA word.
func PackVoxel(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// UnpackVoxel splits a packed RGBA word into its channels.
func UnpackVoxel(v uint32) (r, g, b, a uint8) {
	return uint8(v), uint8(v >> 8), uint8(v >> 16), uint8(v >> 24)
}

// DivCeil returns ceil(n / d) for unsigned integers. A zero divisor returns n.
func DivCeil(n, d uint32) uint32 {
	if d == 0 {
		return n
	}
	return (n + d - 1) / d
}
