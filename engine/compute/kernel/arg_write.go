package kernel

import (
	"encoding/binary"
	"math"
)

func putU32(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
