package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeBlob packs a vector as little-endian float32s. A nil or empty vector encodes as nil (SQL NULL).
func EncodeBlob(v Vector) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// DecodeBlob is the inverse of EncodeBlob.
func DecodeBlob(b []byte) (Vector, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
