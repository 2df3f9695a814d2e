package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wmarzella/ronin/internal/common"
)

// Embeddings are persisted as little-endian float32 blobs alongside the
// producing model name and dimension. A blob whose length disagrees with
// its recorded dimension fails loudly rather than feeding garbage into
// centroid math.

// encodeVector serializes a float32 vector to a little-endian blob.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a blob, verifying it against the recorded
// dimension.
func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob length %d not a multiple of 4", common.ErrPermanent, len(blob))
	}
	n := len(blob) / 4
	if dim > 0 && n != dim {
		return nil, fmt.Errorf("%w: embedding blob holds %d values, recorded dimension is %d", common.ErrPermanent, n, dim)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
