package embeddings

import (
	"math"
)

// Cosine returns the cosine similarity of two vectors, zero when either
// is empty, mismatched, or degenerate.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - Cosine.
func CosineDistance(a, b []float32) float64 {
	return 1.0 - Cosine(a, b)
}

// Mean returns the arithmetic mean of the vectors. All inputs must share
// one dimension; vectors that do not are skipped.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(count))
	}
	return out
}

// L2Normalize scales the vector to unit length in place and returns it.
// The zero vector is returned unchanged.
func L2Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
