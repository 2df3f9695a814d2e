package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// FallbackModelName tags vectors produced by the local hash embedder.
// Hash vectors and API vectors live in different spaces; the model tag
// on every stored embedding keeps them from being mixed.
const FallbackModelName = "local-hash-v1"

// FallbackDimension matches the bag-of-words space the hash embedder
// projects into.
const FallbackDimension = 384

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// HashEmbedder is a deterministic, dependency-free embedder used when no
// API key is configured and in tests. Each token is hashed into one of
// the dimensions; the result is L2-normalised term frequency. Useful
// only for relative comparisons within its own space.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder. A non-positive dim falls back
// to FallbackDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = FallbackDimension
	}
	return &HashEmbedder{dim: dim}
}

// Embed produces the deterministic vector for the text.
func (h *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		sum := sha256.Sum256([]byte(token))
		// First 8 hex chars of the digest, interpreted as an integer,
		// pick the bucket.
		v, err := strconv.ParseUint(hex.EncodeToString(sum[:4]), 16, 64)
		if err != nil {
			continue
		}
		vec[v%uint64(h.dim)] += 1.0
	}
	return L2Normalize(vec)
}

// Dimension returns the vector length.
func (h *HashEmbedder) Dimension() int {
	return h.dim
}
