package interfaces

import (
	"context"
)

// EmbeddingService produces fixed-dimension embeddings for text. All
// vectors persisted to the store carry the producing model's name so a
// model change cannot silently mix vector spaces.
type EmbeddingService interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length this service produces.
	Dimension() int

	// ModelName identifies the producing model, e.g.
	// "gemini-embedding-001" or "local-hash-v1".
	ModelName() string
}
