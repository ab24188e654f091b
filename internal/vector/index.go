package vector

import (
	"context"
	"math"

	"paperlens/internal/models"
)

const DefaultTopK = 8

// Index stores chunk embeddings partitioned by paper and answers
// nearest-neighbour queries within one paper.
type Index interface {
	// Upsert replaces every chunk stored for paperID.
	Upsert(ctx context.Context, paperID string, chunks []models.Chunk) error
	// Search returns up to topK chunks by descending cosine similarity. A
	// paper with no chunks yields an empty result, not an error.
	Search(ctx context.Context, paperID string, query []float32, topK int) ([]models.ChunkMatch, error)
}

// CosineSimilarity is dot(a,b)/(|a||b|). It is 0 when either vector has zero
// norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push self-similarity just past 1.
	return math.Max(-1, math.Min(1, sim))
}
