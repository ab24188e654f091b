package vector

import (
	"context"
	"fmt"

	"paperlens/internal/models"
)

type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds free text and searches one paper's chunks with it.
type Retriever struct {
	emb QueryEmbedder
	idx Index
}

func NewRetriever(emb QueryEmbedder, idx Index) *Retriever {
	return &Retriever{emb: emb, idx: idx}
}

func (r *Retriever) Similar(ctx context.Context, paperID, text string, topK int) ([]models.ChunkMatch, error) {
	q, err := r.emb.EmbedOne(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.idx.Search(ctx, paperID, q, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return matches, nil
}
