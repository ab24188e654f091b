package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperlens/internal/models"
)

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ChunkWriter persists a paper's chunks; storage.ChunkRepo implements it.
type ChunkWriter interface {
	ReplaceChunks(ctx context.Context, paperID string, chunks []models.Chunk) error
}

// PgIndex ranks chunks inside Postgres with pgvector's cosine distance
// operator, so ordering and LIMIT happen next to the HNSW index.
type PgIndex struct {
	q Queryer
	w ChunkWriter
}

func NewPgIndex(q Queryer, w ChunkWriter) *PgIndex {
	return &PgIndex{q: q, w: w}
}

func (p *PgIndex) Upsert(ctx context.Context, paperID string, chunks []models.Chunk) error {
	return p.w.ReplaceChunks(ctx, paperID, chunks)
}

func (p *PgIndex) Search(ctx context.Context, paperID string, query []float32, topK int) ([]models.ChunkMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	rows, err := p.q.Query(ctx, `
SELECT chunk_index,
       content,
       1 - (embedding <=> $2::text::vector) AS score
FROM paper_chunks
WHERE paper_id = $1
  AND embedding IS NOT NULL
ORDER BY embedding <=> $2::text::vector
LIMIT $3`, paperID, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkMatch, 0, topK)
	for rows.Next() {
		var r models.ChunkMatch
		if err := rows.Scan(&r.ChunkIndex, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk match: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}
