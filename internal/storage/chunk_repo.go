package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperlens/internal/models"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks swaps a paper's chunks in one transaction.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, paperID string, chunks []models.Chunk) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM paper_chunks WHERE paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		var emb any
		if len(c.Embedding) > 0 {
			emb = pgvector.NewVector(c.Embedding)
		}
		batch.Queue(`
INSERT INTO paper_chunks (paper_id, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4::text::vector)`, paperID, c.ChunkIndex, c.Content, emb)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}
