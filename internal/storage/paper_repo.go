package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"paperlens/internal/models"
	"paperlens/internal/util"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

// InsertPaper stores p and its citations in one transaction, assigning an
// id when p has none. An id that is already stored is left untouched and
// the stored paper is returned, so a retried ingestion never duplicates it.
func (r *PaperRepo) InsertPaper(ctx context.Context, p models.Paper, cs []models.NewCitation) (models.Paper, error) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	} else if !validID(p.ID) {
		return models.Paper{}, fmt.Errorf("paper id %q: %w", p.ID, util.ErrValidation)
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.Paper{}, fmt.Errorf("begin tx insert paper: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
INSERT INTO papers (id, title, authors, year, raw_text)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
RETURNING created_at`,
		p.ID, p.Title, p.Authors, p.Year, p.RawText,
	).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return r.GetPaper(ctx, p.ID)
	}
	if err != nil {
		return models.Paper{}, fmt.Errorf("insert paper: %w", err)
	}
	if len(cs) > 0 {
		batch := &pgx.Batch{}
		queueCitations(batch, p.ID, cs)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return models.Paper{}, fmt.Errorf("insert citations: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Paper{}, fmt.Errorf("commit paper tx: %w", err)
	}
	return p, nil
}

func (r *PaperRepo) GetPaper(ctx context.Context, id string) (models.Paper, error) {
	if !validID(id) {
		return models.Paper{}, fmt.Errorf("paper %q: %w", id, util.ErrNotFound)
	}
	var p models.Paper
	err := r.db.Pool.QueryRow(ctx, `
SELECT id::text, title, authors, year, raw_text, created_at
FROM papers
WHERE id = $1`, id).Scan(&p.ID, &p.Title, &p.Authors, &p.Year, &p.RawText, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, fmt.Errorf("paper %s: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return models.Paper{}, fmt.Errorf("get paper: %w", err)
	}
	return p, nil
}
