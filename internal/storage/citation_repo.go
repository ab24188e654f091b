package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"paperlens/internal/models"
	"paperlens/internal/util"
)

const citationColumns = `id::text, paper_id::text, citation_key, raw_reference, context_in_paper,
       cited_title, cited_abstract, cited_authors, cited_year, cited_doi, cited_external_id,
       relevance_explanation, enriched, enrichment_failed, failure_reason, created_at, enriched_at`

type CitationRepo struct {
	db *DB
}

func NewCitationRepo(db *DB) *CitationRepo {
	return &CitationRepo{db: db}
}

func queueCitations(batch *pgx.Batch, paperID string, cs []models.NewCitation) {
	for _, c := range cs {
		batch.Queue(`
INSERT INTO citations (id, paper_id, citation_key, raw_reference, context_in_paper)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (paper_id, citation_key) DO NOTHING`,
			uuid.NewString(), paperID, c.CitationKey, c.RawReference, c.ContextInPaper)
	}
}

// ListByPaper orders numbered keys numerically, then everything else by key.
func (r *CitationRepo) ListByPaper(ctx context.Context, paperID string) ([]models.Citation, error) {
	if !validID(paperID) {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+citationColumns+`
FROM citations
WHERE paper_id = $1
ORDER BY substring(citation_key FROM '^\[([0-9]{1,18})\]$')::bigint NULLS LAST, citation_key`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Citation, 0, 32)
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return out, nil
}

func (r *CitationRepo) GetByKey(ctx context.Context, paperID, key string) (models.Citation, error) {
	if !validID(paperID) {
		return models.Citation{}, fmt.Errorf("citation %s of paper %s: %w", key, paperID, util.ErrNotFound)
	}
	row := r.db.Pool.QueryRow(ctx, `
SELECT `+citationColumns+`
FROM citations
WHERE paper_id = $1 AND citation_key = $2`, paperID, key)
	c, err := scanCitation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Citation{}, fmt.Errorf("citation %s of paper %s: %w", key, paperID, util.ErrNotFound)
	}
	if err != nil {
		return models.Citation{}, fmt.Errorf("get citation: %w", err)
	}
	return c, nil
}

// updateEnrichmentSQL only touches rows that have not reached a terminal
// enrichment state, so the first writer wins.
const updateEnrichmentSQL = `
UPDATE citations SET
  cited_title = $2,
  cited_abstract = $3,
  cited_authors = $4,
  cited_year = $5,
  cited_doi = $6,
  cited_external_id = $7,
  relevance_explanation = $8,
  enriched = $9,
  enrichment_failed = $10,
  failure_reason = $11,
  enriched_at = NOW()
WHERE id = $1 AND NOT enriched AND NOT enrichment_failed
RETURNING ` + citationColumns

// UpdateEnrichment writes the enrichment result and stamps enriched_at. A
// citation that is already enriched or failed is left alone and returned as
// stored. It returns nil when the row no longer exists.
func (r *CitationRepo) UpdateEnrichment(ctx context.Context, id string, e models.Enrichment) (*models.Citation, error) {
	row := r.db.Pool.QueryRow(ctx, updateEnrichmentSQL,
		id, e.CitedTitle, e.CitedAbstract, e.CitedAuthors, e.CitedYear, e.CitedDOI, e.CitedExternalID,
		e.RelevanceExplanation, e.Enriched, e.EnrichmentFailed, e.FailureReason,
	)
	c, err := scanCitation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.getByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update citation enrichment: %w", err)
	}
	return &c, nil
}

func (r *CitationRepo) getByID(ctx context.Context, id string) (*models.Citation, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+citationColumns+` FROM citations WHERE id = $1`, id)
	c, err := scanCitation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload citation: %w", err)
	}
	return &c, nil
}

func scanCitation(row pgx.Row) (models.Citation, error) {
	var c models.Citation
	err := row.Scan(
		&c.ID, &c.PaperID, &c.CitationKey, &c.RawReference, &c.ContextInPaper,
		&c.CitedTitle, &c.CitedAbstract, &c.CitedAuthors, &c.CitedYear, &c.CitedDOI, &c.CitedExternalID,
		&c.RelevanceExplanation, &c.Enriched, &c.EnrichmentFailed, &c.FailureReason, &c.CreatedAt, &c.EnrichedAt,
	)
	return c, err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
