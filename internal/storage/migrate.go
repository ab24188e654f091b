package storage

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it is missing. dim is the embedding width
// and must match the configured provider.
func Migrate(ctx context.Context, db *DB, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("migrate: embedding dimension must be positive, got %d", dim)
	}
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS papers (
  id UUID PRIMARY KEY,
  title TEXT NOT NULL,
  authors TEXT[],
  year INT,
  raw_text TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS citations (
  id UUID PRIMARY KEY,
  paper_id UUID NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  citation_key TEXT NOT NULL,
  raw_reference TEXT,
  context_in_paper TEXT,
  cited_title TEXT,
  cited_abstract TEXT,
  cited_authors TEXT[],
  cited_year INT,
  cited_doi TEXT,
  cited_external_id TEXT,
  relevance_explanation TEXT,
  enriched BOOLEAN NOT NULL DEFAULT FALSE,
  enrichment_failed BOOLEAN NOT NULL DEFAULT FALSE,
  failure_reason TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  enriched_at TIMESTAMPTZ,
  UNIQUE (paper_id, citation_key),
  CHECK (NOT (enriched AND enrichment_failed))
);

CREATE TABLE IF NOT EXISTS paper_chunks (
  paper_id UUID NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  chunk_index INT NOT NULL,
  content TEXT NOT NULL,
  embedding vector(%d),
  PRIMARY KEY (paper_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation TEXT NOT NULL,
  paper_id UUID,
  provider_name TEXT NOT NULL,
  model TEXT,
  status TEXT NOT NULL,
  error_type TEXT,
  latency_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_citations_paper ON citations(paper_id);
CREATE INDEX IF NOT EXISTS idx_paper_chunks_embedding ON paper_chunks USING hnsw (embedding vector_cosine_ops);
`, dim)
	if _, err := db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
