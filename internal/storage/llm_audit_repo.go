package storage

import (
	"context"
	"fmt"

	"paperlens/internal/models"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

// RecordCall stores one generation call. A paper id that is not a UUID is
// stored as NULL.
func (r *LLMAuditRepo) RecordCall(ctx context.Context, c models.LLMCall) error {
	paperID := c.PaperID
	if !validID(paperID) {
		paperID = ""
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, paper_id, provider_name, model, status, error_type, latency_ms)
VALUES ($1, NULLIF($2,'')::uuid, $3, NULLIF($4,''), $5, NULLIF($6,''), $7)`,
		c.Operation, paperID, c.Provider, c.Model, c.Status, c.ErrorType, c.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
