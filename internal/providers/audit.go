package providers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/logging"
	"paperlens/internal/models"
)

type CallRecorder interface {
	RecordCall(ctx context.Context, c models.LLMCall) error
}

// AuditedLLM records every Generate call of the wrapped provider. Recording
// is best effort and never changes the call's outcome.
type AuditedLLM struct {
	LLMProvider
	rec CallRecorder
	log *zap.Logger
}

func NewAuditedLLM(p LLMProvider, rec CallRecorder, log *zap.Logger) *AuditedLLM {
	return &AuditedLLM{LLMProvider: p, rec: rec, log: logging.OrNop(log)}
}

func (a *AuditedLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	start := time.Now()
	resp, info, err := a.LLMProvider.Generate(ctx, req)
	call := models.LLMCall{
		Operation: req.Operation,
		PaperID:   req.PaperID,
		Provider:  info.Name,
		Model:     info.Model,
		Status:    "ok",
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		call.Status = "error"
		call.ErrorType = string(ClassifyError(err))
	}
	// The caller's context may already be done when the call timed out.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if recErr := a.rec.RecordCall(recCtx, call); recErr != nil {
		a.log.Debug("llm call not recorded", zap.String("operation", req.Operation), zap.Error(recErr))
	}
	return resp, info, err
}
