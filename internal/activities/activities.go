package activities

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"paperlens/internal/ingest"
	"paperlens/internal/logging"
	"paperlens/internal/pdftext"
	"paperlens/internal/util"
)

// Application error types that workflows branch on. Both are non-retryable.
const (
	ErrTypeNoExtractableText = "NoExtractableText"
	ErrTypeValidation        = "Validation"
)

type Activities struct {
	ingest *ingest.Service
	log    *zap.Logger
}

func New(svc *ingest.Service, log *zap.Logger) *Activities {
	return &Activities{ingest: svc, log: logging.OrNop(log)}
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	doc, err := pdftext.ExtractFile(in.PaperPath)
	if err != nil {
		if errors.Is(err, util.ErrNoExtractableText) {
			return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoExtractableText, err)
		}
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{Text: doc.Text, PageCount: doc.PageCount, Title: doc.Title}, nil
}

func (a *Activities) StorePaperActivity(ctx context.Context, in StorePaperInput) (StorePaperOutput, error) {
	res, err := a.ingest.StorePaper(ctx, ingest.Input{ID: in.PaperID, Title: in.Title, Text: in.Text})
	if err != nil {
		if errors.Is(err, util.ErrValidation) {
			return StorePaperOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeValidation, err)
		}
		return StorePaperOutput{}, err
	}
	return StorePaperOutput{
		PaperID:       res.Paper.ID,
		Title:         res.Paper.Title,
		CitationStyle: string(res.Style),
		Citations:     res.Citations,
	}, nil
}

// IndexPaperActivity reads the stored text back rather than taking it as
// input, keeping large papers out of workflow history twice.
func (a *Activities) IndexPaperActivity(ctx context.Context, in IndexPaperInput) (IndexPaperOutput, error) {
	n, err := a.ingest.Reindex(ctx, in.PaperID)
	if err != nil {
		return IndexPaperOutput{}, err
	}
	return IndexPaperOutput{Chunks: n}, nil
}

func (a *Activities) RemoveUploadActivity(ctx context.Context, in RemoveUploadInput) error {
	_ = ctx
	if err := os.Remove(in.PaperPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	a.log.Debug("upload removed", zap.String("path", in.PaperPath))
	return nil
}
