package workflows

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"paperlens/internal/activities"
)

const QueryGetIngestStatus = "GetIngestStatus"

const noTextReason = "no extractable text found (likely scanned)"

// PaperIDFor derives the paper id from the workflow id, so every attempt of
// one ingestion writes the same paper.
func PaperIDFor(workflowID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("paperlens/ingest/"+workflowID)).String()
}

// PaperIngestWorkflow turns an uploaded PDF into a stored paper with
// citations and indexed chunks. A PDF without a text layer ends in status
// failed rather than as a workflow error.
func PaperIngestWorkflow(ctx workflow.Context, input PaperIngestInput) (string, error) {
	filename := input.Filename
	if filename == "" {
		filename = filepath.Base(input.PaperPath)
	}
	status := IngestStatus{
		Filename:    filename,
		CurrentStep: "init",
		Status:      StatusProcessing,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = StatusProcessing
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{PaperPath: input.PaperPath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			status.Status = StatusFailed
			status.FailReason = noTextReason
			status.Steps[status.CurrentStep] = StatusFailed
			removeUpload(ctx, input)
			return status.Status, nil
		}
		return "", err
	}
	status.PageCount = textOut.PageCount
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "store_paper"
	status.Steps[status.CurrentStep] = StatusProcessing
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSpace(textOut.Title)
	}
	var storeOut activities.StorePaperOutput
	if err := workflow.ExecuteActivity(ctx, "StorePaperActivity", activities.StorePaperInput{
		PaperID: PaperIDFor(workflow.GetInfo(ctx).WorkflowExecution.ID),
		Title:   title,
		Text:    textOut.Text,
	}).Get(ctx, &storeOut); err != nil {
		return "", err
	}
	status.PaperID = storeOut.PaperID
	status.Title = storeOut.Title
	status.CitationStyle = storeOut.CitationStyle
	status.Citations = storeOut.Citations
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "index_chunks"
	status.Steps[status.CurrentStep] = StatusProcessing
	var indexOut activities.IndexPaperOutput
	if err := workflow.ExecuteActivity(ctx, "IndexPaperActivity", activities.IndexPaperInput{PaperID: storeOut.PaperID}).Get(ctx, &indexOut); err != nil {
		// The paper is usable without chunks; question answering falls
		// back to its full text.
		workflow.GetLogger(ctx).Warn("chunk indexing failed", "paper_id", storeOut.PaperID, "error", err)
		status.Steps[status.CurrentStep] = StatusFailed
	} else {
		status.Chunks = indexOut.Chunks
		status.Steps[status.CurrentStep] = "done"
	}

	removeUpload(ctx, input)
	status.CurrentStep = "done"
	status.Status = StatusProcessed
	return status.Status, nil
}

// removeUpload deletes the uploaded PDF once it reached a terminal state.
// Failures are ignored; a leftover file only costs disk space.
func removeUpload(ctx workflow.Context, input PaperIngestInput) {
	if input.KeepUpload {
		return
	}
	_ = workflow.ExecuteActivity(ctx, "RemoveUploadActivity", activities.RemoveUploadInput{PaperPath: input.PaperPath}).Get(ctx, nil)
}

func isNoTextError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeNoExtractableText {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}
