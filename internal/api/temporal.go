package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"paperlens/internal/util"
	"paperlens/internal/workflows"
)

const ingestWorkflowPrefix = "paper-ingest-"

// TemporalRunner runs PaperIngestWorkflow on a Temporal cluster.
type TemporalRunner struct {
	client    tclient.Client
	taskQueue string
}

func NewTemporalRunner(c tclient.Client, taskQueue string) *TemporalRunner {
	return &TemporalRunner{client: c, taskQueue: taskQueue}
}

func (t *TemporalRunner) StartIngest(ctx context.Context, in workflows.PaperIngestInput) (string, error) {
	we, err := t.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                    ingestWorkflowPrefix + uuid.NewString(),
		TaskQueue:             t.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.PaperIngestWorkflow, in)
	if err != nil {
		return "", fmt.Errorf("start ingest workflow: %w", err)
	}
	return we.GetID(), nil
}

func (t *TemporalRunner) IngestStatus(ctx context.Context, workflowID string) (workflows.IngestStatus, error) {
	if !strings.HasPrefix(workflowID, ingestWorkflowPrefix) {
		return workflows.IngestStatus{}, fmt.Errorf("workflow %s: %w", workflowID, util.ErrNotFound)
	}
	val, err := t.client.QueryWorkflow(ctx, workflowID, "", workflows.QueryGetIngestStatus)
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return workflows.IngestStatus{}, fmt.Errorf("workflow %s: %w", workflowID, util.ErrNotFound)
		}
		return workflows.IngestStatus{}, fmt.Errorf("query ingest status: %w", err)
	}
	var st workflows.IngestStatus
	if err := val.Get(&st); err != nil {
		return workflows.IngestStatus{}, fmt.Errorf("decode ingest status: %w", err)
	}
	return st, nil
}
