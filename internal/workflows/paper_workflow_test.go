package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"paperlens/internal/activities"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

// registerIngestActivities registers placeholders for every activity and
// returns a pointer to the number of upload removals.
func registerIngestActivities(env *testsuite.TestWorkflowEnvironment) *int {
	removed := 0
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "StorePaperActivity", func(context.Context, activities.StorePaperInput) (activities.StorePaperOutput, error) {
		return activities.StorePaperOutput{}, nil
	})
	registerActivityName(env, "IndexPaperActivity", func(context.Context, activities.IndexPaperInput) (activities.IndexPaperOutput, error) {
		return activities.IndexPaperOutput{}, nil
	})
	registerActivityName(env, "RemoveUploadActivity", func(context.Context, activities.RemoveUploadInput) error {
		removed++
		return nil
	})
	return &removed
}

func TestPaperIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	env.SetStartWorkflowOptions(client.StartWorkflowOptions{ID: "paper-ingest-test"})
	removed := registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{PaperPath: "/tmp/p.pdf"}).
		Return(activities.ExtractTextOutput{Text: "title\nbody [1]", PageCount: 3, Title: "Info Title"}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, activities.StorePaperInput{PaperID: PaperIDFor("paper-ingest-test"), Title: "Info Title", Text: "title\nbody [1]"}).
		Return(activities.StorePaperOutput{PaperID: "paper123", Title: "Info Title", CitationStyle: "numbered", Citations: 1}, nil)
	env.OnActivity("IndexPaperActivity", mock.Anything, activities.IndexPaperInput{PaperID: "paper123"}).
		Return(activities.IndexPaperOutput{Chunks: 4}, nil)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusProcessed, out)
	require.Equal(t, 1, *removed)

	val, err := env.QueryWorkflow(QueryGetIngestStatus)
	require.NoError(t, err)
	var st IngestStatus
	require.NoError(t, val.Get(&st))
	require.Equal(t, "paper123", st.PaperID)
	require.Equal(t, "p.pdf", st.Filename)
	require.Equal(t, 3, st.PageCount)
	require.Equal(t, 1, st.Citations)
	require.Equal(t, 4, st.Chunks)
	require.Equal(t, "done", st.Steps["index_chunks"])
}

func TestPaperIDForIsStable(t *testing.T) {
	id := PaperIDFor("paper-ingest-1")
	require.Equal(t, id, PaperIDFor("paper-ingest-1"))
	require.NotEqual(t, id, PaperIDFor("paper-ingest-2"))
	require.Len(t, id, 36)
}

func TestPaperIngestWorkflowPrefersGivenTitle(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	env.SetStartWorkflowOptions(client.StartWorkflowOptions{ID: "paper-ingest-test"})
	removed := registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{Text: "text", Title: "Microsoft Word - draft.docx"}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, activities.StorePaperInput{PaperID: PaperIDFor("paper-ingest-test"), Title: "Real Title", Text: "text"}).
		Return(activities.StorePaperOutput{PaperID: "p1", Title: "Real Title"}, nil)
	env.OnActivity("IndexPaperActivity", mock.Anything, mock.Anything).Return(activities.IndexPaperOutput{}, nil)

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf", Title: "Real Title", KeepUpload: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Zero(t, *removed)
}

func TestPaperIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	env.SetStartWorkflowOptions(client.StartWorkflowOptions{ID: "paper-ingest-test"})
	removed := registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{}, temporal.NewNonRetryableApplicationError("no extractable text found in PDF (likely scanned)", activities.ErrTypeNoExtractableText, nil))

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out)
	require.Equal(t, 1, *removed)

	val, err := env.QueryWorkflow(QueryGetIngestStatus)
	require.NoError(t, err)
	var st IngestStatus
	require.NoError(t, val.Get(&st))
	require.Equal(t, "no extractable text found (likely scanned)", st.FailReason)
	require.Empty(t, st.PaperID)
}

func TestPaperIngestWorkflowIndexFailureStillProcessed(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "text"}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, mock.Anything).Return(activities.StorePaperOutput{PaperID: "p1"}, nil)
	env.OnActivity("IndexPaperActivity", mock.Anything, mock.Anything).Return(activities.IndexPaperOutput{}, errors.New("connection refused"))

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusProcessed, out)
}

func TestPaperIngestWorkflowStoreFailureFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "text"}, nil)
	env.OnActivity("StorePaperActivity", mock.Anything, mock.Anything).
		Return(activities.StorePaperOutput{}, temporal.NewNonRetryableApplicationError("text is required", activities.ErrTypeValidation, nil))

	env.ExecuteWorkflow(PaperIngestWorkflow, PaperIngestInput{PaperPath: "/tmp/p.pdf"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
