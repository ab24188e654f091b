package providers

import (
	"context"
	"strings"

	"paperlens/internal/models"
)

// Operation names carried on requests; the mock provider keys its canned
// output off them and they show up in logs.
const (
	OpCitationRelevance = "citation_relevance"
	OpExplainPassage    = "explain_passage"
	OpEmbedChunks       = "embed_chunks"
	OpEmbedQuery        = "embed_query"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string           `json:"operation"`
	PaperID   string           `json:"paper_id,omitempty"`
	System    string           `json:"system,omitempty"`
	Messages  []models.Message `json:"messages,omitempty"`
	Prompt    string           `json:"prompt,omitempty"`
	Context   []string         `json:"context,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Turns returns the conversation to send. A request without explicit
// messages becomes a single user turn built from Prompt and Context.
func (r GenerateRequest) Turns() []models.Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	prompt := r.Prompt
	if len(r.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(r.Context, "\n\n")
	}
	return []models.Message{{Role: models.RoleUser, Content: prompt}}
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
	// InputType is "document" or "query" for providers that distinguish them.
	InputType string `json:"input_type,omitempty"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
	Available() bool
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
	Available() bool
}
