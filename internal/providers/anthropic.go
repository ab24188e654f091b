package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider calls the Messages API. It only generates text;
// Anthropic has no embedding endpoint.
type AnthropicProvider struct {
	keyName string
	ep      endpoint
	model   string
}

func NewAnthropicProvider(keyName string, opts ...Option) *AnthropicProvider {
	return &AnthropicProvider{
		keyName: keyName,
		ep:      newEndpoint("https://api.anthropic.com", resolveKey("ANTHROPIC", keyName), 90*time.Second, opts),
		model:   envOr("PAPERLENS_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
	}
}

func (a *AnthropicProvider) Available() bool { return a.ep.apiKey != "" }

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "anthropic", Model: a.model, Key: a.keyName}
	if !a.Available() {
		return GenerateResponse{}, info, fmt.Errorf("anthropic key missing for alias %q", a.keyName)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	turns := req.Turns()
	messages := make([]map[string]string, 0, len(turns))
	for _, m := range turns {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}
	payload := map[string]any{
		"model":      a.model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if strings.TrimSpace(req.System) != "" {
		payload["system"] = req.System
	}
	headers := map[string]string{
		"x-api-key":         a.ep.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := a.ep.postJSON(ctx, "/v1/messages", headers, payload, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("anthropic generate request failed: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return GenerateResponse{Text: block.Text}, info, nil
		}
	}
	return GenerateResponse{}, info, fmt.Errorf("anthropic returned no text block")
}
