package providers

import (
	"context"
	"fmt"
	"time"
)

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	ep      endpoint
	model   string
}

func NewGroqProvider(keyName string, opts ...Option) *GroqProvider {
	return &GroqProvider{
		keyName: keyName,
		ep:      newEndpoint("https://api.groq.com/openai", resolveKey("GROQ", keyName), 60*time.Second, opts),
		model:   envOr("PAPERLENS_GROQ_MODEL", "llama-3.1-8b-instant"),
	}
}

func (g *GroqProvider) Available() bool { return g.ep.apiKey != "" }

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: g.model}
	if !g.Available() {
		return GenerateResponse{}, info, fmt.Errorf("groq key missing for alias %q", g.keyName)
	}
	text, err := chatCompletion(ctx, g.ep, g.model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}
