package providers

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const defaultSystemPrompt = "You are an academic paper reading assistant. Keep responses concise and grounded in the provided context."

// OpenAIProvider uses standard OpenAI REST APIs when keys are configured.
type OpenAIProvider struct {
	keyName    string
	ep         endpoint
	chatModel  string
	embedModel string
}

func NewOpenAIProvider(keyName string, opts ...Option) *OpenAIProvider {
	return &OpenAIProvider{
		keyName:    keyName,
		ep:         newEndpoint("https://api.openai.com", resolveKey("OPENAI", keyName), 60*time.Second, opts),
		chatModel:  envOr("PAPERLENS_OPENAI_MODEL", "gpt-4o-mini"),
		embedModel: envOr("PAPERLENS_OPENAI_EMBED_MODEL", "text-embedding-3-small"),
	}
}

func (o *OpenAIProvider) Available() bool { return o.ep.apiKey != "" }

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.embedModel, Key: o.keyName}
	if !o.Available() {
		return nil, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	payload := map[string]any{"model": o.embedModel, "input": req.Inputs}
	if req.Dimension > 0 && strings.HasPrefix(o.embedModel, "text-embedding-3") {
		payload["dimensions"] = req.Dimension
	}
	var parsed indexedEmbeddings
	err := o.ep.postJSON(ctx, "/v1/embeddings", map[string]string{"Authorization": "Bearer " + o.ep.apiKey}, payload, &parsed)
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	return parsed.vectors(), info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.chatModel, Key: o.keyName}
	if !o.Available() {
		return GenerateResponse{}, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	text, err := chatCompletion(ctx, o.ep, o.chatModel, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("openai generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}

// indexedEmbeddings is the OpenAI-style embeddings body, shared by Voyage.
type indexedEmbeddings struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// vectors returns embeddings in submission order. Providers do not promise
// to preserve it, so items are re-sorted by index.
func (p indexedEmbeddings) vectors() [][]float32 {
	sort.SliceStable(p.Data, func(i, j int) bool { return p.Data[i].Index < p.Data[j].Index })
	out := make([][]float32, 0, len(p.Data))
	for _, d := range p.Data {
		out = append(out, d.Embedding)
	}
	return out
}

// chatCompletion speaks the OpenAI chat API, which Groq also implements.
func chatCompletion(ctx context.Context, ep endpoint, model string, req GenerateRequest) (string, error) {
	system := req.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}
	messages := []map[string]string{{"role": "system", "content": system}}
	for _, m := range req.Turns() {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}
	payload := map[string]any{"model": model, "messages": messages}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := ep.postJSON(ctx, "/v1/chat/completions", map[string]string{"Authorization": "Bearer " + ep.apiKey}, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// resolveKey prefers PAPERLENS_<PROVIDER>_KEY_<ALIAS> and falls back to
// <PROVIDER>_API_KEY.
func resolveKey(provider, alias string) string {
	if alias != "" {
		if k := os.Getenv("PAPERLENS_" + provider + "_KEY_" + sanitizeEnvToken(alias)); k != "" {
			return k
		}
	}
	return os.Getenv(provider + "_API_KEY")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
