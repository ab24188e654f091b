package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// OllamaEmbeddingProvider supports local, free embeddings via Ollama.
// Example model: nomic-embed-text (Nomic Embed v1.5 family).
type OllamaEmbeddingProvider struct {
	alias string
	ep    endpoint
	model string
}

func NewOllamaEmbeddingProvider(alias string, opts ...Option) *OllamaEmbeddingProvider {
	baseURL := envOr("PAPERLENS_OLLAMA_BASE_URL", "http://localhost:11434")
	return &OllamaEmbeddingProvider{
		alias: alias,
		ep:    newEndpoint(baseURL, "", 90*time.Second, opts),
		model: resolveOllamaEmbedModel(alias),
	}
}

// Available is always true; a missing local daemon surfaces as a request error.
func (o *OllamaEmbeddingProvider) Available() bool { return true }

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		payload := map[string]any{"model": o.model, "prompt": text}
		if err := o.ep.postJSON(ctx, "/api/embeddings", nil, payload, &parsed); err != nil {
			return nil, info, fmt.Errorf("ollama embedding request failed: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, info, fmt.Errorf("ollama returned empty embedding")
		}
		out = append(out, matchDimension(parsed.Embedding, req.Dimension))
	}
	return out, info, nil
}

func resolveOllamaEmbedModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		key := "PAPERLENS_OLLAMA_EMBED_MODEL_" + sanitizeEnvToken(alias)
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		switch strings.ToLower(alias) {
		case "nomic":
			return "nomic-embed-text"
		case "bge":
			return "bge-small-en-v1.5"
		}
		// Allow direct model in provider list, e.g. ollama:nomic-embed-text
		if strings.ContainsAny(alias, "-/.") {
			return alias
		}
	}
	return envOr("PAPERLENS_OLLAMA_EMBED_MODEL", "nomic-embed-text")
}

func sanitizeEnvToken(s string) string {
	return strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(strings.ToUpper(s))
}

// matchDimension pads or truncates v so every vector fits the column width.
func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
