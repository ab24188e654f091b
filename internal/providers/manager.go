package providers

import (
	"fmt"
	"strings"

	"paperlens/internal/config"
	"paperlens/internal/util"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// ProviderStatus is reported on /healthz.
type ProviderStatus struct {
	Kind      string `json:"kind"`
	Ref       string `json:"ref"`
	Available bool   `json:"available"`
}

// Manager holds the configured providers in preference order.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return m, nil
}

// NewManagerWith builds a manager from already constructed providers.
func NewManagerWith(llms []NamedLLMProvider, embeds []NamedEmbedProvider) *Manager {
	return &Manager{llmProviders: llms, embedProviders: embeds}
}

// Embedder returns the first provider that has credentials.
func (m *Manager) Embedder() (EmbeddingProvider, ProviderRef, error) {
	for _, p := range m.embedProviders {
		if p.Provider.Available() {
			return p.Provider, p.Ref, nil
		}
	}
	return nil, ProviderRef{}, fmt.Errorf("embedding provider (tried %s): %w", joinRefs(embedRefs(m.embedProviders)), util.ErrProviderUnavailable)
}

func (m *Manager) LLM() (LLMProvider, ProviderRef, error) {
	for _, p := range m.llmProviders {
		if p.Provider.Available() {
			return p.Provider, p.Ref, nil
		}
	}
	return nil, ProviderRef{}, fmt.Errorf("llm provider (tried %s): %w", joinRefs(llmRefs(m.llmProviders)), util.ErrProviderUnavailable)
}

func (m *Manager) Status() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(m.llmProviders)+len(m.embedProviders))
	for _, p := range m.llmProviders {
		out = append(out, ProviderStatus{Kind: "llm", Ref: p.Ref.Raw, Available: p.Provider.Available()})
	}
	for _, p := range m.embedProviders {
		out = append(out, ProviderStatus{Kind: "embedding", Ref: p.Ref.Raw, Available: p.Provider.Available()})
	}
	return out
}

func llmRefs(ps []NamedLLMProvider) []ProviderRef {
	out := make([]ProviderRef, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Ref)
	}
	return out
}

func embedRefs(ps []NamedEmbedProvider) []ProviderRef {
	out := make([]ProviderRef, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Ref)
	}
	return out
}

func joinRefs(refs []ProviderRef) string {
	if len(refs) == 0 {
		return "none"
	}
	raw := make([]string, 0, len(refs))
	for _, r := range refs {
		raw = append(raw, r.Raw)
	}
	return strings.Join(raw, "|")
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "anthropic", "claude":
		return NewAnthropicProvider(ref.KeyAlias), nil
	case "voyage":
		return NewVoyageProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
