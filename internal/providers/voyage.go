package providers

import (
	"context"
	"fmt"
	"time"
)

// VoyageProvider embeds text with Voyage AI. It is preferred over OpenAI
// when both keys are present.
type VoyageProvider struct {
	keyName string
	ep      endpoint
	model   string
}

func NewVoyageProvider(keyName string, opts ...Option) *VoyageProvider {
	return &VoyageProvider{
		keyName: keyName,
		ep:      newEndpoint("https://api.voyageai.com", resolveKey("VOYAGE", keyName), 60*time.Second, opts),
		model:   envOr("PAPERLENS_VOYAGE_MODEL", "voyage-3.5"),
	}
}

func (v *VoyageProvider) Available() bool { return v.ep.apiKey != "" }

func (v *VoyageProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "voyage", Model: v.model, Key: v.keyName}
	if !v.Available() {
		return nil, info, fmt.Errorf("voyage key missing for alias %q", v.keyName)
	}
	inputType := req.InputType
	if inputType == "" {
		inputType = "document"
	}
	payload := map[string]any{
		"model":      v.model,
		"input":      req.Inputs,
		"input_type": inputType,
	}
	var parsed indexedEmbeddings
	err := v.ep.postJSON(ctx, "/v1/embeddings", map[string]string{"Authorization": "Bearer " + v.ep.apiKey}, payload, &parsed)
	if err != nil {
		return nil, info, fmt.Errorf("voyage embedding request failed: %w", err)
	}
	return parsed.vectors(), info, nil
}
