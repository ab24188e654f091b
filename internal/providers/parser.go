package providers

import "strings"

// ProviderRef is one entry of a provider list such as "voyage|openai:team".
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := ProviderRef{Raw: p}
		if name, alias, ok := strings.Cut(p, ":"); ok {
			ref.Name = strings.TrimSpace(name)
			ref.KeyAlias = strings.TrimSpace(alias)
		} else {
			ref.Name = p
		}
		out = append(out, ref)
	}
	return out
}
