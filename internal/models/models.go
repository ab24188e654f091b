package models

import "time"

type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors,omitempty"`
	Year      *int      `json:"year,omitempty"`
	RawText   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCitation is a citation as produced by extraction, before it has a row.
type NewCitation struct {
	CitationKey    string  `json:"citation_key"`
	RawReference   *string `json:"raw_reference,omitempty"`
	ContextInPaper *string `json:"context_in_paper,omitempty"`
}

type Citation struct {
	ID                   string     `json:"id"`
	PaperID              string     `json:"paper_id"`
	CitationKey          string     `json:"citation_key"`
	RawReference         *string    `json:"raw_reference,omitempty"`
	ContextInPaper       *string    `json:"context_in_paper,omitempty"`
	CitedTitle           *string    `json:"cited_title,omitempty"`
	CitedAbstract        *string    `json:"cited_abstract,omitempty"`
	CitedAuthors         []string   `json:"cited_authors,omitempty"`
	CitedYear            *int       `json:"cited_year,omitempty"`
	CitedDOI             *string    `json:"cited_doi,omitempty"`
	CitedExternalID      *string    `json:"cited_external_id,omitempty"`
	RelevanceExplanation *string    `json:"relevance_explanation,omitempty"`
	Enriched             bool       `json:"enriched"`
	EnrichmentFailed     bool       `json:"enrichment_failed"`
	FailureReason        *string    `json:"failure_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	EnrichedAt           *time.Time `json:"enriched_at,omitempty"`
}

// Attempted reports whether enrichment already reached a terminal state.
func (c Citation) Attempted() bool {
	return c.Enriched || c.EnrichmentFailed
}

// Enrichment is the set of fields written by the single enrichment step.
type Enrichment struct {
	CitedTitle           *string
	CitedAbstract        *string
	CitedAuthors         []string
	CitedYear            *int
	CitedDOI             *string
	CitedExternalID      *string
	RelevanceExplanation *string
	Enriched             bool
	EnrichmentFailed     bool
	FailureReason        *string
}

// LLMCall is one audited text generation call.
type LLMCall struct {
	Operation string
	PaperID   string
	Provider  string
	Model     string
	Status    string
	ErrorType string
	LatencyMS int64
}

type Chunk struct {
	PaperID    string    `json:"paper_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

type ChunkMatch struct {
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StringPtr returns nil for blank strings so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
