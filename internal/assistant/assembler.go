package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"paperlens/internal/citations"
	"paperlens/internal/logging"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

const (
	DefaultTopK                 = 8
	DefaultFallbackContextChars = 80000
	DefaultCitationWindow       = 600
	TruncationMarker            = "\n\n[... paper truncated for context ...]"
	NoCitations                 = "None identified"

	explainMaxTokens       = 1024
	defaultGenerateTimeout = 60 * time.Second
)

const systemPreamble = "You are a helpful assistant that explains research papers. The user is reading a paper and has selected a passage. " +
	"Use the relevant paper sections below only for context. Focus on explaining the selected passage clearly: definitions, intuition, " +
	"and how it fits the paper. When a citation near the passage is listed, use what is known about it where it helps. " +
	"Be concise but complete. If the user asks follow-up questions, answer in the same helpful tone."

type PaperStore interface {
	GetPaper(ctx context.Context, id string) (models.Paper, error)
}

type CitationLister interface {
	ListByPaper(ctx context.Context, paperID string) ([]models.Citation, error)
}

// Enricher resolves a citation on demand. Implementations return the row
// unchanged when enrichment was already attempted.
type Enricher interface {
	Enrich(ctx context.Context, paperID string, c models.Citation) (models.Citation, error)
}

type SimilarChunks interface {
	Similar(ctx context.Context, paperID, text string, topK int) ([]models.ChunkMatch, error)
}

type Deps struct {
	Papers    PaperStore
	Citations CitationLister
	Enricher  Enricher
	Similar   SimilarChunks
	LLM       providers.LLMProvider

	TopK                 int
	FallbackContextChars int
	CitationWindow       int
	GenerateTimeout      time.Duration
	Logger               *zap.Logger
}

type Request struct {
	PaperID      string           `json:"paper_id"`
	SelectedText string           `json:"selected_text"`
	History      []models.Message `json:"messages,omitempty"`
}

type Response struct {
	Reply     string            `json:"reply"`
	Citations []models.Citation `json:"citations"`
}

// Assembler answers questions about a passage of a paper, grounding the
// model in retrieved sections and the citations around the passage.
type Assembler struct {
	d   Deps
	log *zap.Logger
}

func NewAssembler(d Deps) *Assembler {
	if d.TopK <= 0 {
		d.TopK = DefaultTopK
	}
	if d.FallbackContextChars <= 0 {
		d.FallbackContextChars = DefaultFallbackContextChars
	}
	if d.CitationWindow <= 0 {
		d.CitationWindow = DefaultCitationWindow
	}
	if d.GenerateTimeout <= 0 {
		d.GenerateTimeout = defaultGenerateTimeout
	}
	return &Assembler{d: d, log: logging.OrNop(d.Logger)}
}

func (a *Assembler) Explain(ctx context.Context, req Request) (Response, error) {
	if err := req.validate(); err != nil {
		return Response{}, err
	}
	paper, err := a.d.Papers.GetPaper(ctx, req.PaperID)
	if err != nil {
		return Response{}, fmt.Errorf("get paper: %w", err)
	}
	if a.d.LLM == nil || !a.d.LLM.Available() {
		return Response{}, fmt.Errorf("explain passage: %w", util.ErrProviderUnavailable)
	}

	sections := a.PaperContext(ctx, paper, req.SelectedText)
	nearby, err := a.NearbyCitations(ctx, paper, req.SelectedText)
	if err != nil {
		return Response{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.d.GenerateTimeout)
	defer cancel()
	resp, info, err := a.d.LLM.Generate(callCtx, providers.GenerateRequest{
		Operation: providers.OpExplainPassage,
		PaperID:   req.PaperID,
		System:    SystemPrompt(req.SelectedText, sections, CitationsBlock(nearby)),
		Messages:  Conversation(req.SelectedText, req.History),
		MaxTokens: explainMaxTokens,
	})
	if err != nil {
		a.log.Warn("explanation failed",
			zap.String("paper_id", req.PaperID),
			zap.String("provider", info.Name),
			zap.String("error_type", string(providers.ClassifyError(err))),
			zap.Error(err))
		return Response{}, fmt.Errorf("generate explanation: %w", err)
	}
	if nearby == nil {
		nearby = []models.Citation{}
	}
	return Response{Reply: resp.Text, Citations: nearby}, nil
}

// PaperContext returns the paper sections most similar to the selection,
// or the paper's full text cut to the fallback budget when retrieval
// yields nothing or fails.
func (a *Assembler) PaperContext(ctx context.Context, paper models.Paper, selected string) string {
	if a.d.Similar != nil {
		matches, err := a.d.Similar.Similar(ctx, paper.ID, selected, a.d.TopK)
		if err == nil && len(matches) > 0 {
			return FormatSections(matches)
		}
		if err != nil {
			a.log.Debug("chunk retrieval failed, using full text",
				zap.String("paper_id", paper.ID), zap.Error(err))
		}
	}
	return FallbackContext(paper.RawText, a.d.FallbackContextChars)
}

// NearbyCitations returns the paper's citations cited within the window
// around the first occurrence of selected, enriching any that have not
// been attempted. A failed enrichment keeps the stored row.
func (a *Assembler) NearbyCitations(ctx context.Context, paper models.Paper, selected string) ([]models.Citation, error) {
	if a.d.Citations == nil {
		return nil, nil
	}
	body := citations.BodyText(strings.ReplaceAll(paper.RawText, "\r\n", "\n"))
	start, end, ok := selectionSpan(body, selected)
	if !ok {
		return nil, nil
	}
	all, err := a.d.Citations.ListByPaper(ctx, paper.ID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}

	// The window counts characters, not bytes.
	lo, hi := start-a.d.CitationWindow, end+a.d.CitationWindow
	var out []models.Citation
	for _, c := range all {
		if !citedWithin(body, c.CitationKey, lo, hi) {
			continue
		}
		if !c.Attempted() && a.d.Enricher != nil {
			enriched, err := a.d.Enricher.Enrich(ctx, paper.ID, c)
			if err != nil {
				a.log.Warn("nearby citation enrichment failed",
					zap.String("paper_id", paper.ID),
					zap.String("citation_key", c.CitationKey),
					zap.Error(err))
			} else {
				c = enriched
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// selectionSpan locates selected in body and returns its rune span.
func selectionSpan(body, selected string) (int, int, bool) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return 0, 0, false
	}
	i := strings.Index(body, selected)
	if i < 0 {
		return 0, 0, false
	}
	start := utf8.RuneCountInString(body[:i])
	return start, start + utf8.RuneCountInString(selected), true
}

// citedWithin reports whether key is cited at a rune offset in [lo, hi].
func citedWithin(body, key string, lo, hi int) bool {
	for _, pos := range citations.RuneOffsets(body, citations.Occurrences(body, key)) {
		if pos >= lo && pos <= hi {
			return true
		}
	}
	return false
}

func (r Request) validate() error {
	if strings.TrimSpace(r.PaperID) == "" || strings.TrimSpace(r.SelectedText) == "" {
		return fmt.Errorf("paper_id and selected_text are required: %w", util.ErrValidation)
	}
	for i, m := range r.History {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return fmt.Errorf("message %d has role %q: %w", i, m.Role, util.ErrValidation)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d is empty: %w", i, util.ErrValidation)
		}
	}
	return nil
}
