package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"paperlens/internal/logging"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/scholar"
)

const (
	similarChunks          = 2
	relevanceMaxTokens     = 300
	defaultGenerateTimeout = 60 * time.Second
)

// FailureReason is stored on citations whose cited work could not be found.
var FailureReason = "Paper not found on " + scholar.SourceName

type CitationStore interface {
	GetByKey(ctx context.Context, paperID, key string) (models.Citation, error)
	UpdateEnrichment(ctx context.Context, id string, e models.Enrichment) (*models.Citation, error)
}

// SimilarChunks finds passages of the same paper that resemble text.
type SimilarChunks interface {
	Similar(ctx context.Context, paperID, text string, topK int) ([]models.ChunkMatch, error)
}

type Deps struct {
	Store   CitationStore
	Lookup  *Lookup
	Similar SimilarChunks
	LLM     providers.LLMProvider
	// GenerateTimeout bounds the relevance explanation call.
	GenerateTimeout time.Duration
	Logger          *zap.Logger
}

// Service moves a citation from unattempted to either enriched or
// enrichment_failed, exactly once.
type Service struct {
	store   CitationStore
	lookup  *Lookup
	similar SimilarChunks
	llm     providers.LLMProvider
	timeout time.Duration
	log     *zap.Logger
	// inflight collapses concurrent enrichment of the same row inside this
	// process. Duplicate work across processes is tolerated.
	inflight singleflight.Group
}

func NewService(d Deps) *Service {
	if d.GenerateTimeout <= 0 {
		d.GenerateTimeout = defaultGenerateTimeout
	}
	return &Service{
		store:   d.Store,
		lookup:  d.Lookup,
		similar: d.Similar,
		llm:     d.LLM,
		timeout: d.GenerateTimeout,
		log:     logging.OrNop(d.Logger),
	}
}

// GetCitation loads one citation, enriching it first if that has not been
// attempted yet.
func (s *Service) GetCitation(ctx context.Context, paperID, key string) (models.Citation, error) {
	c, err := s.store.GetByKey(ctx, paperID, key)
	if err != nil {
		return models.Citation{}, err
	}
	if c.Attempted() {
		return c, nil
	}
	return s.Enrich(ctx, paperID, c)
}

// Enrich runs the enrichment steps strictly in order. Only a storage
// failure is returned; every other failure degrades the result. A citation
// already in a terminal state is returned unchanged.
func (s *Service) Enrich(ctx context.Context, paperID string, c models.Citation) (models.Citation, error) {
	if c.Attempted() {
		return c, nil
	}
	v, err, _ := s.inflight.Do(c.ID, func() (any, error) {
		return s.enrich(ctx, paperID, c)
	})
	if err != nil {
		return c, err
	}
	return v.(models.Citation), nil
}

func (s *Service) enrich(ctx context.Context, paperID string, c models.Citation) (models.Citation, error) {
	log := s.log.With(zap.String("paper_id", paperID), zap.String("citation_key", c.CitationKey))

	var found *scholar.Paper
	if ref := models.Deref(c.RawReference); ref != "" && s.lookup != nil {
		var strategy string
		found, strategy = s.lookup.Find(ctx, ref)
		if found != nil {
			log.Debug("cited work found", zap.String("strategy", strategy), zap.String("external_id", found.PaperID))
		}
	}

	passage := s.widenContext(ctx, log, paperID, models.Deref(c.ContextInPaper))
	explanation := s.explain(ctx, log, paperID, passage, found, c.RawReference)

	e := models.Enrichment{RelevanceExplanation: explanation}
	if found != nil {
		e.Enriched = true
		e.CitedTitle = models.StringPtr(found.Title)
		e.CitedAbstract = models.StringPtr(found.Abstract)
		e.CitedAuthors = found.AuthorNames()
		e.CitedDOI = models.StringPtr(found.ExternalIDs.DOI)
		e.CitedExternalID = models.StringPtr(found.PaperID)
		if found.Year > 0 {
			year := found.Year
			e.CitedYear = &year
		}
	} else {
		e.EnrichmentFailed = true
		e.FailureReason = models.StringPtr(FailureReason)
	}

	updated, err := s.store.UpdateEnrichment(ctx, c.ID, e)
	if err != nil {
		return c, fmt.Errorf("persist enrichment: %w", err)
	}
	if updated == nil {
		return c, nil
	}
	return *updated, nil
}

// widenContext appends the most similar passages of the paper. Any failure
// leaves the context as it was.
func (s *Service) widenContext(ctx context.Context, log *zap.Logger, paperID, passage string) string {
	if passage == "" || s.similar == nil {
		return passage
	}
	matches, err := s.similar.Similar(ctx, paperID, passage, similarChunks)
	if err != nil {
		log.Debug("similar chunk lookup skipped", zap.Error(err))
		return passage
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	extra := strings.Join(parts, " ")
	if extra == "" {
		return passage
	}
	return passage + "\n\nAdditional context from the paper: " + extra
}

func (s *Service) explain(ctx context.Context, log *zap.Logger, paperID, passage string, found *scholar.Paper, rawRef *string) *string {
	if s.llm == nil || !s.llm.Available() {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, info, err := s.llm.Generate(callCtx, providers.GenerateRequest{
		Operation: providers.OpCitationRelevance,
		PaperID:   paperID,
		Prompt:    RelevancePrompt(passage, found, models.Deref(rawRef)),
		MaxTokens: relevanceMaxTokens,
	})
	if err != nil {
		log.Warn("relevance explanation failed",
			zap.String("provider", info.Name),
			zap.String("error_type", string(providers.ClassifyError(err))),
			zap.Error(err))
		return nil
	}
	return models.StringPtr(strings.TrimSpace(resp.Text))
}

// RelevancePrompt asks for a two to three sentence explanation of why the
// cited work matters at this point of the paper.
func RelevancePrompt(passage string, found *scholar.Paper, rawReference string) string {
	var cited string
	if found != nil && found.Title != "" {
		abstract := found.Abstract
		if abstract == "" {
			abstract = "Not available"
		}
		cited = fmt.Sprintf("Cited paper title: %q\nCited paper abstract: %q", found.Title, abstract)
	} else {
		ref := rawReference
		if ref == "" {
			ref = "Not available"
		}
		cited = fmt.Sprintf("Raw reference: %q", ref)
	}
	return "You are an academic paper reading assistant. Below is the passage of a research paper in which a citation appears, " +
		"followed by what is known about the cited work. In 2-3 sentences, explain why the citation is relevant here and what " +
		"the reader should know about the cited work in this context.\n\n" +
		fmt.Sprintf("Source paper context: %q\n\n", passage) +
		cited + "\n\n" +
		`Be concise. Refer to the cited work by its subject matter rather than with phrases like "this citation" or "the cited paper".`
}
