package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"paperlens/internal/citations"
	"paperlens/internal/logging"
	"paperlens/internal/models"
	"paperlens/internal/util"
)

// PaperStore persists a paper together with its citations atomically. Re-
// inserting an existing id returns the stored paper unchanged.
type PaperStore interface {
	InsertPaper(ctx context.Context, p models.Paper, cs []models.NewCitation) (models.Paper, error)
	GetPaper(ctx context.Context, id string) (models.Paper, error)
}

type Embedder interface {
	Available() bool
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkIndex interface {
	Upsert(ctx context.Context, paperID string, chunks []models.Chunk) error
}

type Deps struct {
	Papers   PaperStore
	Embedder Embedder
	Index    ChunkIndex
	Chunking util.ChunkOptions
	Logger   *zap.Logger
}

type Input struct {
	// ID pins the paper id so repeated attempts store one paper. Empty
	// means a fresh id.
	ID      string   `json:"-"`
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Year    *int     `json:"year,omitempty"`
	Text    string   `json:"text"`
}

type Result struct {
	Paper     models.Paper    `json:"paper"`
	Style     citations.Style `json:"citation_style"`
	Citations int             `json:"citations"`
	Chunks    int             `json:"chunks"`
}

// Service turns raw paper text into a stored paper, its citations and,
// when an embedding provider is configured, its searchable chunks.
type Service struct {
	d   Deps
	log *zap.Logger
}

func NewService(d Deps) *Service {
	return &Service{d: d, log: logging.OrNop(d.Logger)}
}

func (s *Service) Ingest(ctx context.Context, in Input) (Result, error) {
	res, err := s.StorePaper(ctx, in)
	if err != nil {
		return Result{}, err
	}
	n, err := s.IndexPaper(ctx, res.Paper.ID, res.Paper.RawText)
	if err != nil {
		return Result{}, err
	}
	res.Chunks = n
	return res, nil
}

// StorePaper extracts citations from the text and persists the paper with
// them in one step. A blank title is replaced by one guessed from the text.
func (s *Service) StorePaper(ctx context.Context, in Input) (Result, error) {
	text := util.SanitizeText(in.Text)
	if text == "" {
		return Result{}, fmt.Errorf("text is required: %w", util.ErrValidation)
	}
	extracted := citations.Extract(text)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = extracted.Title
	}
	paper, err := s.d.Papers.InsertPaper(ctx, models.Paper{
		ID:      in.ID,
		Title:   title,
		Authors: in.Authors,
		Year:    in.Year,
		RawText: text,
	}, extracted.Citations)
	if err != nil {
		return Result{}, fmt.Errorf("store paper: %w", err)
	}
	s.log.Info("paper stored",
		zap.String("paper_id", paper.ID),
		zap.String("citation_style", string(extracted.Style)),
		zap.Int("citations", len(extracted.Citations)))
	return Result{Paper: paper, Style: extracted.Style, Citations: len(extracted.Citations)}, nil
}

// IndexPaper chunks and embeds text and replaces the paper's stored chunks.
// Without an embedding provider, or when embedding fails, nothing is
// indexed and question answering later falls back to the full text. Only a
// storage failure is returned.
func (s *Service) IndexPaper(ctx context.Context, paperID, text string) (int, error) {
	log := s.log.With(zap.String("paper_id", paperID))
	if s.d.Embedder == nil || s.d.Index == nil || !s.d.Embedder.Available() {
		log.Debug("indexing skipped, no embedding provider")
		return 0, nil
	}
	parts := util.Chunk(text, s.d.Chunking)
	if len(parts) == 0 {
		return 0, nil
	}
	vectors, err := s.d.Embedder.Embed(ctx, parts)
	if err != nil {
		if errors.Is(err, util.ErrProviderUnavailable) {
			log.Debug("indexing skipped, no embedding provider")
		} else {
			log.Warn("indexing skipped, embedding failed", zap.Error(err))
		}
		return 0, nil
	}
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{PaperID: paperID, ChunkIndex: i, Content: p, Embedding: vectors[i]}
	}
	if err := s.d.Index.Upsert(ctx, paperID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	log.Info("paper indexed", zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Reindex rebuilds the chunks of an already stored paper.
func (s *Service) Reindex(ctx context.Context, paperID string) (int, error) {
	p, err := s.d.Papers.GetPaper(ctx, paperID)
	if err != nil {
		return 0, fmt.Errorf("get paper: %w", err)
	}
	return s.IndexPaper(ctx, p.ID, p.RawText)
}
