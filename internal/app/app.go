package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/assistant"
	"paperlens/internal/config"
	"paperlens/internal/embedding"
	"paperlens/internal/enrich"
	"paperlens/internal/ingest"
	"paperlens/internal/logging"
	"paperlens/internal/providers"
	"paperlens/internal/scholar"
	"paperlens/internal/storage"
	"paperlens/internal/util"
	"paperlens/internal/vector"
)

const connectTimeout = 5 * time.Second

// App holds the wired core shared by the API server, the worker and the CLI.
type App struct {
	Config    config.Config
	Log       *zap.Logger
	DB        *storage.DB
	Papers    *storage.PaperRepo
	Citations *storage.CitationRepo
	Chunks    *storage.ChunkRepo
	Audit     *storage.LLMAuditRepo
	Index     vector.Index
	Providers *providers.Manager
	Embedder  *embedding.Client
	Scholar   *scholar.Client
	Enrich    *enrich.Service
	Assistant *assistant.Assembler
	Ingest    *ingest.Service
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	dbCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := storage.NewDB(dbCtx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	a, err := NewWithDB(cfg, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDB wires every component on top of an open database.
func NewWithDB(cfg config.Config, db *storage.DB, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Papers:    storage.NewPaperRepo(db),
		Citations: storage.NewCitationRepo(db),
		Chunks:    storage.NewChunkRepo(db),
		Audit:     storage.NewLLMAuditRepo(db),
		Providers: pm,
	}

	switch cfg.VectorBackend {
	case config.VectorBackendMemory:
		a.Index = vector.NewMemoryIndex()
	default:
		a.Index = vector.NewPgIndex(db.Pool, a.Chunks)
	}

	embedProvider, embedRef, err := pm.Embedder()
	if err != nil {
		log.Warn("no embedding provider configured, chunk retrieval disabled", zap.Error(err))
	} else {
		log.Info("embedding provider selected", zap.String("provider", embedRef.Raw))
	}
	a.Embedder = embedding.NewClient(embedProvider, embedding.Options{
		Dimension: cfg.EmbedDim,
		BatchSize: cfg.EmbedBatchSize,
		MaxChars:  cfg.EmbedMaxChars,
		Timeout:   cfg.EmbedTimeout,
		Logger:    log.Named("embedding"),
	})

	llm, llmRef, err := pm.LLM()
	if err != nil {
		log.Warn("no text generation provider configured, explanations disabled", zap.Error(err))
	} else {
		log.Info("llm provider selected", zap.String("provider", llmRef.Raw))
		if cfg.AuditLLMCalls {
			llm = providers.NewAuditedLLM(llm, a.Audit, log.Named("llm_audit"))
		}
	}

	a.Scholar = scholar.NewClient(
		scholar.WithBaseURL(cfg.ScholarBaseURL),
		scholar.WithAPIKey(cfg.ScholarAPIKey),
		scholar.WithHTTPClient(&http.Client{Timeout: cfg.ScholarTimeout}),
		scholar.WithRateLimiter(scholar.NewRateLimiter(cfg.ScholarMinInterval)),
		scholar.WithMaxRetries(cfg.ScholarMaxRetries),
	)

	retriever := vector.NewRetriever(a.Embedder, a.Index)
	a.Enrich = enrich.NewService(enrich.Deps{
		Store:           a.Citations,
		Lookup:          enrich.NewLookup(a.Scholar, cfg.ScholarTimeout, log.Named("lookup")),
		Similar:         retriever,
		LLM:             llm,
		GenerateTimeout: cfg.LLMTimeout,
		Logger:          log.Named("enrich"),
	})
	a.Assistant = assistant.NewAssembler(assistant.Deps{
		Papers:               a.Papers,
		Citations:            a.Citations,
		Enricher:             a.Enrich,
		Similar:              retriever,
		LLM:                  llm,
		TopK:                 cfg.QATopK,
		FallbackContextChars: cfg.FallbackContextChars,
		CitationWindow:       cfg.CitationWindow,
		GenerateTimeout:      cfg.LLMTimeout,
		Logger:               log.Named("assistant"),
	})
	a.Ingest = ingest.NewService(ingest.Deps{
		Papers:   a.Papers,
		Embedder: a.Embedder,
		Index:    a.Index,
		Chunking: util.ChunkOptions{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap, Unit: cfg.ChunkUnit},
		Logger:   log.Named("ingest"),
	})
	return a, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	_ = a.Log.Sync()
}
