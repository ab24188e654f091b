package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"paperlens/internal/api"
	"paperlens/internal/app"
	"paperlens/internal/config"
	"paperlens/internal/logging"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load(os.Getenv("PAPERLENS_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wire app", zap.Error(err))
	}
	defer a.Close()

	deps := api.Deps{
		Papers:    a.Papers,
		Citations: a.Citations,
		Ingest:    a.Ingest,
		Enrich:    a.Enrich,
		Assistant: a.Assistant,
		DB:        a.DB,
		Providers: a.Providers,
		UploadDir: cfg.UploadDir,
		Logger:    logger.Named("api"),

		FetchTimeout: cfg.PDFFetchTimeout,
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		// Uploads need the worker; everything else keeps working.
		logger.Warn("temporal unavailable, pdf upload disabled", zap.Error(err))
	} else {
		defer tc.Close()
		deps.Runner = api.NewTemporalRunner(tc, cfg.TemporalTaskQueue)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("paperlens api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders),
		zap.String("vector_backend", cfg.VectorBackend))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}
