package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"paperlens/internal/activities"
	"paperlens/internal/app"
	"paperlens/internal/config"
	"paperlens/internal/logging"
	"paperlens/internal/workflows"
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

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer c.Close()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("wire app", zap.Error(err))
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Ingest, logger.Named("activities")))

	logger.Info("paperlens worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
