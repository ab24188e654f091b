// Command paperlens runs the paper reading assistant core from the shell.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"paperlens/internal/app"
	"paperlens/internal/config"
	"paperlens/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "paperlens",
	Short: "Read research papers with their citations resolved",
	Long: `paperlens ingests research papers, resolves the works they cite against
Semantic Scholar and answers questions about selected passages.

The API server (cmd/api) and the ingestion worker (cmd/worker) expose the same
core; this CLI drives it directly for local use and operations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load(".env")
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperlens.yaml or ~/.config/paperlens/paperlens.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file)
	if err != nil {
		return config.Config{}, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// withApp wires the core for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
