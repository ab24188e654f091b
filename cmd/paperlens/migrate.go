package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"paperlens/internal/app"
	"paperlens/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the pgvector extension and the paperlens tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := storage.Migrate(ctx, a.DB, a.Config.EmbedDim); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (embedding dimension %d)\n", a.Config.EmbedDim)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
