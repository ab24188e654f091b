package main

import (
	"context"

	"github.com/spf13/cobra"

	"paperlens/internal/app"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show configured text generation and embedding providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app.App) error {
			return printJSON(cmd, a.Providers.Status())
		})
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
