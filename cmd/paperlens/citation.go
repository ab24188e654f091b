package main

import (
	"context"

	"github.com/spf13/cobra"

	"paperlens/internal/app"
)

var citationCmd = &cobra.Command{
	Use:   "citation <paper-id> [key]",
	Short: "List a paper's citations, or resolve one by key",
	Long: `With only a paper id, citation lists the stored citations in reading
order. With a key such as "[3]" or "(Smith, 2020)" it returns that citation,
looking the cited work up first if that was never attempted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if len(args) == 1 {
				cs, err := a.Citations.ListByPaper(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, cs)
			}
			c, err := a.Enrich.GetCitation(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		})
	},
}

func init() {
	rootCmd.AddCommand(citationCmd)
}
