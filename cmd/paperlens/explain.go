package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"paperlens/internal/app"
	"paperlens/internal/assistant"
)

var explainCmd = &cobra.Command{
	Use:   "explain <paper-id> <passage>",
	Short: "Explain a passage of a stored paper",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			resp, err := a.Assistant.Explain(ctx, assistant.Request{PaperID: args[0], SelectedText: args[1]})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
			return nil
		})
	},
}

func init() {
	explainCmd.Flags().Bool("json", false, "print the reply with the nearby citations as JSON")
	rootCmd.AddCommand(explainCmd)
}
