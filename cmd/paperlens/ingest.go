package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"paperlens/internal/app"
	"paperlens/internal/ingest"
	"paperlens/internal/pdftext"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Store a paper from a PDF or plain text file and index it",
	Long: `Ingest reads a PDF (by extension) or a UTF-8 text file, extracts its
citations, stores the paper and, when an embedding provider is configured,
indexes its chunks for retrieval. Ingestion runs in-process; uploads through
the API go through the Temporal worker instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		in, err := readPaper(args[0], title)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Ingest.Ingest(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

func readPaper(path, title string) (ingest.Input, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		doc, err := pdftext.ExtractFile(path)
		if err != nil {
			return ingest.Input{}, err
		}
		if title == "" {
			title = doc.Title
		}
		return ingest.Input{Title: title, Text: doc.Text}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ingest.Input{}, fmt.Errorf("read paper: %w", err)
	}
	return ingest.Input{Title: title, Text: string(b)}, nil
}

func init() {
	ingestCmd.Flags().String("title", "", "paper title (default: PDF metadata, then a guess from the text)")
	rootCmd.AddCommand(ingestCmd)
}
