package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/enrich"
	"github.com/pdiddy/corpus-engine/internal/extractor"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract and tokenize text from downloaded artifacts",
	Long: `Extract is the second pipeline pass: it reads the metadata log, extracts
page-ordered text from each artifact, tokenizes it, and appends enriched
records to the output corpus. Documents already in the output corpus are
skipped, so an interrupted run resumes for free.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("metadata", "data/metadata.jsonl", "input metadata log")
	extractCmd.Flags().String("output", "data/corpus.jsonl", "enriched corpus output")
	extractCmd.Flags().String("artifact-dir", "data/pdfs", "directory holding the artifacts")
	extractCmd.Flags().String("backend", "pdftotext", "extraction backend (pdftotext or html)")
	extractCmd.Flags().Int("max-pages", enrich.DefaultMaxPages, "maximum pages extracted per document")
	extractCmd.Flags().Int("max-tokens", 0, "truncate bodies beyond this many tokens (0 = no limit)")

	viper.BindPFlag("enrich.metadata_path", extractCmd.Flags().Lookup("metadata"))
	viper.BindPFlag("enrich.output_path", extractCmd.Flags().Lookup("output"))
	viper.BindPFlag("enrich.artifact_dir", extractCmd.Flags().Lookup("artifact-dir"))
	viper.BindPFlag("enrich.backend", extractCmd.Flags().Lookup("backend"))
	viper.BindPFlag("enrich.max_pages", extractCmd.Flags().Lookup("max-pages"))
	viper.BindPFlag("enrich.max_tokens", extractCmd.Flags().Lookup("max-tokens"))

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := types.EnrichConfig{
		MetadataPath: viper.GetString("enrich.metadata_path"),
		OutputPath:   viper.GetString("enrich.output_path"),
		ArtifactDir:  viper.GetString("enrich.artifact_dir"),
		Backend:      types.ExtractorBackend(viper.GetString("enrich.backend")),
		MaxPages:     viper.GetInt("enrich.max_pages"),
		MaxTokens:    viper.GetInt("enrich.max_tokens"),
	}

	ex, err := extractor.New(cfg.Backend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := enrich.NewStage(cfg, ex, logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("processed %d, skipped %d, failed %d\n", res.Processed, res.Skipped, res.Failed)
	return nil
}
