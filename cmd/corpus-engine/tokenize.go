package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/corpus-engine/internal/enrich"
	"github.com/pdiddy/corpus-engine/internal/extractor"
	"github.com/pdiddy/corpus-engine/internal/token"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize <file>",
	Short: "Extract and tokenize a single document",
	Long: `Tokenize runs the extraction and tokenization steps on one file and prints
the result as JSON. Useful for spot-checking what a document contributes to
the corpus before a full extract run.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenize,
}

func init() {
	tokenizeCmd.Flags().String("backend", "pdftotext", "extraction backend (pdftotext or html)")
	tokenizeCmd.Flags().Int("max-pages", enrich.DefaultMaxPages, "maximum pages to extract")

	rootCmd.AddCommand(tokenizeCmd)
}

func runTokenize(cmd *cobra.Command, args []string) error {
	backend, _ := cmd.Flags().GetString("backend")
	maxPages, _ := cmd.Flags().GetInt("max-pages")

	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}

	ex, err := extractor.New(types.ExtractorBackend(backend))
	if err != nil {
		return err
	}
	text, err := ex.ExtractText(args[0], maxPages)
	if err != nil {
		return err
	}
	tokens := token.Tokenize(text)

	out := struct {
		Tokens    []string `json:"tokens"`
		WordCount int      `json:"word_count"`
	}{Tokens: tokens, WordCount: len(tokens)}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
