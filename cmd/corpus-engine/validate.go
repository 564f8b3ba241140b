package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/lexicon"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check lexicon consistency against the corpus",
	Long: `Validate verifies the lexicon the downstream search engine derived from the
corpus: word/index bijectivity, document frequencies against a fresh recount,
and frequency-statistic coverage for every index. Every discrepancy is
reported, not just the first. The lexicon is never modified.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("lexicon", "data/lexicon.json", "lexicon JSON file")
	validateCmd.Flags().String("corpus", "data/corpus.jsonl", "enriched corpus the lexicon was built from")

	viper.BindPFlag("validate.lexicon_path", validateCmd.Flags().Lookup("lexicon"))
	viper.BindPFlag("validate.corpus_path", validateCmd.Flags().Lookup("corpus"))

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	lex, err := lexicon.Load(viper.GetString("validate.lexicon_path"))
	if err != nil {
		return err
	}

	rep, err := lexicon.Validate(lex, viper.GetString("validate.corpus_path"), logger)
	if err != nil {
		return err
	}

	for _, v := range rep.Violations {
		fmt.Println(v)
	}
	fmt.Printf("checked %d words against %d documents\n", rep.Words, rep.Documents)
	if !rep.OK() {
		return fmt.Errorf("%d violation(s) found", len(rep.Violations))
	}
	fmt.Println("lexicon is consistent")
	return nil
}
