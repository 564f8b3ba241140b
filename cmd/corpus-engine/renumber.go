package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/compact"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

var renumberCmd = &cobra.Command{
	Use:   "renumber",
	Short: "Compact document ids to a contiguous range",
	Long: `Renumber closes the id gaps left by failed downloads: it drops metadata
records whose artifact is gone, assigns new sequential ids in file order, and
renames each artifact to match its new id. Use --dry-run to see the plan
without touching anything.`,
	RunE: runRenumber,
}

func init() {
	renumberCmd.Flags().String("metadata", "data/metadata.jsonl", "input metadata log")
	renumberCmd.Flags().String("output", "", "renumbered output log (default: rewrite input in place)")
	renumberCmd.Flags().String("artifact-dir", "data/pdfs", "directory holding the artifacts")
	renumberCmd.Flags().Bool("dry-run", false, "report the plan without moving or writing anything")

	viper.BindPFlag("compact.metadata_path", renumberCmd.Flags().Lookup("metadata"))
	viper.BindPFlag("compact.output_path", renumberCmd.Flags().Lookup("output"))
	viper.BindPFlag("compact.artifact_dir", renumberCmd.Flags().Lookup("artifact-dir"))
	viper.BindPFlag("compact.dry_run", renumberCmd.Flags().Lookup("dry-run"))

	rootCmd.AddCommand(renumberCmd)
}

func runRenumber(cmd *cobra.Command, args []string) error {
	cfg := types.CompactConfig{
		MetadataPath: viper.GetString("compact.metadata_path"),
		OutputPath:   viper.GetString("compact.output_path"),
		ArtifactDir:  viper.GetString("compact.artifact_dir"),
		DryRun:       viper.GetBool("compact.dry_run"),
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = cfg.MetadataPath
	}

	res, err := compact.NewStage(cfg, logger).Run()
	if err != nil {
		return err
	}

	if res.DryRun {
		fmt.Printf("dry run: would keep %d, drop %d, move %d (collisions %d)\n",
			res.Kept, res.Dropped, res.Moved, res.Collisions)
		return nil
	}
	fmt.Printf("kept %d, dropped %d, moved %d (collisions %d)\n",
		res.Kept, res.Dropped, res.Moved, res.Collisions)
	return nil
}
