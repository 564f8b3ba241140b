// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the corpus-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is constructed once before any subcommand runs.
var logger *zap.Logger

// rootCmd is the base command for the corpus-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "corpus-engine",
	Short: "Resumable corpus ingestion for a downstream search engine",
	Long: `corpus-engine builds a token corpus for a downstream search engine. It
discovers candidate documents from the OpenAlex works listing, downloads their
PDFs with a bounded worker pool, extracts and tokenizes text locally, compacts
the identifier space, and validates the derived lexicon.

Each pipeline stage is a subcommand: crawl, extract, renumber, tokenize, and
validate. Every stage is resumable; interrupt and restart at will.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local overrides; absence is fine.
		_ = godotenv.Load()

		level, _ := cmd.Flags().GetString("log-level")
		dev, _ := cmd.Flags().GetBool("dev-log")
		log, err := logging.New(level, dev)
		if err != nil {
			return err
		}
		logger = log
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./corpus-engine.yaml or ~/.config/corpus-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev-log", false, "human-readable console logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("corpus-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "corpus-engine"))
		}
	}

	viper.SetEnvPrefix("CORPUS_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}
