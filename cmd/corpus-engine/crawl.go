package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/corpus-engine/internal/checkpoint"
	"github.com/pdiddy/corpus-engine/internal/crawl"
	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "corpus-engine/0.1"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download open-access PDFs from the OpenAlex works listing",
	Long: `Crawl pages through the OpenAlex works listing with cursor pagination,
validates candidates, and downloads their PDFs with a bounded worker pool.
Progress is checkpointed; an interrupted crawl resumes where it left off
without duplicating document ids.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Int("target", 100, "stop after this many successful downloads")
	crawlCmd.Flags().Int("concurrency", 4, "number of download workers")
	crawlCmd.Flags().Int("per-page", 25, "page size requested from the works listing")
	crawlCmd.Flags().String("artifact-dir", "data/pdfs", "directory for downloaded PDFs")
	crawlCmd.Flags().String("metadata", "data/metadata.jsonl", "append-only metadata log")
	crawlCmd.Flags().Int64("max-bytes", crawl.DefaultMaxArtifactBytes, "per-download size cap in bytes")
	crawlCmd.Flags().String("checkpoint", "file", "checkpoint backend (file or sqlite)")
	crawlCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
	crawlCmd.Flags().String("user-agent", defaultUserAgent, "User-Agent header for all requests")
	crawlCmd.Flags().Bool("insecure", false, "disable TLS certificate verification")

	viper.BindPFlag("crawl.target_count", crawlCmd.Flags().Lookup("target"))
	viper.BindPFlag("crawl.concurrency", crawlCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("crawl.per_page", crawlCmd.Flags().Lookup("per-page"))
	viper.BindPFlag("crawl.artifact_dir", crawlCmd.Flags().Lookup("artifact-dir"))
	viper.BindPFlag("crawl.metadata_path", crawlCmd.Flags().Lookup("metadata"))
	viper.BindPFlag("crawl.max_artifact_bytes", crawlCmd.Flags().Lookup("max-bytes"))
	viper.BindPFlag("crawl.checkpoint", crawlCmd.Flags().Lookup("checkpoint"))
	viper.BindPFlag("crawl.timeout", crawlCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("crawl.user_agent", crawlCmd.Flags().Lookup("user-agent"))
	viper.BindPFlag("crawl.insecure_tls", crawlCmd.Flags().Lookup("insecure"))

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := types.CrawlConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:     viper.GetDuration("crawl.timeout"),
			UserAgent:   viper.GetString("crawl.user_agent"),
			InsecureTLS: viper.GetBool("crawl.insecure_tls"),
		},
		TargetCount:      viper.GetInt("crawl.target_count"),
		Concurrency:      viper.GetInt("crawl.concurrency"),
		PerPage:          viper.GetInt("crawl.per_page"),
		ArtifactDir:      viper.GetString("crawl.artifact_dir"),
		MetadataPath:     viper.GetString("crawl.metadata_path"),
		MaxArtifactBytes: viper.GetInt64("crawl.max_artifact_bytes"),
		Checkpoint:       types.CheckpointBackend(viper.GetString("crawl.checkpoint")),
	}
	if cfg.TargetCount <= 0 {
		return fmt.Errorf("target must be positive, got %d", cfg.TargetCount)
	}
	if cfg.InsecureTLS {
		logger.Warn("TLS certificate verification disabled")
	}

	store, err := checkpoint.New(cfg.Checkpoint, cfg.MetadataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client := httputil.NewClient(cfg.Timeout, cfg.InsecureTLS)
	source := &crawl.Source{
		Client:    client,
		Policy:    httputil.DefaultPagePolicy(),
		UserAgent: cfg.UserAgent,
		PerPage:   cfg.PerPage,
	}
	downloader := &crawl.Downloader{
		Client:    client,
		Policy:    httputil.DefaultDownloadPolicy(),
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.MaxArtifactBytes,
		Log:       logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := crawl.NewScheduler(cfg, source, store, downloader, logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("downloaded %d, failed %d, rejected %d, duplicates %d\n",
		res.Downloaded, res.Failed, res.Rejected, res.Duplicates)
	if res.Exhausted {
		fmt.Println("source exhausted before reaching the target")
	}
	return nil
}
