// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "corpus-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// InsecureTLS disables TLS certificate verification. Some open-access
	// hosts serve broken certificate chains; enabling this is an explicit,
	// logged decision.
	InsecureTLS bool `json:"insecure_tls" yaml:"insecure_tls"`
}

// CheckpointBackend identifies the durable store for acquisition progress.
type CheckpointBackend string

const (
	CheckpointFile   CheckpointBackend = "file"
	CheckpointSQLite CheckpointBackend = "sqlite"
)

// CrawlConfig holds settings for the acquisition stage.
type CrawlConfig struct {
	HTTPConfig `yaml:",inline"`

	// TargetCount is the number of successfully downloaded documents
	// after which the scheduler stops enqueueing new jobs.
	TargetCount int `json:"target_count" yaml:"target_count"`

	// Concurrency is the number of download workers.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// PerPage is the page size requested from the works listing.
	PerPage int `json:"per_page" yaml:"per_page"`

	// ArtifactDir is the directory that receives downloaded PDFs,
	// one file per document id.
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir"`

	// MetadataPath is the append-only JSONL metadata log. The failure
	// log, cursor file and run lock derive their names from it.
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`

	// MaxArtifactBytes caps a single download (default 50 MiB).
	MaxArtifactBytes int64 `json:"max_artifact_bytes" yaml:"max_artifact_bytes"`

	// Checkpoint selects the checkpoint store backend: file or sqlite.
	Checkpoint CheckpointBackend `json:"checkpoint" yaml:"checkpoint"`
}

// ExtractorBackend identifies the text extraction tool.
type ExtractorBackend string

const (
	BackendPdftotext ExtractorBackend = "pdftotext"
	BackendHTML      ExtractorBackend = "html"
)

// EnrichConfig holds settings for the local extraction stage.
type EnrichConfig struct {
	// MetadataPath is the input JSONL with metadata and artifact paths.
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`

	// OutputPath is the enriched corpus JSONL with body tokens.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// ArtifactDir resolves relative or missing artifact paths.
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir"`

	// Backend selects the extraction tool: pdftotext or html.
	Backend ExtractorBackend `json:"backend" yaml:"backend"`

	// MaxPages bounds extraction cost per document (default 100).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// MaxTokens truncates very long bodies when > 0. The pre-truncation
	// length is still recorded on the enriched record.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// CompactConfig holds settings for the renumbering stage.
type CompactConfig struct {
	// MetadataPath is the input JSONL to renumber.
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`

	// OutputPath is the renumbered JSONL output.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// ArtifactDir is the directory artifacts are relocated within.
	ArtifactDir string `json:"artifact_dir" yaml:"artifact_dir"`

	// DryRun reports what would be moved without touching anything.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

// ValidateConfig holds settings for the lexicon consistency check.
type ValidateConfig struct {
	// LexiconPath is the lexicon JSON produced by the downstream engine.
	LexiconPath string `json:"lexicon_path" yaml:"lexicon_path"`

	// CorpusPath is the enriched corpus JSONL the lexicon was built from.
	CorpusPath string `json:"corpus_path" yaml:"corpus_path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Crawl    CrawlConfig    `json:"crawl" yaml:"crawl"`
	Enrich   EnrichConfig   `json:"enrich" yaml:"enrich"`
	Compact  CompactConfig  `json:"compact" yaml:"compact"`
	Validate ValidateConfig `json:"validate" yaml:"validate"`
}
