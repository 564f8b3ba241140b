// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines records and configuration shared across pipeline stages.
package types

// RankingSignal carries the citation-based ranking input attached to a
// candidate by the metadata source.
type RankingSignal struct {
	CitedByCount int `json:"cited_by_count" yaml:"cited_by_count"`
}

// Candidate is a document proposed by the metadata source, validated but
// not yet downloaded. Immutable once built.
type Candidate struct {
	// ExternalID is the source's identifier (e.g. an OpenAlex work URL).
	ExternalID string `json:"openalex_id" yaml:"openalex_id"`

	Title           string        `json:"title" yaml:"title"`
	SourceURL       string        `json:"url" yaml:"url"`
	PublicationYear int           `json:"publication_year" yaml:"publication_year"`
	Ranking         RankingSignal `json:"page_rank" yaml:"page_rank"`

	// TitleTokens is the title run through the shared tokenizer at
	// acquisition time.
	TitleTokens []string `json:"title_tokens" yaml:"title_tokens"`
}

// FetchJob pairs a candidate with its assigned document id and destination.
// Owned by the scheduler until enqueued, then by exactly one worker.
type FetchJob struct {
	DocID     int
	Candidate Candidate
	DestPath  string
}

// DownloadResult reports the outcome of one FetchJob. Exactly one result
// is emitted per job.
type DownloadResult struct {
	DocID        int
	Success      bool
	ArtifactPath string
	Reason       string
}

// DocumentRecord is one line of the metadata log: a candidate that was
// downloaded and published to its artifact path.
type DocumentRecord struct {
	DocID           int           `json:"doc_id"`
	ExternalID      string        `json:"openalex_id,omitempty"`
	Title           string        `json:"title"`
	SourceURL       string        `json:"url"`
	PublicationYear int           `json:"publication_year"`
	Ranking         RankingSignal `json:"page_rank"`
	TitleTokens     []string      `json:"title_tokens,omitempty"`
	ArtifactPath    string        `json:"pdf_path"`
}

// FailureRecord is one line of the failure log.
type FailureRecord struct {
	DocID     int    `json:"doc_id"`
	SourceURL string `json:"url"`
	Reason    string `json:"reason"`
}

// EnrichedRecord is a DocumentRecord plus its extracted, tokenized body.
// BodyTokens is never empty and WordCount always equals len(BodyTokens);
// OriginalWordCount preserves the pre-truncation length so information
// loss stays visible.
type EnrichedRecord struct {
	DocumentRecord
	BodyTokens        []string `json:"body_tokens"`
	WordCount         int      `json:"word_count"`
	OriginalWordCount int      `json:"original_word_count"`
}
