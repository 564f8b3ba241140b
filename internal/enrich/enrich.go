// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich implements the local extraction stage: a second,
// independently resumable pass that turns downloaded artifacts into
// tokenized corpus records. Resume state is the output corpus itself,
// scanned once at startup.
package enrich

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/internal/extractor"
	"github.com/pdiddy/corpus-engine/internal/token"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// DefaultMaxPages bounds extraction work on pathological documents.
const DefaultMaxPages = 100

// Result summarizes an enrichment run.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// Stage reads metadata records, extracts and tokenizes their artifacts,
// and appends enriched records to the output corpus.
type Stage struct {
	cfg types.EnrichConfig
	ex  extractor.Extractor
	log *zap.Logger
}

// NewStage wires the extraction stage together.
func NewStage(cfg types.EnrichConfig, ex extractor.Extractor, log *zap.Logger) *Stage {
	return &Stage{cfg: cfg, ex: ex, log: log}
}

// Run processes every metadata record whose document id is not already in
// the output corpus. Per-record failures (missing artifact, no usable
// text) are counted and skipped, never fatal; they become eligible again
// only in a future run. Each appended line is synced before the next
// record is attempted.
func (s *Stage) Run(ctx context.Context) (Result, error) {
	if _, err := os.Stat(s.cfg.MetadataPath); err != nil {
		return Result{}, fmt.Errorf("metadata log not found: %w", err)
	}
	if _, err := os.Stat(s.cfg.ArtifactDir); err != nil {
		return Result{}, fmt.Errorf("artifact directory not found: %w", err)
	}
	if dir := filepath.Dir(s.cfg.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("creating output directory: %w", err)
		}
	}

	done, err := loadProcessedIDs(s.cfg.OutputPath)
	if err != nil {
		return Result{}, err
	}
	if len(done) > 0 {
		s.log.Info("resuming enrichment", zap.Int("already_done", len(done)))
	}

	in, err := os.Open(s.cfg.MetadataPath)
	if err != nil {
		return Result{}, fmt.Errorf("opening metadata log: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(s.cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("opening output corpus: %w", err)
	}
	defer out.Close()

	maxPages := s.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var res Result
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			// Graceful stop between records; everything appended so
			// far is durable.
			return res, ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec types.DocumentRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Failed++
			continue
		}
		if done[rec.DocID] {
			res.Skipped++
			continue
		}

		enriched, err := s.process(rec, maxPages)
		if err != nil {
			res.Failed++
			s.log.Warn("enrichment failed",
				zap.Int("doc_id", rec.DocID),
				zap.Error(err))
			continue
		}

		data, err := json.Marshal(enriched)
		if err != nil {
			res.Failed++
			continue
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return res, fmt.Errorf("appending enriched record: %w", err)
		}
		if err := out.Sync(); err != nil {
			return res, fmt.Errorf("syncing output corpus: %w", err)
		}
		res.Processed++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scanning metadata log: %w", err)
	}

	s.log.Info("enrichment finished",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

// process extracts, tokenizes, and (optionally) truncates one record.
func (s *Stage) process(rec types.DocumentRecord, maxPages int) (*types.EnrichedRecord, error) {
	path := s.resolveArtifact(rec)
	if path == "" {
		return nil, errors.New("no artifact path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("artifact missing at %s: %w", path, err)
	}

	text, err := s.ex.ExtractText(path, maxPages)
	if err != nil {
		return nil, err
	}

	tokens := token.Tokenize(text)
	if len(tokens) == 0 {
		return nil, extractor.ErrNoText
	}

	original := len(tokens)
	if s.cfg.MaxTokens > 0 && len(tokens) > s.cfg.MaxTokens {
		tokens = tokens[:s.cfg.MaxTokens]
	}

	rec.ArtifactPath = path
	return &types.EnrichedRecord{
		DocumentRecord:    rec,
		BodyTokens:        tokens,
		WordCount:         len(tokens),
		OriginalWordCount: original,
	}, nil
}

// resolveArtifact finds the document's artifact: the recorded path if
// absolute, otherwise its basename under the artifact directory, falling
// back to the id-derived name.
func (s *Stage) resolveArtifact(rec types.DocumentRecord) string {
	switch {
	case rec.ArtifactPath != "" && filepath.IsAbs(rec.ArtifactPath):
		return rec.ArtifactPath
	case rec.ArtifactPath != "":
		return filepath.Join(s.cfg.ArtifactDir, filepath.Base(rec.ArtifactPath))
	default:
		return filepath.Join(s.cfg.ArtifactDir, fmt.Sprintf("%d.pdf", rec.DocID))
	}
}

// loadProcessedIDs scans the output corpus for document ids that already
// have enriched records.
func loadProcessedIDs(path string) (map[int]bool, error) {
	done := make(map[int]bool)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return done, nil
		}
		return nil, fmt.Errorf("opening output corpus: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec struct {
			DocID *int `json:"doc_id"`
		}
		if err := json.Unmarshal(line, &rec); err != nil || rec.DocID == nil {
			// Torn trailing line from an interrupted run.
			continue
		}
		done[*rec.DocID] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning output corpus: %w", err)
	}
	return done, nil
}
