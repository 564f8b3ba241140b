// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compact implements the renumbering stage: it remaps sparse
// document ids left behind by failed downloads to a contiguous range so
// ids can double as array and file indices downstream.
package compact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Result summarizes a renumbering run.
type Result struct {
	Kept       int
	Dropped    int
	Collisions int
	Moved      int
	DryRun     bool
}

// Stage rewrites the metadata log with sequential ids and relocates the
// artifacts to match.
type Stage struct {
	cfg types.CompactConfig
	log *zap.Logger
}

// NewStage wires the renumbering stage together.
func NewStage(cfg types.CompactConfig, log *zap.Logger) *Stage {
	return &Stage{cfg: cfg, log: log}
}

// Run reads metadata records in file order, keeps those whose artifact
// still exists, and assigns new sequential ids from zero. Each kept
// artifact is renamed to its new id's path before the remapped record is
// written, so the rewrite and the relocation stay in lock-step: a record
// appears in the output if and only if its artifact sits at the path the
// record names. Records whose new path is occupied by a different file
// are skipped rather than overwritten. In dry-run mode the plan is
// logged and counted but nothing moves.
func (s *Stage) Run() (Result, error) {
	if _, err := os.Stat(s.cfg.MetadataPath); err != nil {
		return Result{}, fmt.Errorf("metadata log not found: %w", err)
	}
	if _, err := os.Stat(s.cfg.ArtifactDir); err != nil {
		return Result{}, fmt.Errorf("artifact directory not found: %w", err)
	}

	in, err := os.Open(s.cfg.MetadataPath)
	if err != nil {
		return Result{}, fmt.Errorf("opening metadata log: %w", err)
	}
	defer in.Close()

	res := Result{DryRun: s.cfg.DryRun}

	var out *os.File
	var w *bufio.Writer
	tmpPath := s.cfg.OutputPath + ".tmp"
	if !s.cfg.DryRun {
		if dir := filepath.Dir(s.cfg.OutputPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Result{}, fmt.Errorf("creating output directory: %w", err)
			}
		}
		out, err = os.Create(tmpPath)
		if err != nil {
			return Result{}, fmt.Errorf("creating output log: %w", err)
		}
		defer func() {
			out.Close()
			os.Remove(tmpPath)
		}()
		w = bufio.NewWriter(out)
	}

	nextID := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec types.DocumentRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Dropped++
			continue
		}

		oldPath := s.resolveArtifact(rec)
		if _, err := os.Stat(oldPath); err != nil {
			res.Dropped++
			s.log.Debug("dropping record without artifact",
				zap.Int("doc_id", rec.DocID),
				zap.String("path", oldPath))
			continue
		}

		newPath := filepath.Join(s.cfg.ArtifactDir, fmt.Sprintf("%d.pdf", nextID))
		moved, err := s.relocate(oldPath, newPath)
		if err != nil {
			// Destination occupied by an unrelated file or the rename
			// itself failed; skip rather than overwrite.
			res.Collisions++
			s.log.Warn("skipping record on relocation conflict",
				zap.Int("doc_id", rec.DocID),
				zap.String("from", oldPath),
				zap.String("to", newPath),
				zap.Error(err))
			continue
		}
		if moved {
			res.Moved++
		}

		rec.DocID = nextID
		rec.ArtifactPath = newPath
		nextID++
		res.Kept++

		if s.cfg.DryRun {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return res, fmt.Errorf("encoding record %d: %w", rec.DocID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return res, fmt.Errorf("writing output log: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scanning metadata log: %w", err)
	}

	if !s.cfg.DryRun {
		if err := w.Flush(); err != nil {
			return res, fmt.Errorf("flushing output log: %w", err)
		}
		if err := out.Sync(); err != nil {
			return res, fmt.Errorf("syncing output log: %w", err)
		}
		if err := out.Close(); err != nil {
			return res, fmt.Errorf("closing output log: %w", err)
		}
		if err := os.Rename(tmpPath, s.cfg.OutputPath); err != nil {
			return res, fmt.Errorf("publishing output log: %w", err)
		}
	}

	s.log.Info("renumbering finished",
		zap.Int("kept", res.Kept),
		zap.Int("dropped", res.Dropped),
		zap.Int("collisions", res.Collisions),
		zap.Int("moved", res.Moved),
		zap.Bool("dry_run", res.DryRun))
	return res, nil
}

// relocate moves an artifact to its new path. Returns false with no
// error when old and new coincide (the id was already contiguous). An
// occupied destination is an error so the caller can skip the record.
func (s *Stage) relocate(oldPath, newPath string) (bool, error) {
	oldInfo, err := os.Stat(oldPath)
	if err != nil {
		return false, err
	}
	if newInfo, err := os.Stat(newPath); err == nil {
		if os.SameFile(oldInfo, newInfo) {
			return false, nil
		}
		return false, fmt.Errorf("destination %s already occupied", newPath)
	}
	if s.cfg.DryRun {
		return true, nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return false, err
	}
	return true, nil
}

// resolveArtifact mirrors the extraction stage's lookup: recorded path
// if absolute, basename under the artifact directory otherwise, falling
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
