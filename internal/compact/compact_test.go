// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

type fixture struct {
	dir         string
	artifactDir string
	cfg         types.CompactConfig
}

func newFixture(t *testing.T, docIDs []int, artifacts []int) fixture {
	t.Helper()
	dir := t.TempDir()
	artifactDir := filepath.Join(dir, "pdfs")
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatal(err)
	}

	metaPath := filepath.Join(dir, "raw.jsonl")
	f, err := os.Create(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range docIDs {
		rec := types.DocumentRecord{
			DocID:           id,
			Title:           fmt.Sprintf("Paper %d", id),
			SourceURL:       "https://example.com",
			PublicationYear: 2021,
			ArtifactPath:    filepath.Join(artifactDir, fmt.Sprintf("%d.pdf", id)),
		}
		data, _ := json.Marshal(rec)
		f.Write(append(data, '\n'))
	}
	f.Close()

	for _, id := range artifacts {
		path := filepath.Join(artifactDir, fmt.Sprintf("%d.pdf", id))
		body := fmt.Sprintf("%%PDF doc %d", id)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return fixture{
		dir:         dir,
		artifactDir: artifactDir,
		cfg: types.CompactConfig{
			MetadataPath: metaPath,
			OutputPath:   filepath.Join(dir, "compacted.jsonl"),
			ArtifactDir:  artifactDir,
		},
	}
}

func readRecords(t *testing.T, path string) []types.DocumentRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	var recs []types.DocumentRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec types.DocumentRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid line: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestRunProducesContiguousBijectiveIDs(t *testing.T) {
	// Ids 1, 3, 4 failed to download: gaps to close.
	fx := newFixture(t, []int{0, 2, 5}, []int{0, 2, 5})

	res, err := NewStage(fx.cfg, zap.NewNop()).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kept != 3 || res.Dropped != 0 || res.Collisions != 0 {
		t.Errorf("result = %+v, want 3 kept", res)
	}
	if res.Moved != 2 {
		t.Errorf("moved = %d, want 2 (id 0 stays put)", res.Moved)
	}

	recs := readRecords(t, fx.cfg.OutputPath)
	if len(recs) != 3 {
		t.Fatalf("output has %d records, want 3", len(recs))
	}
	seen := map[int]bool{}
	for i, rec := range recs {
		if rec.DocID != i {
			t.Errorf("record %d has id %d, want contiguous file order", i, rec.DocID)
		}
		if seen[rec.DocID] {
			t.Errorf("duplicate id %d", rec.DocID)
		}
		seen[rec.DocID] = true

		wantPath := filepath.Join(fx.artifactDir, fmt.Sprintf("%d.pdf", rec.DocID))
		if rec.ArtifactPath != wantPath {
			t.Errorf("record %d names %s, want %s", rec.DocID, rec.ArtifactPath, wantPath)
		}
		if _, err := os.Stat(wantPath); err != nil {
			t.Errorf("artifact for id %d missing: %v", rec.DocID, err)
		}
	}

	// Old sparse names must not linger alongside the new ones.
	if _, err := os.Stat(filepath.Join(fx.artifactDir, "5.pdf")); !os.IsNotExist(err) {
		t.Error("stale artifact 5.pdf survived renumbering")
	}
}

func TestRunPreservesArtifactContent(t *testing.T) {
	fx := newFixture(t, []int{3}, []int{3})

	if _, err := NewStage(fx.cfg, zap.NewNop()).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(fx.artifactDir, "0.pdf"))
	if err != nil {
		t.Fatalf("reading relocated artifact: %v", err)
	}
	if string(data) != "%PDF doc 3" {
		t.Errorf("relocated artifact = %q, content must follow the record", data)
	}
}

func TestRunDropsRecordsWithoutArtifacts(t *testing.T) {
	fx := newFixture(t, []int{0, 1, 2}, []int{0, 2}) // artifact 1 gone

	res, err := NewStage(fx.cfg, zap.NewNop()).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kept != 2 || res.Dropped != 1 {
		t.Errorf("result = %+v, want 2 kept / 1 dropped", res)
	}

	recs := readRecords(t, fx.cfg.OutputPath)
	if len(recs) != 2 || recs[0].DocID != 0 || recs[1].DocID != 1 {
		t.Errorf("output ids = %v, want [0 1]", recs)
	}
}

func TestRunSkipsOccupiedDestinations(t *testing.T) {
	fx := newFixture(t, []int{4}, []int{4})
	// An unrelated file squats on the destination path.
	squatter := filepath.Join(fx.artifactDir, "0.pdf")
	if err := os.WriteFile(squatter, []byte("%PDF unrelated"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewStage(fx.cfg, zap.NewNop()).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Collisions != 1 || res.Kept != 0 {
		t.Errorf("result = %+v, want 1 collision / 0 kept", res)
	}

	data, err := os.ReadFile(squatter)
	if err != nil || string(data) != "%PDF unrelated" {
		t.Errorf("occupied destination was overwritten: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(fx.artifactDir, "4.pdf")); err != nil {
		t.Error("skipped record's artifact must stay at its old path")
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	fx := newFixture(t, []int{0, 5}, []int{0, 5})
	fx.cfg.DryRun = true

	res, err := NewStage(fx.cfg, zap.NewNop()).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.DryRun || res.Kept != 2 || res.Moved != 1 {
		t.Errorf("result = %+v, want dry-run plan with 2 kept / 1 moved", res)
	}

	if _, err := os.Stat(fx.cfg.OutputPath); !os.IsNotExist(err) {
		t.Error("dry run wrote an output log")
	}
	if _, err := os.Stat(filepath.Join(fx.artifactDir, "5.pdf")); err != nil {
		t.Error("dry run moved an artifact")
	}
	if _, err := os.Stat(filepath.Join(fx.artifactDir, "1.pdf")); !os.IsNotExist(err) {
		t.Error("dry run created an artifact")
	}
}

func TestRunFailsOnMissingInputs(t *testing.T) {
	dir := t.TempDir()
	cfg := types.CompactConfig{
		MetadataPath: filepath.Join(dir, "absent.jsonl"),
		OutputPath:   filepath.Join(dir, "out.jsonl"),
		ArtifactDir:  dir,
	}
	if _, err := NewStage(cfg, zap.NewNop()).Run(); err == nil {
		t.Error("want setup error for missing metadata log")
	}
}
