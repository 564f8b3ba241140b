// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// pdfMagic is the signature every published artifact must start with.
var pdfMagic = []byte("%PDF")

// DefaultMaxArtifactBytes caps downloads at 50 MiB.
const DefaultMaxArtifactBytes = 50 << 20

// errTooLarge marks declared- or observed-size violations.
var errTooLarge = errors.New("artifact exceeds size limit")

// Downloader fetches one artifact per job: bounded-timeout request with
// retries, size cap, streaming write to a per-attempt temp file, magic
// validation, then an atomic rename onto the final path. No reader ever
// observes a partially written artifact.
type Downloader struct {
	Client    *http.Client
	Policy    httputil.Policy
	UserAgent string
	MaxBytes  int64
	Log       *zap.Logger
}

// Fetch executes job and emits exactly one result. Failures are contained:
// the temp file is removed best-effort and the reason is reported.
func (d *Downloader) Fetch(ctx context.Context, job types.FetchJob) types.DownloadResult {
	if err := d.fetch(ctx, job); err != nil {
		d.Log.Warn("download failed",
			zap.Int("doc_id", job.DocID),
			zap.String("url", job.Candidate.SourceURL),
			zap.Error(err))
		return types.DownloadResult{DocID: job.DocID, Reason: reason(err)}
	}

	d.Log.Debug("artifact published",
		zap.Int("doc_id", job.DocID),
		zap.String("path", job.DestPath))
	return types.DownloadResult{DocID: job.DocID, Success: true, ArtifactPath: job.DestPath}
}

func (d *Downloader) fetch(ctx context.Context, job types.FetchJob) error {
	maxBytes := d.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxArtifactBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.Candidate.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,*/*;q=0.8")

	resp, err := d.Policy.Do(ctx, d.Client, req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, job.Candidate.SourceURL)
	}

	// Declared size check before buffering a single byte.
	if resp.ContentLength > maxBytes {
		return fmt.Errorf("declared %d bytes: %w", resp.ContentLength, errTooLarge)
	}

	// Temp name unique to this attempt so concurrent or prior attempts
	// never collide.
	tmpPath := job.DestPath + "." + uuid.NewString() + ".part"

	if err := d.streamTo(tmpPath, resp.Body, maxBytes); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := validateMagic(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic publish: the final path appears fully written or not at all.
	if err := os.Rename(tmpPath, job.DestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

// streamTo copies body to path, failing once more than maxBytes are
// observed regardless of the declared length.
func (d *Downloader) streamTo(path string, body io.Reader, maxBytes int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	written, copyErr := io.Copy(f, io.LimitReader(body, maxBytes+1))
	closeErr := f.Close()

	if copyErr != nil {
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if written > maxBytes {
		return fmt.Errorf("observed more than %d bytes: %w", maxBytes, errTooLarge)
	}
	return nil
}

// validateMagic rejects downloads whose first bytes are not the expected
// container signature.
func validateMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopening temp file: %w", err)
	}
	defer f.Close()

	prefix := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, prefix); err != nil {
		return fmt.Errorf("bad magic bytes: %w", err)
	}
	if !bytes.Equal(prefix, pdfMagic) {
		return fmt.Errorf("bad magic bytes %q", prefix)
	}
	return nil
}

// reason maps an error onto the failure-log taxonomy.
func reason(err error) string {
	switch {
	case errors.Is(err, errTooLarge):
		return "too_large"
	case strings.Contains(err.Error(), "bad magic bytes"):
		return "bad_signature"
	default:
		return "download_failed"
	}
}

// CleanupStaleParts removes leftover temp files from interrupted runs.
// Safe to call before workers start: part names are attempt-unique.
func CleanupStaleParts(dir string, log *zap.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err == nil {
			log.Debug("removed stale temp file", zap.String("path", path))
		}
	}
}
