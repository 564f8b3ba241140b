// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const pdftotextBinary = "pdftotext"

// PdftotextExtractor shells out to the poppler pdftotext tool. Output is
// page-ordered because pdftotext emits pages in document order.
type PdftotextExtractor struct {
	binPath string
}

// NewPdftotext locates the pdftotext binary on PATH. Missing tooling is a
// setup error surfaced before any work begins.
func NewPdftotext() (*PdftotextExtractor, error) {
	bin, err := exec.LookPath(pdftotextBinary)
	if err != nil {
		return nil, fmt.Errorf("pdftotext not found on PATH: %w", err)
	}
	return &PdftotextExtractor{binPath: bin}, nil
}

// Name returns the backend identifier.
func (p *PdftotextExtractor) Name() string { return "pdftotext" }

// ExtractText runs pdftotext over at most maxPages pages and returns the
// text written to stdout.
func (p *PdftotextExtractor) ExtractText(path string, maxPages int) (string, error) {
	args := []string{"-q"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, path, "-")

	cmd := exec.Command(p.binPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return text, nil
}
