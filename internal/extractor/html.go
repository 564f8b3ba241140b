// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLExtractor extracts visible text from HTML documents. Some sources
// publish full text as HTML rather than a paged container; the page cap
// does not apply since the whole document is a single page.
type HTMLExtractor struct{}

// Name returns the backend identifier.
func (h *HTMLExtractor) Name() string { return "html" }

// ExtractText parses the HTML file and returns its visible text with
// script and style content removed.
func (h *HTMLExtractor) ExtractText(path string, maxPages int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}

	doc.Find("script, style, noscript").Remove()

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		// Fragments without a body element still carry text at the root.
		text = strings.TrimSpace(doc.Text())
	}
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return text, nil
}
