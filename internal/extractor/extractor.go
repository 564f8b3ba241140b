// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor turns downloaded document containers into plain text.
// Backends implement a single capability and are selected once at startup
// through configuration, never by runtime probing.
package extractor

import (
	"errors"
	"fmt"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// ErrNoText reports that a document parsed cleanly but yielded no usable
// text (e.g. an image-only scan). Callers treat it as a content-quality
// skip, not a transport failure.
var ErrNoText = errors.New("no extractable text")

// Extractor produces page-ordered plain text from a document on disk.
// maxPages bounds the work done on pathological documents; backends whose
// format has no page concept may ignore it.
type Extractor interface {
	// Name returns the backend identifier.
	Name() string

	// ExtractText reads the document at path and returns its text.
	ExtractText(path string, maxPages int) (string, error)
}

// New selects the extraction backend named by cfg.
func New(backend types.ExtractorBackend) (Extractor, error) {
	switch backend {
	case types.BackendPdftotext, "":
		return NewPdftotext()
	case types.BackendHTML:
		return &HTMLExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", backend)
	}
}
