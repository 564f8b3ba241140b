// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lexicon models the vocabulary file the downstream search
// engine derives from the corpus, and verifies its consistency against
// the corpus it claims to describe.
package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
)

// Lexicon is the on-disk vocabulary: a word/index bijection plus
// per-index frequency statistics. The frequency maps are keyed by the
// stringified index.
type Lexicon struct {
	WordToIndex map[string]int     `json:"word_to_index"`
	IndexToWord []string           `json:"index_to_word"`
	DocFreq     map[string]int     `json:"doc_frequency"`
	CumDocFreq  map[string]float64 `json:"cumulative_doc_frequency"`
	IDF         map[string]float64 `json:"idf"`
}

// Size returns the number of indexed words.
func (l *Lexicon) Size() int { return len(l.IndexToWord) }

// Load reads a lexicon file.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	var lex Lexicon
	if err := json.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	return &lex, nil
}
