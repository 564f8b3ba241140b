// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package token holds the single tokenizer shared by every pipeline stage.
// Title tokenization at acquisition time, body tokenization during local
// extraction, and the validator's recount all call Tokenize; the lexicon
// is only consistent if they normalize identically.
package token

import "strings"

// Tokenize lowercases text, treats every character outside [a-z0-9] as a
// separator, and drops tokens of length <= 1. It is pure and total: empty
// or non-textual input yields an empty slice.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, t := range strings.Fields(b.String()) {
		if len(t) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
