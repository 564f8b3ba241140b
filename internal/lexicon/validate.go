// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lexicon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// Violation kinds. Every terminal discrepancy maps to exactly one kind.
const (
	KindIndexOutOfRange = "index_out_of_range"
	KindIndexMismatch   = "index_mismatch"
	KindDuplicateIndex  = "duplicate_index"
	KindSizeMismatch    = "size_mismatch"
	KindUnknownToken    = "unknown_token"
	KindDocFreqMissing  = "doc_frequency_missing"
	KindDocFreqMismatch = "doc_frequency_mismatch"
	KindCumFreqMissing  = "cumulative_doc_frequency_missing"
	KindIDFMissing      = "idf_missing"
)

// Violation is one discrepancy between the lexicon and the corpus.
type Violation struct {
	Kind   string
	Word   string
	Index  int
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: word=%q index=%d %s", v.Kind, v.Word, v.Index, v.Detail)
}

// Report collects every violation found in one pass. Validation has no
// authority to repair the lexicon; it only enumerates discrepancies.
type Report struct {
	Documents  int
	Words      int
	Violations []Violation
}

// OK reports whether the lexicon is consistent with the corpus.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

func (r *Report) add(v Violation) { r.Violations = append(r.Violations, v) }

// corpusLine is the slice of an enriched record the validator needs.
type corpusLine struct {
	DocID      int      `json:"doc_id"`
	BodyTokens []string `json:"body_tokens"`
}

// Validate checks every lexicon invariant against the corpus and reports
// all violations, not just the first: index continuity and bijectivity
// of the word/index mapping, per-word document frequency against a fresh
// recount, one cumulative-frequency entry per index, and an idf value
// for every index.
func Validate(lex *Lexicon, corpusPath string, log *zap.Logger) (*Report, error) {
	rep := &Report{Words: lex.Size()}

	checkBijection(lex, rep)

	recount, err := recountDocFrequencies(lex, corpusPath, rep)
	if err != nil {
		return nil, err
	}
	checkDocFrequencies(lex, recount, rep)
	checkStatCoverage(lex, rep)

	log.Info("lexicon validated",
		zap.Int("words", rep.Words),
		zap.Int("documents", rep.Documents),
		zap.Int("violations", len(rep.Violations)))
	return rep, nil
}

// checkBijection verifies word_to_index and index_to_word describe the
// same dense mapping: every index in range, every pair aligned, no index
// claimed twice, and the two sides equally sized.
func checkBijection(lex *Lexicon, rep *Report) {
	n := lex.Size()
	if len(lex.WordToIndex) != n {
		rep.add(Violation{
			Kind:   KindSizeMismatch,
			Detail: fmt.Sprintf("word_to_index has %d entries, index_to_word has %d", len(lex.WordToIndex), n),
		})
	}

	words := make([]string, 0, len(lex.WordToIndex))
	for word := range lex.WordToIndex {
		words = append(words, word)
	}
	sort.Strings(words)

	claimed := make(map[int]string, n)
	for _, word := range words {
		idx := lex.WordToIndex[word]
		if idx < 0 || idx >= n {
			rep.add(Violation{Kind: KindIndexOutOfRange, Word: word, Index: idx,
				Detail: fmt.Sprintf("lexicon holds %d words", n)})
			continue
		}
		if prev, dup := claimed[idx]; dup {
			rep.add(Violation{Kind: KindDuplicateIndex, Word: word, Index: idx,
				Detail: fmt.Sprintf("also claimed by %q", prev)})
			continue
		}
		claimed[idx] = word
		if lex.IndexToWord[idx] != word {
			rep.add(Violation{Kind: KindIndexMismatch, Word: word, Index: idx,
				Detail: fmt.Sprintf("index_to_word[%d] = %q", idx, lex.IndexToWord[idx])})
		}
	}
}

// recountDocFrequencies scans the corpus once and counts, per lexicon
// word, the number of documents whose token set contains it. Tokens not
// in the lexicon are violations attributed to their document.
func recountDocFrequencies(lex *Lexicon, corpusPath string, rep *Report) (map[string]int, error) {
	f, err := os.Open(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	recount := make(map[string]int, lex.Size())
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc corpusLine
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("parsing corpus line %d: %w", rep.Documents+1, err)
		}
		rep.Documents++

		seen := make(map[string]bool, len(doc.BodyTokens))
		for _, tok := range doc.BodyTokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if _, ok := lex.WordToIndex[tok]; !ok {
				rep.add(Violation{Kind: KindUnknownToken, Word: tok,
					Detail: fmt.Sprintf("in doc %d but not in lexicon", doc.DocID)})
				continue
			}
			recount[tok]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}
	return recount, nil
}

// checkDocFrequencies compares the lexicon's stored document frequencies
// against the fresh recount.
func checkDocFrequencies(lex *Lexicon, recount map[string]int, rep *Report) {
	for word, idx := range lex.WordToIndex {
		stored, ok := lex.DocFreq[strconv.Itoa(idx)]
		if !ok {
			rep.add(Violation{Kind: KindDocFreqMissing, Word: word, Index: idx})
			continue
		}
		if actual := recount[word]; stored != actual {
			rep.add(Violation{Kind: KindDocFreqMismatch, Word: word, Index: idx,
				Detail: fmt.Sprintf("stored %d, corpus has %d", stored, actual)})
		}
	}
}

// checkStatCoverage verifies every index carries a cumulative document
// frequency and an inverse document frequency.
func checkStatCoverage(lex *Lexicon, rep *Report) {
	n := lex.Size()
	if len(lex.CumDocFreq) != n {
		rep.add(Violation{
			Kind:   KindSizeMismatch,
			Detail: fmt.Sprintf("cumulative_doc_frequency has %d entries for %d words", len(lex.CumDocFreq), n),
		})
	}
	for i := 0; i < n; i++ {
		key := strconv.Itoa(i)
		if _, ok := lex.CumDocFreq[key]; !ok {
			rep.add(Violation{Kind: KindCumFreqMissing, Word: lex.IndexToWord[i], Index: i})
		}
		if _, ok := lex.IDF[key]; !ok {
			rep.add(Violation{Kind: KindIDFMissing, Word: lex.IndexToWord[i], Index: i})
		}
	}
}
