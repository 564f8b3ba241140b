// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreFresh(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "meta.jsonl"))

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Cursor != StartCursor {
		t.Errorf("Cursor = %q, want %q", st.Cursor, StartCursor)
	}
	if st.NextDocID != 0 || st.SuccessCount() != 0 {
		t.Errorf("fresh store not empty: next=%d count=%d", st.NextDocID, st.SuccessCount())
	}
}

func TestFileStoreLoadScansMetadataLog(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.jsonl")

	lines := `{"doc_id":0,"openalex_id":"https://openalex.org/W1","title":"a","url":"u","publication_year":2020,"page_rank":{"cited_by_count":3},"pdf_path":"p"}
{"doc_id":2,"openalex_id":"https://openalex.org/W2","title":"b","url":"u","publication_year":2021,"page_rank":{"cited_by_count":1},"pdf_path":"p"}
{"doc_id":1,"title":"c","url":"u","publication_year":2019,"page_rank":{"cited_by_count":0},"pdf_path":"p"}
{"torn line that never finished
`
	if err := os.WriteFile(metaPath, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(metaPath)
	if err := store.SaveCursor("cursor-abc"); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Cursor != "cursor-abc" {
		t.Errorf("Cursor = %q, want cursor-abc", st.Cursor)
	}
	if st.NextDocID != 3 {
		t.Errorf("NextDocID = %d, want 3 (one past the highest completed id)", st.NextDocID)
	}
	if st.SuccessCount() != 3 {
		t.Errorf("SuccessCount = %d, want 3", st.SuccessCount())
	}
	for _, id := range []int{0, 1, 2} {
		if !st.Completed[id] {
			t.Errorf("doc %d missing from completed set", id)
		}
	}
	if !st.SeenExternal["https://openalex.org/W1"] || !st.SeenExternal["https://openalex.org/W2"] {
		t.Errorf("seen-external set incomplete: %v", st.SeenExternal)
	}
}

func TestFileStoreCursorRoundTripAndReset(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "meta.jsonl"))

	for _, cursor := range []string{"c1", "c2", "c3"} {
		if err := store.SaveCursor(cursor); err != nil {
			t.Fatalf("SaveCursor(%q): %v", cursor, err)
		}
		st, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if st.Cursor != cursor {
			t.Errorf("Cursor = %q, want %q (no regression on overwrite)", st.Cursor, cursor)
		}
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load after reset: %v", err)
	}
	if st.Cursor != StartCursor {
		t.Errorf("Cursor after reset = %q, want %q", st.Cursor, StartCursor)
	}
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "meta.jsonl.checkpoint.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Cursor != StartCursor || st.NextDocID != 0 {
		t.Errorf("fresh sqlite store: cursor=%q next=%d", st.Cursor, st.NextDocID)
	}

	if err := store.SaveCursor("page-7"); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := store.SaveCursor("page-8"); err != nil {
		t.Fatalf("SaveCursor overwrite: %v", err)
	}
	for i, ext := range []string{"W10", "W11", "W12"} {
		if err := store.MarkCompleted(i, ext); err != nil {
			t.Fatalf("MarkCompleted(%d): %v", i, err)
		}
	}
	// Replaying a completion must not fail or double-count.
	if err := store.MarkCompleted(1, "W11"); err != nil {
		t.Fatalf("MarkCompleted replay: %v", err)
	}

	st, err = store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Cursor != "page-8" {
		t.Errorf("Cursor = %q, want page-8", st.Cursor)
	}
	if st.SuccessCount() != 3 || st.NextDocID != 3 {
		t.Errorf("count=%d next=%d, want 3/3", st.SuccessCount(), st.NextDocID)
	}
	if !st.SeenExternal["W11"] {
		t.Errorf("seen-external set missing W11: %v", st.SeenExternal)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, err = store.Load()
	if err != nil {
		t.Fatalf("Load after reset: %v", err)
	}
	if st.Cursor != StartCursor || st.SuccessCount() != 0 {
		t.Errorf("reset did not clear state: cursor=%q count=%d", st.Cursor, st.SuccessCount())
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ck.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.SaveCursor("survives"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkCompleted(41, "W41"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	st, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Cursor != "survives" || st.NextDocID != 42 {
		t.Errorf("state lost across reopen: cursor=%q next=%d", st.Cursor, st.NextDocID)
	}
}
