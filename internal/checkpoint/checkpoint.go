// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists acquisition progress so interrupted runs
// resume without re-fetching pages, re-downloading artifacts, or reusing
// document ids.
package checkpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// StartCursor is the opaque token meaning "start of source".
const StartCursor = "*"

// State is the durable progress record loaded once at process start.
type State struct {
	// Cursor is the pagination token to resume from.
	Cursor string

	// NextDocID is one past the highest document id ever completed;
	// ids below it are never reassigned.
	NextDocID int

	// Completed holds the ids of durably finished downloads.
	Completed map[int]bool

	// SeenExternal holds external ids already materialized, so a
	// drifting source cannot produce duplicate artifacts across runs.
	SeenExternal map[string]bool
}

// SuccessCount returns the number of durably completed downloads.
func (s State) SuccessCount() int { return len(s.Completed) }

// Store is the durable backend for State. Implementations must make each
// write visible to a subsequent Load even after a crash.
type Store interface {
	// Load reads the current state; a fresh store yields StartCursor
	// and an empty completed set.
	Load() (State, error)

	// SaveCursor durably records the pagination position.
	SaveCursor(cursor string) error

	// MarkCompleted durably records one finished download.
	MarkCompleted(docID int, externalID string) error

	// Reset discards all recorded progress.
	Reset() error

	// Close releases any underlying resources.
	Close() error
}

// New selects the checkpoint backend named by cfg. The file backend keys
// its cursor file off the metadata log path; the sqlite backend stores a
// database next to it.
func New(backend types.CheckpointBackend, metadataPath string) (Store, error) {
	switch backend {
	case types.CheckpointFile, "":
		return NewFileStore(metadataPath), nil
	case types.CheckpointSQLite:
		return NewSQLiteStore(metadataPath + ".checkpoint.db")
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}

// FileStore keeps the cursor in a sibling file of the metadata log and
// treats the log itself as the completed-id record: a metadata line is
// only appended after an artifact is durably published, so scanning the
// log reconstructs the completed set exactly.
type FileStore struct {
	metadataPath string
	cursorPath   string
}

// NewFileStore builds a file-backed store for the given metadata log.
func NewFileStore(metadataPath string) *FileStore {
	return &FileStore{
		metadataPath: metadataPath,
		cursorPath:   metadataPath + ".cursor",
	}
}

// Load reads the cursor file and scans the metadata log once. A missing
// cursor file means start of source.
func (f *FileStore) Load() (State, error) {
	st := State{
		Cursor:       StartCursor,
		Completed:    make(map[int]bool),
		SeenExternal: make(map[string]bool),
	}

	if data, err := os.ReadFile(f.cursorPath); err == nil {
		if c := string(data); c != "" {
			st.Cursor = c
		}
	} else if !os.IsNotExist(err) {
		return State{}, fmt.Errorf("reading cursor file: %w", err)
	}

	file, err := os.Open(f.metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return State{}, fmt.Errorf("opening metadata log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.DocumentRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Torn trailing line from a crash; everything before it
			// is still valid progress.
			continue
		}
		st.Completed[rec.DocID] = true
		if rec.ExternalID != "" {
			st.SeenExternal[rec.ExternalID] = true
		}
		if rec.DocID >= st.NextDocID {
			st.NextDocID = rec.DocID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return State{}, fmt.Errorf("scanning metadata log: %w", err)
	}
	return st, nil
}

// SaveCursor writes the cursor through a temp file and rename so a crash
// never leaves a torn cursor.
func (f *FileStore) SaveCursor(cursor string) error {
	dir := filepath.Dir(f.cursorPath)
	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cursor temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.WriteString(cursor)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	for _, e := range []error{writeErr, syncErr, closeErr} {
		if e != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("writing cursor: %w", e)
		}
	}

	if err := os.Rename(tmpPath, f.cursorPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing cursor: %w", err)
	}
	return nil
}

// MarkCompleted is a no-op: the metadata log append is the durable record
// for the file backend.
func (f *FileStore) MarkCompleted(docID int, externalID string) error { return nil }

// Reset removes the cursor file. The metadata log is data, not checkpoint
// state, and is left alone.
func (f *FileStore) Reset() error {
	if err := os.Remove(f.cursorPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cursor file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileStore) Close() error { return nil }
