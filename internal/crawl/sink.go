// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Sink is an append-only JSONL file shared by all workers. A single
// mutex-guarded writer keeps every emitted line complete, and each append
// is synced before returning so a crash loses at most the in-flight line.
type Sink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenSink opens (or creates) the JSONL file at path in append mode.
func OpenSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening sink %s: %w", path, err)
	}
	return &Sink{f: f, path: path}, nil
}

// Append marshals v and durably appends it as one line.
func (s *Sink) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling sink record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("appending to %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", s.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
