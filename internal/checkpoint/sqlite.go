// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps checkpoint state in an embedded database. Unlike the
// file backend it records completions itself, so it also serves setups
// where the metadata log lives on storage that cannot be rescanned
// cheaply.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the checkpoint database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS checkpoint (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS completed (
			doc_id INTEGER PRIMARY KEY,
			external_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_external ON completed(external_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Load reads the cursor row and the completed table.
func (s *SQLiteStore) Load() (State, error) {
	st := State{
		Cursor:       StartCursor,
		Completed:    make(map[int]bool),
		SeenExternal: make(map[string]bool),
	}

	query, args, err := sq.Select("value").
		From("checkpoint").
		Where(sq.Eq{"key": "cursor"}).
		ToSql()
	if err != nil {
		return State{}, fmt.Errorf("building cursor query: %w", err)
	}
	var cursor string
	switch err := s.db.QueryRow(query, args...).Scan(&cursor); {
	case err == nil:
		if cursor != "" {
			st.Cursor = cursor
		}
	case errors.Is(err, sql.ErrNoRows):
		// Fresh store.
	default:
		return State{}, fmt.Errorf("loading cursor: %w", err)
	}

	query, args, err = sq.Select("doc_id", "external_id").From("completed").ToSql()
	if err != nil {
		return State{}, fmt.Errorf("building completed query: %w", err)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return State{}, fmt.Errorf("loading completed ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID int
		var externalID sql.NullString
		if err := rows.Scan(&docID, &externalID); err != nil {
			return State{}, fmt.Errorf("scanning completed row: %w", err)
		}
		st.Completed[docID] = true
		if externalID.Valid && externalID.String != "" {
			st.SeenExternal[externalID.String] = true
		}
		if docID >= st.NextDocID {
			st.NextDocID = docID + 1
		}
	}
	if err := rows.Err(); err != nil {
		return State{}, fmt.Errorf("iterating completed rows: %w", err)
	}
	return st, nil
}

// SaveCursor upserts the cursor row.
func (s *SQLiteStore) SaveCursor(cursor string) error {
	query, args, err := sq.Insert("checkpoint").
		Columns("key", "value").
		Values("cursor", cursor).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("building cursor upsert: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// MarkCompleted records a finished download. Re-marking the same id is
// harmless; resumes may replay the tail of a page.
func (s *SQLiteStore) MarkCompleted(docID int, externalID string) error {
	query, args, err := sq.Insert("completed").
		Columns("doc_id", "external_id").
		Values(docID, externalID).
		Suffix("ON CONFLICT(doc_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building completed insert: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("marking doc %d completed: %w", docID, err)
	}
	return nil
}

// Reset clears both tables.
func (s *SQLiteStore) Reset() error {
	for _, table := range []string{"checkpoint", "completed"} {
		query, args, err := sq.Delete(table).ToSql()
		if err != nil {
			return fmt.Errorf("building delete for %s: %w", table, err)
		}
		if _, err := s.db.Exec(query, args...); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
