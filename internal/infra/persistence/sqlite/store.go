// Package sqlite persists session documents in a single SQLite table. Each row
// carries its own version column so Put can compare-and-set in one statement.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fieldparty/pkg/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DocumentStore = (*Store)(nil)

type (
	// Document aliases domain.Document.
	Document = domain.Document
	// Kind aliases domain.Kind.
	Kind = domain.Kind
)

const defaultPath = "fieldparty.db"

// Store is a DocumentStore backed by an embedded SQLite file.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection turns SQLITE_BUSY into queueing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		version INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get loads a single document.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	doc := Document{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT kind, version, payload FROM documents WHERE id = ?`, id).
		Scan(&doc.Kind, &doc.Version, &doc.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, domain.NotFoundError{ID: id}
	}
	if err != nil {
		return Document{}, fmt.Errorf("select %s: %w", id, err)
	}
	return doc, nil
}

// Put writes doc when the stored version still equals expected.
func (s *Store) Put(ctx context.Context, doc Document, expected int64) (Document, error) {
	payload := doc.Payload
	if payload == nil {
		payload = []byte{}
	}
	var kind Kind
	err := s.db.QueryRowContext(ctx,
		`UPDATE documents SET payload = ?, version = version + 1 WHERE id = ? AND version = ? RETURNING kind`,
		payload, doc.ID, expected).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, s.missOrConflict(ctx, doc.ID, expected)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update %s: %w", doc.ID, err)
	}
	return Document{ID: doc.ID, Kind: kind, Version: expected + 1, Payload: payload}, nil
}

func (s *Store) missOrConflict(ctx context.Context, id string, expected int64) error {
	var current int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM documents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("select version %s: %w", id, err)
	}
	return fmt.Errorf("document %s at version %d, expected %d: %w", id, current, expected, domain.ErrVersionConflict)
}

// Create inserts doc; an empty id is replaced by a fresh UUID.
func (s *Store) Create(ctx context.Context, doc Document) (Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Payload == nil {
		doc.Payload = []byte{}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, kind, version, payload) VALUES(?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		doc.ID, string(doc.Kind), doc.Version, doc.Payload)
	if err != nil {
		return Document{}, fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Document{}, fmt.Errorf("insert %s: %w", doc.ID, err)
	} else if n == 0 {
		return Document{}, fmt.Errorf("document %q: %w", doc.ID, domain.ErrAlreadyExists)
	}
	return doc, nil
}

// Delete removes the row for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return domain.NotFoundError{ID: id}
	}
	return nil
}

// List returns documents of kind, or every document when kind is empty.
func (s *Store) List(ctx context.Context, kind Kind) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, version, payload FROM documents WHERE (? = '' OR kind = ?) ORDER BY id`,
		string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Kind, &doc.Version, &doc.Payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
