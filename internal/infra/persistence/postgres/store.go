// Package postgres provides a Postgres-backed DocumentStore. Compare-and-set is a
// single conditional UPDATE, so concurrent backend processes sharing one
// database still cannot lose each other's writes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"fieldparty/pkg/domain"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DocumentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/fieldparty?sslmode=disable"
)

const (
	ddlDocuments = `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		version BIGINT NOT NULL,
		payload BYTEA NOT NULL
	)`
	ddlKindIndex     = `CREATE INDEX IF NOT EXISTS documents_kind_idx ON documents (kind, id)`
	queryGet         = `SELECT kind, version, payload FROM documents WHERE id = $1`
	queryVersion     = `SELECT version FROM documents WHERE id = $1`
	queryPut         = `UPDATE documents SET payload = $1, version = version + 1 WHERE id = $2 AND version = $3 RETURNING kind`
	queryCreate      = `INSERT INTO documents (id, kind, version, payload) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`
	queryDelete      = `DELETE FROM documents WHERE id = $1`
	queryList        = `SELECT id, kind, version, payload FROM documents WHERE ($1 = '' OR kind = $1) ORDER BY id`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a DocumentStore backed by a Postgres table.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN)
// and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range []string{ddlDocuments, ddlKindIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure documents table: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Get loads a single document.
func (s *Store) Get(ctx context.Context, id string) (domain.Document, error) {
	doc := domain.Document{ID: id}
	var kind string
	err := s.db.QueryRowContext(ctx, queryGet, id).Scan(&kind, &doc.Version, &doc.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.NotFoundError{ID: id}
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("select %s: %w", id, err)
	}
	doc.Kind = domain.Kind(kind)
	return doc, nil
}

// Put writes doc when the stored version still equals expected.
func (s *Store) Put(ctx context.Context, doc domain.Document, expected int64) (domain.Document, error) {
	payload := doc.Payload
	if payload == nil {
		payload = []byte{}
	}
	var kind string
	err := s.db.QueryRowContext(ctx, queryPut, payload, doc.ID, expected).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, s.missOrConflict(ctx, doc.ID, expected)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("update %s: %w", doc.ID, err)
	}
	return domain.Document{ID: doc.ID, Kind: domain.Kind(kind), Version: expected + 1, Payload: payload}, nil
}

func (s *Store) missOrConflict(ctx context.Context, id string, expected int64) error {
	var current int64
	err := s.db.QueryRowContext(ctx, queryVersion, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("select version %s: %w", id, err)
	}
	return fmt.Errorf("document %s at version %d, expected %d: %w", id, current, expected, domain.ErrVersionConflict)
}

// Create inserts doc; an empty id is replaced by a fresh UUID.
func (s *Store) Create(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Payload == nil {
		doc.Payload = []byte{}
	}
	res, err := s.db.ExecContext(ctx, queryCreate, doc.ID, string(doc.Kind), doc.Version, doc.Payload)
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	if n == 0 {
		return domain.Document{}, fmt.Errorf("document %q: %w", doc.ID, domain.ErrAlreadyExists)
	}
	return doc, nil
}

// Delete removes the row for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, queryDelete, id)
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
func (s *Store) List(ctx context.Context, kind domain.Kind) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, queryList, string(kind))
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Document
	for rows.Next() {
		var (
			doc  domain.Document
			kind string
		)
		if err := rows.Scan(&doc.ID, &kind, &doc.Version, &doc.Payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc.Kind = domain.Kind(kind)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
