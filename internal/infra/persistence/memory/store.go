// Package memory provides an in-memory DocumentStore used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fieldparty/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.DocumentStore = (*Store)(nil)

type (
	// Document aliases domain.Document for in-memory persistence operations.
	Document = domain.Document
	// Kind aliases domain.Kind.
	Kind = domain.Kind
)

// Store keeps documents in a map guarded by a single RWMutex.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]Document
	newID func() string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		docs:  make(map[string]Document),
		newID: uuid.NewString,
	}
}

func cloneDocument(d Document) Document {
	cp := d
	cp.Payload = append([]byte(nil), d.Payload...)
	return cp
}

func notFound(id string) error {
	return domain.NotFoundError{ID: id}
}

// Get returns a copy of the stored document.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, notFound(id)
	}
	return cloneDocument(d), nil
}

// Put replaces doc when the stored version equals expected.
func (s *Store) Put(ctx context.Context, doc Document, expected int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[doc.ID]
	if !ok {
		return Document{}, notFound(doc.ID)
	}
	if current.Version != expected {
		return Document{}, fmt.Errorf("document %s at version %d, expected %d: %w", doc.ID, current.Version, expected, domain.ErrVersionConflict)
	}
	next := cloneDocument(doc)
	next.Kind = current.Kind
	next.Version = expected + 1
	s.docs[doc.ID] = next
	return cloneDocument(next), nil
}

// Create inserts doc, generating an id when none is set.
func (s *Store) Create(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = s.newID()
	}
	if _, exists := s.docs[doc.ID]; exists {
		return Document{}, fmt.Errorf("document %q: %w", doc.ID, domain.ErrAlreadyExists)
	}
	s.docs[doc.ID] = cloneDocument(doc)
	return cloneDocument(doc), nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return notFound(id)
	}
	delete(s.docs, id)
	return nil
}

// List returns documents of kind (all kinds when empty) sorted by id.
func (s *Store) List(ctx context.Context, kind Kind) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		if kind != "" && d.Kind != kind {
			continue
		}
		out = append(out, cloneDocument(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
