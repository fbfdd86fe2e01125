package domain

import "context"

// Kind tags the session type stored in a document.
type Kind string

const (
	// KindParty marks party documents.
	KindParty Kind = "party"
	// KindRoute marks route documents.
	KindRoute Kind = "route"
)

// Document is the opaque unit of persistence. Payload is encoded by the layer
// above; the store only ever compares Version.
type Document struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Version int64  `json:"version"`
	Payload []byte `json:"payload"`
}

// DocumentStore is the persistence contract consumed by SessionStore. It offers
// single-document atomicity only: there are no multi-key transactions.
type DocumentStore interface {
	// Get returns the current document or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)
	// Put replaces the document only if its stored version equals expected.
	// On success the stored version becomes expected+1 and the stored document is
	// returned. A stale expected version yields ErrVersionConflict.
	Put(ctx context.Context, doc Document, expected int64) (Document, error)
	// Create inserts a new document, assigning an id when doc.ID is empty.
	// The supplied version is stored as-is. Duplicate ids yield ErrAlreadyExists.
	Create(ctx context.Context, doc Document) (Document, error)
	// Delete removes the document outright or returns an error wrapping ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List returns every document of the given kind ordered by id. An empty
	// kind lists all documents.
	List(ctx context.Context, kind Kind) ([]Document, error)
}
