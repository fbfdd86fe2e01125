package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"fieldparty/pkg/domain"

	"github.com/google/uuid"
)

// sessionPtr constrains P to *T where *T is a domain session.
type sessionPtr[T any] interface {
	*T
	domain.Versioned
}

// SessionStore makes read-transform-write atomic per session id on top of a
// DocumentStore that only offers single-document compare-and-set.
//
// Mutations of one id are serialized by an in-process slot; the version check on
// Put catches writers outside this process, in which case the transform is
// re-applied to fresh state up to the configured number of attempts.
type SessionStore[T any, P sessionPtr[T]] struct {
	docs  domain.DocumentStore
	kind  domain.Kind
	locks *lockTable
	opts  options
}

// NewSessionStore builds a store for one session type.
func NewSessionStore[T any, P sessionPtr[T]](docs domain.DocumentStore, opts ...Option) *SessionStore[T, P] {
	var zero T
	return &SessionStore[T, P]{
		docs:  docs,
		kind:  P(&zero).Kind(),
		locks: newLockTable(),
		opts:  buildOptions(opts),
	}
}

// Kind reports the session kind handled by the store.
func (s *SessionStore[T, P]) Kind() domain.Kind { return s.kind }

func (s *SessionStore[T, P]) notFound(id string) error {
	return domain.NotFoundError{Kind: s.kind, ID: id}
}

// load fetches and decodes id. Documents of another kind are reported as not found.
func (s *SessionStore[T, P]) load(ctx context.Context, id string) (T, domain.Document, error) {
	var val T
	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return val, doc, s.notFound(id)
	}
	if err != nil {
		return val, doc, err
	}
	if doc.Kind != s.kind {
		return val, doc, s.notFound(id)
	}
	if err := s.opts.codec.Unmarshal(doc.Payload, &val); err != nil {
		return val, doc, fmt.Errorf("decode %s %s: %w", s.kind, id, err)
	}
	p := P(&val)
	p.Normalize()
	meta := p.Meta()
	meta.ID = id
	meta.Version = doc.Version
	return val, doc, nil
}

// Read returns the persisted state without taking the per-id slot. It may
// observe any committed version; use Mutate with a no-op transform for a view
// ordered against in-flight mutations.
func (s *SessionStore[T, P]) Read(ctx context.Context, id string) (T, error) {
	val, _, err := s.load(ctx, id)
	return val, err
}

// List decodes every session of this kind.
func (s *SessionStore[T, P]) List(ctx context.Context) ([]T, error) {
	docs, err := s.docs.List(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var val T
		if err := s.opts.codec.Unmarshal(doc.Payload, &val); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", s.kind, doc.ID, err)
		}
		p := P(&val)
		p.Normalize()
		p.Meta().ID = doc.ID
		p.Meta().Version = doc.Version
		out = append(out, val)
	}
	return out, nil
}

// Create persists val as a new session at version 0 and returns it with its id assigned.
func (s *SessionStore[T, P]) Create(ctx context.Context, val T) (T, error) {
	p := P(&val)
	p.Normalize()
	meta := p.Meta()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	now := s.opts.clock.Now()
	meta.Version = 0
	meta.CreatedAt = now
	meta.UpdatedAt = now
	payload, err := s.opts.codec.Marshal(val)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("encode %s: %w", s.kind, err)
	}
	if _, err := s.docs.Create(ctx, domain.Document{ID: meta.ID, Kind: s.kind, Version: 0, Payload: payload}); err != nil {
		var zero T
		return zero, err
	}
	return val, nil
}

// Mutate applies transform to the current state of id and persists the result.
//
// transform receives a freshly decoded copy on every attempt and must not have
// side effects. Returning an error aborts without writing and the error is
// passed through unchanged. A transform that leaves the state unchanged
// commits nothing and the version stays put.
//
// Store-level version conflicts re-run the transform on fresh state; after the
// attempt ceiling Mutate fails with a ContentionError.
func (s *SessionStore[T, P]) Mutate(ctx context.Context, id string, transform func(P) error) (T, error) {
	var zero T
	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return zero, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		val, doc, err := s.load(ctx, id)
		if err != nil {
			return zero, err
		}
		if err := transform(P(&val)); err != nil {
			return zero, err
		}
		meta := P(&val).Meta()
		// Identity and immutable fields are owned by the store.
		meta.ID = id
		meta.Version = doc.Version
		unchanged, err := s.opts.codec.Marshal(val)
		if err != nil {
			return zero, fmt.Errorf("encode %s %s: %w", s.kind, id, err)
		}
		if bytes.Equal(unchanged, doc.Payload) {
			return val, nil
		}

		meta.Version = doc.Version + 1
		meta.UpdatedAt = s.opts.clock.Now()
		payload, err := s.opts.codec.Marshal(val)
		if err != nil {
			return zero, fmt.Errorf("encode %s %s: %w", s.kind, id, err)
		}
		_, err = s.docs.Put(ctx, domain.Document{ID: id, Kind: s.kind, Payload: payload}, doc.Version)
		if err == nil {
			return val, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return zero, s.notFound(id)
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return zero, err
		}

		s.opts.metrics.Conflict(ctx, s.kind)
		s.opts.logger.Debug("version conflict, retrying", "kind", s.kind, "id", id, "attempt", attempt, "expected_version", doc.Version)
		if attempt >= s.opts.maxAttempts {
			s.opts.logger.Warn("retry ceiling reached", "kind", s.kind, "id", id, "attempts", attempt)
			return zero, domain.ContentionError{ID: id, Attempts: attempt}
		}
		if err := s.backoff(ctx, attempt); err != nil {
			return zero, err
		}
	}
}

func (s *SessionStore[T, P]) backoff(ctx context.Context, attempt int) error {
	if s.opts.retryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(attempt) * s.opts.retryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delete removes id outright. It takes the same slot as Mutate so a delete
// never lands between the read and write of a local mutation. Deleting an id
// that is already gone succeeds; an id held by another kind is NotFound.
func (s *SessionStore[T, P]) Delete(ctx context.Context, id string) error {
	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if doc.Kind != s.kind {
		return s.notFound(id)
	}
	if err := s.docs.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
