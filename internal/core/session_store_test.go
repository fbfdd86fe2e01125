package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldparty/internal/codec"
	"fieldparty/internal/infra/persistence/memory"
	"fieldparty/pkg/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// conflictingStore fails every Put with a version conflict.
type conflictingStore struct {
	domain.DocumentStore
	puts atomic.Int32
}

func (s *conflictingStore) Put(context.Context, domain.Document, int64) (domain.Document, error) {
	s.puts.Add(1)
	return domain.Document{}, domain.ErrVersionConflict
}

// racingStore lets an outside writer bump the document before the first Put.
type racingStore struct {
	domain.DocumentStore
	once sync.Once
	race func(ctx context.Context)
	puts atomic.Int32
}

func (s *racingStore) Put(ctx context.Context, doc domain.Document, expected int64) (domain.Document, error) {
	s.puts.Add(1)
	s.once.Do(func() { s.race(ctx) })
	return s.DocumentStore.Put(ctx, doc, expected)
}

type countingStore struct {
	domain.DocumentStore
	puts atomic.Int32
}

func (s *countingStore) Put(ctx context.Context, doc domain.Document, expected int64) (domain.Document, error) {
	s.puts.Add(1)
	return s.DocumentStore.Put(ctx, doc, expected)
}

func TestMutateGivesUpWithContention(t *testing.T) {
	rec, err := NewPrometheusRecorder(nil)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	store := &conflictingStore{DocumentStore: memory.NewStore()}
	parties := NewSessionStore[domain.Party](store, WithRetryBackoff(0), WithMetrics(rec))
	ctx := context.Background()

	p, err := parties.Create(ctx, domain.NewParty("L"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = parties.Mutate(ctx, p.ID, func(p *domain.Party) error {
		p.Join("A")
		return nil
	})
	var contention domain.ContentionError
	if !errors.As(err, &contention) {
		t.Fatalf("expected contention error, got %v", err)
	}
	if contention.Attempts != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, contention.Attempts)
	}
	if got := store.puts.Load(); got != DefaultMaxAttempts {
		t.Fatalf("expected %d puts, got %d", DefaultMaxAttempts, got)
	}
	if !domain.IsRetryable(err) {
		t.Fatalf("contention should be retryable")
	}
	if got := testutil.ToFloat64(rec.Conflicts().WithLabelValues(string(domain.KindParty))); got != DefaultMaxAttempts {
		t.Fatalf("expected %d conflicts recorded, got %v", DefaultMaxAttempts, got)
	}
}

func TestMutateHonoursMaxAttempts(t *testing.T) {
	store := &conflictingStore{DocumentStore: memory.NewStore()}
	routes := NewSessionStore[domain.Route](store, WithRetryBackoff(0), WithMaxAttempts(2))
	ctx := context.Background()
	r, _ := routes.Create(ctx, domain.NewRoute("U1", "R", domain.Location{}))
	_, err := routes.Mutate(ctx, r.ID, func(r *domain.Route) error { return r.Complete() })
	if !errors.Is(err, domain.ErrContention) {
		t.Fatalf("expected contention, got %v", err)
	}
	if got := store.puts.Load(); got != 2 {
		t.Fatalf("expected 2 puts, got %d", got)
	}
}

func TestMutateRetriesOnOutsideWriter(t *testing.T) {
	mem := memory.NewStore()
	var parties *SessionStore[domain.Party, *domain.Party]
	var partyID string
	store := &racingStore{DocumentStore: mem}
	store.race = func(ctx context.Context) {
		// Another process joins B directly against the document store.
		outside := NewSessionStore[domain.Party](mem)
		if _, err := outside.Mutate(ctx, partyID, func(p *domain.Party) error {
			p.Join("B")
			return nil
		}); err != nil {
			t.Errorf("outside writer: %v", err)
		}
	}
	parties = NewSessionStore[domain.Party](store, WithRetryBackoff(0))
	ctx := context.Background()

	p, err := parties.Create(ctx, domain.NewParty("L"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	partyID = p.ID

	var calls int
	got, err := parties.Mutate(ctx, p.ID, func(p *domain.Party) error {
		calls++
		p.Join("A")
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected transform to run twice, ran %d", calls)
	}
	if !got.Members.Contains("A") || !got.Members.Contains("B") || got.Members.Len() != 3 {
		t.Fatalf("lost update, members %v", got.Members)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
}

func TestMutateDomainErrorDoesNotRetryOrWrite(t *testing.T) {
	store := &countingStore{DocumentStore: memory.NewStore()}
	parties := NewSessionStore[domain.Party](store)
	ctx := context.Background()
	p, _ := parties.Create(ctx, domain.NewParty("L"))

	var calls int
	_, err := parties.Mutate(ctx, p.ID, func(p *domain.Party) error {
		calls++
		p.Join("A")
		return p.Leave("L")
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("domain error retried %d times", calls)
	}
	if store.puts.Load() != 0 {
		t.Fatalf("domain error must not write")
	}
	got, _ := parties.Read(ctx, p.ID)
	if got.Members.Contains("A") {
		t.Fatalf("partial mutation leaked")
	}
}

func TestMutateNoChangeSkipsWrite(t *testing.T) {
	store := &countingStore{DocumentStore: memory.NewStore()}
	parties := NewSessionStore[domain.Party](store)
	ctx := context.Background()
	p, _ := parties.Create(ctx, domain.NewParty("L"))

	got, err := parties.Mutate(ctx, p.ID, func(*domain.Party) error { return nil })
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if store.puts.Load() != 0 || got.Version != 0 {
		t.Fatalf("identity transform wrote: puts=%d version=%d", store.puts.Load(), got.Version)
	}
}

func TestMutateOwnsIdentityFields(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	parties := NewSessionStore[domain.Party](memory.NewStore(), WithClock(fixedClock{now}))
	ctx := context.Background()
	p, _ := parties.Create(ctx, domain.NewParty("L"))

	got, err := parties.Mutate(ctx, p.ID, func(p *domain.Party) error {
		p.ID = "hijack"
		p.Version = 99
		p.Join("A")
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got.ID != p.ID || got.Version != 1 {
		t.Fatalf("expected id %s version 1, got %s %d", p.ID, got.ID, got.Version)
	}
	if !got.UpdatedAt.Equal(now) || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps %v %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestMutateCancelledWhileWaitingForSlot(t *testing.T) {
	parties := NewSessionStore[domain.Party](memory.NewStore())
	ctx := context.Background()
	p, _ := parties.Create(ctx, domain.NewParty("L"))

	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := parties.Mutate(ctx, p.ID, func(p *domain.Party) error {
			close(entered)
			<-unblock
			p.Join("A")
			return nil
		})
		done <- err
	}()
	<-entered

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := parties.Mutate(waitCtx, p.ID, func(p *domain.Party) error {
		p.Join("B")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
	got, _ := parties.Read(ctx, p.ID)
	if got.Members.Contains("B") || !got.Members.Contains("A") {
		t.Fatalf("unexpected members %v", got.Members)
	}
}

func TestMutateWithCBORCodec(t *testing.T) {
	c, err := codec.New(codec.CBOR)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	store := &countingStore{DocumentStore: memory.NewStore()}
	routes := NewSessionStore[domain.Route](store, WithCodec(c))
	ctx := context.Background()
	r, err := routes.Create(ctx, domain.NewRoute("U1", "R", domain.Location{Latitude: 1.5, Longitude: -2}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := routes.Mutate(ctx, r.ID, func(r *domain.Route) error { return r.AddActiveUser("U1") }); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if store.puts.Load() != 0 {
		t.Fatalf("no-op mutation wrote under cbor")
	}
	got, err := routes.Mutate(ctx, r.ID, func(r *domain.Route) error { return r.Complete() })
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !got.Completed || got.Version != 1 || got.Waypoints[0].Location.Latitude != 1.5 {
		t.Fatalf("unexpected route %+v", got)
	}
}

func TestDeleteWaitsForSlotAndChecksKind(t *testing.T) {
	mem := memory.NewStore()
	parties := NewSessionStore[domain.Party](mem)
	routes := NewSessionStore[domain.Route](mem)
	ctx := context.Background()
	p, _ := parties.Create(ctx, domain.NewParty("L"))

	if err := routes.Delete(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for wrong kind, got %v", err)
	}
	if err := parties.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := parties.Read(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := parties.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete of missing id: %v", err)
	}
}

func TestLockTable(t *testing.T) {
	locks := newLockTable()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	other, err := locks.acquire(ctx, "b")
	if err != nil {
		t.Fatalf("independent id blocked: %v", err)
	}
	other()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := locks.acquire(cancelled, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	release()
	again, err := locks.acquire(ctx, "a")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
	if locks.len() != 2 {
		t.Fatalf("expected 2 slots, got %d", locks.len())
	}
}
