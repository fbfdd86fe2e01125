package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"fieldparty/internal/infra/persistence/storetest"
	"fieldparty/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "fieldparty.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.DocumentStore { return newTestStore(t) })
}

func TestStoreMethodSet(t *testing.T) {
	storetest.RequireMethods(t, (*Store)(nil), "Close")
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldparty.db")
	ctx := context.Background()
	first, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	doc, err := first.Create(ctx, domain.Document{ID: "p1", Kind: domain.KindParty, Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := first.Put(ctx, doc, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	got, err := second.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Version != 1 || got.Kind != domain.KindParty {
		t.Fatalf("unexpected document after reopen %+v", got)
	}
}
