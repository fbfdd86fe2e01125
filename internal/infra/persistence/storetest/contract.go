// Package storetest holds the behavioural contract every DocumentStore backend
// must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"fieldparty/pkg/domain"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) domain.DocumentStore

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("CreateAssignsID", func(t *testing.T) { testCreateAssignsID(t, newStore(t)) })
	t.Run("CreateKeepsVersion", func(t *testing.T) { testCreateKeepsVersion(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("PutCompareAndSet", func(t *testing.T) { testPutCompareAndSet(t, newStore(t)) })
	t.Run("PutMissing", func(t *testing.T) { testPutMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("ConcurrentPutsOneWinner", func(t *testing.T) { testConcurrentPuts(t, newStore(t)) })
}

// RequireMethods fails when the type of store exports methods beyond
// DocumentStore and the names in extra.
func RequireMethods(t *testing.T, store any, extra ...string) {
	t.Helper()
	allowed := make(map[string]bool, len(extra))
	for _, name := range extra {
		allowed[name] = true
	}
	iface := reflect.TypeOf((*domain.DocumentStore)(nil)).Elem()
	for i := range iface.NumMethod() {
		allowed[iface.Method(i).Name] = true
	}
	typ := reflect.TypeOf(store)
	for i := range typ.NumMethod() {
		if name := typ.Method(i).Name; !allowed[name] {
			t.Errorf("%s exports unexpected method %s", typ, name)
		}
	}
}

func testCreateAssignsID(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	doc, err := store.Create(ctx, domain.Document{Kind: domain.KindParty, Payload: []byte("p")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected generated id")
	}
	got, err := store.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != domain.KindParty || string(got.Payload) != "p" || got.Version != 0 {
		t.Fatalf("unexpected document %+v", got)
	}
}

func testCreateKeepsVersion(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	if _, err := store.Create(ctx, domain.Document{ID: "restored", Kind: domain.KindRoute, Version: 7, Payload: []byte("r")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, "restored")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 7 {
		t.Fatalf("version = %d, want 7", got.Version)
	}
}

func testCreateDuplicate(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	if _, err := store.Create(ctx, domain.Document{ID: "dup", Kind: domain.KindParty, Payload: []byte("a")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.Create(ctx, domain.Document{ID: "dup", Kind: domain.KindParty, Payload: []byte("b")})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, _ := store.Get(ctx, "dup")
	if string(got.Payload) != "a" {
		t.Fatalf("duplicate create overwrote payload: %q", got.Payload)
	}
}

func testPutCompareAndSet(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	doc, err := store.Create(ctx, domain.Document{ID: "cas", Kind: domain.KindRoute, Payload: []byte("v0")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	doc.Payload = []byte("v1")
	stored, err := store.Put(ctx, doc, 0)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored.Version != 1 || stored.Kind != domain.KindRoute {
		t.Fatalf("unexpected stored document %+v", stored)
	}
	doc.Payload = []byte("stale")
	if _, err := store.Put(ctx, doc, 0); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	got, _ := store.Get(ctx, "cas")
	if string(got.Payload) != "v1" || got.Version != 1 {
		t.Fatalf("stale put leaked: %+v", got)
	}
}

func testPutMissing(t *testing.T, store domain.DocumentStore) {
	_, err := store.Put(context.Background(), domain.Document{ID: "ghost", Payload: []byte("x")}, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	if _, err := store.Create(ctx, domain.Document{ID: "gone", Kind: domain.KindParty, Payload: []byte("x")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated delete, got %v", err)
	}
}

func testList(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	for _, d := range []domain.Document{
		{ID: "r2", Kind: domain.KindRoute, Payload: []byte("x")},
		{ID: "p1", Kind: domain.KindParty, Payload: []byte("x")},
		{ID: "r1", Kind: domain.KindRoute, Payload: []byte("x")},
	} {
		if _, err := store.Create(ctx, d); err != nil {
			t.Fatalf("create %s: %v", d.ID, err)
		}
	}
	routes, err := store.List(ctx, domain.KindRoute)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routes) != 2 || routes[0].ID != "r1" || routes[1].ID != "r2" {
		t.Fatalf("unexpected routes %+v", routes)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}
}

// testConcurrentPuts races writers that all read version 0; exactly one may win.
func testConcurrentPuts(t *testing.T, store domain.DocumentStore) {
	ctx := context.Background()
	if _, err := store.Create(ctx, domain.Document{ID: "race", Kind: domain.KindParty, Payload: []byte("x")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(ctx, domain.Document{ID: "race", Payload: []byte(fmt.Sprintf("w%d", i))}, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || conflicts != writers-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1 and %d", wins, conflicts, writers-1)
	}
}
