package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"fieldparty/internal/infra/persistence/postgres/testutil"
	"fieldparty/internal/infra/persistence/storetest"
	"fieldparty/pkg/domain"
)

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Errorf("driver = %q, want %q", driverName, defaultDriver)
		}
		if dsn != defaultDSN {
			t.Errorf("dsn = %q, want default", dsn)
		}
		return db, nil
	})
	defer restore()
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.DocumentStore {
		store, _ := openStubStore(t)
		return store
	})
}

func TestStoreMethodSet(t *testing.T) {
	storetest.RequireMethods(t, (*Store)(nil), "Close")
}

func TestNewStoreEnsuresSchema(t *testing.T) {
	_, conn := openStubStore(t)
	var sawTable, sawIndex bool
	for _, stmt := range conn.Execs {
		upper := strings.ToUpper(stmt)
		if strings.Contains(upper, "CREATE TABLE IF NOT EXISTS DOCUMENTS") {
			sawTable = true
		}
		if strings.Contains(upper, "CREATE INDEX") {
			sawIndex = true
		}
	}
	if !sawTable || !sawIndex {
		t.Fatalf("expected schema statements, got %v", conn.Execs)
	}
}

func TestNewStorePropagatesPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStorePropagatesOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStorePropagatesSchemaFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ensure documents table") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestUpdateRoundTripsThroughStub(t *testing.T) {
	store, conn := openStubStore(t)
	ctx := context.Background()
	doc, err := store.Create(ctx, domain.Document{Kind: domain.KindRoute, Payload: []byte("a")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	doc.Payload = []byte("b")
	if _, err := store.Put(ctx, doc, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) != "b" || got.Version != 1 || got.Kind != domain.KindRoute {
		t.Fatalf("unexpected document %+v", got)
	}
	if conn.Len() != 1 {
		t.Fatalf("expected one stored row, got %d", conn.Len())
	}
}
