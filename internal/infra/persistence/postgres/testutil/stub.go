// Package testutil provides an in-memory stand-in for the documents table so
// the postgres store can be exercised without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq uint64

type row struct {
	kind    string
	version int64
	payload []byte
}

// StubConn interprets the handful of statements issued by the postgres store.
// It is safe for concurrent use.
type StubConn struct {
	mu       sync.Mutex
	rows     map[string]row
	Execs    []string
	FailPing bool
	FailExec bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{rows: make(map[string]row)}
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&driverSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("transactions not supported") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func normalize(query string) string {
	return strings.ToUpper(strings.Join(strings.Fields(query), " "))
}

func arg(args []driver.NamedValue, i int) any {
	if i >= len(args) {
		return nil
	}
	return args[i].Value
}

func argString(args []driver.NamedValue, i int) string {
	s, _ := arg(args, i).(string)
	return s
}

func argInt(args []driver.NamedValue, i int) int64 {
	n, _ := arg(args, i).(int64)
	return n
}

func argBytes(args []driver.NamedValue, i int) []byte {
	b, _ := arg(args, i).([]byte)
	return append([]byte(nil), b...)
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	q := normalize(query)
	switch {
	case strings.HasPrefix(q, "CREATE "):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(q, "INSERT INTO DOCUMENTS"):
		id := argString(args, 0)
		if _, exists := c.rows[id]; exists {
			return driver.RowsAffected(0), nil
		}
		c.rows[id] = row{kind: argString(args, 1), version: argInt(args, 2), payload: argBytes(args, 3)}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(q, "DELETE FROM DOCUMENTS"):
		id := argString(args, 0)
		if _, exists := c.rows[id]; !exists {
			return driver.RowsAffected(0), nil
		}
		delete(c.rows, id)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported exec %q", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := normalize(query)
	switch {
	case strings.HasPrefix(q, "UPDATE DOCUMENTS"):
		id := argString(args, 1)
		r, ok := c.rows[id]
		if !ok || r.version != argInt(args, 2) {
			return &stubRows{cols: []string{"kind"}}, nil
		}
		r.version++
		r.payload = argBytes(args, 0)
		c.rows[id] = r
		return &stubRows{cols: []string{"kind"}, rows: [][]driver.Value{{r.kind}}}, nil
	case strings.HasPrefix(q, "SELECT KIND, VERSION, PAYLOAD FROM DOCUMENTS WHERE ID"):
		r, ok := c.rows[argString(args, 0)]
		if !ok {
			return &stubRows{cols: []string{"kind", "version", "payload"}}, nil
		}
		return &stubRows{cols: []string{"kind", "version", "payload"}, rows: [][]driver.Value{{r.kind, r.version, append([]byte(nil), r.payload...)}}}, nil
	case strings.HasPrefix(q, "SELECT VERSION FROM DOCUMENTS WHERE ID"):
		r, ok := c.rows[argString(args, 0)]
		if !ok {
			return &stubRows{cols: []string{"version"}}, nil
		}
		return &stubRows{cols: []string{"version"}, rows: [][]driver.Value{{r.version}}}, nil
	case strings.HasPrefix(q, "SELECT ID, KIND, VERSION, PAYLOAD FROM DOCUMENTS"):
		kind := argString(args, 0)
		ids := make([]string, 0, len(c.rows))
		for id, r := range c.rows {
			if kind == "" || r.kind == kind {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		out := &stubRows{cols: []string{"id", "kind", "version", "payload"}}
		for _, id := range ids {
			r := c.rows[id]
			out.rows = append(out.rows, []driver.Value{id, r.kind, r.version, append([]byte(nil), r.payload...)})
		}
		return out, nil
	}
	return nil, fmt.Errorf("stub: unsupported query %q", query)
}

// Len reports the number of stored documents.
func (c *StubConn) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
