package core

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive slot per session id. Slots are created on
// first use and never removed; the table grows with the number of sessions
// touched by this process, not with request volume.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (t *lockTable) slot(id string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		t.slots[id] = s
	}
	return s
}

// acquire blocks until the slot for id is free or ctx is done.
// The returned release func must be called exactly once.
func (t *lockTable) acquire(ctx context.Context, id string) (func(), error) {
	s := t.slot(id)
	// Fail fast on an already-expired context even if the slot happens to be free.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
