// Package memory is an in-process backup target, used in tests and as a
// stand-in when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[int64]core.Transaction
}

func New() *Store {
	return &Store{items: make(map[int64]core.Transaction)}
}

// AppendTransaction mirrors the transaction, replacing any previous row
// with the same id.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[t.ID] = t
	return fmt.Sprintf("mem:%d", t.ID), nil
}

// RemoveTransaction drops the mirrored row; unknown ids are a no-op.
func (s *Store) RemoveTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Get returns a mirrored transaction, for assertions in tests.
func (s *Store) Get(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	return t, ok
}

// Len returns the number of mirrored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
