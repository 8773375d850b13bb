package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a process-local store for development and tests. Records never expire.
type Memory struct {
	mu    sync.Mutex
	games map[string]*Record
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*Record)}
}

func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[rec.ID]; ok {
		return fmt.Errorf("game %s already exists: %w", rec.ID, ErrConflict)
	}
	m.games[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Update(_ context.Context, id string, fn func(*Record) error) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	cur := rec.Clone()
	if err := fn(cur); err != nil {
		return nil, err
	}
	m.games[id] = cur
	return cur.Clone(), nil
}

func (m *Memory) Close() error { return nil }
