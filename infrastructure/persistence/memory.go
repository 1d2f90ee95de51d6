// Package persistence holds the snapshot stores and the resilience
// decorator that wraps them.
package persistence

import (
	"context"
	"sync"

	"thoughtweb/application/ports"
	pkgerrors "thoughtweb/pkg/errors"
)

var _ ports.SnapshotStore = (*InMemoryStore)(nil)

// InMemoryStore keeps snapshots in a map. It is the default for local runs
// and tests; nothing survives a restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

// Save stores a copy of data under key.
func (s *InMemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewCanceledError("save snapshot", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Load returns a copy of the snapshot under key.
func (s *InMemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCanceledError("load snapshot", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("snapshot " + key)
	}
	return append([]byte(nil), data...), nil
}
