// Package memory provides in-process adapters for single-instance deployments and tests.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// PrincipalStore keeps session snapshots in a mutex-guarded map.
// Contents do not survive a restart and never expire.
type PrincipalStore struct {
	mu    sync.RWMutex
	items map[string]ports.SessionSnapshot
}

// NewPrincipalStore creates an empty store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{items: make(map[string]ports.SessionSnapshot)}
}

// Load returns a copy of the snapshot under key.
func (s *PrincipalStore) Load(_ context.Context, key string) (ports.SessionSnapshot, error) {
	if key == "" {
		return ports.SessionSnapshot{}, ports.ErrPrincipalNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[key]
	if !ok {
		return ports.SessionSnapshot{}, ports.ErrPrincipalNotFound
	}
	snap.Cookies = slices.Clone(snap.Cookies)
	return snap, nil
}

// Save replaces the snapshot under key.
func (s *PrincipalStore) Save(_ context.Context, key string, snap ports.SessionSnapshot) error {
	if key == "" {
		return errors.New("principal key cannot be empty")
	}
	snap.Cookies = slices.Clone(snap.Cookies)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = snap
	return nil
}

// Delete removes the snapshot under key.
func (s *PrincipalStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len returns the number of stored snapshots.
func (s *PrincipalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
