// Package credentials defines the keyed credential store the handler
// families authenticate against.
//
// The store is deliberately minimal: opaque tokens keyed by (user id,
// service), created on first connect and removed on explicit disconnect.
// It is an interface so the backing storage (in-memory here, SQLite in
// the store package) is swappable without touching pipeline logic.
// Token refresh and OAuth mechanics belong to the external collaborator,
// not to this process.
package credentials

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no credential exists for the requested
// (user, service) pair. Handlers translate it into an
// authorization_required result rather than an error.
var ErrNotFound = errors.New("credentials: not found")

// Store is the credential-store contract.
//
// Writes are last-write-wins and unsynchronized across requests for the
// same user; that relaxation is documented and acceptable because a
// credential is an opaque replaceable token, not an append-only record.
type Store interface {
	// Get returns the token for (userID, service), or ErrNotFound.
	Get(ctx context.Context, userID, service string) (string, error)

	// Set stores (or replaces) the token for (userID, service).
	Set(ctx context.Context, userID, service, token string) error

	// Delete removes the credential for (userID, service). Deleting a
	// missing credential is not an error.
	Delete(ctx context.Context, userID, service string) error
}

// MemoryStore is the in-memory Store used in tests and single-process
// deployments without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func key(userID, service string) string {
	return userID + "\x00" + service
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID, service string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[key(userID, service)]
	if !ok {
		return "", ErrNotFound
	}
	return tok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, userID, service, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key(userID, service)] = token
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key(userID, service))
	return nil
}
