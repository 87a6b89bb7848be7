package memory

import (
	"context"
	"sync"

	"rentfree/internal/domain"
	"rentfree/internal/storage"
)

// DisplayNameStore is an in-memory implementation of storage.DisplayNameStore.
type DisplayNameStore struct {
	mu      sync.RWMutex
	records map[string]*domain.DisplayNameRecord // keyed by wallet
}

// NewDisplayNameStore creates a new in-memory display name store.
func NewDisplayNameStore() *DisplayNameStore {
	return &DisplayNameStore{
		records: make(map[string]*domain.DisplayNameRecord),
	}
}

// Compile-time interface check.
var _ storage.DisplayNameStore = (*DisplayNameStore)(nil)

// Upsert writes the wallet's display name (last-write-wins).
func (s *DisplayNameStore) Upsert(_ context.Context, wallet, name string, updatedAt int64) (*domain.DisplayNameRecord, error) {
	if wallet == "" || name == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &domain.DisplayNameRecord{
		Wallet:    wallet,
		Name:      name,
		UpdatedAt: updatedAt,
	}
	s.records[wallet] = rec

	recCopy := *rec
	return &recCopy, nil
}

// Get retrieves the record for a wallet. Returns ErrNotFound if not exists.
func (s *DisplayNameStore) Get(_ context.Context, wallet string) (*domain.DisplayNameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// GetMany retrieves names for a set of wallets; missing wallets are absent.
func (s *DisplayNameStore) GetMany(_ context.Context, wallets []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string, len(wallets))
	for _, w := range wallets {
		if rec, exists := s.records[w]; exists {
			names[w] = rec.Name
		}
	}
	return names, nil
}
