package storage

import (
	"context"

	"rentfree/internal/domain"
)

// DisplayNameStore provides access to display_names storage.
// Writes are keyed strictly by wallet; concurrent writes to the same wallet
// race under last-write-wins, which is acceptable for vanity data.
type DisplayNameStore interface {
	// Upsert writes the wallet's display name, overwriting both name and
	// updated_at on conflict. Never merges.
	Upsert(ctx context.Context, wallet, name string, updatedAt int64) (*domain.DisplayNameRecord, error)

	// Get retrieves the record for a wallet. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet string) (*domain.DisplayNameRecord, error)

	// GetMany retrieves names for a set of wallets. Wallets without a record
	// are simply absent from the result; absence is not an error.
	GetMany(ctx context.Context, wallets []string) (map[string]string, error)
}

// HolderHistoryStore persists ranked snapshot rows for offline analytics.
type HolderHistoryStore interface {
	// InsertSnapshot appends all assignments of a snapshot.
	InsertSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// GetByWallet retrieves a wallet's historical entries, most recent first.
	GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.HolderHistoryEntry, error)
}
