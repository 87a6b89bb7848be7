package postgres

import (
	"context"
	"fmt"

	"rentfree/internal/domain"
	"rentfree/internal/storage"
)

// DisplayNameStore implements storage.DisplayNameStore using PostgreSQL.
type DisplayNameStore struct {
	pool *Pool
}

// NewDisplayNameStore creates a new DisplayNameStore.
func NewDisplayNameStore(pool *Pool) *DisplayNameStore {
	return &DisplayNameStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DisplayNameStore = (*DisplayNameStore)(nil)

// Upsert writes the wallet's display name, overwriting name and updated_at
// on conflict (last-write-wins).
func (s *DisplayNameStore) Upsert(ctx context.Context, wallet, name string, updatedAt int64) (*domain.DisplayNameRecord, error) {
	if wallet == "" || name == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO display_names (wallet, name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO UPDATE
		SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, wallet, name, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert display name: %w", err)
	}

	return &domain.DisplayNameRecord{
		Wallet:    wallet,
		Name:      name,
		UpdatedAt: updatedAt,
	}, nil
}

// Get retrieves the record for a wallet. Returns ErrNotFound if not exists.
func (s *DisplayNameStore) Get(ctx context.Context, wallet string) (*domain.DisplayNameRecord, error) {
	query := `
		SELECT wallet, name, updated_at
		FROM display_names
		WHERE wallet = $1
	`

	var rec domain.DisplayNameRecord
	err := s.pool.QueryRow(ctx, query, wallet).Scan(&rec.Wallet, &rec.Name, &rec.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get display name: %w", err)
	}
	return &rec, nil
}

// GetMany retrieves names for a set of wallets in a single query.
func (s *DisplayNameStore) GetMany(ctx context.Context, wallets []string) (map[string]string, error) {
	names := make(map[string]string, len(wallets))
	if len(wallets) == 0 {
		return names, nil
	}

	query := `
		SELECT wallet, name
		FROM display_names
		WHERE wallet = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, wallets)
	if err != nil {
		return nil, fmt.Errorf("get display names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wallet, name string
		if err := rows.Scan(&wallet, &name); err != nil {
			return nil, fmt.Errorf("scan display name: %w", err)
		}
		names[wallet] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate display names: %w", err)
	}

	return names, nil
}
