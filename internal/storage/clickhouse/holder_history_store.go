package clickhouse

import (
	"context"
	"fmt"

	"rentfree/internal/domain"
	"rentfree/internal/storage"
)

// HolderHistoryStore implements storage.HolderHistoryStore using ClickHouse.
type HolderHistoryStore struct {
	conn *Conn
}

// NewHolderHistoryStore creates a new HolderHistoryStore.
func NewHolderHistoryStore(conn *Conn) *HolderHistoryStore {
	return &HolderHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HolderHistoryStore = (*HolderHistoryStore)(nil)

// InsertSnapshot appends all assignments of a snapshot as one batch.
func (s *HolderHistoryStore) InsertSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || len(snap.Assignments) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO holder_history (
			mint, wallet, room_number, role, balance, rank, captured_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for rank, a := range snap.Assignments {
		err := batch.Append(
			snap.Mint,
			a.Wallet,
			uint16(a.RoomNumber),
			string(a.Role),
			a.Balance,
			uint16(rank),
			snap.CapturedAt,
		)
		if err != nil {
			return fmt.Errorf("append history row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByWallet retrieves a wallet's historical entries, most recent first.
func (s *HolderHistoryStore) GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.HolderHistoryEntry, error) {
	query := `
		SELECT mint, wallet, room_number, role, balance, rank, captured_at
		FROM holder_history
		WHERE wallet = ?
		ORDER BY captured_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("query holder history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HolderHistoryEntry
	for rows.Next() {
		var (
			e          domain.HolderHistoryEntry
			roomNumber uint16
			role       string
			rank       uint16
		)
		err := rows.Scan(&e.Mint, &e.Wallet, &roomNumber, &role, &e.Balance, &rank, &e.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("scan holder history: %w", err)
		}
		e.RoomNumber = int(roomNumber)
		e.Role = domain.Role(role)
		e.Rank = int(rank)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder history: %w", err)
	}

	return entries, nil
}
