package stub

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/mr-tron/base58"

	"rentfree/internal/domain"
	"rentfree/internal/solana"
)

// AccountSource implements solana.AccountSource for testing.
type AccountSource struct {
	Accounts map[string][]domain.RawTokenAccount // keyed by mint
	Err      error                               // returned by every fetch when set

	fetches atomic.Int64
}

// NewAccountSource creates a new stub account source.
func NewAccountSource() *AccountSource {
	return &AccountSource{
		Accounts: make(map[string][]domain.RawTokenAccount),
	}
}

// Compile-time interface check.
var _ solana.AccountSource = (*AccountSource)(nil)

// GetTokenAccountsByMint returns the configured records for the mint.
func (s *AccountSource) GetTokenAccountsByMint(_ context.Context, mint string) ([]domain.RawTokenAccount, error) {
	s.fetches.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Accounts[mint], nil
}

// Fetches reports how many times the source was queried.
func (s *AccountSource) Fetches() int64 {
	return s.fetches.Load()
}

// AddAccount appends a well-formed 165-byte token account record for the
// mint with the given owner wallet and amount.
func (s *AccountSource) AddAccount(mint, ownerWallet string, amount uint64) {
	data := make([]byte, domain.TokenAccountSize)

	mintBytes, err := base58.Decode(mint)
	if err == nil {
		copy(data[:32], mintBytes)
	}
	ownerBytes, err := base58.Decode(ownerWallet)
	if err == nil {
		copy(data[domain.OwnerOffset:], ownerBytes)
	}
	binary.LittleEndian.PutUint64(data[domain.AmountOffset:], amount)

	s.Accounts[mint] = append(s.Accounts[mint], domain.RawTokenAccount(data))
}
