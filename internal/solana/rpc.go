package solana

import (
	"context"
	"errors"

	"rentfree/internal/domain"
)

// TokenProgramID is the SPL Token program that owns all fungible token accounts.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// Upstream errors. Rate limiting is a distinct sentinel so callers can apply
// a retry-later response policy instead of a generic failure; classification
// never depends on substring inspection of error text.
var (
	// ErrRateLimited is returned when the upstream ledger throttles us
	// (HTTP 429 or the equivalent RPC error code).
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrUpstream is returned for any other upstream failure.
	ErrUpstream = errors.New("upstream unavailable")
)

// AccountSource fetches raw token-account records matching a mint from the
// external ledger service.
type AccountSource interface {
	// GetTokenAccountsByMint retrieves all token accounts holding the given
	// mint. Records are filtered server-side by the fixed account size and a
	// byte-range match against the mint; no validation beyond size happens
	// here — decoding failures are the aggregator's concern.
	GetTokenAccountsByMint(ctx context.Context, mint string) ([]domain.RawTokenAccount, error)
}
