package domain

import "math/big"

// TokenAccountSize is the fixed byte length of an SPL token account record.
// Layout: mint(32) | owner(32) | amount(8, little-endian u64) | ...
const TokenAccountSize = 165

// Byte offsets within a raw token account record.
const (
	OwnerOffset  = 32
	AmountOffset = 64
)

// RawTokenAccount is the undecoded data of one token account as returned
// by the ledger RPC. Produced by the account source, consumed once during
// aggregation.
type RawTokenAccount []byte

// HolderBalance is one wallet's aggregate balance for the target mint.
// Built fresh per aggregation pass; never mutated after creation.
type HolderBalance struct {
	Wallet  string   // base58 owner address
	Balance *big.Int // aggregate amount, always > 0
}

// Role is the rank-derived label of a directory entry.
type Role string

const (
	RoleLandlord Role = "Landlord"
	RoleTenant   Role = "Tenant"
)
