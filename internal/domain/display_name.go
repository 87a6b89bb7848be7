package domain

// Display name length bounds, enforced before any signature check or
// store write.
const (
	DisplayNameMinLen = 1
	DisplayNameMaxLen = 24
)

// DisplayNameRecord is a holder-chosen name attached to a wallet.
// Corresponds to the display_names table in PostgreSQL.
// Last-write-wins per wallet.
type DisplayNameRecord struct {
	Wallet    string `json:"wallet"`    // PRIMARY KEY, base58 address
	Name      string `json:"name"`      // length in [DisplayNameMinLen, DisplayNameMaxLen]
	UpdatedAt int64  `json:"updatedAt"` // Unix timestamp in milliseconds
}
