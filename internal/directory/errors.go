package directory

import "errors"

var (
	// ErrValidation marks requests rejected before signature checking:
	// missing fields, malformed wallets, prefix or length violations.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks requests whose signature did not verify against the
	// claimed wallet.
	ErrAuth = errors.New("authentication failed")
)
