package directory

import (
	"math/big"
	"sort"

	"rentfree/internal/domain"
	"rentfree/internal/idhash"
)

// Rank orders aggregated holders into room assignments: balance descending,
// wallet lexicographic ascending as the tie-break. The tie-break is part of
// the contract — output must be reproducible for equal balances, not an
// artifact of map iteration order. The result is truncated to maxRooms; the
// first landlordTopN entries carry RoleLandlord, the rest RoleTenant.
// Display names are attached separately after ranking.
func Rank(balances map[string]*big.Int, maxRooms, landlordTopN int) []domain.RoomAssignment {
	holders := make([]domain.HolderBalance, 0, len(balances))
	for wallet, balance := range balances {
		holders = append(holders, domain.HolderBalance{Wallet: wallet, Balance: balance})
	}

	sort.Slice(holders, func(i, j int) bool {
		cmp := holders[i].Balance.Cmp(holders[j].Balance)
		if cmp != 0 {
			return cmp > 0
		}
		return holders[i].Wallet < holders[j].Wallet
	})

	if len(holders) > maxRooms {
		holders = holders[:maxRooms]
	}

	assignments := make([]domain.RoomAssignment, len(holders))
	for i, h := range holders {
		role := domain.RoleTenant
		if i < landlordTopN {
			role = domain.RoleLandlord
		}
		assignments[i] = domain.RoomAssignment{
			Wallet:     h.Wallet,
			RoomNumber: idhash.RoomNumber(h.Wallet, maxRooms),
			Role:       role,
			Balance:    h.Balance.String(),
		}
	}

	return assignments
}
