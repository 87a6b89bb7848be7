package directory

import (
	"encoding/binary"
	"math/big"

	"github.com/mr-tron/base58"

	"rentfree/internal/domain"
)

// AggregateBalances decodes raw token-account records into a mapping from
// owner wallet to total balance. Multiple accounts per owner are summed;
// zero-balance holders never enter the map. Malformed (short) records are
// skipped and counted rather than failing the pass — record shape is this
// layer's concern, not the account source's.
//
// Balances use math/big throughout so sums cannot silently lose precision;
// conversion to a decimal string happens only at the serialization boundary.
func AggregateBalances(records []domain.RawTokenAccount) (map[string]*big.Int, int) {
	balances := make(map[string]*big.Int)
	skipped := 0

	for _, rec := range records {
		if len(rec) < domain.AmountOffset+8 {
			skipped++
			continue
		}

		amount := binary.LittleEndian.Uint64(rec[domain.AmountOffset : domain.AmountOffset+8])
		if amount == 0 {
			// Amounts are unsigned, so a zero aggregate can only come from
			// intrinsically-zero accounts; dropping them here drops the holder.
			continue
		}

		owner := base58.Encode(rec[domain.OwnerOffset : domain.OwnerOffset+32])

		total, exists := balances[owner]
		if !exists {
			total = new(big.Int)
			balances[owner] = total
		}
		total.Add(total, new(big.Int).SetUint64(amount))
	}

	return balances, skipped
}
