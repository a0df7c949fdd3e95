package consolidate

import (
	"sort"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/crypto"
	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
)

// Selection holds the result of coin selection.
type Selection struct {
	Coins   []Coin // Selected coins, ascending by amount.
	Total   uint64 // Sum of selected amounts.
	Reserve *Coin  // Coin kept back to cover the emergency reserve, if any.
}

// Outpoints returns the selected outpoints in selection order.
func (s *Selection) Outpoints() []types.Outpoint {
	ops := make([]types.Outpoint, len(s.Coins))
	for i, c := range s.Coins {
		ops[i] = c.Outpoint
	}
	return ops
}

// Fingerprint identifies the selected set. Two passes over the same wallet
// state with the same parameters produce the same fingerprint.
func (s *Selection) Fingerprint() crypto.Digest {
	return crypto.OutpointsDigest(s.Outpoints())
}

// Select chooses the coins to consolidate.
//
// Reserved and unconfirmed coins are skipped. Of the rest, sorted ascending
// by amount, the first coin reaching reserveFloor is kept unspent so the
// wallet still holds one output above the emergency reserve. Coins whose
// amount does not cover policy.DustFactor*feeRate are skipped as dust.
// Fewer than minCount survivors is an InsufficientCoinsError.
func Select(coins []Coin, reserveFloor uint64, feeRate FeeRate, minCount int, policy Policy) (*Selection, error) {
	candidates := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if c.Reserved || !c.Confirmed() {
			continue
		}
		candidates = append(candidates, c)
	}

	// Stable so equal amounts keep the wallet's order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Amount < candidates[j].Amount
	})

	sel := &Selection{Coins: make([]Coin, 0, len(candidates))}
	dustLimit := policy.DustFactor * uint64(feeRate)
	for i := range candidates {
		c := candidates[i]
		if sel.Reserve == nil && c.Amount >= reserveFloor {
			sel.Reserve = &candidates[i]
			continue
		}
		if dustLimit > c.Amount {
			continue
		}
		sel.Coins = append(sel.Coins, c)
		sel.Total += c.Amount
	}

	if len(sel.Coins) < minCount {
		return nil, &InsufficientCoinsError{Found: len(sel.Coins), Wanted: minCount}
	}
	return sel, nil
}
