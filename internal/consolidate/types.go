// Package consolidate decides which wallet outputs are worth merging and runs
// that decision once, or repeatedly in the background until network fees drop
// below a target.
package consolidate

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/crypto"
	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
)

// FeeRate is a fee per kilo-weight (perkb), as reported by the node.
type FeeRate uint32

// CoinStatus is the confirmation state of a wallet output.
type CoinStatus string

const (
	StatusConfirmed   CoinStatus = "confirmed"
	StatusUnconfirmed CoinStatus = "unconfirmed"
	StatusSpent       CoinStatus = "spent"
	StatusImmature    CoinStatus = "immature"
)

// Coin is one unspent wallet output as seen at the start of a selection pass.
type Coin struct {
	Outpoint types.Outpoint
	Amount   uint64 // msat
	Status   CoinStatus
	Reserved bool // Earmarked by another in-flight operation.
}

// Confirmed reports whether the coin is confirmed.
func (c Coin) Confirmed() bool {
	return c.Status == StatusConfirmed
}

// FeeEstimate maps a confirmation target to a fee rate.
type FeeEstimate struct {
	BlockCount uint32
	FeeRate    FeeRate
}

// FeeEstimates is one reading from the FeeOracle.
type FeeEstimates struct {
	Estimates     []FeeEstimate
	MinAcceptable FeeRate
	MaxAcceptable FeeRate
}

// ForBlockCount returns the estimate for the given confirmation target.
// A missing target is a recoverable lookup failure.
func (e *FeeEstimates) ForBlockCount(blockCount uint32) (FeeRate, error) {
	if e == nil || e.Estimates == nil {
		return 0, fmt.Errorf("%w: feerates did not contain any estimates", ErrEstimateMissing)
	}
	for _, est := range e.Estimates {
		if est.BlockCount == blockCount {
			return est.FeeRate, nil
		}
	}
	return 0, fmt.Errorf("%w: feerates did not contain blockcount:%d feerate", ErrEstimateMissing, blockCount)
}

// CheckBounds validates rate against the acceptable range.
func (e *FeeEstimates) CheckBounds(rate FeeRate) error {
	if e == nil {
		return ErrOracleUnavailable
	}
	if rate < e.MinAcceptable {
		return &ValidationError{Msg: fmt.Sprintf("feerate %dperkb is below min_acceptable of %dperkb", rate, e.MinAcceptable)}
	}
	if rate > e.MaxAcceptable {
		return &ValidationError{Msg: fmt.Sprintf("feerate %dperkb is above max_acceptable of %dperkb", rate, e.MaxAcceptable)}
	}
	return nil
}

// AddressKind selects the output script type of a fresh address.
type AddressKind string

const (
	AddressP2TR   AddressKind = "p2tr"
	AddressBech32 AddressKind = "bech32"
)

// Withdrawal is what the wallet returns after building and broadcasting the
// consolidation transaction.
type Withdrawal struct {
	Tx   string // Raw signed transaction, hex.
	TxID string
}

// Receipt is the result of one successful consolidation.
type Receipt struct {
	Count       int           `json:"count"`
	Tx          string        `json:"tx"`
	TxID        string        `json:"tx_id"`
	FeeRate     FeeRate       `json:"feerate"`
	Fingerprint crypto.Digest `json:"selection_id"`
}
