package consolidate

import (
	"context"
	"time"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
)

// FeeOracle supplies current fee estimates.
type FeeOracle interface {
	Estimates(ctx context.Context) (*FeeEstimates, error)
}

// WalletView is the node wallet as seen by the consolidator.
type WalletView interface {
	// ListUnspent returns the wallet's unspent outputs.
	ListUnspent(ctx context.Context) ([]Coin, error)
	// ReserveFloor returns the emergency reserve amount in msat.
	ReserveFloor(ctx context.Context) (uint64, error)
	// NewAddress returns a fresh receiving address of the given kind.
	NewAddress(ctx context.Context, kind AddressKind) (string, error)
	// BuildAndSend spends exactly coins, all value, to dest at feeRate.
	BuildAndSend(ctx context.Context, coins []types.Outpoint, dest string, feeRate FeeRate) (*Withdrawal, error)
}

// JobStore persists the single recurring job definition.
type JobStore interface {
	Save(args Args) error
	// Load returns ErrNoJob when nothing is stored.
	Load() (Args, error)
	Delete() error
}

// Clock abstracts time for the poll loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}
