package consolidate

import (
	"context"
	"fmt"

	klog "github.com/Klingon-tech/klingnet-consolidator/internal/log"
	"github.com/Klingon-tech/klingnet-consolidator/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Consolidator runs one consolidation attempt.
type Consolidator interface {
	Execute(ctx context.Context, args Args) (*Receipt, error)
}

// Executor performs one-shot consolidations against a node.
type Executor struct {
	oracle      FeeOracle
	wallet      WalletView
	policy      Policy
	addressKind AddressKind
	logger      zerolog.Logger
}

// NewExecutor creates an executor. Destination addresses are P2TR.
func NewExecutor(oracle FeeOracle, wallet WalletView, policy Policy) *Executor {
	return &Executor{
		oracle:      oracle,
		wallet:      wallet,
		policy:      policy,
		addressKind: AddressP2TR,
		logger:      klog.Consolidate,
	}
}

// Plan is a selection computed without spending anything.
type Plan struct {
	FeeRate      FeeRate    `json:"feerate"`
	MinUTXOs     int        `json:"min_utxos"`
	ReserveFloor uint64     `json:"reserve_floor_msat"`
	Selection    *Selection `json:"-"`
}

// Preview resolves args and runs coin selection, but does not request an
// address or a transaction.
func (e *Executor) Preview(ctx context.Context, args Args) (*Plan, error) {
	est, err := e.oracle.Estimates(ctx)
	if err != nil {
		return nil, fmt.Errorf("get feerates: %w", err)
	}
	rate, minCount, err := args.Resolve(est, e.policy)
	if err != nil {
		return nil, err
	}

	coins, floor, err := e.walletSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	sel, err := Select(coins, floor, rate, minCount, e.policy)
	if err != nil {
		return nil, err
	}
	return &Plan{FeeRate: rate, MinUTXOs: minCount, ReserveFloor: floor, Selection: sel}, nil
}

// Execute consolidates the selected coins into one fresh address.
// Every failure is returned as is; retrying is the caller's decision.
func (e *Executor) Execute(ctx context.Context, args Args) (*Receipt, error) {
	defer klog.Benchmark("consolidate")()
	plan, err := e.Preview(ctx, args)
	if err != nil {
		metrics.Executions.WithLabelValues("failure").Inc()
		return nil, err
	}
	sel := plan.Selection

	dest, err := e.wallet.NewAddress(ctx, e.addressKind)
	if err != nil {
		metrics.Executions.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("get %s address: %w", e.addressKind, err)
	}

	w, err := e.wallet.BuildAndSend(ctx, sel.Outpoints(), dest, plan.FeeRate)
	if err != nil {
		metrics.Executions.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	receipt := &Receipt{
		Count:       len(sel.Coins),
		Tx:          w.Tx,
		TxID:        w.TxID,
		FeeRate:     plan.FeeRate,
		Fingerprint: sel.Fingerprint(),
	}

	metrics.Executions.WithLabelValues("success").Inc()
	metrics.CoinsConsolidated.Add(float64(receipt.Count))
	e.logger.Info().
		Int("coins", receipt.Count).
		Uint64("total_msat", sel.Total).
		Uint32("feerate", uint32(plan.FeeRate)).
		Str("selection", receipt.Fingerprint.Short()).
		Str("txid", receipt.TxID).
		Msg("Consolidation broadcast")
	return receipt, nil
}

// walletSnapshot reads the coin set and reserve floor concurrently.
func (e *Executor) walletSnapshot(ctx context.Context) ([]Coin, uint64, error) {
	var (
		coins []Coin
		floor uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := e.wallet.ListUnspent(gctx)
		if err != nil {
			return fmt.Errorf("list funds: %w", err)
		}
		coins = c
		return nil
	})
	g.Go(func() error {
		f, err := e.wallet.ReserveFloor(gctx)
		if err != nil {
			return fmt.Errorf("get emergency reserve: %w", err)
		}
		floor = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return coins, floor, nil
}
