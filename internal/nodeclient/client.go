// Package nodeclient adapts the wallet node's JSON-RPC API to the
// consolidator's FeeOracle and WalletView.
package nodeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
	klog "github.com/Klingon-tech/klingnet-consolidator/internal/log"
	"github.com/Klingon-tech/klingnet-consolidator/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
	"github.com/rs/zerolog"
)

// Node RPC methods.
const (
	MethodFeerates    = "feerates"
	MethodListFunds   = "listfunds"
	MethodListConfigs = "listconfigs"
	MethodNewAddr     = "newaddr"
	MethodWithdraw    = "withdraw"
)

const emergencyConfigKey = "min-emergency-msat"

// Caller is the subset of rpcclient.Client used here.
type Caller interface {
	CallContext(ctx context.Context, method string, params, result interface{}) error
}

// Client implements consolidate.FeeOracle and consolidate.WalletView.
type Client struct {
	rpc    Caller
	logger zerolog.Logger
}

var (
	_ consolidate.FeeOracle  = (*Client)(nil)
	_ consolidate.WalletView = (*Client)(nil)
)

// New creates a node client over rpc.
func New(rpc Caller) *Client {
	return &Client{rpc: rpc, logger: klog.Node}
}

// Dial creates a node client for the given endpoint. timeout bounds each
// HTTP request.
func Dial(endpoint string, timeout time.Duration) *Client {
	return New(rpcclient.NewWithTimeout(endpoint, timeout))
}

type feeratesResult struct {
	PerKB *struct {
		MinAcceptable uint32 `json:"min_acceptable"`
		MaxAcceptable uint32 `json:"max_acceptable"`
		Estimates     []struct {
			BlockCount uint32 `json:"blockcount"`
			FeeRate    uint32 `json:"feerate"`
		} `json:"estimates"`
	} `json:"perkb"`
}

// Estimates returns the node's perkb fee estimates.
func (c *Client) Estimates(ctx context.Context) (*consolidate.FeeEstimates, error) {
	var res feeratesResult
	if err := c.rpc.CallContext(ctx, MethodFeerates, map[string]string{"style": "perkb"}, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", consolidate.ErrOracleUnavailable, err)
	}
	if res.PerKB == nil {
		return nil, fmt.Errorf("%w: feerates did not return perkb object", consolidate.ErrOracleUnavailable)
	}

	est := &consolidate.FeeEstimates{
		MinAcceptable: consolidate.FeeRate(res.PerKB.MinAcceptable),
		MaxAcceptable: consolidate.FeeRate(res.PerKB.MaxAcceptable),
	}
	if res.PerKB.Estimates != nil {
		est.Estimates = make([]consolidate.FeeEstimate, 0, len(res.PerKB.Estimates))
		for _, e := range res.PerKB.Estimates {
			est.Estimates = append(est.Estimates, consolidate.FeeEstimate{
				BlockCount: e.BlockCount,
				FeeRate:    consolidate.FeeRate(e.FeeRate),
			})
		}
	}
	c.logger.Debug().
		Int("estimates", len(est.Estimates)).
		Uint32("min", res.PerKB.MinAcceptable).
		Uint32("max", res.PerKB.MaxAcceptable).
		Msg("Fetched feerates")
	return est, nil
}

type listFundsResult struct {
	Outputs []struct {
		TxID       string `json:"txid"`
		Output     uint32 `json:"output"`
		AmountMsat uint64 `json:"amount_msat"`
		Status     string `json:"status"`
		Reserved   bool   `json:"reserved"`
	} `json:"outputs"`
}

// ListUnspent returns the wallet's unspent on-chain outputs.
func (c *Client) ListUnspent(ctx context.Context) ([]consolidate.Coin, error) {
	var res listFundsResult
	if err := c.rpc.CallContext(ctx, MethodListFunds, map[string]bool{"spent": false}, &res); err != nil {
		return nil, err
	}

	coins := make([]consolidate.Coin, 0, len(res.Outputs))
	for _, o := range res.Outputs {
		op, err := types.NewOutpoint(o.TxID, o.Output)
		if err != nil {
			return nil, fmt.Errorf("listfunds output %s:%d: %w", o.TxID, o.Output, err)
		}
		coins = append(coins, consolidate.Coin{
			Outpoint: op,
			Amount:   o.AmountMsat,
			Status:   consolidate.CoinStatus(o.Status),
			Reserved: o.Reserved,
		})
	}
	return coins, nil
}

// ReserveFloor returns the node's min-emergency-msat setting.
func (c *Client) ReserveFloor(ctx context.Context) (uint64, error) {
	var res struct {
		Configs map[string]json.RawMessage `json:"configs"`
	}
	if err := c.rpc.CallContext(ctx, MethodListConfigs, map[string]string{}, &res); err != nil {
		return 0, err
	}
	if res.Configs == nil {
		return 0, fmt.Errorf("malformed configs response")
	}
	raw, ok := res.Configs[emergencyConfigKey]
	if !ok {
		return 0, fmt.Errorf("%s field empty", emergencyConfigKey)
	}
	var entry struct {
		ValueMsat *uint64 `json:"value_msat"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return 0, fmt.Errorf("%s not a number: %w", emergencyConfigKey, err)
	}
	if entry.ValueMsat == nil {
		return 0, fmt.Errorf("%s value not found", emergencyConfigKey)
	}
	return *entry.ValueMsat, nil
}

// NewAddress returns a fresh wallet address of the given kind.
func (c *Client) NewAddress(ctx context.Context, kind consolidate.AddressKind) (string, error) {
	var res map[string]string
	params := map[string]string{"addresstype": string(kind)}
	if err := c.rpc.CallContext(ctx, MethodNewAddr, params, &res); err != nil {
		return "", err
	}
	addr := res[string(kind)]
	if addr == "" {
		return "", fmt.Errorf("could not get %s address", kind)
	}
	return addr, nil
}

type withdrawParams struct {
	Destination string   `json:"destination"`
	Satoshi     string   `json:"satoshi"`
	FeeRate     string   `json:"feerate"`
	UTXOs       []string `json:"utxos"`
}

type withdrawResult struct {
	Tx   string `json:"tx"`
	TxID string `json:"txid"`
}

// BuildAndSend withdraws all value of coins to dest at feeRate perkb.
func (c *Client) BuildAndSend(ctx context.Context, coins []types.Outpoint, dest string, feeRate consolidate.FeeRate) (*consolidate.Withdrawal, error) {
	params := withdrawParams{
		Destination: dest,
		Satoshi:     "all",
		FeeRate:     fmt.Sprintf("%dperkb", feeRate),
		UTXOs:       make([]string, len(coins)),
	}
	for i, op := range coins {
		params.UTXOs[i] = op.String()
	}

	var res withdrawResult
	if err := c.rpc.CallContext(ctx, MethodWithdraw, params, &res); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("txid", res.TxID).Int("inputs", len(coins)).Msg("Withdraw broadcast")
	return &consolidate.Withdrawal{Tx: res.Tx, TxID: res.TxID}, nil
}
