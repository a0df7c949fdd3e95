package consolidate

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Default policy values.
const (
	DefaultBlockCount   = 6
	DefaultMinUTXOs     = 10
	DefaultDustFactor   = 70
	DefaultInterval     = 3600 * time.Second
	DefaultPollStep     = 200 * time.Millisecond
	DefaultCallTimeout  = 2 * time.Minute
	DefaultFeeMultiText = "1.1"
)

// Fee multiplier bounds.
var (
	MinFeeMultiplier = decimal.RequireFromString("0.3")
	MaxFeeMultiplier = decimal.RequireFromString("3.0")
)

// Policy holds the tunable selection constants.
type Policy struct {
	// BlockCount is the confirmation target whose estimate is used as the
	// default fee rate and as the recurring trigger.
	BlockCount uint32
	// MinUTXOs is the minimum selection size when the caller gives none.
	MinUTXOs int
	// DustFactor approximates per-input weight: a coin is skipped when
	// DustFactor*feerate exceeds its amount.
	DustFactor uint64
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		BlockCount: DefaultBlockCount,
		MinUTXOs:   DefaultMinUTXOs,
		DustFactor: DefaultDustFactor,
	}
}

// Validate rejects unusable policy values.
func (p Policy) Validate() error {
	if p.BlockCount == 0 {
		return fmt.Errorf("policy blockcount must be positive")
	}
	if p.MinUTXOs < 1 {
		return fmt.Errorf("policy minutxos must be at least 1")
	}
	if p.DustFactor == 0 {
		return fmt.Errorf("policy dustfactor must be positive")
	}
	return nil
}

// ParseFeeMultiplier parses and range-checks a fee multiplier.
func ParseFeeMultiplier(s string) (decimal.Decimal, error) {
	m, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse fee multiplier %q as a decimal: %w", s, err)
	}
	if m.LessThan(MinFeeMultiplier) || m.GreaterThan(MaxFeeMultiplier) {
		return decimal.Zero, fmt.Errorf("fee multiplier %s outside of allowed range [0.3,3.0]", m)
	}
	return m, nil
}

// AdjustFeeRate returns round(rate * multiplier), half away from zero.
func AdjustFeeRate(rate FeeRate, multiplier decimal.Decimal) FeeRate {
	adjusted := decimal.NewFromInt(int64(rate)).Mul(multiplier).Round(0).IntPart()
	if adjusted > math.MaxUint32 {
		return math.MaxUint32
	}
	if adjusted < 0 {
		return 0
	}
	return FeeRate(adjusted)
}
