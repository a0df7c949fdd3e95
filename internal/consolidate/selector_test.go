package consolidate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleCoins() []Coin {
	return []Coin{coin(0, 500), coin(1, 100000), coin(2, 2000)}
}

func TestSelect_ReserveAndDustLeaveTooFew(t *testing.T) {
	_, err := Select(exampleCoins(), 90000, 10, 2, DefaultPolicy())
	require.Error(t, err)

	var ic *InsufficientCoinsError
	require.True(t, errors.As(err, &ic))
	assert.Equal(t, 1, ic.Found)
	assert.Equal(t, 2, ic.Wanted)
	assert.Equal(t, "not enough UTXOs to consolidate: current:1 wanted:>=2", err.Error())
}

func TestSelect_SingleSurvivor(t *testing.T) {
	sel, err := Select(exampleCoins(), 90000, 10, 1, DefaultPolicy())
	require.NoError(t, err)

	require.Len(t, sel.Coins, 1)
	assert.Equal(t, uint64(2000), sel.Coins[0].Amount)
	assert.Equal(t, uint64(2000), sel.Total)
	require.NotNil(t, sel.Reserve)
	assert.Equal(t, uint64(100000), sel.Reserve.Amount)
}

func TestSelect_SkipsReservedAndUnconfirmed(t *testing.T) {
	coins := []Coin{coin(0, 5000), coin(1, 6000), coin(2, 7000), coin(3, 8000)}
	coins[1].Reserved = true
	coins[2].Status = StatusUnconfirmed
	coins[3].Status = StatusImmature

	sel, err := Select(coins, 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, sel.Coins, 1)
	assert.Equal(t, coins[0].Outpoint, sel.Coins[0].Outpoint)
	assert.Nil(t, sel.Reserve)
}

func TestSelect_ReserveIsSmallestAboveFloor(t *testing.T) {
	coins := []Coin{coin(0, 90000), coin(1, 40000), coin(2, 50000), coin(3, 10000)}

	sel, err := Select(coins, 45000, 1, 1, DefaultPolicy())
	require.NoError(t, err)

	require.NotNil(t, sel.Reserve)
	assert.Equal(t, uint64(50000), sel.Reserve.Amount)
	amounts := make([]uint64, len(sel.Coins))
	for i, c := range sel.Coins {
		amounts[i] = c.Amount
	}
	assert.Equal(t, []uint64{10000, 40000, 90000}, amounts)
}

func TestSelect_DustBoundary(t *testing.T) {
	// 70 * 10 = 700: a coin of exactly 700 survives, 699 does not.
	coins := []Coin{coin(0, 699), coin(1, 700), coin(2, 701)}

	sel, err := Select(coins, 1<<40, 10, 1, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, sel.Coins, 2)
	assert.Equal(t, uint64(700), sel.Coins[0].Amount)
	assert.Equal(t, uint64(701), sel.Coins[1].Amount)

	for _, c := range sel.Coins {
		assert.GreaterOrEqual(t, c.Amount, DefaultPolicy().DustFactor*10)
	}
}

func TestSelect_CustomDustFactor(t *testing.T) {
	coins := []Coin{coin(0, 150), coin(1, 250)}
	policy := DefaultPolicy()
	policy.DustFactor = 20

	sel, err := Select(coins, 1<<40, 10, 1, policy)
	require.NoError(t, err)
	require.Len(t, sel.Coins, 1)
	assert.Equal(t, uint64(250), sel.Coins[0].Amount)
}

func TestSelect_StableForEqualAmounts(t *testing.T) {
	coins := []Coin{coin(5, 3000), coin(1, 3000), coin(3, 1000), coin(2, 3000)}

	sel, err := Select(coins, 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, sel.Coins, 4)
	assert.Equal(t, testOutpoint(3), sel.Coins[0].Outpoint)
	assert.Equal(t, testOutpoint(5), sel.Coins[1].Outpoint)
	assert.Equal(t, testOutpoint(1), sel.Coins[2].Outpoint)
	assert.Equal(t, testOutpoint(2), sel.Coins[3].Outpoint)
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	coins := []Coin{coin(0, 3000), coin(1, 1000), coin(2, 2000)}
	before := append([]Coin(nil), coins...)

	_, err := Select(coins, 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, before, coins)
}

func TestSelect_EmptyWallet(t *testing.T) {
	_, err := Select(nil, 0, 1, 1, DefaultPolicy())
	assert.True(t, IsInsufficientCoins(err))
}

func TestSelection_FingerprintIsDeterministic(t *testing.T) {
	coins := []Coin{coin(0, 3000), coin(1, 1000), coin(2, 2000)}

	a, err := Select(coins, 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	b, err := Select(append([]Coin(nil), coins...), 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := Select(coins[:2], 1<<40, 1, 1, DefaultPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
