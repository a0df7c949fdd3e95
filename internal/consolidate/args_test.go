package consolidate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Forms(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		feeRate *FeeRate
		minUTXO *int
	}{
		{"empty", "", nil, nil},
		{"null", "null", nil, nil},
		{"empty array", "[]", nil, nil},
		{"empty object", "{}", nil, nil},
		{"array feerate", "[250]", ptr(FeeRate(250)), nil},
		{"array both", "[250, 4]", ptr(FeeRate(250)), ptr(4)},
		{"array null feerate", "[null, 4]", nil, ptr(4)},
		{"object both", `{"feerate": 250, "min_utxos": 4}`, ptr(FeeRate(250)), ptr(4)},
		{"object min only", `{"min_utxos": 7}`, nil, ptr(7)},
		{"object null", `{"feerate": null}`, nil, nil},
		{"object ignores unknown", `{"feerate": 3, "other": "x"}`, ptr(FeeRate(3)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseArgs(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.feeRate, args.FeeRate)
			assert.Equal(t, tt.minUTXO, args.MinUTXOs)
		})
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		msg  string
	}{
		{"too many", "[1, 2, 3]", "too many arguments"},
		{"string params", `"hello"`, "unsupported argument object"},
		{"number params", "12", "unsupported argument object"},
		{"negative feerate", "[-1]", "not a valid feerate number"},
		{"fractional feerate", "[1.5]", "not a valid feerate number"},
		{"string feerate", `["10"]`, "not a valid feerate number"},
		{"feerate overflow", "[4294967296]", "not a valid feerate number"},
		{"bad min", `{"min_utxos": "x"}`, "not a valid number for minimum utxo count"},
		{"zero min", "[10, 0]", "minimum utxo count must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestArgs_StringIsPersistedPayload(t *testing.T) {
	assert.Equal(t, `{"feerate":9,"min_utxos":10}`, NewArgs(9, 10).String())
	assert.Equal(t, `{}`, Args{}.String())

	count := 3
	assert.Equal(t, `{"min_utxos":3}`, Args{MinUTXOs: &count}.String())
}

func TestArgs_Resolve(t *testing.T) {
	est := estimates(20)
	policy := DefaultPolicy()

	rate, minCount, err := Args{}.Resolve(est, policy)
	require.NoError(t, err)
	assert.Equal(t, FeeRate(20), rate)
	assert.Equal(t, DefaultMinUTXOs, minCount)

	rate, minCount, err = NewArgs(33, 2).Resolve(est, policy)
	require.NoError(t, err)
	assert.Equal(t, FeeRate(33), rate)
	assert.Equal(t, 2, minCount)
}

func TestArgs_ResolveBounds(t *testing.T) {
	est := estimates(20)
	est.MinAcceptable = 5
	est.MaxAcceptable = 40

	_, _, err := NewArgs(50, 1).Resolve(est, DefaultPolicy())
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "feerate 50perkb is above max_acceptable of 40perkb", err.Error())

	_, _, err = NewArgs(4, 1).Resolve(est, DefaultPolicy())
	assert.True(t, IsValidation(err))

	for _, edge := range []FeeRate{5, 40} {
		_, _, err = NewArgs(edge, 1).Resolve(est, DefaultPolicy())
		assert.NoError(t, err)
	}
}

func TestArgs_ResolveMissingEstimate(t *testing.T) {
	est := &FeeEstimates{
		Estimates:     []FeeEstimate{{BlockCount: 2, FeeRate: 10}},
		MaxAcceptable: 100,
	}

	_, _, err := Args{}.Resolve(est, DefaultPolicy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEstimateMissing))

	// An explicit rate does not need the estimate.
	_, _, err = NewArgs(10, 1).Resolve(est, DefaultPolicy())
	assert.NoError(t, err)
}

func TestArgs_ResolveNilEstimates(t *testing.T) {
	_, _, err := NewArgs(10, 1).Resolve(nil, DefaultPolicy())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func ptr[T any](v T) *T { return &v }
