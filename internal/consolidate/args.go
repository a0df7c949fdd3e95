package consolidate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Args is a consolidation request. Nil fields fall back to policy defaults
// when resolved against a fee reading.
type Args struct {
	FeeRate  *FeeRate `json:"feerate,omitempty"`
	MinUTXOs *int     `json:"min_utxos,omitempty"`
}

// NewArgs builds Args from explicit values.
func NewArgs(feeRate FeeRate, minUTXOs int) Args {
	return Args{FeeRate: &feeRate, MinUTXOs: &minUTXOs}
}

// String returns the JSON form, which is also the persisted job payload.
func (a Args) String() string {
	data, _ := json.Marshal(a)
	return string(data)
}

// ParseArgs accepts the request parameters in either calling convention:
// positional [feerate, min_utxos] or named {"feerate":..,"min_utxos":..}.
// Both fields are optional; empty or null params mean "all defaults".
func ParseArgs(raw json.RawMessage) (Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Args{}, nil
	}

	var feeRaw, minRaw json.RawMessage
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return Args{}, validationf("invalid params: %v", err)
		}
		if len(list) > 2 {
			return Args{}, validationf("too many arguments")
		}
		if len(list) > 0 {
			feeRaw = list[0]
		}
		if len(list) > 1 {
			minRaw = list[1]
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Args{}, validationf("invalid params: %v", err)
		}
		feeRaw = obj["feerate"]
		minRaw = obj["min_utxos"]
	default:
		return Args{}, validationf("unsupported argument object")
	}

	var args Args
	if present(feeRaw) {
		n, err := parseUint(feeRaw, 32)
		if err != nil {
			return Args{}, validationf("not a valid feerate number")
		}
		rate := FeeRate(n)
		args.FeeRate = &rate
	}
	if present(minRaw) {
		n, err := parseUint(minRaw, 31)
		if err != nil {
			return Args{}, validationf("not a valid number for minimum utxo count")
		}
		if n < 1 {
			return Args{}, validationf("minimum utxo count must be at least 1")
		}
		count := int(n)
		args.MinUTXOs = &count
	}
	return args, nil
}

func present(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

// parseUint accepts only a bare JSON integer that fits in bits.
func parseUint(v json.RawMessage, bits int) (uint64, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return 0, err
	}
	n, ok := x.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %s", v)
	}
	return strconv.ParseUint(n.String(), 10, bits)
}

// Resolve turns Args into a concrete fee rate and minimum coin count.
// A missing fee rate defaults to the policy.BlockCount estimate; the result
// must lie within the node's acceptable range.
func (a Args) Resolve(est *FeeEstimates, policy Policy) (FeeRate, int, error) {
	var rate FeeRate
	if a.FeeRate != nil {
		rate = *a.FeeRate
	} else {
		r, err := est.ForBlockCount(policy.BlockCount)
		if err != nil {
			return 0, 0, fmt.Errorf("no feerate provided by user and no feerate provided by node: %w", err)
		}
		rate = r
	}

	minCount := policy.MinUTXOs
	if a.MinUTXOs != nil {
		minCount = *a.MinUTXOs
	}

	if err := est.CheckBounds(rate); err != nil {
		return 0, 0, err
	}
	return rate, minCount, nil
}
