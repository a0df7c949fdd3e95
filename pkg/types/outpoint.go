// Package types defines the primitive types shared by the consolidator.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint references a specific output in a transaction.
// Its text form is "txid:index" with the txid in display (reversed) hex order,
// which is also how the node's RPC API accepts and reports outputs.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// NewOutpoint builds an Outpoint from a display-order txid and output index.
func NewOutpoint(txid string, index uint32) (Outpoint, error) {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid txid %q: %w", txid, err)
	}
	if len(txid) != chainhash.MaxHashStringSize {
		return Outpoint{}, fmt.Errorf("invalid txid %q: must be %d hex characters", txid, chainhash.MaxHashStringSize)
	}
	return Outpoint{TxID: *h, Index: index}, nil
}

// ParseOutpoint parses the "txid:index" text form.
func ParseOutpoint(s string) (Outpoint, error) {
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q: expected txid:index", s)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint index %q: %w", idx, err)
	}
	return NewOutpoint(txid, uint32(n))
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID == chainhash.Hash{} && o.Index == 0
}

// String returns "txid:index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Bytes returns txid(32, internal order) || index(4, big endian).
func (o Outpoint) Bytes() []byte {
	b := make([]byte, chainhash.HashSize+4)
	copy(b, o.TxID[:])
	b[32] = byte(o.Index >> 24)
	b[33] = byte(o.Index >> 16)
	b[34] = byte(o.Index >> 8)
	b[35] = byte(o.Index)
	return b
}

// MarshalText implements encoding.TextMarshaler.
func (o Outpoint) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outpoint) UnmarshalText(text []byte) error {
	op, err := ParseOutpoint(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
