// Package crypto provides the hashing primitives used by the consolidator.
package crypto

import (
	"encoding/hex"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 output.
type Digest [32]byte

// String returns the hex-encoded digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Short returns the first 8 bytes of the digest in hex, for log lines.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:8])
}

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) Digest {
	return blake3.Sum256(data)
}

// OutpointsDigest hashes an ordered list of outpoints.
// The order matters: callers pass outpoints in selection order.
func OutpointsDigest(ops []types.Outpoint) Digest {
	h := blake3.New()
	for _, op := range ops {
		h.Write(op.Bytes())
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
