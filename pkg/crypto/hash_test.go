package crypto

import (
	"testing"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.input).String(); got != tt.want {
				t.Errorf("Hash() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOutpointsDigest_EmptyMatchesHashOfNothing(t *testing.T) {
	if OutpointsDigest(nil) != Hash(nil) {
		t.Error("digest of no outpoints should equal Hash(nil)")
	}
}

func TestOutpointsDigest_OrderSensitive(t *testing.T) {
	a := types.Outpoint{TxID: chainhash.Hash{0x01}, Index: 0}
	b := types.Outpoint{TxID: chainhash.Hash{0x02}, Index: 1}

	ab := OutpointsDigest([]types.Outpoint{a, b})
	ba := OutpointsDigest([]types.Outpoint{b, a})
	if ab == ba {
		t.Error("digest should depend on order")
	}
	if ab != OutpointsDigest([]types.Outpoint{a, b}) {
		t.Error("digest should be deterministic")
	}
}

func TestDigest_Short(t *testing.T) {
	d := Hash([]byte("x"))
	if len(d.Short()) != 16 {
		t.Errorf("Short() length = %d, want 16", len(d.Short()))
	}
}
