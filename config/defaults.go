package config

import (
	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
)

// Default ports.
const (
	DefaultRPCPort = 9840
	DefaultNodeURL = "http://127.0.0.1:9835"
)

// Default returns the default daemon configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:     DefaultNodeURL,
			Timeout: consolidate.DefaultCallTimeout,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Consolidator: ConsolidatorConfig{
			Interval: uint64(consolidate.DefaultInterval.Seconds()),
			FeeMulti: consolidate.DefaultFeeMultiText,
			Persist:  false,
		},
		Policy: PolicyConfig{
			BlockCount: consolidate.DefaultBlockCount,
			MinUTXOs:   consolidate.DefaultMinUTXOs,
			DustFactor: consolidate.DefaultDustFactor,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:      "info",
			JSON:       false,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
