// Package config handles daemon configuration.
//
// Settings are layered: built-in defaults, then <datadir>/consolidator.conf,
// then command-line flags. Invalid consolidator settings are fatal; the
// daemon refuses to start rather than clamping them.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds the daemon's runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Wallet node the consolidator drives
	Node NodeConfig

	// RPC server
	RPC RPCConfig

	// Recurring job
	Consolidator ConsolidatorConfig

	// Coin selection
	Policy PolicyConfig

	// Prometheus endpoint on the RPC listener
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds the wallet node connection settings.
type NodeConfig struct {
	URL     string        `conf:"node.rpc"`
	Timeout time.Duration `conf:"node.timeout"` // Per-call bound, oracle and wallet.
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// ConsolidatorConfig holds the consolidate-below settings.
type ConsolidatorConfig struct {
	Interval uint64 `conf:"consolidator-interval"` // Seconds between fee checks.
	FeeMulti string `conf:"consolidator-feemulti"` // Decimal in [0.3, 3.0].
	Persist  bool   `conf:"consolidator-persist"`  // Resume the job after restart.
}

// PolicyConfig holds the coin selection constants.
type PolicyConfig struct {
	BlockCount uint32 `conf:"policy.blockcount"`
	MinUTXOs   int    `conf:"policy.minutxos"`
	DustFactor uint64 `conf:"policy.dustfactor"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `conf:"log.level"`
	File       string `conf:"log.file"`
	JSON       bool   `conf:"log.json"`
	MaxSizeMB  int    `conf:"log.maxsize"`
	MaxBackups int    `conf:"log.maxbackups"`
	MaxAgeDays int    `conf:"log.maxage"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-consolidator
//	macOS:   ~/Library/Application Support/KlingnetConsolidator
//	Windows: %APPDATA%\KlingnetConsolidator
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-consolidator"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetConsolidator")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetConsolidator")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetConsolidator")
	default:
		return filepath.Join(home, ".klingnet-consolidator")
	}
}

// JobsDir returns the job database directory.
func (c *Config) JobsDir() string {
	return filepath.Join(c.DataDir, "jobs")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "consolidator.conf")
}

// LogFilePath resolves log.file against the logs directory. Empty means
// no file sink.
func (c *Config) LogFilePath() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.LogsDir(), c.Log.File)
}
