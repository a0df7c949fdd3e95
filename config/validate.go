package config

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
	klog "github.com/Klingon-tech/klingnet-consolidator/internal/log"
)

// Validate checks the config for operator mistakes. Any error here keeps
// the daemon from starting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	u, err := url.Parse(cfg.Node.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("node.rpc must be an http(s) URL, got %q", cfg.Node.URL)
	}
	if cfg.Node.Timeout <= 0 {
		return fmt.Errorf("node.timeout must be positive")
	}

	if cfg.Consolidator.Interval < 1 || cfg.Consolidator.Interval > math.MaxInt64/uint64(time.Second) {
		return fmt.Errorf("consolidator-interval outside of valid range [1,%d]", math.MaxInt64/uint64(time.Second))
	}
	if _, err := consolidate.ParseFeeMultiplier(cfg.Consolidator.FeeMulti); err != nil {
		return fmt.Errorf("consolidator-feemulti: %w", err)
	}

	if err := cfg.SelectionPolicy().Validate(); err != nil {
		return err
	}

	if !klog.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}

// SelectionPolicy returns the coin selection policy.
func (c *Config) SelectionPolicy() consolidate.Policy {
	return consolidate.Policy{
		BlockCount: c.Policy.BlockCount,
		MinUTXOs:   c.Policy.MinUTXOs,
		DustFactor: c.Policy.DustFactor,
	}
}

// Scheduler converts the validated config into scheduler settings.
func (c *Config) Scheduler() (consolidate.SchedulerConfig, error) {
	mult, err := consolidate.ParseFeeMultiplier(c.Consolidator.FeeMulti)
	if err != nil {
		return consolidate.SchedulerConfig{}, err
	}
	sc := consolidate.DefaultSchedulerConfig()
	sc.Interval = time.Duration(c.Consolidator.Interval) * time.Second
	sc.FeeMultiplier = mult
	sc.Persist = c.Consolidator.Persist
	sc.CallTimeout = c.Node.Timeout
	sc.Policy = c.SelectionPolicy()
	return sc, nil
}
