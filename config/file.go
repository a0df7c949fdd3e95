package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.rpc":
		cfg.Node.URL = value
	case "node.timeout":
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		cfg.Node.Timeout = d

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// Consolidator
	case "consolidator-interval":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("could not parse consolidator-interval: %w", err)
		}
		cfg.Consolidator.Interval = n
	case "consolidator-feemulti":
		cfg.Consolidator.FeeMulti = value
	case "consolidator-persist":
		cfg.Consolidator.Persist = parseBool(value)

	// Policy
	case "policy.blockcount":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Policy.BlockCount = uint32(n)
	case "policy.minutxos":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Policy.MinUTXOs = n
	case "policy.dustfactor":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Policy.DustFactor = n

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	case "log.maxsize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxSizeMB = n
	case "log.maxbackups":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxBackups = n
	case "log.maxage":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxAgeDays = n

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseSeconds accepts a Go duration ("90s", "2m") or bare seconds.
func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Klingnet Consolidator Configuration

# Data directory (default: ~/.klingnet-consolidator)
# datadir = ~/.klingnet-consolidator

# ============================================================================
# Wallet Node
# ============================================================================

node.rpc = ` + DefaultNodeURL + `
# Bound on every fee and wallet call (seconds or duration)
node.timeout = 120

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(DefaultRPCPort) + `
rpc.allowed = 127.0.0.1
# rpc.cors = http://localhost:3000

# ============================================================================
# Consolidate Below
# ============================================================================

# Seconds between fee checks (>= 1)
consolidator-interval = 3600

# Multiplier applied to the fee estimate when the job fires [0.3, 3.0]
consolidator-feemulti = 1.1

# Resume a running consolidate-below job after restart
consolidator-persist = false

# ============================================================================
# Coin Selection
# ============================================================================

# Confirmation target used for default and trigger feerates
# policy.blockcount = 6

# Minimum number of coins to consolidate
# policy.minutxos = 10

# Coins worth less than dustfactor * feerate are skipped
# policy.dustfactor = 70

# ============================================================================
# Metrics
# ============================================================================

# Serve Prometheus metrics on /metrics of the RPC listener
metrics.enabled = true

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file = consolidator.log
log.json = false
# log.maxsize = 100
# log.maxbackups = 5
# log.maxage = 30
`
	return os.WriteFile(path, []byte(content), 0644)
}
