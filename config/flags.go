package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string

	// Node
	NodeRPC     string
	NodeTimeout time.Duration

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Consolidator
	Interval uint64
	FeeMulti string
	Persist  bool

	// Policy
	BlockCount uint
	MinUTXOs   int
	DustFactor uint64

	// Metrics
	Metrics bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for true/false and zero overrides).
	SetRPC      bool
	SetPersist  bool
	SetMetrics  bool
	SetLogJSON  bool
	SetInterval bool
}

// ParseFlags parses os.Args, exiting on error or --help.
func ParseFlags() *Flags {
	f, err := ParseFlagsFrom(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseFlagsFrom parses args. Parse errors are written to errOut.
func ParseFlagsFrom(args []string, errOut io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("consolidatord", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Node
	fs.StringVar(&f.NodeRPC, "node-rpc", "", "Wallet node JSON-RPC URL")
	fs.DurationVar(&f.NodeTimeout, "node-timeout", 0, "Bound on each node call")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")

	// Consolidator
	fs.Uint64Var(&f.Interval, "consolidator-interval", 0, "Seconds between fee checks")
	fs.StringVar(&f.FeeMulti, "consolidator-feemulti", "", "Fee estimate multiplier [0.3, 3.0]")
	fs.BoolVar(&f.Persist, "consolidator-persist", false, "Resume consolidate-below after restart")

	// Policy
	fs.UintVar(&f.BlockCount, "blockcount", 0, "Confirmation target for feerates")
	fs.IntVar(&f.MinUTXOs, "min-utxos", 0, "Default minimum coin count")
	fs.Uint64Var(&f.DustFactor, "dust-factor", 0, "Dust filter factor")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", true, "Serve /metrics")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetPersist = isFlagSet(fs, "consolidator-persist")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.SetInterval = isFlagSet(fs, "consolidator-interval")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node
	if f.NodeRPC != "" {
		cfg.Node.URL = f.NodeRPC
	}
	if f.NodeTimeout != 0 {
		cfg.Node.Timeout = f.NodeTimeout
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}

	// Consolidator. An explicit 0 interval must reach Validate.
	if f.SetInterval {
		cfg.Consolidator.Interval = f.Interval
	}
	if f.FeeMulti != "" {
		cfg.Consolidator.FeeMulti = f.FeeMulti
	}
	if f.SetPersist {
		cfg.Consolidator.Persist = f.Persist
	}

	// Policy
	if f.BlockCount != 0 {
		cfg.Policy.BlockCount = uint32(f.BlockCount)
	}
	if f.MinUTXOs != 0 {
		cfg.Policy.MinUTXOs = f.MinUTXOs
	}
	if f.DustFactor != 0 {
		cfg.Policy.DustFactor = f.DustFactor
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Klingnet Consolidator - merges small wallet outputs when fees are low

Usage:
  consolidatord [options]
  consolidatord --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --datadir       Data directory (default: ~/.klingnet-consolidator)
  --config, -c    Config file path (default: <datadir>/consolidator.conf)

Node Options:
  --node-rpc      Wallet node JSON-RPC URL (default: ` + DefaultNodeURL + `)
  --node-timeout  Bound on each node call (default: 2m)

RPC Options:
  --rpc           Enable RPC server (default: true)
  --rpc-addr      RPC listen address (default: 127.0.0.1)
  --rpc-port      RPC port (default: 9840)
  --rpc-allowed   Allowed IPs for RPC (comma-separated)
  --rpc-cors      Allowed CORS origins for RPC (comma-separated)

Consolidator Options:
  --consolidator-interval  Seconds between fee checks (default: 3600)
  --consolidator-feemulti  Fee estimate multiplier, 0.3 to 3.0 (default: 1.1)
  --consolidator-persist   Resume consolidate-below after restart

Policy Options:
  --blockcount    Confirmation target for feerates (default: 6)
  --min-utxos     Default minimum coin count (default: 10)
  --dust-factor   Skip coins worth less than factor*feerate (default: 70)

Metrics Options:
  --metrics       Serve Prometheus metrics on /metrics (default: true)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file, relative to <datadir>/logs (default: none)
  --log-json      Output logs as JSON

Examples:
  # Start against a local node
  consolidatord --node-rpc=http://127.0.0.1:9835

  # Check fees every 10 minutes and keep the job across restarts
  consolidatord --consolidator-interval=600 --consolidator-persist
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("consolidatord version " + Version)
		os.Exit(0)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWithFlags builds the config from defaults, the config file and flags.
func LoadWithFlags(flags *Flags) (*Config, error) {
	cfg := Default()

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.JobsDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
