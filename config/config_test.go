package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Consolidator.Interval != 3600 {
		t.Errorf("interval = %d, want 3600", cfg.Consolidator.Interval)
	}
	if cfg.Consolidator.FeeMulti != "1.1" {
		t.Errorf("feemulti = %q, want 1.1", cfg.Consolidator.FeeMulti)
	}
	if cfg.Consolidator.Persist {
		t.Error("persist should default to false")
	}
}

func TestLoadFile_ParsesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consolidator.conf")
	content := `# comment
consolidator-interval = 600
consolidator-feemulti = "0.9"
consolidator-persist = yes

node.rpc = http://10.0.0.2:9835
node.timeout = 30
policy.minutxos = 4
rpc.allowed = 127.0.0.1, 10.0.0.0/8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Consolidator.Interval != 600 {
		t.Errorf("interval = %d", cfg.Consolidator.Interval)
	}
	if cfg.Consolidator.FeeMulti != "0.9" {
		t.Errorf("feemulti = %q", cfg.Consolidator.FeeMulti)
	}
	if !cfg.Consolidator.Persist {
		t.Error("persist not applied")
	}
	if cfg.Node.URL != "http://10.0.0.2:9835" {
		t.Errorf("node.rpc = %q", cfg.Node.URL)
	}
	if cfg.Node.Timeout != 30*time.Second {
		t.Errorf("node.timeout = %v", cfg.Node.Timeout)
	}
	if cfg.Policy.MinUTXOs != 4 {
		t.Errorf("minutxos = %d", cfg.Policy.MinUTXOs)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("rpc.allowed = %v", cfg.RPC.AllowedIPs)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values, got %v", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("just-a-word\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for line without '='")
	}
}

func TestApplyFileConfig_BadInterval(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{"consolidator-interval": "-5"})
	if err == nil {
		t.Fatal("expected parse error for negative interval")
	}
}

func TestValidate_Consolidator(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero interval", func(c *Config) { c.Consolidator.Interval = 0 }, "consolidator-interval"},
		{"low feemulti", func(c *Config) { c.Consolidator.FeeMulti = "0.2" }, "consolidator-feemulti"},
		{"high feemulti", func(c *Config) { c.Consolidator.FeeMulti = "3.1" }, "consolidator-feemulti"},
		{"garbage feemulti", func(c *Config) { c.Consolidator.FeeMulti = "fast" }, "consolidator-feemulti"},
		{"zero min utxos", func(c *Config) { c.Policy.MinUTXOs = 0 }, "minutxos"},
		{"zero blockcount", func(c *Config) { c.Policy.BlockCount = 0 }, "blockcount"},
		{"bad node url", func(c *Config) { c.Node.URL = "localhost:9835" }, "node.rpc"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad port", func(c *Config) { c.RPC.Port = 70000 }, "rpc.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error %q does not mention %q", err, tt.errSub)
			}
		})
	}
}

func TestValidate_FeeMultiBounds(t *testing.T) {
	for _, v := range []string{"0.3", "3.0", "1"} {
		cfg := Default()
		cfg.Consolidator.FeeMulti = v
		if err := Validate(cfg); err != nil {
			t.Errorf("feemulti %s rejected: %v", v, err)
		}
	}
}

func TestParseFlagsFrom(t *testing.T) {
	f, err := ParseFlagsFrom([]string{
		"--consolidator-interval=0",
		"--consolidator-feemulti=2.5",
		"--consolidator-persist",
		"--rpc-port=9999",
		"--log-json",
	}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlagsFrom: %v", err)
	}

	cfg := Default()
	ApplyFlags(cfg, f)
	if cfg.Consolidator.Interval != 0 {
		t.Errorf("explicit zero interval not applied: %d", cfg.Consolidator.Interval)
	}
	if cfg.Consolidator.FeeMulti != "2.5" || !cfg.Consolidator.Persist {
		t.Errorf("consolidator flags not applied: %+v", cfg.Consolidator)
	}
	if cfg.RPC.Port != 9999 || !cfg.Log.JSON {
		t.Errorf("rpc/log flags not applied")
	}
	if err := Validate(cfg); err == nil {
		t.Error("zero interval should fail validation")
	}
}

func TestParseFlagsFrom_StrayPositional(t *testing.T) {
	_, err := ParseFlagsFrom([]string{"--consolidator-persist", "yes", "--rpc-port=1"}, io.Discard)
	if err == nil {
		t.Error("expected error for flag after positional argument")
	}
}

func TestLoadWithFlags_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	f, err := ParseFlagsFrom([]string{"--datadir=" + dir, "--consolidator-interval=5"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithFlags(f)
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.Consolidator.Interval != 5 {
		t.Errorf("interval = %d, want 5", cfg.Consolidator.Interval)
	}
	for _, p := range []string{cfg.ConfigFile(), cfg.JobsDir(), cfg.LogsDir()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	// The written default file must itself load and validate.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	fresh := Default()
	if err := ApplyFileConfig(fresh, values); err != nil {
		t.Fatal(err)
	}
	if err := Validate(fresh); err != nil {
		t.Errorf("default config file invalid: %v", err)
	}
}

func TestLoadWithFlags_FatalOnBadMultiplier(t *testing.T) {
	dir := t.TempDir()
	f, _ := ParseFlagsFrom([]string{"--datadir=" + dir, "--consolidator-feemulti=5"}, io.Discard)
	if _, err := LoadWithFlags(f); err == nil {
		t.Fatal("expected fatal config error")
	}
}

func TestScheduler(t *testing.T) {
	cfg := Default()
	cfg.Consolidator.Interval = 90
	cfg.Consolidator.FeeMulti = "1.5"
	cfg.Consolidator.Persist = true

	sc, err := cfg.Scheduler()
	if err != nil {
		t.Fatal(err)
	}
	if sc.Interval != 90*time.Second {
		t.Errorf("interval = %v", sc.Interval)
	}
	if sc.FeeMultiplier.String() != "1.5" {
		t.Errorf("multiplier = %s", sc.FeeMultiplier)
	}
	if !sc.Persist {
		t.Error("persist not carried")
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("scheduler config invalid: %v", err)
	}
}

func TestLogFilePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	if got := cfg.LogFilePath(); got != "" {
		t.Errorf("empty log.file resolved to %q", got)
	}
	cfg.Log.File = "c.log"
	if got := cfg.LogFilePath(); got != filepath.Join("/data", "logs", "c.log") {
		t.Errorf("relative log.file = %q", got)
	}
	cfg.Log.File = "/var/log/c.log"
	if got := cfg.LogFilePath(); got != "/var/log/c.log" {
		t.Errorf("absolute log.file = %q", got)
	}
}
