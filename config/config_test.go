// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Network", cfg.Network, "testnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"DataShards", cfg.Storage.DataShards, 4},
		{"ParityShards", cfg.Storage.ParityShards, 2},
		{"Epochs", cfg.Storage.Epochs, 3},
		{"Threshold", cfg.Seal.Threshold, 1},
		{"SessionTTL", cfg.Seal.SessionTTL, 30},
		{"AllowFallback", cfg.Seal.AllowFallback, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if !strings.HasSuffix(cfg.DataDir, ".sealvault") {
		t.Errorf("DataDir = %q, want suffix .sealvault", cfg.DataDir)
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	original := DefaultConfig()
	original.DataDir = "/tmp/test-sealvault"
	original.Network = "localnet"
	original.LogLevel = "debug"
	original.LogFile = "/tmp/sealvault.log"
	original.RPCURL = "http://127.0.0.1:9000"
	original.Storage.Nodes = []string{"http://127.0.0.1:31415", "http://127.0.0.1:31416"}
	original.Storage.Compression = "zstd"
	original.Seal.PackageID = "0xabc"
	original.Seal.KeyServers = []string{"http://127.0.0.1:2024"}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"DataDir", loaded.DataDir, original.DataDir},
		{"Network", loaded.Network, original.Network},
		{"LogLevel", loaded.LogLevel, original.LogLevel},
		{"LogFile", loaded.LogFile, original.LogFile},
		{"RPCURL", loaded.RPCURL, original.RPCURL},
		{"Nodes", strings.Join(loaded.Storage.Nodes, ","), strings.Join(original.Storage.Nodes, ",")},
		{"Compression", loaded.Storage.Compression, "zstd"},
		{"PackageID", loaded.Seal.PackageID, "0xabc"},
		{"KeyServers", len(loaded.Seal.KeyServers), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", ConfigFileName)

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.toml")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("this-is-not-toml\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad syntax: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfigUnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := "futurekey = \"x\"\nnetwork = \"testnet\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig unknown key: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := `# comment
network = "devnet"

[seal]
package_id = "0x1"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Network != "devnet" {
		t.Errorf("Network = %q, want devnet", cfg.Network)
	}
	if cfg.Seal.PackageID != "0x1" {
		t.Errorf("PackageID = %q, want 0x1", cfg.Seal.PackageID)
	}
	if cfg.Seal.SessionTTL != 30 {
		t.Errorf("SessionTTL = %d, want default 30", cfg.Seal.SessionTTL)
	}
	if cfg.Storage.Epochs != 3 {
		t.Errorf("Epochs = %d, want default 3", cfg.Storage.Epochs)
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"empty_datadir", func(c *Config) { c.DataDir = "" }, ErrEmptyDataDir},
		{"bad_network", func(c *Config) { c.Network = "regtest" }, ErrInvalidNetwork},
		{"bad_loglevel", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidLogLevel},
		{"bad_rpc_url", func(c *Config) { c.RPCURL = "ftp://node" }, ErrInvalidURL},
		{"bad_node_url", func(c *Config) { c.Storage.Nodes = []string{"http://"} }, ErrInvalidURL},
		{"zero_data_shards", func(c *Config) { c.Storage.DataShards = 0 }, ErrInvalidShards},
		{"too_many_shards", func(c *Config) { c.Storage.DataShards = 200; c.Storage.ParityShards = 100 }, ErrInvalidShards},
		{"bad_compression", func(c *Config) { c.Storage.Compression = "lzma" }, ErrInvalidCompression},
		{"zero_epochs", func(c *Config) { c.Storage.Epochs = 0 }, ErrInvalidEpochs},
		{"zero_threshold", func(c *Config) { c.Seal.Threshold = 0 }, ErrInvalidThreshold},
		{"threshold_above_servers", func(c *Config) {
			c.Seal.KeyServers = []string{"http://a"}
			c.Seal.Threshold = 2
		}, ErrInvalidThreshold},
		{"ttl_too_long", func(c *Config) { c.Seal.SessionTTL = 31 }, ErrInvalidSessionTTL},
		{"ttl_zero", func(c *Config) { c.Seal.SessionTTL = 0 }, ErrInvalidSessionTTL},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigValidNetworks(t *testing.T) {
	for _, network := range []string{"mainnet", "testnet", "devnet", "localnet"} {
		cfg := DefaultConfig()
		cfg.Network = network
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with network %q: %v", network, err)
		}
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ConfigPath tests
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.sealvault")
	want := filepath.Join("/home/user/.sealvault", "config.toml")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}
