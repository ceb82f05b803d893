// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and stores the sealvault configuration file.
//
// The file lives at {DataDir}/config.toml and is plain TOML:
//
//	network   = "testnet"
//	log_level = "info"
//
//	[storage]
//	nodes = ["http://127.0.0.1:31415"]
//
//	[seal]
//	package_id  = "0x..."
//	key_servers = ["http://127.0.0.1:2024"]
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the configuration file inside DataDir.
const ConfigFileName = "config.toml"

// Config is the root configuration.
type Config struct {
	DataDir   string `toml:"data_dir"`
	Network   string `toml:"network"`
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	RPCURL    string `toml:"rpc_url"`
	AccessURL string `toml:"access_url"`

	Storage StorageConfig `toml:"storage"`
	Seal    SealConfig    `toml:"seal"`
}

// StorageConfig describes the blob storage network.
type StorageConfig struct {
	// Nodes are storage node base URLs. When empty, NodeDomain is resolved
	// through DNS SRV records.
	Nodes        []string `toml:"nodes"`
	NodeDomain   string   `toml:"node_domain"`
	DNSSEC       bool     `toml:"dnssec"`
	DataShards   int      `toml:"data_shards"`
	ParityShards int      `toml:"parity_shards"`
	Compression  string   `toml:"compression"`
	Epochs       int      `toml:"epochs"`
	Deletable    bool     `toml:"deletable"`
	CacheDir     string   `toml:"cache_dir"`
}

// SealConfig describes the threshold encryption setup.
type SealConfig struct {
	PackageID     string   `toml:"package_id"`
	KeyServers    []string `toml:"key_servers"`
	Threshold     int      `toml:"threshold"`
	SessionTTL    int      `toml:"session_ttl_minutes"`
	AllowFallback bool     `toml:"allow_fallback"`
}

// DefaultConfig returns a Config populated with defaults. DataDir points to
// ~/.sealvault when the home directory is known.
func DefaultConfig() Config {
	dataDir := ".sealvault"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".sealvault")
	}
	return Config{
		DataDir:  dataDir,
		Network:  "testnet",
		LogLevel: "info",
		Storage: StorageConfig{
			DataShards:   4,
			ParityShards: 2,
			Compression:  "none",
			Epochs:       3,
			Deletable:    true,
		},
		Seal: SealConfig{
			Threshold:     1,
			SessionTTL:    30,
			AllowFallback: true,
		},
	}
}

// ConfigPath returns the configuration file path for dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// LoadConfig reads the configuration file at path. Keys missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidConfigLine, undecoded[0].String())
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("config: open file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("config: encode: %w", err)
	}
	return f.Close()
}
