// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxSessionTTL is the longest session lifetime key servers accept, in minutes.
const MaxSessionTTL = 30

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validNetworks = map[string]bool{
	"mainnet":  true,
	"testnet":  true,
	"devnet":   true,
	"localnet": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validNetworks[cfg.Network] {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	for _, u := range append(append([]string{cfg.RPCURL, cfg.AccessURL}, cfg.Storage.Nodes...), cfg.Seal.KeyServers...) {
		if err := validateURL(u); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidURL, u, err)
		}
	}

	if cfg.Storage.DataShards < 1 || cfg.Storage.ParityShards < 1 ||
		cfg.Storage.DataShards+cfg.Storage.ParityShards > 256 {
		return fmt.Errorf("%w: %d data + %d parity", ErrInvalidShards,
			cfg.Storage.DataShards, cfg.Storage.ParityShards)
	}

	switch cfg.Storage.Compression {
	case "", "none", "zstd":
	default:
		return ErrInvalidCompression
	}

	if cfg.Storage.Epochs < 1 {
		return ErrInvalidEpochs
	}

	if cfg.Seal.Threshold < 1 ||
		(len(cfg.Seal.KeyServers) > 0 && cfg.Seal.Threshold > len(cfg.Seal.KeyServers)) {
		return ErrInvalidThreshold
	}

	if cfg.Seal.SessionTTL < 1 || cfg.Seal.SessionTTL > MaxSessionTTL {
		return ErrInvalidSessionTTL
	}

	return nil
}

// validateURL accepts the empty string (unset) and absolute http(s) URLs.
func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
