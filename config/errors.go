// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", \"devnet\", or \"localnet\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidURL indicates an endpoint URL is malformed.
	ErrInvalidURL = errors.New("config: invalid endpoint URL")

	// ErrInvalidShards indicates the erasure coding shard counts are out of range.
	ErrInvalidShards = errors.New("config: invalid shard counts")

	// ErrInvalidCompression indicates the compression name is not recognized.
	ErrInvalidCompression = errors.New("config: invalid compression (must be \"none\" or \"zstd\")")

	// ErrInvalidEpochs indicates a non-positive storage duration.
	ErrInvalidEpochs = errors.New("config: epochs must be positive")

	// ErrInvalidThreshold indicates the threshold is outside 1..len(key_servers).
	ErrInvalidThreshold = errors.New("config: invalid seal threshold")

	// ErrInvalidSessionTTL indicates the session TTL is outside 1..30 minutes.
	ErrInvalidSessionTTL = errors.New("config: session ttl must be between 1 and 30 minutes")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates the config file could not be parsed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration file")
)
