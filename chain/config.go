package chain

import (
	"fmt"
	"time"
)

// RPCConfig holds the connection parameters for a full node's JSON-RPC interface.
type RPCConfig struct {
	URL          string        `json:"url"`
	Network      string        `json:"network"`
	PollInterval time.Duration `json:"poll_interval"`
	WaitTimeout  time.Duration `json:"wait_timeout"`
}

// NetworkPresets contains default RPC endpoints for public networks.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]RPCConfig{
	"testnet":  {URL: "https://fullnode.testnet.sui.io:443"},
	"devnet":   {URL: "https://fullnode.devnet.sui.io:443"},
	"localnet": {URL: "http://127.0.0.1:9000"},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (SUI_RPC_URL)
//  3. Network presets (lowest priority)
//
// For mainnet, explicit configuration is required; there is no preset.
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if v := env["SUI_RPC_URL"]; v != "" {
		result.URL = v
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.PollInterval > 0 {
			result.PollInterval = flags.PollInterval
		}
		if flags.WaitTimeout > 0 {
			result.WaitTimeout = flags.WaitTimeout
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("chain: %s requires explicit RPC configuration (set --rpc-url, SUI_RPC_URL, or rpc_url in config.toml)", network)
	}
	return &result, nil
}
