package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/config"
	"github.com/bitfsorg/sealvault-go/logging"
)

// globals holds the persistent flags and what PersistentPreRunE derives
// from them.
type globals struct {
	dataDir    string
	configPath string
	network    string
	rpcURL     string
	logLevel   string
	jsonOutput bool

	cfg *config.Config
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "sealvault",
		Short:         "Store and retrieve threshold-encrypted blobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}
	cmd.Version = version

	defaults := config.DefaultConfig()
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.dataDir, "data-dir", defaults.DataDir, "data directory")
	pf.StringVar(&g.configPath, "config", "", "config file (default {data-dir}/config.toml)")
	pf.StringVar(&g.network, "network", "", "network name (testnet, devnet, localnet, mainnet)")
	pf.StringVar(&g.rpcURL, "rpc-url", "", "chain RPC endpoint")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&g.jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newUploadCmd(g),
		newPutTextCmd(g),
		newGetCmd(g),
		newPasswordCmd(g),
		newKeyServerCmd(g),
		newNodeCmd(g),
		newAccessCmd(g),
		newKeygenCmd(g),
	)
	return cmd
}

// load reads the config file, applies flag overrides and builds the logger.
// A missing config file is not an error.
func (g *globals) load(cmd *cobra.Command) error {
	path := g.configPath
	if path == "" {
		path = config.ConfigPath(g.dataDir)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) || g.configPath != "" {
			return err
		}
		d := config.DefaultConfig()
		cfg = &d
	}

	if cmd.Flags().Changed("data-dir") || cfg.DataDir == "" {
		cfg.DataDir = g.dataDir
	}
	if g.network != "" {
		cfg.Network = g.network
	}
	if g.rpcURL != "" {
		cfg.RPCURL = g.rpcURL
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := config.ValidateConfig(*cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.log = log
	return nil
}
