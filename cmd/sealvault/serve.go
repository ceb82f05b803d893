package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/access"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/walrus"
)

// KeyServerKeyEnv holds the hex master key of a key server.
const KeyServerKeyEnv = "SEAL_KEYSERVER_KEY"

// serve runs h on addr until ctx is canceled.
func (g *globals) serve(ctx context.Context, name, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	g.log.WithField("addr", addr).Infof("%s listening", name)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newKeyServerCmd(g *globals) *cobra.Command {
	var addr, id string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run a key server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := g.approvalPolicy()

			var ks *seal.LocalKeyServer
			if v := os.Getenv(KeyServerKeyEnv); v != "" {
				b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
				if err != nil || len(b) != 32 {
					return fmt.Errorf("%s: expected 32 hex-encoded bytes", KeyServerKeyEnv)
				}
				priv, _ := ec.PrivateKeyFromBytes(b)
				ks = seal.NewLocalKeyServer(id, priv, policy)
			} else {
				var err error
				ks, err = seal.GenerateLocalKeyServer(id, policy)
				if err != nil {
					return err
				}
				g.log.Warnf("%s not set, using an ephemeral master key", KeyServerKeyEnv)
			}
			return g.serve(cmd.Context(), "key server", addr, seal.NewKeyServerHandler(ks, g.log))
		},
	}
	serve.Flags().StringVar(&addr, "addr", "127.0.0.1:2024", "listen address")
	serve.Flags().StringVar(&id, "id", "keyserver-1", "key server id")

	cmd := &cobra.Command{Use: "keyserver", Short: "Threshold key server"}
	cmd.AddCommand(serve)
	return cmd
}

// approvalPolicy releases keys only for the configured package and, when
// an access service is configured, only to addresses it allows.
func (g *globals) approvalPolicy() seal.Policy {
	pkg := g.cfg.Seal.PackageID
	var checker access.Checker
	if g.cfg.AccessURL != "" {
		checker = access.NewHTTPChecker(g.cfg.AccessURL)
	}
	return func(ctx context.Context, address, packageID, id string) error {
		if pkg != "" && !strings.EqualFold(pkg, packageID) {
			return fmt.Errorf("package %s is not served here", packageID)
		}
		if checker == nil {
			return nil
		}
		ok, err := checker.Check(ctx, address)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("address %s is not authorized", address)
		}
		return nil
	}
}

func newNodeCmd(g *globals) *cobra.Command {
	var addr, id string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory storage node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.chainService()
			if err != nil {
				return err
			}
			node := walrus.NewMemoryNode(id, func(ctx context.Context, digest, blobID string) error {
				return chain.CheckRegistration(ctx, svc, digest, blobID)
			})
			return g.serve(cmd.Context(), "storage node", addr, walrus.NewNodeHandler(node, g.log))
		},
	}
	serve.Flags().StringVar(&addr, "addr", "127.0.0.1:31415", "listen address")
	serve.Flags().StringVar(&id, "id", "node-1", "node id")

	cmd := &cobra.Command{Use: "node", Short: "Blob storage node"}
	cmd.AddCommand(serve)
	return cmd
}

func newAccessCmd(g *globals) *cobra.Command {
	var addr, allowFile string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the address allow-list service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := access.LoadAllowList(allowFile)
			if err != nil {
				return err
			}
			g.log.WithField("addresses", list.Len()).Info("allow list loaded")
			return g.serve(cmd.Context(), "access service", addr, access.NewHandler(list, g.log))
		},
	}
	serve.Flags().StringVar(&addr, "addr", "127.0.0.1:3001", "listen address")
	serve.Flags().StringVar(&allowFile, "allow-list", "wallet.txt", "file with one allowed address per line")

	cmd := &cobra.Command{Use: "access", Short: "Address allow-list service"}
	cmd.AddCommand(serve)
	return cmd
}
