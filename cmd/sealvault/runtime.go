package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitfsorg/sealvault-go/access"
	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/vault"
	"github.com/bitfsorg/sealvault-go/walrus"
)

// Environment variables holding the signing identity. PrivateKeyEnv wins
// when both are set.
const (
	PrivateKeyEnv = "SUI_PRIVATE_KEY"
	MnemonicEnv   = "SUI_MNEMONIC"
)

type runtime struct {
	engine   *vault.Engine
	provider *seal.Provider
	ledger   *chain.Ledger
}

func (r *runtime) Close() error {
	if r.ledger == nil {
		return nil
	}
	return r.ledger.Close()
}

// withEngine builds an engine from the loaded config and runs fn with it.
func (g *globals) withEngine(ctx context.Context, fn func(*runtime) error) error {
	rt, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func (g *globals) open(ctx context.Context) (*runtime, error) {
	cfg := g.cfg

	signer, err := loadSigner()
	if err != nil {
		return nil, err
	}

	svc, err := g.chainService()
	if err != nil {
		return nil, err
	}

	storage, err := g.storageClient()
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	var crypto vault.Crypto
	if cfg.Seal.PackageID != "" && len(cfg.Seal.KeyServers) > 0 {
		rt.provider, err = g.sealProvider(ctx, signer)
		if err != nil {
			return nil, err
		}
		crypto = rt.provider
	}

	var checker access.Checker
	if cfg.AccessURL != "" {
		checker = access.NewHTTPChecker(cfg.AccessURL)
	}

	rt.ledger, err = chain.OpenLedger(filepath.Join(cfg.DataDir, "ledger.db"))
	if err != nil {
		return nil, err
	}

	ecfg := vault.Config{
		Storage:   storage,
		Chain:     svc,
		Signer:    signer,
		Crypto:    crypto,
		Access:    checker,
		Ledger:    rt.ledger,
		Logger:    g.log,
		Epochs:    cfg.Storage.Epochs,
		Deletable: cfg.Storage.Deletable,
	}
	rt.engine, err = vault.New(ecfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// loadSigner returns nil without error when no key is configured; reads
// still work without one.
func loadSigner() (identity.Signer, error) {
	v := os.Getenv(PrivateKeyEnv)
	if v == "" {
		if m := os.Getenv(MnemonicEnv); m != "" {
			kp, err := identity.Secp256k1FromMnemonic(m, "", 0)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", MnemonicEnv, err)
			}
			return kp, nil
		}
		return nil, nil
	}
	signer, err := identity.ParsePrivateKey(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PrivateKeyEnv, err)
	}
	return signer, nil
}

func (g *globals) chainService() (*chain.RPCClient, error) {
	env := map[string]string{"SUI_RPC_URL": os.Getenv("SUI_RPC_URL")}
	rpcCfg, err := chain.ResolveConfig(&chain.RPCConfig{URL: g.cfg.RPCURL}, env, g.cfg.Network)
	if err != nil {
		return nil, err
	}
	return chain.NewRPCClient(*rpcCfg), nil
}

func (g *globals) nodeURLs() ([]string, error) {
	sc := g.cfg.Storage
	if len(sc.Nodes) > 0 {
		return sc.Nodes, nil
	}
	if sc.NodeDomain == "" {
		return nil, errors.New("no storage nodes configured: set storage.nodes or storage.node_domain")
	}
	resolver := walrus.DefaultResolver
	if sc.DNSSEC {
		resolver = walrus.NewDNSSECResolver("")
	}
	urls, err := walrus.DiscoverNodes(sc.NodeDomain, resolver)
	if err != nil {
		return nil, err
	}
	g.log.WithField("nodes", urls).Debug("discovered storage nodes")
	return urls, nil
}

func (g *globals) storageClient() (*walrus.Client, error) {
	sc := g.cfg.Storage
	urls, err := g.nodeURLs()
	if err != nil {
		return nil, err
	}
	nodes := make([]walrus.NodeClient, len(urls))
	for i, u := range urls {
		nodes[i] = walrus.NewHTTPNode(u)
	}

	comp, err := blobfile.ParseCompression(sc.Compression)
	if err != nil {
		return nil, err
	}
	cacheDir := sc.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(g.cfg.DataDir, "cache")
	}
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	cache, err := walrus.NewCache(cacheDir)
	if err != nil {
		return nil, err
	}

	return walrus.NewClient(walrus.ClientConfig{
		DataShards:   sc.DataShards,
		ParityShards: sc.ParityShards,
		Compression:  comp,
		Nodes:        nodes,
		Cache:        cache,
		Logger:       g.log,
	})
}

func (g *globals) sealProvider(ctx context.Context, signer identity.Signer) (*seal.Provider, error) {
	sc := g.cfg.Seal
	servers := make([]seal.KeyServer, 0, len(sc.KeyServers))
	for _, u := range sc.KeyServers {
		ks, err := seal.DialKeyServer(ctx, u)
		if err != nil {
			if !sc.AllowFallback {
				return nil, err
			}
			g.log.WithError(err).WithField("url", u).Warn("key server unreachable")
			continue
		}
		servers = append(servers, ks)
	}

	var prim seal.Primitive = unreachable{}
	if len(servers) > 0 {
		client, err := seal.NewClient(servers, g.log)
		if err != nil {
			return nil, err
		}
		prim = client
	}
	return seal.NewProvider(seal.ProviderConfig{
		PackageID:     sc.PackageID,
		Threshold:     sc.Threshold,
		TTLMinutes:    sc.SessionTTL,
		AllowFallback: sc.AllowFallback,
		Logger:        g.log,
	}, prim, signer)
}

// unreachable is the primitive used when no key server answered at
// startup. Encryption then takes the fallback path.
type unreachable struct{}

func (unreachable) Encrypt(context.Context, *seal.EncryptRequest) ([]byte, error) {
	return nil, seal.ErrThresholdUnavailable
}

func (unreachable) Decrypt(context.Context, *seal.DecryptRequest) ([]byte, error) {
	return nil, seal.ErrThresholdUnavailable
}
