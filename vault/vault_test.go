package vault

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/walrus"
)

const testPackage = "0x7ad0ee086b5ace27193dc896d6b2963bd0957689bbdb4df11947b9de4e32d96e"

// downPrimitive stands in for unreachable key servers.
type downPrimitive struct{}

func (downPrimitive) Encrypt(context.Context, *seal.EncryptRequest) ([]byte, error) {
	return nil, errors.New("key servers unreachable")
}

func (downPrimitive) Decrypt(context.Context, *seal.DecryptRequest) ([]byte, error) {
	return nil, errors.New("key servers unreachable")
}

type testEnv struct {
	chain    *chain.MemoryChain
	nodes    []*walrus.MemoryNode
	storage  *walrus.Client
	signer   identity.Signer
	provider *seal.Provider
	ledger   *chain.Ledger
	engine   *Engine
}

type envOption func(*testEnv, *Config)

func withPrimitive(p seal.Primitive) envOption {
	return func(env *testEnv, cfg *Config) {
		provider, err := seal.NewProvider(seal.ProviderConfig{
			PackageID:     testPackage,
			Threshold:     1,
			TTLMinutes:    30,
			AllowFallback: true,
		}, p, env.signer)
		if err != nil {
			panic(err)
		}
		env.provider = provider
		cfg.Crypto = provider
	}
}

func withCache(c *walrus.Cache) envOption {
	return func(env *testEnv, cfg *Config) {
		client, err := walrus.NewClient(walrus.ClientConfig{
			DataShards:   2,
			ParityShards: 1,
			Nodes:        []walrus.NodeClient{env.nodes[0], env.nodes[1], env.nodes[2]},
			Cache:        c,
		})
		if err != nil {
			panic(err)
		}
		env.storage = client
		cfg.Storage = client
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	signer, err := identity.NewSecp256k1Keypair()
	require.NoError(t, err)
	env := &testEnv{chain: chain.NewMemoryChain(), signer: signer}

	check := func(ctx context.Context, digest, blobID string) error {
		return chain.CheckRegistration(ctx, env.chain, digest, blobID)
	}
	var nodes []walrus.NodeClient
	for _, id := range []string{"n0", "n1", "n2"} {
		n := walrus.NewMemoryNode(id, check)
		env.nodes = append(env.nodes, n)
		nodes = append(nodes, n)
	}
	env.storage, err = walrus.NewClient(walrus.ClientConfig{DataShards: 2, ParityShards: 1, Nodes: nodes})
	require.NoError(t, err)

	env.ledger, err = chain.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.ledger.Close() })

	ks, err := seal.GenerateLocalKeyServer("ks-1", nil)
	require.NoError(t, err)
	client, err := seal.NewClient([]seal.KeyServer{ks}, nil)
	require.NoError(t, err)

	cfg := Config{
		Storage:   env.storage,
		Chain:     env.chain,
		Signer:    signer,
		Ledger:    env.ledger,
		Deletable: true,
	}
	withPrimitive(client)(env, &cfg)
	for _, o := range opts {
		o(env, &cfg)
	}
	env.engine, err = New(cfg)
	require.NoError(t, err)
	return env
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrBlobIDTooShort, KindValidation},
		{ErrNoMasterKey, KindPrecondition},
		{ErrNoBlobID, KindTransport},
		{ErrDecryption, KindDecryption},
		{ErrBusy, KindBusy},
		{ErrCanceled, KindCanceled},
		{ErrNoFiles, KindNoFiles},
		{errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "no-files", KindNoFiles.String())
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, classify(ctx, errors.New("rpc down")), ErrTransport)
	assert.ErrorIs(t, classify(ctx, ErrBlobIDFormat), ErrValidation)
	assert.ErrorIs(t, classify(ctx, context.Canceled), ErrCanceled)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, classify(canceledCtx, errors.New("interrupted")), ErrCanceled)
}

func TestValidateBlobID(t *testing.T) {
	tests := []struct {
		id   string
		want error
	}{
		{"0xABCDEF0123456789abcdef", ErrTransactionDigest},
		{"ab", ErrBlobIDTooShort},
		{"123456789abcdef", ErrBlobIDFormat},
		{"_bafkreigh2akiscaild", ErrBlobIDFormat},
		{"bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateBlobID(tt.id)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	id, err := NormalizeBlobID("\t bafkreigh2akiscaild \n")
	require.NoError(t, err)
	assert.Equal(t, "bafkreigh2akiscaild", id)
	_, err = NormalizeBlobID("  ")
	assert.ErrorIs(t, err, ErrBlobIDTooShort)
}
