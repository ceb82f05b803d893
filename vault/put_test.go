package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/access"
	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/seal"
)

func TestUpload_PlainRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Upload(ctx, &UploadOpts{
		Contents:   []byte("plain content"),
		Identifier: "notes.txt",
		Tags:       map[string]string{blobfile.TagContentType: "text/plain"},
		Epochs:     2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.BlobID)
	assert.Equal(t, seal.StatusUnknown, res.Encryption)
	assert.Nil(t, res.Descriptor)
	assert.True(t, env.chain.IsCertified(res.BlobID))
	assert.Contains(t, res.Message, res.BlobID)

	reg, err := env.ledger.GetReceipt(res.RegisterDigest)
	require.NoError(t, err)
	assert.True(t, reg.Finalized)
	_, err = env.ledger.GetReceipt(res.CertifyDigest)
	require.NoError(t, err)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID})
	require.NoError(t, err)
	assert.Equal(t, "plain content", got.Text)
	assert.Equal(t, []byte("plain content"), got.Raw)
	assert.Equal(t, "notes.txt", got.Identifier)
	assert.Equal(t, "text/plain", got.ContentType)
	assert.Equal(t, "false", got.Tags[blobfile.TagEncrypted])
	assert.False(t, got.Encrypted)
}

func TestUpload_EncryptedHotAndImportedPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.engine.UploadText(ctx, "first secret", true, "")
	require.NoError(t, err)
	assert.Equal(t, seal.StatusWorking, first.Encryption)
	assert.Equal(t, EncryptedTextIdentifier, first.Identifier)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: first.BlobID, Descriptor: first.Descriptor})
	require.NoError(t, err)
	assert.True(t, got.Encrypted)
	assert.Equal(t, seal.PathHot, got.DecryptPath)
	assert.Equal(t, "first secret", got.Text)
	assert.Equal(t, ContentTypeBinary, got.ContentType)
	assert.NotEqual(t, []byte("first secret"), got.Raw)

	// A second encryption takes the hot slot; the first blob now decrypts
	// through its exported session.
	_, err = env.engine.UploadText(ctx, "second secret", true, "")
	require.NoError(t, err)

	data, err := seal.MarshalDescriptor(first.Descriptor)
	require.NoError(t, err)
	desc, err := seal.ParseDescriptor(data)
	require.NoError(t, err)
	got, err = env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: first.BlobID, Descriptor: desc})
	require.NoError(t, err)
	assert.Equal(t, seal.PathImported, got.DecryptPath)
	assert.Equal(t, "first secret", got.Text)
	assert.Equal(t, []byte("first secret"), got.Content())
}

func TestUpload_FallbackIsFlagged(t *testing.T) {
	env := newTestEnv(t, withPrimitive(downPrimitive{}))
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "not actually secret", true, "pw")
	require.NoError(t, err)
	assert.Equal(t, seal.StatusFallback, res.Encryption)
	assert.Equal(t, seal.StatusFallback, env.provider.Status())
	assert.IsType(t, &seal.FallbackDescriptor{}, res.Descriptor)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID, Descriptor: res.Descriptor})
	require.NoError(t, err)
	assert.Equal(t, seal.PathFallback, got.DecryptPath)
	assert.Equal(t, "not actually secret", got.Text)
}

func TestUpload_CertifyFailureReturnsNoBlobID(t *testing.T) {
	env := newTestEnv(t)
	env.chain.Reject = func(tx *chain.Transaction) error {
		if tx.Kind == chain.KindCertifyBlob {
			return errors.New("certify rejected")
		}
		return nil
	}

	res, err := env.engine.UploadText(context.Background(), "hello", false, "")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.False(t, env.engine.Busy())

	abandoned, err := env.ledger.ListAbandoned()
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "certify", abandoned[0].Stage)
	assert.NotEmpty(t, abandoned[0].RegisterDigest)
	assert.False(t, env.chain.IsCertified(abandoned[0].BlobID))
}

func TestUpload_FinalityFailureAbandonsRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.chain.FinalityErr = chain.ErrFinalityTimeout

	res, err := env.engine.UploadText(context.Background(), "hello", false, "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, chain.ErrFinalityTimeout)

	abandoned, err := env.ledger.ListAbandoned()
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "finalize", abandoned[0].Stage)
	for _, n := range env.nodes {
		assert.Zero(t, n.Len())
	}
}

func TestUpload_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.nodes[0].SetDown(true)
	env.nodes[1].SetDown(true)

	res, err := env.engine.UploadText(context.Background(), "hello", false, "")
	assert.Nil(t, res)
	assert.Equal(t, KindTransport, KindOf(err))

	abandoned, err := env.ledger.ListAbandoned()
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "upload", abandoned[0].Stage)
}

func TestUpload_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Upload(ctx, &UploadOpts{Contents: []byte("x")})
	assert.ErrorIs(t, err, ErrEmptyIdentifier)

	noSigner, err := New(Config{Storage: env.storage, Chain: env.chain})
	require.NoError(t, err)
	_, err = noSigner.UploadText(ctx, "x", false, "")
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, KindPrecondition, KindOf(err))

	noCrypto, err := New(Config{Storage: env.storage, Chain: env.chain, Signer: env.signer})
	require.NoError(t, err)
	_, err = noCrypto.UploadText(ctx, "x", true, "")
	assert.ErrorIs(t, err, ErrNoEncryption)

	assert.Empty(t, env.chain.Receipts())
}

func TestUpload_Canceled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := env.engine.UploadText(ctx, "x", false, "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestUpload_AccessCheckedOncePerAddress(t *testing.T) {
	var calls atomic.Int32
	allow := access.CheckerFunc(func(_ context.Context, addr string) (bool, error) {
		calls.Add(1)
		return addr != "", nil
	})
	env := newTestEnv(t, func(_ *testEnv, cfg *Config) { cfg.Access = allow })
	ctx := context.Background()

	_, err := env.engine.UploadText(ctx, "one", false, "")
	require.NoError(t, err)
	_, err = env.engine.UploadText(ctx, "two", false, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpload_AccessDenied(t *testing.T) {
	env := newTestEnv(t, func(_ *testEnv, cfg *Config) { cfg.Access = access.NewAllowList("0xsomeoneelse") })

	_, err := env.engine.UploadText(context.Background(), "x", false, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, env.chain.Receipts())

	failing := access.CheckerFunc(func(context.Context, string) (bool, error) {
		return false, access.ErrCheckFailed
	})
	env = newTestEnv(t, func(_ *testEnv, cfg *Config) { cfg.Access = failing })
	_, err = env.engine.UploadText(context.Background(), "x", false, "")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestUpload_BusyGuard(t *testing.T) {
	env := newTestEnv(t)
	env.engine.busy.Store(true)

	_, err := env.engine.UploadText(context.Background(), "x", false, "")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = env.engine.Retrieve(context.Background(), &RetrieveOpts{BlobID: "bafkreigh2akiscaild"})
	assert.ErrorIs(t, err, ErrBusy)

	env.engine.busy.Store(false)
	_, err = env.engine.UploadText(context.Background(), "x", false, "")
	assert.NoError(t, err)
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("# title"), 0600))

	res, err := env.engine.UploadFile(context.Background(), path, 4)
	require.NoError(t, err)
	assert.Equal(t, "readme.md", res.Identifier)

	got, err := env.engine.Retrieve(context.Background(), &RetrieveOpts{BlobID: res.BlobID})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got.ContentType)
	assert.Equal(t, "# title", got.Text)

	_, err = env.engine.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing"), 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpload_ChainUnreachable(t *testing.T) {
	env := newTestEnv(t)
	svc := &chain.MockService{
		ExecuteTransactionFn: func(context.Context, []byte, *identity.Signature) (*chain.Receipt, error) {
			return nil, chain.ErrConnectionFailed
		},
	}
	engine, err := New(Config{Storage: env.storage, Chain: svc, Signer: env.signer, Ledger: env.ledger})
	require.NoError(t, err)

	res, err := engine.UploadText(context.Background(), "hello", false, "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, chain.ErrConnectionFailed)

	// Nothing was registered, so nothing is abandoned.
	abandoned, err := env.ledger.ListAbandoned()
	require.NoError(t, err)
	assert.Empty(t, abandoned)
}
