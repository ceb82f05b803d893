package vault

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/walrus"
)

type countingStorage struct {
	*walrus.Client
	reads atomic.Int32
}

func (s *countingStorage) GetBlob(ctx context.Context, blobID string) (*walrus.Blob, error) {
	s.reads.Add(1)
	return s.Client.GetBlob(ctx, blobID)
}

func TestRetrieve_InvalidIDMakesNoRequest(t *testing.T) {
	env := newTestEnv(t)
	storage := &countingStorage{Client: env.storage}
	engine, err := New(Config{Storage: storage, Chain: env.chain, Signer: env.signer})
	require.NoError(t, err)

	for _, id := range []string{"0xABCDEF0123456789", "ab", "9afkreigh2akiscaild"} {
		_, err := engine.Retrieve(context.Background(), &RetrieveOpts{BlobID: id})
		assert.Equal(t, KindValidation, KindOf(err), id)
	}
	assert.Zero(t, storage.reads.Load())
}

func TestRetrieve_ZeroFiles(t *testing.T) {
	cache, err := walrus.NewCache(t.TempDir())
	require.NoError(t, err)
	quilt, err := blobfile.EncodeQuilt(nil)
	require.NoError(t, err)
	id, err := blobfile.ComputeBlobID(quilt)
	require.NoError(t, err)
	require.NoError(t, cache.Put(id, quilt))

	env := newTestEnv(t, withCache(cache))
	_, err = env.engine.Retrieve(context.Background(), &RetrieveOpts{BlobID: id})
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, KindNoFiles, KindOf(err))
}

func TestRetrieve_DecryptionFailureKeepsRaw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "top secret", true, "")
	require.NoError(t, err)
	_, err = env.engine.UploadText(ctx, "evicts the hot slot", true, "")
	require.NoError(t, err)

	sd, ok := res.Descriptor.(*seal.SessionDescriptor)
	require.True(t, ok)
	minimal := &seal.MinimalDescriptor{Address: env.signer.Address(), PackageID: testPackage, ID: sd.ID}

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID, Descriptor: minimal})
	require.NoError(t, err)
	assert.True(t, got.Encrypted)
	assert.True(t, got.DecryptionFailed)
	assert.Equal(t, DecryptionFailed, got.Text)
	assert.ErrorIs(t, got.DecryptErr, ErrDecryption)
	assert.NotEmpty(t, got.Raw)
	assert.Nil(t, got.Plaintext)
	assert.Equal(t, got.Raw, got.Content())
}

func TestRetrieve_EncryptedWithoutDescriptor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "top secret", true, "")
	require.NoError(t, err)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID})
	require.NoError(t, err)
	assert.True(t, got.Encrypted)
	assert.False(t, got.DecryptionFailed)
	assert.Empty(t, got.DecryptPath)
	assert.Equal(t, string(got.Raw), got.Text)
}

func TestRetrieve_Defaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Upload(ctx, &UploadOpts{Contents: []byte("untagged"), Identifier: "x"})
	require.NoError(t, err)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID})
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, got.ContentType)
	assert.Equal(t, "x", got.Identifier)
}

func TestRetrieve_TransportError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "hello", false, "")
	require.NoError(t, err)
	for _, n := range env.nodes {
		n.SetDown(true)
	}

	_, err = env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, walrus.ErrBlobUnavailable)
	assert.False(t, env.engine.Busy())
}

func TestRetrieve_SurvivesOneNodeLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "hello", false, "")
	require.NoError(t, err)
	env.nodes[1].SetDown(true)

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: res.BlobID})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
}

func TestRetrieve_NilOptions(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Retrieve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRetrieve_TrimsBlobID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "hello", false, "")
	require.NoError(t, err)

	padded := " " + res.BlobID + "\n"
	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: padded})
	require.NoError(t, err)
	assert.Equal(t, res.BlobID, got.BlobID)
	assert.Equal(t, "hello", got.Text)

	saved, err := env.engine.Save(ctx, padded, filepath.Join(t.TempDir(), "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, res.BlobID, saved.BlobID)
}

func TestSave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.UploadText(ctx, "saved content", false, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "saved.txt")
	saved, err := env.engine.Save(ctx, res.BlobID, path)
	require.NoError(t, err)
	assert.Equal(t, TextIdentifier, saved.Identifier)
	assert.Contains(t, saved.Message, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "saved content", string(data))

	_, err = env.engine.Save(ctx, res.BlobID, "")
	assert.ErrorIs(t, err, ErrValidation)
}
