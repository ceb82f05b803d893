package walrus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/blobfile"
)

func testQuilt(t *testing.T, files []*blobfile.File) (string, []byte) {
	t.Helper()
	quilt, err := blobfile.EncodeQuilt(files)
	require.NoError(t, err)
	id, err := blobfile.ComputeBlobID(quilt)
	require.NoError(t, err)
	return id, quilt
}

func TestCachePutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir)
	require.NoError(t, err)
	id, quilt := testQuilt(t, testFiles())

	_, err = c.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := c.Has(id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(id, quilt))
	got, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, quilt, got)
	assert.FileExists(t, filepath.Join(dir, id[len(id)-2:], id))

	ids, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.NoError(t, c.Delete(id))
	assert.ErrorIs(t, c.Delete(id), ErrNotFound)
}

func TestCacheRejectsMismatchedContent(t *testing.T) {
	c, err := NewCache(t.TempDir())
	require.NoError(t, err)
	id, quilt := testQuilt(t, testFiles())

	err = c.Put(id, append(quilt, 0))
	assert.ErrorIs(t, err, blobfile.ErrBlobIDMismatch)

	// A tampered file on disk reads as a miss.
	require.NoError(t, c.Put(id, quilt))
	require.NoError(t, os.WriteFile(c.path(id), []byte("junk"), 0600))
	_, err = c.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheInvalidKeys(t *testing.T) {
	_, err := NewCache("")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)

	c, err := NewCache(t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"", "a", "../etc", "a/b"} {
		_, err := c.Get(id)
		assert.ErrorIs(t, err, ErrIOFailure, id)
	}
}
