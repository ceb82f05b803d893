package walrus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bitfsorg/sealvault-go/blobfile"
)

// Cache keeps reconstructed quilts on the local filesystem, keyed by blob id.
// Files live at {baseDir}/{id[len-2:]}/{id}. CIDs share a long common
// prefix, so the shard uses the trailing characters.
type Cache struct {
	baseDir string
	mu      sync.RWMutex
}

// NewCache creates the cache directory if needed.
func NewCache(baseDir string) (*Cache, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &Cache{baseDir: baseDir}, nil
}

func (c *Cache) shardDir(blobID string) string {
	return filepath.Join(c.baseDir, blobID[len(blobID)-2:])
}

func (c *Cache) path(blobID string) string {
	return filepath.Join(c.shardDir(blobID), blobID)
}

func validCacheKey(blobID string) error {
	if len(blobID) < 2 || strings.ContainsAny(blobID, `/\.`) {
		return fmt.Errorf("%w: bad blob id %q", ErrIOFailure, blobID)
	}
	return nil
}

// Put stores the quilt of blobID. The quilt must hash to blobID.
func (c *Cache) Put(blobID string, quilt []byte) error {
	if err := validCacheKey(blobID); err != nil {
		return err
	}
	if err := blobfile.VerifyBlobID(blobID, quilt); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.shardDir(blobID), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(c.path(blobID), quilt, 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Get returns the cached quilt of blobID. Entries that no longer match
// their id are treated as missing.
func (c *Cache) Get(blobID string) ([]byte, error) {
	if err := validCacheKey(blobID); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(blobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if blobfile.VerifyBlobID(blobID, data) != nil {
		return nil, ErrNotFound
	}
	return data, nil
}

// Has reports whether blobID is cached.
func (c *Cache) Has(blobID string) (bool, error) {
	if err := validCacheKey(blobID); err != nil {
		return false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := os.Stat(c.path(blobID)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// Delete removes blobID from the cache.
func (c *Cache) Delete(blobID string) error {
	if err := validCacheKey(blobID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path(blobID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// List returns the cached blob ids.
func (c *Cache) List() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(c.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), entry.Name()) {
				continue
			}
			ids = append(ids, f.Name())
		}
	}
	return ids, nil
}
