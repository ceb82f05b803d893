package walrus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitfsorg/sealvault-go/blobfile"
)

// Confirmation is a node's acknowledgement that it stored a sliver.
type Confirmation struct {
	NodeID   string    `json:"node_id"`
	BlobID   string    `json:"blob_id"`
	Index    uint8     `json:"index"`
	Hash     []byte    `json:"hash"`
	StoredAt time.Time `json:"stored_at"`
}

// NodeClient is a storage node.
type NodeClient interface {
	ID() string

	// StoreSliver stores s for the blob registered by the transaction
	// with the given digest.
	StoreSliver(ctx context.Context, s *blobfile.Sliver, registration string) (*Confirmation, error)

	// ReadSliver returns the sliver at index of blobID, or ErrSliverNotFound.
	ReadSliver(ctx context.Context, blobID string, index uint8) (*blobfile.Sliver, error)
}

// RegistrationCheck verifies that digest is a finalized registration of blobID.
// chain.CheckRegistration bound to a chain.Service satisfies it.
type RegistrationCheck func(ctx context.Context, digest, blobID string) error

type sliverKey struct {
	blobID string
	index  uint8
}

// MemoryNode is an in-process storage node.
type MemoryNode struct {
	id    string
	check RegistrationCheck

	mu      sync.RWMutex
	slivers map[sliverKey]*blobfile.Sliver
	down    bool
}

// Compile-time interface check.
var _ NodeClient = (*MemoryNode)(nil)

// NewMemoryNode returns an empty node. When check is non-nil, slivers of
// blobs it does not accept are refused.
func NewMemoryNode(id string, check RegistrationCheck) *MemoryNode {
	return &MemoryNode{id: id, check: check, slivers: make(map[sliverKey]*blobfile.Sliver)}
}

func (n *MemoryNode) ID() string { return n.id }

// SetDown makes the node refuse every request.
func (n *MemoryNode) SetDown(down bool) {
	n.mu.Lock()
	n.down = down
	n.mu.Unlock()
}

// Len returns the number of stored slivers.
func (n *MemoryNode) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.slivers)
}

func (n *MemoryNode) isDown() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.down
}

func (n *MemoryNode) StoreSliver(ctx context.Context, s *blobfile.Sliver, registration string) (*Confirmation, error) {
	if n.isDown() {
		return nil, fmt.Errorf("%w: node %s is down", ErrNodeRequest, n.id)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	if n.check != nil {
		if err := n.check(ctx, registration, s.BlobID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnregistered, err)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *s
	cp.Data = append([]byte(nil), s.Data...)
	n.slivers[sliverKey{s.BlobID, s.Index}] = &cp
	return &Confirmation{
		NodeID:   n.id,
		BlobID:   s.BlobID,
		Index:    s.Index,
		Hash:     append([]byte(nil), s.Hash...),
		StoredAt: time.Now(),
	}, nil
}

func (n *MemoryNode) ReadSliver(ctx context.Context, blobID string, index uint8) (*blobfile.Sliver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.isDown() {
		return nil, fmt.Errorf("%w: node %s is down", ErrNodeRequest, n.id)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.slivers[sliverKey{blobID, index}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", ErrSliverNotFound, blobID, index)
	}
	cp := *s
	cp.Data = append([]byte(nil), s.Data...)
	return &cp, nil
}

// Corrupt flips a byte of a stored sliver. Used to exercise verification.
func (n *MemoryNode) Corrupt(blobID string, index uint8) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.slivers[sliverKey{blobID, index}]
	if !ok || len(s.Data) == 0 {
		return false
	}
	s.Data[0] ^= 0xff
	return true
}
