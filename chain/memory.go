package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitfsorg/sealvault-go/identity"
)

// MemoryChain is an in-process chain. It verifies signatures, enforces the
// register-before-certify order and checkpoints a transaction the first time
// someone waits for it. It backs local development and tests.
type MemoryChain struct {
	// Reject, when set, is consulted before executing each transaction; a
	// non-nil error refuses it.
	Reject func(tx *Transaction) error

	// FinalityErr, when set, is returned by WaitForTransaction for every digest.
	FinalityErr error

	mu         sync.Mutex
	receipts   map[string]*Receipt
	order      []string
	certified  map[string]string // blob id -> certify digest
	checkpoint uint64
}

// Compile-time interface check.
var _ Service = (*MemoryChain)(nil)

// NewMemoryChain returns an empty chain.
func NewMemoryChain() *MemoryChain {
	return &MemoryChain{
		receipts:  make(map[string]*Receipt),
		certified: make(map[string]string),
	}
}

// ExecuteTransaction verifies and executes a signed transaction.
func (c *MemoryChain) ExecuteTransaction(ctx context.Context, txBytes []byte, sig *identity.Signature) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := ParseTransaction(txBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxRejected, err)
	}
	if err := identity.VerifyTransaction(txBytes, sig, tx.Sender); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTxRejected, err)
	}
	if c.Reject != nil {
		if err := c.Reject(tx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTxRejected, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	digest := Digest(txBytes)
	if _, dup := c.receipts[digest]; dup {
		return nil, fmt.Errorf("%w: duplicate transaction %s", ErrTxRejected, digest)
	}

	receipt := &Receipt{
		Digest:      digest,
		Status:      StatusSuccess,
		Transaction: tx,
		RecordedAt:  time.Now(),
	}
	if abort := c.execute(tx, digest); abort != "" {
		receipt.Status = StatusFailure
		receipt.Error = abort
	}
	c.receipts[digest] = receipt
	c.order = append(c.order, digest)

	out := *receipt
	return &out, nil
}

// execute applies tx and returns an abort message on failure. c.mu is held.
func (c *MemoryChain) execute(tx *Transaction, digest string) string {
	switch tx.Kind {
	case KindRegisterBlob:
		if tx.Arg(ArgBlobID) == "" {
			return "register: missing blob id"
		}
		if epochs, err := tx.ArgUint(ArgEpochs); err != nil || epochs == 0 {
			return "register: invalid epochs"
		}
	case KindCertifyBlob:
		reg, ok := c.receipts[tx.Arg(ArgRegistration)]
		switch {
		case !ok || reg.Transaction.Kind != KindRegisterBlob || !reg.Succeeded():
			return "certify: unknown registration"
		case !reg.Finalized:
			return "certify: registration not finalized"
		case reg.Transaction.Arg(ArgBlobID) != tx.Arg(ArgBlobID):
			return "certify: blob id does not match registration"
		}
		c.certified[tx.Arg(ArgBlobID)] = digest
	case KindSealApprove:
		if tx.Arg(ArgID) == "" {
			return "seal_approve: missing id"
		}
	default:
		return fmt.Sprintf("unknown transaction kind %d", tx.Kind)
	}
	return ""
}

// GetTransaction returns a copy of the receipt for digest.
func (c *MemoryChain) GetTransaction(ctx context.Context, digest string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[digest]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, digest)
	}
	out := *r
	return &out, nil
}

// WaitForTransaction checkpoints digest and returns its receipt.
func (c *MemoryChain) WaitForTransaction(ctx context.Context, digest string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFinalityTimeout, digest, err)
	}
	if c.FinalityErr != nil {
		return nil, c.FinalityErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[digest]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, digest)
	}
	if !r.Finalized {
		c.checkpoint++
		r.Checkpoint = c.checkpoint
		r.Finalized = true
	}
	out := *r
	if !out.Succeeded() {
		return &out, fmt.Errorf("%w: %s: %s", ErrTxFailed, digest, out.Error)
	}
	return &out, nil
}

// Receipts returns all receipts in execution order.
func (c *MemoryChain) Receipts() []*Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Receipt, 0, len(c.order))
	for _, d := range c.order {
		r := *c.receipts[d]
		out = append(out, &r)
	}
	return out
}

// IsCertified reports whether blobID has a successful certify transaction.
func (c *MemoryChain) IsCertified(blobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.certified[blobID]
	return ok
}
