package chain

import (
	"context"
	"time"

	"github.com/bitfsorg/sealvault-go/identity"
)

// Status is the execution outcome of a transaction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Receipt describes an executed transaction.
type Receipt struct {
	Digest      string       `json:"digest"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Checkpoint  uint64       `json:"checkpoint,omitempty"`
	Finalized   bool         `json:"finalized"`
	Transaction *Transaction `json:"-"`
	RecordedAt  time.Time    `json:"recorded_at"`
}

// Succeeded reports whether the transaction executed successfully.
func (r *Receipt) Succeeded() bool { return r != nil && r.Status == StatusSuccess }

// Service abstracts the chain operations the blob lifecycle depends on.
// Implementations include RPCClient (JSON-RPC full node), MemoryChain
// (in-process), and MockService (tests).
type Service interface {
	// ExecuteTransaction submits signed transaction bytes and returns once
	// the node has executed them. Finality is not implied.
	ExecuteTransaction(ctx context.Context, txBytes []byte, sig *identity.Signature) (*Receipt, error)

	// GetTransaction returns the current receipt of digest, or ErrTxNotFound.
	GetTransaction(ctx context.Context, digest string) (*Receipt, error)

	// WaitForTransaction blocks until digest is included in a checkpoint.
	WaitForTransaction(ctx context.Context, digest string) (*Receipt, error)
}
