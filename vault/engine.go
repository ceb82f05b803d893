// Package vault runs the user-facing workflows: publishing content to blob
// storage with optional threshold encryption, reading it back, and keeping
// password records.
//
// An Engine runs one workflow at a time. A call made while another is in
// progress fails with ErrBusy instead of interleaving with it.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/access"
	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/logging"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/walrus"
)

// DefaultEpochs is used when neither the caller nor the config sets one.
const DefaultEpochs = 3

// StorageClient is the blob storage protocol the engine drives.
type StorageClient interface {
	Encode(ctx context.Context, files []*blobfile.File) (*walrus.Flow, error)
	Register(flow *walrus.Flow, opts walrus.RegisterOptions) (*chain.Transaction, error)
	Upload(ctx context.Context, flow *walrus.Flow) error
	Certify(flow *walrus.Flow) (*chain.Transaction, error)
	GetBlob(ctx context.Context, blobID string) (*walrus.Blob, error)
}

var _ StorageClient = (*walrus.Client)(nil)

// Crypto encrypts and decrypts content. seal.Provider implements it.
type Crypto interface {
	Encrypt(ctx context.Context, plaintext []byte, password string) (*seal.Envelope, error)
	Decrypt(ctx context.Context, ciphertext []byte, desc seal.Descriptor) (*seal.DecryptResult, error)
}

var _ Crypto = (*seal.Provider)(nil)

// Config wires an Engine to its collaborators. Storage and Chain are
// required; the rest are optional.
type Config struct {
	Storage StorageClient
	Chain   chain.Service
	Signer  identity.Signer
	Crypto  Crypto
	Access  access.Checker
	Ledger  *chain.Ledger
	Logger  *logrus.Logger

	Epochs    int
	Deletable bool
}

// Engine runs upload and retrieval workflows.
type Engine struct {
	storage StorageClient
	chain   chain.Service
	signer  identity.Signer
	crypto  Crypto
	access  access.Checker
	ledger  *chain.Ledger
	log     *logrus.Logger

	epochs    int
	deletable bool

	busy atomic.Bool

	mu         sync.Mutex
	authorized map[string]bool
}

// New returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Storage == nil || cfg.Chain == nil {
		return nil, fmt.Errorf("%w: storage client and chain service are required", ErrPrecondition)
	}
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	return &Engine{
		storage:    cfg.Storage,
		chain:      cfg.Chain,
		signer:     cfg.Signer,
		crypto:     cfg.Crypto,
		access:     cfg.Access,
		ledger:     cfg.Ledger,
		log:        logging.OrDiscard(cfg.Logger),
		epochs:     epochs,
		deletable:  cfg.Deletable,
		authorized: make(map[string]bool),
	}, nil
}

// Address returns the signer's address, or "" without a signer.
func (e *Engine) Address() string {
	if e.signer == nil {
		return ""
	}
	return e.signer.Address()
}

// acquire takes the busy flag. Callers must release it.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (e *Engine) release() { e.busy.Store(false) }

// Busy reports whether a workflow is running.
func (e *Engine) Busy() bool { return e.busy.Load() }

// authorize checks the signer against the access service. A positive
// answer is remembered for the life of the engine.
func (e *Engine) authorize(ctx context.Context) error {
	if e.signer == nil {
		return ErrNoIdentity
	}
	if e.access == nil {
		return nil
	}
	addr := e.signer.Address()

	e.mu.Lock()
	ok := e.authorized[addr]
	e.mu.Unlock()
	if ok {
		return nil
	}

	ok, err := e.access.Check(ctx, addr)
	if err != nil {
		return classify(ctx, err)
	}
	if !ok {
		e.log.WithField("address", addr).Warn("vault: address not authorized")
		return fmt.Errorf("%w: %s", ErrNotAuthorized, addr)
	}

	e.mu.Lock()
	e.authorized[addr] = true
	e.mu.Unlock()
	return nil
}

// record persists a receipt when a ledger is configured. Ledger failures
// are logged and never fail the workflow.
func (e *Engine) record(r *chain.Receipt) {
	if e.ledger == nil || r == nil {
		return
	}
	if err := e.ledger.PutReceipt(r); err != nil {
		e.log.WithError(err).WithField("digest", r.Digest).Warn("vault: ledger write failed")
	}
}

// abandon discards flow after a failed step and, once a registration
// exists, notes it in the ledger.
func (e *Engine) abandon(ctx context.Context, flow *walrus.Flow, stage string, cause error) error {
	err := classify(ctx, cause)
	if flow == nil {
		return err
	}
	flow.Abort(cause)

	log := e.log.WithError(cause).WithFields(logrus.Fields{"blob_id": flow.BlobID(), "stage": stage})
	reg := flow.Registration()
	if reg == nil {
		log.Warn("vault: upload aborted")
		return err
	}
	log = log.WithField("registration", reg.Digest)
	log.Warn("vault: upload aborted, registration abandoned")
	if e.ledger != nil {
		if lerr := e.ledger.MarkAbandoned(&chain.AbandonedRegistration{
			BlobID:         flow.BlobID(),
			RegisterDigest: reg.Digest,
			Stage:          stage,
			Reason:         cause.Error(),
		}); lerr != nil {
			log.WithField("ledger_error", lerr).Error("vault: could not record abandoned registration")
		}
	}
	return err
}

// canceled returns ErrCanceled when ctx is done.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
