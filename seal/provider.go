// Package seal implements threshold encryption of blob contents with
// short-lived session keys, plus the degraded fallback encoding used when
// the key-server committee cannot be reached.
//
// Decryption walks a fixed ladder over the stored credential descriptor:
//
//  1. fallback descriptors return their embedded data
//  2. the hot slot, when it holds exactly this ciphertext
//  3. minimal descriptors fail fast
//  4. session descriptors are imported and sent to the key servers
//  5. ciphertext that is fallback JSON is decoded as a last resort
package seal

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/logging"
)

// Status reports whether the provider's last encryption reached the key servers.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusWorking  Status = "working"
	StatusFallback Status = "fallback"
)

// Path names the rung of the ladder that produced a plaintext.
type Path string

const (
	PathFallback   Path = "fallback"
	PathHot        Path = "hot"
	PathImported   Path = "imported"
	PathLegacyJSON Path = "legacy-json"
)

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	PackageID     string
	Threshold     int
	TTLMinutes    int
	AllowFallback bool
	Logger        *logrus.Logger
}

// Envelope is the result of Encrypt.
type Envelope struct {
	Ciphertext  []byte
	Descriptor  Descriptor
	Status      Status
	OperationID string

	// FallbackCause is the error that forced the fallback encoding.
	FallbackCause error
}

// DecryptResult is the result of Decrypt.
type DecryptResult struct {
	Plaintext []byte
	Path      Path
}

type hotSlot struct {
	session    *SessionKey
	id         string
	ciphertext []byte
}

// Provider encrypts and decrypts on behalf of one signer. It keeps the most
// recent successful encryption in a single hot slot so it can be decrypted
// without importing the session.
type Provider struct {
	cfg    ProviderConfig
	prim   Primitive
	signer identity.Signer
	log    *logrus.Logger

	mu     sync.Mutex
	hot    *hotSlot
	status Status
}

// NewProvider returns a provider. signer may be nil, in which case Encrypt
// fails with ErrNoIdentity.
func NewProvider(cfg ProviderConfig, prim Primitive, signer identity.Signer) (*Provider, error) {
	if cfg.PackageID == "" {
		return nil, fmt.Errorf("seal: package id is required")
	}
	if cfg.Threshold < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, cfg.Threshold)
	}
	if cfg.TTLMinutes < 1 || cfg.TTLMinutes > MaxTTLMinutes {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidTTL, cfg.TTLMinutes)
	}
	if prim == nil {
		return nil, fmt.Errorf("seal: nil primitive")
	}
	return &Provider{
		cfg:    cfg,
		prim:   prim,
		signer: signer,
		log:    logging.OrDiscard(cfg.Logger),
		status: StatusUnknown,
	}, nil
}

// Status returns the outcome of the last Encrypt.
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Provider) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// newOperationID returns a random 128-bit id, hex encoded.
func newOperationID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Encrypt threshold-encrypts plaintext under a fresh operation id. When the
// session or the primitive fails and AllowFallback is set, the plaintext is
// returned in the fallback encoding with Status StatusFallback; otherwise
// the failure is ErrThresholdUnavailable. password only feeds the fallback
// encoding.
func (p *Provider) Encrypt(ctx context.Context, plaintext []byte, password string) (*Envelope, error) {
	if p.signer == nil {
		return nil, ErrNoIdentity
	}
	opID := newOperationID()
	log := p.log.WithFields(logrus.Fields{
		"package":   p.cfg.PackageID,
		"operation": opID,
	})

	session, err := NewSessionKey(ctx, p.signer, p.cfg.PackageID, p.cfg.TTLMinutes)
	var ciphertext []byte
	if err == nil {
		ciphertext, err = p.prim.Encrypt(ctx, &EncryptRequest{
			Threshold: p.cfg.Threshold,
			PackageID: p.cfg.PackageID,
			ID:        opID,
			Data:      plaintext,
		})
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !p.cfg.AllowFallback {
			return nil, fmt.Errorf("%w: %w", ErrThresholdUnavailable, err)
		}
		p.setStatus(StatusFallback)
		log.WithError(err).Warn("seal: threshold encryption failed, using fallback encoding")
		ct, ferr := fallbackCiphertext(plaintext, password)
		if ferr != nil {
			return nil, ferr
		}
		return &Envelope{
			Ciphertext:    ct,
			Descriptor:    &FallbackDescriptor{Data: bytes.Clone(plaintext)},
			Status:        StatusFallback,
			OperationID:   opID,
			FallbackCause: err,
		}, nil
	}

	p.mu.Lock()
	p.hot = &hotSlot{session: session, id: opID, ciphertext: ciphertext}
	p.status = StatusWorking
	p.mu.Unlock()

	var desc Descriptor
	exported, err := session.Export()
	if err != nil {
		log.WithError(err).Warn("seal: session export failed, storing minimal descriptor")
		desc = &MinimalDescriptor{
			Address:        session.Address(),
			PackageID:      session.PackageID(),
			ID:             opID,
			CreationTimeMs: session.created.UnixMilli(),
		}
	} else {
		desc = &SessionDescriptor{Session: exported, ID: opID}
	}

	log.WithField("bytes", len(ciphertext)).Debug("seal: encrypted")
	return &Envelope{
		Ciphertext:  ciphertext,
		Descriptor:  desc,
		Status:      StatusWorking,
		OperationID: opID,
	}, nil
}

// Decrypt recovers the plaintext of ciphertext using desc.
func (p *Provider) Decrypt(ctx context.Context, ciphertext []byte, desc Descriptor) (*DecryptResult, error) {
	if fb, ok := desc.(*FallbackDescriptor); ok {
		return &DecryptResult{Plaintext: bytes.Clone(fb.Data), Path: PathFallback}, nil
	}

	if hot := p.hotFor(ciphertext); hot != nil {
		pt, err := p.decryptWith(ctx, ciphertext, hot.session, hot.session.Address(), hot.session.PackageID(), hot.id)
		if err == nil {
			return &DecryptResult{Plaintext: pt, Path: PathHot}, nil
		}
		p.log.WithError(err).Warn("seal: hot session decryption failed")
		return p.legacy(ciphertext, err)
	}

	switch d := desc.(type) {
	case *MinimalDescriptor:
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, ErrIncompleteSession)
	case *SessionDescriptor:
		if !d.Session.Complete() {
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, ErrIncompleteSession)
		}
		pt, err := p.decryptImported(ctx, ciphertext, d)
		if err == nil {
			return &DecryptResult{Plaintext: pt, Path: PathImported}, nil
		}
		p.log.WithError(err).Warn("seal: imported session decryption failed")
		return p.legacy(ciphertext, err)
	case nil:
		return p.legacy(ciphertext, ErrInvalidDescriptor)
	default:
		return nil, fmt.Errorf("%w: %w: %T", ErrDecryptionFailed, ErrInvalidDescriptor, desc)
	}
}

// hotFor returns the hot slot if it holds exactly ciphertext.
func (p *Provider) hotFor(ciphertext []byte) *hotSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hot == nil || !bytes.Equal(p.hot.ciphertext, ciphertext) {
		return nil
	}
	return p.hot
}

func (p *Provider) decryptImported(ctx context.Context, ciphertext []byte, d *SessionDescriptor) ([]byte, error) {
	if p.signer == nil {
		return nil, ErrNoIdentity
	}
	session, err := ImportSessionKey(d.Session)
	if err != nil {
		return nil, err
	}
	id := d.ID
	if id == "" {
		if obj, err := ParseObject(ciphertext); err == nil {
			id = obj.ID
		}
	}
	return p.decryptWith(ctx, ciphertext, session, p.signer.Address(), session.PackageID(), id)
}

func (p *Provider) decryptWith(ctx context.Context, ciphertext []byte, session *SessionKey, sender, packageID, id string) ([]byte, error) {
	txBytes, err := ApprovalTransaction(sender, packageID, id)
	if err != nil {
		return nil, err
	}
	return p.prim.Decrypt(ctx, &DecryptRequest{
		Ciphertext: ciphertext,
		Session:    session,
		TxBytes:    txBytes,
	})
}

// legacy is the last rung: ciphertext that is fallback JSON still decodes.
func (p *Provider) legacy(ciphertext []byte, cause error) (*DecryptResult, error) {
	if data, ok := parseLegacyJSON(ciphertext); ok {
		return &DecryptResult{Plaintext: data, Path: PathLegacyJSON}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, cause)
}
