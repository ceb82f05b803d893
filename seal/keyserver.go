package seal

import (
	"context"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
)

// FetchKeyRequest asks a key server for its part of the key bound to
// (PackageID, ID). The server answers with ECDH(sk, EphemeralPub).x,
// encrypted to ResponsePub.
type FetchKeyRequest struct {
	PackageID        string       `json:"package_id"`
	ID               string       `json:"id"`
	EphemeralPub     []byte       `json:"ephemeral_pub"`
	ResponsePub      []byte       `json:"response_pub"`
	Certificate      *Certificate `json:"certificate"`
	RequestSignature string       `json:"request_signature"`
	TxBytes          []byte       `json:"tx_bytes"`
}

// KeyServer is one member of the threshold committee.
type KeyServer interface {
	// ID names the server inside encrypted objects.
	ID() string

	// PublicKey returns the server's master public key.
	PublicKey(ctx context.Context) (*ec.PublicKey, error)

	// FetchKey returns the wrapped share secret for an authorized request.
	FetchKey(ctx context.Context, req *FetchKeyRequest) ([]byte, error)
}

// Policy decides whether address may decrypt (packageID, id). A nil Policy
// allows every holder of a valid session.
type Policy func(ctx context.Context, address, packageID, id string) error

// LocalKeyServer is an in-process key server holding a secp256k1 master key.
type LocalKeyServer struct {
	id     string
	priv   *ec.PrivateKey
	policy Policy
	now    func() time.Time
}

// Compile-time interface check.
var _ KeyServer = (*LocalKeyServer)(nil)

// NewLocalKeyServer wraps an existing master key.
func NewLocalKeyServer(id string, priv *ec.PrivateKey, policy Policy) *LocalKeyServer {
	return &LocalKeyServer{id: id, priv: priv, policy: policy, now: time.Now}
}

// GenerateLocalKeyServer creates a key server with a fresh master key.
func GenerateLocalKeyServer(id string, policy Policy) (*LocalKeyServer, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("seal: generate master key: %w", err)
	}
	return NewLocalKeyServer(id, priv, policy), nil
}

func (s *LocalKeyServer) ID() string { return s.id }

func (s *LocalKeyServer) PublicKey(context.Context) (*ec.PublicKey, error) {
	return s.priv.PubKey(), nil
}

// MasterKey returns the server's private key, for persisting it.
func (s *LocalKeyServer) MasterKey() *ec.PrivateKey { return s.priv }

// FetchKey checks the request and returns the wrapped share secret.
func (s *LocalKeyServer) FetchKey(ctx context.Context, req *FetchKeyRequest) ([]byte, error) {
	if req == nil || req.Certificate == nil {
		return nil, fmt.Errorf("%w: missing certificate", ErrInvalidRequest)
	}
	cert := req.Certificate
	if err := cert.Verify(); err != nil {
		return nil, err
	}
	if !s.now().Before(cert.ExpiresAt()) {
		return nil, ErrSessionExpired
	}
	if err := verifyRequest(req); err != nil {
		return nil, err
	}
	if s.policy != nil {
		if err := s.policy(ctx, cert.User, req.PackageID, req.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	eph, err := ec.PublicKeyFromBytes(req.EphemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeral key: %w", ErrInvalidRequest, err)
	}
	respPub, err := ec.PublicKeyFromBytes(req.ResponsePub)
	if err != nil {
		return nil, fmt.Errorf("%w: response key: %w", ErrInvalidRequest, err)
	}
	shared, err := ecdh(s.priv, eph)
	if err != nil {
		return nil, err
	}
	respShared, err := ecdh(s.priv, respPub)
	if err != nil {
		return nil, err
	}
	respKey, err := deriveKey(respShared, Identity(req.PackageID, req.ID), ResponseKeyInfo)
	if err != nil {
		return nil, err
	}
	return aesGCMEncrypt(shared, respKey)
}

// verifyRequest checks the session signature and the approval transaction.
func verifyRequest(req *FetchKeyRequest) error {
	cert := req.Certificate
	sig, err := identity.ParseSignature(req.RequestSignature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	sessionAddr := identity.AddressFromPublicKey(identity.SchemeEd25519, cert.SessionVK)
	msg := requestMessage(req.TxBytes, req.EphemeralPub, req.ResponsePub)
	if err := identity.VerifyPersonalMessage(msg, sig, sessionAddr); err != nil {
		return fmt.Errorf("%w: session signature: %w", ErrInvalidRequest, err)
	}

	tx, err := chain.ParseTransaction(req.TxBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	switch {
	case tx.Kind != chain.KindSealApprove:
		return fmt.Errorf("%w: transaction is %s, want %s", ErrInvalidRequest, tx.Kind, chain.KindSealApprove)
	case tx.Sender != cert.User:
		return fmt.Errorf("%w: transaction sender %s is not the session user", ErrInvalidRequest, tx.Sender)
	case cert.PackageID != req.PackageID || tx.Arg(chain.ArgPackageID) != req.PackageID:
		return fmt.Errorf("%w: package mismatch", ErrInvalidRequest)
	case tx.Arg(chain.ArgID) != req.ID:
		return fmt.Errorf("%w: id mismatch", ErrInvalidRequest)
	}
	return nil
}

// ApprovalTransaction builds the seal_approve transaction bytes a key
// request must carry.
func ApprovalTransaction(sender, packageID, id string) ([]byte, error) {
	tx := chain.NewTransaction(chain.KindSealApprove, sender, map[string]string{
		chain.ArgPackageID: packageID,
		chain.ArgID:        id,
	})
	return tx.Bytes()
}
