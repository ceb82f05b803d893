package seal

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bitfsorg/sealvault-go/identity"
)

// MaxTTLMinutes is the longest session a key server will honour.
const MaxTTLMinutes = 30

// SessionKey is a short-lived Ed25519 key that the user's wallet has
// authorized, through a signed personal message, to request decryption keys
// for one package.
type SessionKey struct {
	address   string
	packageID string
	created   time.Time
	ttl       int
	key       *identity.Ed25519Keypair
	userSig   *identity.Signature
}

// ExportedSessionKey is the serializable form of a SessionKey.
type ExportedSessionKey struct {
	Address                  string `json:"address"`
	PackageID                string `json:"packageId"`
	CreationTimeMs           int64  `json:"creationTimeMs"`
	TTLMin                   int    `json:"ttlMin"`
	SessionKey               string `json:"sessionKey"`
	PersonalMessageSignature string `json:"personalMessageSignature"`
}

// Certificate is what a key server needs to check that a session key speaks
// for a user.
type Certificate struct {
	User           string `json:"user"`
	PackageID      string `json:"package_id"`
	SessionVK      []byte `json:"session_vk"`
	CreationTimeMs int64  `json:"creation_time"`
	TTLMin         int    `json:"ttl_min"`
	Signature      string `json:"signature"`
}

// PersonalMessage is the text the user's wallet signs to authorize a session key.
func PersonalMessage(packageID string, ttlMin int, created time.Time, sessionVK []byte) []byte {
	return []byte(fmt.Sprintf("Accessing keys of package %s for %d mins from %s, session key %s",
		packageID, ttlMin, created.UTC().Format(time.RFC3339), base64.StdEncoding.EncodeToString(sessionVK)))
}

// NewSessionKey creates a session key for packageID and has signer authorize it.
func NewSessionKey(ctx context.Context, signer identity.Signer, packageID string, ttlMin int) (*SessionKey, error) {
	if signer == nil {
		return nil, ErrNoIdentity
	}
	if packageID == "" {
		return nil, fmt.Errorf("%w: empty package id", ErrInvalidSession)
	}
	if ttlMin < 1 || ttlMin > MaxTTLMinutes {
		return nil, fmt.Errorf("%w: %d minutes (max %d)", ErrInvalidTTL, ttlMin, MaxTTLMinutes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := identity.NewEd25519Keypair()
	if err != nil {
		return nil, err
	}
	created := time.UnixMilli(time.Now().UnixMilli())
	sig, err := signer.SignPersonalMessage(PersonalMessage(packageID, ttlMin, created, key.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("seal: sign session message: %w", err)
	}
	return &SessionKey{
		address:   signer.Address(),
		packageID: packageID,
		created:   created,
		ttl:       ttlMin,
		key:       key,
		userSig:   sig,
	}, nil
}

func (s *SessionKey) Address() string { return s.address }
func (s *SessionKey) PackageID() string { return s.packageID }

// ExpiresAt returns the instant after which key servers refuse the session.
func (s *SessionKey) ExpiresAt() time.Time {
	return s.created.Add(time.Duration(s.ttl) * time.Minute)
}

// IsExpired reports whether the session has expired at now.
func (s *SessionKey) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Certificate returns the user's authorization of this session key.
func (s *SessionKey) Certificate() *Certificate {
	return &Certificate{
		User:           s.address,
		PackageID:      s.packageID,
		SessionVK:      s.key.PublicKey(),
		CreationTimeMs: s.created.UnixMilli(),
		TTLMin:         s.ttl,
		Signature:      s.userSig.Serialize(),
	}
}

// SignRequest signs a key request with the session key.
func (s *SessionKey) SignRequest(txBytes, ephemeralPub, responsePub []byte) (string, error) {
	sig, err := s.key.SignPersonalMessage(requestMessage(txBytes, ephemeralPub, responsePub))
	if err != nil {
		return "", fmt.Errorf("seal: sign request: %w", err)
	}
	return sig.Serialize(), nil
}

// Export returns the serializable form of the session.
func (s *SessionKey) Export() (*ExportedSessionKey, error) {
	encoded, err := identity.EncodePrivateKey(s.key)
	if err != nil {
		return nil, fmt.Errorf("seal: export session key: %w", err)
	}
	return &ExportedSessionKey{
		Address:                  s.address,
		PackageID:                s.packageID,
		CreationTimeMs:           s.created.UnixMilli(),
		TTLMin:                   s.ttl,
		SessionKey:               encoded,
		PersonalMessageSignature: s.userSig.Serialize(),
	}, nil
}

// Complete reports whether e carries every field ImportSessionKey needs.
func (e *ExportedSessionKey) Complete() bool {
	return e != nil && e.Address != "" && e.PackageID != "" && e.SessionKey != "" &&
		e.PersonalMessageSignature != "" && e.CreationTimeMs > 0 && e.TTLMin > 0
}

// ImportSessionKey rebuilds a session from its exported form and checks that
// the user's signature still covers it.
func ImportSessionKey(e *ExportedSessionKey) (*SessionKey, error) {
	if !e.Complete() {
		return nil, ErrIncompleteSession
	}
	signer, err := identity.ParsePrivateKey(e.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	key, ok := signer.(*identity.Ed25519Keypair)
	if !ok {
		return nil, fmt.Errorf("%w: session key must be ed25519", ErrInvalidSession)
	}
	sig, err := identity.ParseSignature(e.PersonalMessageSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	s := &SessionKey{
		address:   e.Address,
		packageID: e.PackageID,
		created:   time.UnixMilli(e.CreationTimeMs),
		ttl:       e.TTLMin,
		key:       key,
		userSig:   sig,
	}
	if err := s.Certificate().Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return s, nil
}

// Verify checks that the certificate was signed by its user.
func (c *Certificate) Verify() error {
	if c.User == "" || c.PackageID == "" {
		return fmt.Errorf("%w: missing user or package", ErrInvalidCertificate)
	}
	if c.TTLMin < 1 || c.TTLMin > MaxTTLMinutes {
		return fmt.Errorf("%w: ttl %d", ErrInvalidCertificate, c.TTLMin)
	}
	sig, err := identity.ParseSignature(c.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	msg := PersonalMessage(c.PackageID, c.TTLMin, time.UnixMilli(c.CreationTimeMs), c.SessionVK)
	if err := identity.VerifyPersonalMessage(msg, sig, c.User); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return nil
}

// ExpiresAt returns the end of the certified session.
func (c *Certificate) ExpiresAt() time.Time {
	return time.UnixMilli(c.CreationTimeMs).Add(time.Duration(c.TTLMin) * time.Minute)
}

// requestMessage binds a key request to its approval transaction and keys.
func requestMessage(txBytes, ephemeralPub, responsePub []byte) []byte {
	h := sha256.Sum256(txBytes)
	msg := make([]byte, 0, len(h)+len(ephemeralPub)+len(responsePub))
	msg = append(msg, h[:]...)
	msg = append(msg, ephemeralPub...)
	return append(msg, responsePub...)
}
