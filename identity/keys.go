// Package identity provides the signing identities used to authorize chain
// transactions and key-server sessions.
//
// Addresses follow the Sui convention: 0x || hex(BLAKE2b-256(flag || pubkey)),
// where flag is the signature scheme byte.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/blake2b"
)

// Scheme is the one-byte signature scheme flag.
type Scheme byte

const (
	SchemeEd25519   Scheme = 0x00
	SchemeSecp256k1 Scheme = 0x01
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("scheme(0x%02x)", byte(s))
	}
}

// Signer is a wallet identity able to authorize transactions and personal
// messages. Implementations must be safe for concurrent use.
type Signer interface {
	Address() string
	PublicKey() []byte
	Scheme() Scheme
	SignTransaction(txBytes []byte) (*Signature, error)
	SignPersonalMessage(msg []byte) (*Signature, error)
}

// AddressFromPublicKey derives the account address of a public key.
func AddressFromPublicKey(scheme Scheme, pub []byte) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, byte(scheme))
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// Ed25519
// ---------------------------------------------------------------------------

// Ed25519Keypair signs with an Ed25519 key.
type Ed25519Keypair struct {
	priv ed25519.PrivateKey
	addr string
}

// Compile-time interface check.
var _ Signer = (*Ed25519Keypair)(nil)

// NewEd25519Keypair generates a random Ed25519 identity.
func NewEd25519Keypair() (*Ed25519Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: generate seed: %w", err)
	}
	return Ed25519FromSeed(seed)
}

// Ed25519FromSeed builds an identity from a 32-byte seed.
func Ed25519FromSeed(seed []byte) (*Ed25519Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d",
			ErrInvalidPrivateKey, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Keypair{priv: priv, addr: AddressFromPublicKey(SchemeEd25519, pub)}, nil
}

func (k *Ed25519Keypair) Address() string { return k.addr }
func (k *Ed25519Keypair) Scheme() Scheme { return SchemeEd25519 }
func (k *Ed25519Keypair) PublicKey() []byte { return append([]byte(nil), k.priv.Public().(ed25519.PublicKey)...) }

// Seed returns the 32-byte private seed.
func (k *Ed25519Keypair) Seed() []byte { return k.priv.Seed() }

func (k *Ed25519Keypair) SignTransaction(txBytes []byte) (*Signature, error) {
	return k.sign(intentDigest(IntentTransaction, txBytes))
}

func (k *Ed25519Keypair) SignPersonalMessage(msg []byte) (*Signature, error) {
	return k.sign(intentDigest(IntentPersonalMessage, bcsBytes(msg)))
}

func (k *Ed25519Keypair) sign(digest []byte) (*Signature, error) {
	return &Signature{
		Scheme:    SchemeEd25519,
		Sig:       ed25519.Sign(k.priv, digest),
		PublicKey: k.PublicKey(),
	}, nil
}

// ---------------------------------------------------------------------------
// Secp256k1
// ---------------------------------------------------------------------------

// Secp256k1Keypair signs with a secp256k1 key (ECDSA over SHA256 of the
// intent digest).
type Secp256k1Keypair struct {
	priv *ec.PrivateKey
	addr string
}

// Compile-time interface check.
var _ Signer = (*Secp256k1Keypair)(nil)

// NewSecp256k1Keypair generates a random secp256k1 identity.
func NewSecp256k1Keypair() (*Secp256k1Keypair, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return newSecp256k1(priv), nil
}

// Secp256k1FromBytes builds an identity from a 32-byte scalar.
func Secp256k1FromBytes(b []byte) (*Secp256k1Keypair, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: secp256k1 key must be 32 bytes, got %d", ErrInvalidPrivateKey, len(b))
	}
	priv, _ := ec.PrivateKeyFromBytes(b)
	if priv == nil {
		return nil, ErrInvalidPrivateKey
	}
	return newSecp256k1(priv), nil
}

func newSecp256k1(priv *ec.PrivateKey) *Secp256k1Keypair {
	return &Secp256k1Keypair{
		priv: priv,
		addr: AddressFromPublicKey(SchemeSecp256k1, priv.PubKey().Compressed()),
	}
}

func (k *Secp256k1Keypair) Address() string { return k.addr }
func (k *Secp256k1Keypair) Scheme() Scheme { return SchemeSecp256k1 }
func (k *Secp256k1Keypair) PublicKey() []byte { return k.priv.PubKey().Compressed() }

// PrivateKey exposes the underlying key, e.g. for ECDH.
func (k *Secp256k1Keypair) PrivateKey() *ec.PrivateKey { return k.priv }

func (k *Secp256k1Keypair) SignTransaction(txBytes []byte) (*Signature, error) {
	return k.sign(intentDigest(IntentTransaction, txBytes))
}

func (k *Secp256k1Keypair) SignPersonalMessage(msg []byte) (*Signature, error) {
	return k.sign(intentDigest(IntentPersonalMessage, bcsBytes(msg)))
}

func (k *Secp256k1Keypair) sign(digest []byte) (*Signature, error) {
	hash := sha256.Sum256(digest)
	sig, err := k.priv.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("identity: secp256k1 sign: %w", err)
	}
	compact := make([]byte, 64)
	sig.R.FillBytes(compact[:32])
	sig.S.FillBytes(compact[32:])
	return &Signature{Scheme: SchemeSecp256k1, Sig: compact, PublicKey: k.PublicKey()}, nil
}
