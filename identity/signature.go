package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/blake2b"
)

// Intent scopes a signature to one kind of message so a transaction
// signature can never be replayed as a personal message signature.
type Intent [3]byte

var (
	IntentTransaction     = Intent{0, 0, 0}
	IntentPersonalMessage = Intent{3, 0, 0}
)

// intentDigest returns BLAKE2b-256(intent || msg).
func intentDigest(intent Intent, msg []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(intent[:])
	h.Write(msg)
	return h.Sum(nil)
}

// bcsBytes encodes msg as a length-prefixed byte vector (ULEB128 length).
func bcsBytes(msg []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(msg)))
	out := make([]byte, 0, n+len(msg))
	out = append(out, tmp[:n]...)
	return append(out, msg...)
}

// Signature is a scheme-tagged signature carrying its public key.
type Signature struct {
	Scheme    Scheme
	Sig       []byte
	PublicKey []byte
}

// Serialize returns base64(flag || sig || pubkey).
func (s *Signature) Serialize() string {
	buf := make([]byte, 0, 1+len(s.Sig)+len(s.PublicKey))
	buf = append(buf, byte(s.Scheme))
	buf = append(buf, s.Sig...)
	buf = append(buf, s.PublicKey...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ParseSignature decodes the output of Serialize.
func ParseSignature(serialized string) (*Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) < 1 {
		return nil, ErrInvalidSignature
	}
	scheme := Scheme(raw[0])
	var pubLen int
	switch scheme {
	case SchemeEd25519:
		pubLen = ed25519.PublicKeySize
	case SchemeSecp256k1:
		pubLen = 33
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedScheme, raw[0])
	}
	if len(raw) != 1+64+pubLen {
		return nil, fmt.Errorf("%w: %s signature has %d bytes", ErrInvalidSignature, scheme, len(raw))
	}
	return &Signature{
		Scheme:    scheme,
		Sig:       append([]byte(nil), raw[1:65]...),
		PublicKey: append([]byte(nil), raw[65:]...),
	}, nil
}

// Address returns the address of the embedded public key.
func (s *Signature) Address() string {
	return AddressFromPublicKey(s.Scheme, s.PublicKey)
}

// VerifyTransaction checks that sig signs txBytes and belongs to address.
func VerifyTransaction(txBytes []byte, sig *Signature, address string) error {
	return verify(intentDigest(IntentTransaction, txBytes), sig, address)
}

// VerifyPersonalMessage checks that sig signs msg and belongs to address.
func VerifyPersonalMessage(msg []byte, sig *Signature, address string) error {
	return verify(intentDigest(IntentPersonalMessage, bcsBytes(msg)), sig, address)
}

func verify(digest []byte, sig *Signature, address string) error {
	if sig == nil {
		return ErrInvalidSignature
	}
	if address != "" && sig.Address() != address {
		return fmt.Errorf("%w: %s", ErrAddressMismatch, address)
	}
	if len(sig.Sig) != 64 {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig.Sig))
	}

	switch sig.Scheme {
	case SchemeEd25519:
		if len(sig.PublicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 public key length %d", ErrInvalidSignature, len(sig.PublicKey))
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), digest, sig.Sig) {
			return ErrSignatureMismatch
		}
		return nil
	case SchemeSecp256k1:
		pub, err := ec.PublicKeyFromBytes(sig.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		esig := &ec.Signature{
			R: new(big.Int).SetBytes(sig.Sig[:32]),
			S: new(big.Int).SetBytes(sig.Sig[32:]),
		}
		hash := sha256.Sum256(digest)
		if !esig.Verify(hash[:], pub) {
			return ErrSignatureMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, sig.Scheme)
	}
}
