package identity

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// PrivateKeyHRP is the bech32 prefix of exported private keys.
const PrivateKeyHRP = "suiprivkey"

// ParsePrivateKey accepts a private key in any of the formats wallets export:
//
//   - bech32 "suiprivkey1..." (flag byte || 32-byte secret)
//   - "0x"-prefixed hex; only the first 32 bytes are used (Ed25519)
//   - base64 of a 32-byte Ed25519 seed, flag || 32-byte secret, or a 64-byte
//     Ed25519 secret key
func ParsePrivateKey(value string) (Signer, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return nil, fmt.Errorf("%w: empty", ErrInvalidPrivateKey)

	case strings.HasPrefix(value, PrivateKeyHRP):
		hrp, data, err := bech32.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("%w: bech32: %w", ErrInvalidPrivateKey, err)
		}
		if hrp != PrivateKeyHRP {
			return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidPrivateKey, hrp)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("%w: bech32 payload: %w", ErrInvalidPrivateKey, err)
		}
		return fromFlagged(raw)

	case strings.HasPrefix(value, "0x"):
		raw, err := hex.DecodeString(value[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: hex: %w", ErrInvalidPrivateKey, err)
		}
		if len(raw) < 32 {
			return nil, fmt.Errorf("%w: hex key has %d bytes", ErrInvalidPrivateKey, len(raw))
		}
		return Ed25519FromSeed(raw[:32])

	default:
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %w", ErrInvalidPrivateKey, err)
		}
		switch len(raw) {
		case 32:
			return Ed25519FromSeed(raw)
		case 33:
			return fromFlagged(raw)
		case 64:
			return Ed25519FromSeed(raw[:32])
		default:
			return nil, fmt.Errorf("%w: base64 key has %d bytes", ErrInvalidPrivateKey, len(raw))
		}
	}
}

func fromFlagged(raw []byte) (Signer, error) {
	if len(raw) != 33 {
		return nil, fmt.Errorf("%w: flagged key has %d bytes", ErrInvalidPrivateKey, len(raw))
	}
	switch Scheme(raw[0]) {
	case SchemeEd25519:
		return Ed25519FromSeed(raw[1:])
	case SchemeSecp256k1:
		return Secp256k1FromBytes(raw[1:])
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedScheme, raw[0])
	}
}

// EncodePrivateKey exports a keypair as a "suiprivkey1..." string.
func EncodePrivateKey(s Signer) (string, error) {
	var secret []byte
	switch k := s.(type) {
	case *Ed25519Keypair:
		secret = k.Seed()
	case *Secp256k1Keypair:
		secret = k.priv.Serialize()
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedScheme, s)
	}
	data, err := bech32.ConvertBits(append([]byte{byte(s.Scheme())}, secret...), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("identity: bech32 payload: %w", err)
	}
	return bech32.Encode(PrivateKeyHRP, data)
}
