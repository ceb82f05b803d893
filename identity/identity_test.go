package identity

import (
	"encoding/base64"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func signers(t *testing.T) map[string]Signer {
	t.Helper()
	ed, err := NewEd25519Keypair()
	require.NoError(t, err)
	k1, err := NewSecp256k1Keypair()
	require.NoError(t, err)
	return map[string]Signer{"ed25519": ed, "secp256k1": k1}
}

// --- Address tests ---

func TestAddressFormat(t *testing.T) {
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			addr := s.Address()
			assert.True(t, strings.HasPrefix(addr, "0x"))
			assert.Len(t, addr, 66)
			assert.Equal(t, AddressFromPublicKey(s.Scheme(), s.PublicKey()), addr)
		})
	}
}

func TestAddressDependsOnScheme(t *testing.T) {
	pub := make([]byte, 32)
	assert.NotEqual(t, AddressFromPublicKey(SchemeEd25519, pub), AddressFromPublicKey(SchemeSecp256k1, pub))
}

// --- Signature tests ---

func TestSignVerifyTransaction(t *testing.T) {
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			tx := []byte("register blob")
			sig, err := s.SignTransaction(tx)
			require.NoError(t, err)
			require.NoError(t, VerifyTransaction(tx, sig, s.Address()))

			assert.ErrorIs(t, VerifyTransaction([]byte("other"), sig, s.Address()), ErrSignatureMismatch)
			assert.ErrorIs(t, VerifyTransaction(tx, sig, "0xdead"), ErrAddressMismatch)
		})
	}
}

func TestIntentSeparation(t *testing.T) {
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			msg := []byte("same bytes")
			sig, err := s.SignPersonalMessage(msg)
			require.NoError(t, err)
			require.NoError(t, VerifyPersonalMessage(msg, sig, s.Address()))
			assert.ErrorIs(t, VerifyTransaction(msg, sig, s.Address()), ErrSignatureMismatch)
		})
	}
}

func TestSignatureSerializeRoundTrip(t *testing.T) {
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			sig, err := s.SignTransaction([]byte("tx"))
			require.NoError(t, err)

			parsed, err := ParseSignature(sig.Serialize())
			require.NoError(t, err)
			assert.Equal(t, sig, parsed)
			assert.Equal(t, s.Address(), parsed.Address())
		})
	}
}

func TestParseSignatureInvalid(t *testing.T) {
	_, err := ParseSignature("!!!")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParseSignature(base64.StdEncoding.EncodeToString([]byte{0x07, 1, 2}))
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = ParseSignature(base64.StdEncoding.EncodeToString([]byte{0x00, 1, 2}))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

// --- Private key parsing tests ---

func TestParsePrivateKeyBech32RoundTrip(t *testing.T) {
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			encoded, err := EncodePrivateKey(s)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, "suiprivkey1"))

			parsed, err := ParsePrivateKey(encoded)
			require.NoError(t, err)
			assert.Equal(t, s.Address(), parsed.Address())
			assert.Equal(t, s.Scheme(), parsed.Scheme())
		})
	}
}

func TestParsePrivateKeyHexUsesFirst32Bytes(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	want, err := Ed25519FromSeed(seed[:32])
	require.NoError(t, err)

	got, err := ParsePrivateKey("0x" + hex.EncodeToString(seed))
	require.NoError(t, err)
	assert.Equal(t, want.Address(), got.Address())
}

func TestParsePrivateKeyBase64(t *testing.T) {
	seed := make([]byte, 32)
	seed[0] = 7
	want, err := Ed25519FromSeed(seed)
	require.NoError(t, err)

	got, err := ParsePrivateKey(base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)
	assert.Equal(t, want.Address(), got.Address())

	flagged := append([]byte{byte(SchemeEd25519)}, seed...)
	got, err = ParsePrivateKey(base64.StdEncoding.EncodeToString(flagged))
	require.NoError(t, err)
	assert.Equal(t, want.Address(), got.Address())
}

func TestParsePrivateKeyInvalid(t *testing.T) {
	for _, v := range []string{"", "0xzz", "0x1234", "not base64!", base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "suiprivkey1qqqq"} {
		_, err := ParsePrivateKey(v)
		assert.ErrorIs(t, err, ErrInvalidPrivateKey, v)
	}
}

// --- Mnemonic tests ---

func TestSecp256k1FromMnemonicDeterministic(t *testing.T) {
	a, err := Secp256k1FromMnemonic(testMnemonic, "", 0)
	require.NoError(t, err)
	b, err := Secp256k1FromMnemonic(testMnemonic, "", 0)
	require.NoError(t, err)
	c, err := Secp256k1FromMnemonic(testMnemonic, "", 1)
	require.NoError(t, err)

	assert.Equal(t, a.Address(), b.Address())
	assert.NotEqual(t, a.Address(), c.Address())
}

func TestSecp256k1FromMnemonicInvalid(t *testing.T) {
	_, err := Secp256k1FromMnemonic("not a mnemonic", "", 0)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic(Mnemonic12Words)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)

	_, err = GenerateMnemonic(100)
	assert.Error(t, err)
}

// --- Keystore tests ---

func TestEncryptDecryptSecret(t *testing.T) {
	enc, err := EncryptSecret([]byte("secret payload"), "pw")
	require.NoError(t, err)

	out, err := DecryptSecret(enc, "pw")
	require.NoError(t, err)
	assert.Equal(t, "secret payload", string(out))

	_, err = DecryptSecret(enc, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = DecryptSecret(enc[:10], "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = EncryptSecret(nil, "pw")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestKeystoreRoundTrip(t *testing.T) {
	s, err := NewSecp256k1Keypair()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "identity.enc")

	require.NoError(t, SaveKeystore(path, s, "pw"))
	loaded, err := LoadKeystore(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, s.Address(), loaded.Address())

	_, err = LoadKeystore(path, "nope")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
