package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/hkdf"
)

const (
	// ShareKeyInfo is the HKDF info string for wrapping key shares.
	ShareKeyInfo = "sealvault-share"

	// ResponseKeyInfo is the HKDF info string for key-server responses.
	ResponseKeyInfo = "sealvault-response"

	// KeyLen is the AES-256 key length.
	KeyLen = 32

	nonceLen = 12
	tagLen   = 16
)

// Identity returns the byte identity a key is bound to: packageID || id.
func Identity(packageID, id string) []byte {
	out := make([]byte, 0, len(packageID)+len(id))
	out = append(out, packageID...)
	return append(out, id...)
}

// ecdh returns the x-coordinate of priv * pub, zero-padded to 32 bytes.
func ecdh(priv *ec.PrivateKey, pub *ec.PublicKey) ([]byte, error) {
	if priv == nil || pub == nil {
		return nil, fmt.Errorf("seal: ecdh: nil key")
	}
	point, err := priv.DeriveSharedSecret(pub)
	if err != nil {
		return nil, fmt.Errorf("seal: ecdh: %w", err)
	}
	x := make([]byte, 32)
	point.X.FillBytes(x)
	return x, nil
}

// deriveKey derives an AES-256 key:
//
//	HKDF-SHA256(ikm = sharedX, salt = SHA256(identity), info)
func deriveKey(sharedX, identity []byte, info string) ([]byte, error) {
	salt := sha256.Sum256(identity)
	r := hkdf.New(sha256.New, sharedX, salt[:], []byte(info))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("seal: hkdf: %w", err)
	}
	return key, nil
}

// aesGCMEncrypt returns nonce(12) || ciphertext || tag(16).
func aesGCMEncrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: random nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func aesGCMDecrypt(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) < nonceLen+tagLen {
		return nil, ErrInvalidCiphertext
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: aes: %w", err)
	}
	return cipher.NewGCM(block)
}
