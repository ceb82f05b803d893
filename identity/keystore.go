package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for password-based encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Encryption format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4
)

// EncryptSecret encrypts data under a password with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, data||checksum)
//
// The checksum is SHA256(data)[:4].
func EncryptSecret(data []byte, password string) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptySecret
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("identity: failed to generate salt: %w", err)
	}

	gcm, err := passwordAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	plaintext := make([]byte, 0, len(data)+ChecksumLen)
	plaintext = append(plaintext, data...)
	plaintext = append(plaintext, sum[:ChecksumLen]...)

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("identity: failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := encrypted[:SaltLen]
	nonce := encrypted[SaltLen : SaltLen+NonceLen]
	ciphertext := encrypted[SaltLen+NonceLen:]

	gcm, err := passwordAEAD(password, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil || len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	data := plaintext[:len(plaintext)-ChecksumLen]
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:ChecksumLen], plaintext[len(plaintext)-ChecksumLen:]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return data, nil
}

func passwordAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("identity: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("identity: GCM creation failed: %w", err)
	}
	return gcm, nil
}

// SaveKeystore writes signer's exported key to path, encrypted under password.
func SaveKeystore(path string, s Signer, password string) error {
	encoded, err := EncodePrivateKey(s)
	if err != nil {
		return err
	}
	enc, err := EncryptSecret([]byte(encoded), password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("identity: create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, enc, 0600); err != nil {
		return fmt.Errorf("identity: write keystore: %w", err)
	}
	return nil
}

// LoadKeystore reads and decrypts a keystore written by SaveKeystore.
func LoadKeystore(path, password string) (Signer, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read keystore: %w", err)
	}
	raw, err := DecryptSecret(enc, password)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(string(raw))
}
