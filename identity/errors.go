package identity

import "errors"

var (
	// ErrInvalidPrivateKey indicates a private key string or byte slice could not be parsed.
	ErrInvalidPrivateKey = errors.New("identity: invalid private key")

	// ErrUnsupportedScheme indicates an unknown signature scheme flag.
	ErrUnsupportedScheme = errors.New("identity: unsupported signature scheme")

	// ErrInvalidSignature indicates a malformed signature.
	ErrInvalidSignature = errors.New("identity: invalid signature")

	// ErrSignatureMismatch indicates a well-formed signature that does not verify.
	ErrSignatureMismatch = errors.New("identity: signature verification failed")

	// ErrAddressMismatch indicates the signing key does not belong to the expected address.
	ErrAddressMismatch = errors.New("identity: signer does not match address")

	// ErrInvalidMnemonic indicates the mnemonic phrase is not valid BIP39.
	ErrInvalidMnemonic = errors.New("identity: invalid mnemonic")

	// ErrDerivationFailed indicates HD key derivation failed.
	ErrDerivationFailed = errors.New("identity: key derivation failed")

	// ErrDecryptionFailed indicates wrong password or corrupted encrypted data.
	ErrDecryptionFailed = errors.New("identity: decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates decrypted data failed its integrity check.
	ErrChecksumMismatch = errors.New("identity: checksum mismatch after decryption")

	// ErrEmptySecret indicates an attempt to encrypt nothing.
	ErrEmptySecret = errors.New("identity: secret is empty")
)
