package seal

import "errors"

var (
	// ErrNoIdentity indicates an operation that needs a signer was called without one.
	ErrNoIdentity = errors.New("seal: no signing identity")

	// ErrThresholdUnavailable indicates threshold encryption failed and fallback is disabled.
	ErrThresholdUnavailable = errors.New("seal: threshold encryption unavailable")

	// ErrDecryptionFailed indicates the ciphertext could not be recovered by any path.
	ErrDecryptionFailed = errors.New("seal: decryption failed")

	// ErrIncompleteSession indicates a descriptor lacks the material needed to rebuild a session.
	ErrIncompleteSession = errors.New("seal: session key data incomplete")

	// ErrInvalidSession indicates an exported session whose signature or key does not check out.
	ErrInvalidSession = errors.New("seal: invalid session key")

	// ErrSessionExpired indicates the session's TTL has elapsed.
	ErrSessionExpired = errors.New("seal: session key expired")

	// ErrInvalidTTL indicates a TTL outside 1..MaxTTLMinutes.
	ErrInvalidTTL = errors.New("seal: invalid session ttl")

	// ErrInvalidThreshold indicates a threshold outside 1..number of key servers.
	ErrInvalidThreshold = errors.New("seal: invalid threshold")

	// ErrInvalidObject indicates malformed encrypted object bytes.
	ErrInvalidObject = errors.New("seal: invalid encrypted object")

	// ErrInvalidDescriptor indicates descriptor JSON of no known shape.
	ErrInvalidDescriptor = errors.New("seal: invalid credential descriptor")

	// ErrInvalidCiphertext indicates an AES-GCM payload that is too short.
	ErrInvalidCiphertext = errors.New("seal: invalid ciphertext")

	// ErrNotEnoughShares indicates fewer than threshold key servers answered.
	ErrNotEnoughShares = errors.New("seal: not enough key shares")

	// ErrUnknownKeyServer indicates an object share names a server the client does not know.
	ErrUnknownKeyServer = errors.New("seal: unknown key server")

	// ErrKeyServer indicates a transport or protocol failure talking to a key server.
	ErrKeyServer = errors.New("seal: key server request failed")

	// ErrInvalidCertificate indicates a session certificate not signed by its user.
	ErrInvalidCertificate = errors.New("seal: invalid session certificate")

	// ErrInvalidRequest indicates a fetch-key request with a bad signature or approval transaction.
	ErrInvalidRequest = errors.New("seal: invalid key request")

	// ErrAccessDenied indicates the key server's policy refused the request.
	ErrAccessDenied = errors.New("seal: access denied")
)
