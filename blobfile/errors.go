package blobfile

import "errors"

var (
	// ErrEmptyIdentifier indicates a file without an identifier.
	ErrEmptyIdentifier = errors.New("blobfile: file identifier is empty")

	// ErrDuplicateIdentifier indicates two files in one blob share an identifier.
	ErrDuplicateIdentifier = errors.New("blobfile: duplicate file identifier")

	// ErrInvalidQuilt indicates the packed file container is malformed.
	ErrInvalidQuilt = errors.New("blobfile: invalid quilt encoding")

	// ErrInvalidBlobID indicates the blob id is not a valid content identifier.
	ErrInvalidBlobID = errors.New("blobfile: invalid blob id")

	// ErrBlobIDMismatch indicates reconstructed content does not hash to the blob id.
	ErrBlobIDMismatch = errors.New("blobfile: content does not match blob id")

	// ErrInvalidShardCount indicates unusable erasure coding parameters.
	ErrInvalidShardCount = errors.New("blobfile: invalid shard count")

	// ErrInvalidSliver indicates a sliver failed validation.
	ErrInvalidSliver = errors.New("blobfile: invalid sliver")

	// ErrInsufficientSlivers indicates fewer valid slivers than data shards.
	ErrInsufficientSlivers = errors.New("blobfile: not enough slivers to reconstruct")

	// ErrUnsupportedCompression indicates an unknown compression scheme.
	ErrUnsupportedCompression = errors.New("blobfile: unsupported compression scheme")

	// ErrPayloadTooLarge indicates content exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("blobfile: payload too large")
)
