package blobfile

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeBlobID returns the CIDv1 (raw codec, sha2-256) of data in its
// default base32 form, e.g. "bafkrei...".
func ComputeBlobID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("blobfile: hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// ParseBlobID decodes a blob id string.
func ParseBlobID(id string) (cid.Cid, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %w", ErrInvalidBlobID, err)
	}
	return c, nil
}

// VerifyBlobID checks that data hashes to id.
func VerifyBlobID(id string, data []byte) error {
	want, err := ParseBlobID(id)
	if err != nil {
		return err
	}
	got, err := want.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlobID, err)
	}
	if !got.Equals(want) {
		return fmt.Errorf("%w: %s", ErrBlobIDMismatch, id)
	}
	return nil
}
