package vault

import (
	"fmt"
	"strings"
	"unicode"
)

// MinBlobIDLength is the shortest accepted blob id.
const MinBlobIDLength = 10

// ValidateBlobID checks the shape of a blob id before anything is fetched.
// Transaction digests get their own error since they are the most common
// thing pasted by mistake.
func ValidateBlobID(id string) error {
	_, err := NormalizeBlobID(id)
	return err
}

// NormalizeBlobID trims id and validates it. The trimmed id is the one to
// fetch.
func NormalizeBlobID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		return "", fmt.Errorf("%w: %q", ErrTransactionDigest, id)
	}
	if len(id) < MinBlobIDLength {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrBlobIDTooShort, len(id), MinBlobIDLength)
	}
	if r := rune(id[0]); r > unicode.MaxASCII || !unicode.IsLetter(r) {
		return "", fmt.Errorf("%w: %q", ErrBlobIDFormat, id)
	}
	return id, nil
}
