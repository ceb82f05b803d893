package seal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// fallbackPasswordLen is how much of the caller's password the fallback
// encoding keeps.
const fallbackPasswordLen = 8

// Content that is not valid UTF-8 would be mangled by a JSON string, so it
// travels base64-encoded in dataB64 instead of data.
type fallbackPayload struct {
	Data     *string `json:"data,omitempty"`
	DataB64  *string `json:"dataB64,omitempty"`
	Password string  `json:"password,omitempty"`
}

// encodeFallbackData returns the data and dataB64 fields for b. Exactly one
// is non-nil.
func encodeFallbackData(b []byte) (data, dataB64 *string) {
	if utf8.Valid(b) {
		s := string(b)
		return &s, nil
	}
	s := base64.StdEncoding.EncodeToString(b)
	return nil, &s
}

// decodeFallbackData reverses encodeFallbackData. ok is false when neither
// field is set.
func decodeFallbackData(data, dataB64 *string) (b []byte, ok bool, err error) {
	switch {
	case dataB64 != nil:
		b, err = base64.StdEncoding.DecodeString(*dataB64)
		if err != nil {
			return nil, true, fmt.Errorf("%w: dataB64: %w", ErrInvalidDescriptor, err)
		}
		return b, true, nil
	case data != nil:
		return []byte(*data), true, nil
	}
	return nil, false, nil
}

// fallbackCiphertext encodes plaintext as {"data", "password"} JSON. It
// offers no confidentiality.
func fallbackCiphertext(plaintext []byte, password string) ([]byte, error) {
	pw := []rune(password)
	if len(pw) > fallbackPasswordLen {
		pw = pw[:fallbackPasswordLen]
	}
	p := fallbackPayload{Password: string(pw)}
	p.Data, p.DataB64 = encodeFallbackData(plaintext)
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("seal: encode fallback: %w", err)
	}
	return out, nil
}

// parseLegacyJSON extracts the payload of a fallback-encoded ciphertext.
func parseLegacyJSON(ciphertext []byte) ([]byte, bool) {
	var p fallbackPayload
	if err := json.Unmarshal(ciphertext, &p); err != nil {
		return nil, false
	}
	b, ok, err := decodeFallbackData(p.Data, p.DataB64)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}
