package seal

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the credential stored next to a ciphertext. It is one of
// *FallbackDescriptor, *SessionDescriptor or *MinimalDescriptor.
type Descriptor interface {
	descriptor()
}

// FallbackDescriptor carries the plaintext itself. Content protected this way
// has no confidentiality.
type FallbackDescriptor struct {
	Data []byte
}

// SessionDescriptor carries an exported session and the operation id the
// ciphertext was encrypted under.
type SessionDescriptor struct {
	Session *ExportedSessionKey
	ID      string
}

// MinimalDescriptor is written when the session could not be exported. It
// records what was encrypted but cannot decrypt anything.
type MinimalDescriptor struct {
	Address        string
	PackageID      string
	ID             string
	CreationTimeMs int64
}

func (*FallbackDescriptor) descriptor() {}
func (*SessionDescriptor) descriptor() {}
func (*MinimalDescriptor) descriptor() {}

// descriptorJSON is the union of all descriptor fields on the wire.
type descriptorJSON struct {
	Fallback bool    `json:"fallback,omitempty"`
	Data     *string `json:"data,omitempty"`
	DataB64  *string `json:"dataB64,omitempty"`
	Minimal  bool    `json:"_minimal,omitempty"`

	Address                  string `json:"address,omitempty"`
	PackageID                string `json:"packageId,omitempty"`
	CreationTimeMs           int64  `json:"creationTimeMs,omitempty"`
	CreationTime             int64  `json:"creationTime,omitempty"`
	TTLMin                   int    `json:"ttlMin,omitempty"`
	SessionKey               string `json:"sessionKey,omitempty"`
	PersonalMessageSignature string `json:"personalMessageSignature,omitempty"`
	HexID                    string `json:"hexId,omitempty"`
}

// MarshalDescriptor serializes d to JSON.
func MarshalDescriptor(d Descriptor) ([]byte, error) {
	var w descriptorJSON
	switch d := d.(type) {
	case *FallbackDescriptor:
		w = descriptorJSON{Fallback: true}
		w.Data, w.DataB64 = encodeFallbackData(d.Data)
	case *MinimalDescriptor:
		w = descriptorJSON{
			Minimal:      true,
			Address:      d.Address,
			PackageID:    d.PackageID,
			CreationTime: d.CreationTimeMs,
			HexID:        d.ID,
		}
	case *SessionDescriptor:
		if d.Session == nil {
			return nil, fmt.Errorf("%w: session descriptor without session", ErrInvalidDescriptor)
		}
		s := d.Session
		w = descriptorJSON{
			Address:                  s.Address,
			PackageID:                s.PackageID,
			CreationTimeMs:           s.CreationTimeMs,
			TTLMin:                   s.TTLMin,
			SessionKey:               s.SessionKey,
			PersonalMessageSignature: s.PersonalMessageSignature,
			HexID:                    d.ID,
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidDescriptor, d)
	}
	return json.Marshal(w)
}

// ParseDescriptor decodes JSON written by MarshalDescriptor. A session
// descriptor with missing fields is returned as is; Provider.Decrypt treats
// it like a minimal one.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var w descriptorJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	switch {
	case w.Fallback:
		data, _, err := decodeFallbackData(w.Data, w.DataB64)
		if err != nil {
			return nil, err
		}
		return &FallbackDescriptor{Data: data}, nil
	case w.Minimal:
		return &MinimalDescriptor{
			Address:        w.Address,
			PackageID:      w.PackageID,
			ID:             w.HexID,
			CreationTimeMs: w.CreationTime,
		}, nil
	case w.Address == "" && w.PackageID == "" && w.SessionKey == "":
		return nil, fmt.Errorf("%w: no recognizable fields", ErrInvalidDescriptor)
	}
	return &SessionDescriptor{
		Session: &ExportedSessionKey{
			Address:                  w.Address,
			PackageID:                w.PackageID,
			CreationTimeMs:           w.CreationTimeMs,
			TTLMin:                   w.TTLMin,
			SessionKey:               w.SessionKey,
			PersonalMessageSignature: w.PersonalMessageSignature,
		},
		ID: w.HexID,
	}, nil
}
