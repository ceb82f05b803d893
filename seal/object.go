package seal

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// objectMagic starts every encrypted object. It keeps threshold ciphertext
// from ever parsing as the JSON fallback format.
var objectMagic = []byte("SEAL")

const objectVersion = 1

// WrappedShare is one key share encrypted for a single key server.
type WrappedShare struct {
	ServerID     string
	Index        byte
	EphemeralPub []byte
	Wrapped      []byte
}

// EncryptedObject is the threshold ciphertext.
//
//	"SEAL" || version(1) || str(packageID) || str(id) || threshold(1)
//	|| uvarint(n) || n * (str(server) || index(1) || bytes(ephemeral) || bytes(wrapped))
//	|| bytes(ciphertext)
type EncryptedObject struct {
	PackageID  string
	ID         string
	Threshold  int
	Shares     []WrappedShare
	Ciphertext []byte
}

// Bytes serializes the object.
func (o *EncryptedObject) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(objectMagic)
	buf.WriteByte(objectVersion)
	writeBytes(&buf, []byte(o.PackageID))
	writeBytes(&buf, []byte(o.ID))
	buf.WriteByte(byte(o.Threshold))
	writeUvarint(&buf, uint64(len(o.Shares)))
	for _, s := range o.Shares {
		writeBytes(&buf, []byte(s.ServerID))
		buf.WriteByte(s.Index)
		writeBytes(&buf, s.EphemeralPub)
		writeBytes(&buf, s.Wrapped)
	}
	writeBytes(&buf, o.Ciphertext)
	return buf.Bytes()
}

// ParseObject decodes bytes produced by EncryptedObject.Bytes.
func ParseObject(data []byte) (*EncryptedObject, error) {
	if !bytes.HasPrefix(data, objectMagic) {
		return nil, fmt.Errorf("%w: missing magic", ErrInvalidObject)
	}
	r := bytes.NewReader(data[len(objectMagic):])
	version, err := r.ReadByte()
	if err != nil || version != objectVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidObject)
	}

	o := &EncryptedObject{}
	pkg, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: package id: %w", ErrInvalidObject, err)
	}
	id, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %w", ErrInvalidObject, err)
	}
	o.PackageID, o.ID = string(pkg), string(id)

	t, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: threshold: %w", ErrInvalidObject, err)
	}
	o.Threshold = int(t)

	n, err := binary.ReadUvarint(r)
	if err != nil || n > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: share count", ErrInvalidObject)
	}
	for i := uint64(0); i < n; i++ {
		var s WrappedShare
		server, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: share %d server: %w", ErrInvalidObject, i, err)
		}
		s.ServerID = string(server)
		if s.Index, err = r.ReadByte(); err != nil {
			return nil, fmt.Errorf("%w: share %d index: %w", ErrInvalidObject, i, err)
		}
		if s.EphemeralPub, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("%w: share %d ephemeral key: %w", ErrInvalidObject, i, err)
		}
		if s.Wrapped, err = readBytes(r); err != nil {
			return nil, fmt.Errorf("%w: share %d: %w", ErrInvalidObject, i, err)
		}
		o.Shares = append(o.Shares, s)
	}

	if o.Ciphertext, err = readBytes(r); err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %w", ErrInvalidObject, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidObject)
	}
	if o.Threshold < 1 || o.Threshold > len(o.Shares) {
		return nil, fmt.Errorf("%w: threshold %d with %d shares", ErrInvalidObject, o.Threshold, len(o.Shares))
	}
	return o, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len())
	}
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b, nil
}
