package blobfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// quiltMagic prefixes every packed quilt.
var quiltMagic = []byte("QLT1")

// maxQuiltFiles bounds the file count read from untrusted input.
const maxQuiltFiles = 1 << 16

// EncodeQuilt packs files into a deterministic byte string.
//
// Layout:
//
//	"QLT1" || uvarint(n) || n * ( str(identifier) || uvarint(t) || t * (str(key) || str(value)) || str(contents) )
//
// where str(x) = uvarint(len(x)) || x. Tags are written in key order so the
// same files always produce the same bytes, and therefore the same blob id.
func EncodeQuilt(files []*File) ([]byte, error) {
	seen := make(map[string]struct{}, len(files))
	var buf bytes.Buffer
	buf.Write(quiltMagic)
	writeUvarint(&buf, uint64(len(files)))

	for _, f := range files {
		if f == nil || f.Identifier == "" {
			return nil, ErrEmptyIdentifier
		}
		if _, dup := seen[f.Identifier]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateIdentifier, f.Identifier)
		}
		seen[f.Identifier] = struct{}{}

		writeBytes(&buf, []byte(f.Identifier))
		keys := f.sortedTagKeys()
		writeUvarint(&buf, uint64(len(keys)))
		for _, k := range keys {
			writeBytes(&buf, []byte(k))
			writeBytes(&buf, []byte(f.Tags[k]))
		}
		writeBytes(&buf, f.Contents)
	}
	return buf.Bytes(), nil
}

// DecodeQuilt unpacks bytes produced by EncodeQuilt. A quilt may legally hold
// zero files.
func DecodeQuilt(data []byte) ([]*File, error) {
	if !bytes.HasPrefix(data, quiltMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidQuilt)
	}
	r := bytes.NewReader(data[len(quiltMagic):])

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: file count: %w", ErrInvalidQuilt, err)
	}
	if n > maxQuiltFiles {
		return nil, fmt.Errorf("%w: %d files", ErrInvalidQuilt, n)
	}

	files := make([]*File, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: file %d identifier: %w", ErrInvalidQuilt, i, err)
		}
		nt, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: file %d tag count: %w", ErrInvalidQuilt, i, err)
		}
		if nt > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: file %d tag count %d", ErrInvalidQuilt, i, nt)
		}
		tags := make(map[string]string, nt)
		for j := uint64(0); j < nt; j++ {
			k, err := readBytes(r)
			if err != nil {
				return nil, fmt.Errorf("%w: file %d tag key: %w", ErrInvalidQuilt, i, err)
			}
			v, err := readBytes(r)
			if err != nil {
				return nil, fmt.Errorf("%w: file %d tag value: %w", ErrInvalidQuilt, i, err)
			}
			tags[string(k)] = string(v)
		}
		contents, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: file %d contents: %w", ErrInvalidQuilt, i, err)
		}
		files = append(files, &File{Identifier: string(id), Contents: contents, Tags: tags})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidQuilt, r.Len())
	}
	return files, nil
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
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil && n > 0 {
		return nil, err
	}
	return out, nil
}
