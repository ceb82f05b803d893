package blobfile

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	rs "github.com/klauspost/reedsolomon"
)

// Sliver is one erasure-coded shard of a blob, self-describing enough to be
// reconstructed together with any DataShards-1 siblings.
type Sliver struct {
	BlobID       string      `json:"blob_id"`
	Index        uint8       `json:"index"`
	DataShards   uint8       `json:"data_shards"`
	ParityShards uint8       `json:"parity_shards"`
	PayloadSize  uint64      `json:"payload_size"`
	Compression  Compression `json:"compression"`
	Data         []byte      `json:"data"`
	Hash         []byte      `json:"hash"`
}

// ComputeHash returns SHA256(blobID || index || k || p || data).
func (s *Sliver) ComputeHash() []byte {
	h := sha256.New()
	h.Write([]byte(s.BlobID))
	h.Write([]byte{s.Index, s.DataShards, s.ParityShards, byte(s.Compression)})
	h.Write(s.Data)
	return h.Sum(nil)
}

// Verify checks the sliver's shape and hash.
func (s *Sliver) Verify() error {
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalidSliver)
	}
	if s.DataShards == 0 || int(s.Index) >= int(s.DataShards)+int(s.ParityShards) {
		return fmt.Errorf("%w: index %d of %d+%d", ErrInvalidSliver, s.Index, s.DataShards, s.ParityShards)
	}
	if !bytes.Equal(s.ComputeHash(), s.Hash) {
		return fmt.Errorf("%w: hash mismatch at index %d", ErrInvalidSliver, s.Index)
	}
	return nil
}

// Encoded is the result of encoding a set of files into a blob.
type Encoded struct {
	BlobID      string
	Files       []*File
	Size        int // quilt size before compression
	Compression Compression
	Slivers     []*Sliver

	// RootHash is SHA256 over all sliver hashes in index order. Storage nodes
	// and the register transaction both commit to it.
	RootHash []byte
}

// Encoder splits quilts into data and parity slivers.
type Encoder struct {
	dataShards   int
	parityShards int
	compression  Compression
}

// NewEncoder returns an Encoder producing k data and p parity slivers.
func NewEncoder(k, p int, compression Compression) (*Encoder, error) {
	if k < 1 || p < 1 || k+p > 256 {
		return nil, fmt.Errorf("%w: %d data + %d parity", ErrInvalidShardCount, k, p)
	}
	if compression > CompressZstd {
		return nil, ErrUnsupportedCompression
	}
	return &Encoder{dataShards: k, parityShards: p, compression: compression}, nil
}

// DataShards returns the number of slivers needed for reconstruction.
func (e *Encoder) DataShards() int { return e.dataShards }

// Encode packs files into a quilt, derives its blob id and erasure codes it.
func (e *Encoder) Encode(files []*File) (*Encoded, error) {
	quilt, err := EncodeQuilt(files)
	if err != nil {
		return nil, err
	}
	if len(quilt) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(quilt))
	}
	blobID, err := ComputeBlobID(quilt)
	if err != nil {
		return nil, err
	}

	payload, err := Compress(quilt, e.compression)
	if err != nil {
		return nil, err
	}

	enc, err := rs.New(e.dataShards, e.parityShards)
	if err != nil {
		return nil, fmt.Errorf("blobfile: new encoder: %w", err)
	}
	shards, err := enc.Split(payload)
	if err != nil {
		return nil, fmt.Errorf("blobfile: split: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("blobfile: encode shards: %w", err)
	}

	slivers := make([]*Sliver, len(shards))
	for i, shard := range shards {
		s := &Sliver{
			BlobID:       blobID,
			Index:        uint8(i),
			DataShards:   uint8(e.dataShards),
			ParityShards: uint8(e.parityShards),
			PayloadSize:  uint64(len(payload)),
			Compression:  e.compression,
			Data:         append([]byte(nil), shard...),
		}
		s.Hash = s.ComputeHash()
		slivers[i] = s
	}

	return &Encoded{
		BlobID:      blobID,
		Files:       files,
		Size:        len(quilt),
		Compression: e.compression,
		Slivers:     slivers,
		RootHash:    RootHash(slivers),
	}, nil
}

// RootHash computes SHA256(hash_0 || hash_1 || ...) over slivers in order.
func RootHash(slivers []*Sliver) []byte {
	h := sha256.New()
	for _, s := range slivers {
		h.Write(s.Hash)
	}
	return h.Sum(nil)
}

// Reconstruct rebuilds the quilt of blobID from at least DataShards valid
// slivers. Invalid or foreign slivers are skipped. The result is verified
// against blobID.
func Reconstruct(blobID string, slivers []*Sliver) ([]byte, error) {
	var first *Sliver
	valid := make(map[uint8]*Sliver)
	for _, s := range slivers {
		if s == nil || s.BlobID != blobID || s.Verify() != nil {
			continue
		}
		if first == nil {
			first = s
		}
		if s.DataShards != first.DataShards || s.ParityShards != first.ParityShards ||
			s.PayloadSize != first.PayloadSize || s.Compression != first.Compression {
			continue
		}
		valid[s.Index] = s
	}
	if first == nil || len(valid) < int(first.DataShards) {
		return nil, fmt.Errorf("%w: have %d", ErrInsufficientSlivers, len(valid))
	}
	if first.PayloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, first.PayloadSize)
	}

	k, p := int(first.DataShards), int(first.ParityShards)
	enc, err := rs.New(k, p)
	if err != nil {
		return nil, fmt.Errorf("blobfile: new decoder: %w", err)
	}

	// Nil entries are missing shards.
	shards := make([][]byte, k+p)
	for idx, s := range valid {
		shards[idx] = append([]byte(nil), s.Data...)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("blobfile: reconstruct: %w", err)
	}

	var out bytes.Buffer
	if err := enc.Join(&out, shards, int(first.PayloadSize)); err != nil {
		return nil, fmt.Errorf("blobfile: join: %w", err)
	}

	quilt, err := Decompress(out.Bytes(), first.Compression)
	if err != nil {
		return nil, err
	}
	if err := VerifyBlobID(blobID, quilt); err != nil {
		return nil, err
	}
	return quilt, nil
}
