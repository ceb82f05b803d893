// Package chain talks to the coordination chain: it builds, signs, executes
// and tracks the transactions that register and certify blobs and that
// authorize key-server requests.
package chain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Kind identifies the Move call a transaction performs.
type Kind uint8

const (
	KindRegisterBlob Kind = 1
	KindCertifyBlob  Kind = 2
	KindSealApprove  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindRegisterBlob:
		return "register_blob"
	case KindCertifyBlob:
		return "certify_blob"
	case KindSealApprove:
		return "seal_approve"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Well-known transaction argument keys.
const (
	ArgBlobID        = "blob_id"
	ArgRootHash      = "root_hash"
	ArgSize          = "size"
	ArgEpochs        = "epochs"
	ArgDeletable     = "deletable"
	ArgEncoding      = "encoding"
	ArgRegistration  = "registration"
	ArgConfirmations = "confirmations"
	ArgPackageID     = "package_id"
	ArgID            = "id"
)

// DefaultGasBudget is attached to transactions that do not set one.
const DefaultGasBudget = 10_000_000

// txVersion prefixes the serialized form.
const txVersion = 1

// Transaction is an unsigned programmable transaction.
type Transaction struct {
	Kind      Kind
	Sender    string
	GasBudget uint64
	Nonce     [16]byte
	Args      map[string]string
}

// NewTransaction returns a transaction with a random nonce so that two calls
// with identical arguments never share a digest.
func NewTransaction(kind Kind, sender string, args map[string]string) *Transaction {
	tx := &Transaction{
		Kind:      kind,
		Sender:    sender,
		GasBudget: DefaultGasBudget,
		Nonce:     uuid.New(),
		Args:      make(map[string]string, len(args)),
	}
	for k, v := range args {
		tx.Args[k] = v
	}
	return tx
}

// Arg returns the value of key, or "".
func (t *Transaction) Arg(key string) string { return t.Args[key] }

// ArgUint parses key as an unsigned integer.
func (t *Transaction) ArgUint(key string) (uint64, error) {
	v, err := strconv.ParseUint(t.Args[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: argument %s: %w", ErrInvalidTransaction, key, err)
	}
	return v, nil
}

// Bytes serializes the transaction deterministically:
//
//	version(1) || kind(1) || str(sender) || gas(8, BE) || nonce(16) || uvarint(n) || n * (str(key) || str(value))
//
// with arguments in key order.
func (t *Transaction) Bytes() ([]byte, error) {
	if t.Sender == "" {
		return nil, fmt.Errorf("%w: empty sender", ErrInvalidTransaction)
	}
	var buf bytes.Buffer
	buf.WriteByte(txVersion)
	buf.WriteByte(byte(t.Kind))
	putString(&buf, t.Sender)
	var gas [8]byte
	binary.BigEndian.PutUint64(gas[:], t.GasBudget)
	buf.Write(gas[:])
	buf.Write(t.Nonce[:])

	keys := make([]string, 0, len(t.Args))
	for k := range t.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	putUvarint(&buf, uint64(len(keys)))
	for _, k := range keys {
		putString(&buf, k)
		putString(&buf, t.Args[k])
	}
	return buf.Bytes(), nil
}

// ParseTransaction decodes bytes produced by Transaction.Bytes.
func ParseTransaction(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	version, err := r.ReadByte()
	if err != nil || version != txVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidTransaction)
	}
	kind, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: kind: %w", ErrInvalidTransaction, err)
	}
	tx := &Transaction{Kind: Kind(kind), Args: map[string]string{}}
	if tx.Sender, err = getString(r); err != nil {
		return nil, fmt.Errorf("%w: sender: %w", ErrInvalidTransaction, err)
	}
	var gas [8]byte
	if _, err := io.ReadFull(r, gas[:]); err != nil {
		return nil, fmt.Errorf("%w: gas: %w", ErrInvalidTransaction, err)
	}
	tx.GasBudget = binary.BigEndian.Uint64(gas[:])
	if _, err := io.ReadFull(r, tx.Nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", ErrInvalidTransaction, err)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil || count > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: argument count", ErrInvalidTransaction)
	}
	for i := uint64(0); i < count; i++ {
		k, err := getString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: argument key: %w", ErrInvalidTransaction, err)
		}
		v, err := getString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %s: %w", ErrInvalidTransaction, k, err)
		}
		tx.Args[k] = v
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidTransaction)
	}
	return tx, nil
}

// Digest returns the transaction digest: 0x || hex(BLAKE2b-256("TransactionData::" || bytes)).
func Digest(txBytes []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("TransactionData::"))
	h.Write(txBytes)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Digest computes the digest of the serialized transaction.
func (t *Transaction) Digest() (string, error) {
	b, err := t.Bytes()
	if err != nil {
		return "", err
	}
	return Digest(b), nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", fmt.Errorf("length %d exceeds remaining %d bytes", n, r.Len())
	}
	b := make([]byte, n)
	_, _ = r.Read(b)
	return string(b), nil
}
