package chain

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketReceipts  = []byte("receipts")
	bucketAbandoned = []byte("abandoned")
)

// AbandonedRegistration records a blob that was registered on chain but whose
// upload never reached certification. Nothing reconciles these automatically;
// they are kept so an operator can see what storage was paid for.
type AbandonedRegistration struct {
	BlobID         string
	RegisterDigest string
	Stage          string
	Reason         string
	At             time.Time
}

// Ledger persists transaction receipts and abandoned registrations in bbolt.
type Ledger struct {
	db *bbolt.DB
}

// OpenLedger opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("chain: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("chain: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketReceipts, bucketAbandoned} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("ledger: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("chain: create buckets: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// PutReceipt stores r keyed by its digest, replacing any earlier version.
func (l *Ledger) PutReceipt(r *Receipt) error {
	if r == nil || r.Digest == "" {
		return fmt.Errorf("%w: receipt", ErrNilParam)
	}
	data, err := encodeGob(r)
	if err != nil {
		return fmt.Errorf("ledger: encode receipt: %w", err)
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceipts).Put([]byte(r.Digest), data)
	})
}

// GetReceipt loads the receipt for digest.
func (l *Ledger) GetReceipt(digest string) (*Receipt, error) {
	var r Receipt
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get([]byte(digest))
		if data == nil {
			return fmt.Errorf("%w: receipt %s", ErrNotFound, digest)
		}
		return decodeGob(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkAbandoned records a registration whose upload was aborted.
func (l *Ledger) MarkAbandoned(a *AbandonedRegistration) error {
	if a == nil || a.BlobID == "" {
		return fmt.Errorf("%w: abandoned registration", ErrNilParam)
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	data, err := encodeGob(a)
	if err != nil {
		return fmt.Errorf("ledger: encode abandoned registration: %w", err)
	}
	key := []byte(a.BlobID + "/" + a.RegisterDigest)
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAbandoned).Put(key, data)
	})
}

// ListAbandoned returns all abandoned registrations ordered by blob id.
func (l *Ledger) ListAbandoned() ([]*AbandonedRegistration, error) {
	var out []*AbandonedRegistration
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAbandoned).ForEach(func(_, v []byte) error {
			var a AbandonedRegistration
			if err := decodeGob(v, &a); err != nil {
				return fmt.Errorf("ledger: decode abandoned registration: %w", err)
			}
			out = append(out, &a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
