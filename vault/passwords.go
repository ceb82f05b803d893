package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/identity"
	"github.com/bitfsorg/sealvault-go/seal"
)

// PasswordEpochs is the retention of password records.
const PasswordEpochs = 5

// Record indexes one stored password. Service and Username are kept in
// clear; the password only exists inside the blob.
type Record struct {
	ID         string    `json:"id"`
	Service    string    `json:"service"`
	Username   string    `json:"username"`
	Descriptor string    `json:"descriptor"` // serialized seal.Descriptor
	CreatedAt  time.Time `json:"createdAt"`
}

// Entry is a decrypted password record.
type Entry struct {
	Service   string    `json:"service"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

// PasswordVault stores password entries as encrypted blobs. Its record
// list lives in memory only.
type PasswordVault struct {
	engine *Engine

	mu      sync.RWMutex
	records []Record
}

// NewPasswordVault returns an empty vault backed by engine.
func NewPasswordVault(engine *Engine) *PasswordVault {
	return &PasswordVault{engine: engine}
}

// Records returns the records in insertion order.
func (v *PasswordVault) Records() []Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Record(nil), v.records...)
}

// Restore adds previously exported records. Records whose id is already
// known are skipped.
func (v *PasswordVault) Restore(records ...Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range records {
		if r.ID == "" || v.indexOf(r.ID) >= 0 {
			continue
		}
		v.records = append(v.records, r)
	}
}

func (v *PasswordVault) indexOf(id string) int {
	for i, r := range v.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (v *PasswordVault) find(id string) (Record, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i := v.indexOf(id); i >= 0 {
		return v.records[i], true
	}
	return Record{}, false
}

// Add encrypts the entry under master, then under the seal provider, and
// uploads it. The record is kept only once a blob id was returned.
func (v *PasswordVault) Add(ctx context.Context, service, username, password, master string) (*Record, error) {
	e := v.engine
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	switch {
	case service == "":
		return nil, fmt.Errorf("%w: service", ErrEmptyField)
	case username == "":
		return nil, fmt.Errorf("%w: username", ErrEmptyField)
	case password == "":
		return nil, fmt.Errorf("%w: password", ErrEmptyField)
	case master == "":
		return nil, ErrNoMasterKey
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(Entry{Service: service, Username: username, Password: password, CreatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("vault: marshal entry: %w", err)
	}
	sealed, err := identity.EncryptSecret(payload, master)
	if err != nil {
		return nil, fmt.Errorf("vault: encrypt entry: %w", err)
	}

	res, err := e.upload(ctx, &UploadOpts{
		// Base64 keeps the payload printable for the fallback form.
		Contents:   []byte(base64.StdEncoding.EncodeToString(sealed)),
		Identifier: fmt.Sprintf("password-%s-%d.enc", service, now.UnixMilli()),
		Tags: map[string]string{
			blobfile.TagContentType: ContentTypeBinary,
			blobfile.TagService:     service,
			blobfile.TagUsername:    username,
			blobfile.TagType:        blobfile.TypePasswordEntry,
		},
		Epochs:    PasswordEpochs,
		Deletable: true,
		Encrypt:   true,
		Password:  master,
	})
	if err != nil {
		return nil, err
	}
	if res.BlobID == "" {
		return nil, ErrNoBlobID
	}
	desc, err := seal.MarshalDescriptor(res.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("vault: marshal descriptor: %w", err)
	}

	rec := Record{
		ID:         res.BlobID,
		Service:    service,
		Username:   username,
		Descriptor: string(desc),
		CreatedAt:  now,
	}
	v.mu.Lock()
	v.records = append(v.records, rec)
	v.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"blob_id":    rec.ID,
		"service":    service,
		"encryption": res.Encryption,
	}).Info("vault: password stored")
	return &rec, nil
}

// Retrieve fetches and decrypts the record with blob id id.
func (v *PasswordVault) Retrieve(ctx context.Context, id, master string) (*Entry, error) {
	e := v.engine
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if master == "" {
		return nil, ErrNoMasterKey
	}
	rec, ok := v.find(strings.TrimSpace(id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}

	_, file, err := e.fetchFirst(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if e.crypto == nil {
		return nil, ErrNoEncryption
	}
	desc, err := seal.ParseDescriptor([]byte(rec.Descriptor))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	res, err := e.crypto.Decrypt(ctx, file.Contents, desc)
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(string(res.Plaintext))
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %w", ErrDecryption, err)
	}
	payload, err := identity.DecryptSecret(sealed, master)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrDecryption, err)
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}
