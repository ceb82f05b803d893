package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/seal"
)

// Defaults for retrieved files without the corresponding metadata.
const (
	DefaultIdentifier  = "retrieved-blob"
	DefaultContentType = ContentTypeText
	DecryptionFailed   = "decryption failed"
)

// RetrieveOpts holds options for the Retrieve operation.
type RetrieveOpts struct {
	BlobID string

	// Descriptor decrypts the content when its file is tagged encrypted.
	Descriptor seal.Descriptor
}

// Retrieval is the first file of a blob. Raw always holds the fetched
// bytes, even when decryption failed.
type Retrieval struct {
	BlobID      string
	Identifier  string
	ContentType string
	Tags        map[string]string
	Raw         []byte
	Encrypted   bool

	// Plaintext is set after a successful decryption. Text is the UTF-8
	// view of Plaintext, of Raw for plain content, or DecryptionFailed.
	Plaintext        []byte
	Text             string
	DecryptPath      seal.Path
	DecryptionFailed bool
	DecryptErr       error
}

// Content returns Plaintext when decryption succeeded and Raw otherwise.
func (r *Retrieval) Content() []byte {
	if r.Plaintext != nil {
		return r.Plaintext
	}
	return r.Raw
}

// Retrieve fetches a blob and decodes its first file.
func (e *Engine) Retrieve(ctx context.Context, opts *RetrieveOpts) (*Retrieval, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if opts == nil {
		return nil, fmt.Errorf("%w: missing options", ErrValidation)
	}
	blobID, file, err := e.fetchFirst(ctx, opts.BlobID)
	if err != nil {
		return nil, err
	}
	r := project(blobID, file)
	if r.Encrypted && opts.Descriptor != nil {
		e.decryptInto(ctx, r, opts.Descriptor)
	} else {
		r.Text = string(r.Raw)
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// fetchFirst normalizes rawID and returns it with the first file of the
// blob.
func (e *Engine) fetchFirst(ctx context.Context, rawID string) (string, *blobfile.File, error) {
	blobID, err := NormalizeBlobID(rawID)
	if err != nil {
		return "", nil, err
	}
	if e.signer != nil {
		if err := e.authorize(ctx); err != nil {
			return "", nil, err
		}
	}

	blob, err := e.storage.GetBlob(ctx, blobID)
	if err != nil {
		e.log.WithError(err).WithField("blob_id", blobID).Warn("vault: fetch failed")
		return "", nil, classify(ctx, err)
	}
	if err := canceled(ctx); err != nil {
		return "", nil, err
	}
	if blob == nil || len(blob.Files) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoFiles, blobID)
	}
	e.log.WithFields(logrus.Fields{"blob_id": blobID, "files": len(blob.Files)}).Debug("vault: fetched")
	return blobID, blob.Files[0], nil
}

func project(blobID string, f *blobfile.File) *Retrieval {
	r := &Retrieval{
		BlobID:      blobID,
		Identifier:  f.Identifier,
		ContentType: f.Tag(blobfile.TagContentType),
		Tags:        make(map[string]string, len(f.Tags)),
		Raw:         append([]byte(nil), f.Contents...),
		Encrypted:   f.IsEncrypted(),
	}
	for k, v := range f.Tags {
		r.Tags[k] = v
	}
	if r.Identifier == "" {
		r.Identifier = DefaultIdentifier
	}
	if r.ContentType == "" {
		r.ContentType = DefaultContentType
	}
	return r
}

// decryptInto decrypts r.Raw. A failure marks r instead of failing the
// retrieval.
func (e *Engine) decryptInto(ctx context.Context, r *Retrieval, desc seal.Descriptor) {
	var (
		res *seal.DecryptResult
		err error
	)
	if e.crypto == nil {
		err = ErrNoEncryption
	} else {
		res, err = e.crypto.Decrypt(ctx, r.Raw, desc)
	}
	if err != nil {
		e.log.WithError(err).WithField("blob_id", r.BlobID).Warn("vault: decryption failed")
		r.Text = DecryptionFailed
		r.DecryptionFailed = true
		r.DecryptErr = fmt.Errorf("%w: %w", ErrDecryption, err)
		return
	}
	r.Plaintext = res.Plaintext
	r.Text = string(res.Plaintext)
	r.DecryptPath = res.Path
}

// Save writes the raw bytes of blobID's first file to localPath. Encrypted
// content is written as stored.
func (e *Engine) Save(ctx context.Context, blobID, localPath string) (*Result, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if localPath == "" {
		return nil, fmt.Errorf("%w: empty local path", ErrValidation)
	}
	blobID, file, err := e.fetchFirst(ctx, blobID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return nil, fmt.Errorf("vault: create local directory: %w", err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("vault: create local file: %w", err)
	}
	if _, err := f.Write(file.Contents); err != nil {
		_ = f.Close()
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("vault: write local file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("vault: close local file: %w", err)
	}

	return &Result{
		BlobID:     blobID,
		Identifier: file.Identifier,
		Message: fmt.Sprintf("Downloaded %s -> %s (%d bytes, %s)", blobID, localPath, len(file.Contents),
			project(blobID, file).ContentType),
	}, nil
}

