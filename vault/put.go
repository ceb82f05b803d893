package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/walrus"
)

// Identifiers and content types of pasted text uploads.
const (
	TextIdentifier          = "input.txt"
	EncryptedTextIdentifier = "input.enc"
	ContentTypeText         = "text/plain"
	ContentTypeBinary       = "application/octet-stream"
)

// UploadOpts holds options for the Upload operation.
type UploadOpts struct {
	Contents   []byte
	Identifier string
	Tags       map[string]string
	Epochs     int // 0 uses the engine default
	Deletable  bool

	// Encrypt runs Contents through the crypto provider first. Password is
	// handed to the provider unchanged.
	Encrypt  bool
	Password string
}

// Result holds the output of an upload.
type Result struct {
	BlobID     string
	Identifier string

	// Encryption is StatusUnknown for plain uploads. StatusFallback means
	// the content was stored without confidentiality.
	Encryption seal.Status
	Descriptor seal.Descriptor

	RegisterDigest string
	CertifyDigest  string
	Message        string
}

// Upload publishes one file. It returns a blob id only after the blob is
// certified; any failure before that returns an error and no id.
func (e *Engine) Upload(ctx context.Context, opts *UploadOpts) (*Result, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.upload(ctx, opts)
}

// UploadText publishes pasted text under input.txt, or input.enc when
// encrypted.
func (e *Engine) UploadText(ctx context.Context, text string, encrypt bool, password string) (*Result, error) {
	opts := &UploadOpts{
		Contents:   []byte(text),
		Identifier: TextIdentifier,
		Tags:       map[string]string{blobfile.TagContentType: ContentTypeText},
		Epochs:     DefaultEpochs,
		Deletable:  true,
		Encrypt:    encrypt,
		Password:   password,
	}
	if encrypt {
		opts.Identifier = EncryptedTextIdentifier
		opts.Tags[blobfile.TagContentType] = ContentTypeBinary
	}
	return e.Upload(ctx, opts)
}

// UploadFile publishes the local file at path under its base name.
func (e *Engine) UploadFile(ctx context.Context, path string, epochs int) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read file: %w", ErrValidation, err)
	}
	return e.Upload(ctx, &UploadOpts{
		Contents:   data,
		Identifier: filepath.Base(path),
		Tags:       map[string]string{blobfile.TagContentType: blobfile.ContentTypeForPath(path)},
		Epochs:     epochs,
		Deletable:  e.deletable,
	})
}

// upload runs the publish protocol. The busy flag is held by the caller.
func (e *Engine) upload(ctx context.Context, opts *UploadOpts) (*Result, error) {
	if opts == nil || opts.Identifier == "" {
		return nil, ErrEmptyIdentifier
	}
	if opts.Epochs < 0 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrValidation, opts.Epochs)
	}
	if err := e.authorize(ctx); err != nil {
		return nil, err
	}
	epochs := opts.Epochs
	if epochs == 0 {
		epochs = e.epochs
	}

	log := e.log.WithFields(logrus.Fields{
		"identifier": opts.Identifier,
		"size":       len(opts.Contents),
		"encrypt":    opts.Encrypt,
	})
	res := &Result{Identifier: opts.Identifier, Encryption: seal.StatusUnknown}

	tags := make(map[string]string, len(opts.Tags)+1)
	for k, v := range opts.Tags {
		tags[k] = v
	}
	contents := opts.Contents
	if opts.Encrypt {
		env, err := e.encrypt(ctx, contents, opts.Password)
		if err != nil {
			return nil, err
		}
		contents = env.Ciphertext
		tags[blobfile.TagEncrypted] = "true"
		res.Encryption = env.Status
		res.Descriptor = env.Descriptor
		if env.Status == seal.StatusFallback {
			log.WithError(env.FallbackCause).Warn("vault: threshold encryption unavailable, content stored without confidentiality")
		}
	} else if _, ok := tags[blobfile.TagEncrypted]; !ok {
		tags[blobfile.TagEncrypted] = "false"
	}

	// Encode.
	flow, err := e.storage.Encode(ctx, []*blobfile.File{blobfile.NewFile(contents, opts.Identifier, tags)})
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: encode: %w", ErrValidation, err)
	}
	log = log.WithField("blob_id", flow.BlobID())
	log.Debug("vault: encoded")

	// Register.
	regTx, err := e.storage.Register(flow, walrus.RegisterOptions{
		Epochs:    epochs,
		Deletable: opts.Deletable,
		Owner:     e.signer.Address(),
	})
	if err != nil {
		return nil, e.abandon(ctx, flow, "register", err)
	}
	reg, err := chain.SignAndExecute(ctx, e.chain, e.signer, regTx)
	e.record(reg)
	if err != nil {
		return nil, e.abandon(ctx, flow, "register", err)
	}
	if err := flow.Registered(reg); err != nil {
		return nil, e.abandon(ctx, flow, "register", err)
	}
	res.RegisterDigest = reg.Digest
	log.WithField("digest", reg.Digest).Info("vault: registered")

	// Finalize.
	if err := canceled(ctx); err != nil {
		return nil, e.abandon(ctx, flow, "finalize", err)
	}
	final, err := e.chain.WaitForTransaction(ctx, reg.Digest)
	e.record(final)
	if err != nil {
		return nil, e.abandon(ctx, flow, "finalize", err)
	}
	if err := flow.Finalize(final); err != nil {
		return nil, e.abandon(ctx, flow, "finalize", err)
	}
	log.WithField("checkpoint", final.Checkpoint).Debug("vault: registration final")

	// Upload.
	if err := e.storage.Upload(ctx, flow); err != nil {
		return nil, e.abandon(ctx, flow, "upload", err)
	}

	// Certify.
	if err := canceled(ctx); err != nil {
		return nil, e.abandon(ctx, flow, "certify", err)
	}
	certTx, err := e.storage.Certify(flow)
	if err != nil {
		return nil, e.abandon(ctx, flow, "certify", err)
	}
	cert, err := chain.SignAndExecute(ctx, e.chain, e.signer, certTx)
	e.record(cert)
	if err != nil {
		return nil, e.abandon(ctx, flow, "certify", err)
	}
	if err := flow.Complete(cert); err != nil {
		return nil, e.abandon(ctx, flow, "certify", err)
	}
	res.CertifyDigest = cert.Digest

	// Resolve.
	refs, err := flow.ListFiles()
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(refs) == 0 || refs[0].BlobID == "" {
		return nil, ErrNoBlobID
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	res.BlobID = refs[0].BlobID
	res.Message = fmt.Sprintf("Uploaded %s as %s (%d bytes, %d epochs)", opts.Identifier, res.BlobID, len(contents), epochs)
	log.WithField("certify", cert.Digest).Info("vault: certified")
	return res, nil
}

func (e *Engine) encrypt(ctx context.Context, plaintext []byte, password string) (*seal.Envelope, error) {
	if e.crypto == nil {
		return nil, ErrNoEncryption
	}
	env, err := e.crypto.Encrypt(ctx, plaintext, password)
	if err != nil {
		if errors.Is(err, seal.ErrNoIdentity) {
			return nil, fmt.Errorf("%w: %w", ErrNoIdentity, err)
		}
		return nil, classify(ctx, err)
	}
	return env, nil
}
