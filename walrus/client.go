// Package walrus stores blobs as erasure-coded slivers spread over storage
// nodes. Writes follow a register, finalize, upload, certify protocol
// coordinated through the chain. Reads rebuild the blob from any
// DataShards valid slivers.
package walrus

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/logging"
)

// Blob is a certified blob read back from storage.
type Blob struct {
	ID    string
	Files []*blobfile.File
}

// ClientConfig configures a Client.
type ClientConfig struct {
	DataShards   int
	ParityShards int
	Compression  blobfile.Compression
	Nodes        []NodeClient

	// Cache is optional.
	Cache  *Cache
	Logger *logrus.Logger
}

// RegisterOptions are the retention terms recorded on chain.
type RegisterOptions struct {
	Epochs    int
	Deletable bool
	Owner     string
}

// Client publishes and reads blobs.
type Client struct {
	encoder *blobfile.Encoder
	slivers int
	nodes   []NodeClient
	cache   *Cache
	log     *logrus.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Nodes) == 0 {
		return nil, ErrNoNodes
	}
	enc, err := blobfile.NewEncoder(cfg.DataShards, cfg.ParityShards, cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return &Client{
		encoder: enc,
		slivers: cfg.DataShards + cfg.ParityShards,
		nodes:   cfg.Nodes,
		cache:   cfg.Cache,
		log:     logging.OrDiscard(cfg.Logger),
	}, nil
}

// DataShards returns how many slivers are needed to rebuild a blob.
func (c *Client) DataShards() int { return c.encoder.DataShards() }

func (c *Client) nodeFor(index uint8) NodeClient {
	return c.nodes[int(index)%len(c.nodes)]
}

// Encode packs files into a new blob and starts a flow for it.
func (c *Client) Encode(ctx context.Context, files []*blobfile.File) (*Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidOptions)
	}
	enc, err := c.encoder.Encode(files)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"blob_id": enc.BlobID,
		"files":   len(files),
		"size":    enc.Size,
		"slivers": len(enc.Slivers),
	}).Debug("walrus: blob encoded")
	return newFlow(enc), nil
}

// Register returns the unsigned register transaction for flow.
func (c *Client) Register(flow *Flow, opts RegisterOptions) (*chain.Transaction, error) {
	if flow == nil {
		return nil, fmt.Errorf("%w: nil flow", ErrInvalidOptions)
	}
	if opts.Epochs < 1 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidOptions, opts.Epochs)
	}
	if s := flow.State(); s != StateEncoded {
		return nil, fmt.Errorf("%w: register from %s", ErrInvalidState, s)
	}
	enc := flow.Encoded()
	first := enc.Slivers[0]
	return chain.NewTransaction(chain.KindRegisterBlob, opts.Owner, map[string]string{
		chain.ArgBlobID:    enc.BlobID,
		chain.ArgRootHash:  hex.EncodeToString(enc.RootHash),
		chain.ArgSize:      strconv.Itoa(enc.Size),
		chain.ArgEpochs:    strconv.Itoa(opts.Epochs),
		chain.ArgDeletable: strconv.FormatBool(opts.Deletable),
		chain.ArgEncoding:  fmt.Sprintf("rs-%d-%d-%s", first.DataShards, first.ParityShards, enc.Compression),
	}), nil
}

// Upload sends every sliver to its node, one at a time. It succeeds once
// enough distinct slivers are confirmed to rebuild the blob.
func (c *Client) Upload(ctx context.Context, flow *Flow) error {
	if flow == nil {
		return fmt.Errorf("%w: nil flow", ErrInvalidOptions)
	}
	if s := flow.State(); s != StateFinalized {
		return fmt.Errorf("%w: upload from %s", ErrInvalidState, s)
	}
	registration := flow.Registration().Digest
	enc := flow.Encoded()
	log := c.log.WithFields(logrus.Fields{"blob_id": enc.BlobID, "registration": registration})

	var (
		confs    []*Confirmation
		failures []error
	)
	confirmed := make(map[uint8]bool)
	for _, s := range enc.Slivers {
		if err := ctx.Err(); err != nil {
			flow.Abort(err)
			return err
		}
		node := c.nodeFor(s.Index)
		conf, err := node.StoreSliver(ctx, s, registration)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"node": node.ID(), "index": s.Index}).
				Warn("walrus: sliver upload failed")
			failures = append(failures, err)
			continue
		}
		if conf.BlobID != enc.BlobID || conf.Index != s.Index {
			failures = append(failures, fmt.Errorf("%w: node %s confirmed %s/%d", ErrNodeRequest, node.ID(), conf.BlobID, conf.Index))
			continue
		}
		confirmed[s.Index] = true
		confs = append(confs, conf)
	}

	need := int(enc.Slivers[0].DataShards)
	if len(confirmed) < need {
		err := fmt.Errorf("%w: %d of %d needed: %w", ErrNotEnoughConfirmations, len(confirmed), need, errors.Join(failures...))
		flow.Abort(err)
		return err
	}
	if err := flow.uploaded(confs); err != nil {
		return err
	}
	log.WithField("confirmations", len(confs)).Info("walrus: slivers stored")
	return nil
}

// Certify returns the unsigned certify transaction for an uploaded flow.
func (c *Client) Certify(flow *Flow) (*chain.Transaction, error) {
	if flow == nil {
		return nil, fmt.Errorf("%w: nil flow", ErrInvalidOptions)
	}
	if s := flow.State(); s != StateUploaded {
		return nil, fmt.Errorf("%w: certify from %s", ErrInvalidState, s)
	}
	reg := flow.Registration()
	var sender string
	if reg.Transaction != nil {
		sender = reg.Transaction.Sender
	}
	return chain.NewTransaction(chain.KindCertifyBlob, sender, map[string]string{
		chain.ArgBlobID:        flow.BlobID(),
		chain.ArgRegistration:  reg.Digest,
		chain.ArgConfirmations: strconv.Itoa(len(flow.Confirmations())),
	}), nil
}

// GetBlob reads blobID from the cache, or rebuilds it from the nodes.
func (c *Client) GetBlob(ctx context.Context, blobID string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := c.log.WithField("blob_id", blobID)

	if c.cache != nil {
		if quilt, err := c.cache.Get(blobID); err == nil {
			files, err := blobfile.DecodeQuilt(quilt)
			if err == nil {
				log.Debug("walrus: cache hit")
				return &Blob{ID: blobID, Files: files}, nil
			}
			log.WithError(err).Warn("walrus: discarding unreadable cache entry")
		}
	}

	slivers, err := c.readSlivers(ctx, blobID, log)
	if err != nil {
		return nil, err
	}
	quilt, err := blobfile.Reconstruct(blobID, slivers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlobUnavailable, err)
	}
	files, err := blobfile.DecodeQuilt(quilt)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(blobID, quilt); err != nil {
			log.WithError(err).Warn("walrus: cache write failed")
		}
	}
	return &Blob{ID: blobID, Files: files}, nil
}

// readSlivers collects valid slivers in index order and stops as soon as
// DataShards of them have arrived. The shard counts are learned from the
// first valid sliver; until then the client's own layout bounds the scan.
func (c *Client) readSlivers(ctx context.Context, blobID string, log *logrus.Entry) ([]*blobfile.Sliver, error) {
	var (
		valid    []*blobfile.Sliver
		failures []error
	)
	need, total := c.encoder.DataShards(), c.slivers
	learned := false

	for idx := 0; idx < total && idx < 256 && len(valid) < need; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := uint8(idx)
		node := c.nodeFor(index)
		s, err := node.ReadSliver(ctx, blobID, index)
		if err != nil {
			if !errors.Is(err, ErrSliverNotFound) {
				log.WithError(err).WithFields(logrus.Fields{"node": node.ID(), "index": index}).
					Warn("walrus: sliver read failed")
			}
			failures = append(failures, err)
			continue
		}
		if s.BlobID != blobID || s.Index != index || s.Verify() != nil {
			log.WithFields(logrus.Fields{"node": node.ID(), "index": index}).Warn("walrus: discarding invalid sliver")
			failures = append(failures, fmt.Errorf("%w: index %d from %s", blobfile.ErrInvalidSliver, index, node.ID()))
			continue
		}
		if !learned {
			learned = true
			need = int(s.DataShards)
			total = int(s.DataShards) + int(s.ParityShards)
		}
		valid = append(valid, s)
	}

	if len(valid) < need {
		return nil, fmt.Errorf("%w: %s: %d of %d slivers: %w", ErrBlobUnavailable, blobID, len(valid), need, errors.Join(failures...))
	}
	return valid, nil
}
