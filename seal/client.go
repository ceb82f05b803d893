package seal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/logging"
)

// EncryptRequest is the input of a threshold encryption.
type EncryptRequest struct {
	Threshold int
	PackageID string
	ID        string
	Data      []byte
}

// DecryptRequest is the input of a threshold decryption.
type DecryptRequest struct {
	Ciphertext []byte
	Session    *SessionKey
	TxBytes    []byte
}

// Primitive is the threshold encryption scheme the Provider drives.
type Primitive interface {
	Encrypt(ctx context.Context, req *EncryptRequest) ([]byte, error)
	Decrypt(ctx context.Context, req *DecryptRequest) ([]byte, error)
}

// Client encrypts to a committee of key servers. The data key is split with
// Shamir sharing and each share is wrapped for one server under
// HKDF(ECDH(ephemeral, server).x, SHA256(identity)).
type Client struct {
	servers map[string]KeyServer
	order   []string
	log     *logrus.Logger
}

// Compile-time interface check.
var _ Primitive = (*Client)(nil)

// NewClient returns a client for servers. Server IDs must be unique.
func NewClient(servers []KeyServer, log *logrus.Logger) (*Client, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: no key servers", ErrInvalidThreshold)
	}
	c := &Client{servers: make(map[string]KeyServer, len(servers)), log: logging.OrDiscard(log)}
	for _, s := range servers {
		if _, dup := c.servers[s.ID()]; dup {
			return nil, fmt.Errorf("seal: duplicate key server %q", s.ID())
		}
		c.servers[s.ID()] = s
		c.order = append(c.order, s.ID())
	}
	return c, nil
}

// Encrypt produces an EncryptedObject for req.
func (c *Client) Encrypt(ctx context.Context, req *EncryptRequest) ([]byte, error) {
	if req.Threshold < 1 || req.Threshold > len(c.order) {
		return nil, fmt.Errorf("%w: %d of %d servers", ErrInvalidThreshold, req.Threshold, len(c.order))
	}
	if req.PackageID == "" || req.ID == "" {
		return nil, fmt.Errorf("%w: package id and id are required", ErrInvalidObject)
	}

	dek := make([]byte, KeyLen)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("seal: random data key: %w", err)
	}
	dem, err := aesGCMEncrypt(req.Data, dek)
	if err != nil {
		return nil, err
	}
	shares, err := splitSecret(dek, len(c.order), req.Threshold)
	if err != nil {
		return nil, err
	}

	identity := Identity(req.PackageID, req.ID)
	obj := &EncryptedObject{
		PackageID:  req.PackageID,
		ID:         req.ID,
		Threshold:  req.Threshold,
		Ciphertext: dem,
	}
	for i, id := range c.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pub, err := c.servers[id].PublicKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyServer, id, err)
		}
		eph, err := ec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("seal: ephemeral key: %w", err)
		}
		shared, err := ecdh(eph, pub)
		if err != nil {
			return nil, err
		}
		key, err := deriveKey(shared, identity, ShareKeyInfo)
		if err != nil {
			return nil, err
		}
		wrapped, err := aesGCMEncrypt(shares[i].Y, key)
		if err != nil {
			return nil, err
		}
		obj.Shares = append(obj.Shares, WrappedShare{
			ServerID:     id,
			Index:        shares[i].X,
			EphemeralPub: eph.PubKey().Compressed(),
			Wrapped:      wrapped,
		})
	}

	c.log.WithFields(logrus.Fields{
		"package":   req.PackageID,
		"id":        req.ID,
		"threshold": req.Threshold,
		"servers":   len(obj.Shares),
	}).Debug("seal: encrypted object")
	return obj.Bytes(), nil
}

// Decrypt asks key servers, in object order, for shares until the threshold
// is met, then opens the data.
func (c *Client) Decrypt(ctx context.Context, req *DecryptRequest) ([]byte, error) {
	if req.Session == nil {
		return nil, ErrIncompleteSession
	}
	if req.Session.IsExpired(time.Now()) {
		return nil, ErrSessionExpired
	}
	obj, err := ParseObject(req.Ciphertext)
	if err != nil {
		return nil, err
	}
	if obj.PackageID != req.Session.PackageID() {
		return nil, fmt.Errorf("%w: session is for package %s, object for %s",
			ErrInvalidSession, req.Session.PackageID(), obj.PackageID)
	}

	identity := Identity(obj.PackageID, obj.ID)
	cert := req.Session.Certificate()
	var (
		collected []share
		errs      []error
	)
	for _, ws := range obj.Shares {
		if len(collected) == obj.Threshold {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y, err := c.fetchShare(ctx, obj, ws, identity, cert, req)
		if err != nil {
			c.log.WithError(err).WithField("server", ws.ServerID).Warn("seal: key server share failed")
			errs = append(errs, err)
			continue
		}
		collected = append(collected, share{X: ws.Index, Y: y})
	}
	if len(collected) < obj.Threshold {
		return nil, fmt.Errorf("%w: got %d of %d: %w", ErrNotEnoughShares, len(collected), obj.Threshold, errors.Join(errs...))
	}

	dek, err := combineShares(collected)
	if err != nil {
		return nil, err
	}
	return aesGCMDecrypt(obj.Ciphertext, dek)
}

func (c *Client) fetchShare(ctx context.Context, obj *EncryptedObject, ws WrappedShare, identity []byte, cert *Certificate, req *DecryptRequest) ([]byte, error) {
	server, ok := c.servers[ws.ServerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyServer, ws.ServerID)
	}
	pub, err := server.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyServer, ws.ServerID, err)
	}
	respKey, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("seal: response key: %w", err)
	}
	respPub := respKey.PubKey().Compressed()
	reqSig, err := req.Session.SignRequest(req.TxBytes, ws.EphemeralPub, respPub)
	if err != nil {
		return nil, err
	}

	resp, err := server.FetchKey(ctx, &FetchKeyRequest{
		PackageID:        obj.PackageID,
		ID:               obj.ID,
		EphemeralPub:     ws.EphemeralPub,
		ResponsePub:      respPub,
		Certificate:      cert,
		RequestSignature: reqSig,
		TxBytes:          req.TxBytes,
	})
	if err != nil {
		return nil, err
	}

	respShared, err := ecdh(respKey, pub)
	if err != nil {
		return nil, err
	}
	unwrapKey, err := deriveKey(respShared, identity, ResponseKeyInfo)
	if err != nil {
		return nil, err
	}
	shared, err := aesGCMDecrypt(resp, unwrapKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: response: %w", ErrKeyServer, ws.ServerID, err)
	}
	shareKey, err := deriveKey(shared, identity, ShareKeyInfo)
	if err != nil {
		return nil, err
	}
	return aesGCMDecrypt(ws.Wrapped, shareKey)
}
