package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitfsorg/sealvault-go/identity"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultWaitTimeout  = 60 * time.Second
)

// RPCClient is a JSON-RPC 2.0 client for a Sui-style full node.
type RPCClient struct {
	url          string
	client       *http.Client
	nextID       atomic.Int64
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// Compile-time interface check.
var _ Service = (*RPCClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("chain: rpc error %d: %s", e.Code, e.Message)
}

// NewRPCClient creates a JSON-RPC client for cfg.URL.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	c := &RPCClient{
		url:          cfg.URL,
		pollInterval: cfg.PollInterval,
		waitTimeout:  cfg.WaitTimeout,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.waitTimeout <= 0 {
		c.waitTimeout = defaultWaitTimeout
	}
	return c
}

// Call invokes a JSON-RPC method and decodes the result into result.
//
// Call returns ErrConnectionFailed if the HTTP request fails, ErrInvalidResponse
// if the response cannot be decoded, and *RPCError for node-level errors.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chain: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}

// txBlockResponse is the subset of a transaction block response we read.
type txBlockResponse struct {
	Digest         string  `json:"digest"`
	RawTransaction string  `json:"rawTransaction"`
	Checkpoint     *string `json:"checkpoint"`
	Effects        *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

func (r *txBlockResponse) receipt() (*Receipt, error) {
	if r.Digest == "" || r.Effects == nil {
		return nil, fmt.Errorf("%w: missing digest or effects", ErrInvalidResponse)
	}
	out := &Receipt{
		Digest:     r.Digest,
		Status:     Status(r.Effects.Status.Status),
		Error:      r.Effects.Status.Error,
		RecordedAt: time.Now(),
	}
	if r.Checkpoint != nil {
		cp, err := strconv.ParseUint(*r.Checkpoint, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: checkpoint %q", ErrInvalidResponse, *r.Checkpoint)
		}
		out.Checkpoint = cp
		out.Finalized = true
	}
	if r.RawTransaction != "" {
		raw, err := base64.StdEncoding.DecodeString(r.RawTransaction)
		if err != nil {
			return nil, fmt.Errorf("%w: raw transaction: %w", ErrInvalidResponse, err)
		}
		tx, err := ParseTransaction(raw)
		if err != nil {
			return nil, err
		}
		out.Transaction = tx
	}
	return out, nil
}

var txBlockOptions = map[string]bool{
	"showEffects":  true,
	"showRawInput": true,
}

// ExecuteTransaction submits a signed transaction.
func (c *RPCClient) ExecuteTransaction(ctx context.Context, txBytes []byte, sig *identity.Signature) (*Receipt, error) {
	if sig == nil {
		return nil, ErrNilParam
	}
	var resp txBlockResponse
	err := c.Call(ctx, "sui_executeTransactionBlock", []interface{}{
		base64.StdEncoding.EncodeToString(txBytes),
		[]string{sig.Serialize()},
		txBlockOptions,
		"WaitForLocalExecution",
	}, &resp)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: %w", ErrTxRejected, err)
		}
		return nil, err
	}
	return resp.receipt()
}

// GetTransaction fetches the current receipt of digest.
func (c *RPCClient) GetTransaction(ctx context.Context, digest string) (*Receipt, error) {
	var resp txBlockResponse
	err := c.Call(ctx, "sui_getTransactionBlock", []interface{}{digest, txBlockOptions}, &resp)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && isNotFound(rpcErr) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, digest)
		}
		return nil, err
	}
	return resp.receipt()
}

func isNotFound(e *RPCError) bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "could not find") || strings.Contains(msg, "not found")
}

// WaitForTransaction polls GetTransaction until digest is checkpointed, the
// context is done, or the client's wait timeout elapses.
func (c *RPCClient) WaitForTransaction(ctx context.Context, digest string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetTransaction(ctx, digest)
		switch {
		case err == nil && receipt.Finalized:
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w: %s: %s", ErrTxFailed, digest, receipt.Error)
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ErrTxNotFound):
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrFinalityTimeout, digest, ctx.Err())
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrFinalityTimeout, digest, ctx.Err())
		case <-ticker.C:
		}
	}
}
