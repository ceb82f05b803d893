// Package access decides whether a wallet address may use the vault at all.
package access

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCheckFailed indicates the access service could not answer.
	ErrCheckFailed = errors.New("access: check failed")

	// ErrEmptyAddress indicates a check without an address.
	ErrEmptyAddress = errors.New("access: empty address")
)

// Checker reports whether address is authorized.
type Checker interface {
	Check(ctx context.Context, address string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, address string) (bool, error)

func (f CheckerFunc) Check(ctx context.Context, address string) (bool, error) { return f(ctx, address) }

// ValidateResponse is the body of GET /api/validate-wallet/{address}.
type ValidateResponse struct {
	Authorized bool   `json:"authorized"`
	Address    string `json:"address,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HTTPChecker asks a remote validation service.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

var _ Checker = (*HTTPChecker)(nil)

// NewHTTPChecker returns a checker for the service at baseURL.
func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, ErrEmptyAddress
	}
	u := c.baseURL + "/api/validate-wallet/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("access: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body ValidateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: HTTP %d: decode: %w", ErrCheckFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: HTTP %d: %s", ErrCheckFailed, resp.StatusCode, body.Error)
	}
	return body.Authorized, nil
}

// AllowList authorizes a fixed set of addresses, compared case-insensitively.
type AllowList struct {
	mu    sync.RWMutex
	addrs map[string]struct{}
}

var _ Checker = (*AllowList)(nil)

// NewAllowList returns a list holding addrs.
func NewAllowList(addrs ...string) *AllowList {
	l := &AllowList{addrs: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		l.Add(a)
	}
	return l
}

// LoadAllowList reads one address per line. Blank lines are skipped.
func LoadAllowList(path string) (*AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("access: open allow list: %w", err)
	}
	defer func() { _ = f.Close() }()

	l := NewAllowList()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("access: read allow list: %w", err)
	}
	return l, nil
}

func normalize(addr string) string { return strings.ToLower(strings.TrimSpace(addr)) }

// Add authorizes addr.
func (l *AllowList) Add(addr string) {
	addr = normalize(addr)
	if addr == "" {
		return
	}
	l.mu.Lock()
	l.addrs[addr] = struct{}{}
	l.mu.Unlock()
}

// Len returns the number of addresses.
func (l *AllowList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addrs)
}

func (l *AllowList) Check(_ context.Context, address string) (bool, error) {
	if address == "" {
		return false, ErrEmptyAddress
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.addrs[normalize(address)]
	return ok, nil
}
