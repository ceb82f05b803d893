package seal

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/logging"
)

const maxRequestBody = 1 << 20

type serviceResponse struct {
	ID        string `json:"id"`
	PublicKey string `json:"public_key"`
}

type fetchKeyResponse struct {
	Key []byte `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// KeyServerHandler serves a LocalKeyServer over HTTP:
//
//	GET  /v1/service    -> {"id", "public_key"}
//	POST /v1/fetch_key  -> {"key"}
type KeyServerHandler struct {
	mux    *http.ServeMux
	server *LocalKeyServer
	log    *logrus.Logger
}

// NewKeyServerHandler returns the HTTP handler for server.
func NewKeyServerHandler(server *LocalKeyServer, log *logrus.Logger) *KeyServerHandler {
	h := &KeyServerHandler{
		mux:    http.NewServeMux(),
		server: server,
		log:    logging.OrDiscard(log),
	}
	h.mux.HandleFunc("GET /v1/service", h.handleService)
	h.mux.HandleFunc("POST /v1/fetch_key", h.handleFetchKey)
	return h
}

func (h *KeyServerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *KeyServerHandler) handleService(w http.ResponseWriter, r *http.Request) {
	pub, _ := h.server.PublicKey(r.Context())
	writeJSON(w, http.StatusOK, serviceResponse{
		ID:        h.server.ID(),
		PublicKey: hex.EncodeToString(pub.Compressed()),
	})
}

func (h *KeyServerHandler) handleFetchKey(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to read body: %v", err)})
		return
	}
	var req FetchKeyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid json: %v", err)})
		return
	}

	key, err := h.server.FetchKey(r.Context(), &req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrInvalidCertificate):
			status = http.StatusForbidden
		case errors.Is(err, ErrSessionExpired):
			status = http.StatusUnauthorized
		}
		h.log.WithError(err).WithFields(logrus.Fields{
			"package": req.PackageID,
			"id":      req.ID,
		}).Warn("keyserver: fetch_key refused")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	var user string
	if req.Certificate != nil {
		user = req.Certificate.User
	}
	h.log.WithFields(logrus.Fields{
		"package": req.PackageID,
		"id":      req.ID,
		"user":    user,
	}).Info("keyserver: key released")
	writeJSON(w, http.StatusOK, fetchKeyResponse{Key: key})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HTTPKeyServer is a KeyServer reached over HTTP.
type HTTPKeyServer struct {
	baseURL string
	id      string
	pub     *ec.PublicKey
	client  *http.Client
}

// Compile-time interface check.
var _ KeyServer = (*HTTPKeyServer)(nil)

// DialKeyServer fetches the service description at baseURL.
func DialKeyServer(ctx context.Context, baseURL string) (*HTTPKeyServer, error) {
	s := &HTTPKeyServer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	var svc serviceResponse
	if err := s.do(ctx, http.MethodGet, "/v1/service", nil, &svc); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(svc.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: public key: %w", ErrKeyServer, baseURL, err)
	}
	pub, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: public key: %w", ErrKeyServer, baseURL, err)
	}
	if svc.ID == "" {
		return nil, fmt.Errorf("%w: %s: empty service id", ErrKeyServer, baseURL)
	}
	s.id, s.pub = svc.ID, pub
	return s, nil
}

func (s *HTTPKeyServer) ID() string { return s.id }

func (s *HTTPKeyServer) PublicKey(context.Context) (*ec.PublicKey, error) { return s.pub, nil }

func (s *HTTPKeyServer) FetchKey(ctx context.Context, req *FetchKeyRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("seal: marshal request: %w", err)
	}
	var resp fetchKeyResponse
	if err := s.do(ctx, http.MethodPost, "/v1/fetch_key", body, &resp); err != nil {
		return nil, err
	}
	return resp.Key, nil
}

func (s *HTTPKeyServer) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("seal: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyServer, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		err := fmt.Errorf("%w: %s: HTTP %d: %s", ErrKeyServer, s.baseURL, resp.StatusCode, e.Error)
		switch resp.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrKeyServer, err)
	}
	return nil
}
