package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/logging"
)

// RegistrationHeader carries the registration digest on sliver uploads.
const RegistrationHeader = "X-Registration-Digest"

// maxSliverBody bounds a JSON-encoded sliver (base64 inflates by 4/3).
const maxSliverBody = 2*blobfile.MaxPayloadSize + 4096

type errorResponse struct {
	Error string `json:"error"`
}

// NodeHandler exposes a NodeClient over HTTP:
//
//	PUT /v1/blobs/{id}/slivers/{index}  sliver JSON -> Confirmation
//	GET /v1/blobs/{id}/slivers/{index}  -> sliver JSON
type NodeHandler struct {
	mux  *http.ServeMux
	node NodeClient
	log  *logrus.Logger
}

// NewNodeHandler returns the HTTP handler for node.
func NewNodeHandler(node NodeClient, log *logrus.Logger) *NodeHandler {
	h := &NodeHandler{
		mux:  http.NewServeMux(),
		node: node,
		log:  logging.OrDiscard(log),
	}
	h.mux.HandleFunc("PUT /v1/blobs/{id}/slivers/{index}", h.handleStore)
	h.mux.HandleFunc("GET /v1/blobs/{id}/slivers/{index}", h.handleRead)
	return h
}

func (h *NodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func parseIndex(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid sliver index %q", s)
	}
	return uint8(n), nil
}

func (h *NodeHandler) handleStore(w http.ResponseWriter, r *http.Request) {
	blobID := r.PathValue("id")
	index, err := parseIndex(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSliverBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to read body: %v", err)})
		return
	}
	var s blobfile.Sliver
	if err := json.Unmarshal(body, &s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid json: %v", err)})
		return
	}
	if s.BlobID != blobID || s.Index != index {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "sliver does not match path"})
		return
	}

	registration := r.Header.Get(RegistrationHeader)
	conf, err := h.node.StoreSliver(r.Context(), &s, registration)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrUnregistered):
			status = http.StatusForbidden
		case errors.Is(err, blobfile.ErrInvalidSliver):
			status = http.StatusBadRequest
		}
		h.log.WithError(err).WithFields(logrus.Fields{
			"blob_id":      blobID,
			"index":        index,
			"registration": registration,
		}).Warn("node: sliver refused")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	h.log.WithFields(logrus.Fields{"blob_id": blobID, "index": index}).Debug("node: sliver stored")
	writeJSON(w, http.StatusOK, conf)
}

func (h *NodeHandler) handleRead(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s, err := h.node.ReadSliver(r.Context(), r.PathValue("id"), index)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrSliverNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HTTPNode is a storage node reached over HTTP.
type HTTPNode struct {
	baseURL string
	client  *http.Client
}

// Compile-time interface check.
var _ NodeClient = (*HTTPNode)(nil)

// NewHTTPNode returns a client for the node at baseURL.
func NewHTTPNode(baseURL string) *HTTPNode {
	return &HTTPNode{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (n *HTTPNode) ID() string { return n.baseURL }

func (n *HTTPNode) sliverURL(blobID string, index uint8) string {
	return fmt.Sprintf("%s/v1/blobs/%s/slivers/%d", n.baseURL, url.PathEscape(blobID), index)
}

func (n *HTTPNode) StoreSliver(ctx context.Context, s *blobfile.Sliver, registration string) (*Confirmation, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("walrus: marshal sliver: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, n.sliverURL(s.BlobID, s.Index), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("walrus: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RegistrationHeader, registration)

	var conf Confirmation
	if err := n.do(req, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (n *HTTPNode) ReadSliver(ctx context.Context, blobID string, index uint8) (*blobfile.Sliver, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.sliverURL(blobID, index), nil)
	if err != nil {
		return nil, fmt.Errorf("walrus: create request: %w", err)
	}
	var s blobfile.Sliver
	if err := n.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (n *HTTPNode) do(req *http.Request, out interface{}) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNodeRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		err := fmt.Errorf("%s: HTTP %d: %s", n.baseURL, resp.StatusCode, e.Error)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrSliverNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnregistered, err)
		}
		return fmt.Errorf("%w: %w", ErrNodeRequest, err)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSliverBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrNodeRequest, err)
	}
	return nil
}
