package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
	"github.com/bitfsorg/sealvault-go/identity"
)

func TestPublishOverHTTPNodes(t *testing.T) {
	ctx := context.Background()
	signer, err := identity.NewEd25519Keypair()
	require.NoError(t, err)
	mc := chain.NewMemoryChain()
	check := func(ctx context.Context, digest, blobID string) error {
		return chain.CheckRegistration(ctx, mc, digest, blobID)
	}

	var nodes []NodeClient
	for i := 0; i < 3; i++ {
		srv := httptest.NewServer(NewNodeHandler(NewMemoryNode(fmt.Sprintf("n%d", i), check), nil))
		t.Cleanup(srv.Close)
		nodes = append(nodes, NewHTTPNode(srv.URL+"/"))
	}
	client, err := NewClient(ClientConfig{DataShards: 2, ParityShards: 1, Nodes: nodes})
	require.NoError(t, err)
	h := &harness{chain: mc, signer: signer, client: client}

	flow := h.publish(t, testFiles())
	blob, err := client.GetBlob(ctx, flow.BlobID())
	require.NoError(t, err)
	assertFiles(t, testFiles(), blob.Files)

	_, err = nodes[0].ReadSliver(ctx, flow.BlobID(), 9)
	assert.ErrorIs(t, err, ErrSliverNotFound)
}

func TestHTTPNodeRefusesUnregistered(t *testing.T) {
	mc := chain.NewMemoryChain()
	node := NewMemoryNode("n", func(ctx context.Context, digest, blobID string) error {
		return chain.CheckRegistration(ctx, mc, digest, blobID)
	})
	srv := httptest.NewServer(NewNodeHandler(node, nil))
	defer srv.Close()

	enc, err := blobfile.NewEncoder(1, 1, blobfile.CompressNone)
	require.NoError(t, err)
	encoded, err := enc.Encode(testFiles())
	require.NoError(t, err)

	_, err = NewHTTPNode(srv.URL).StoreSliver(context.Background(), encoded.Slivers[0], "0xmissing")
	assert.ErrorIs(t, err, ErrUnregistered)
	assert.Zero(t, node.Len())
}

func TestNodeHandlerBadRequests(t *testing.T) {
	node := NewMemoryNode("n", nil)
	srv := httptest.NewServer(NewNodeHandler(node, nil))
	defer srv.Close()

	enc, err := blobfile.NewEncoder(1, 1, blobfile.CompressNone)
	require.NoError(t, err)
	encoded, err := enc.Encode(testFiles())
	require.NoError(t, err)
	body, err := json.Marshal(encoded.Slivers[0])
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		body []byte
	}{
		{"path mismatch", "/v1/blobs/other/slivers/0", body},
		{"bad index", "/v1/blobs/" + encoded.BlobID + "/slivers/x", body},
		{"bad json", "/v1/blobs/" + encoded.BlobID + "/slivers/0", []byte("{")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPut, srv.URL+tt.path, bytes.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	tampered := *encoded.Slivers[0]
	tampered.Data = append([]byte{0xff}, tampered.Data[1:]...)
	_, err = NewHTTPNode(srv.URL).StoreSliver(context.Background(), &tampered, "")
	assert.ErrorIs(t, err, ErrNodeRequest)
	assert.Zero(t, node.Len())
}

func TestHTTPNodeUnreachable(t *testing.T) {
	_, err := NewHTTPNode("http://127.0.0.1:1").ReadSliver(context.Background(), "bafkreix", 0)
	assert.ErrorIs(t, err, ErrNodeRequest)
}
