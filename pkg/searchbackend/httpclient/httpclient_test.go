package httpclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkIndexReconcilesPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"chunk_hash": "h1"},
				{"chunk_hash": "h2", "error": "mapper_parsing_exception"},
				{"chunk_hash": "h3", "error": "internal_server_error"},
			},
		})
	}))
	defer srv.Close()

	client := httpclient.New(srv.URL, "")

	chunks := []chunk.Chunk{
		{ChunkHash: "h1"},
		{ChunkHash: "h2"},
		{ChunkHash: "h3"},
	}

	result, err := client.BulkIndex(t.Context(), "code", chunks)
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 1)
	assert.Len(t, result.Failed, 2)
	assert.Equal(t, "h1", result.Succeeded[0].ChunkHash)
}

func TestBulkIndexTransportFailureReportsAllFailed(t *testing.T) {
	client := httpclient.New("http://127.0.0.1:0", "", httpclient.WithMaxRetries(1))

	chunks := []chunk.Chunk{{ChunkHash: "h1"}, {ChunkHash: "h2"}}

	result, err := client.BulkIndex(t.Context(), "code", chunks)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	assert.Len(t, result.Failed, 2)
}

func TestGetAnchorReturnsEmptyWhenNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := httpclient.New(srv.URL, "")

	hash, err := client.GetAnchor(t.Context(), "settings", "main")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestPutAnchorThenGetAnchorRoundTrips(t *testing.T) {
	var stored map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/settings/_doc/main", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var doc map[string]string
			_ = json.NewDecoder(r.Body).Decode(&doc)
			stored = doc
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(stored)
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := httpclient.New(srv.URL, "")

	require.NoError(t, client.PutAnchor(t.Context(), "settings", "main", "abc123"))

	hash, err := client.GetAnchor(t.Context(), "settings", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}
