// Package httpclient is the concrete Search Backend Client (C8)
// implementation: a REST-over-HTTP client with retry/backoff on
// transport failures, leaving per-document bulk outcomes to the
// backend's own response body.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
	"github.com/kapral18/semantic-code-search-indexer/pkg/indexpipeline"
	"github.com/kapral18/semantic-code-search-indexer/pkg/searchbackend"
)

// Client is an HTTP-backed searchbackend.Client.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client
	maxRetries uint
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (timeouts, transport
// tuning, test doubles).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries overrides the default transport-level retry budget.
func WithMaxRetries(n uint) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBasicAuth authenticates with HTTP basic auth instead of an API key,
// for backends configured with a username/password pair
// (internal/config.BackendConfig's third auth shape).
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// New builds a Client against baseURL, authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ searchbackend.Client = (*Client)(nil)

// EnsureIndex implements searchbackend.Client.
func (c *Client) EnsureIndex(ctx context.Context, index string) error {
	return c.put(ctx, "/"+url.PathEscape(index), nil, nil)
}

// EnsureSettingsIndex implements searchbackend.Client.
func (c *Client) EnsureSettingsIndex(ctx context.Context, index string) error {
	return c.EnsureIndex(ctx, index)
}

// DeleteIndex implements searchbackend.Client.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	return c.delete(ctx, "/"+url.PathEscape(index))
}

type bulkItemResponse struct {
	ChunkHash string `json:"chunk_hash"`
	Error     string `json:"error,omitempty"`
}

type bulkResponse struct {
	Items []bulkItemResponse `json:"items"`
}

// BulkIndex implements searchbackend.Client. Document id is the chunk's
// ChunkHash; on transport failure the whole batch is reported failed,
// per the design's "must still make progress" requirement.
func (c *Client) BulkIndex(ctx context.Context, index string, chunks []chunk.Chunk) (searchbackend.BulkResult, error) {
	payload, err := json.Marshal(chunks)
	if err != nil {
		return searchbackend.BulkResult{}, fmt.Errorf("marshal bulk payload: %w", err)
	}

	var resp bulkResponse

	err = c.doWithRetry(ctx, func() error {
		return c.postJSON(ctx, "/"+url.PathEscape(index)+"/_bulk", payload, &resp)
	})
	if err != nil {
		failed := make([]searchbackend.BulkFailure, 0, len(chunks))
		for _, ch := range chunks {
			failed = append(failed, searchbackend.BulkFailure{Chunk: ch, Error: err.Error()})
		}

		return searchbackend.BulkResult{Failed: failed}, nil
	}

	byHash := make(map[string]chunk.Chunk, len(chunks))
	for _, ch := range chunks {
		byHash[ch.ChunkHash] = ch
	}

	result := searchbackend.BulkResult{}

	for _, item := range resp.Items {
		ch, ok := byHash[item.ChunkHash]
		if !ok {
			continue
		}

		if item.Error == "" {
			result.Succeeded = append(result.Succeeded, ch)
		} else {
			result.Failed = append(result.Failed, searchbackend.BulkFailure{Chunk: ch, Error: item.Error})
		}
	}

	return result, nil
}

// DeleteByFilePath implements searchbackend.Client.
func (c *Client) DeleteByFilePath(ctx context.Context, index, path string) error {
	body := map[string]string{"file_path": path}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal delete-by-path body: %w", err)
	}

	return c.doWithRetry(ctx, func() error {
		return c.postJSON(ctx, "/"+url.PathEscape(index)+"/_delete_by_query", payload, nil)
	})
}

type anchorDocument struct {
	Branch string `json:"branch"`
	Hash   string `json:"hash"`
}

// GetAnchor implements searchbackend.Client.
func (c *Client) GetAnchor(ctx context.Context, settingsIndex, branch string) (string, error) {
	var doc anchorDocument

	err := c.doWithRetry(ctx, func() error {
		found, getErr := c.getJSON(ctx, "/"+url.PathEscape(settingsIndex)+"/_doc/"+url.PathEscape(branch), &doc)
		if getErr != nil {
			return getErr
		}

		if !found {
			doc = anchorDocument{}
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: get anchor for %s: %v", indexpipeline.ErrBackendUnavailable, branch, err)
	}

	return doc.Hash, nil
}

// PutAnchor implements searchbackend.Client.
func (c *Client) PutAnchor(ctx context.Context, settingsIndex, branch, hash string) error {
	payload, err := json.Marshal(anchorDocument{Branch: branch, Hash: hash})
	if err != nil {
		return fmt.Errorf("marshal anchor document: %w", err)
	}

	err = c.doWithRetry(ctx, func() error {
		return c.put(ctx, "/"+url.PathEscape(settingsIndex)+"/_doc/"+url.PathEscape(branch), payload, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: put anchor for %s: %v", indexpipeline.ErrBackendUnavailable, branch, err)
	}

	return nil
}

func (c *Client) doWithRetry(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithMaxTries(c.maxRetries))

	return err
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body []byte, out any) error {
	return c.doRequest(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}

	return true, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) applyAuth(req *http.Request) {
	switch {
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}
