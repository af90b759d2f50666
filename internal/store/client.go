// Package store implements the search-engine-backed conversation store.
// Conversations, messages and users live in Typesense collections; callers
// treat every failure here as a degraded mode, never a fatal one.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chaintalk-ai/chaintalk/internal/config"
)

// Client is a thin HTTP client for the Typesense API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a store client from configuration.
func NewClient(cfg config.StoreConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL(),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// apiError carries the status and body snippet of a failed store call.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("store: status %d: %s", e.Status, e.Body)
}

// isNotFound reports whether err is a 404 from the store.
func isNotFound(err error) bool {
	apiErr, ok := err.(*apiError)
	return ok && apiErr.Status == http.StatusNotFound
}

// do issues a JSON request against the store and decodes the response
// into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-TYPESENSE-API-KEY", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &apiError{Status: resp.StatusCode, Body: snippet}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Healthy reports whether the store answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	var res struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &res); err != nil {
		return false
	}
	return res.OK
}

// searchResult is the generic shape of a Typesense search response.
type searchResult[T any] struct {
	Found int `json:"found"`
	Hits  []struct {
		Document T `json:"document"`
	} `json:"hits"`
}

// search runs a document search against one collection.
func search[T any](ctx context.Context, c *Client, collection string, params url.Values) (*searchResult[T], error) {
	var res searchResult[T]
	path := "/collections/" + collection + "/documents/search"
	if err := c.do(ctx, http.MethodGet, path, params, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
