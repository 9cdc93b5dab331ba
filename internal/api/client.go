package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls a running folio server over HTTP. Every endpoint
// command goes through here.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. The timeout
// covers the slowest operations, uncached chapter fetches and
// translations, both of which can sit on outbound network calls.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// Get issues a GET and decodes the JSON response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.send(ctx, http.MethodGet, path, nil, result)
}

// Post issues a POST with a JSON body and decodes the response.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

// Patch issues a PATCH with a JSON body and decodes the response.
func (c *Client) Patch(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPatch, path, body, result)
}

// Put issues a PUT with a JSON body and decodes the response.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPut, path, body, result)
}

// Delete issues a DELETE, discarding any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.send(ctx, http.MethodDelete, path, nil, nil)
}

// send runs one request. A nil body sends no payload; a nil result
// discards the response.
func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(raw))
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ErrorResponse mirrors the server's error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
