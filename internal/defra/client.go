// Package defra talks to a DefraDB node over its HTTP API. Folio keeps
// learned url patterns, translation records, usage metrics, and settings
// in Defra collections; this package is the collection-agnostic plumbing
// those stores share, plus the Docker lifecycle for the node itself.
package defra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnhealthy is returned when the node fails its health check.
	ErrUnhealthy = errors.New("defra health check failed")

	// ErrSinkClosed is returned for writes sent after the sink shut down.
	ErrSinkClosed = errors.New("sink closed")
)

// Client issues GraphQL requests against one DefraDB node.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the node at url.
func NewClient(url string) *Client {
	return &Client{
		url: strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GQLRequest is the wire shape of a GraphQL request.
type GQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GQLResponse is the wire shape of a GraphQL response.
type GQLResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []GQLError     `json:"errors,omitempty"`
}

// GQLError is one GraphQL-level error.
type GQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Error returns the first GraphQL error message, or "" when the
// response carried none.
func (r *GQLResponse) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// HealthCheck probes the node's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/health-check", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Execute sends one GraphQL document with optional variables. A non-nil
// response can still carry GraphQL-level errors; callers check Error().
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*GQLResponse, error) {
	body, err := json.Marshal(GQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/v0/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("defra server error (status %d): %s", resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("defra returned empty response (status %d)", resp.StatusCode)
	}

	var gql GQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w (body: %s)", err, string(raw))
	}
	return &gql, nil
}

// Query executes a read-only document with no variables.
func (c *Client) Query(ctx context.Context, query string) (*GQLResponse, error) {
	return c.Execute(ctx, query, nil)
}

// AddSchema registers a collection schema (SDL) with the node. Applying
// a schema that already exists is an error at the node.
func (c *Client) AddSchema(ctx context.Context, schema string) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/v0/schema", strings.NewReader(schema))
	if err != nil {
		return fmt.Errorf("build schema request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("schema request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("schema error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Create inserts a document into a collection and returns its docID.
func (c *Client) Create(ctx context.Context, collection string, input map[string]any) (string, error) {
	inputGQL, err := mapToGraphQLInput(input)
	if err != nil {
		return "", fmt.Errorf("build create input: %w", err)
	}
	mutation := fmt.Sprintf(`mutation { create_%s(input: %s) { _docID } }`, collection, inputGQL)
	return c.mutate(ctx, mutation, "create_"+collection)
}

// Update patches the document with the given docID.
func (c *Client) Update(ctx context.Context, collection string, docID string, input map[string]any) error {
	inputGQL, err := mapToGraphQLInput(input)
	if err != nil {
		return fmt.Errorf("build update input: %w", err)
	}
	mutation := fmt.Sprintf(`mutation { update_%s(docID: %q, input: %s) { _docID } }`, collection, docID, inputGQL)
	_, err = c.mutate(ctx, mutation, "update_"+collection)
	return err
}

// Delete removes the document with the given docID.
func (c *Client) Delete(ctx context.Context, collection string, docID string) error {
	mutation := fmt.Sprintf(`mutation { delete_%s(docID: %q) { _docID } }`, collection, docID)
	_, err := c.mutate(ctx, mutation, "delete_"+collection)
	return err
}

// Upsert updates the single document matching filter, or creates one
// from createInput when nothing matches. The filter must match at most
// one document; Defra rejects multi-match upserts. The pattern store
// leans on this to keep one pattern row per domain.
func (c *Client) Upsert(ctx context.Context, collection string, filter, createInput, updateInput map[string]any) (string, error) {
	filterGQL, err := mapToGraphQLInput(filter)
	if err != nil {
		return "", fmt.Errorf("build upsert filter: %w", err)
	}
	createGQL, err := mapToGraphQLInput(createInput)
	if err != nil {
		return "", fmt.Errorf("build upsert create input: %w", err)
	}
	updateGQL, err := mapToGraphQLInput(updateInput)
	if err != nil {
		return "", fmt.Errorf("build upsert update input: %w", err)
	}

	mutation := fmt.Sprintf(`mutation { upsert_%s(filter: %s, create: %s, update: %s) { _docID } }`,
		collection, filterGQL, createGQL, updateGQL)
	return c.mutate(ctx, mutation, "upsert_"+collection)
}

// mutate executes a mutation document and pulls the docID out of the
// result list keyed by the mutation name.
func (c *Client) mutate(ctx context.Context, mutation, key string) (string, error) {
	resp, err := c.Execute(ctx, mutation, nil)
	if err != nil {
		return "", err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return "", fmt.Errorf("%s: %s", key, errMsg)
	}

	docs, ok := resp.Data[key].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected %s response: %+v", key, resp.Data)
	}
	if len(docs) == 0 {
		// Defra reports update/delete of a missing docID as an empty
		// result list rather than an error.
		return "", nil
	}
	doc, ok := docs[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected %s response: %+v", key, resp.Data)
	}
	docID, _ := doc["_docID"].(string)
	return docID, nil
}

// mapToGraphQLInput renders a document map as a GraphQL input object.
func mapToGraphQLInput(input map[string]any) (string, error) {
	var parts []string
	for k, v := range input {
		rendered, err := valueToGraphQL(v)
		if err != nil {
			return "", fmt.Errorf("render value for %q: %w", k, err)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, rendered))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// valueToGraphQL renders one Go value as a GraphQL literal.
func valueToGraphQL(v any) (string, error) {
	switch val := v.(type) {
	case string:
		// JSON string encoding, not %q: Go's quoting emits \a, \v and
		// \xHH escapes that GraphQL does not accept.
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float64:
		return fmt.Sprintf("%v", val), nil
	case bool:
		return fmt.Sprintf("%v", val), nil
	case map[string]any:
		return mapToGraphQLInput(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			rendered, err := valueToGraphQL(item)
			if err != nil {
				return "", err
			}
			items = append(items, rendered)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("marshal value: %w", err)
		}
		return string(b), nil
	}
}
