// Package rest adapts a plain REST CRUD API to the possync.Remote contract.
// The server is the source of truth; this client only ever lists.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"possync"
)

const defaultTimeout = 15 * time.Second

// Client is a shared HTTP client for one API base URL. Timeouts live here:
// the sync core treats a timed-out request as an ordinary remote failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  func() string // optional bearer token source
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sets a source for the bearer token attached to each request.
func WithAuthToken(source func() string) Option {
	return func(c *Client) { c.authToken = source }
}

// NewClient creates a REST client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listEnvelope is the list-wrapped shape every entity endpoint returns:
// {success: bool, data: {<entityPluralName>: [...]}}.
type listEnvelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

// Resource is the possync.Remote for one entity type: a path plus the plural
// field name under which the endpoint nests its array.
type Resource[T possync.Record] struct {
	client      *Client
	path        string
	pluralField string
}

// NewResource binds an entity endpoint, e.g. NewResource[Brand](c, "/brands", "brands").
func NewResource[T possync.Record](client *Client, path, pluralField string) *Resource[T] {
	return &Resource[T]{
		client:      client,
		path:        "/" + strings.Trim(path, "/"),
		pluralField: pluralField,
	}
}

var _ possync.Remote[possync.BaseRecord] = (*Resource[possync.BaseRecord])(nil)

// List fetches the full collection for the current tenant.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.baseURL+r.path, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: build request for %s: %w", r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.client.authToken != nil {
		if token := r.client.authToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: list %s: %w", r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("rest: read %s response: %w", r.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rest: list %s: unexpected status %d", r.path, resp.StatusCode)
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("rest: decode %s envelope: %w", r.path, err)
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "server reported failure"
		}
		return nil, fmt.Errorf("rest: list %s: %s", r.path, msg)
	}

	raw, ok := envelope.Data[r.pluralField]
	if !ok {
		return nil, fmt.Errorf("rest: list %s: field %q missing from payload", r.path, r.pluralField)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("rest: decode %s records: %w", r.path, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
