// Package folder resolves human-entered folder names or ids against the
// external folder directory. The directory is read-only to this service.
package folder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docingest/internal/model"
)

var (
	// ErrNotFound covers both an absent folder and an inactive one.
	ErrNotFound = errors.New("folder: not found")
	// ErrDirectoryUnavailable means the directory call itself failed;
	// callers may retry, unlike ErrNotFound.
	ErrDirectoryUnavailable = errors.New("folder: directory unavailable")
)

// LookupKey selects how a folder identifier is interpreted.
type LookupKey int

const (
	ByID LookupKey = iota
	ByName
)

// Resolver maps a folder identifier to its canonical record.
type Resolver interface {
	Resolve(ctx context.Context, identifier string, by LookupKey) (*model.Folder, error)
}

// Client is an HTTP Resolver against the folder directory REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a directory client. The underlying transport is
// otel-instrumented so directory latency shows up on upload traces.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

var _ Resolver = (*Client)(nil)

// Resolve looks the folder up by id (GET /folders/{id}) or by name
// (GET /folders?name=). Inactive folders resolve as ErrNotFound.
func (c *Client) Resolve(ctx context.Context, identifier string, by LookupKey) (*model.Folder, error) {
	if identifier == "" {
		return nil, ErrNotFound
	}

	var endpoint string
	switch by {
	case ByID:
		endpoint = c.baseURL + "/folders/" + url.PathEscape(identifier)
	case ByName:
		endpoint = c.baseURL + "/folders?name=" + url.QueryEscape(identifier)
	default:
		return nil, fmt.Errorf("folder: unsupported lookup key %d", by)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("folder: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: directory returned %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	var f model.Folder
	if by == ByName {
		// Name lookups return a list; the directory guarantees unique
		// active names, so the first match wins.
		var list []model.Folder
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrDirectoryUnavailable, err)
		}
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		f = list[0]
	} else {
		if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrDirectoryUnavailable, err)
		}
	}

	if !f.IsActive {
		return nil, ErrNotFound
	}
	return &f, nil
}
