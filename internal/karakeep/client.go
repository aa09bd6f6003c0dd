// Package karakeep implements the Karakeep HTTP API client.
//
// The client covers the endpoints the sync engine consumes:
//   - GET  /api/v1/bookmarks            - paginated bookmark listing
//   - PATCH /api/v1/bookmarks/{id}      - partial update (note field)
//   - GET  /api/v1/highlights           - paginated highlight listing
//   - GET  /api/v1/assets/{id}          - binary asset download
//
// All requests carry a Bearer token. Responses larger than maxResponseSize
// are truncated to protect against unbounded reads.
package karakeep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultPageSize is the page size requested from listing endpoints.
const DefaultPageSize = 50

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 50 * 1024 * 1024 // 50MB

// Client is the Karakeep HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Karakeep client for the given server address.
// The address is the server root (e.g. https://keep.example.com); the
// /api/v1 prefix is appended per request.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// ListBookmarks fetches one page of the bookmark listing.
func (c *Client) ListBookmarks(ctx context.Context, opts ListOptions) (Page, error) {
	q := url.Values{}
	if opts.Archived != nil {
		q.Set("archived", strconv.FormatBool(*opts.Archived))
	}
	if opts.Favourited != nil {
		q.Set("favourited", strconv.FormatBool(*opts.Favourited))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q.Set("limit", strconv.Itoa(limit))

	var page Page
	if err := c.get(ctx, "/api/v1/bookmarks?"+q.Encode(), &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// UpdateNote writes a new note value to a bookmark (partial update).
func (c *Client) UpdateNote(ctx context.Context, id, note string) error {
	body := map[string]string{"note": note}
	return c.do(ctx, http.MethodPatch, "/api/v1/bookmarks/"+url.PathEscape(id), body, nil)
}

// ListHighlights fetches every highlight, paging until the cursor is
// exhausted.
func (c *Client) ListHighlights(ctx context.Context) ([]Highlight, error) {
	var all []Highlight
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(DefaultPageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page HighlightPage
		if err := c.get(ctx, "/api/v1/highlights?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		all = append(all, page.Highlights...)

		if page.NextCursor == nil || *page.NextCursor == "" {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

// DownloadAsset fetches the binary content of an asset.
func (c *Client) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/assets/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset download %s: unexpected status %d", id, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", id, err)
	}
	return data, nil
}

// AssetURL constructs the remote URL for an asset identifier.
func (c *Client) AssetURL(id string) string {
	return c.baseURL + "/api/v1/assets/" + url.PathEscape(id)
}

// BookmarkURL returns the canonical dashboard view of a bookmark.
func (c *Client) BookmarkURL(id string) string {
	return c.baseURL + "/dashboard/preview/" + url.PathEscape(id)
}

// get issues a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do issues a request with an optional JSON body and decodes the JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
