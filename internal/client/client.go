// Package client is the HTTP client of the persistence store's API,
// used by the synchronization layer and the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"designmuse/internal/journal"
)

// Client talks to the store's HTTP surface. The zero base URL is a
// valid "not configured" state: every call fails with
// ErrNotConfigured and no network traffic happens.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL (e.g.
// "http://localhost:3001/api"). An empty URL yields an unconfigured
// client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a store base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// FetchWeek retrieves all entries and the note for a week.
func (c *Client) FetchWeek(ctx context.Context, weekID string) (*journal.WeekData, error) {
	var data journal.WeekData
	if err := c.do(ctx, "fetch week", "GET", "/weekly/"+url.PathEscape(weekID), nil, &data); err != nil {
		return nil, err
	}
	if data.Entries == nil {
		data.Entries = []journal.Entry{}
	}
	return &data, nil
}

// CreateEntry persists a new entry and returns it with its
// server-assigned identifier and timestamp.
func (c *Client) CreateEntry(ctx context.Context, e journal.Entry) (*journal.Entry, error) {
	var saved journal.Entry
	if err := c.do(ctx, "create entry", "POST", "/entries", e, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpdateEntry applies a partial update to an entry by identifier.
func (c *Client) UpdateEntry(ctx context.Context, id string, patch journal.EntryPatch) (*journal.Entry, error) {
	var updated journal.Entry
	if err := c.do(ctx, "update entry", "PATCH", "/entries/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SaveNote upserts the note content for a week.
func (c *Client) SaveNote(ctx context.Context, weekID, content string) error {
	body := map[string]string{"weekId": weekID, "content": content}
	return c.do(ctx, "save note", "POST", "/notes", body, nil)
}

// FetchImage downloads an image reference (e.g. "/images/<key>") from
// the store and returns it as a data URI. Image routes are mounted at
// the server root, not under /api.
func (c *Client) FetchImage(ctx context.Context, path string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	fullURL := strings.TrimSuffix(c.baseURL, "/api") + path
	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch image: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "fetch image", URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ServerError{Op: "fetch image", Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch image: read body: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// SearchHit is one full-text search result.
type SearchHit struct {
	ID        string              `json:"id"`
	WeekID    string              `json:"weekId"`
	DayKey    string              `json:"dayKey"`
	Caption   string              `json:"caption"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Search queries the store's full-text index.
func (c *Client) Search(ctx context.Context, query string) ([]SearchHit, error) {
	var resp struct {
		Results []SearchHit `json:"results"`
	}
	path := "/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, "search", "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &ServerError{Op: op, Status: resp.StatusCode, Message: errBody.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}
