// Package fileserver is the collaborator HTTP client for the internal file
// server that lists, serves, and deletes files materializing on disk as
// SABnzbd downloads them (§6 "File server").
package fileserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamgate/streamgate/internal/httpclient"
)

// Client talks to one file-server instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a Client pointed at baseURL, authenticated via X-API-Key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpclient.NewLong(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// FileEntry describes one file reported by the listing endpoint.
type FileEntry struct {
	Path          string     `json:"path"`
	Name          string     `json:"name"`
	SizeBytes     int64      `json:"size_bytes"`
	ModifiedAt    time.Time  `json:"modified_at"`
	Completed     bool       `json:"completed"`
	WatchedPct    float64    `json:"watched_percent"`
	LastWatchedAt *time.Time `json:"last_watched_at,omitempty"`
}

// ArchiveStatus reports whether a path is (still) an unextracted archive.
type ArchiveStatus struct {
	Path       string `json:"path"`
	IsArchive  bool   `json:"is_archive"`
	Extracted  bool   `json:"extracted"`
	ArchiveExt string `json:"archive_ext"`
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	full := c.baseURL + endpoint
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, full, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, query)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("file server request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read file server response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("file server returned http %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse file server response: %w", err)
	}
	return nil
}

// List returns every file known to the file server under prefix (empty for
// the whole tree), used by the video-file discovery loop and StorageManager.
func (c *Client) List(ctx context.Context, prefix string) ([]FileEntry, error) {
	q := url.Values{}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	var entries []FileEntry
	if err := c.doJSON(ctx, http.MethodGet, "/api/list", q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CheckArchives reports the archive status of every file under prefix, used
// by §4.6 step 5's archive-extension policy check.
func (c *Client) CheckArchives(ctx context.Context, prefix string) ([]ArchiveStatus, error) {
	q := url.Values{}
	q.Set("prefix", prefix)
	var statuses []ArchiveStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/check-archives", q, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Delete removes path from the file server.
func (c *Client) Delete(ctx context.Context, path string) error {
	endpoint := "/" + strings.TrimPrefix(path, "/")
	return c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

// StreamURL builds the direct playable URL for path on this file server.
func (c *Client) StreamURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(path, "/"))
}

// ErrorVideoURL builds the URL for the pre-rendered error-as-video clip
// parameterized by message (§4.9).
func (c *Client) ErrorVideoURL(message string) string {
	return fmt.Sprintf("%s/error?message=%s", c.baseURL, url.QueryEscape(message))
}
