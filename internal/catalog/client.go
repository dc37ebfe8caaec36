// Package catalog implements the external metadata collaborator
// SearchOrchestrator's step 1 depends on: resolving an opaque catalog id into
// a canonical title, year, and alternate names (§4.4, §6 "Provider content").
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/streamgate/streamgate/internal/httpclient"
	"github.com/streamgate/streamgate/internal/providers"
)

// Metadata is the resolved catalog entry for a SearchRequest.
type Metadata struct {
	CanonicalName  string
	OriginalName   string
	Year           int
	AlternateNames []string
}

// Client fetches catalog metadata over HTTP, following the
// GET {baseURL}/meta/{type}/{id}.json convention.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client pointed at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.New(httpclient.WithTimeout(timeout)),
	}
}

type catalogResponse struct {
	Meta struct {
		Name           string   `json:"name"`
		OriginalName   string   `json:"originalName"`
		Year           int      `json:"year"`
		ReleaseInfo    string   `json:"releaseInfo"`
		AlternateNames []string `json:"alternateNames"`
	} `json:"meta"`
}

// Lookup resolves catalogID into Metadata. mediaType selects the "movie" or
// "series" path segment.
func (c *Client) Lookup(ctx context.Context, catalogID string, mediaType providers.MediaType) (*Metadata, error) {
	endpoint := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, mediaType, catalogID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog lookup returned http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse catalog response: %w", err)
	}
	if parsed.Meta.Name == "" {
		return nil, fmt.Errorf("catalog entry %s has no name", catalogID)
	}

	return &Metadata{
		CanonicalName:  parsed.Meta.Name,
		OriginalName:   parsed.Meta.OriginalName,
		Year:           parsed.Meta.Year,
		AlternateNames: parsed.Meta.AlternateNames,
	}, nil
}
