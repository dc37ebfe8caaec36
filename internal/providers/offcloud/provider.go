// Package offcloud implements a cached-hash debrid indexer ProviderSearch
// adapter: unlike 4KHDHub's HTML scraping, it queries a JSON API that
// reports whether a pre-known content hash is already cached on the
// debrid side, and returns the cached hash's direct URL immediately
// (§2 "cached-hash debrid indexers", §4.4's polymorphic ProviderSearch use).
package offcloud

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
	"github.com/streamgate/streamgate/internal/providers"
)

// Provider queries an OffCloud-compatible cloud-download API for cached
// content matching a search query.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Provider pointed at baseURL, authenticated with apiKey.
func New(baseURL, apiKey string, timeout time.Duration) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpclient.New(httpclient.WithTimeout(timeout)),
	}
}

func (p *Provider) Name() string { return "offcloud" }

type cloudSearchResult struct {
	Results []struct {
		FileName string  `json:"fileName"`
		URL      string  `json:"url"`
		Size     int64   `json:"size"`
		Year     int     `json:"year"`
		Cached   bool    `json:"cached"`
		Quality  string  `json:"quality"`
		Score    float64 `json:"score"`
	} `json:"results"`
}

// Search queries the cloud API for cached hits matching query. Only cached
// results are surfaced as candidates; uncached hits would require a debrid
// download-and-wait cycle this gateway's Usenet-only §4.6 lifecycle does not
// model, so they are dropped here rather than surfaced as unusable
// candidates.
func (p *Provider) Search(ctx context.Context, query string, mediaType providers.MediaType) ([]providers.CandidateTitle, error) {
	endpoint := fmt.Sprintf("%s/api/cloud/search?query=%s&type=%s&key=%s",
		p.baseURL, url.QueryEscape(query), string(mediaType), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("offcloud search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("offcloud search returned http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read offcloud response: %w", err)
	}

	var parsed cloudSearchResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse offcloud response: %w", err)
	}

	var candidates []providers.CandidateTitle
	for _, r := range parsed.Results {
		if !r.Cached {
			continue
		}
		candidates = append(candidates, providers.CandidateTitle{
			Title:      r.FileName,
			URL:        r.URL,
			Year:       r.Year,
			SourceTag:  p.Name(),
			RawFormats: []string{r.Quality},
		})
	}

	return candidates, nil
}

// LoadContentPage is a no-op for this provider: a cached-hash hit's URL is
// already the direct download link, so there is no separate detail page to
// parse (the interface still requires the method so the orchestrator can
// treat every ProviderSearch implementation polymorphically).
func (p *Provider) LoadContentPage(ctx context.Context, candidateURL string) (*providers.ContentPage, error) {
	return &providers.ContentPage{
		Title: candidateURL,
		Links: []providers.RawLink{{URL: candidateURL, SourceTag: p.Name()}},
	}, nil
}

// ResolveLink is the identity resolution for this provider: cached-hash
// results are already direct URLs by the time Search returns them.
func (p *Provider) ResolveLink(ctx context.Context, link providers.RawLink) (*providers.StreamDescriptor, error) {
	return &providers.StreamDescriptor{
		DisplayName: link.Title,
		Title:       link.Title,
		URL:         link.URL,
		SourceTag:   p.Name(),
	}, nil
}
