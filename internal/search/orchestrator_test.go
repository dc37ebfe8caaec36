package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamgate/streamgate/internal/catalog"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/titlematch"
	"github.com/streamgate/streamgate/internal/validation"
)

func TestGenerateQueriesDedupesNormalizedLowercase(t *testing.T) {
	meta := &catalog.Metadata{
		CanonicalName:  "The Matrix",
		Year:           1999,
		OriginalName:   "the matrix",
		AlternateNames: []string{"THE MATRIX"},
	}

	queries := generateQueries(meta)

	seen := make(map[string]int)
	for _, q := range queries {
		seen[normalize(q)]++
	}
	for k, count := range seen {
		if count > 1 {
			t.Fatalf("query %q appeared %d times, want deduplicated", k, count)
		}
	}

	found := false
	for _, q := range queries {
		if q == "The Matrix 1999" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a canonical-name-plus-year query, got %v", queries)
	}
}

func normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		out = append(out, r)
	}
	return string(out)
}

// fakeProvider is a minimal ProviderSearch used to drive Orchestrator.Search
// without any real HTTP scraping.
type fakeProvider struct {
	name       string
	candidates []providers.CandidateTitle
	pages      map[string]*providers.ContentPage
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query string, mediaType providers.MediaType) ([]providers.CandidateTitle, error) {
	return f.candidates, nil
}

func (f *fakeProvider) LoadContentPage(ctx context.Context, candidateURL string) (*providers.ContentPage, error) {
	if p, ok := f.pages[candidateURL]; ok {
		return p, nil
	}
	return nil, context.DeadlineExceeded
}

func (f *fakeProvider) ResolveLink(ctx context.Context, link providers.RawLink) (*providers.StreamDescriptor, error) {
	return &providers.StreamDescriptor{
		DisplayName: link.Title,
		Title:       link.Title,
		URL:         link.URL,
		Quality:     providers.Quality1080p,
		SourceTag:   f.name,
	}, nil
}

func newCatalogServer(t *testing.T, name string, year int) *catalog.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"name":"` + name + `","year":` + itoa(year) + `}}`))
	}))
	t.Cleanup(srv.Close)
	return catalog.New(srv.URL, 5*time.Second)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func TestSearchMovieHappyPath(t *testing.T) {
	cat := newCatalogServer(t, "The Shawshank Redemption", 1994)

	prov := &fakeProvider{
		name: "hdhub",
		candidates: []providers.CandidateTitle{
			{Title: "The Shawshank Redemption", URL: "https://provider.example/page1"},
		},
		pages: map[string]*providers.ContentPage{
			"https://provider.example/page1": {
				Year: 1994,
				Links: []providers.RawLink{
					{URL: "https://pixeldrain.com/u/abc", Title: "Shawshank 2160p"},
					{URL: "https://workers.dev/abc", Title: "Shawshank 1080p"},
				},
			},
		},
	}

	matcher := titlematch.New(64)
	validator := validation.New(validation.Options{Disabled: true})
	orch := New(cat, []providers.ProviderSearch{prov}, matcher, validator, Options{}, nil)

	streams, err := orch.Search(context.Background(), providers.SearchRequest{CatalogID: "tt0111161", Type: providers.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %d: %+v", len(streams), streams)
	}
}

func TestSearchYearGateRejectsFarMismatch(t *testing.T) {
	cat := newCatalogServer(t, "Some Movie", 2023)

	prov := &fakeProvider{
		name: "hdhub",
		candidates: []providers.CandidateTitle{
			{Title: "Some Movie", URL: "https://provider.example/wrong-year"},
		},
		pages: map[string]*providers.ContentPage{
			"https://provider.example/wrong-year": {Year: 2021, Links: []providers.RawLink{
				{URL: "https://pixeldrain.com/u/xyz", Title: "Some Movie 2021"},
			}},
		},
	}

	matcher := titlematch.New(64)
	validator := validation.New(validation.Options{Disabled: true})
	orch := New(cat, []providers.ProviderSearch{prov}, matcher, validator, Options{}, nil)

	streams, err := orch.Search(context.Background(), providers.SearchRequest{CatalogID: "tt0000000", Type: providers.MediaTypeMovie})
	if err != nil {
		t.Fatalf("Search returned an error instead of an empty result: %v", err)
	}
	if len(streams) != 0 {
		t.Fatalf("expected the year-gate to reject every candidate, got %+v", streams)
	}
}

func TestSearchCatalogFailureReturnsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cat := catalog.New(srv.URL, 5*time.Second)
	matcher := titlematch.New(64)
	validator := validation.New(validation.Options{Disabled: true})
	orch := New(cat, nil, matcher, validator, Options{}, nil)

	streams, err := orch.Search(context.Background(), providers.SearchRequest{CatalogID: "tt-missing", Type: providers.MediaTypeMovie})
	if err != nil {
		t.Fatalf("expected metadata-missing to surface as an empty result, not an error: %v", err)
	}
	if len(streams) != 0 {
		t.Fatalf("expected no streams, got %+v", streams)
	}
}

func TestPostFilterDropsZipBlocklistAndDuplicates(t *testing.T) {
	orch := &Orchestrator{
		hostBlocklist: map[string]struct{}{"blocked.example": {}},
	}

	streams := []providers.StreamDescriptor{
		{URL: "https://good.example/a.mkv"},
		{URL: "https://good.example/a.mkv"}, // duplicate
		{URL: "https://good.example/b.zip"}, // zip
		{URL: "https://blocked.example/c.mkv"}, // blocklisted host
	}

	out := orch.postFilter(streams, providers.SearchRequest{Type: providers.MediaTypeMovie})
	if len(out) != 1 || out[0].URL != "https://good.example/a.mkv" {
		t.Fatalf("unexpected post-filter result: %+v", out)
	}
}

func TestSortStreamsOrdersByQualityThenSize(t *testing.T) {
	streams := []providers.StreamDescriptor{
		{URL: "a", Quality: providers.Quality720p, SizeBytes: 100},
		{URL: "b", Quality: providers.Quality2160p, SizeBytes: 50},
		{URL: "c", Quality: providers.Quality2160p, SizeBytes: 500},
	}
	sortStreams(streams)

	if streams[0].URL != "c" || streams[1].URL != "b" || streams[2].URL != "a" {
		t.Fatalf("unexpected sort order: %+v", streams)
	}
}
