package offcloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/streamgate/streamgate/internal/providers"
)

func TestSearchOnlyReturnsCachedHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") == "" {
			t.Error("expected a non-empty query parameter")
		}
		w.Write([]byte(`{"results":[
			{"fileName":"Movie.2160p.mkv","url":"https://cdn.example/a","size":123,"year":2022,"cached":true,"quality":"2160p"},
			{"fileName":"Movie.720p.mkv","url":"https://cdn.example/b","size":456,"year":2022,"cached":false,"quality":"720p"}
		]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, "secret-key", 5*time.Second)
	candidates, err := p.Search(context.Background(), "Movie", providers.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one cached candidate, got %d", len(candidates))
	}
	if candidates[0].URL != "https://cdn.example/a" {
		t.Errorf("unexpected candidate url: %s", candidates[0].URL)
	}
}

func TestSearchAPIKeyIsURLEscaped(t *testing.T) {
	var seenKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenKey = r.URL.Query().Get("key")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, "a key/with=chars", 5*time.Second)
	if _, err := p.Search(context.Background(), "Movie", providers.MediaTypeMovie); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if decoded, _ := url.QueryUnescape(seenKey); decoded != "a key/with=chars" {
		t.Fatalf("api key mangled in transit: got %q", decoded)
	}
}

func TestResolveLinkIsIdentity(t *testing.T) {
	p := New("https://offcloud.example", "key", time.Second)
	link := providers.RawLink{URL: "https://cdn.example/direct.mkv", Title: "Movie 2022"}

	stream, err := p.ResolveLink(context.Background(), link)
	if err != nil {
		t.Fatalf("ResolveLink failed: %v", err)
	}
	if stream.URL != link.URL || stream.SourceTag != p.Name() {
		t.Fatalf("unexpected resolved stream: %+v", stream)
	}
}
