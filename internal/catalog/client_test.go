package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamgate/streamgate/internal/providers"
)

func TestLookupParsesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meta/movie/tt0111161.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"meta":{"name":"The Shawshank Redemption","year":1994,"originalName":"","alternateNames":["Rita Hayworth and Shawshank Redemption"]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	meta, err := c.Lookup(context.Background(), "tt0111161", providers.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if meta.CanonicalName != "The Shawshank Redemption" || meta.Year != 1994 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(meta.AlternateNames) != 1 {
		t.Fatalf("expected one alternate name, got %+v", meta.AlternateNames)
	}
}

func TestLookupNon2xxReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.Lookup(context.Background(), "tt9999999", providers.MediaTypeMovie); err == nil {
		t.Fatal("expected an error for a non-2xx catalog response")
	}
}

func TestLookupMissingNameReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.Lookup(context.Background(), "tt0000000", providers.MediaTypeMovie); err == nil {
		t.Fatal("expected an error when the catalog entry has no name")
	}
}

func TestLookupMalformedJSONReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.Lookup(context.Background(), "tt0000001", providers.MediaTypeMovie); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
