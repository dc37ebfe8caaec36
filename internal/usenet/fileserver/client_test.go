package fileserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("expected X-API-Key header to be set, got %q", r.Header.Get("X-API-Key"))
		}
		if r.URL.Path != "/api/list" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"path":"/a/movie.mkv","name":"movie.mkv","size_bytes":1000,"completed":true}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	entries, err := c.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/a/movie.mkv" || entries[0].SizeBytes != 1000 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestListNon2xxReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.List(context.Background(), ""); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestDeleteTrimsLeadingSlash(t *testing.T) {
	var seenPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.Delete(context.Background(), "/a/movie.mkv"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if seenPath != "/a/movie.mkv" {
		t.Fatalf("unexpected delete path: %s", seenPath)
	}
}

func TestStreamURLAndErrorVideoURL(t *testing.T) {
	c := New("https://files.example", "")

	if got, want := c.StreamURL("/a/movie.mkv"), "https://files.example/a/movie.mkv"; got != want {
		t.Errorf("StreamURL = %q, want %q", got, want)
	}
	if got := c.ErrorVideoURL("download failed"); got != "https://files.example/error?message=download+failed" {
		t.Errorf("unexpected error video url: %s", got)
	}
}
