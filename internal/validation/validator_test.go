package validation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTrustedHostBypasses(t *testing.T) {
	v := New(Options{TrustedHosts: []string{"trusted.example"}})
	status, err := v.Validate(context.Background(), "https://trusted.example/x")
	require.NoError(t, err)
	assert.Equal(t, Valid, status)
}

func TestValidateDisabledIsTautology(t *testing.T) {
	v := New(Options{Disabled: true})
	status, err := v.Validate(context.Background(), "https://nonexistent.invalid/x")
	require.NoError(t, err)
	assert.Equal(t, Valid, status)
}

func TestValidateAcceptsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Options{})
	status, err := v.Validate(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, Valid, status)
}

func TestValidateRejects4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := New(Options{})
	status, err := v.Validate(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, Unreachable, status)
}

func TestValidateSeekable206(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	v := New(Options{})
	res, err := v.ValidateSeekable(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Seekable)
}

func TestValidateSeekable200WithAcceptRanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Options{})
	res, err := v.ValidateSeekable(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Seekable)
}

func TestValidateSeekable200WithoutAcceptRangesRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Options{})
	res, err := v.ValidateSeekable(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Seekable)
}

func TestExtractFilenameQuoted(t *testing.T) {
	assert.Equal(t, "Movie Title.mkv", extractFilename(`attachment; filename="Movie Title.mkv"`))
}

func TestExtractFilenameStarUTF8(t *testing.T) {
	assert.Equal(t, "Movie Title.mkv", extractFilename(`attachment; filename*=UTF-8''Movie%20Title.mkv`))
}

func TestExtractFilenameRejectsOpaqueHash(t *testing.T) {
	hash := "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"
	assert.Equal(t, "", extractFilename(`attachment; filename="`+hash+`"`))
}

func TestValidateSeekableBatchChunking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(Options{BatchSize: 2})
	urls := []string{srv.URL + "/1", srv.URL + "/2", srv.URL + "/3"}
	results := v.ValidateSeekableBatch(context.Background(), urls)
	require.Len(t, results, 3)
	for _, u := range urls {
		assert.True(t, results[u].Seekable)
	}
}
