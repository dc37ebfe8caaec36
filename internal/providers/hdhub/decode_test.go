package hdhub

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFourStage(jsonPayload string) string {
	step3 := base64.StdEncoding.EncodeToString([]byte(jsonPayload))
	step2 := rot13(step3)
	step1 := base64.StdEncoding.EncodeToString([]byte(step2))
	return base64.StdEncoding.EncodeToString([]byte(step1))
}

func TestRot13RoundTrip(t *testing.T) {
	assert.Equal(t, "Uryyb, Jbeyq!", rot13("Hello, World!"))
	assert.Equal(t, "Hello, World!", rot13(rot13("Hello, World!")))
}

func TestDecodePayloadFourStage(t *testing.T) {
	finalURL := "https://pixeldrain.com/u/abc123"
	encodedO := base64.StdEncoding.EncodeToString([]byte(finalURL))
	payload := `{"o":"` + encodedO + `","data":"","blog_url":"","total_time":2,"wp_http1":""}`

	concat := encodeFourStage(payload)
	decoded, err := decodePayload(concat)
	require.NoError(t, err)
	assert.Equal(t, encodedO, decoded.O)

	raw, err := base64.StdEncoding.DecodeString(decoded.O)
	require.NoError(t, err)
	assert.Equal(t, finalURL, string(raw))
}

func TestDecodePayloadFallsBackToTwoStage(t *testing.T) {
	finalURL := "https://workers.dev/x"
	encodedO := base64.StdEncoding.EncodeToString([]byte(finalURL))
	payload := `{"o":"` + encodedO + `","data":"","blog_url":"","total_time":0,"wp_http1":""}`

	// Two-decode chain only (no rot13), matching the documented fallback.
	step1 := base64.StdEncoding.EncodeToString([]byte(payload))
	concat := base64.StdEncoding.EncodeToString([]byte(step1))

	decoded, err := decodePayload(concat)
	require.NoError(t, err)
	assert.Equal(t, encodedO, decoded.O)
}

func TestExtractFragments(t *testing.T) {
	html := `<script>s('o','aGVsbG8=');ck('_wp_http_var','d29ybGQ=');</script>`
	concat, err := extractFragments(html)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=d29ybGQ=", concat)
}

func TestExtractFragmentsMissing(t *testing.T) {
	_, err := extractFragments(`<html>nothing here</html>`)
	assert.Error(t, err)
}

func TestIsRedirectCarrier(t *testing.T) {
	assert.True(t, isRedirectCarrier("https://site.example/go?id=123"))
	assert.False(t, isRedirectCarrier("https://site.example/hubcloud/abc"))
}

func TestIsDirectVideoURL(t *testing.T) {
	assert.True(t, isDirectVideoURL("https://cdn.example/movie.mkv"))
	assert.True(t, isDirectVideoURL("https://cdn.example/movie.mp4?token=abc"))
	assert.False(t, isDirectVideoURL("https://cdn.example/page.html"))
}

func TestHostExtractorFor(t *testing.T) {
	assert.Equal(t, "hubcloud", hostExtractorFor("https://hubcloud.example/f/1"))
	assert.Equal(t, "hubdrive", hostExtractorFor("https://hubdrive.example/f/1"))
	assert.Equal(t, "", hostExtractorFor("https://unknown.example/f/1"))
}
