package nzbutil

import "testing"

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"The.Matrix.1999.1080p.BluRay.x264-GROUP": "The Matrix 1999",
		"Plain Title":                             "Plain Title",
		"Show.Name.S01E03.720p.WEB-DL.AAC":         "Show Name S01E03",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsNZBURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/file.nzb": true,
		"http://example.com/file":      true,
		"ftp://example.com/file.nzb":   false,
		"not a url at all":             false,
		"/relative/path.nzb":           false,
	}
	for in, want := range cases {
		if got := IsNZBURL(in); got != want {
			t.Errorf("IsNZBURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCacheKeyStableAndDistinct(t *testing.T) {
	a := CacheKey("https://example.com/a.nzb")
	b := CacheKey("https://example.com/a.nzb")
	c := CacheKey("https://example.com/b.nzb")

	if a != b {
		t.Fatalf("CacheKey not stable: %q != %q", a, b)
	}
	if a == c {
		t.Fatalf("CacheKey collided for distinct inputs")
	}
	if len(a) != 40 {
		t.Fatalf("expected a 40-char hex sha1 digest, got %d chars", len(a))
	}
}

func TestExtractSeasonEpisode(t *testing.T) {
	season, episode, ok := ExtractSeasonEpisode("Show.Name.S01E03.720p")
	if !ok || season != 1 || episode != 3 {
		t.Fatalf("got season=%d episode=%d ok=%v, want 1 3 true", season, episode, ok)
	}

	if _, _, ok := ExtractSeasonEpisode("Movie Title 2023"); ok {
		t.Fatalf("expected no season/episode match")
	}
}
