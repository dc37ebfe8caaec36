// Package nzbutil collects small NZB-related helpers with no dependency on
// the gateway's internal packages, so they can be reused by standalone
// tooling the way the teacher's pkg/rclonecli is.
package nzbutil

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// releaseTagPattern strips the scene/release-group noise commonly appended
// to NZB subjects and filenames (resolution, source, codec, group tags)
// before a title is shown to a user or used as a search query.
var releaseTagPattern = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|WEB-?DL|WEBRip|BluRay|HDRip|DVDRip|x264|x265|HEVC|AAC|DTS|REMUX)\b.*$`)

var nonAlnumSpace = regexp.MustCompile(`[._]+`)

// SanitizeTitle derives a clean display title from a raw NZB subject or
// filename, stripping release-group tags and collapsing separators.
func SanitizeTitle(raw string) string {
	cleaned := releaseTagPattern.ReplaceAllString(raw, "")
	cleaned = nonAlnumSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// IsNZBURL reports whether rawURL looks like a fetchable NZB link: an
// absolute http(s) URL, optionally ending in ".nzb".
func IsNZBURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// CacheKey derives a stable, fixed-length key for nzbURL, suitable for use as
// a URLCache or database key without leaking the full (possibly
// credential-bearing) URL into logs or file names.
func CacheKey(nzbURL string) string {
	sum := sha1.Sum([]byte(nzbURL))
	return hex.EncodeToString(sum[:])
}

var seasonEpisodeTag = regexp.MustCompile(`(?i)[Ss](\d{1,2})[Ee](\d{1,3})`)

// ExtractSeasonEpisode parses a "S01E03"-style tag out of subject, returning
// ok=false if no such tag is present.
func ExtractSeasonEpisode(subject string) (season, episode int, ok bool) {
	m := seasonEpisodeTag.FindStringSubmatch(subject)
	if m == nil {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(m[1])
	episode, _ = strconv.Atoi(m[2])
	return season, episode, true
}
