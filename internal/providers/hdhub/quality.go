package hdhub

import (
	"regexp"
	"strings"

	"github.com/streamgate/streamgate/internal/providers"
)

var resolutionRe = regexp.MustCompile(`\d{3,4}[pP]`)

// DetectQuality classifies a title string into one of the spec's resolution
// buckets (§4.5): explicit "2160p" beats "4k"/"uhd" keyword hits; absent any
// resolution signal, a codec hints a default; absent everything, default to
// 2160p as the regex-miss fallback the spec names.
func DetectQuality(title string) providers.Quality {
	lower := strings.ToLower(title)

	if m := resolutionRe.FindString(title); m != "" {
		digits := strings.TrimRight(strings.TrimRight(m, "p"), "P")
		switch digits {
		case "2160":
			return providers.Quality2160p
		case "1440":
			return providers.Quality1440p
		case "1080":
			return providers.Quality1080p
		case "720":
			return providers.Quality720p
		case "480":
			return providers.Quality480p
		default:
			return providers.QualityOther
		}
	}

	if strings.Contains(lower, "2160p") || strings.Contains(lower, "4k") || strings.Contains(lower, "uhd") {
		return providers.Quality2160p
	}

	switch {
	case strings.Contains(lower, "h265"), strings.Contains(lower, "hevc"):
		return providers.Quality2160p
	case strings.Contains(lower, "h264"):
		return providers.Quality1080p
	}

	return providers.Quality2160p
}

// languageNames is the closed set of language names matched as whole words
// in titles (§4.5, §9: non-Latin script titles are silently unclassified).
var languageNames = []string{
	"english", "french", "spanish", "german", "italian", "portuguese",
	"hindi", "tamil", "telugu", "korean", "japanese", "russian", "arabic",
	"dutch", "swedish", "polish", "turkish", "chinese",
}

// DetectLanguages matches the closed language-name set as whole words in
// title, preferring an explicit comma-separated "language badge" (emitted by
// some producer pages) over title-text detection when present (§4.5).
func DetectLanguages(title, languageBadge string) []string {
	if languageBadge != "" {
		var out []string
		for _, part := range strings.Split(languageBadge, ",") {
			p := strings.ToLower(strings.TrimSpace(part))
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	lower := strings.ToLower(title)
	var found []string
	for _, lang := range languageNames {
		re := regexp.MustCompile(`\b` + lang + `\b`)
		if re.MatchString(lower) {
			found = append(found, lang)
		}
	}
	return found
}
