// Package providers defines the data types and the ProviderSearch interface
// shared by every upstream source adapter (§4.4, §6 of the spec), so the
// orchestrator can fan out across them polymorphically.
package providers

import "context"

// MediaType distinguishes a movie lookup from a series lookup.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// Quality is the detected resolution bucket of a stream.
type Quality string

const (
	Quality2160p Quality = "2160p"
	Quality1440p Quality = "1440p"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	QualityOther Quality = "other"
)

// qualityRank orders buckets from best to worst for §4.4 step 10's sort.
var qualityRank = map[Quality]int{
	Quality2160p: 0,
	Quality1440p: 1,
	Quality1080p: 2,
	Quality720p:  3,
	Quality480p:  4,
	QualityOther: 5,
}

// Rank returns q's sort rank; lower is better. Unknown values sort last.
func (q Quality) Rank() int {
	if r, ok := qualityRank[q]; ok {
		return r
	}
	return len(qualityRank)
}

// SearchRequest describes one client lookup, identified by an external
// catalog id plus optional season/episode for series (§3).
type SearchRequest struct {
	CatalogID string
	Type      MediaType
	Season    int
	Episode   int
	Options   map[string]string
}

// IsSeries reports whether the request targets a specific episode.
func (r SearchRequest) IsSeries() bool {
	return r.Type == MediaTypeSeries
}

// CandidateTitle is one hit from a provider's catalog listing (§3).
type CandidateTitle struct {
	Title      string
	URL        string
	Year       int
	Poster     string
	SourceTag  string
	Season     int
	Episode    int
	RawFormats []string
}

// MatchedTitle is a CandidateTitle annotated with a TitleMatcher score (§3).
type MatchedTitle struct {
	CandidateTitle
	Score float64
}

// StreamDescriptor is a single playable stream returned to the client (§3).
type StreamDescriptor struct {
	DisplayName     string
	Title           string
	URL             string
	Quality         Quality
	SizeBytes       int64
	Languages       []string
	SourceTag       string
	NeedsResolution bool
	BingeGroup      string
}

// RawLink is an unresolved link discovered on a provider's content page,
// still requiring StreamCatalog resolution (§4.5) before it becomes a
// StreamDescriptor.
type RawLink struct {
	URL       string
	Title     string
	SourceTag string
}

// ContentPage is the parsed detail page for one candidate (§6 "Provider content").
type ContentPage struct {
	Title string
	Year  int
	Links []RawLink
	// EpisodeLinks maps a zero-padded "S{season}E{episode}" key (e.g.
	// "S01E03") to the raw links found under
	// that structured entry, used for series disambiguation (§4.4 step 6).
	EpisodeLinks map[string][]RawLink
}

// ProviderSearch is implemented by each upstream provider (HTML-scraping
// sites, cached-hash debrid indexers). The orchestrator uses it
// polymorphically and never branches on concrete provider type (§2, §4.4).
type ProviderSearch interface {
	// Name identifies the provider for logging and source tagging.
	Name() string

	// Search runs a single catalog query and returns whatever candidates the
	// provider's listing page yields. A provider-local failure (timeout,
	// non-2xx, parse error) is returned as an error; the orchestrator treats
	// it as "this provider contributed nothing" and continues.
	Search(ctx context.Context, query string, mediaType MediaType) ([]CandidateTitle, error)

	// LoadContentPage fetches and parses a candidate's detail page.
	LoadContentPage(ctx context.Context, candidateURL string) (*ContentPage, error)

	// ResolveLink turns one raw, possibly-obfuscated link into a final
	// playable StreamDescriptor. ResolutionFailed (§7) is returned when the
	// decode/redirect chain yields nothing; the caller drops that link and
	// continues with the rest.
	ResolveLink(ctx context.Context, link RawLink) (*StreamDescriptor, error)
}
